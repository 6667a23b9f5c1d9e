package service

import (
	"context"
	"crypto/rsa"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"gymmaster/internal/event"
	"gymmaster/internal/model"
	"gymmaster/internal/repository"
	"gymmaster/pkg/crypto"
	jwtutil "gymmaster/pkg/jwt"
)

const (
	defaultAccessTokenTTL  = 2 * time.Hour
	defaultRefreshTokenTTL = 7 * 24 * time.Hour
	otpTTL                 = 10 * time.Minute
	otpDigits              = 6
)

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrUserInactive        = errors.New("user is inactive")
	ErrRefreshTokenInvalid = errors.New("refresh token invalid")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidOTP          = errors.New("invalid or expired code")
)

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

type OTPNotifier interface {
	SendOTP(ctx context.Context, user *model.User, code string, purpose model.OTPPurpose, ttl time.Duration) error
}

type AuthConfig struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type AuthService struct {
	userRepo   repository.UserRepository
	memberSvc  *MemberService
	pool       *pgxpool.Pool
	privateKey *rsa.PrivateKey
	notifier   OTPNotifier
	publisher  Publisher
	logger     *zap.Logger
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewAuthService(
	userRepo repository.UserRepository,
	memberSvc *MemberService,
	pool *pgxpool.Pool,
	privateKey *rsa.PrivateKey,
	notifier OTPNotifier,
	publisher Publisher,
	cfg AuthConfig,
	logger *zap.Logger,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = defaultAccessTokenTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = defaultRefreshTokenTTL
	}
	return &AuthService{
		userRepo:   userRepo,
		memberSvc:  memberSvc,
		pool:       pool,
		privateKey: privateKey,
		notifier:   notifier,
		publisher:  publisher,
		logger:     logger,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
	}
}

// Register creates a MEMBER account and signs it in.
func (s *AuthService) Register(ctx context.Context, req CreateMemberRequest) (*model.Member, TokenPair, error) {
	if len(req.Password) < minPasswordLength {
		return nil, TokenPair{}, ErrWeakPassword
	}

	member, err := s.memberSvc.Create(ctx, req)
	if err != nil {
		return nil, TokenPair{}, err
	}

	tokens, err := s.issueTokensForUser(ctx, member.User)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return member, tokens, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*model.User, TokenPair, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, TokenPair{}, ErrInvalidCredentials
		}
		return nil, TokenPair{}, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, TokenPair{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, TokenPair{}, ErrUserInactive
	}

	tokens, err := s.issueTokensForUser(ctx, user)
	if err != nil {
		return nil, TokenPair{}, err
	}

	now := time.Now().UTC()
	if err := s.userRepo.TouchLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("update last login failed", zap.String("user_id", user.ID.String()), zap.Error(err))
	} else {
		user.LastLoginAt = &now
	}

	return user, tokens, nil
}

// RefreshToken rotates the refresh token: the presented one is deleted and a new one issued in the same transaction.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (TokenPair, error) {
	if refreshToken == "" {
		return TokenPair{}, ErrRefreshTokenInvalid
	}

	tokenHash := crypto.HashToken(refreshToken)

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return TokenPair{}, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var user model.User
	var expiresAt time.Time
	err = tx.QueryRow(ctx, `
		SELECT u.id, u.email, u.role, u.is_active, rt.expires_at
		FROM refresh_tokens rt
		JOIN users u ON u.id = rt.user_id
		WHERE rt.token_hash = $1
		FOR UPDATE OF rt
	`, tokenHash).Scan(&user.ID, &user.Email, &user.Role, &user.IsActive, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TokenPair{}, ErrRefreshTokenInvalid
		}
		return TokenPair{}, err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM refresh_tokens WHERE token_hash = $1`, tokenHash); err != nil {
		return TokenPair{}, err
	}

	now := time.Now().UTC()
	if !expiresAt.After(now) {
		if err := tx.Commit(ctx); err != nil {
			return TokenPair{}, err
		}
		return TokenPair{}, ErrRefreshTokenExpired
	}
	if !user.IsActive {
		if err := tx.Commit(ctx); err != nil {
			return TokenPair{}, err
		}
		return TokenPair{}, ErrUserInactive
	}

	accessToken, err := s.signAccessToken(&user)
	if err != nil {
		return TokenPair{}, err
	}
	newRefreshToken, err := jwtutil.GenerateRefreshToken()
	if err != nil {
		return TokenPair{}, err
	}

	if _, err := tx.Exec(
		ctx,
		`INSERT INTO refresh_tokens (token_hash, user_id, expires_at, created_at) VALUES ($1, $2, $3, $4)`,
		crypto.HashToken(newRefreshToken),
		user.ID,
		now.Add(s.refreshTTL),
		now,
	); err != nil {
		return TokenPair{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

// Logout revokes the refresh token and returns its owner, if any.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) (*uuid.UUID, error) {
	if refreshToken == "" {
		return nil, nil
	}

	var userID uuid.UUID
	err := s.pool.QueryRow(
		ctx,
		`DELETE FROM refresh_tokens WHERE token_hash = $1 RETURNING user_id`,
		crypto.HashToken(refreshToken),
	).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &userID, nil
}

func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return ErrWeakPassword
	}

	user, err := s.findUser(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)) != nil {
		return ErrInvalidCredentials
	}

	return s.setPassword(ctx, user, newPassword)
}

// RequestOTP issues a one-time code by email. Unknown addresses succeed silently.
func (s *AuthService) RequestOTP(ctx context.Context, email string, purpose model.OTPPurpose) error {
	if purpose != model.OTPPurposeEmailVerification && purpose != model.OTPPurposePasswordReset {
		return ErrInvalidInput
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}
	if !user.IsActive {
		return nil
	}

	code, err := crypto.NumericCode(otpDigits)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Only the newest code for a purpose is usable.
	if _, err := tx.Exec(
		ctx,
		`UPDATE otp_codes SET consumed_at = $3 WHERE user_id = $1 AND purpose = $2 AND consumed_at IS NULL`,
		user.ID,
		purpose,
		now,
	); err != nil {
		return err
	}
	if _, err := tx.Exec(
		ctx,
		`INSERT INTO otp_codes (id, user_id, purpose, code_hash, expires_at, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New(),
		user.ID,
		purpose,
		crypto.HashToken(code),
		now.Add(otpTTL),
		now,
	); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	if s.notifier != nil {
		if err := s.notifier.SendOTP(ctx, user, code, purpose, otpTTL); err != nil {
			s.logger.Warn("send otp failed", zap.String("user_id", user.ID.String()), zap.Error(err))
		}
	}
	return nil
}

func (s *AuthService) VerifyEmail(ctx context.Context, email, code string) error {
	user, err := s.consumeOTP(ctx, email, code, model.OTPPurposeEmailVerification)
	if err != nil {
		return err
	}
	if user.EmailVerified {
		return nil
	}
	user.EmailVerified = true
	return s.userRepo.Update(ctx, user)
}

func (s *AuthService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return ErrWeakPassword
	}
	user, err := s.consumeOTP(ctx, email, code, model.OTPPurposePasswordReset)
	if err != nil {
		return err
	}
	return s.setPassword(ctx, user, newPassword)
}

func (s *AuthService) consumeOTP(ctx context.Context, email, code string, purpose model.OTPPurpose) (*model.User, error) {
	code = strings.TrimSpace(code)
	if len(code) != otpDigits {
		return nil, ErrInvalidOTP
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidOTP
		}
		return nil, err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC()
	var otpID uuid.UUID
	var codeHash string
	err = tx.QueryRow(ctx, `
		SELECT id, code_hash
		FROM otp_codes
		WHERE user_id = $1 AND purpose = $2 AND consumed_at IS NULL AND expires_at > $3
		ORDER BY created_at DESC
		LIMIT 1
		FOR UPDATE
	`, user.ID, purpose, now).Scan(&otpID, &codeHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidOTP
		}
		return nil, err
	}

	if !crypto.EqualHash(codeHash, crypto.HashToken(code)) {
		return nil, ErrInvalidOTP
	}

	if _, err := tx.Exec(ctx, `UPDATE otp_codes SET consumed_at = $2 WHERE id = $1`, otpID, now); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return user, nil
}

// setPassword stores the new hash and revokes every refresh token of the user.
func (s *AuthService) setPassword(ctx context.Context, user *model.User, newPassword string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return err
	}

	user.PasswordHash = string(hashed)
	if err := s.userRepo.Update(ctx, user); err != nil {
		return err
	}

	if _, err := s.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, user.ID); err != nil {
		return err
	}

	if s.publisher != nil {
		s.publisher.Publish(event.PasswordChanged, event.PasswordChangedPayload{
			UserID: user.ID.String(),
			At:     time.Now().UTC(),
		})
	}
	return nil
}

func (s *AuthService) findUser(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *AuthService) issueTokensForUser(ctx context.Context, user *model.User) (TokenPair, error) {
	if user == nil {
		return TokenPair{}, ErrUserNotFound
	}

	accessToken, err := s.signAccessToken(user)
	if err != nil {
		return TokenPair{}, err
	}

	refreshToken, err := jwtutil.GenerateRefreshToken()
	if err != nil {
		return TokenPair{}, err
	}

	now := time.Now().UTC()
	if _, err := s.pool.Exec(
		ctx,
		`INSERT INTO refresh_tokens (token_hash, user_id, expires_at, created_at) VALUES ($1, $2, $3, $4)`,
		crypto.HashToken(refreshToken),
		user.ID,
		now.Add(s.refreshTTL),
		now,
	); err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

func (s *AuthService) signAccessToken(user *model.User) (string, error) {
	claims := jwtutil.NewClaims(user.ID.String(), string(user.Role), user.Email, s.accessTTL)
	return jwtutil.GenerateAccessToken(claims, s.privateKey)
}
