package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"gymmaster/internal/model"
	"gymmaster/internal/repository"
	"gymmaster/pkg/crypto"
)

const (
	defaultQRTTL         = 24 * time.Hour
	bcryptCost           = 12
	minPasswordLength    = 8
	createMemberAttempts = 3
)

var (
	ErrMemberNotFound = errors.New("member not found")
	ErrEmailInUse     = errors.New("email already registered")
	ErrWeakPassword   = errors.New("password must be at least 8 characters")
	ErrInvalidEmail   = errors.New("invalid email")
)

type CreateMemberRequest struct {
	Email            string
	Password         string
	FirstName        string
	LastName         string
	Phone            *string
	DateOfBirth      *time.Time
	EmergencyContact *string
}

type UpdateMemberRequest struct {
	FirstName        *string
	LastName         *string
	Phone            *string
	DateOfBirth      *time.Time
	EmergencyContact *string
	IsActive         *bool
}

type MemberService struct {
	memberRepo     repository.MemberRepository
	userRepo       repository.UserRepository
	membershipRepo repository.MembershipRepository
	qrTTL          time.Duration
	clock          Clock
}

func NewMemberService(
	memberRepo repository.MemberRepository,
	userRepo repository.UserRepository,
	membershipRepo repository.MembershipRepository,
	qrTTL time.Duration,
) *MemberService {
	if qrTTL <= 0 {
		qrTTL = defaultQRTTL
	}
	return &MemberService{
		memberRepo:     memberRepo,
		userRepo:       userRepo,
		membershipRepo: membershipRepo,
		qrTTL:          qrTTL,
	}
}

func (s *MemberService) WithClock(clock Clock) *MemberService {
	s.clock = clock
	return s
}

// Create registers a MEMBER account together with its profile and a fresh QR code.
// An empty password gets a random one; the member can reset it via OTP.
func (s *MemberService) Create(ctx context.Context, req CreateMemberRequest) (*model.Member, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	firstName := strings.TrimSpace(req.FirstName)
	lastName := strings.TrimSpace(req.LastName)
	if firstName == "" || lastName == "" {
		return nil, ErrInvalidInput
	}

	password := req.Password
	if password == "" {
		password, err = crypto.RandomToken(16)
		if err != nil {
			return nil, err
		}
	}
	if len(password) < minPasswordLength {
		return nil, ErrWeakPassword
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, err
	}

	now := s.clock.now()
	user := &model.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hashed),
		FirstName:    firstName,
		LastName:     lastName,
		Phone:        normalizeStringPointer(req.Phone),
		Role:         model.UserRoleMember,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// Membership numbers and QR tokens are random; retry the rare collision.
	for attempt := 0; attempt < createMemberAttempts; attempt++ {
		member, err := s.newMember(now)
		if err != nil {
			return nil, err
		}
		member.DateOfBirth = req.DateOfBirth
		member.EmergencyContact = normalizeStringPointer(req.EmergencyContact)

		err = s.memberRepo.CreateWithUser(ctx, user, member)
		if err == nil {
			return member, nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return nil, err
		}
		if strings.Contains(err.Error(), "email") {
			return nil, ErrEmailInUse
		}
	}
	return nil, repository.ErrConflict
}

func (s *MemberService) newMember(now time.Time) (*model.Member, error) {
	number, err := crypto.MembershipNumber(now)
	if err != nil {
		return nil, err
	}
	qr, err := crypto.QRToken()
	if err != nil {
		return nil, err
	}
	return &model.Member{
		ID:               uuid.New(),
		MembershipNumber: number,
		QRCode:           qr,
		QRCodeExpiry:     now.Add(s.qrTTL),
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

func (s *MemberService) GetByID(ctx context.Context, id uuid.UUID) (*model.Member, error) {
	member, err := s.memberRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return member, nil
}

func (s *MemberService) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Member, error) {
	member, err := s.memberRepo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return member, nil
}

func (s *MemberService) List(ctx context.Context, isActive *bool, keyword string, page, pageSize int) ([]*model.Member, int64, error) {
	filter := repository.MemberListFilter{
		IsActive:   isActive,
		Keyword:    normalizeStringPointer(&keyword),
		Pagination: toRepoPagination(page, pageSize),
	}

	members, err := s.memberRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.memberRepo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return members, total, nil
}

func (s *MemberService) Update(ctx context.Context, id uuid.UUID, req UpdateMemberRequest) (*model.Member, error) {
	member, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.DateOfBirth != nil {
		member.DateOfBirth = req.DateOfBirth
	}
	if req.EmergencyContact != nil {
		member.EmergencyContact = normalizeStringPointer(req.EmergencyContact)
	}
	if req.IsActive != nil {
		member.IsActive = *req.IsActive
	}
	if err := s.memberRepo.Update(ctx, member); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}

	if req.FirstName != nil || req.LastName != nil || req.Phone != nil {
		user := member.User
		if user == nil {
			if user, err = s.userRepo.FindByID(ctx, member.UserID); err != nil {
				return nil, err
			}
		}
		if req.FirstName != nil && strings.TrimSpace(*req.FirstName) != "" {
			user.FirstName = strings.TrimSpace(*req.FirstName)
		}
		if req.LastName != nil && strings.TrimSpace(*req.LastName) != "" {
			user.LastName = strings.TrimSpace(*req.LastName)
		}
		if req.Phone != nil {
			user.Phone = normalizeStringPointer(req.Phone)
		}
		if err := s.userRepo.Update(ctx, user); err != nil {
			return nil, err
		}
		member.User = user
	}

	return member, nil
}

// Deactivate is the DELETE semantics for members: history must survive.
func (s *MemberService) Deactivate(ctx context.Context, id uuid.UUID) error {
	if err := s.memberRepo.SetActive(ctx, id, false); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrMemberNotFound
		}
		return err
	}
	return nil
}

// RegenerateQR replaces the member's QR token; the previous token stops working immediately.
func (s *MemberService) RegenerateQR(ctx context.Context, memberID uuid.UUID) (*model.Member, error) {
	member, err := s.GetByID(ctx, memberID)
	if err != nil {
		return nil, err
	}

	code, err := crypto.QRToken()
	if err != nil {
		return nil, err
	}
	expiry := s.clock.now().Add(s.qrTTL)

	if err := s.memberRepo.UpdateQRCode(ctx, member.ID, code, expiry); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}

	member.QRCode = code
	member.QRCodeExpiry = expiry
	return member, nil
}

func (s *MemberService) Memberships(ctx context.Context, memberID uuid.UUID, page, pageSize int) ([]*model.Membership, int64, error) {
	if _, err := s.GetByID(ctx, memberID); err != nil {
		return nil, 0, err
	}
	filter := repository.MembershipListFilter{
		MemberID:   &memberID,
		Pagination: toRepoPagination(page, pageSize),
	}
	items, err := s.membershipRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.membershipRepo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}
