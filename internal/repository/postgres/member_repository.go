package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"gymmaster/internal/model"
	"gymmaster/internal/repository"
)

type memberRepository struct {
	pool *pgxpool.Pool
}

func NewMemberRepository(pool *pgxpool.Pool) repository.MemberRepository {
	return &memberRepository{pool: pool}
}

var _ repository.MemberRepository = (*memberRepository)(nil)

const memberSelect = `
	SELECT
		m.id,
		m.user_id,
		m.membership_number,
		m.qr_code,
		m.qr_code_expiry,
		m.date_of_birth,
		m.emergency_contact,
		m.is_active,
		m.created_at,
		m.updated_at,
		u.id,
		u.email,
		u.password_hash,
		u.first_name,
		u.last_name,
		u.phone,
		u.role,
		u.is_active,
		u.email_verified,
		u.last_login_at,
		u.created_at,
		u.updated_at
	FROM members m
	JOIN users u ON u.id = m.user_id
`

func (r *memberRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Member, error) {
	return r.findOne(ctx, memberSelect+` WHERE m.id = $1`, id)
}

func (r *memberRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*model.Member, error) {
	return r.findOne(ctx, memberSelect+` WHERE m.user_id = $1`, userID)
}

func (r *memberRepository) FindByQRCode(ctx context.Context, qrCode string) (*model.Member, error) {
	return r.findOne(ctx, memberSelect+` WHERE m.qr_code = $1`, qrCode)
}

func (r *memberRepository) findOne(ctx context.Context, query string, arg any) (*model.Member, error) {
	member, err := scanMember(r.pool.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return member, nil
}

func (r *memberRepository) Create(ctx context.Context, member *model.Member) error {
	return insertMember(ctx, r.pool, member)
}

// CreateWithUser inserts the login account and its member profile atomically.
func (r *memberRepository) CreateWithUser(ctx context.Context, user *model.User, member *model.Member) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := insertUser(ctx, tx, user); err != nil {
		return err
	}
	member.UserID = user.ID
	if err := insertMember(ctx, tx, member); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	member.User = user
	return nil
}

func insertMember(ctx context.Context, db execer, member *model.Member) error {
	if member.ID == uuid.Nil {
		member.ID = uuid.New()
	}

	now := time.Now().UTC()
	if member.CreatedAt.IsZero() {
		member.CreatedAt = now
	}
	if member.UpdatedAt.IsZero() {
		member.UpdatedAt = member.CreatedAt
	}

	query := `
		INSERT INTO members (
			id, user_id, membership_number, qr_code, qr_code_expiry,
			date_of_birth, emergency_contact, is_active, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := db.Exec(
		ctx,
		query,
		member.ID,
		member.UserID,
		member.MembershipNumber,
		member.QRCode,
		member.QRCodeExpiry,
		member.DateOfBirth,
		member.EmergencyContact,
		member.IsActive,
		member.CreatedAt,
		member.UpdatedAt,
	)
	return mapWriteError(err)
}

func (r *memberRepository) Update(ctx context.Context, member *model.Member) error {
	member.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE members
		SET date_of_birth = $2,
			emergency_contact = $3,
			is_active = $4,
			updated_at = $5
		WHERE id = $1
	`

	tag, err := r.pool.Exec(
		ctx,
		query,
		member.ID,
		member.DateOfBirth,
		member.EmergencyContact,
		member.IsActive,
		member.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return ensureAffected(tag)
}

func (r *memberRepository) UpdateQRCode(ctx context.Context, id uuid.UUID, qrCode string, expiry time.Time) error {
	query := `UPDATE members SET qr_code = $2, qr_code_expiry = $3, updated_at = NOW() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, qrCode, expiry)
	if err != nil {
		return mapWriteError(err)
	}
	return ensureAffected(tag)
}

func (r *memberRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE members SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	return ensureAffected(tag)
}

func (r *memberRepository) List(ctx context.Context, filter repository.MemberListFilter) ([]*model.Member, error) {
	where := buildMemberListConditions(filter)

	var builder strings.Builder
	builder.WriteString(memberSelect)
	where.writeTo(&builder)
	args := where.page(&builder, "m.created_at DESC", filter.Pagination)

	rows, err := r.pool.Query(ctx, builder.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make([]*model.Member, 0)
	for rows.Next() {
		item, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return members, nil
}

func (r *memberRepository) Count(ctx context.Context, filter repository.MemberListFilter) (int64, error) {
	where := buildMemberListConditions(filter)

	var builder strings.Builder
	builder.WriteString("SELECT COUNT(*) FROM members m JOIN users u ON u.id = m.user_id")
	where.writeTo(&builder)

	var total int64
	if err := r.pool.QueryRow(ctx, builder.String(), where.args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func buildMemberListConditions(filter repository.MemberListFilter) *whereBuilder {
	where := &whereBuilder{}

	if filter.IsActive != nil {
		where.add("m.is_active = $%d", *filter.IsActive)
	}
	if filter.Keyword != nil {
		keyword := "%" + strings.TrimSpace(*filter.Keyword) + "%"
		where.add("(u.email ILIKE $%[1]d OR u.first_name ILIKE $%[1]d OR u.last_name ILIKE $%[1]d OR m.membership_number ILIKE $%[1]d)", keyword)
	}

	return where
}

func scanMember(src scanTarget) (*model.Member, error) {
	member := &model.Member{User: &model.User{}}
	user := member.User
	err := src.Scan(
		&member.ID,
		&member.UserID,
		&member.MembershipNumber,
		&member.QRCode,
		&member.QRCodeExpiry,
		&member.DateOfBirth,
		&member.EmergencyContact,
		&member.IsActive,
		&member.CreatedAt,
		&member.UpdatedAt,
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.Phone,
		&user.Role,
		&user.IsActive,
		&user.EmailVerified,
		&user.LastLoginAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return member, nil
}
