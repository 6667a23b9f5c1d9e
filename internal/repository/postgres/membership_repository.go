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

type membershipTypeRepository struct {
	pool *pgxpool.Pool
}

func NewMembershipTypeRepository(pool *pgxpool.Pool) repository.MembershipTypeRepository {
	return &membershipTypeRepository{pool: pool}
}

var _ repository.MembershipTypeRepository = (*membershipTypeRepository)(nil)

const membershipTypeColumns = `
	id,
	name,
	description,
	duration_days,
	price_cents,
	max_classes_per_month,
	is_active,
	created_at,
	updated_at
`

func (r *membershipTypeRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.MembershipType, error) {
	query := `SELECT ` + membershipTypeColumns + ` FROM membership_types WHERE id = $1`
	item, err := scanMembershipType(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (r *membershipTypeRepository) Create(ctx context.Context, item *model.MembershipType) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now

	query := `
		INSERT INTO membership_types (
			id, name, description, duration_days, price_cents,
			max_classes_per_month, is_active, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.pool.Exec(
		ctx,
		query,
		item.ID,
		item.Name,
		item.Description,
		item.DurationDays,
		item.PriceCents,
		item.MaxClassesPerMonth,
		item.IsActive,
		item.CreatedAt,
		item.UpdatedAt,
	)
	return mapWriteError(err)
}

func (r *membershipTypeRepository) Update(ctx context.Context, item *model.MembershipType) error {
	item.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE membership_types
		SET name = $2,
			description = $3,
			duration_days = $4,
			price_cents = $5,
			max_classes_per_month = $6,
			is_active = $7,
			updated_at = $8
		WHERE id = $1
	`
	tag, err := r.pool.Exec(
		ctx,
		query,
		item.ID,
		item.Name,
		item.Description,
		item.DurationDays,
		item.PriceCents,
		item.MaxClassesPerMonth,
		item.IsActive,
		item.UpdatedAt,
	)
	if err != nil {
		return mapWriteError(err)
	}
	return ensureAffected(tag)
}

func (r *membershipTypeRepository) List(ctx context.Context, filter repository.MembershipTypeListFilter) ([]*model.MembershipType, error) {
	where := &whereBuilder{}
	if filter.IsActive != nil {
		where.add("is_active = $%d", *filter.IsActive)
	}

	var builder strings.Builder
	builder.WriteString("SELECT ")
	builder.WriteString(membershipTypeColumns)
	builder.WriteString(" FROM membership_types")
	where.writeTo(&builder)
	args := where.page(&builder, "price_cents ASC, name ASC", filter.Pagination)

	rows, err := r.pool.Query(ctx, builder.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*model.MembershipType, 0)
	for rows.Next() {
		item, err := scanMembershipType(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *membershipTypeRepository) Count(ctx context.Context, filter repository.MembershipTypeListFilter) (int64, error) {
	where := &whereBuilder{}
	if filter.IsActive != nil {
		where.add("is_active = $%d", *filter.IsActive)
	}

	var builder strings.Builder
	builder.WriteString("SELECT COUNT(*) FROM membership_types")
	where.writeTo(&builder)

	var total int64
	if err := r.pool.QueryRow(ctx, builder.String(), where.args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func scanMembershipType(src scanTarget) (*model.MembershipType, error) {
	item := &model.MembershipType{}
	err := src.Scan(
		&item.ID,
		&item.Name,
		&item.Description,
		&item.DurationDays,
		&item.PriceCents,
		&item.MaxClassesPerMonth,
		&item.IsActive,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return item, nil
}

type membershipRepository struct {
	pool *pgxpool.Pool
}

func NewMembershipRepository(pool *pgxpool.Pool) repository.MembershipRepository {
	return &membershipRepository{pool: pool}
}

var _ repository.MembershipRepository = (*membershipRepository)(nil)

const membershipColumns = `
	id,
	member_id,
	membership_type_id,
	branch_id,
	start_date,
	end_date,
	status,
	price_cents,
	created_at,
	updated_at
`

func (r *membershipRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM memberships WHERE id = $1`
	return r.findOne(ctx, query, id)
}

func (r *membershipRepository) FindActive(ctx context.Context, memberID uuid.UUID) (*model.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM memberships WHERE member_id = $1 AND status = 'ACTIVE' LIMIT 1`
	return r.findOne(ctx, query, memberID)
}

func (r *membershipRepository) FindCovering(ctx context.Context, memberID uuid.UUID, at time.Time) (*model.Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM memberships
		WHERE member_id = $1
		  AND status = 'ACTIVE'
		  AND start_date <= $2
		  AND end_date >= $2
		ORDER BY end_date DESC
		LIMIT 1
	`
	return r.findOne(ctx, query, memberID, at)
}

func (r *membershipRepository) findOne(ctx context.Context, query string, args ...any) (*model.Membership, error) {
	item, err := scanMembership(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (r *membershipRepository) Create(ctx context.Context, item *model.Membership) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now

	query := `
		INSERT INTO memberships (
			id, member_id, membership_type_id, branch_id, start_date, end_date,
			status, price_cents, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.pool.Exec(
		ctx,
		query,
		item.ID,
		item.MemberID,
		item.MembershipTypeID,
		item.BranchID,
		item.StartDate,
		item.EndDate,
		item.Status,
		item.PriceCents,
		item.CreatedAt,
		item.UpdatedAt,
	)
	return mapWriteError(err)
}

func (r *membershipRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.MembershipStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE memberships SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return mapWriteError(err)
	}
	return ensureAffected(tag)
}

func (r *membershipRepository) ExpireEnded(ctx context.Context, now time.Time) ([]*model.Membership, error) {
	query := `
		UPDATE memberships
		SET status = 'EXPIRED', updated_at = $1
		WHERE status = 'ACTIVE' AND end_date < $1
		RETURNING ` + membershipColumns

	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*model.Membership, 0)
	for rows.Next() {
		item, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *membershipRepository) List(ctx context.Context, filter repository.MembershipListFilter) ([]*model.Membership, error) {
	where := buildMembershipListConditions(filter)

	var builder strings.Builder
	builder.WriteString("SELECT ")
	builder.WriteString(membershipColumns)
	builder.WriteString(" FROM memberships")
	where.writeTo(&builder)
	args := where.page(&builder, "start_date DESC", filter.Pagination)

	rows, err := r.pool.Query(ctx, builder.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*model.Membership, 0)
	for rows.Next() {
		item, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *membershipRepository) Count(ctx context.Context, filter repository.MembershipListFilter) (int64, error) {
	where := buildMembershipListConditions(filter)

	var builder strings.Builder
	builder.WriteString("SELECT COUNT(*) FROM memberships")
	where.writeTo(&builder)

	var total int64
	if err := r.pool.QueryRow(ctx, builder.String(), where.args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func buildMembershipListConditions(filter repository.MembershipListFilter) *whereBuilder {
	where := &whereBuilder{}
	if filter.MemberID != nil {
		where.add("member_id = $%d", *filter.MemberID)
	}
	if filter.Status != nil {
		where.add("status = $%d", *filter.Status)
	}
	return where
}

func scanMembership(src scanTarget) (*model.Membership, error) {
	item := &model.Membership{}
	err := src.Scan(
		&item.ID,
		&item.MemberID,
		&item.MembershipTypeID,
		&item.BranchID,
		&item.StartDate,
		&item.EndDate,
		&item.Status,
		&item.PriceCents,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return item, nil
}
