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

type branchRepository struct {
	pool *pgxpool.Pool
}

func NewBranchRepository(pool *pgxpool.Pool) repository.BranchRepository {
	return &branchRepository{pool: pool}
}

var _ repository.BranchRepository = (*branchRepository)(nil)

const branchColumns = `
	id,
	name,
	address,
	phone,
	email,
	opening_time,
	closing_time,
	is_active,
	created_at,
	updated_at
`

func (r *branchRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Branch, error) {
	query := `SELECT ` + branchColumns + ` FROM branches WHERE id = $1`
	branch, err := scanBranch(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return branch, nil
}

func (r *branchRepository) Create(ctx context.Context, branch *model.Branch) error {
	if branch.ID == uuid.Nil {
		branch.ID = uuid.New()
	}
	now := time.Now().UTC()
	if branch.CreatedAt.IsZero() {
		branch.CreatedAt = now
	}
	branch.UpdatedAt = branch.CreatedAt

	query := `
		INSERT INTO branches (
			id, name, address, phone, email, opening_time, closing_time,
			is_active, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.pool.Exec(
		ctx,
		query,
		branch.ID,
		branch.Name,
		branch.Address,
		branch.Phone,
		branch.Email,
		branch.OpeningTime,
		branch.ClosingTime,
		branch.IsActive,
		branch.CreatedAt,
		branch.UpdatedAt,
	)
	return mapWriteError(err)
}

func (r *branchRepository) Update(ctx context.Context, branch *model.Branch) error {
	branch.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE branches
		SET name = $2,
			address = $3,
			phone = $4,
			email = $5,
			opening_time = $6,
			closing_time = $7,
			is_active = $8,
			updated_at = $9
		WHERE id = $1
	`
	tag, err := r.pool.Exec(
		ctx,
		query,
		branch.ID,
		branch.Name,
		branch.Address,
		branch.Phone,
		branch.Email,
		branch.OpeningTime,
		branch.ClosingTime,
		branch.IsActive,
		branch.UpdatedAt,
	)
	if err != nil {
		return mapWriteError(err)
	}
	return ensureAffected(tag)
}

func (r *branchRepository) List(ctx context.Context, filter repository.BranchListFilter) ([]*model.Branch, error) {
	where := &whereBuilder{}
	if filter.IsActive != nil {
		where.add("is_active = $%d", *filter.IsActive)
	}

	var builder strings.Builder
	builder.WriteString("SELECT ")
	builder.WriteString(branchColumns)
	builder.WriteString(" FROM branches")
	where.writeTo(&builder)
	args := where.page(&builder, "name ASC", filter.Pagination)

	rows, err := r.pool.Query(ctx, builder.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	branches := make([]*model.Branch, 0)
	for rows.Next() {
		item, err := scanBranch(rows)
		if err != nil {
			return nil, err
		}
		branches = append(branches, item)
	}
	return branches, rows.Err()
}

func (r *branchRepository) Count(ctx context.Context, filter repository.BranchListFilter) (int64, error) {
	where := &whereBuilder{}
	if filter.IsActive != nil {
		where.add("is_active = $%d", *filter.IsActive)
	}

	var builder strings.Builder
	builder.WriteString("SELECT COUNT(*) FROM branches")
	where.writeTo(&builder)

	var total int64
	if err := r.pool.QueryRow(ctx, builder.String(), where.args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func scanBranch(src scanTarget) (*model.Branch, error) {
	branch := &model.Branch{}
	err := src.Scan(
		&branch.ID,
		&branch.Name,
		&branch.Address,
		&branch.Phone,
		&branch.Email,
		&branch.OpeningTime,
		&branch.ClosingTime,
		&branch.IsActive,
		&branch.CreatedAt,
		&branch.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return branch, nil
}
