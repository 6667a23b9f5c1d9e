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

type classRepository struct {
	pool *pgxpool.Pool
}

func NewClassRepository(pool *pgxpool.Pool) repository.ClassRepository {
	return &classRepository{pool: pool}
}

var _ repository.ClassRepository = (*classRepository)(nil)

const classSelect = `
	SELECT
		c.id,
		c.branch_id,
		c.trainer_id,
		c.name,
		c.description,
		c.capacity,
		c.starts_at,
		c.ends_at,
		c.status,
		c.created_at,
		c.updated_at,
		(SELECT COUNT(*) FROM reservations r WHERE r.class_id = c.id AND r.status = 'CONFIRMED')
	FROM gym_classes c
`

func (r *classRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.GymClass, error) {
	item, err := scanClass(r.pool.QueryRow(ctx, classSelect+` WHERE c.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (r *classRepository) Create(ctx context.Context, item *model.GymClass) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now

	query := `
		INSERT INTO gym_classes (
			id, branch_id, trainer_id, name, description, capacity,
			starts_at, ends_at, status, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.pool.Exec(
		ctx,
		query,
		item.ID,
		item.BranchID,
		item.TrainerID,
		item.Name,
		item.Description,
		item.Capacity,
		item.StartsAt,
		item.EndsAt,
		item.Status,
		item.CreatedAt,
		item.UpdatedAt,
	)
	return mapWriteError(err)
}

func (r *classRepository) Update(ctx context.Context, item *model.GymClass) error {
	item.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE gym_classes
		SET branch_id = $2,
			trainer_id = $3,
			name = $4,
			description = $5,
			capacity = $6,
			starts_at = $7,
			ends_at = $8,
			status = $9,
			updated_at = $10
		WHERE id = $1
	`
	tag, err := r.pool.Exec(
		ctx,
		query,
		item.ID,
		item.BranchID,
		item.TrainerID,
		item.Name,
		item.Description,
		item.Capacity,
		item.StartsAt,
		item.EndsAt,
		item.Status,
		item.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return ensureAffected(tag)
}

func (r *classRepository) List(ctx context.Context, filter repository.ClassListFilter) ([]*model.GymClass, error) {
	where := buildClassListConditions(filter)

	var builder strings.Builder
	builder.WriteString(classSelect)
	where.writeTo(&builder)
	args := where.page(&builder, "c.starts_at ASC", filter.Pagination)

	rows, err := r.pool.Query(ctx, builder.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*model.GymClass, 0)
	for rows.Next() {
		item, err := scanClass(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *classRepository) Count(ctx context.Context, filter repository.ClassListFilter) (int64, error) {
	where := buildClassListConditions(filter)

	var builder strings.Builder
	builder.WriteString("SELECT COUNT(*) FROM gym_classes c")
	where.writeTo(&builder)

	var total int64
	if err := r.pool.QueryRow(ctx, builder.String(), where.args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func buildClassListConditions(filter repository.ClassListFilter) *whereBuilder {
	where := &whereBuilder{}
	if filter.BranchID != nil {
		where.add("c.branch_id = $%d", *filter.BranchID)
	}
	if filter.TrainerID != nil {
		where.add("c.trainer_id = $%d", *filter.TrainerID)
	}
	if filter.Status != nil {
		where.add("c.status = $%d", *filter.Status)
	}
	if filter.From != nil {
		where.add("c.starts_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		where.add("c.starts_at <= $%d", *filter.To)
	}
	return where
}

func scanClass(src scanTarget) (*model.GymClass, error) {
	item := &model.GymClass{}
	var reserved int64
	err := src.Scan(
		&item.ID,
		&item.BranchID,
		&item.TrainerID,
		&item.Name,
		&item.Description,
		&item.Capacity,
		&item.StartsAt,
		&item.EndsAt,
		&item.Status,
		&item.CreatedAt,
		&item.UpdatedAt,
		&reserved,
	)
	if err != nil {
		return nil, err
	}
	item.Reserved = int(reserved)
	return item, nil
}

type reservationRepository struct {
	pool *pgxpool.Pool
}

func NewReservationRepository(pool *pgxpool.Pool) repository.ReservationRepository {
	return &reservationRepository{pool: pool}
}

var _ repository.ReservationRepository = (*reservationRepository)(nil)

const reservationColumns = `
	id,
	class_id,
	member_id,
	status,
	created_at,
	updated_at
`

func (r *reservationRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	item, err := scanReservation(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (r *reservationRepository) Reserve(ctx context.Context, item *model.Reservation, capacity int) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	now := time.Now().UTC()
	item.Status = model.ReservationStatusConfirmed
	item.CreatedAt = now
	item.UpdatedAt = now

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var locked uuid.UUID
	if err := tx.QueryRow(ctx, `SELECT id FROM gym_classes WHERE id = $1 FOR UPDATE`, item.ClassID).Scan(&locked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	var confirmed int64
	if err := tx.QueryRow(
		ctx,
		`SELECT COUNT(*) FROM reservations WHERE class_id = $1 AND status = 'CONFIRMED'`,
		item.ClassID,
	).Scan(&confirmed); err != nil {
		return err
	}
	if confirmed >= int64(capacity) {
		return repository.ErrCapacityReached
	}

	if _, err := tx.Exec(
		ctx,
		`INSERT INTO reservations (id, class_id, member_id, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		item.ID,
		item.ClassID,
		item.MemberID,
		item.Status,
		item.CreatedAt,
		item.UpdatedAt,
	); err != nil {
		return mapWriteError(err)
	}

	return tx.Commit(ctx)
}

func (r *reservationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.ReservationStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE reservations SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return mapWriteError(err)
	}
	return ensureAffected(tag)
}

func (r *reservationRepository) CancelAllForClass(ctx context.Context, classID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(
		ctx,
		`UPDATE reservations SET status = 'CANCELLED', updated_at = NOW() WHERE class_id = $1 AND status = 'CONFIRMED'`,
		classID,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *reservationRepository) ListByClass(ctx context.Context, classID uuid.UUID) ([]*model.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE class_id = $1 ORDER BY created_at ASC`
	return r.list(ctx, query, classID)
}

func (r *reservationRepository) ListByMember(ctx context.Context, memberID uuid.UUID, page repository.Pagination) ([]*model.Reservation, error) {
	limit, offset := normalizePagination(page)
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE member_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	return r.list(ctx, query, memberID, limit, offset)
}

func (r *reservationRepository) list(ctx context.Context, query string, args ...any) ([]*model.Reservation, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*model.Reservation, 0)
	for rows.Next() {
		item, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanReservation(src scanTarget) (*model.Reservation, error) {
	item := &model.Reservation{}
	err := src.Scan(
		&item.ID,
		&item.ClassID,
		&item.MemberID,
		&item.Status,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return item, nil
}
