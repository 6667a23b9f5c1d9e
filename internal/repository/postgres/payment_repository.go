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

type paymentRepository struct {
	pool *pgxpool.Pool
}

func NewPaymentRepository(pool *pgxpool.Pool) repository.PaymentRepository {
	return &paymentRepository{pool: pool}
}

var _ repository.PaymentRepository = (*paymentRepository)(nil)

const paymentColumns = `
	id,
	member_id,
	membership_id,
	amount_cents,
	currency,
	method,
	status,
	reference,
	external_id,
	notes,
	paid_at,
	created_at,
	updated_at
`

func (r *paymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	item, err := scanPayment(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (r *paymentRepository) Create(ctx context.Context, item *model.Payment) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now

	query := `
		INSERT INTO payments (
			id, member_id, membership_id, amount_cents, currency, method, status,
			reference, external_id, notes, paid_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.pool.Exec(
		ctx,
		query,
		item.ID,
		item.MemberID,
		item.MembershipID,
		item.AmountCents,
		item.Currency,
		item.Method,
		item.Status,
		item.Reference,
		item.ExternalID,
		item.Notes,
		item.PaidAt,
		item.CreatedAt,
		item.UpdatedAt,
	)
	return mapWriteError(err)
}

func (r *paymentRepository) Update(ctx context.Context, item *model.Payment) error {
	item.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE payments
		SET status = $2,
			reference = $3,
			external_id = $4,
			notes = $5,
			paid_at = $6,
			updated_at = $7
		WHERE id = $1
	`
	tag, err := r.pool.Exec(
		ctx,
		query,
		item.ID,
		item.Status,
		item.Reference,
		item.ExternalID,
		item.Notes,
		item.PaidAt,
		item.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return ensureAffected(tag)
}

func (r *paymentRepository) List(ctx context.Context, filter repository.PaymentListFilter) ([]*model.Payment, error) {
	where := buildPaymentListConditions(filter)

	var builder strings.Builder
	builder.WriteString("SELECT ")
	builder.WriteString(paymentColumns)
	builder.WriteString(" FROM payments")
	where.writeTo(&builder)
	args := where.page(&builder, "created_at DESC", filter.Pagination)

	rows, err := r.pool.Query(ctx, builder.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*model.Payment, 0)
	for rows.Next() {
		item, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *paymentRepository) Count(ctx context.Context, filter repository.PaymentListFilter) (int64, error) {
	where := buildPaymentListConditions(filter)

	var builder strings.Builder
	builder.WriteString("SELECT COUNT(*) FROM payments")
	where.writeTo(&builder)

	var total int64
	if err := r.pool.QueryRow(ctx, builder.String(), where.args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func buildPaymentListConditions(filter repository.PaymentListFilter) *whereBuilder {
	where := &whereBuilder{}
	if filter.MemberID != nil {
		where.add("member_id = $%d", *filter.MemberID)
	}
	if filter.Status != nil {
		where.add("status = $%d", *filter.Status)
	}
	if filter.From != nil {
		where.add("created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		where.add("created_at <= $%d", *filter.To)
	}
	return where
}

func scanPayment(src scanTarget) (*model.Payment, error) {
	item := &model.Payment{}
	err := src.Scan(
		&item.ID,
		&item.MemberID,
		&item.MembershipID,
		&item.AmountCents,
		&item.Currency,
		&item.Method,
		&item.Status,
		&item.Reference,
		&item.ExternalID,
		&item.Notes,
		&item.PaidAt,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return item, nil
}
