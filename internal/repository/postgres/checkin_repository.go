package postgres

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"gymmaster/internal/model"
	"gymmaster/internal/repository"
)

type checkInRepository struct {
	pool *pgxpool.Pool
}

func NewCheckInRepository(pool *pgxpool.Pool) repository.CheckInRepository {
	return &checkInRepository{pool: pool}
}

var _ repository.CheckInRepository = (*checkInRepository)(nil)

const checkInSelect = `
	SELECT
		ci.id,
		ci.member_id,
		ci.branch_id,
		ci.check_in_at,
		ci.check_out_at,
		ci.notes,
		ci.created_at,
		TRIM(u.first_name || ' ' || u.last_name),
		b.name
	FROM check_ins ci
	JOIN members m ON m.id = ci.member_id
	JOIN users u ON u.id = m.user_id
	JOIN branches b ON b.id = ci.branch_id
`

func (r *checkInRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.CheckIn, error) {
	return r.findOne(ctx, checkInSelect+` WHERE ci.id = $1`, id)
}

func (r *checkInRepository) FindOpenByMember(ctx context.Context, memberID uuid.UUID) (*model.CheckIn, error) {
	return r.findOne(ctx, checkInSelect+` WHERE ci.member_id = $1 AND ci.check_out_at IS NULL LIMIT 1`, memberID)
}

func (r *checkInRepository) findOne(ctx context.Context, query string, arg any) (*model.CheckIn, error) {
	item, err := scanCheckIn(r.pool.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Create relies on the one_open_visit_per_member index to reject a second
// open visit that raced past the service-level check.
func (r *checkInRepository) Create(ctx context.Context, item *model.CheckIn) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = item.CheckInAt
	}

	query := `
		INSERT INTO check_ins (id, member_id, branch_id, check_in_at, check_out_at, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(
		ctx,
		query,
		item.ID,
		item.MemberID,
		item.BranchID,
		item.CheckInAt,
		item.CheckOutAt,
		item.Notes,
		item.CreatedAt,
	)
	return mapWriteError(err)
}

func (r *checkInRepository) Close(ctx context.Context, id uuid.UUID, at time.Time, notes *string) error {
	query := `
		UPDATE check_ins
		SET check_out_at = $2,
			notes = COALESCE($3, notes)
		WHERE id = $1 AND check_out_at IS NULL
	`
	tag, err := r.pool.Exec(ctx, query, id, at, notes)
	if err != nil {
		return err
	}
	return ensureAffected(tag)
}

func (r *checkInRepository) CloseStale(ctx context.Context, before, at time.Time, note string) (int64, error) {
	query := `
		UPDATE check_ins
		SET check_out_at = $2,
			notes = $3
		WHERE check_out_at IS NULL AND check_in_at < $1
	`
	tag, err := r.pool.Exec(ctx, query, before, at, note)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *checkInRepository) List(ctx context.Context, filter repository.CheckInListFilter) ([]*model.CheckIn, error) {
	where := buildCheckInListConditions(filter)

	var builder strings.Builder
	builder.WriteString(checkInSelect)
	where.writeTo(&builder)
	args := where.page(&builder, "ci.check_in_at DESC", filter.Pagination)

	rows, err := r.pool.Query(ctx, builder.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*model.CheckIn, 0)
	for rows.Next() {
		item, err := scanCheckIn(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *checkInRepository) Count(ctx context.Context, filter repository.CheckInListFilter) (int64, error) {
	where := buildCheckInListConditions(filter)

	var builder strings.Builder
	builder.WriteString("SELECT COUNT(*) FROM check_ins ci")
	where.writeTo(&builder)

	var total int64
	if err := r.pool.QueryRow(ctx, builder.String(), where.args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *checkInRepository) Stats(ctx context.Context, from, to, now time.Time) (*repository.CheckInStats, error) {
	stats := &repository.CheckInStats{
		ByBranch: make([]repository.NamedCount, 0),
		ByHour:   make([]repository.NamedCount, 0),
	}

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	err := r.pool.QueryRow(
		ctx,
		`SELECT
			COUNT(*) FILTER (WHERE check_in_at >= $1 AND check_in_at <= $2),
			COUNT(*) FILTER (WHERE check_in_at >= $3),
			COUNT(*) FILTER (WHERE check_out_at IS NULL),
			COALESCE(AVG(EXTRACT(EPOCH FROM (check_out_at - check_in_at)) / 60.0)
				FILTER (WHERE check_out_at IS NOT NULL AND check_in_at >= $1 AND check_in_at <= $2), 0)
		 FROM check_ins`,
		from,
		to,
		dayStart,
	).Scan(&stats.Total, &stats.Today, &stats.CurrentlyOpen, &stats.AverageVisitMinute)
	if err != nil {
		return nil, err
	}

	byBranch, err := r.namedCounts(
		ctx,
		`SELECT b.name, COUNT(*)
		   FROM check_ins ci
		   JOIN branches b ON b.id = ci.branch_id
		  WHERE ci.check_in_at >= $1 AND ci.check_in_at <= $2
		  GROUP BY b.name
		  ORDER BY COUNT(*) DESC`,
		from,
		to,
	)
	if err != nil {
		return nil, err
	}
	stats.ByBranch = byBranch

	rows, err := r.pool.Query(
		ctx,
		`SELECT EXTRACT(HOUR FROM check_in_at AT TIME ZONE 'UTC')::int AS hour, COUNT(*)
		   FROM check_ins
		  WHERE check_in_at >= $1 AND check_in_at <= $2
		  GROUP BY hour
		  ORDER BY hour`,
		from,
		to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var hour int
		var total int64
		if err := rows.Scan(&hour, &total); err != nil {
			return nil, err
		}
		stats.ByHour = append(stats.ByHour, repository.NamedCount{Key: strconv.Itoa(hour), Count: total})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}

func (r *checkInRepository) namedCounts(ctx context.Context, query string, args ...any) ([]repository.NamedCount, error) {
	return queryNamedCounts(ctx, r.pool, query, args...)
}

func buildCheckInListConditions(filter repository.CheckInListFilter) *whereBuilder {
	where := &whereBuilder{}
	if filter.MemberID != nil {
		where.add("ci.member_id = $%d", *filter.MemberID)
	}
	if filter.BranchID != nil {
		where.add("ci.branch_id = $%d", *filter.BranchID)
	}
	if filter.From != nil {
		where.add("ci.check_in_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		where.add("ci.check_in_at <= $%d", *filter.To)
	}
	if filter.OpenOnly {
		where.addRaw("ci.check_out_at IS NULL")
	}
	return where
}

func scanCheckIn(src scanTarget) (*model.CheckIn, error) {
	item := &model.CheckIn{}
	err := src.Scan(
		&item.ID,
		&item.MemberID,
		&item.BranchID,
		&item.CheckInAt,
		&item.CheckOutAt,
		&item.Notes,
		&item.CreatedAt,
		&item.MemberName,
		&item.BranchName,
	)
	if err != nil {
		return nil, err
	}
	return item, nil
}

func queryNamedCounts(ctx context.Context, pool *pgxpool.Pool, query string, args ...any) ([]repository.NamedCount, error) {
	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]repository.NamedCount, 0)
	for rows.Next() {
		var item repository.NamedCount
		if err := rows.Scan(&item.Key, &item.Count); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
