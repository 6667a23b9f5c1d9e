package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"gymmaster/internal/repository"
)

type reportRepository struct {
	pool *pgxpool.Pool
}

func NewReportRepository(pool *pgxpool.Pool) repository.ReportRepository {
	return &reportRepository{pool: pool}
}

var _ repository.ReportRepository = (*reportRepository)(nil)

func (r *reportRepository) Dashboard(ctx context.Context, now time.Time) (*repository.DashboardSummary, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	summary := &repository.DashboardSummary{}
	err := r.pool.QueryRow(
		ctx,
		`SELECT
			(SELECT COUNT(*) FROM members WHERE is_active),
			(SELECT COUNT(*) FROM memberships WHERE status = 'ACTIVE'),
			(SELECT COUNT(*) FROM check_ins WHERE check_in_at >= $1),
			(SELECT COUNT(*) FROM check_ins WHERE check_out_at IS NULL),
			(SELECT COALESCE(SUM(amount_cents), 0) FROM payments WHERE status = 'COMPLETED' AND paid_at >= $2),
			(SELECT COUNT(*) FROM gym_classes WHERE status = 'SCHEDULED' AND starts_at >= $3)`,
		dayStart,
		monthStart,
		now,
	).Scan(
		&summary.ActiveMembers,
		&summary.ActiveMemberships,
		&summary.CheckInsToday,
		&summary.OpenVisits,
		&summary.RevenueMonthCents,
		&summary.UpcomingClasses,
	)
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// Revenue groups completed payments by "day" or "month"; anything else falls back to day.
func (r *reportRepository) Revenue(ctx context.Context, from, to time.Time, groupBy string) ([]repository.RevenuePoint, error) {
	format := "YYYY-MM-DD"
	trunc := "day"
	if groupBy == "month" {
		format = "YYYY-MM"
		trunc = "month"
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT TO_CHAR(DATE_TRUNC($3, paid_at AT TIME ZONE 'UTC'), $4) AS period,
		        COALESCE(SUM(amount_cents), 0)::bigint,
		        COUNT(*)
		   FROM payments
		  WHERE status = 'COMPLETED' AND paid_at >= $1 AND paid_at <= $2
		  GROUP BY period
		  ORDER BY period`,
		from,
		to,
		trunc,
		format,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := make([]repository.RevenuePoint, 0)
	for rows.Next() {
		var point repository.RevenuePoint
		if err := rows.Scan(&point.Period, &point.AmountCents, &point.Payments); err != nil {
			return nil, err
		}
		points = append(points, point)
	}
	return points, rows.Err()
}

func (r *reportRepository) Attendance(ctx context.Context, from, to time.Time, branchID *uuid.UUID) ([]repository.AttendancePoint, error) {
	rows, err := r.pool.Query(
		ctx,
		`SELECT TO_CHAR(check_in_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day,
		        COUNT(*),
		        COUNT(DISTINCT member_id),
		        COALESCE(AVG(EXTRACT(EPOCH FROM (check_out_at - check_in_at)) / 60.0)
		            FILTER (WHERE check_out_at IS NOT NULL), 0)
		   FROM check_ins
		  WHERE check_in_at >= $1 AND check_in_at <= $2
		    AND ($3::uuid IS NULL OR branch_id = $3)
		  GROUP BY day
		  ORDER BY day`,
		from,
		to,
		branchID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := make([]repository.AttendancePoint, 0)
	for rows.Next() {
		var point repository.AttendancePoint
		if err := rows.Scan(&point.Day, &point.CheckIns, &point.UniqueMembers, &point.AvgMinutes); err != nil {
			return nil, err
		}
		points = append(points, point)
	}
	return points, rows.Err()
}

func (r *reportRepository) Memberships(ctx context.Context) (*repository.MembershipBreakdown, error) {
	byStatus, err := queryNamedCounts(
		ctx,
		r.pool,
		`SELECT status, COUNT(*) FROM memberships GROUP BY status ORDER BY status`,
	)
	if err != nil {
		return nil, err
	}

	byType, err := queryNamedCounts(
		ctx,
		r.pool,
		`SELECT mt.name, COUNT(*)
		   FROM memberships ms
		   JOIN membership_types mt ON mt.id = ms.membership_type_id
		  WHERE ms.status = 'ACTIVE'
		  GROUP BY mt.name
		  ORDER BY COUNT(*) DESC`,
	)
	if err != nil {
		return nil, err
	}

	return &repository.MembershipBreakdown{ByStatus: byStatus, ByType: byType}, nil
}
