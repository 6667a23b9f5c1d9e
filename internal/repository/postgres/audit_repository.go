package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"gymmaster/internal/model"
	"gymmaster/internal/repository"
)

type auditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) repository.AuditRepository {
	return &auditRepository{pool: pool}
}

var _ repository.AuditRepository = (*auditRepository)(nil)

const auditColumns = `
	id,
	user_id,
	action,
	entity,
	entity_id,
	old_values,
	new_values,
	ip_address,
	user_agent,
	created_at
`

func (r *auditRepository) Create(ctx context.Context, log *model.AuditLog) error {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	oldValues, err := encodeJSONMap(log.OldValues)
	if err != nil {
		return err
	}
	newValues, err := encodeJSONMap(log.NewValues)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO audit_logs (
			user_id,
			action,
			entity,
			entity_id,
			old_values,
			new_values,
			ip_address,
			user_agent,
			created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	return r.pool.QueryRow(
		ctx,
		query,
		log.UserID,
		log.Action,
		log.Entity,
		log.EntityID,
		oldValues,
		newValues,
		log.IPAddress,
		log.UserAgent,
		log.CreatedAt,
	).Scan(&log.ID)
}

func (r *auditRepository) List(ctx context.Context, filter repository.AuditListFilter) ([]*model.AuditLog, error) {
	where := buildAuditListConditions(filter)

	var builder strings.Builder
	builder.WriteString("SELECT ")
	builder.WriteString(auditColumns)
	builder.WriteString(" FROM audit_logs")
	where.writeTo(&builder)
	args := where.page(&builder, "created_at DESC, id DESC", filter.Pagination)

	rows, err := r.pool.Query(ctx, builder.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]*model.AuditLog, 0)
	for rows.Next() {
		item, err := scanAuditLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return logs, nil
}

func (r *auditRepository) Count(ctx context.Context, filter repository.AuditListFilter) (int64, error) {
	where := buildAuditListConditions(filter)

	var builder strings.Builder
	builder.WriteString("SELECT COUNT(*) FROM audit_logs")
	where.writeTo(&builder)

	var total int64
	if err := r.pool.QueryRow(ctx, builder.String(), where.args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *auditRepository) Stats(ctx context.Context, since time.Time) (*repository.AuditStats, error) {
	stats := &repository.AuditStats{}

	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM audit_logs WHERE created_at >= $1`, since).Scan(&stats.Total); err != nil {
		return nil, err
	}

	var err error
	stats.ByAction, err = queryNamedCounts(
		ctx,
		r.pool,
		`SELECT action, COUNT(*) FROM audit_logs WHERE created_at >= $1 GROUP BY action ORDER BY COUNT(*) DESC`,
		since,
	)
	if err != nil {
		return nil, err
	}

	stats.ByEntity, err = queryNamedCounts(
		ctx,
		r.pool,
		`SELECT entity, COUNT(*) FROM audit_logs WHERE created_at >= $1 GROUP BY entity ORDER BY COUNT(*) DESC`,
		since,
	)
	if err != nil {
		return nil, err
	}

	stats.TopUsers, err = queryNamedCounts(
		ctx,
		r.pool,
		`SELECT user_id::text, COUNT(*)
		   FROM audit_logs
		  WHERE created_at >= $1 AND user_id IS NOT NULL
		  GROUP BY user_id
		  ORDER BY COUNT(*) DESC
		  LIMIT 10`,
		since,
	)
	if err != nil {
		return nil, err
	}

	return stats, nil
}

func (r *auditRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM audit_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func buildAuditListConditions(filter repository.AuditListFilter) *whereBuilder {
	where := &whereBuilder{}
	if filter.UserID != nil {
		where.add("user_id = $%d", *filter.UserID)
	}
	if filter.Action != nil {
		where.add("action = $%d", *filter.Action)
	}
	if filter.Entity != nil {
		where.add("entity = $%d", *filter.Entity)
	}
	if filter.EntityID != nil {
		where.add("entity_id = $%d", *filter.EntityID)
	}
	if filter.StartTime != nil {
		where.add("created_at >= $%d", *filter.StartTime)
	}
	if filter.EndTime != nil {
		where.add("created_at <= $%d", *filter.EndTime)
	}
	return where
}

func scanAuditLog(src scanTarget) (*model.AuditLog, error) {
	log := &model.AuditLog{}
	var oldValuesRaw []byte
	var newValuesRaw []byte

	err := src.Scan(
		&log.ID,
		&log.UserID,
		&log.Action,
		&log.Entity,
		&log.EntityID,
		&oldValuesRaw,
		&newValuesRaw,
		&log.IPAddress,
		&log.UserAgent,
		&log.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	log.OldValues, err = decodeJSONMap(oldValuesRaw)
	if err != nil {
		return nil, err
	}
	log.NewValues, err = decodeJSONMap(newValuesRaw)
	if err != nil {
		return nil, err
	}

	return log, nil
}
