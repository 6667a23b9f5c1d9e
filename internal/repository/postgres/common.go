package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"gymmaster/internal/repository"
)

var ErrNotFound = repository.ErrNotFound

const pgUniqueViolation = "23505"

type scanTarget interface {
	Scan(dest ...any) error
}

// execer is satisfied by both *pgxpool.Pool and pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func normalizePagination(page repository.Pagination) (int32, int32) {
	limit := page.Limit
	offset := page.Offset

	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	return limit, offset
}

func decodeJSONMap(raw []byte) (map[string]interface{}, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}

	return out, nil
}

func encodeJSONMap(value map[string]interface{}) ([]byte, error) {
	if value == nil {
		return nil, nil
	}

	return json.Marshal(value)
}

func ensureAffected(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// mapWriteError turns unique violations into repository.ErrConflict and keeps
// the constraint name in the message for logs.
func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%w: %s", repository.ErrConflict, pgErr.ConstraintName)
	}
	return err
}

type whereBuilder struct {
	args       []any
	conditions []string
}

func (w *whereBuilder) add(format string, value any) {
	w.args = append(w.args, value)
	w.conditions = append(w.conditions, fmt.Sprintf(format, len(w.args)))
}

func (w *whereBuilder) addRaw(condition string) {
	w.conditions = append(w.conditions, condition)
}

func (w *whereBuilder) writeTo(builder *strings.Builder) {
	if len(w.conditions) == 0 {
		return
	}
	builder.WriteString(" WHERE ")
	builder.WriteString(strings.Join(w.conditions, " AND "))
}

func (w *whereBuilder) page(builder *strings.Builder, orderBy string, page repository.Pagination) []any {
	limit, offset := normalizePagination(page)
	args := append([]any{}, w.args...)
	args = append(args, limit, offset)
	_, _ = fmt.Fprintf(builder, " ORDER BY %s LIMIT $%d OFFSET $%d", orderBy, len(args)-1, len(args))
	return args
}
