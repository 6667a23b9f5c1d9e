package service

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"gymmaster/internal/repository"
)

const (
	defaultListPage     = 1
	defaultListPageSize = 20
	maxListPageSize     = 200
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrInvalidID    = errors.New("invalid id")
)

// Clock is injected so expiry and auto-close boundaries can be tested exactly.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

func (c Clock) now() time.Time {
	if c == nil {
		return systemClock()
	}
	return c().UTC()
}

func normalizeListPagination(page, pageSize int) (int, int) {
	if page <= 0 {
		page = defaultListPage
	}
	if pageSize <= 0 {
		pageSize = defaultListPageSize
	}
	if pageSize > maxListPageSize {
		pageSize = maxListPageSize
	}
	return page, pageSize
}

func toRepoPagination(page, pageSize int) repository.Pagination {
	page, pageSize = normalizeListPagination(page, pageSize)
	return repository.Pagination{
		Limit:  clampIntToInt32(pageSize),
		Offset: clampIntToInt32((page - 1) * pageSize),
	}
}

func clampIntToInt32(v int) int32 {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < math.MinInt32 {
		return math.MinInt32
	}
	return int32(v) // #nosec G115 -- bounds checked above.
}

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, ErrInvalidID
	}
	return id, nil
}

func normalizeStringPointer(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func strPtr(v string) *string {
	return &v
}

func ptrValue(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
