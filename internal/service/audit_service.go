package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gymmaster/internal/model"
	"gymmaster/internal/repository"
)

const (
	defaultAuditRetentionDays = 90
	defaultAuditStatsDays     = 30
)

var ErrInvalidAuditInput = errors.New("invalid audit input")

type AuditFilter struct {
	UserID   *uuid.UUID
	Action   *model.AuditAction
	Entity   *string
	EntityID *string
	From     *time.Time
	To       *time.Time
}

// AuditService is the read and retention side of the audit trail. Writes go
// through audit.Recorder.
type AuditService struct {
	auditRepo     repository.AuditRepository
	retentionDays int
	logger        *zap.Logger
	clock         Clock
}

func NewAuditService(auditRepo repository.AuditRepository, retentionDays int, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retentionDays <= 0 {
		retentionDays = defaultAuditRetentionDays
	}
	return &AuditService{
		auditRepo:     auditRepo,
		retentionDays: retentionDays,
		logger:        logger,
	}
}

func (s *AuditService) WithClock(clock Clock) *AuditService {
	s.clock = clock
	return s
}

func (s *AuditService) List(ctx context.Context, filter AuditFilter, page, pageSize int) ([]*model.AuditLog, int64, error) {
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, 0, ErrInvalidAuditInput
	}

	repoFilter := repository.AuditListFilter{
		UserID:     filter.UserID,
		Action:     filter.Action,
		Entity:     trimAuditStringPtr(filter.Entity),
		EntityID:   trimAuditStringPtr(filter.EntityID),
		StartTime:  filter.From,
		EndTime:    filter.To,
		Pagination: toRepoPagination(page, pageSize),
	}

	items, err := s.auditRepo.List(ctx, repoFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.auditRepo.Count(ctx, repoFilter)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// EntityHistory lists every recorded change to one entity, newest first.
func (s *AuditService) EntityHistory(ctx context.Context, entity, entityID string, page, pageSize int) ([]*model.AuditLog, int64, error) {
	entity = strings.TrimSpace(entity)
	entityID = strings.TrimSpace(entityID)
	if entity == "" || entityID == "" {
		return nil, 0, ErrInvalidAuditInput
	}
	return s.List(ctx, AuditFilter{Entity: &entity, EntityID: &entityID}, page, pageSize)
}

func (s *AuditService) Stats(ctx context.Context, days int) (*repository.AuditStats, error) {
	if days == 0 {
		days = defaultAuditStatsDays
	}
	if days < 1 {
		return nil, ErrInvalidAuditInput
	}
	since := s.clock.now().AddDate(0, 0, -days)
	return s.auditRepo.Stats(ctx, since)
}

// Cleanup deletes entries older than days; zero means the configured retention.
func (s *AuditService) Cleanup(ctx context.Context, days int) (int64, error) {
	if days == 0 {
		days = s.retentionDays
	}
	if days < 1 {
		return 0, ErrInvalidAuditInput
	}

	cutoff := s.clock.now().AddDate(0, 0, -days)
	deleted, err := s.auditRepo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	s.logger.Info("audit retention sweep", zap.Int("days", days), zap.Int64("deleted", deleted))
	return deleted, nil
}

func trimAuditStringPtr(v *string) *string {
	return normalizeStringPointer(v)
}
