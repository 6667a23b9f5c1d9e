package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type auditCleaner interface {
	Cleanup(ctx context.Context, days int) (int64, error)
}

// AuditJob applies the configured retention; zero days lets the service pick it.
type AuditJob struct {
	audit  auditCleaner
	logger *zap.Logger
}

func NewAuditJob(audit auditCleaner, logger *zap.Logger) *AuditJob {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AuditJob{
		audit:  audit,
		logger: logger,
	}
}

func (j *AuditJob) Cleanup() {
	if j == nil || j.audit == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if _, err := j.audit.Cleanup(ctx, 0); err != nil {
		j.logger.Warn("audit retention sweep failed", zap.Error(err))
	}
}
