package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type staleVisitCloser interface {
	AutoClose(ctx context.Context, threshold time.Duration) (int64, error)
}

// CheckInJob closes visits nobody checked out of.
type CheckInJob struct {
	checkIns  staleVisitCloser
	threshold time.Duration
	logger    *zap.Logger
}

func NewCheckInJob(checkIns staleVisitCloser, threshold time.Duration, logger *zap.Logger) *CheckInJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	if threshold <= 0 {
		threshold = 24 * time.Hour
	}

	return &CheckInJob{
		checkIns:  checkIns,
		threshold: threshold,
		logger:    logger,
	}
}

func (j *CheckInJob) AutoCloseStale() {
	if j == nil || j.checkIns == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	closed, err := j.checkIns.AutoClose(ctx, j.threshold)
	if err != nil {
		j.logger.Warn("auto-close stale visits failed", zap.Error(err))
		return
	}
	j.logger.Debug("auto-close sweep finished", zap.Int64("closed", closed))
}
