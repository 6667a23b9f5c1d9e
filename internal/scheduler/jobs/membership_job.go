package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type membershipExpirer interface {
	ExpireEnded(ctx context.Context) (int, error)
}

type MembershipJob struct {
	memberships membershipExpirer
	logger      *zap.Logger
}

func NewMembershipJob(memberships membershipExpirer, logger *zap.Logger) *MembershipJob {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &MembershipJob{
		memberships: memberships,
		logger:      logger,
	}
}

func (j *MembershipJob) ExpireEnded() {
	if j == nil || j.memberships == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if _, err := j.memberships.ExpireEnded(ctx); err != nil {
		j.logger.Warn("membership expiry sweep failed", zap.Error(err))
	}
}
