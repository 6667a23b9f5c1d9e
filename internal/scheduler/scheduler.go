package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"gymmaster/internal/metrics"
)

const (
	defaultAutoCloseSpec  = "0 0 * * * *"
	defaultExpirySpec     = "0 5 0 * * *"
	defaultAuditClean     = "0 30 3 * * *"
	specMetricsCollection = "*/30 * * * * *"
)

type CheckInTask interface {
	AutoCloseStale()
}

type MembershipTask interface {
	ExpireEnded()
}

type AuditTask interface {
	Cleanup()
}

type MetricsTask interface {
	Collect()
}

// Specs are six-field cron expressions (seconds first), evaluated in UTC.
type Specs struct {
	AutoClose        string
	MembershipExpiry string
	AuditCleanup     string
}

type Deps struct {
	CheckInJob    CheckInTask
	MembershipJob MembershipTask
	AuditJob      AuditTask
	MetricsJob    MetricsTask
}

func NewScheduler(deps Deps, specs Specs, logger *zap.Logger) *cron.Cron {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC))

	if deps.CheckInJob != nil {
		addFunc(c, orDefault(specs.AutoClose, defaultAutoCloseSpec), "checkin.auto_close", logger, deps.CheckInJob.AutoCloseStale)
	}
	if deps.MembershipJob != nil {
		addFunc(c, orDefault(specs.MembershipExpiry, defaultExpirySpec), "membership.expire", logger, deps.MembershipJob.ExpireEnded)
	}
	if deps.AuditJob != nil {
		addFunc(c, orDefault(specs.AuditCleanup, defaultAuditClean), "audit.cleanup", logger, deps.AuditJob.Cleanup)
	}
	if deps.MetricsJob != nil {
		addFunc(c, specMetricsCollection, "metrics.collect", logger, deps.MetricsJob.Collect)
	}

	return c
}

func orDefault(spec, fallback string) string {
	if spec == "" {
		return fallback
	}
	return spec
}

func addFunc(c *cron.Cron, spec string, name string, logger *zap.Logger, fn func()) {
	if c == nil || fn == nil {
		return
	}

	if _, err := c.AddFunc(spec, wrapJob(name, logger, fn)); err != nil {
		logger.Error("register scheduler job failed",
			zap.String("job", name),
			zap.String("spec", spec),
			zap.Error(err),
		)
	}
}

func wrapJob(name string, logger *zap.Logger, fn func()) func() {
	return func() {
		defer recoverJobPanic(name, logger)
		start := time.Now()
		fn()
		cost := time.Since(start)
		metrics.ObserveJobDuration(name, cost)
		logger.Debug("scheduler job finished", zap.String("job", name), zap.Duration("cost", cost))
	}
}

func recoverJobPanic(jobName string, logger *zap.Logger) {
	if logger == nil {
		return
	}

	if recovered := recover(); recovered != nil {
		logger.Error("scheduler job panic recovered",
			zap.String("job", jobName),
			zap.Any("panic", recovered),
		)
	}
}
