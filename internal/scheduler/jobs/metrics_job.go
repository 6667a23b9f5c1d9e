package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"gymmaster/internal/metrics"
	"gymmaster/internal/repository"
)

type dashboardSource interface {
	Dashboard(ctx context.Context) (*repository.DashboardSummary, error)
}

type connectionCounter interface {
	ConnectedCount() int
}

// MetricsJob refreshes the gauges that no request path keeps current.
type MetricsJob struct {
	reports dashboardSource
	sse     connectionCounter
	logger  *zap.Logger
}

func NewMetricsJob(reports dashboardSource, sse connectionCounter, logger *zap.Logger) *MetricsJob {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &MetricsJob{
		reports: reports,
		sse:     sse,
		logger:  logger,
	}
}

func (j *MetricsJob) Collect() {
	if j == nil {
		return
	}
	if j.sse != nil {
		metrics.SetSSEClients(j.sse.ConnectedCount())
	}
	if j.reports == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	summary, err := j.reports.Dashboard(ctx)
	if err != nil {
		j.logger.Warn("collect gauge metrics failed", zap.Error(err))
		return
	}
	metrics.SetOpenVisits(summary.OpenVisits)
	metrics.SetActiveMemberships(summary.ActiveMemberships)
}
