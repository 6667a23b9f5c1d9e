package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CheckInAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gym_checkin_attempts_total",
		Help: "Check-in attempts by kind and result",
	}, []string{"kind", "result"})

	CheckOuts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gym_checkouts_total",
		Help: "Closed visits by how they were closed",
	}, []string{"source"})

	VisitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gym_visit_duration_minutes",
		Help:    "Length of closed visits in minutes",
		Buckets: []float64{15, 30, 45, 60, 90, 120, 180, 240, 480, 1440},
	})

	OpenVisits = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gym_open_visits",
		Help: "Members currently inside a branch",
	})

	ActiveMemberships = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gym_active_memberships",
		Help: "Memberships in ACTIVE status",
	})

	AuditEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gym_audit_events_total",
		Help: "Audit entries by outcome",
	}, []string{"outcome"})

	AuditQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gym_audit_queue_depth",
		Help: "Audit entries waiting to be written",
	})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gym_job_duration_seconds",
		Help:    "Scheduled job run time",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})

	PaymentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gym_payments_total",
		Help: "Payments by method and status",
	}, []string{"method", "status"})

	SSEClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gym_sse_clients",
		Help: "Current number of SSE clients connected",
	})
)

func IncCheckInAttempt(kind, result string) {
	CheckInAttempts.WithLabelValues(label(kind), label(result)).Inc()
}

func ObserveCheckOut(source string, duration time.Duration) {
	CheckOuts.WithLabelValues(label(source)).Inc()
	if duration > 0 {
		VisitDuration.Observe(duration.Minutes())
	}
}

func AddAutoClosed(count int64) {
	if count <= 0 {
		return
	}
	CheckOuts.WithLabelValues("auto").Add(float64(count))
}

func SetOpenVisits(count int64) {
	OpenVisits.Set(float64(nonNegative(count)))
}

func SetActiveMemberships(count int64) {
	ActiveMemberships.Set(float64(nonNegative(count)))
}

func IncAuditEvent(outcome string) {
	AuditEvents.WithLabelValues(label(outcome)).Inc()
}

func SetAuditQueueDepth(depth int) {
	AuditQueueDepth.Set(float64(nonNegative(int64(depth))))
}

func ObserveJobDuration(job string, duration time.Duration) {
	JobDuration.WithLabelValues(label(job)).Observe(duration.Seconds())
}

func IncPayment(method, status string) {
	PaymentsTotal.WithLabelValues(label(method), label(status)).Inc()
}

func SetSSEClients(count int) {
	SSEClients.Set(float64(nonNegative(int64(count))))
}

func label(v string) string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return "unknown"
	}
	return strings.ToLower(trimmed)
}

func nonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
