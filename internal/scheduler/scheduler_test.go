package scheduler

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingTask struct{ runs int }

func (t *countingTask) AutoCloseStale() { t.runs++ }
func (t *countingTask) ExpireEnded()    { t.runs++ }
func (t *countingTask) Cleanup()        { t.runs++ }
func (t *countingTask) Collect()        { t.runs++ }

func TestNewScheduler_RegistersOnlyProvidedJobs(t *testing.T) {
	task := &countingTask{}
	c := NewScheduler(Deps{CheckInJob: task, MetricsJob: task}, Specs{}, zap.NewNop())
	require.Len(t, c.Entries(), 2)

	c = NewScheduler(Deps{
		CheckInJob:    task,
		MembershipJob: task,
		AuditJob:      task,
		MetricsJob:    task,
	}, Specs{AutoClose: "0 */15 * * * *"}, nil)
	require.Len(t, c.Entries(), 4)
}

func TestNewScheduler_SkipsInvalidSpec(t *testing.T) {
	task := &countingTask{}
	c := NewScheduler(Deps{CheckInJob: task}, Specs{AutoClose: "not a cron"}, zap.NewNop())
	require.Empty(t, c.Entries())
}

func TestWrapJob_RecoversPanics(t *testing.T) {
	job := wrapJob("boom", zap.NewNop(), func() { panic("kaboom") })
	require.NotPanics(t, job)
}
