package audit

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gymmaster/internal/model"
)

func TestRouteActionFor(t *testing.T) {
	plain := Route{Entity: "Member"}
	cases := map[string]model.AuditAction{
		http.MethodPost:   model.AuditActionCreate,
		http.MethodPut:    model.AuditActionUpdate,
		http.MethodPatch:  model.AuditActionUpdate,
		http.MethodDelete: model.AuditActionDelete,
	}
	for method, want := range cases {
		got, ok := plain.ActionFor(method)
		require.True(t, ok, method)
		assert.Equal(t, want, got, method)
	}

	_, ok := plain.ActionFor(http.MethodGet)
	assert.False(t, ok)

	override := Route{Entity: "CheckIn", Action: model.AuditActionCheckIn}
	got, ok := override.ActionFor(http.MethodPost)
	require.True(t, ok)
	assert.Equal(t, model.AuditActionCheckIn, got)

	_, ok = override.ActionFor(http.MethodGet)
	assert.False(t, ok, "override never makes a read auditable")
}

func TestShouldRecord(t *testing.T) {
	assert.True(t, ShouldRecord(http.MethodPost, "/api/v1/checkins", http.StatusCreated))
	assert.False(t, ShouldRecord(http.MethodPost, "/api/v1/checkins", http.StatusBadRequest))
	assert.False(t, ShouldRecord(http.MethodGet, "/api/v1/checkins", http.StatusOK))
	assert.False(t, ShouldRecord(http.MethodPost, "/api/v1/auth/refresh", http.StatusOK))
	assert.False(t, ShouldRecord(http.MethodPost, "/health", http.StatusOK))
	assert.False(t, ShouldRecord(http.MethodPost, "/docs/index.html", http.StatusOK))
	assert.True(t, ShouldRecord(http.MethodPost, "/api/v1/auth/refresh-all", http.StatusOK))
}

func TestRedactReplacesSensitiveKeysAtAnyDepth(t *testing.T) {
	in := map[string]interface{}{
		"email":    "ana@example.com",
		"password": "hunter2",
		"otpCode":  "123456",
		"profile": map[string]interface{}{
			"refresh_token": "abc",
			"name":          "Ana",
		},
		"items": []interface{}{
			map[string]interface{}{"New-Password": "x", "ok": true},
		},
	}

	out := Redact(in)

	assert.Equal(t, "ana@example.com", out["email"])
	assert.Equal(t, RedactedMarker, out["password"])
	assert.Equal(t, RedactedMarker, out["otpCode"])

	profile := out["profile"].(map[string]interface{})
	assert.Equal(t, RedactedMarker, profile["refresh_token"])
	assert.Equal(t, "Ana", profile["name"])

	item := out["items"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, RedactedMarker, item["New-Password"])
	assert.Equal(t, true, item["ok"])

	assert.Equal(t, "hunter2", in["password"], "input must not be mutated")
}

type memoryWriter struct {
	mu   sync.Mutex
	logs []*model.AuditLog
	err  error
	gate chan struct{}
}

func (w *memoryWriter) Create(_ context.Context, log *model.AuditLog) error {
	if w.gate != nil {
		<-w.gate
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.logs = append(w.logs, log)
	return nil
}

func (w *memoryWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.logs)
}

func TestRecorderWritesRedactedEntries(t *testing.T) {
	writer := &memoryWriter{}
	rec := NewRecorder(writer, RecorderConfig{QueueSize: 8, Workers: 1}, zap.NewNop())

	id := "m-1"
	require.True(t, rec.Enqueue(Entry{
		Action:    model.AuditActionCreate,
		Entity:    "Member",
		EntityID:  &id,
		NewValues: map[string]interface{}{"password": "secret-value", "first_name": "Ana"},
		IPAddress: "10.0.0.1",
	}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, rec.Close(ctx))

	require.Equal(t, 1, writer.count())
	log := writer.logs[0]
	assert.Equal(t, RedactedMarker, log.NewValues["password"])
	assert.Equal(t, "Ana", log.NewValues["first_name"])
	require.NotNil(t, log.IPAddress)
	assert.Nil(t, log.UserAgent)
	assert.False(t, log.CreatedAt.IsZero())
}

func TestRecorderDropsWhenQueueFull(t *testing.T) {
	writer := &memoryWriter{gate: make(chan struct{})}
	rec := NewRecorder(writer, RecorderConfig{QueueSize: 1, Workers: 1}, zap.NewNop())

	// First entry is taken by the blocked worker, second fills the queue.
	require.True(t, rec.Enqueue(Entry{Entity: "A"}))
	require.Eventually(t, func() bool { return len(rec.queue) == 0 }, time.Second, 5*time.Millisecond)
	require.True(t, rec.Enqueue(Entry{Entity: "B"}))
	assert.False(t, rec.Enqueue(Entry{Entity: "C"}))

	close(writer.gate)
	require.NoError(t, rec.Close(context.Background()))
	assert.Equal(t, 2, writer.count())
	assert.False(t, rec.Enqueue(Entry{Entity: "D"}), "closed recorder rejects entries")
}

func TestRecorderSwallowsWriteErrors(t *testing.T) {
	writer := &memoryWriter{err: errors.New("db down")}
	rec := NewRecorder(writer, RecorderConfig{Workers: 1}, zap.NewNop())

	require.True(t, rec.Enqueue(Entry{Entity: "Payment"}))
	require.NoError(t, rec.Close(context.Background()))
	assert.Equal(t, 0, writer.count())
}
