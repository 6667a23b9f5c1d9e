package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gymmaster/internal/metrics"
	"gymmaster/internal/model"
)

const (
	defaultQueueSize    = 1024
	defaultWorkers      = 2
	defaultWriteTimeout = 5 * time.Second
)

type Entry struct {
	UserID    *uuid.UUID
	Action    model.AuditAction
	Entity    string
	EntityID  *string
	OldValues map[string]interface{}
	NewValues map[string]interface{}
	IPAddress string
	UserAgent string
	At        time.Time
}

type Writer interface {
	Create(ctx context.Context, log *model.AuditLog) error
}

type RecorderConfig struct {
	QueueSize    int
	Workers      int
	WriteTimeout time.Duration
}

// Recorder persists audit entries off the request path. Entries are
// dropped, never blocked on, when the queue is full.
type Recorder struct {
	writer       Writer
	logger       *zap.Logger
	writeTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan Entry
	wg     sync.WaitGroup
}

func NewRecorder(writer Writer, cfg RecorderConfig, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}

	r := &Recorder{
		writer:       writer,
		logger:       logger,
		writeTimeout: cfg.WriteTimeout,
		queue:        make(chan Entry, cfg.QueueSize),
	}
	for i := 0; i < cfg.Workers; i++ {
		r.wg.Add(1)
		go r.work()
	}
	return r
}

// Enqueue never blocks. It reports false when the entry was dropped.
func (r *Recorder) Enqueue(entry Entry) bool {
	if r == nil {
		return false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		metrics.IncAuditEvent("dropped")
		return false
	}

	select {
	case r.queue <- entry:
		metrics.SetAuditQueueDepth(len(r.queue))
		return true
	default:
		metrics.IncAuditEvent("dropped")
		r.logger.Warn("audit queue full, entry dropped",
			zap.String("entity", entry.Entity),
			zap.String("action", string(entry.Action)),
		)
		return false
	}
}

// Close stops intake and waits for queued entries to be written or ctx to end.
func (r *Recorder) Close(ctx context.Context) error {
	if r == nil {
		return nil
	}

	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) work() {
	defer r.wg.Done()
	for entry := range r.queue {
		metrics.SetAuditQueueDepth(len(r.queue))
		r.write(entry)
	}
}

func (r *Recorder) write(entry Entry) {
	defer func() {
		if recovered := recover(); recovered != nil {
			metrics.IncAuditEvent("failed")
			r.logger.Error("audit write panicked", zap.Any("panic", recovered))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
	defer cancel()

	if err := r.writer.Create(ctx, entry.toModel()); err != nil {
		metrics.IncAuditEvent("failed")
		r.logger.Error("write audit log failed",
			zap.String("entity", entry.Entity),
			zap.String("action", string(entry.Action)),
			zap.Error(err),
		)
		return
	}
	metrics.IncAuditEvent("written")
}

func (e Entry) toModel() *model.AuditLog {
	at := e.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return &model.AuditLog{
		UserID:    e.UserID,
		Action:    e.Action,
		Entity:    e.Entity,
		EntityID:  e.EntityID,
		OldValues: Redact(e.OldValues),
		NewValues: Redact(e.NewValues),
		IPAddress: optionalString(e.IPAddress),
		UserAgent: optionalString(e.UserAgent),
		CreatedAt: at,
	}
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
