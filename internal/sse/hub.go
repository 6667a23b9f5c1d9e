package sse

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"gymmaster/internal/metrics"
)

const (
	heartbeatInterval     = 30 * time.Second
	backpressureFullLimit = 5
)

// Hub fans live events out to connected dashboards. One connection per user;
// a newer connection replaces the older one.
type Hub struct {
	clients sync.Map
	history *RingBuffer

	logger   *zap.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewHub(logger *zap.Logger) *Hub {
	hub := newHub(logger)
	go hub.heartbeat(heartbeatInterval)
	return hub
}

func newHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		history: NewRingBuffer(defaultRingBufferSize),
		logger:  logger,
		stopCh:  make(chan struct{}),
	}
}

func (h *Hub) Register(client *Client) {
	if h == nil || client == nil || client.UserID == "" {
		return
	}

	if previous, loaded := h.clients.Swap(client.UserID, client); loaded {
		if old, ok := previous.(*Client); ok && old != client {
			old.Close()
		}
	}
	metrics.SetSSEClients(h.ConnectedCount())
}

// Unregister removes client only if it is still the registered connection for its user.
func (h *Hub) Unregister(client *Client) {
	if h == nil || client == nil {
		return
	}
	if h.clients.CompareAndDelete(client.UserID, client) {
		client.Close()
	}
	metrics.SetSSEClients(h.ConnectedCount())
}

func (h *Hub) Broadcast(event Event) {
	h.publish(event)
}

func (h *Hub) SendToRoles(event Event, roles ...string) {
	event.roles = append([]string(nil), roles...)
	h.publish(event)
}

func (h *Hub) SendToUser(userID string, event Event) {
	if userID == "" {
		return
	}
	event.userID = userID
	h.publish(event)
}

// Replay returns the buffered events after lastID that client is allowed to see.
func (h *Hub) Replay(client *Client, lastID string) []Event {
	if h == nil {
		return nil
	}
	events := h.history.Since(lastID)
	visible := events[:0]
	for _, event := range events {
		if event.visibleTo(client) {
			visible = append(visible, event)
		}
	}
	return visible
}

func (h *Hub) Close() {
	if h == nil {
		return
	}
	h.stopOnce.Do(func() {
		close(h.stopCh)
	})
}

func (h *Hub) ConnectedCount() int {
	if h == nil {
		return 0
	}
	count := 0
	h.clients.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}

func (h *Hub) publish(event Event) {
	if h == nil {
		return
	}
	if event.Type != EventHeartbeat {
		h.history.Push(event)
	}
	h.clients.Range(func(_, value any) bool {
		client, ok := value.(*Client)
		if ok && event.visibleTo(client) {
			h.dispatch(client, event)
		}
		return true
	})
}

func (h *Hub) dispatch(client *Client, event Event) {
	queued, streak := client.offer(event)
	if queued || streak == 0 {
		return
	}
	h.logger.Warn("drop sse event due to full buffer",
		zap.String("user_id", client.UserID),
		zap.String("type", event.Type),
		zap.Int32("full_streak", streak),
	)
	if streak >= backpressureFullLimit {
		h.logger.Warn("disconnect slow sse client", zap.String("user_id", client.UserID))
		h.Unregister(client)
	}
}

func (h *Hub) heartbeat(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopCh:
			return
		case now := <-ticker.C:
			h.Broadcast(NewEvent(EventHeartbeat, map[string]any{
				"ts": now.UTC().Format(time.RFC3339Nano),
			}))
		}
	}
}
