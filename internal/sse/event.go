package sse

import (
	"encoding/json"
	"strconv"
	"sync/atomic"
)

const (
	EventHeartbeat         = "heartbeat"
	EventCheckInOpened     = "checkin.opened"
	EventCheckInClosed     = "checkin.closed"
	EventVisitsAutoClosed  = "checkin.auto_closed"
	EventMembershipExpired = "membership.expired"
	EventClassCancelled    = "class.cancelled"
)

// Event is one SSE frame. Audience fields are never serialised; an event
// with no audience goes to everyone.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data string `json:"data"`

	roles  []string
	userID string
}

var eventSeq int64

func NewEvent(eventType string, payload any) Event {
	id := atomic.AddInt64(&eventSeq, 1)
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte("null")
	}

	return Event{
		ID:   strconv.FormatInt(id, 10),
		Type: eventType,
		Data: string(data),
	}
}

func (e Event) visibleTo(c *Client) bool {
	if c == nil {
		return false
	}
	if e.userID != "" {
		return e.userID == c.UserID
	}
	if len(e.roles) == 0 {
		return true
	}
	for _, role := range e.roles {
		if c.hasRole(role) {
			return true
		}
	}
	return false
}
