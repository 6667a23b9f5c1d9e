package event

import (
	"strings"
	"sync"
	"time"
)

const (
	CheckInOpened     = "checkin.opened"
	CheckInClosed     = "checkin.closed"
	VisitsAutoClosed  = "checkin.auto_closed"
	MembershipExpired = "membership.expired"
	ClassCancelled    = "class.cancelled"
	PasswordChanged   = "user.password_changed"
)

type CheckInPayload struct {
	CheckInID  string     `json:"check_in_id"`
	MemberID   string     `json:"member_id"`
	MemberName string     `json:"member_name,omitempty"`
	BranchID   string     `json:"branch_id"`
	CheckInAt  time.Time  `json:"check_in_at"`
	CheckOutAt *time.Time `json:"check_out_at,omitempty"`
	Source     string     `json:"source"`
}

type VisitsAutoClosedPayload struct {
	Closed    int64     `json:"closed"`
	Threshold string    `json:"threshold"`
	At        time.Time `json:"at"`
}

type MembershipExpiredPayload struct {
	MembershipID string    `json:"membership_id"`
	MemberID     string    `json:"member_id"`
	EndDate      time.Time `json:"end_date"`
}

type ClassCancelledPayload struct {
	ClassID              string `json:"class_id"`
	Name                 string `json:"name"`
	CancelledReservation int64  `json:"cancelled_reservations"`
}

type PasswordChangedPayload struct {
	UserID string    `json:"user_id"`
	At     time.Time `json:"at"`
}

type Handler func(payload any)

// TapHandler receives every published event with its name.
type TapHandler func(event string, payload any)

// Bus is an in-process fan-out; handlers run on their own goroutines.
type Bus struct {
	handlers sync.Map
	mu       sync.Mutex
	taps     []TapHandler
}

func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) Subscribe(event string, handler Handler) {
	if b == nil || handler == nil {
		return
	}

	eventName := strings.TrimSpace(event)
	if eventName == "" {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	handlers := make([]Handler, 0, 1)
	if current, ok := b.handlers.Load(eventName); ok {
		if casted, valid := current.([]Handler); valid {
			handlers = append(handlers, casted...)
		}
	}
	handlers = append(handlers, handler)
	b.handlers.Store(eventName, handlers)
}

func (b *Bus) Tap(handler TapHandler) {
	if b == nil || handler == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.taps = append(b.taps, handler)
}

func (b *Bus) Publish(event string, payload any) {
	if b == nil {
		return
	}

	eventName := strings.TrimSpace(event)
	if eventName == "" {
		return
	}

	b.mu.Lock()
	taps := append([]TapHandler(nil), b.taps...)
	b.mu.Unlock()
	for _, tap := range taps {
		go tap(eventName, payload)
	}

	current, ok := b.handlers.Load(eventName)
	if !ok {
		return
	}
	handlers, ok := current.([]Handler)
	if !ok {
		return
	}
	for _, handler := range handlers {
		go handler(payload)
	}
}
