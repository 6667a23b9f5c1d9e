package sse

import (
	"gymmaster/internal/event"
)

var staffRoles = []string{"ADMIN", "EMPLOYEE"}

// Subscribe forwards the front-desk relevant bus events to staff dashboards.
func (h *Hub) Subscribe(bus *event.Bus) {
	if h == nil || bus == nil {
		return
	}

	forward := map[string]string{
		event.CheckInOpened:     EventCheckInOpened,
		event.CheckInClosed:     EventCheckInClosed,
		event.VisitsAutoClosed:  EventVisitsAutoClosed,
		event.MembershipExpired: EventMembershipExpired,
		event.ClassCancelled:    EventClassCancelled,
	}
	for name, eventType := range forward {
		eventType := eventType
		bus.Subscribe(name, func(payload any) {
			h.SendToRoles(NewEvent(eventType, payload), staffRoles...)
		})
	}
}
