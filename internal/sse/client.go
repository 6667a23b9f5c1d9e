package sse

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Buffered per connection; a front-desk screen that stalls for longer than
// this many events starts losing them.
const clientBufferSize = 256

// Client is one open event stream. Role is the JWT role of the viewer and
// decides which staff-only events it sees.
type Client struct {
	UserID      string
	Role        string
	ConnectedAt time.Time
	Ch          chan Event
	Done        chan struct{}

	dropped   atomic.Int32
	closeOnce sync.Once
}

func NewClient(userID, role string) *Client {
	return &Client{
		UserID:      userID,
		Role:        strings.ToUpper(strings.TrimSpace(role)),
		ConnectedAt: time.Now().UTC(),
		Ch:          make(chan Event, clientBufferSize),
		Done:        make(chan struct{}),
	}
}

// Close is safe to call more than once.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() { close(c.Done) })
}

func (c *Client) hasRole(role string) bool {
	return strings.EqualFold(c.Role, role)
}

// offer hands the event to the stream without blocking. It reports whether the
// event was queued and how many events in a row have been dropped.
func (c *Client) offer(event Event) (bool, int32) {
	select {
	case <-c.Done:
		return false, 0
	case c.Ch <- event:
		c.dropped.Store(0)
		return true, 0
	default:
		return false, c.dropped.Add(1)
	}
}
