package sse

import (
	"strconv"
	"sync"
)

const defaultRingBufferSize = 500

// RingBuffer keeps the most recent events for Last-Event-ID replay.
type RingBuffer struct {
	mu    sync.RWMutex
	items []Event
	start int
	size  int
}

func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = defaultRingBufferSize
	}
	return &RingBuffer{items: make([]Event, capacity)}
}

func (rb *RingBuffer) Push(event Event) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	capacity := len(rb.items)
	if rb.size < capacity {
		rb.items[(rb.start+rb.size)%capacity] = event
		rb.size++
		return
	}
	rb.items[rb.start] = event
	rb.start = (rb.start + 1) % capacity
}

// Since returns buffered events with a numeric id greater than lastID.
// An empty or malformed lastID yields nothing: a fresh connection has no gap to fill.
func (rb *RingBuffer) Since(lastID string) []Event {
	lastSeq, err := strconv.ParseInt(lastID, 10, 64)
	if err != nil {
		return nil
	}

	rb.mu.RLock()
	defer rb.mu.RUnlock()

	capacity := len(rb.items)
	result := make([]Event, 0)
	for i := 0; i < rb.size; i++ {
		event := rb.items[(rb.start+i)%capacity]
		seq, err := strconv.ParseInt(event.ID, 10, 64)
		if err != nil || seq <= lastSeq {
			continue
		}
		result = append(result, event)
	}
	return result
}
