package sinks

import (
	"context"
	"sync"

	"tactics/navgrid/logging"
)

// MemorySink retains the most recent events it receives in a fixed ring.
// Tests and the recent events endpoint read from it.
type MemorySink struct {
	mu      sync.RWMutex
	events  []logging.Event
	head    int
	count   int
	evicted uint64
}

// NewMemorySink keeps up to capacity events. A non-positive capacity uses
// logging.DefaultMemoryCapacity.
func NewMemorySink(capacity int) *MemorySink {
	if capacity <= 0 {
		capacity = logging.DefaultMemoryCapacity
	}
	return &MemorySink{events: make([]logging.Event, capacity)}
}

// Write stores event, evicting the oldest one when the ring is full.
func (s *MemorySink) Write(event logging.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cloned := logging.CloneEvent(event)
	if s.count == len(s.events) {
		s.events[s.head] = cloned
		s.head = (s.head + 1) % len(s.events)
		s.evicted++
		return nil
	}
	s.events[(s.head+s.count)%len(s.events)] = cloned
	s.count++
	return nil
}

// Events returns the retained events, oldest first.
func (s *MemorySink) Events() []logging.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	copied := make([]logging.Event, 0, s.count)
	for i := 0; i < s.count; i++ {
		copied = append(copied, s.events[(s.head+i)%len(s.events)])
	}
	return copied
}

// EventsOfType filters the retained events by type.
func (s *MemorySink) EventsOfType(eventType logging.EventType) []logging.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []logging.Event
	for i := 0; i < s.count; i++ {
		event := s.events[(s.head+i)%len(s.events)]
		if event.Type == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}

func (s *MemorySink) Capacity() int {
	return len(s.events)
}

// Evicted counts events pushed out of the ring since the last Reset.
func (s *MemorySink) Evicted() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.evicted
}

func (s *MemorySink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.events)
	s.head = 0
	s.count = 0
	s.evicted = 0
}

func (s *MemorySink) Close(context.Context) error {
	return nil
}
