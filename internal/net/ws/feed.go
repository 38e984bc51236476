package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"tactics/navgrid/internal/telemetry"
	"tactics/navgrid/logging"
)

const (
	feedSubscribersMetricKey = "ws_feed_subscribers"
	feedSentMetricKey        = "ws_feed_messages_total"
	feedEvictedMetricKey     = "ws_feed_evicted_total"
)

// Feed is a logging sink that forwards events to websocket sessions.
type Feed struct {
	mu       sync.Mutex
	sessions map[*session]struct{}
	closed   bool
	logger   telemetry.Logger
	metrics  telemetry.Metrics
}

var _ logging.Sink = (*Feed)(nil)

// NewFeed constructs an empty feed. Nil collaborators are ignored.
func NewFeed(logger telemetry.Logger, metrics telemetry.Metrics) *Feed {
	return &Feed{
		sessions: make(map[*session]struct{}),
		logger:   logger,
		metrics:  metrics,
	}
}

// Subscribers reports the number of connected sessions.
func (f *Feed) Subscribers() int {
	if f == nil {
		return 0
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

func (f *Feed) add(s *session) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	f.sessions[s] = struct{}{}
	f.storeSubscribersLocked()
	return true
}

func (f *Feed) remove(s *session) {
	f.mu.Lock()
	if _, ok := f.sessions[s]; ok {
		delete(f.sessions, s)
		f.storeSubscribersLocked()
	}
	f.mu.Unlock()
	s.close(websocket.CloseNormalClosure, "")
}

func (f *Feed) storeSubscribersLocked() {
	if f.metrics != nil {
		f.metrics.Store(feedSubscribersMetricKey, uint64(len(f.sessions)))
	}
}

// Write sends event to every session whose filter accepts it. Sessions that
// fail to receive are dropped.
func (f *Feed) Write(event logging.Event) error {
	if f == nil {
		return nil
	}
	f.mu.Lock()
	targets := make([]*session, 0, len(f.sessions))
	for s := range f.sessions {
		if s.filter.matches(event) {
			targets = append(targets, s)
		}
	}
	f.mu.Unlock()
	if len(targets) == 0 {
		return nil
	}

	data, err := json.Marshal(eventMessage{Type: messageTypeEvent, Event: event})
	if err != nil {
		return fmt.Errorf("encode feed event: %w", err)
	}
	for _, s := range targets {
		if err := s.WriteMessage(websocket.TextMessage, data); err != nil {
			if f.logger != nil {
				f.logger.Printf("dropping feed subscriber: %v", err)
			}
			if f.metrics != nil {
				f.metrics.Add(feedEvictedMetricKey, 1)
			}
			f.remove(s)
			continue
		}
		if f.metrics != nil {
			f.metrics.Add(feedSentMetricKey, 1)
		}
	}
	return nil
}

// Close disconnects every session and refuses new ones.
func (f *Feed) Close(context.Context) error {
	if f == nil {
		return nil
	}
	f.mu.Lock()
	f.closed = true
	sessions := make([]*session, 0, len(f.sessions))
	for s := range f.sessions {
		sessions = append(sessions, s)
	}
	f.sessions = make(map[*session]struct{})
	f.storeSubscribersLocked()
	f.mu.Unlock()

	for _, s := range sessions {
		s.close(websocket.CloseGoingAway, "shutting down")
	}
	return nil
}
