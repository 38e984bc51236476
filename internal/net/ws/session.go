package ws

import (
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tactics/navgrid/logging"
)

const writeWait = 10 * time.Second

// filter narrows the events a session receives. Empty fields match
// everything.
type filter struct {
	actor    string
	category string
	minimum  logging.Severity
}

func parseFilter(actor, category, severity string) (filter, error) {
	f := filter{actor: strings.TrimSpace(actor), category: strings.ToLower(strings.TrimSpace(category))}
	if severity != "" {
		level, err := logging.ParseSeverity(severity)
		if err != nil {
			return filter{}, err
		}
		f.minimum = level
	}
	return f, nil
}

func (f filter) matches(event logging.Event) bool {
	if event.Severity < f.minimum {
		return false
	}
	if f.category != "" && event.Category != f.category {
		return false
	}
	if f.actor != "" && event.Actor.ID != f.actor {
		return false
	}
	return true
}

// session is one connected feed client. Writes are serialised because the
// feed and the command replies share the connection.
type session struct {
	conn   *websocket.Conn
	filter filter

	mu     sync.Mutex
	closed bool
}

func newSession(conn *websocket.Conn, f filter) *session {
	return &session{conn: conn, filter: f}
}

func (s *session) WriteMessage(messageType int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return websocket.ErrCloseSent
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(messageType, data)
}

func (s *session) close(code int, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	message := websocket.FormatCloseMessage(code, text)
	s.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(writeWait))
	s.conn.Close()
}
