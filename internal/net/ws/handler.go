package ws

import (
	"encoding/json"
	"log"
	nethttp "net/http"

	"github.com/gorilla/websocket"

	"tactics/navgrid/internal/net/intake"
	"tactics/navgrid/internal/sim"
	"tactics/navgrid/internal/telemetry"
)

type HandlerConfig struct {
	Logger telemetry.Logger
	// Intake stages moveTo and stop requests. Without it the feed is
	// read-only and requests are rejected.
	Intake *intake.CommandContext
	// Snapshot provides the state sent when a session opens.
	Snapshot func() sim.Snapshot
}

// Handler upgrades HTTP requests into feed sessions.
type Handler struct {
	feed     *Feed
	logger   telemetry.Logger
	intake   *intake.CommandContext
	snapshot func() sim.Snapshot
	upgrader websocket.Upgrader
}

func NewHandler(feed *Feed, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	return &Handler{
		feed:     feed,
		logger:   logger,
		intake:   cfg.Intake,
		snapshot: cfg.Snapshot,
		upgrader: upgrader,
	}
}

// Handle serves a feed session. Query parameters actor, category and
// severity narrow the events the session receives.
func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	query := r.URL.Query()
	f, err := parseFilter(query.Get("actor"), query.Get("category"), query.Get("severity"))
	if err != nil {
		nethttp.Error(w, err.Error(), nethttp.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}

	sess := newSession(conn, f)
	if !h.feed.add(sess) {
		sess.close(websocket.CloseGoingAway, "feed closed")
		return
	}
	defer h.feed.remove(sess)

	if h.snapshot != nil {
		if !h.writeJSON(sess, snapshotMessage{Ver: ProtocolVersion, Type: messageTypeSnapshot, Snapshot: h.snapshot()}) {
			return
		}
	}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			h.logger.Printf("discarding malformed message from %s: %v", r.RemoteAddr, err)
			continue
		}
		if !h.handleCommand(sess, msg) {
			return
		}
	}
}

func (h *Handler) handleCommand(sess *session, msg clientMessage) bool {
	seq := uint64(0)
	if msg.CommandSeq != nil {
		seq = *msg.CommandSeq
	}
	reject := func(reason string, retry bool) bool {
		return h.writeJSON(sess, commandRejectMessage{
			Ver:    ProtocolVersion,
			Type:   messageTypeCommandReject,
			Seq:    seq,
			Reason: reason,
			Retry:  retry,
		})
	}

	if h.intake == nil {
		return reject(intake.RejectReadOnly, false)
	}
	cmd, ok, reason := intake.StageCommand(*h.intake, intake.Request{Type: msg.Type, Actor: msg.Actor, Tile: msg.Tile})
	if !ok {
		return reject(reason, reason == sim.CommandRejectQueueLimit)
	}
	return h.writeJSON(sess, commandAckMessage{
		Ver:       ProtocolVersion,
		Type:      messageTypeCommandAck,
		Seq:       seq,
		CommandID: cmd.ID,
		Tick:      cmd.OriginTick,
	})
}

func (h *Handler) writeJSON(sess *session, payload any) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Printf("failed to marshal feed message: %v", err)
		return true
	}
	return sess.WriteMessage(websocket.TextMessage, data) == nil
}
