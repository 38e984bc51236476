package ws

import (
	"tactics/navgrid/internal/sim"
	"tactics/navgrid/logging"
)

// ProtocolVersion is stamped on every server message.
const ProtocolVersion = 1

const (
	messageTypeEvent         = "event"
	messageTypeSnapshot      = "snapshot"
	messageTypeCommandAck    = "commandAck"
	messageTypeCommandReject = "commandReject"
)

type clientMessage struct {
	Ver        int     `json:"ver,omitempty"`
	Type       string  `json:"type"`
	Actor      string  `json:"actor"`
	Tile       string  `json:"tile,omitempty"`
	CommandSeq *uint64 `json:"seq,omitempty"`
}

type eventMessage struct {
	Type  string        `json:"type"`
	Event logging.Event `json:"event"`
}

type snapshotMessage struct {
	Ver      int          `json:"ver"`
	Type     string       `json:"type"`
	Snapshot sim.Snapshot `json:"snapshot"`
}

type commandAckMessage struct {
	Ver       int    `json:"ver"`
	Type      string `json:"type"`
	Seq       uint64 `json:"seq"`
	CommandID string `json:"commandId"`
	Tick      uint64 `json:"tick,omitempty"`
}

type commandRejectMessage struct {
	Ver    int    `json:"ver"`
	Type   string `json:"type"`
	Seq    uint64 `json:"seq"`
	Reason string `json:"reason"`
	Retry  bool   `json:"retry,omitempty"`
}
