// Package intake validates remote movement requests and stages them on the
// simulation loop.
package intake

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"tactics/navgrid/internal/sim"
)

// Request types accepted from clients.
const (
	TypeMoveTo = "moveTo"
	TypeStop   = "stop"
)

// Reasons returned for requests refused before reaching the loop.
const (
	RejectInvalidCommand = "invalid_command"
	RejectMissingActor   = "missing_actor"
	RejectMissingTile    = "missing_tile"
	RejectUnknownActor   = sim.CommandRejectUnknownActor
	RejectReadOnly       = "read_only"
)

// Request is the wire form of a movement command.
type Request struct {
	Type  string `json:"type"`
	Actor string `json:"actor"`
	Tile  string `json:"tile,omitempty"`
}

// Queue stages commands for the next tick.
type Queue interface {
	Enqueue(sim.Command) (bool, string)
}

type CommandContext struct {
	Queue    Queue
	HasActor func(string) bool
	Tick     func() uint64
	Now      func() time.Time
	NewID    func() string
}

// StageCommand converts req into a command and enqueues it. The returned
// reason explains a refusal.
func StageCommand(ctx CommandContext, req Request) (sim.Command, bool, string) {
	var zero sim.Command

	actor := strings.TrimSpace(req.Actor)
	command := sim.Command{ActorID: actor}
	switch req.Type {
	case TypeMoveTo:
		tile := strings.TrimSpace(req.Tile)
		if tile == "" {
			return zero, false, RejectMissingTile
		}
		command.Type = sim.CommandMoveTo
		command.MoveTo = &sim.MoveToCommand{Tile: tile}
	case TypeStop:
		command.Type = sim.CommandStop
	default:
		return zero, false, RejectInvalidCommand
	}

	if actor == "" {
		return zero, false, RejectMissingActor
	}
	if ctx.HasActor != nil && !ctx.HasActor(actor) {
		return zero, false, RejectUnknownActor
	}

	if ctx.NewID != nil {
		command.ID = ctx.NewID()
	} else {
		command.ID = uuid.NewString()
	}
	if ctx.Tick != nil {
		command.OriginTick = ctx.Tick()
	}
	if ctx.Now != nil {
		command.IssuedAt = ctx.Now()
	} else {
		command.IssuedAt = time.Now()
	}

	if ctx.Queue == nil {
		return zero, false, RejectReadOnly
	}
	if ok, reason := ctx.Queue.Enqueue(command); !ok {
		return zero, false, reason
	}

	return command, true, ""
}
