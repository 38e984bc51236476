package sim

import (
	"fmt"
	"time"
)

// CommandType enumerates the supported simulation commands.
type CommandType string

const (
	CommandMoveTo CommandType = "MoveTo"
	CommandStop   CommandType = "Stop"
)

// MoveToCommand names the tile an actor should walk to. Tile accepts a tile
// name or numeric id.
type MoveToCommand struct {
	Tile string `json:"tile"`
}

// Command represents an intent captured for processing on the next tick.
type Command struct {
	ID         string         `json:"id,omitempty"`
	OriginTick uint64         `json:"originTick"`
	ActorID    string         `json:"actorId"`
	Type       CommandType    `json:"type"`
	IssuedAt   time.Time      `json:"issuedAt"`
	MoveTo     *MoveToCommand `json:"moveTo,omitempty"`
}

func (c Command) String() string {
	if c.Type == CommandMoveTo && c.MoveTo != nil {
		return fmt.Sprintf("%s %s->%s", c.Type, c.ActorID, c.MoveTo.Tile)
	}
	return fmt.Sprintf("%s %s", c.Type, c.ActorID)
}
