package movement

import (
	"context"

	"tactics/navgrid/logging"
)

const (
	// EventStarted is emitted when an actor begins following a path.
	EventStarted logging.EventType = "movement.started"
	// EventTileEntered is emitted when the actor's current tile changes mid-move.
	EventTileEntered logging.EventType = "movement.tile_entered"
	// EventCompleted is emitted once when the actor reaches the end of its path.
	EventCompleted logging.EventType = "movement.completed"
	// EventStopped is emitted when a move is abandoned before completion.
	EventStopped logging.EventType = "movement.stopped"
)

// Location is a serialisable world position.
type Location struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// StartedPayload describes the path an actor set off on.
type StartedPayload struct {
	Tiles  []string `json:"tiles"`
	Cost   float64  `json:"cost"`
	Length float64  `json:"length"`
}

// TileEnteredPayload identifies the tile the actor moved onto.
type TileEnteredPayload struct {
	From     string  `json:"from"`
	To       string  `json:"to"`
	Distance float64 `json:"distance"`
}

// CompletedPayload captures where the actor came to rest.
type CompletedPayload struct {
	Tile     string   `json:"tile"`
	Distance float64  `json:"distance"`
	Location Location `json:"location"`
}

// StoppedPayload captures where an interrupted move ended.
type StoppedPayload struct {
	Tile     string   `json:"tile"`
	Distance float64  `json:"distance"`
	Location Location `json:"location"`
}

// Started publishes the beginning of a move.
func Started(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, traceID string, payload StartedPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventStarted,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Payload:  payload,
		TraceID:  traceID,
	})
}

// TileEntered publishes a tile transition.
func TileEntered(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, traceID string, payload TileEnteredPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventTileEntered,
		Tick:     tick,
		Actor:    actor,
		Targets:  []logging.EntityRef{logging.TileRef(payload.To)},
		Severity: logging.SeverityDebug,
		Payload:  payload,
		TraceID:  traceID,
	})
}

// Completed publishes the end of a move.
func Completed(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, traceID string, payload CompletedPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventCompleted,
		Tick:     tick,
		Actor:    actor,
		Targets:  []logging.EntityRef{logging.TileRef(payload.Tile)},
		Severity: logging.SeverityInfo,
		Payload:  payload,
		TraceID:  traceID,
	})
}

// Stopped publishes an interrupted move.
func Stopped(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, traceID string, payload StoppedPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventStopped,
		Tick:     tick,
		Actor:    actor,
		Targets:  []logging.EntityRef{logging.TileRef(payload.Tile)},
		Severity: logging.SeverityInfo,
		Payload:  payload,
		TraceID:  traceID,
	})
}

func publish(ctx context.Context, pub logging.Publisher, event logging.Event) {
	if pub == nil {
		return
	}
	event.Category = logging.CategoryMovement
	pub.Publish(ctx, event)
}
