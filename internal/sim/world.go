package sim

import (
	"context"
	"errors"
	"fmt"

	"tactics/navgrid/internal/movement"
	"tactics/navgrid/internal/scene"
	"tactics/navgrid/logging"
	"tactics/navgrid/logging/simulation"
)

const (
	// CommandRejectUnknownActor indicates the command names no scene actor.
	CommandRejectUnknownActor = "unknown_actor"
	// CommandRejectUnknownTile indicates the MoveTo target is not on the grid.
	CommandRejectUnknownTile = "unknown_tile"
	// CommandRejectNoPath indicates no path within the actor's range exists.
	CommandRejectNoPath = "no_path"
	// CommandRejectBusy indicates the actor is already moving.
	CommandRejectBusy = "busy"
	// CommandRejectInvalid indicates a malformed command.
	CommandRejectInvalid = "invalid"
)

// ErrCommandRejected wraps every command the world refuses.
var ErrCommandRejected = errors.New("sim: command rejected")

// World applies commands to a built scene and advances its executors.
type World struct {
	scene *scene.Scene
	deps  Deps
}

// NewWorld wraps a scene. A nil tick counter is replaced with a fresh one.
func NewWorld(sc *scene.Scene, deps Deps) *World {
	if sc == nil {
		return nil
	}
	if deps.Publisher == nil {
		deps.Publisher = logging.NopPublisher()
	}
	if deps.Ticks == nil {
		deps.Ticks = NewTickCounter()
	}
	return &World{scene: sc, deps: deps}
}

func (w *World) Deps() Deps {
	if w == nil {
		return Deps{}
	}
	return w.deps
}

func (w *World) Scene() *scene.Scene {
	if w == nil {
		return nil
	}
	return w.scene
}

// Apply runs commands in order. Refused commands are reported as
// command_dropped events and joined into the returned error.
func (w *World) Apply(cmds []Command) error {
	if w == nil {
		return nil
	}
	var errs []error
	for _, cmd := range cmds {
		reason := w.apply(cmd)
		if reason == "" {
			continue
		}
		simulation.CommandDropped(context.Background(), w.deps.Publisher, w.deps.Ticks.Current(), logging.ActorRef(cmd.ActorID), cmd.ID, simulation.CommandDroppedPayload{
			Reason:  reason,
			Command: cmd.String(),
		})
		if w.deps.Metrics != nil {
			w.deps.Metrics.Add(commandDroppedMetricKey, 1)
		}
		errs = append(errs, fmt.Errorf("%w: %s: %s", ErrCommandRejected, cmd, reason))
	}
	return errors.Join(errs...)
}

func (w *World) apply(cmd Command) string {
	actor, err := w.scene.Actor(cmd.ActorID)
	if err != nil {
		return CommandRejectUnknownActor
	}
	switch cmd.Type {
	case CommandStop:
		actor.Executor.Stop()
		return ""
	case CommandMoveTo:
		if cmd.MoveTo == nil {
			return CommandRejectInvalid
		}
		target, err := w.scene.ResolveTile(cmd.MoveTo.Tile)
		if err != nil {
			return CommandRejectUnknownTile
		}
		if actor.Executor.Moving() {
			return CommandRejectBusy
		}
		if !actor.Executor.MoveTo(target) {
			return CommandRejectNoPath
		}
		return ""
	default:
		return CommandRejectInvalid
	}
}

// Step advances every moving actor by dt seconds and moves its blocker.
func (w *World) Step(dt float64) {
	if w == nil {
		return
	}
	for _, actor := range w.scene.Actors() {
		if !actor.Executor.Moving() {
			continue
		}
		actor.Executor.Advance(dt)
		w.scene.SyncBlocker(actor.ID)
	}
}

// Snapshot reports every actor's state at the current tick.
func (w *World) Snapshot() Snapshot {
	if w == nil {
		return Snapshot{}
	}
	actors := w.scene.Actors()
	snapshot := Snapshot{Tick: w.deps.Ticks.Current(), Actors: make([]ActorSnapshot, 0, len(actors))}
	for _, actor := range actors {
		snapshot.Actors = append(snapshot.Actors, actorSnapshot(actor))
	}
	return snapshot
}

func actorSnapshot(actor *scene.Actor) ActorSnapshot {
	exec := actor.Executor
	location := actor.Pawn.Location()
	entry := ActorSnapshot{
		ID:       actor.ID,
		State:    exec.State().String(),
		Location: [3]float64{location.X(), location.Y(), location.Z()},
		Rotation: actor.Pawn.Rotation(),
		Distance: exec.Distance(),
		TraceID:  exec.TraceID(),
	}
	if tile := exec.Tile(); tile != nil {
		entry.Tile = tile.Label()
	}
	if exec.State() == movement.Moving || exec.State() == movement.PathReady {
		entry.Path = exec.Path().Labels()
	}
	return entry
}

var _ EngineCore = (*World)(nil)
