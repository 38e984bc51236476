package scene

import (
	"fmt"
	"sort"
	"strconv"

	"tactics/navgrid/internal/geom"
	"tactics/navgrid/internal/movement"
	"tactics/navgrid/internal/navgrid"
	"tactics/navgrid/internal/physics"
	"tactics/navgrid/internal/spline"
	"tactics/navgrid/internal/telemetry"
	"tactics/navgrid/logging"
)

// Options wires built executors and the grid into the event pipeline.
type Options struct {
	Publisher logging.Publisher
	Metrics   telemetry.Metrics
	Tick      func() uint64
	TraceID   func() string
}

// Actor is a built actor: its body, executor and blocker shape.
type Actor struct {
	ID       string
	Pawn     *movement.Pawn
	Executor *movement.Executor
	Shape    navgrid.CollisionShape
}

// Command is a resolved script entry.
type Command struct {
	Tick   uint64
	Actor  string
	Target *navgrid.Tile
	Stop   bool
}

// Scene is a built document.
type Scene struct {
	Name  string
	Grid  *navgrid.Grid
	Space *physics.Space

	actors map[string]*Actor
	order  []string
	script []Command
}

// Build constructs the grid, space and executors described by doc.
func Build(doc Document, opts Options) (*Scene, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	if opts.Publisher == nil {
		opts.Publisher = logging.NopPublisher()
	}

	grid := navgrid.NewGrid(navgrid.Config{TileSpacing: doc.Grid.TileSpacing})
	grid.SetPublisher(opts.Publisher)
	grid.SetMetrics(opts.Metrics)
	for i, spec := range doc.Tiles {
		modes, err := navgrid.ParseMovementModes(spec.Modes...)
		if err != nil {
			return nil, fmt.Errorf("scene: tile %d: %w", i, err)
		}
		tile := grid.AddTile(navgrid.TileConfig{
			Name:       spec.Name,
			Location:   spec.Location.Vec3(),
			Rotation:   spec.Rotation,
			Extent:     spec.Extent.Vec3(),
			Cost:       spec.Cost,
			Modes:      modes,
			PawnOffset: spec.PawnOffset.Vec3(),
		})
		if spec.Unreachable {
			tile.SetModes(0)
		}
	}

	space := physics.NewSpace()
	for _, spec := range doc.Obstacles {
		if err := space.AddObstacle(physics.Obstacle{Name: spec.Name, Min: spec.Min.Vec3(), Max: spec.Max.Vec3()}); err != nil {
			return nil, fmt.Errorf("scene: %w", err)
		}
	}
	grid.SetSweeper(space)

	scene := &Scene{
		Name:   doc.Name,
		Grid:   grid,
		Space:  space,
		actors: make(map[string]*Actor, len(doc.Actors)),
	}
	deps := movement.Deps{Publisher: opts.Publisher, Tick: opts.Tick, TraceID: opts.TraceID}
	for _, spec := range doc.Actors {
		actor, err := scene.buildActor(spec, deps)
		if err != nil {
			return nil, err
		}
		scene.actors[actor.ID] = actor
		scene.order = append(scene.order, actor.ID)
		scene.SyncBlocker(actor.ID)
	}

	for _, spec := range doc.Script {
		command := Command{Tick: spec.Tick, Actor: spec.Actor, Stop: spec.Stop}
		if !spec.Stop && spec.MoveTo != "" {
			target, err := scene.ResolveTile(spec.MoveTo)
			if err != nil {
				return nil, err
			}
			command.Target = target
		}
		scene.script = append(scene.script, command)
	}
	sort.SliceStable(scene.script, func(i, j int) bool { return scene.script[i].Tick < scene.script[j].Tick })
	return scene, nil
}

func (s *Scene) buildActor(spec ActorSpec, deps movement.Deps) (*Actor, error) {
	tile, err := s.ResolveTile(spec.Tile)
	if err != nil {
		return nil, fmt.Errorf("scene: actor %q: %w", spec.ID, err)
	}
	cfg, err := spec.Movement.config()
	if err != nil {
		return nil, fmt.Errorf("scene: actor %q: %w", spec.ID, err)
	}
	if spec.Shape != nil {
		cfg.Shape = navgrid.CollisionShape{
			Radius:     spec.Shape.Radius,
			HalfHeight: spec.Shape.HalfHeight,
			Offset:     spec.Shape.Offset.Vec3(),
			Owner:      spec.ID,
		}
	}

	pawn := movement.NewPawn(tile.PawnLocation(), spec.Facing)
	executor := movement.NewExecutor(spec.ID, s.Grid, pawn, cfg, deps)
	executor.PlaceOn(tile)
	actor := &Actor{ID: spec.ID, Pawn: pawn, Executor: executor, Shape: cfg.Shape}
	executor.Subscribe(func(movement.Completion) { s.SyncBlocker(actor.ID) })
	return actor, nil
}

func (spec MovementSpec) config() (movement.Config, error) {
	cfg := movement.DefaultConfig()
	if spec.Range > 0 {
		cfg.MovementRange = spec.Range
	}
	if spec.MaxSpeed > 0 {
		cfg.MaxSpeed = spec.MaxSpeed
	}
	if spec.MaxWalkAngle > 0 {
		cfg.MaxWalkAngle = spec.MaxWalkAngle
	}
	if len(spec.Modes) > 0 {
		modes, err := navgrid.ParseMovementModes(spec.Modes...)
		if err != nil {
			return movement.Config{}, err
		}
		cfg.Modes = modes
	}
	mode, err := spline.ParseMode(spec.Trajectory)
	if err != nil {
		return movement.Config{}, err
	}
	cfg.TrajectoryMode = mode
	if spec.LockRoll != nil {
		cfg.LockRoll = *spec.LockRoll
	}
	if spec.LockPitch != nil {
		cfg.LockPitch = *spec.LockPitch
	}
	if spec.LockYaw != nil {
		cfg.LockYaw = *spec.LockYaw
	}
	return cfg, nil
}

// ResolveTile finds a tile by name, then by numeric id.
func (s *Scene) ResolveTile(ref string) (*navgrid.Tile, error) {
	if tile := s.Grid.TileByName(ref); tile != nil {
		return tile, nil
	}
	if id, err := strconv.Atoi(ref); err == nil {
		if tile := s.Grid.Tile(id); tile != nil {
			return tile, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTile, ref)
}

// Actor returns the actor with the given id.
func (s *Scene) Actor(id string) (*Actor, error) {
	actor, ok := s.actors[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownActor, id)
	}
	return actor, nil
}

// Actors lists actors in document order.
func (s *Scene) Actors() []*Actor {
	actors := make([]*Actor, 0, len(s.order))
	for _, id := range s.order {
		actors = append(actors, s.actors[id])
	}
	return actors
}

// Script returns the resolved script ordered by tick.
func (s *Scene) Script() []Command {
	return append([]Command(nil), s.script...)
}

// SyncBlocker moves the actor's blocker to its pawn. Actors without a shape
// have no blocker.
func (s *Scene) SyncBlocker(id string) {
	actor, ok := s.actors[id]
	if !ok || actor.Shape.IsZero() {
		return
	}
	location := actor.Pawn.Location().Add(actor.Shape.Offset)
	s.Space.PlaceActor(actor.ID, location, actor.Shape.Radius, actor.Shape.HalfHeight)
}

// SyncBlockers moves every blocker to its pawn.
func (s *Scene) SyncBlockers() {
	for _, id := range s.order {
		s.SyncBlocker(id)
	}
}

// Locations reports each actor's current location keyed by id.
func (s *Scene) Locations() map[string]geom.Vec3 {
	locations := make(map[string]geom.Vec3, len(s.actors))
	for id, actor := range s.actors {
		locations[id] = actor.Pawn.Location()
	}
	return locations
}
