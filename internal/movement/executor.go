package movement

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"tactics/navgrid/internal/geom"
	"tactics/navgrid/internal/navgrid"
	"tactics/navgrid/internal/spline"
	"tactics/navgrid/logging"
	movementlog "tactics/navgrid/logging/movement"
)

// State is the executor's lifecycle stage.
type State int

const (
	Idle State = iota
	PathReady
	Moving
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case PathReady:
		return "path_ready"
	case Moving:
		return "moving"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Completion describes a finished move.
type Completion struct {
	ActorID  string
	Tile     *navgrid.Tile
	Path     navgrid.Path
	Distance float64
	TraceID  string
	Tick     uint64
}

// Deps carries the collaborators an executor reports through.
type Deps struct {
	Publisher logging.Publisher
	// Tick stamps published events; nil stamps zero.
	Tick func() uint64
	// TraceID names each movement request; nil uses random UUIDs.
	TraceID func() string
	// Trajectory replaces the default spline built from Config.TrajectoryMode.
	Trajectory Trajectory
}

var _ Trajectory = (*spline.Spline)(nil)

type tileInterval struct {
	from float64
	to   float64
	tile *navgrid.Tile
}

type completionObserver struct {
	id uint64
	fn func(Completion)
}

// Executor walks one actor along grid paths over time.
type Executor struct {
	id     string
	grid   *navgrid.Grid
	body   Body
	config Config
	deps   Deps

	trajectory Trajectory
	state      State
	distance   float64
	tile       *navgrid.Tile
	path       navgrid.Path
	lookup     []tileInterval
	traceID    string

	observers    []completionObserver
	nextObserver uint64
}

// NewExecutor binds an actor's body to a grid.
func NewExecutor(id string, grid *navgrid.Grid, body Body, cfg Config, deps Deps) *Executor {
	if grid == nil || body == nil {
		return nil
	}
	if deps.Publisher == nil {
		deps.Publisher = logging.NopPublisher()
	}
	if deps.TraceID == nil {
		deps.TraceID = uuid.NewString
	}
	trajectory := deps.Trajectory
	if trajectory == nil {
		trajectory = spline.New(cfg.TrajectoryMode)
	}
	return &Executor{
		id:         id,
		grid:       grid,
		body:       body,
		config:     cfg.normalized(),
		deps:       deps,
		trajectory: trajectory,
	}
}

func (e *Executor) ActorID() string {
	if e == nil {
		return ""
	}
	return e.id
}

func (e *Executor) Config() Config {
	if e == nil {
		return DefaultConfig()
	}
	return e.config
}

func (e *Executor) Body() Body {
	if e == nil {
		return nil
	}
	return e.body
}

func (e *Executor) Grid() *navgrid.Grid {
	if e == nil {
		return nil
	}
	return e.grid
}

func (e *Executor) State() State {
	if e == nil {
		return Idle
	}
	return e.state
}

// Moving reports whether Advance currently moves the actor.
func (e *Executor) Moving() bool {
	return e.State() == Moving
}

// Distance is how far along the trajectory the actor has travelled.
func (e *Executor) Distance() float64 {
	if e == nil {
		return 0
	}
	return e.distance
}

// Tile is the tile the actor currently stands on. Before the first move or
// placement it is the tile under the body, if any.
func (e *Executor) Tile() *navgrid.Tile {
	if e == nil {
		return nil
	}
	return e.currentTile()
}

// Path is the most recently created path.
func (e *Executor) Path() navgrid.Path {
	if e == nil {
		return navgrid.Path{}
	}
	return e.path
}

func (e *Executor) Trajectory() Trajectory {
	if e == nil {
		return nil
	}
	return e.trajectory
}

// TraceID identifies the current movement request.
func (e *Executor) TraceID() string {
	if e == nil {
		return ""
	}
	return e.traceID
}

// PlaceOn puts the actor on tile. It is refused while moving and drops a
// prepared path, returning the executor to Idle.
func (e *Executor) PlaceOn(tile *navgrid.Tile) bool {
	if e == nil || tile == nil || tile.Grid() != e.grid || e.state == Moving {
		return false
	}
	if e.state == PathReady {
		e.clearPath()
		e.state = Idle
	}
	e.tile = tile
	e.body.SetLocation(tile.PawnLocation())
	return true
}

// Subscribe registers fn to run when a move completes. The returned function
// removes the registration.
func (e *Executor) Subscribe(fn func(Completion)) (unsubscribe func()) {
	if e == nil || fn == nil {
		return func() {}
	}
	e.nextObserver++
	id := e.nextObserver
	e.observers = append(e.observers, completionObserver{id: id, fn: fn})
	return func() {
		for i, observer := range e.observers {
			if observer.id == id {
				e.observers = append(e.observers[:i:i], e.observers[i+1:]...)
				return
			}
		}
	}
}

func (e *Executor) pathOptions() navgrid.PathOptions {
	shape := e.config.Shape
	if shape.Owner == "" {
		shape.Owner = e.id
	}
	return navgrid.PathOptions{
		MaxCost:      e.config.MovementRange,
		Modes:        e.config.Modes,
		MaxWalkAngle: e.config.MaxWalkAngle,
		Shape:        shape,
	}
}

// currentTile resolves the actor's tile, falling back to the tile under the
// body. It does not record the fallback.
func (e *Executor) currentTile() *navgrid.Tile {
	if e.tile != nil {
		return e.tile
	}
	return e.grid.TileAt(e.body.Location())
}

// CreatePath plans a move to target within MovementRange. On failure the
// executor is left unchanged.
func (e *Executor) CreatePath(target *navgrid.Tile) bool {
	if e == nil || target == nil || e.state == Moving {
		return false
	}
	current := e.currentTile()
	if current == nil {
		return false
	}
	path, ok := e.grid.FindPath(current, target, e.pathOptions())
	if !ok {
		return false
	}
	e.tile = current
	e.installPath(path)
	e.state = PathReady
	return true
}

func (e *Executor) installPath(path navgrid.Path) {
	e.path = path
	e.distance = 0
	e.traceID = e.deps.TraceID()
	e.trajectory.Clear()
	for _, tile := range path.Tiles {
		e.trajectory.AddPoint(tile.PawnLocation())
	}

	length := e.trajectory.Length()
	last := len(path.Tiles) - 1
	e.lookup = make([]tileInterval, 0, len(path.Tiles))
	for i, tile := range path.Tiles {
		from := 0.0
		if i > 0 {
			from = (e.trajectory.DistanceAtPoint(i-1) + e.trajectory.DistanceAtPoint(i)) / 2
		}
		to := length
		if i < last {
			to = (e.trajectory.DistanceAtPoint(i) + e.trajectory.DistanceAtPoint(i+1)) / 2
		}
		e.lookup = append(e.lookup, tileInterval{from: from, to: to, tile: tile})
	}
}

func (e *Executor) clearPath() {
	e.path = navgrid.Path{}
	e.lookup = nil
	e.distance = 0
	e.trajectory.Clear()
}

// tileAtDistance finds the tile owning distance along the current path.
func (e *Executor) tileAtDistance(distance float64) *navgrid.Tile {
	if len(e.lookup) == 0 {
		return nil
	}
	idx := sort.Search(len(e.lookup), func(i int) bool { return e.lookup[i].to > distance })
	if idx >= len(e.lookup) {
		idx = len(e.lookup) - 1
	}
	return e.lookup[idx].tile
}

// FollowPath starts moving along a path made by CreatePath. It does nothing
// unless a path is ready.
func (e *Executor) FollowPath() {
	if e == nil || e.state != PathReady {
		return
	}
	e.state = Moving
	e.distance = 0
	movementlog.Started(context.Background(), e.deps.Publisher, e.now(), logging.ActorRef(e.id), e.traceID, movementlog.StartedPayload{
		Tiles:  e.path.Labels(),
		Cost:   e.path.Cost,
		Length: e.trajectory.Length(),
	})
}

// MoveTo plans and starts a move to target.
func (e *Executor) MoveTo(target *navgrid.Tile) bool {
	if !e.CreatePath(target) {
		return false
	}
	e.FollowPath()
	return true
}

// Advance moves the actor MaxSpeed*dt further along the trajectory. Reaching
// the end completes the move and notifies observers once.
func (e *Executor) Advance(dt float64) {
	if e == nil || e.state != Moving {
		return
	}
	if !(dt > 0) {
		dt = 0
	}
	length := e.trajectory.Length()
	e.distance = min(e.distance+e.config.MaxSpeed*dt, length)

	if tile := e.tileAtDistance(e.distance); tile != nil && tile != e.tile {
		previous := e.tile
		e.tile = tile
		movementlog.TileEntered(context.Background(), e.deps.Publisher, e.now(), logging.ActorRef(e.id), e.traceID, movementlog.TileEnteredPayload{
			From:     previous.Label(),
			To:       tile.Label(),
			Distance: e.distance,
		})
	}
	e.applyTransform()

	if e.distance >= length {
		e.finish()
	}
}

func (e *Executor) applyTransform() {
	e.body.SetLocation(e.trajectory.LocationAtDistance(e.distance))

	tangent := e.trajectory.TangentAtDistance(e.distance)
	if tangent.LenSqr() == 0 {
		return
	}
	previous := e.body.Rotation()
	facing := geom.RotatorFromDirection(tangent)
	if e.config.LockRoll {
		facing.Roll = previous.Roll
	}
	if e.config.LockPitch {
		facing.Pitch = previous.Pitch
	}
	if e.config.LockYaw {
		facing.Yaw = previous.Yaw
	}
	e.body.SetRotation(facing)
}

func (e *Executor) finish() {
	e.state = Done
	if goal := e.path.Goal(); goal != nil {
		e.tile = goal
	}
	completion := Completion{
		ActorID:  e.id,
		Tile:     e.tile,
		Path:     e.path,
		Distance: e.distance,
		TraceID:  e.traceID,
		Tick:     e.now(),
	}
	movementlog.Completed(context.Background(), e.deps.Publisher, completion.Tick, logging.ActorRef(e.id), e.traceID, movementlog.CompletedPayload{
		Tile:     e.tile.Label(),
		Distance: e.distance,
		Location: location(e.body.Location()),
	})
	observers := append([]completionObserver(nil), e.observers...)
	for _, observer := range observers {
		observer.fn(completion)
	}
}

// Stop abandons a planned or in-flight move. The actor keeps its location
// and tile and no completion is reported.
func (e *Executor) Stop() {
	if e == nil {
		return
	}
	switch e.state {
	case Moving:
		movementlog.Stopped(context.Background(), e.deps.Publisher, e.now(), logging.ActorRef(e.id), e.traceID, movementlog.StoppedPayload{
			Tile:     e.tile.Label(),
			Distance: e.distance,
			Location: location(e.body.Location()),
		})
	case PathReady:
	default:
		return
	}
	e.state = Idle
}

// Range lists the tiles reachable from the current tile within
// MovementRange. It shares the grid's resident search state.
func (e *Executor) Range() []*navgrid.Tile {
	if e == nil {
		return nil
	}
	current := e.currentTile()
	if current == nil {
		return nil
	}
	return e.grid.TilesInRange(current, e.pathOptions())
}

func (e *Executor) now() uint64 {
	if e.deps.Tick == nil {
		return 0
	}
	return e.deps.Tick()
}

func location(v geom.Vec3) movementlog.Location {
	return movementlog.Location{X: v.X(), Y: v.Y(), Z: v.Z()}
}
