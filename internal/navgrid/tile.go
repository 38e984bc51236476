package navgrid

import (
	"math"
	"strconv"

	"tactics/navgrid/internal/geom"
)

// DefaultTileCost is the movement cost of entering a tile.
const DefaultTileCost = 1.0

// TileConfig describes a tile before it is added to a grid.
type TileConfig struct {
	Name     string
	Location geom.Vec3
	Rotation geom.Rotator
	// Extent holds the half-size of the tile's box.
	Extent geom.Vec3
	// Cost defaults to DefaultTileCost when zero or negative.
	Cost float64
	// Modes defaults to Walking when empty.
	Modes      MovementModes
	PawnOffset geom.Vec3
}

func (cfg TileConfig) normalized() TileConfig {
	normalized := cfg
	if normalized.Cost <= 0 || math.IsNaN(normalized.Cost) || math.IsInf(normalized.Cost, 0) {
		normalized.Cost = DefaultTileCost
	}
	if normalized.Modes == 0 {
		normalized.Modes = Walking
	}
	for i := range normalized.Extent {
		normalized.Extent[i] = math.Abs(normalized.Extent[i])
	}
	return normalized
}

// PathState is the per-tile scratch written by a search.
type PathState struct {
	Distance    float64
	Visited     bool
	Backpointer *Tile
}

// Reset restores the state a search starts from.
func (s *PathState) Reset() {
	s.Distance = math.Inf(1)
	s.Visited = false
	s.Backpointer = nil
}

func newPathState() PathState {
	return PathState{Distance: math.Inf(1)}
}

// Tile is a single walkable cell of a Grid.
type Tile struct {
	id         int
	name       string
	grid       *Grid
	location   geom.Vec3
	rotation   geom.Rotator
	extent     geom.Vec3
	cost       float64
	modes      MovementModes
	pawnOffset geom.Vec3

	contacts []geom.Vec3
	radius   float64
	path     PathState
}

func newTile(grid *Grid, id int, cfg TileConfig) *Tile {
	cfg = cfg.normalized()
	tile := &Tile{
		id:         id,
		name:       cfg.Name,
		grid:       grid,
		location:   cfg.Location,
		rotation:   cfg.Rotation,
		extent:     cfg.Extent,
		cost:       cfg.Cost,
		modes:      cfg.Modes,
		pawnOffset: cfg.PawnOffset,
		path:       newPathState(),
	}
	tile.contactPoints()
	return tile
}

// ID is the tile's insertion index in its grid.
func (t *Tile) ID() int {
	if t == nil {
		return -1
	}
	return t.id
}

func (t *Tile) Name() string {
	if t == nil {
		return ""
	}
	return t.name
}

// Label returns the tile name, or its ID when unnamed.
func (t *Tile) Label() string {
	if t == nil {
		return ""
	}
	if t.name != "" {
		return t.name
	}
	return strconv.Itoa(t.id)
}

func (t *Tile) Grid() *Grid {
	if t == nil {
		return nil
	}
	return t.grid
}

func (t *Tile) Location() geom.Vec3 {
	if t == nil {
		return geom.Vec3{}
	}
	return t.location
}

func (t *Tile) Rotation() geom.Rotator {
	if t == nil {
		return geom.Rotator{}
	}
	return t.rotation
}

func (t *Tile) Extent() geom.Vec3 {
	if t == nil {
		return geom.Vec3{}
	}
	return t.extent
}

func (t *Tile) Cost() float64 {
	if t == nil {
		return 0
	}
	return t.cost
}

func (t *Tile) Modes() MovementModes {
	if t == nil {
		return 0
	}
	return t.modes
}

func (t *Tile) PawnOffset() geom.Vec3 {
	if t == nil {
		return geom.Vec3{}
	}
	return t.pawnOffset
}

// SetCost changes the cost of entering the tile. Non-positive costs are
// ignored.
func (t *Tile) SetCost(cost float64) {
	if t == nil || cost <= 0 || math.IsNaN(cost) || math.IsInf(cost, 0) {
		return
	}
	t.cost = cost
}

// SetModes replaces the supported movement modes. An empty set makes the
// tile untraversable.
func (t *Tile) SetModes(modes MovementModes) {
	if t == nil {
		return
	}
	t.modes = modes
}

// SetTransform moves the tile and rebuilds its contact points.
func (t *Tile) SetTransform(location geom.Vec3, rotation geom.Rotator) {
	if t == nil {
		return
	}
	t.location = location
	t.rotation = rotation
	t.ResetContactPoints()
}

func (t *Tile) SetPawnOffset(offset geom.Vec3) {
	if t == nil {
		return
	}
	t.pawnOffset = offset
}

// PawnLocation is where an actor standing on the tile is placed.
func (t *Tile) PawnLocation() geom.Vec3 {
	if t == nil {
		return geom.Vec3{}
	}
	return t.location.Add(t.rotation.RotateVector(t.pawnOffset))
}

// Traversable reports whether an actor with the given modes can cross the
// tile. Every normalized rotation axis must lie strictly within
// ±maxWalkAngle.
func (t *Tile) Traversable(maxWalkAngle float64, modes MovementModes) bool {
	if t == nil || !t.modes.Has(modes) {
		return false
	}
	return t.rotation.MaxAxis() < maxWalkAngle && t.rotation.MinAxis() > -maxWalkAngle
}

// LegalPositionAtEndOfTurn reports whether an actor may stop on the tile.
func (t *Tile) LegalPositionAtEndOfTurn(maxWalkAngle float64, modes MovementModes) bool {
	return t.Traversable(maxWalkAngle, modes)
}

// ContactPoints returns the tile's four planar corners in world space. The
// points are computed once and cached until ResetContactPoints.
func (t *Tile) ContactPoints() []geom.Vec3 {
	if t == nil {
		return nil
	}
	points := t.contactPoints()
	copied := make([]geom.Vec3, len(points))
	copy(copied, points)
	return copied
}

// ResetContactPoints rebuilds the cached contact points from the current
// transform.
func (t *Tile) ResetContactPoints() {
	if t == nil {
		return
	}
	t.contacts = nil
	t.contactPoints()
}

func (t *Tile) contactPoints() []geom.Vec3 {
	if t.contacts != nil {
		return t.contacts
	}
	ex, ey := t.extent.X(), t.extent.Y()
	corners := [4]geom.Vec3{
		{-ex, -ey, 0},
		{-ex, ey, 0},
		{ex, -ey, 0},
		{ex, ey, 0},
	}
	t.contacts = make([]geom.Vec3, 0, len(corners))
	for _, corner := range corners {
		t.contacts = append(t.contacts, t.location.Add(t.rotation.RotateVector(corner)))
	}
	t.radius = math.Hypot(ex, ey)
	return t.contacts
}

// touches reports whether any contact point pair is closer than limit.
func (t *Tile) touches(other *Tile, limit float64) bool {
	mine := t.contactPoints()
	theirs := other.contactPoints()
	if geom.Distance(t.location, other.location)-t.radius-other.radius >= limit {
		return false
	}
	for _, a := range theirs {
		for _, b := range mine {
			if a.Sub(b).Len() < limit {
				return true
			}
		}
	}
	return false
}

// Neighbours lists every other tile of the grid with a contact point closer
// than the grid's neighbour distance, ordered by ID. The list is rebuilt on
// every call.
func (t *Tile) Neighbours() []*Tile {
	if t == nil || t.grid == nil {
		return nil
	}
	limit := t.grid.neighbourDistance()
	var neighbours []*Tile
	for _, other := range t.grid.tiles {
		if other == t {
			continue
		}
		if t.touches(other, limit) {
			neighbours = append(neighbours, other)
		}
	}
	return neighbours
}

// UnobstructedNeighbours filters Neighbours down to the tiles shape can
// reach from this tile without the grid's sweeper reporting a hit.
func (t *Tile) UnobstructedNeighbours(shape CollisionShape) []*Tile {
	neighbours := t.Neighbours()
	if len(neighbours) == 0 {
		return nil
	}
	from := t.PawnLocation()
	open := neighbours[:0]
	for _, n := range neighbours {
		if !n.Obstructed(from, shape) {
			open = append(open, n)
		}
	}
	return open
}

// Obstructed sweeps shape from an arbitrary point to the tile's pawn
// location. A grid without a sweeper obstructs nothing.
func (t *Tile) Obstructed(from geom.Vec3, shape CollisionShape) bool {
	if t == nil || t.grid == nil || t.grid.sweeper == nil {
		return false
	}
	return t.grid.sweeper.Sweep(shape, from, t.PawnLocation())
}

// ResetPath clears the tile-resident search scratch.
func (t *Tile) ResetPath() {
	if t == nil {
		return
	}
	t.path.Reset()
}

// PathState returns a copy of the tile-resident scratch.
func (t *Tile) PathState() PathState {
	if t == nil {
		return newPathState()
	}
	return t.path
}

// Distance is the resident search distance, +Inf when unreached.
func (t *Tile) Distance() float64 {
	return t.PathState().Distance
}

func (t *Tile) Visited() bool {
	return t.PathState().Visited
}

func (t *Tile) Backpointer() *Tile {
	return t.PathState().Backpointer
}

// contains reports whether point lies over the tile footprint and returns its
// height above the tile surface.
func (t *Tile) contains(point geom.Vec3) (float64, bool) {
	local := t.rotation.UnrotateVector(point.Sub(t.location))
	const slack = 1e-6
	if math.Abs(local.X()) > t.extent.X()+slack || math.Abs(local.Y()) > t.extent.Y()+slack {
		return 0, false
	}
	return local.Z(), true
}
