package navgrid

import (
	"container/heap"
	"context"
	"math"

	"tactics/navgrid/logging"
	"tactics/navgrid/logging/navigation"
)

// DefaultMaxWalkAngle is the steepest tile tilt, in degrees, a walker accepts.
const DefaultMaxWalkAngle = 45.0

// PathOptions constrains a search.
type PathOptions struct {
	// MaxCost bounds the summed cost of the tiles entered after the start.
	MaxCost float64
	// Modes defaults to Walking when empty.
	Modes MovementModes
	// MaxWalkAngle defaults to DefaultMaxWalkAngle when not positive.
	MaxWalkAngle float64
	Shape        CollisionShape
}

func (opts PathOptions) normalized() PathOptions {
	normalized := opts
	if normalized.Modes == 0 {
		normalized.Modes = Walking
	}
	if normalized.MaxWalkAngle <= 0 || math.IsNaN(normalized.MaxWalkAngle) {
		normalized.MaxWalkAngle = DefaultMaxWalkAngle
	}
	if math.IsNaN(normalized.MaxCost) || normalized.MaxCost < 0 {
		normalized.MaxCost = 0
	}
	return normalized
}

// Path is an ordered tile sequence from start to goal, both included.
type Path struct {
	Tiles []*Tile
	Cost  float64
}

// Steps is the number of moves along the path.
func (p Path) Steps() int {
	if len(p.Tiles) == 0 {
		return 0
	}
	return len(p.Tiles) - 1
}

func (p Path) Empty() bool {
	return len(p.Tiles) == 0
}

func (p Path) Start() *Tile {
	if len(p.Tiles) == 0 {
		return nil
	}
	return p.Tiles[0]
}

func (p Path) Goal() *Tile {
	if len(p.Tiles) == 0 {
		return nil
	}
	return p.Tiles[len(p.Tiles)-1]
}

// Labels lists the tile labels along the path.
func (p Path) Labels() []string {
	labels := make([]string, 0, len(p.Tiles))
	for _, tile := range p.Tiles {
		labels = append(labels, tile.Label())
	}
	return labels
}

// scratch maps a tile to the search state a run writes into.
type scratch interface {
	state(tile *Tile) *PathState
}

// arena holds private per-search state indexed by tile ID.
type arena []PathState

func newArena(size int) arena {
	states := make(arena, size)
	for i := range states {
		states[i].Reset()
	}
	return states
}

func (a arena) state(tile *Tile) *PathState {
	return &a[tile.id]
}

// resident writes into the tiles' own PathState.
type resident struct{}

func (resident) state(tile *Tile) *PathState {
	return &tile.path
}

// frontier is a min-heap of tiles keyed on search distance, ties broken by
// lowest tile ID.
type frontier struct {
	tiles   []*Tile
	index   []int
	scratch scratch
}

func newFrontier(size int, states scratch) *frontier {
	index := make([]int, size)
	for i := range index {
		index[i] = -1
	}
	return &frontier{index: index, scratch: states}
}

func (f *frontier) Len() int { return len(f.tiles) }

func (f *frontier) Less(i, j int) bool {
	di := f.scratch.state(f.tiles[i]).Distance
	dj := f.scratch.state(f.tiles[j]).Distance
	if di != dj {
		return di < dj
	}
	return f.tiles[i].id < f.tiles[j].id
}

func (f *frontier) Swap(i, j int) {
	f.tiles[i], f.tiles[j] = f.tiles[j], f.tiles[i]
	f.index[f.tiles[i].id] = i
	f.index[f.tiles[j].id] = j
}

func (f *frontier) Push(x any) {
	tile := x.(*Tile)
	f.index[tile.id] = len(f.tiles)
	f.tiles = append(f.tiles, tile)
}

func (f *frontier) Pop() any {
	old := f.tiles
	n := len(old)
	tile := old[n-1]
	old[n-1] = nil
	f.index[tile.id] = -1
	f.tiles = old[:n-1]
	return tile
}

// update queues tile or restores heap order after its distance dropped.
func (f *frontier) update(tile *Tile) {
	if pos := f.index[tile.id]; pos >= 0 {
		heap.Fix(f, pos)
		return
	}
	heap.Push(f, tile)
}

// search runs Dijkstra from start. With a nil goal it explores every tile
// within MaxCost. It returns the number of tiles visited and whether goal was
// reached.
func (g *Grid) search(start, goal *Tile, opts PathOptions, states scratch) (int, bool) {
	for _, tile := range g.tiles {
		states.state(tile).Reset()
	}
	states.state(start).Distance = 0

	open := newFrontier(len(g.tiles), states)
	heap.Push(open, start)
	visited := 0
	for open.Len() > 0 {
		current := heap.Pop(open).(*Tile)
		cs := states.state(current)
		if cs.Distance > opts.MaxCost {
			break
		}
		cs.Visited = true
		visited++
		if current == goal {
			return visited, true
		}

		from := current.PawnLocation()
		for _, next := range current.Neighbours() {
			ns := states.state(next)
			if ns.Visited || !next.Traversable(opts.MaxWalkAngle, opts.Modes) {
				continue
			}
			candidate := cs.Distance + next.cost
			if candidate >= ns.Distance {
				continue
			}
			if next.Obstructed(from, opts.Shape) {
				continue
			}
			ns.Distance = candidate
			ns.Backpointer = current
			open.update(next)
		}
	}
	return visited, false
}

// trace walks backpointers from goal and returns the path in travel order.
func (g *Grid) trace(goal *Tile, states scratch) (Path, bool) {
	end := states.state(goal)
	if !end.Visited {
		return Path{}, false
	}
	tiles := make([]*Tile, 0)
	for tile := goal; tile != nil; tile = states.state(tile).Backpointer {
		tiles = append(tiles, tile)
		if len(tiles) > len(g.tiles) {
			return Path{}, false
		}
	}
	for i := 0; i < len(tiles)/2; i++ {
		j := len(tiles) - 1 - i
		tiles[i], tiles[j] = tiles[j], tiles[i]
	}
	return Path{Tiles: tiles, Cost: end.Distance}, true
}

// FindPath computes the cheapest path from start to goal whose cost stays
// within opts.MaxCost. Entering a tile costs that tile's Cost. Search state is
// private to the call, so concurrent searches over an unchanging grid are
// safe and the tiles' resident PathState is left untouched.
func (g *Grid) FindPath(start, goal *Tile, opts PathOptions) (Path, bool) {
	if !g.owns(start) || !g.owns(goal) {
		return Path{}, false
	}
	opts = opts.normalized()
	if g.metrics != nil {
		g.metrics.Add(searchMetricKey, 1)
	}

	payload := navigation.SearchPayload{Start: start.Label(), Goal: goal.Label(), MaxCost: opts.MaxCost}
	actor := logging.EntityRef{ID: opts.Shape.Owner, Kind: logging.EntityKindActor}
	if actor.ID == "" {
		actor = logging.EntityRef{Kind: logging.EntityKindGrid}
	}

	if start == goal {
		payload.Visited = 1
		navigation.PathFound(context.Background(), g.publisher, actor, payload)
		return Path{Tiles: []*Tile{start}}, true
	}

	states := newArena(len(g.tiles))
	visited, reached := g.search(start, goal, opts, states)
	payload.Visited = visited
	if !reached {
		navigation.PathNotFound(context.Background(), g.publisher, actor, payload)
		return Path{}, false
	}
	path, ok := g.trace(goal, states)
	if !ok {
		navigation.PathNotFound(context.Background(), g.publisher, actor, payload)
		return Path{}, false
	}
	payload.Cost = path.Cost
	payload.Steps = path.Steps()
	navigation.PathFound(context.Background(), g.publisher, actor, payload)
	return path, true
}

// TilesInRange explores every tile reachable from start within opts.MaxCost
// and returns them ordered by ID, start included. Results are written into
// the tiles' resident PathState, so Distance, Backpointer and TracePath can be
// read afterwards. Calls must not overlap.
func (g *Grid) TilesInRange(start *Tile, opts PathOptions) []*Tile {
	if !g.owns(start) {
		return nil
	}
	opts = opts.normalized()
	if g.metrics != nil {
		g.metrics.Add(searchMetricKey, 1)
	}
	g.search(start, nil, opts, resident{})
	var reachable []*Tile
	for _, tile := range g.tiles {
		if tile.path.Visited {
			reachable = append(reachable, tile)
		}
	}
	return reachable
}

// TracePath rebuilds the path to goal from the resident state written by the
// last TilesInRange call.
func (g *Grid) TracePath(goal *Tile) (Path, bool) {
	if !g.owns(goal) {
		return Path{}, false
	}
	return g.trace(goal, resident{})
}
