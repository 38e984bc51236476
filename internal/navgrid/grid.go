package navgrid

import (
	"math"

	"tactics/navgrid/internal/geom"
	"tactics/navgrid/internal/telemetry"
	"tactics/navgrid/logging"
)

const (
	// DefaultTileSpacing is the nominal distance between adjacent tile centres.
	DefaultTileSpacing = 200.0
	// NeighbourFactor scales TileSpacing into the contact point distance
	// under which two tiles are neighbours.
	NeighbourFactor = 0.75

	searchMetricKey = "navigation_searches_total"
)

// Config tunes a Grid.
type Config struct {
	TileSpacing float64 `json:"tileSpacing" yaml:"tileSpacing"`
}

func DefaultConfig() Config {
	return Config{TileSpacing: DefaultTileSpacing}
}

func (cfg Config) normalized() Config {
	normalized := cfg
	if normalized.TileSpacing <= 0 || math.IsNaN(normalized.TileSpacing) || math.IsInf(normalized.TileSpacing, 0) {
		normalized.TileSpacing = DefaultTileSpacing
	}
	return normalized
}

// Grid owns the tile graph of a single scene.
type Grid struct {
	config    Config
	tiles     []*Tile
	byName    map[string]*Tile
	sweeper   Sweeper
	publisher logging.Publisher
	metrics   telemetry.Metrics

	hovered      *Tile
	observers    []tileObserver
	nextObserver uint64
}

// NewGrid constructs an empty grid.
func NewGrid(cfg Config) *Grid {
	return &Grid{
		config:    cfg.normalized(),
		byName:    make(map[string]*Tile),
		publisher: logging.NopPublisher(),
	}
}

func (g *Grid) Config() Config {
	if g == nil {
		return DefaultConfig()
	}
	return g.config
}

func (g *Grid) TileSpacing() float64 {
	return g.Config().TileSpacing
}

func (g *Grid) neighbourDistance() float64 {
	return g.config.TileSpacing * NeighbourFactor
}

// SetSweeper installs the obstruction test used by searches.
func (g *Grid) SetSweeper(sweeper Sweeper) {
	if g == nil {
		return
	}
	g.sweeper = sweeper
}

func (g *Grid) Sweeper() Sweeper {
	if g == nil {
		return nil
	}
	return g.sweeper
}

// SetPublisher routes search events to pub.
func (g *Grid) SetPublisher(pub logging.Publisher) {
	if g == nil {
		return
	}
	if pub == nil {
		pub = logging.NopPublisher()
	}
	g.publisher = pub
}

func (g *Grid) SetMetrics(metrics telemetry.Metrics) {
	if g == nil {
		return
	}
	g.metrics = metrics
}

// AddTile appends a tile built from cfg. Names are expected to be unique;
// lookups by name return the first tile registered under it.
func (g *Grid) AddTile(cfg TileConfig) *Tile {
	if g == nil {
		return nil
	}
	tile := newTile(g, len(g.tiles), cfg)
	g.tiles = append(g.tiles, tile)
	if tile.name != "" {
		if _, exists := g.byName[tile.name]; !exists {
			g.byName[tile.name] = tile
		}
	}
	return tile
}

// Tiles returns every tile ordered by ID.
func (g *Grid) Tiles() []*Tile {
	if g == nil {
		return nil
	}
	return append([]*Tile(nil), g.tiles...)
}

func (g *Grid) Len() int {
	if g == nil {
		return 0
	}
	return len(g.tiles)
}

// Tile looks a tile up by ID.
func (g *Grid) Tile(id int) *Tile {
	if g == nil || id < 0 || id >= len(g.tiles) {
		return nil
	}
	return g.tiles[id]
}

func (g *Grid) TileByName(name string) *Tile {
	if g == nil {
		return nil
	}
	return g.byName[name]
}

// TileAt returns the tile whose footprint contains point and whose surface
// lies closest below it, no further than TileSpacing away. It returns nil
// when no tile qualifies.
func (g *Grid) TileAt(point geom.Vec3) *Tile {
	if g == nil {
		return nil
	}
	const slack = 1e-6
	var best *Tile
	bestHeight := math.Inf(1)
	for _, tile := range g.tiles {
		height, ok := tile.contains(point)
		if !ok || height < -slack || height > g.config.TileSpacing {
			continue
		}
		if height < bestHeight {
			best = tile
			bestHeight = height
		}
	}
	return best
}

// ResetPaths clears the resident scratch of every tile.
func (g *Grid) ResetPaths() {
	if g == nil {
		return
	}
	for _, tile := range g.tiles {
		tile.ResetPath()
	}
}

// owns reports whether tile belongs to the grid.
func (g *Grid) owns(tile *Tile) bool {
	return g != nil && tile != nil && tile.grid == g && tile.id >= 0 && tile.id < len(g.tiles) && g.tiles[tile.id] == tile
}
