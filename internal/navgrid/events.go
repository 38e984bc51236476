package navgrid

// TileEventKind identifies a tile interaction.
type TileEventKind int

const (
	TileClicked TileEventKind = iota + 1
	TileCursorOver
	TileEndCursorOver
)

func (k TileEventKind) String() string {
	switch k {
	case TileClicked:
		return "clicked"
	case TileCursorOver:
		return "cursor_over"
	case TileEndCursorOver:
		return "end_cursor_over"
	default:
		return "unknown"
	}
}

// TileEvent is delivered to grid observers.
type TileEvent struct {
	Kind TileEventKind
	Tile *Tile
}

type tileObserver struct {
	id uint64
	fn func(TileEvent)
}

// Subscribe registers fn for tile interactions. Observers run synchronously
// in registration order. The returned function removes the registration.
func (g *Grid) Subscribe(fn func(TileEvent)) (unsubscribe func()) {
	if g == nil || fn == nil {
		return func() {}
	}
	g.nextObserver++
	id := g.nextObserver
	g.observers = append(g.observers, tileObserver{id: id, fn: fn})
	return func() {
		for i, observer := range g.observers {
			if observer.id == id {
				g.observers = append(g.observers[:i:i], g.observers[i+1:]...)
				return
			}
		}
	}
}

// Hovered is the tile currently under the cursor, if any.
func (g *Grid) Hovered() *Tile {
	if g == nil {
		return nil
	}
	return g.hovered
}

func (g *Grid) notify(event TileEvent) {
	observers := append([]tileObserver(nil), g.observers...)
	for _, observer := range observers {
		observer.fn(event)
	}
}

// Clicked reports a click on the tile to the grid's observers.
func (t *Tile) Clicked() {
	if t == nil || t.grid == nil {
		return
	}
	t.grid.notify(TileEvent{Kind: TileClicked, Tile: t})
}

// CursorOver marks the tile as hovered and notifies observers.
func (t *Tile) CursorOver() {
	if t == nil || t.grid == nil {
		return
	}
	t.grid.hovered = t
	t.grid.notify(TileEvent{Kind: TileCursorOver, Tile: t})
}

// EndCursorOver clears the hover when it belongs to this tile.
func (t *Tile) EndCursorOver() {
	if t == nil || t.grid == nil {
		return
	}
	if t.grid.hovered == t {
		t.grid.hovered = nil
	}
	t.grid.notify(TileEvent{Kind: TileEndCursorOver, Tile: t})
}
