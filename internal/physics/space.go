// Package physics answers sweep queries against a chipmunk space holding the
// scene's obstacles and actor blockers.
package physics

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/jakecoffman/cp"

	"tactics/navgrid/internal/geom"
	"tactics/navgrid/internal/navgrid"
)

// ErrInvalidObstacle reports an obstacle with an empty or inverted box.
var ErrInvalidObstacle = errors.New("physics: invalid obstacle bounds")

// Obstacle is an axis aligned box that blocks movement.
type Obstacle struct {
	Name string
	Min  geom.Vec3
	Max  geom.Vec3
}

type blocker struct {
	name  string
	actor string
	zMin  float64
	zMax  float64
}

// Space is a navgrid.Sweeper over a chipmunk space. The space is planar;
// each shape carries a vertical range checked after the 2D query.
type Space struct {
	mu        sync.Mutex
	space     *cp.Space
	obstacles map[string]*cp.Shape
	actors    map[string]*cp.Shape
	groups    map[string]uint
	nextGroup uint
}

var _ navgrid.Sweeper = (*Space)(nil)

// NewSpace constructs an empty space.
func NewSpace() *Space {
	return &Space{
		space:     cp.NewSpace(),
		obstacles: make(map[string]*cp.Shape),
		actors:    make(map[string]*cp.Shape),
		groups:    make(map[string]uint),
	}
}

// AddObstacle inserts a static box. Adding a name twice replaces the box.
func (s *Space) AddObstacle(obstacle Obstacle) error {
	lo, hi := obstacle.Min, obstacle.Max
	for i := range lo {
		if math.IsNaN(lo[i]) || math.IsNaN(hi[i]) || lo[i] > hi[i] {
			return fmt.Errorf("%w: %q min %v max %v", ErrInvalidObstacle, obstacle.Name, lo, hi)
		}
	}
	if lo.X() == hi.X() || lo.Y() == hi.Y() {
		return fmt.Errorf("%w: %q has no footprint", ErrInvalidObstacle, obstacle.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.obstacles[obstacle.Name]; ok {
		s.space.RemoveShape(existing)
	}
	bb := cp.BB{L: lo.X(), B: lo.Y(), R: hi.X(), T: hi.Y()}
	shape := cp.NewBox2(s.space.StaticBody, bb, 0)
	shape.UserData = &blocker{name: obstacle.Name, zMin: lo.Z(), zMax: hi.Z()}
	s.space.AddShape(shape)
	s.obstacles[obstacle.Name] = shape
	return nil
}

// RemoveObstacle deletes a box by name.
func (s *Space) RemoveObstacle(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	shape, ok := s.obstacles[name]
	if !ok {
		return false
	}
	s.space.RemoveShape(shape)
	delete(s.obstacles, name)
	return true
}

// PlaceActor moves the blocker for actor id to location. Sweeps owned by the
// same actor pass through it.
func (s *Space) PlaceActor(id string, location geom.Vec3, radius, halfHeight float64) {
	if id == "" || radius <= 0 {
		return
	}
	if halfHeight <= 0 {
		halfHeight = radius
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.actors[id]; ok {
		s.space.RemoveShape(existing)
	}
	shape := cp.NewCircle(s.space.StaticBody, radius, cp.Vector{X: location.X(), Y: location.Y()})
	shape.Filter = cp.ShapeFilter{Group: s.groupLocked(id), Categories: cp.ALL_CATEGORIES, Mask: cp.ALL_CATEGORIES}
	shape.UserData = &blocker{name: id, actor: id, zMin: location.Z() - halfHeight, zMax: location.Z() + halfHeight}
	s.space.AddShape(shape)
	s.actors[id] = shape
}

// RemoveActor deletes the blocker for actor id.
func (s *Space) RemoveActor(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if shape, ok := s.actors[id]; ok {
		s.space.RemoveShape(shape)
		delete(s.actors, id)
	}
}

func (s *Space) groupLocked(id string) uint {
	if group, ok := s.groups[id]; ok {
		return group
	}
	s.nextGroup++
	s.groups[id] = s.nextGroup
	return s.nextGroup
}

// Counts reports how many obstacles and actor blockers the space holds.
func (s *Space) Counts() (obstacles, actors int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.obstacles), len(s.actors)
}

// Sweep reports whether shape hits anything moving from one point to
// another. A hit counts only when the blocker's vertical range overlaps the
// capsule's at the point of contact.
func (s *Space) Sweep(shape navgrid.CollisionShape, from, to geom.Vec3) bool {
	start := from.Add(shape.Offset)
	end := to.Add(shape.Offset)
	radius := math.Max(shape.Radius, 0)
	halfHeight := math.Max(shape.HalfHeight, radius)

	s.mu.Lock()
	defer s.mu.Unlock()
	filter := cp.SHAPE_FILTER_ALL
	if group, ok := s.groups[shape.Owner]; ok && shape.Owner != "" {
		filter.Group = group
	}

	a := cp.Vector{X: start.X(), Y: start.Y()}
	b := cp.Vector{X: end.X(), Y: end.Y()}
	hit := false
	overlaps := func(found *cp.Shape, alpha float64) {
		if hit {
			return
		}
		info, ok := found.UserData.(*blocker)
		if !ok {
			return
		}
		z := start.Z() + (end.Z()-start.Z())*alpha
		if z-halfHeight < info.zMax && z+halfHeight > info.zMin {
			hit = true
		}
	}

	if a.Distance(b) < 1e-9 {
		s.space.BBQuery(cp.NewBBForCircle(a, radius), filter, func(found *cp.Shape, _ interface{}) {
			if found.PointQuery(a).Distance <= radius {
				overlaps(found, 0)
			}
		}, nil)
		return hit
	}
	s.space.SegmentQuery(a, b, radius, filter, func(found *cp.Shape, _, _ cp.Vector, alpha float64, _ interface{}) {
		overlaps(found, alpha)
	}, nil)
	return hit
}
