package navgrid

import "tactics/navgrid/internal/geom"

// CollisionShape describes the capsule an actor sweeps between tiles.
type CollisionShape struct {
	Radius     float64
	HalfHeight float64
	// Offset is added to both sweep endpoints.
	Offset geom.Vec3
	// Owner names the actor whose own blockers the query ignores.
	Owner string
}

// IsZero reports whether the shape has no volume.
func (s CollisionShape) IsZero() bool {
	return s.Radius <= 0 && s.HalfHeight <= 0
}

// Sweeper answers whether moving a shape between two points hits anything.
type Sweeper interface {
	Sweep(shape CollisionShape, from, to geom.Vec3) bool
}

// SweepFunc adapts a function into a Sweeper.
type SweepFunc func(shape CollisionShape, from, to geom.Vec3) bool

func (f SweepFunc) Sweep(shape CollisionShape, from, to geom.Vec3) bool {
	if f == nil {
		return false
	}
	return f(shape, from, to)
}
