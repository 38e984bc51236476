package movement

import "tactics/navgrid/internal/geom"

// Body is the transform the executor drives.
type Body interface {
	Location() geom.Vec3
	Rotation() geom.Rotator
	SetLocation(geom.Vec3)
	SetRotation(geom.Rotator)
}

// Trajectory is a path sampled by travelled distance.
type Trajectory interface {
	AddPoint(point geom.Vec3)
	Clear()
	NumPoints() int
	Length() float64
	DistanceAtPoint(i int) float64
	LocationAtDistance(distance float64) geom.Vec3
	TangentAtDistance(distance float64) geom.Vec3
}

// Pawn is a plain in-memory Body.
type Pawn struct {
	location geom.Vec3
	rotation geom.Rotator
}

// NewPawn constructs a body at the given transform.
func NewPawn(location geom.Vec3, rotation geom.Rotator) *Pawn {
	return &Pawn{location: location, rotation: rotation}
}

func (p *Pawn) Location() geom.Vec3 {
	if p == nil {
		return geom.Vec3{}
	}
	return p.location
}

func (p *Pawn) Rotation() geom.Rotator {
	if p == nil {
		return geom.Rotator{}
	}
	return p.rotation
}

func (p *Pawn) SetLocation(location geom.Vec3) {
	if p == nil {
		return
	}
	p.location = location
}

func (p *Pawn) SetRotation(rotation geom.Rotator) {
	if p == nil {
		return
	}
	p.rotation = rotation
}
