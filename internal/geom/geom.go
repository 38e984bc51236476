package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Vec3 is a world-space point or direction. Z is up.
type Vec3 = mgl64.Vec3

// Rotator describes an orientation as pitch, yaw and roll in degrees.
//
// Roll turns about X, pitch about Y (positive tilts +X upwards) and yaw about
// Z. Rotations apply roll first, then pitch, then yaw.
type Rotator struct {
	Pitch float64 `json:"pitch,omitempty" yaml:"pitch,omitempty"`
	Yaw   float64 `json:"yaw,omitempty" yaml:"yaw,omitempty"`
	Roll  float64 `json:"roll,omitempty" yaml:"roll,omitempty"`
}

// IsZero reports whether the rotator applies no rotation.
func (r Rotator) IsZero() bool {
	return r.Pitch == 0 && r.Yaw == 0 && r.Roll == 0
}

// Quat converts the rotator into a unit quaternion.
func (r Rotator) Quat() mgl64.Quat {
	return mgl64.AnglesToQuat(
		mgl64.DegToRad(r.Yaw),
		mgl64.DegToRad(-r.Pitch),
		mgl64.DegToRad(r.Roll),
		mgl64.ZYX,
	)
}

// RotateVector rotates v by the rotator.
func (r Rotator) RotateVector(v Vec3) Vec3 {
	if r.IsZero() {
		return v
	}
	return r.Quat().Rotate(v)
}

// UnrotateVector applies the inverse rotation to v.
func (r Rotator) UnrotateVector(v Vec3) Vec3 {
	if r.IsZero() {
		return v
	}
	return r.Quat().Conjugate().Rotate(v)
}

// Normalized folds every axis into (-180, 180].
func (r Rotator) Normalized() Rotator {
	return Rotator{
		Pitch: NormalizeAxis(r.Pitch),
		Yaw:   NormalizeAxis(r.Yaw),
		Roll:  NormalizeAxis(r.Roll),
	}
}

// MaxAxis returns the largest normalized axis value.
func (r Rotator) MaxAxis() float64 {
	n := r.Normalized()
	return math.Max(n.Pitch, math.Max(n.Yaw, n.Roll))
}

// MinAxis returns the smallest normalized axis value.
func (r Rotator) MinAxis() float64 {
	n := r.Normalized()
	return math.Min(n.Pitch, math.Min(n.Yaw, n.Roll))
}

// NormalizeAxis folds an angle in degrees into (-180, 180].
func NormalizeAxis(angle float64) float64 {
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		return angle
	}
	a := math.Mod(angle, 360)
	if a > 180 {
		a -= 360
	} else if a <= -180 {
		a += 360
	}
	return a
}

// RotatorFromDirection returns the rotator whose forward (+X) axis points
// along dir. Roll is always zero; a zero direction yields the zero rotator.
func RotatorFromDirection(dir Vec3) Rotator {
	if dir.LenSqr() == 0 {
		return Rotator{}
	}
	yaw := math.Atan2(dir[1], dir[0])
	pitch := math.Atan2(dir[2], math.Hypot(dir[0], dir[1]))
	return Rotator{
		Pitch: mgl64.RadToDeg(pitch),
		Yaw:   mgl64.RadToDeg(yaw),
	}
}

// Clamp limits value to the range [min, max].
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// Distance returns the euclidean distance between a and b.
func Distance(a, b Vec3) float64 {
	return a.Sub(b).Len()
}

// Lerp interpolates between a and b.
func Lerp(a, b Vec3, t float64) Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}
