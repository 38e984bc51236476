package movement

import (
	"math"

	"tactics/navgrid/internal/navgrid"
	"tactics/navgrid/internal/spline"
)

const (
	// DefaultMovementRange is how far, in tile cost, an actor moves in one go.
	DefaultMovementRange = 4.0
	// DefaultMaxSpeed is the travel speed along the trajectory in world units
	// per second.
	DefaultMaxSpeed = 450.0
)

// Config tunes an Executor.
type Config struct {
	MovementRange  float64
	MaxSpeed       float64
	MaxWalkAngle   float64
	Modes          navgrid.MovementModes
	Shape          navgrid.CollisionShape
	LockRoll       bool
	LockPitch      bool
	LockYaw        bool
	TrajectoryMode spline.Mode
}

func DefaultConfig() Config {
	return Config{
		MovementRange: DefaultMovementRange,
		MaxSpeed:      DefaultMaxSpeed,
		MaxWalkAngle:  navgrid.DefaultMaxWalkAngle,
		Modes:         navgrid.Walking,
		LockRoll:      true,
		LockPitch:     true,
		LockYaw:       false,
	}
}

func (cfg Config) normalized() Config {
	normalized := cfg
	if normalized.MovementRange < 0 || math.IsNaN(normalized.MovementRange) {
		normalized.MovementRange = DefaultMovementRange
	}
	if normalized.MaxSpeed <= 0 || math.IsNaN(normalized.MaxSpeed) || math.IsInf(normalized.MaxSpeed, 0) {
		normalized.MaxSpeed = DefaultMaxSpeed
	}
	if normalized.MaxWalkAngle <= 0 || math.IsNaN(normalized.MaxWalkAngle) {
		normalized.MaxWalkAngle = navgrid.DefaultMaxWalkAngle
	}
	if normalized.Modes == 0 {
		normalized.Modes = navgrid.Walking
	}
	return normalized
}

// Normalized returns the configuration with defaults applied.
func (cfg Config) Normalized() Config {
	return cfg.normalized()
}
