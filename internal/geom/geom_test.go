package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eps = 1e-9

func assertVec(t *testing.T, want, got Vec3) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], eps, "component %d of %v", i, got)
	}
}

func TestRotateVectorAxes(t *testing.T) {
	forward := Vec3{1, 0, 0}

	assertVec(t, Vec3{0, 1, 0}, Rotator{Yaw: 90}.RotateVector(forward))
	assertVec(t, Vec3{0, 0, 1}, Rotator{Pitch: 90}.RotateVector(forward))
	assertVec(t, Vec3{0, 0, 1}, Rotator{Roll: 90}.RotateVector(Vec3{0, 1, 0}))
	assertVec(t, forward, Rotator{}.RotateVector(forward))
}

func TestRotateVectorAppliesYawLast(t *testing.T) {
	got := Rotator{Pitch: 90, Yaw: 90}.RotateVector(Vec3{0, 0, 1})
	// pitch carries +Z to -X, yaw then carries -X to -Y
	assertVec(t, Vec3{0, -1, 0}, got)
}

func TestNormalizeAxis(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{in: 0, want: 0},
		{in: 180, want: 180},
		{in: -180, want: 180},
		{in: 270, want: -90},
		{in: -270, want: 90},
		{in: 720 + 45, want: 45},
	}
	for _, tc := range cases {
		assert.InDelta(t, tc.want, NormalizeAxis(tc.in), eps, "NormalizeAxis(%v)", tc.in)
	}
	require.True(t, math.IsInf(NormalizeAxis(math.Inf(1)), 1))
}

func TestMinMaxAxisUseNormalizedValues(t *testing.T) {
	r := Rotator{Pitch: 350, Yaw: 10, Roll: -5}
	assert.InDelta(t, 10, r.MaxAxis(), eps)
	assert.InDelta(t, -10, r.MinAxis(), eps)
}

func TestRotatorFromDirectionRoundTrip(t *testing.T) {
	dirs := []Vec3{
		{1, 0, 0},
		{0, 1, 0},
		{-1, -1, 0},
		{1, 0, 1},
		{3, 4, -2},
	}
	for _, dir := range dirs {
		rot := RotatorFromDirection(dir)
		assert.Zero(t, rot.Roll)
		assertVec(t, dir.Normalize(), rot.RotateVector(Vec3{1, 0, 0}))
	}
	assert.Equal(t, Rotator{}, RotatorFromDirection(Vec3{}))
}

func TestClampAndLerp(t *testing.T) {
	assert.Equal(t, 1.0, Clamp(-2, 1, 3))
	assert.Equal(t, 3.0, Clamp(8, 1, 3))
	assert.Equal(t, 2.0, Clamp(2, 1, 3))
	assertVec(t, Vec3{5, 0, 10}, Lerp(Vec3{0, 0, 0}, Vec3{10, 0, 20}, 0.5))
	assert.InDelta(t, 5, Distance(Vec3{0, 0, 0}, Vec3{3, 4, 0}), eps)
}

func TestUnrotateVectorInvertsRotation(t *testing.T) {
	r := Rotator{Pitch: 20, Yaw: -75, Roll: 33}
	v := Vec3{3, -2, 7}
	assertVec(t, v, r.UnrotateVector(r.RotateVector(v)))
}
