// Package spline samples a curve through a sequence of points by travelled
// distance.
package spline

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"tactics/navgrid/internal/geom"
)

// Mode selects how consecutive points are joined.
type Mode int

const (
	// Linear joins points with straight segments. Lengths are exact.
	Linear Mode = iota
	// CatmullRom joins points with a centripetal Catmull-Rom curve. Lengths
	// are approximated by sampling.
	CatmullRom
)

// SamplesPerSegment is the arc length resolution of curved segments.
const SamplesPerSegment = 16

func (m Mode) String() string {
	switch m {
	case Linear:
		return "linear"
	case CatmullRom:
		return "catmull-rom"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode maps a mode name to its value.
func ParseMode(name string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "linear":
		return Linear, nil
	case "catmull-rom", "catmullrom", "curve":
		return CatmullRom, nil
	default:
		return Linear, fmt.Errorf("unknown spline mode %q", name)
	}
}

type sample struct {
	u        float64
	distance float64
}

// Spline is a polyline or curve addressed by distance from its first point.
// The zero value is an empty linear spline.
type Spline struct {
	mode   Mode
	points []geom.Vec3

	dirty bool
	// cumulative[i] is the distance at point i.
	cumulative []float64
	segments   [][]sample
}

// New constructs an empty spline.
func New(mode Mode) *Spline {
	return &Spline{mode: mode}
}

func (s *Spline) Mode() Mode {
	return s.mode
}

// AddPoint appends a point to the end of the spline.
func (s *Spline) AddPoint(point geom.Vec3) {
	s.points = append(s.points, point)
	s.dirty = true
}

// Clear removes every point.
func (s *Spline) Clear() {
	s.points = s.points[:0]
	s.cumulative = s.cumulative[:0]
	s.segments = s.segments[:0]
	s.dirty = false
}

func (s *Spline) NumPoints() int {
	return len(s.points)
}

// Point returns the i-th control point.
func (s *Spline) Point(i int) geom.Vec3 {
	if i < 0 || i >= len(s.points) {
		return geom.Vec3{}
	}
	return s.points[i]
}

// Length is the total distance from the first to the last point.
func (s *Spline) Length() float64 {
	s.rebuild()
	if len(s.cumulative) == 0 {
		return 0
	}
	return s.cumulative[len(s.cumulative)-1]
}

// DistanceAtPoint returns the distance travelled when reaching point i.
func (s *Spline) DistanceAtPoint(i int) float64 {
	s.rebuild()
	if len(s.cumulative) == 0 {
		return 0
	}
	if i <= 0 {
		return 0
	}
	if i >= len(s.cumulative) {
		return s.cumulative[len(s.cumulative)-1]
	}
	return s.cumulative[i]
}

// LocationAtDistance samples the spline. Distances are clamped to
// [0, Length].
func (s *Spline) LocationAtDistance(distance float64) geom.Vec3 {
	switch len(s.points) {
	case 0:
		return geom.Vec3{}
	case 1:
		return s.points[0]
	}
	seg, u := s.locate(distance)
	return s.evaluate(seg, u)
}

// TangentAtDistance returns the unit direction of travel at distance. A
// spline without any extent yields the zero vector.
func (s *Spline) TangentAtDistance(distance float64) geom.Vec3 {
	if len(s.points) < 2 {
		return geom.Vec3{}
	}
	seg, u := s.locate(distance)
	if tangent, ok := s.tangent(seg, u); ok {
		return tangent
	}
	for offset := 1; offset < len(s.points); offset++ {
		for _, candidate := range []int{seg + offset, seg - offset} {
			if candidate < 0 || candidate >= len(s.points)-1 {
				continue
			}
			if tangent, ok := s.tangent(candidate, 0.5); ok {
				return tangent
			}
		}
	}
	return geom.Vec3{}
}

func (s *Spline) rebuild() {
	if !s.dirty {
		return
	}
	s.dirty = false
	s.cumulative = s.cumulative[:0]
	s.segments = s.segments[:0]
	if len(s.points) == 0 {
		return
	}
	s.cumulative = append(s.cumulative, 0)
	total := 0.0
	for seg := 0; seg < len(s.points)-1; seg++ {
		steps := 1
		if s.mode == CatmullRom {
			steps = SamplesPerSegment
		}
		samples := make([]sample, 0, steps+1)
		samples = append(samples, sample{u: 0, distance: total})
		prev := s.evaluate(seg, 0)
		for i := 1; i <= steps; i++ {
			u := float64(i) / float64(steps)
			next := s.evaluate(seg, u)
			total += geom.Distance(prev, next)
			samples = append(samples, sample{u: u, distance: total})
			prev = next
		}
		s.segments = append(s.segments, samples)
		s.cumulative = append(s.cumulative, total)
	}
}

// locate maps a distance onto a segment index and curve parameter.
func (s *Spline) locate(distance float64) (int, float64) {
	s.rebuild()
	length := s.cumulative[len(s.cumulative)-1]
	if math.IsNaN(distance) {
		distance = 0
	}
	distance = geom.Clamp(distance, 0, length)
	count := len(s.segments)
	seg := sort.Search(count, func(i int) bool { return s.cumulative[i+1] >= distance })
	if seg >= count {
		seg = count - 1
	}
	samples := s.segments[seg]
	idx := sort.Search(len(samples), func(i int) bool { return samples[i].distance >= distance })
	if idx == 0 {
		return seg, 0
	}
	if idx >= len(samples) {
		return seg, 1
	}
	lo, hi := samples[idx-1], samples[idx]
	span := hi.distance - lo.distance
	if span <= 0 {
		return seg, hi.u
	}
	return seg, lo.u + (hi.u-lo.u)*(distance-lo.distance)/span
}

func (s *Spline) evaluate(seg int, u float64) geom.Vec3 {
	p1, p2 := s.points[seg], s.points[seg+1]
	if s.mode != CatmullRom {
		return geom.Lerp(p1, p2, u)
	}
	p0 := p1.Mul(2).Sub(p2)
	if seg > 0 {
		p0 = s.points[seg-1]
	}
	p3 := p2.Mul(2).Sub(p1)
	if seg+2 < len(s.points) {
		p3 = s.points[seg+2]
	}
	return centripetal(p0, p1, p2, p3, u)
}

func (s *Spline) tangent(seg int, u float64) (geom.Vec3, bool) {
	const h = 1e-3
	var d geom.Vec3
	if s.mode == CatmullRom {
		lo := math.Max(0, u-h)
		hi := math.Min(1, u+h)
		d = s.evaluate(seg, hi).Sub(s.evaluate(seg, lo))
	}
	if d.Len() < 1e-9 {
		d = s.points[seg+1].Sub(s.points[seg])
	}
	if d.Len() < 1e-9 {
		return geom.Vec3{}, false
	}
	return d.Normalize(), true
}

// centripetal evaluates the Barry-Goldman form of a centripetal Catmull-Rom
// segment between p1 and p2.
func centripetal(p0, p1, p2, p3 geom.Vec3, u float64) geom.Vec3 {
	if geom.Distance(p1, p2) < 1e-9 {
		return p1
	}
	t0 := 0.0
	t1 := t0 + knot(p0, p1)
	t2 := t1 + knot(p1, p2)
	t3 := t2 + knot(p2, p3)
	t := t1 + (t2-t1)*u

	a1 := blend(p0, p1, t0, t1, t)
	a2 := blend(p1, p2, t1, t2, t)
	a3 := blend(p2, p3, t2, t3, t)
	b1 := blend(a1, a2, t0, t2, t)
	b2 := blend(a2, a3, t1, t3, t)
	return blend(b1, b2, t1, t2, t)
}

func knot(a, b geom.Vec3) float64 {
	return math.Max(math.Sqrt(geom.Distance(a, b)), 1e-6)
}

func blend(a, b geom.Vec3, ta, tb, t float64) geom.Vec3 {
	span := tb - ta
	return a.Mul((tb - t) / span).Add(b.Mul((t - ta) / span))
}
