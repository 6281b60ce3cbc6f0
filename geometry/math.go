package geometry

import (
	"math"

	"pathlink/core"

	"gonum.org/v1/gonum/spatial/r2"
)

// ManhattanDistance calculates the Manhattan distance between two points.
func ManhattanDistance(a, b core.Point) float64 {
	return math.Abs(b.X-a.X) + math.Abs(b.Y-a.Y)
}

// EuclideanDistance calculates the straight-line distance between two points.
func EuclideanDistance(a, b core.Point) float64 {
	return r2.Norm(r2.Sub(b, a))
}

// Lerp returns the point at fraction t along the line from a to b.
func Lerp(a, b core.Point, t float64) core.Point {
	return r2.Add(a, r2.Scale(t, r2.Sub(b, a)))
}

// Clamp limits v to the range [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// SamplePoints returns points spaced at most spacing apart along the
// segment, both ends included.
func SamplePoints(s core.Segment, spacing float64) []core.Point {
	length := s.Length()
	if length == 0 || spacing <= 0 {
		return []core.Point{s.Start}
	}
	n := int(math.Ceil(length / spacing))
	points := make([]core.Point, 0, n+1)
	for i := 0; i <= n; i++ {
		points = append(points, Lerp(s.Start, s.End, float64(i)/float64(n)))
	}
	return points
}

// RelativePosition expresses p relative to the centre of r, scaled so the
// rectangle edges sit at -1 and 1. Degenerate axes map to 0.
func RelativePosition(r core.Rect, p core.Point) (rx, ry float64) {
	c := r.Center()
	if hw := r.Width() / 2; hw > 0 {
		rx = Clamp((p.X-c.X)/hw, -1, 1)
	}
	if hh := r.Height() / 2; hh > 0 {
		ry = Clamp((p.Y-c.Y)/hh, -1, 1)
	}
	return rx, ry
}

// AbsolutePosition is the inverse of RelativePosition.
func AbsolutePosition(r core.Rect, rx, ry float64) core.Point {
	c := r.Center()
	return core.Pt(c.X+rx*r.Width()/2, c.Y+ry*r.Height()/2)
}
