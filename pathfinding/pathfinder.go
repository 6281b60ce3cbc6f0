// Package pathfinding routes orthogonal connectors between two points while
// steering around obstacles.
package pathfinding

import (
	"fmt"

	"pathlink/core"
)

// PathCost defines the cost model of the connector search. Lengths are in
// canvas units.
type PathCost struct {
	GridStep       float64 // Lattice spacing
	ElbowPenalty   float64 // Added on every change of direction
	OverlapPenalty float64 // Added for each lattice point inside an obstacle
}

// DefaultPathCost provides reasonable defaults for pathway diagrams.
var DefaultPathCost = PathCost{
	GridStep:       15,
	ElbowPenalty:   30,
	OverlapPenalty: 120,
}

const (
	// DefaultMaxOpen bounds the open set before the search gives up.
	DefaultMaxOpen = 20000
	// DefaultCancelCheckInterval is how many expansions pass between
	// context checks.
	DefaultCancelCheckInterval = 256
)

// Validate reports whether the cost model can drive a search.
func (c PathCost) Validate() error {
	if c.GridStep <= 0 {
		return fmt.Errorf("grid step must be positive, got %g", c.GridStep)
	}
	if c.ElbowPenalty < 0 || c.OverlapPenalty < 0 {
		return fmt.Errorf("penalties must not be negative")
	}
	return nil
}

// FallbackReason says why a route is a single direct segment.
type FallbackReason int

const (
	NoFallback FallbackReason = iota
	FallbackOpenLimit
	FallbackExhausted
	FallbackCancelled
)

func (r FallbackReason) String() string {
	switch r {
	case NoFallback:
		return "none"
	case FallbackOpenLimit:
		return "open set limit"
	case FallbackExhausted:
		return "search exhausted"
	case FallbackCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Result is a route together with how it was found.
type Result struct {
	Segments []core.Segment
	Fallback bool
	Reason   FallbackReason
	Expanded int // Lattice nodes popped from the open set
}

func (r Result) String() string {
	if r.Fallback {
		return fmt.Sprintf("Route (fallback: %s, expanded=%d): %d segments", r.Reason, r.Expanded, len(r.Segments))
	}
	return fmt.Sprintf("Route (expanded=%d): %d segments", r.Expanded, len(r.Segments))
}

// direct is the fallback route.
func direct(start, end core.Point) []core.Segment {
	return []core.Segment{{Start: start, End: end}}
}

// segmentBuilder accumulates the corners of an orthogonal route, merging
// consecutive moves in the same direction.
type segmentBuilder struct {
	corners []core.Point
}

func (b *segmentBuilder) moveTo(p core.Point) {
	b.corners = append(b.corners[:0], p)
}

func (b *segmentBuilder) last() core.Point {
	return b.corners[len(b.corners)-1]
}

// lastDirection returns the direction of the final segment, None if there
// is none yet.
func (b *segmentBuilder) lastDirection() core.Direction {
	n := len(b.corners)
	if n < 2 {
		return core.None
	}
	return core.DirectionBetween(b.corners[n-2], b.corners[n-1])
}

func (b *segmentBuilder) lineTo(p core.Point) {
	if p == b.last() {
		return
	}
	if d := b.lastDirection(); d != core.None && d == core.DirectionBetween(b.last(), p) {
		b.corners[len(b.corners)-1] = p
		return
	}
	b.corners = append(b.corners, p)
}

func (b *segmentBuilder) segments() []core.Segment {
	if len(b.corners) < 2 {
		return nil
	}
	segs := make([]core.Segment, 0, len(b.corners)-1)
	for i := 1; i < len(b.corners); i++ {
		segs = append(segs, core.Segment{Start: b.corners[i-1], End: b.corners[i]})
	}
	return segs
}

// finishAt joins the route to end with the hop described by hopCorner.
func (b *segmentBuilder) finishAt(end core.Point) {
	from := b.last()
	if from == end {
		return
	}
	b.lineTo(hopCorner(from, end, b.lastDirection()))
	b.lineTo(end)
}

// hopCorner returns where the hop from a lattice node to end turns. The hop
// runs along the axis of dir first and then takes at most one perpendicular
// segment; when continuing along the axis would double back, the
// perpendicular comes first.
func hopCorner(from, end core.Point, dir core.Direction) core.Point {
	alongX := core.Pt(end.X, from.Y)
	alongY := core.Pt(from.X, end.Y)

	corner := alongX
	if dir.Vertical() {
		corner = alongY
	}
	if dir != core.None && core.DirectionBetween(from, corner) == dir.Opposite() {
		if corner == alongX {
			corner = alongY
		} else {
			corner = alongX
		}
	}
	return corner
}
