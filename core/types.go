// Package core contains the fundamental types shared by the pathway graph and the connector router.
package core

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"
)

// Point represents a real-valued position on the pathway canvas.
// The Y axis grows downwards.
type Point = r2.Vec

// Pt is shorthand for building a Point.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Direction represents a cardinal direction.
type Direction int

const (
	North Direction = iota
	East
	South
	West
	None
)

// String returns the string representation of a Direction.
func (d Direction) String() string {
	switch d {
	case North:
		return "North"
	case East:
		return "East"
	case South:
		return "South"
	case West:
		return "West"
	case None:
		return "None"
	default:
		return "Unknown"
	}
}

// Opposite returns the opposite direction.
func (d Direction) Opposite() Direction {
	switch d {
	case North:
		return South
	case East:
		return West
	case South:
		return North
	case West:
		return East
	default:
		return d
	}
}

// Horizontal reports whether d runs along the X axis.
func (d Direction) Horizontal() bool {
	return d == East || d == West
}

// Vertical reports whether d runs along the Y axis.
func (d Direction) Vertical() bool {
	return d == North || d == South
}

// Perpendicular returns the two directions at right angles to d.
// North and South yield East, West; East and West yield North, South.
func (d Direction) Perpendicular() [2]Direction {
	if d.Vertical() {
		return [2]Direction{East, West}
	}
	return [2]Direction{North, South}
}

// Delta returns the unit lattice offset of one step in direction d.
func (d Direction) Delta() (dx, dy int) {
	switch d {
	case North:
		return 0, -1
	case East:
		return 1, 0
	case South:
		return 0, 1
	case West:
		return -1, 0
	default:
		return 0, 0
	}
}

// DirectionBetween returns the axis direction from p1 to p2.
// It returns None when the points coincide or are not axis-aligned.
func DirectionBetween(p1, p2 Point) Direction {
	if p1.X == p2.X {
		if p1.Y < p2.Y {
			return South
		} else if p1.Y > p2.Y {
			return North
		}
	} else if p1.Y == p2.Y {
		if p1.X < p2.X {
			return East
		}
		return West
	}
	return None
}

// Rect is an axis-aligned rectangle. Min is the top-left corner.
type Rect r2.Box

// NewRect builds a Rect from its top-left corner and size.
func NewRect(x, y, width, height float64) Rect {
	return Rect{Min: Pt(x, y), Max: Pt(x+width, y+height)}
}

// Width returns the width of the rectangle.
func (r Rect) Width() float64 {
	return r.Max.X - r.Min.X
}

// Height returns the height of the rectangle.
func (r Rect) Height() float64 {
	return r.Max.Y - r.Min.Y
}

// Center returns the centre point of the rectangle.
func (r Rect) Center() Point {
	return r2.Scale(0.5, r2.Add(r.Min, r.Max))
}

// IsEmpty reports whether the rectangle has no area.
func (r Rect) IsEmpty() bool {
	return r.Max.X <= r.Min.X || r.Max.Y <= r.Min.Y
}

// Contains checks if a point lies within the rectangle, edges included.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.Min.X && p.X <= r.Max.X &&
		p.Y >= r.Min.Y && p.Y <= r.Max.Y
}

// Union returns the smallest rectangle covering both r and o.
func (r Rect) Union(o Rect) Rect {
	return Rect{
		Min: Pt(math.Min(r.Min.X, o.Min.X), math.Min(r.Min.Y, o.Min.Y)),
		Max: Pt(math.Max(r.Max.X, o.Max.X), math.Max(r.Max.Y, o.Max.Y)),
	}
}

// Expand grows the rectangle by margin on every side.
func (r Rect) Expand(margin float64) Rect {
	m := Pt(margin, margin)
	return Rect{Min: r2.Sub(r.Min, m), Max: r2.Add(r.Max, m)}
}

// Translate moves the rectangle by delta.
func (r Rect) Translate(delta Point) Rect {
	return Rect{Min: r2.Add(r.Min, delta), Max: r2.Add(r.Max, delta)}
}

// BoundsOf returns the bounding rectangle of a set of points.
func BoundsOf(points ...Point) Rect {
	if len(points) == 0 {
		return Rect{}
	}
	r := Rect{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		r = r.Union(Rect{Min: p, Max: p})
	}
	return r
}

// Segment is a straight piece of a routed connector.
type Segment struct {
	Start Point `json:"start"`
	End   Point `json:"end"`
}

// Direction returns the axis direction of the segment, or None for
// degenerate and diagonal segments.
func (s Segment) Direction() Direction {
	return DirectionBetween(s.Start, s.End)
}

// Length returns the Euclidean length of the segment.
func (s Segment) Length() float64 {
	return r2.Norm(r2.Sub(s.End, s.Start))
}

func (s Segment) String() string {
	return fmt.Sprintf("(%g,%g)->(%g,%g)", s.Start.X, s.Start.Y, s.End.X, s.End.Y)
}

// ElementID is the arena handle of a pathway element. The zero value is
// never assigned.
type ElementID uint64

// Handle names a registry target: either an element or one of its anchors.
type Handle struct {
	Element ElementID
	Anchor  int // -1 for the element itself
}

// ElementHandle returns the handle of the element itself.
func ElementHandle(id ElementID) Handle {
	return Handle{Element: id, Anchor: -1}
}

// AnchorHandle returns the handle of the index-th anchor of a line.
func AnchorHandle(id ElementID, index int) Handle {
	return Handle{Element: id, Anchor: index}
}

// IsZero reports whether the handle names nothing.
func (h Handle) IsZero() bool {
	return h.Element == 0
}

// IsAnchor reports whether the handle names an anchor.
func (h Handle) IsAnchor() bool {
	return h.Anchor >= 0
}

// ObstacleTest reports which element, if any, occupies a point.
type ObstacleTest func(p Point) (ElementID, bool)

// GroupStyle controls how a group is drawn and how far its bounds extend
// beyond its members.
type GroupStyle int

const (
	GroupStyleNone GroupStyle = iota
	GroupStyleGroup
	GroupStyleComplex
	GroupStylePathway
)

var groupStyleNames = [...]string{"none", "group", "complex", "pathway"}

func (s GroupStyle) String() string {
	if s < 0 || int(s) >= len(groupStyleNames) {
		return "unknown"
	}
	return groupStyleNames[s]
}

// ParseGroupStyle converts a style name into a GroupStyle.
func ParseGroupStyle(name string) (GroupStyle, error) {
	for i, n := range groupStyleNames {
		if strings.EqualFold(n, name) {
			return GroupStyle(i), nil
		}
	}
	return GroupStyleNone, fmt.Errorf("unknown group style %q", name)
}
