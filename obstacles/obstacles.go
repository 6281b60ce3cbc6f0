// Package obstacles builds the obstacle predicates the connector router
// steers around.
package obstacles

import (
	"pathlink/core"
)

// Rect is a rectangular obstacle belonging to one element.
type Rect struct {
	Element core.ElementID
	Bounds  core.Rect
	Padding float64 // Extra space around the rectangle
}

// Contains checks if a point is inside the rectangle, padding and edges
// included.
func (r Rect) Contains(p core.Point) bool {
	return r.Bounds.Expand(r.Padding).Contains(p)
}

// Set is an ordered collection of rectangular obstacles. Build it first,
// then share it: Test is safe for concurrent use as long as nobody calls Add.
type Set struct {
	rects []Rect
}

// NewSet creates a set from the given rectangles.
func NewSet(rects ...Rect) *Set {
	s := &Set{}
	for _, r := range rects {
		s.Add(r)
	}
	return s
}

// Add appends an obstacle. Empty rectangles with no padding are ignored.
func (s *Set) Add(r Rect) {
	if r.Bounds.IsEmpty() && r.Padding <= 0 {
		return
	}
	s.rects = append(s.rects, r)
}

// Len returns the number of obstacles.
func (s *Set) Len() int {
	return len(s.rects)
}

// Rects returns the obstacles in insertion order.
func (s *Set) Rects() []Rect {
	return append([]Rect(nil), s.rects...)
}

// Test reports the first obstacle, in insertion order, that contains p.
func (s *Set) Test(p core.Point) (core.ElementID, bool) {
	for _, r := range s.rects {
		if r.Contains(p) {
			return r.Element, true
		}
	}
	return 0, false
}

// Func returns Test as an obstacle test.
func (s *Set) Func() core.ObstacleTest {
	return s.Test
}

// Outside returns a test that blocks every point outside bounds. Hits report
// element 0.
func Outside(bounds core.Rect) core.ObstacleTest {
	return func(p core.Point) (core.ElementID, bool) {
		return 0, !bounds.Contains(p)
	}
}

// None is a test that never hits.
func None(core.Point) (core.ElementID, bool) {
	return 0, false
}

// Combine combines obstacle tests with OR logic. The first hit wins.
func Combine(tests ...core.ObstacleTest) core.ObstacleTest {
	return func(p core.Point) (core.ElementID, bool) {
		for _, test := range tests {
			if test == nil {
				continue
			}
			if id, hit := test(p); hit {
				return id, true
			}
		}
		return 0, false
	}
}
