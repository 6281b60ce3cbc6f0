package pathway

import (
	"slices"

	"pathlink/core"
)

// Kind identifies what an element is.
type Kind int

const (
	KindShape Kind = iota
	KindLabel
	KindDataNode
	KindState
	KindLine
	KindGroup
)

func (k Kind) String() string {
	switch k {
	case KindShape:
		return "shape"
	case KindLabel:
		return "label"
	case KindDataNode:
		return "datanode"
	case KindState:
		return "state"
	case KindLine:
		return "line"
	case KindGroup:
		return "group"
	default:
		return "unknown"
	}
}

// LinePoint is one end of a line. When GraphRef resolves, Pos follows the
// target: RelX and RelY place it relative to the target's centre, with the
// target's edges at -1 and 1. Anchor targets pin the point to the anchor.
type LinePoint struct {
	Pos      core.Point
	GraphRef string
	RelX     float64
	RelY     float64
}

// Anchor is a referenceable point at a fraction along a line.
type Anchor struct {
	GraphID  string
	Position float64
}

// Element is a diagram node as the connectivity core sees it. Pathway hands
// out copies; mutate through Pathway methods so referrers stay in sync.
type Element struct {
	ID       core.ElementID
	Kind     Kind
	GraphID  string
	GroupRef string

	// Bounds is the geometry of every kind except lines. For groups it is
	// computed from the members.
	Bounds core.Rect

	// Points and Anchors are used by lines.
	Points  [2]LinePoint
	Anchors []Anchor

	// StateRef, RelX and RelY glue a state to its data node.
	StateRef string
	RelX     float64
	RelY     float64

	// GroupID and GroupStyle are used by groups.
	GroupID    string
	GroupStyle core.GroupStyle
}

// Extent returns the area the element covers: its bounds, or for lines the
// box spanned by the two points.
func (e *Element) Extent() core.Rect {
	if e.Kind == KindLine {
		return core.BoundsOf(e.Points[0].Pos, e.Points[1].Pos)
	}
	return e.Bounds
}

// graphIDs returns every graph id the element owns: its own and its anchors'.
func (e *Element) graphIDs() []string {
	ids := make([]string, 0, 1+len(e.Anchors))
	if e.GraphID != "" {
		ids = append(ids, e.GraphID)
	}
	for _, a := range e.Anchors {
		if a.GraphID != "" {
			ids = append(ids, a.GraphID)
		}
	}
	return ids
}

func (e *Element) clone() Element {
	c := *e
	c.Anchors = slices.Clone(e.Anchors)
	return c
}
