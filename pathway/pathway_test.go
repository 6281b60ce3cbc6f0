package pathway

import (
	"bytes"
	"testing"

	"pathlink/core"
	"pathlink/graph"
	"pathlink/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shape(graphID string, x, y, w, h float64) Element {
	return Element{Kind: KindShape, GraphID: graphID, Bounds: core.NewRect(x, y, w, h)}
}

func line(from, to LinePoint) Element {
	return Element{Kind: KindLine, Points: [2]LinePoint{from, to}}
}

func mustAdd(t *testing.T, p *Pathway, e Element) core.ElementID {
	t.Helper()
	id, err := p.Add(e)
	require.NoError(t, err)
	return id
}

func point(t *testing.T, p *Pathway, id core.ElementID, i int) LinePoint {
	t.Helper()
	el, ok := p.Element(id)
	require.True(t, ok)
	return el.Points[i]
}

func TestAddGluesLinePoints(t *testing.T) {
	p := New()
	mustAdd(t, p, shape("n1", 0, 0, 20, 20))
	l := mustAdd(t, p, line(
		LinePoint{GraphRef: "n1", RelX: 1},
		LinePoint{Pos: core.Pt(100, 10)},
	))

	assert.Equal(t, core.Pt(20, 10), point(t, p, l, 0).Pos)
	assert.Equal(t, core.Pt(100, 10), point(t, p, l, 1).Pos)
	assert.Equal(t, 1, p.ReferrerCount("n1"))
}

func TestAddResolvesForwardReferences(t *testing.T) {
	p := New()
	l := mustAdd(t, p, line(
		LinePoint{Pos: core.Pt(-50, -50), GraphRef: "later", RelY: -1},
		LinePoint{Pos: core.Pt(100, 10)},
	))
	assert.Equal(t, core.Pt(-50, -50), point(t, p, l, 0).Pos, "unresolved points keep their position")
	assert.Len(t, p.DanglingReferences(), 1)

	mustAdd(t, p, shape("later", 0, 0, 40, 20))
	assert.Equal(t, core.Pt(20, 0), point(t, p, l, 0).Pos)
	assert.Empty(t, p.DanglingReferences())
}

func TestAddRollsBackOnDuplicateID(t *testing.T) {
	p := New()
	mustAdd(t, p, shape("n1", 0, 0, 10, 10))
	rev := p.Revision()

	dup := line(LinePoint{GraphRef: "n1"}, LinePoint{Pos: core.Pt(5, 5)})
	dup.GraphID = "fresh"
	dup.Anchors = []Anchor{{GraphID: "a1", Position: 0.5}, {GraphID: "n1", Position: 0.2}}

	_, err := p.Add(dup)
	require.ErrorIs(t, err, graph.ErrDuplicateID)

	assert.Equal(t, 1, p.Len())
	assert.Equal(t, rev, p.Revision())
	assert.Equal(t, 0, p.ReferrerCount("n1"))
	for _, id := range []string{"fresh", "a1"} {
		_, ok := p.Lookup(id)
		assert.False(t, ok, "%s is rolled back", id)
	}
}

func TestAddRejectsInvalidElements(t *testing.T) {
	tests := []struct {
		name string
		e    Element
		want error
	}{
		{"unknown kind", Element{Kind: Kind(42)}, ErrInvalidElement},
		{"anchors on a shape", Element{Kind: KindShape, Anchors: []Anchor{{Position: 0.5}}}, ErrInvalidElement},
		{"anchor off the line", Element{Kind: KindLine, Anchors: []Anchor{{Position: 1.5}}}, ErrInvalidElement},
		{"state ref on a label", Element{Kind: KindLabel, StateRef: "n1"}, ErrInvalidElement},
		{"group in itself", Element{Kind: KindGroup, GroupID: "g", GroupRef: "g"}, ErrGroupCycle},
		{"unknown group", Element{Kind: KindShape, GroupRef: "nope"}, ErrUnknownGroup},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New()
			_, err := p.Add(tt.e)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, 0, p.Len())
		})
	}
}

func TestRemoveUnlinksReferrers(t *testing.T) {
	p := New()
	s := mustAdd(t, p, shape("n1", 0, 0, 20, 20))
	l := mustAdd(t, p, line(
		LinePoint{GraphRef: "n1", RelX: 1},
		LinePoint{Pos: core.Pt(100, 10)},
	))

	require.NoError(t, p.Remove(s))

	lp := point(t, p, l, 0)
	assert.Equal(t, "", lp.GraphRef)
	assert.Equal(t, core.Pt(20, 10), lp.Pos, "the point stays where it was")
	assert.Equal(t, 0, p.ReferrerCount("n1"))
	_, ok := p.Lookup("n1")
	assert.False(t, ok)
	assert.Equal(t, 0, p.FixReferences())

	assert.ErrorIs(t, p.Remove(s), ErrUnknownElement)
}

func TestRemoveLineDropsItsReferences(t *testing.T) {
	p := New()
	mustAdd(t, p, shape("n1", 0, 0, 20, 20))
	mustAdd(t, p, shape("n2", 100, 0, 20, 20))
	l := mustAdd(t, p, line(LinePoint{GraphRef: "n1"}, LinePoint{GraphRef: "n2"}))

	require.NoError(t, p.Remove(l))
	assert.Equal(t, 0, p.ReferrerCount("n1"))
	assert.Equal(t, 0, p.ReferrerCount("n2"))
	assert.Equal(t, 2, p.Len())
}

func TestMovePropagation(t *testing.T) {
	p := New()
	s := mustAdd(t, p, shape("n1", 0, 0, 20, 20))
	carrier := line(LinePoint{Pos: core.Pt(0, 100)}, LinePoint{Pos: core.Pt(100, 100)})
	carrier.Anchors = []Anchor{{GraphID: "anc", Position: 0.5}}
	c := mustAdd(t, p, carrier)
	l := mustAdd(t, p, line(
		LinePoint{GraphRef: "n1", RelX: 1},
		LinePoint{GraphRef: "anc"},
	))
	assert.Equal(t, core.Pt(50, 100), point(t, p, l, 1).Pos)

	t.Run("element move", func(t *testing.T) {
		require.NoError(t, p.MoveBy(s, 10, 5))
		assert.Equal(t, core.Pt(30, 15), point(t, p, l, 0).Pos)
	})

	t.Run("anchor follows its line", func(t *testing.T) {
		require.NoError(t, p.MoveBy(c, 0, 10))
		assert.Equal(t, core.Pt(50, 110), point(t, p, l, 1).Pos)
	})

	t.Run("anchor slides", func(t *testing.T) {
		require.NoError(t, p.SetAnchorPosition(c, 0, 0.25))
		assert.Equal(t, core.Pt(25, 110), point(t, p, l, 1).Pos)
		assert.ErrorIs(t, p.SetAnchorPosition(c, 0, 2), ErrInvalidElement)
		assert.ErrorIs(t, p.SetAnchorPosition(c, 3, 0.5), ErrInvalidElement)
	})

	t.Run("glued points ignore line moves", func(t *testing.T) {
		require.NoError(t, p.MoveBy(l, 500, 500))
		assert.Equal(t, core.Pt(30, 15), point(t, p, l, 0).Pos)
		assert.Equal(t, core.Pt(25, 110), point(t, p, l, 1).Pos)
	})

	t.Run("resize", func(t *testing.T) {
		require.NoError(t, p.SetBounds(s, core.NewRect(0, 0, 40, 40)))
		assert.Equal(t, core.Pt(40, 20), point(t, p, l, 0).Pos)
		assert.ErrorIs(t, p.SetBounds(l, core.NewRect(0, 0, 1, 1)), ErrInvalidElement)
	})
}

func TestGluedLinesDoNotLoop(t *testing.T) {
	p := New()
	a := line(LinePoint{Pos: core.Pt(0, 0)}, LinePoint{GraphRef: "bAnc"})
	a.Anchors = []Anchor{{GraphID: "aAnc", Position: 0.5}}
	b := line(LinePoint{Pos: core.Pt(100, 100)}, LinePoint{GraphRef: "aAnc"})
	b.Anchors = []Anchor{{GraphID: "bAnc", Position: 0.5}}
	la := mustAdd(t, p, a)
	mustAdd(t, p, b)

	require.NoError(t, p.SetLinePoint(la, 0, core.Pt(10, 10)))
	assert.Equal(t, core.Pt(10, 10), point(t, p, la, 0).Pos)
}

func TestSetLinePointKeepsGlue(t *testing.T) {
	p := New()
	mustAdd(t, p, shape("n1", 0, 0, 20, 20))
	l := mustAdd(t, p, line(LinePoint{GraphRef: "n1"}, LinePoint{Pos: core.Pt(100, 10)}))

	require.NoError(t, p.SetLinePoint(l, 0, core.Pt(10, 0)))
	lp := point(t, p, l, 0)
	assert.Equal(t, "n1", lp.GraphRef)
	assert.Equal(t, 0.0, lp.RelX)
	assert.Equal(t, -1.0, lp.RelY)
	assert.Equal(t, core.Pt(10, 0), lp.Pos)

	assert.ErrorIs(t, p.SetLinePoint(l, 2, core.Pt(0, 0)), ErrInvalidElement)
}

func TestSetLineRef(t *testing.T) {
	p := New()
	mustAdd(t, p, shape("n1", 0, 0, 20, 20))
	mustAdd(t, p, shape("n2", 100, 0, 20, 20))
	l := mustAdd(t, p, line(LinePoint{GraphRef: "n1"}, LinePoint{Pos: core.Pt(120, 10)}))

	require.NoError(t, p.SetLineRef(l, 1, "n2"))
	assert.Equal(t, 1, p.ReferrerCount("n2"))
	lp := point(t, p, l, 1)
	assert.Equal(t, 1.0, lp.RelX)
	assert.Equal(t, 0.0, lp.RelY)

	require.NoError(t, p.SetLineRef(l, 0, ""))
	assert.Equal(t, 0, p.ReferrerCount("n1"))
}

func TestStateFollowsDataNode(t *testing.T) {
	p := New()
	d := mustAdd(t, p, Element{Kind: KindDataNode, GraphID: "d1", Bounds: core.NewRect(0, 0, 100, 50)})
	s := mustAdd(t, p, Element{
		Kind:     KindState,
		Bounds:   core.NewRect(0, 0, 10, 10),
		StateRef: "d1",
		RelX:     1,
		RelY:     -1,
	})

	st, _ := p.Element(s)
	assert.Equal(t, core.NewRect(95, -5, 10, 10), st.Bounds)

	require.NoError(t, p.MoveBy(d, 10, 0))
	st, _ = p.Element(s)
	assert.Equal(t, core.NewRect(105, -5, 10, 10), st.Bounds)

	require.NoError(t, p.Remove(d))
	st, _ = p.Element(s)
	assert.Equal(t, "", st.StateRef)

	assert.ErrorIs(t, p.SetStateRef(d, "x"), ErrUnknownElement)
}

func TestGroupBoundsAndCascade(t *testing.T) {
	p := New()
	g := mustAdd(t, p, Element{Kind: KindGroup, GroupID: "g", GroupStyle: core.GroupStyleGroup})
	a := shape("a", 0, 0, 10, 10)
	a.GroupRef = "g"
	b := shape("b", 20, 20, 10, 10)
	b.GroupRef = "g"
	ida := mustAdd(t, p, a)
	idb := mustAdd(t, p, b)

	grp, _ := p.Group("g")
	assert.Equal(t, g, grp.ID)
	assert.Equal(t, core.Rect{Min: core.Pt(-8, -8), Max: core.Pt(38, 38)}, grp.Bounds)
	assert.Equal(t, []core.ElementID{ida, idb}, p.GroupMembers("g"))

	require.NoError(t, p.Remove(ida))
	grp, _ = p.Group("g")
	assert.Equal(t, core.Rect{Min: core.Pt(12, 12), Max: core.Pt(38, 38)}, grp.Bounds)

	require.NoError(t, p.Remove(idb))
	_, ok := p.Group("g")
	assert.False(t, ok, "the empty group is removed")
	assert.Equal(t, 0, p.Len())
}

func TestNestedGroupCascade(t *testing.T) {
	p := New()
	mustAdd(t, p, Element{Kind: KindGroup, GroupID: "outer", GroupStyle: core.GroupStyleComplex})
	inner := mustAdd(t, p, Element{Kind: KindGroup, GroupID: "inner", GroupRef: "outer", GroupStyle: core.GroupStyleGroup})
	s := shape("s", 0, 0, 10, 10)
	s.GroupRef = "inner"
	sid := mustAdd(t, p, s)

	outer, _ := p.Group("outer")
	assert.Equal(t, core.Rect{Min: core.Pt(-20, -20), Max: core.Pt(30, 30)}, outer.Bounds)

	assert.ErrorIs(t, p.SetGroupRef(mustGroupElement(t, p, "outer"), "inner"), ErrGroupCycle)
	assert.NoError(t, p.SetGroupRef(inner, "outer"), "unchanged membership is a no-op")

	require.NoError(t, p.Remove(sid))
	assert.Equal(t, 0, p.Len(), "removing the last member empties both groups")
}

func mustGroupElement(t *testing.T, p *Pathway, groupID string) core.ElementID {
	t.Helper()
	g, ok := p.Group(groupID)
	require.True(t, ok)
	return g.ID
}

func TestRemoveGroupUngroupsMembers(t *testing.T) {
	p := New()
	g := mustAdd(t, p, Element{Kind: KindGroup, GroupID: "g"})
	s := shape("s", 0, 0, 10, 10)
	s.GroupRef = "g"
	sid := mustAdd(t, p, s)

	require.NoError(t, p.Remove(g))
	el, ok := p.Element(sid)
	require.True(t, ok)
	assert.Equal(t, "", el.GroupRef)
	assert.Empty(t, p.GroupMembers("g"))
	assert.ErrorIs(t, p.RemoveGroup("g"), ErrUnknownGroup)
}

func TestRemoveFailureLeavesElementInPlace(t *testing.T) {
	t.Run("line missing one of its references", func(t *testing.T) {
		p := New()
		mustAdd(t, p, shape("n1", 0, 0, 20, 20))
		mustAdd(t, p, shape("n2", 100, 0, 20, 20))
		l := mustAdd(t, p, line(LinePoint{GraphRef: "n1"}, LinePoint{GraphRef: "n2"}))
		require.NoError(t, p.graph.RemoveReference("n2", pointRef{p: p, line: l, index: 1}))
		rev := p.Revision()

		assert.ErrorIs(t, p.Remove(l), graph.ErrUnknownReference)
		_, ok := p.Element(l)
		assert.True(t, ok)
		assert.Equal(t, 1, p.ReferrerCount("n1"), "the first reference is kept")
		assert.Equal(t, rev, p.Revision())
	})

	t.Run("group missing from the registry", func(t *testing.T) {
		p := New()
		g := mustAdd(t, p, Element{Kind: KindGroup, GroupID: "g"})
		s := shape("s", 0, 0, 10, 10)
		s.GroupRef = "g"
		sid := mustAdd(t, p, s)
		require.NoError(t, p.graph.UnregisterGroupID("g"))

		assert.ErrorIs(t, p.Remove(g), graph.ErrUnknownID)
		el, ok := p.Element(sid)
		require.True(t, ok)
		assert.Equal(t, "g", el.GroupRef, "members stay grouped")
		assert.Equal(t, []core.ElementID{sid}, p.GroupMembers("g"))
	})
}

func TestMoveGroupMovesMembers(t *testing.T) {
	p := New()
	g := mustAdd(t, p, Element{Kind: KindGroup, GroupID: "g", GroupStyle: core.GroupStyleNone})
	s := shape("s", 0, 0, 10, 10)
	s.GroupRef = "g"
	sid := mustAdd(t, p, s)

	require.NoError(t, p.MoveBy(g, 5, 5))
	el, _ := p.Element(sid)
	assert.Equal(t, core.NewRect(5, 5, 10, 10), el.Bounds)
	grp, _ := p.Element(g)
	assert.Equal(t, core.NewRect(5, 5, 10, 10), grp.Bounds)
}

func TestSetGroupRefMovesBetweenGroups(t *testing.T) {
	p := New()
	mustAdd(t, p, Element{Kind: KindGroup, GroupID: "g1"})
	mustAdd(t, p, Element{Kind: KindGroup, GroupID: "g2"})
	s := shape("s", 0, 0, 10, 10)
	s.GroupRef = "g1"
	sid := mustAdd(t, p, s)

	require.NoError(t, p.SetGroupRef(sid, "g2"))
	assert.Equal(t, []core.ElementID{sid}, p.GroupMembers("g2"))
	_, ok := p.Group("g1")
	assert.False(t, ok, "g1 lost its last member")

	assert.ErrorIs(t, p.SetGroupRef(sid, "g1"), ErrUnknownGroup)
	require.NoError(t, p.SetGroupRef(sid, ""))
	_, ok = p.Group("g2")
	assert.False(t, ok)
}

func TestSetGraphIDLeavesDanglingReferences(t *testing.T) {
	var buf bytes.Buffer
	p := New(WithLogger(logging.New("warn", "text", &buf)))
	s := mustAdd(t, p, shape("n1", 0, 0, 20, 20))
	l := mustAdd(t, p, line(LinePoint{GraphRef: "n1"}, LinePoint{Pos: core.Pt(100, 10)}))

	require.NoError(t, p.SetGraphID(s, "n2"))
	el, ok := p.Lookup("n2")
	require.True(t, ok)
	assert.Equal(t, s, el.ID)

	dangling := p.DanglingReferences()
	require.Len(t, dangling, 1)
	assert.Equal(t, "n1", dangling[0].ID)

	rev := p.Revision()
	assert.Equal(t, 1, p.FixReferences())
	assert.Greater(t, p.Revision(), rev)
	assert.Equal(t, "", point(t, p, l, 0).GraphRef)
	assert.Contains(t, buf.String(), "dangling reference")
	assert.Equal(t, 0, p.FixReferences())

	mustAdd(t, p, shape("taken", 50, 50, 5, 5))
	assert.ErrorIs(t, p.SetGraphID(s, "taken"), graph.ErrDuplicateID)
}

func TestGeneratedGroupID(t *testing.T) {
	p := New(WithRandom(bytes.NewReader(make([]byte, 16))))
	g := mustAdd(t, p, Element{Kind: KindGroup})
	el, _ := p.Element(g)
	assert.Equal(t, "a0000", el.GroupID)

	_, err := p.Add(shape("a0000", 0, 0, 1, 1))
	assert.ErrorIs(t, err, graph.ErrDuplicateID, "group ids share the namespace")
}

func TestElementsAndRevision(t *testing.T) {
	p := New()
	rev := p.Revision()
	a := mustAdd(t, p, shape("a", 0, 0, 1, 1))
	b := mustAdd(t, p, shape("b", 0, 0, 1, 1))
	c := mustAdd(t, p, shape("c", 0, 0, 1, 1))
	require.Greater(t, p.Revision(), rev)

	require.NoError(t, p.Remove(b))
	var ids []core.ElementID
	for _, e := range p.Elements() {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []core.ElementID{a, c}, ids)

	got, _ := p.Element(a)
	got.GraphID = "mutated"
	again, _ := p.Element(a)
	assert.Equal(t, "a", again.GraphID, "elements are handed out as copies")

	assert.NotEmpty(t, p.NewGraphID())
}
