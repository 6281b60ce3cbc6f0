// Package pathway is the element arena of a pathway diagram. It keeps the
// graph registry and the group bookkeeping in step with every structural
// change, and propagates moves to glued line points and states.
package pathway

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"pathlink/core"
	"pathlink/geometry"
	"pathlink/graph"
	"pathlink/groups"
	"pathlink/logging"
)

var (
	// ErrUnknownElement is returned for an element id not in the pathway.
	ErrUnknownElement = errors.New("unknown element")
	// ErrUnknownGroup is returned for a group id no group element carries.
	ErrUnknownGroup = errors.New("unknown group")
	// ErrGroupCycle is returned when a group would become its own member,
	// directly or through nested groups.
	ErrGroupCycle = errors.New("group would contain itself")
	// ErrInvalidElement is returned by Add for an element whose kind and
	// fields do not fit together.
	ErrInvalidElement = errors.New("invalid element")
)

// Pathway owns every element of one diagram. It is not safe for concurrent
// use.
type Pathway struct {
	elements map[core.ElementID]*Element
	order    []core.ElementID
	nextID   core.ElementID
	revision uint64

	graph  *graph.Manager
	groups *groups.Bookkeeper

	// moving holds the elements whose move notification is in flight.
	moving map[core.ElementID]bool
	logger *slog.Logger
}

type options struct {
	logger  *slog.Logger
	margins groups.Margins
	random  io.Reader
}

// Option configures a Pathway.
type Option func(*options)

// WithLogger sets the logger for integrity warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMargins overrides the group margins.
func WithMargins(m groups.Margins) Option {
	return func(o *options) { o.margins = m }
}

// WithRandom sets the random source used when generating ids.
func WithRandom(r io.Reader) Option {
	return func(o *options) { o.random = r }
}

// New creates an empty Pathway.
func New(opts ...Option) *Pathway {
	o := options{logger: logging.Discard()}
	for _, opt := range opts {
		opt(&o)
	}

	gopts := []graph.Option{graph.WithLogger(o.logger)}
	if o.random != nil {
		gopts = append(gopts, graph.WithRandom(o.random))
	}

	p := &Pathway{
		elements: make(map[core.ElementID]*Element),
		graph:    graph.NewManager(gopts...),
		moving:   make(map[core.ElementID]bool),
		logger:   o.logger,
	}
	p.groups = groups.NewBookkeeper(p, o.margins)
	return p
}

func validate(e *Element) error {
	if e.Kind < KindShape || e.Kind > KindGroup {
		return fmt.Errorf("kind %d: %w", e.Kind, ErrInvalidElement)
	}
	if len(e.Anchors) > 0 && e.Kind != KindLine {
		return fmt.Errorf("%s with anchors: %w", e.Kind, ErrInvalidElement)
	}
	for _, a := range e.Anchors {
		if a.Position < 0 || a.Position > 1 {
			return fmt.Errorf("anchor position %g outside [0,1]: %w", a.Position, ErrInvalidElement)
		}
	}
	if e.StateRef != "" && e.Kind != KindState {
		return fmt.Errorf("%s with state reference: %w", e.Kind, ErrInvalidElement)
	}
	if e.Kind == KindGroup && e.GroupID != "" && e.GroupRef == e.GroupID {
		return fmt.Errorf("group %q: %w", e.GroupID, ErrGroupCycle)
	}
	return nil
}

// Add inserts a copy of e and returns its handle. The element's graph id,
// anchor ids and group id are registered, its references recorded and its
// group membership set. A group without a GroupID gets a generated one.
// On error nothing is changed.
func (p *Pathway) Add(e Element) (core.ElementID, error) {
	if err := validate(&e); err != nil {
		return 0, err
	}
	el := e.clone()
	el.ID = p.nextID + 1

	var undo []func()
	rollback := func(err error) (core.ElementID, error) {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
		return 0, fmt.Errorf("add %s: %w", el.Kind, err)
	}

	if el.GraphID != "" {
		if err := p.graph.RegisterID(el.GraphID, core.ElementHandle(el.ID)); err != nil {
			return rollback(err)
		}
		undo = append(undo, func() { _ = p.graph.UnregisterID(el.GraphID) })
	}
	for i, a := range el.Anchors {
		if a.GraphID == "" {
			continue
		}
		if err := p.graph.RegisterID(a.GraphID, core.AnchorHandle(el.ID, i)); err != nil {
			return rollback(err)
		}
		undo = append(undo, func() { _ = p.graph.UnregisterID(a.GraphID) })
	}
	if el.Kind == KindGroup {
		if el.GroupID == "" {
			el.GroupID = p.graph.UniqueID()
		}
		if err := p.graph.RegisterGroupID(el.GroupID, el.ID); err != nil {
			return rollback(err)
		}
		undo = append(undo, func() { _ = p.graph.UnregisterGroupID(el.GroupID) })
	}
	if el.GroupRef != "" {
		if _, ok := p.graph.Group(el.GroupRef); !ok {
			return rollback(fmt.Errorf("group %q: %w", el.GroupRef, ErrUnknownGroup))
		}
		if err := p.checkNesting(&el, el.GroupRef); err != nil {
			return rollback(err)
		}
		if err := p.groups.AddMember(el.GroupRef, el.ID); err != nil {
			return rollback(err)
		}
	}

	p.nextID = el.ID
	p.elements[el.ID] = &el
	p.order = append(p.order, el.ID)
	p.revision++

	switch el.Kind {
	case KindLine:
		for i := range el.Points {
			if ref := el.Points[i].GraphRef; ref != "" {
				p.graph.AddReference(ref, pointRef{p: p, line: el.ID, index: i})
				p.gluePoint(el.ID, i)
			}
		}
	case KindState:
		if el.StateRef != "" {
			p.graph.AddReference(el.StateRef, stateRef{p: p, state: el.ID})
			p.glueState(el.ID)
		}
	case KindGroup:
		// Members may already exist when a group is re-added.
		p.refreshGroup(el.GroupID)
	}

	// Resolves forward references waiting for our ids and grows our group.
	p.changed(el.ID)
	return el.ID, nil
}

// Remove deletes an element. Referrers of its ids are unlinked, its own
// references dropped, its members ungrouped, and it leaves its group; a
// group left empty is removed too. The bookkeeping is checked before
// anything changes, so an error leaves the element in place.
func (p *Pathway) Remove(id core.ElementID) error {
	el, ok := p.elements[id]
	if !ok {
		return fmt.Errorf("remove %d: %w", id, ErrUnknownElement)
	}
	refs := p.referencesOf(el)
	if err := p.removable(el, refs); err != nil {
		return fmt.Errorf("remove %d: %w", id, err)
	}

	if err := p.graph.OnElementRemoved(el.graphIDs()...); err != nil {
		return fmt.Errorf("remove %d: %w", id, err)
	}
	for _, r := range refs {
		if err := p.graph.RemoveReference(r.id, r.referrer); err != nil {
			return fmt.Errorf("remove %d: %w", id, err)
		}
	}
	if el.Kind == KindGroup {
		for _, m := range p.groups.Dissolve(el.GroupID) {
			if member, ok := p.elements[m]; ok {
				member.GroupRef = ""
			}
		}
		if err := p.graph.UnregisterGroupID(el.GroupID); err != nil {
			return fmt.Errorf("remove %d: %w", id, err)
		}
	}

	delete(p.elements, id)
	p.order = slices.DeleteFunc(p.order, func(e core.ElementID) bool { return e == id })
	p.revision++

	if el.GroupRef != "" {
		cascaded, err := p.groups.RemoveMember(el.GroupRef, id)
		if err != nil {
			return fmt.Errorf("remove %d: %w", id, err)
		}
		if !cascaded {
			p.refreshGroup(el.GroupRef)
		}
	}
	return nil
}

// reference is one graph reference held by an element.
type reference struct {
	id       string
	referrer graph.Referrer
}

func (p *Pathway) referencesOf(el *Element) []reference {
	var refs []reference
	switch el.Kind {
	case KindLine:
		for i := range el.Points {
			if ref := el.Points[i].GraphRef; ref != "" {
				refs = append(refs, reference{ref, pointRef{p: p, line: el.ID, index: i}})
			}
		}
	case KindState:
		if el.StateRef != "" {
			refs = append(refs, reference{el.StateRef, stateRef{p: p, state: el.ID}})
		}
	}
	return refs
}

// removable reports the registry or group entry of el that Remove would
// fail to clear.
func (p *Pathway) removable(el *Element, refs []reference) error {
	for _, gid := range el.graphIDs() {
		if _, ok := p.graph.Lookup(gid); !ok {
			return &graph.UnknownIDError{ID: gid}
		}
	}
	for _, r := range refs {
		if !p.graph.HasReference(r.id, r.referrer) {
			return &graph.UnknownReferenceError{ID: r.id}
		}
	}
	if el.Kind == KindGroup {
		if _, ok := p.graph.Group(el.GroupID); !ok {
			return &graph.UnknownIDError{ID: el.GroupID}
		}
	}
	if el.GroupRef != "" && !slices.Contains(p.groups.Members(el.GroupRef), el.ID) {
		return fmt.Errorf("group %q: %w", el.GroupRef, groups.ErrNotMember)
	}
	return nil
}

// RemoveGroup removes the group element registered under groupID.
func (p *Pathway) RemoveGroup(groupID string) error {
	id, ok := p.graph.Group(groupID)
	if !ok {
		return fmt.Errorf("group %q: %w", groupID, ErrUnknownGroup)
	}
	return p.Remove(id)
}

// MemberBounds returns the extent of an element.
func (p *Pathway) MemberBounds(id core.ElementID) (core.Rect, bool) {
	el, ok := p.elements[id]
	if !ok {
		return core.Rect{}, false
	}
	return el.Extent(), true
}

func (p *Pathway) get(id core.ElementID) (*Element, error) {
	el, ok := p.elements[id]
	if !ok {
		return nil, fmt.Errorf("element %d: %w", id, ErrUnknownElement)
	}
	return el, nil
}

// MoveBy translates an element. Groups move their members; lines move only
// the points that are not glued to anything.
func (p *Pathway) MoveBy(id core.ElementID, dx, dy float64) error {
	el, err := p.get(id)
	if err != nil {
		return err
	}
	delta := core.Pt(dx, dy)

	switch el.Kind {
	case KindGroup:
		members := p.groups.Members(el.GroupID)
		if len(members) == 0 {
			el.Bounds = el.Bounds.Translate(delta)
			p.changed(id)
			return nil
		}
		for _, m := range members {
			if err := p.MoveBy(m, dx, dy); err != nil {
				return err
			}
		}
		return nil
	case KindLine:
		for i := range el.Points {
			if _, glued := p.attachPoint(el.Points[i].GraphRef, 0, 0); !glued {
				el.Points[i].Pos = core.Pt(el.Points[i].Pos.X+dx, el.Points[i].Pos.Y+dy)
			}
		}
	default:
		el.Bounds = el.Bounds.Translate(delta)
		p.rebaseState(el)
	}
	p.changed(id)
	return nil
}

// SetBounds replaces the bounds of a non-line element.
func (p *Pathway) SetBounds(id core.ElementID, r core.Rect) error {
	el, err := p.get(id)
	if err != nil {
		return err
	}
	if el.Kind == KindLine {
		return fmt.Errorf("set bounds of line %d: %w", id, ErrInvalidElement)
	}
	if el.Bounds == r {
		return nil
	}
	el.Bounds = r
	p.rebaseState(el)
	p.changed(id)
	return nil
}

// SetLinePoint moves one end of a line. A glued point keeps its target and
// is re-expressed relative to it; anchor targets pull it straight back.
func (p *Pathway) SetLinePoint(id core.ElementID, index int, pos core.Point) error {
	el, err := p.linePoint(id, index)
	if err != nil {
		return err
	}
	lp := &el.Points[index]
	lp.Pos = pos
	if target, ok := p.targetOf(lp.GraphRef); ok && !target.anchor {
		lp.RelX, lp.RelY = geometry.RelativePosition(target.extent, pos)
	}
	p.gluePoint(id, index)
	p.changed(id)
	return nil
}

// SetLineRef points one end of a line at ref, or detaches it when ref is
// empty. The point's position is kept relative to the new target.
func (p *Pathway) SetLineRef(id core.ElementID, index int, ref string) error {
	if _, err := p.linePoint(id, index); err != nil {
		return err
	}
	return p.relinkPoint(id, index, ref)
}

// SetStateRef glues a state to ref, or detaches it when ref is empty.
func (p *Pathway) SetStateRef(id core.ElementID, ref string) error {
	el, err := p.get(id)
	if err != nil {
		return err
	}
	if el.Kind != KindState {
		return fmt.Errorf("%s %d has no state reference: %w", el.Kind, id, ErrInvalidElement)
	}
	return p.relinkState(id, ref)
}

// SetAnchorPosition slides an anchor along its line.
func (p *Pathway) SetAnchorPosition(id core.ElementID, index int, position float64) error {
	el, err := p.get(id)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(el.Anchors) {
		return fmt.Errorf("anchor %d of %d: %w", index, id, ErrInvalidElement)
	}
	if position < 0 || position > 1 {
		return fmt.Errorf("anchor position %g outside [0,1]: %w", position, ErrInvalidElement)
	}
	el.Anchors[index].Position = position
	p.revision++
	p.graph.OnElementMoved(el.Anchors[index].GraphID)
	return nil
}

// SetGraphID changes the graph id of an element. References to the old id
// are not carried over; they dangle until FixReferences clears them.
func (p *Pathway) SetGraphID(id core.ElementID, graphID string) error {
	el, err := p.get(id)
	if err != nil {
		return err
	}
	old := el.GraphID
	if old == graphID {
		return nil
	}
	if graphID != "" {
		if err := p.graph.RegisterID(graphID, core.ElementHandle(id)); err != nil {
			return fmt.Errorf("set graph id of %d: %w", id, err)
		}
	}
	if old != "" {
		if err := p.graph.UnregisterID(old); err != nil {
			return fmt.Errorf("set graph id of %d: %w", id, err)
		}
	}
	el.GraphID = graphID
	p.revision++
	p.graph.OnElementMoved(graphID)
	return nil
}

// SetGroupRef moves an element into groupID, or out of any group when
// groupID is empty. A group left empty is removed.
func (p *Pathway) SetGroupRef(id core.ElementID, groupID string) error {
	el, err := p.get(id)
	if err != nil {
		return err
	}
	old := el.GroupRef
	if old == groupID {
		return nil
	}
	if groupID != "" {
		if _, ok := p.graph.Group(groupID); !ok {
			return fmt.Errorf("group %q: %w", groupID, ErrUnknownGroup)
		}
		if err := p.checkNesting(el, groupID); err != nil {
			return err
		}
		if err := p.groups.AddMember(groupID, id); err != nil {
			return err
		}
	}
	el.GroupRef = groupID
	p.revision++
	if groupID != "" {
		p.refreshGroup(groupID)
	}
	if old != "" {
		cascaded, err := p.groups.RemoveMember(old, id)
		if err != nil {
			return fmt.Errorf("leave group %q: %w", old, err)
		}
		if !cascaded {
			p.refreshGroup(old)
		}
	}
	return nil
}

// checkNesting rejects putting a group into itself or into one of its own
// descendants.
func (p *Pathway) checkNesting(el *Element, groupID string) error {
	if el.Kind != KindGroup {
		return nil
	}
	for g := groupID; g != ""; {
		if g == el.GroupID {
			return fmt.Errorf("group %q into %q: %w", el.GroupID, groupID, ErrGroupCycle)
		}
		gid, ok := p.graph.Group(g)
		if !ok {
			break
		}
		g = p.elements[gid].GroupRef
	}
	return nil
}

func (p *Pathway) linePoint(id core.ElementID, index int) (*Element, error) {
	el, err := p.get(id)
	if err != nil {
		return nil, err
	}
	if el.Kind != KindLine || index < 0 || index > 1 {
		return nil, fmt.Errorf("point %d of %s %d: %w", index, el.Kind, id, ErrInvalidElement)
	}
	return el, nil
}

func (p *Pathway) relinkPoint(id core.ElementID, index int, ref string) error {
	el, err := p.linePoint(id, index)
	if err != nil {
		return err
	}
	lp := &el.Points[index]
	if lp.GraphRef == ref {
		return nil
	}
	r := pointRef{p: p, line: id, index: index}
	if lp.GraphRef != "" {
		if err := p.graph.RemoveReference(lp.GraphRef, r); err != nil {
			return fmt.Errorf("relink point %d of %d: %w", index, id, err)
		}
	}
	lp.GraphRef = ref
	p.revision++
	if ref == "" {
		return nil
	}
	p.graph.AddReference(ref, r)
	if target, ok := p.targetOf(ref); ok && !target.anchor {
		lp.RelX, lp.RelY = geometry.RelativePosition(target.extent, lp.Pos)
	}
	p.gluePoint(id, index)
	return nil
}

func (p *Pathway) relinkState(id core.ElementID, ref string) error {
	el, err := p.get(id)
	if err != nil {
		return err
	}
	if el.StateRef == ref {
		return nil
	}
	r := stateRef{p: p, state: id}
	if el.StateRef != "" {
		if err := p.graph.RemoveReference(el.StateRef, r); err != nil {
			return fmt.Errorf("relink state %d: %w", id, err)
		}
	}
	el.StateRef = ref
	p.revision++
	if ref == "" {
		return nil
	}
	p.graph.AddReference(ref, r)
	p.rebaseState(el)
	p.glueState(id)
	return nil
}

// changed bumps the revision, notifies referrers of the element's ids and
// refreshes its group. Re-entrant notification of an element already being
// processed is dropped, which stops cycles of glued elements.
func (p *Pathway) changed(id core.ElementID) {
	if p.moving[id] {
		return
	}
	el, ok := p.elements[id]
	if !ok {
		return
	}
	p.moving[id] = true
	defer delete(p.moving, id)

	p.revision++
	p.graph.OnElementMoved(el.graphIDs()...)
	if el.GroupRef != "" {
		p.refreshGroup(el.GroupRef)
	}
}

func (p *Pathway) refreshGroup(groupID string) {
	gid, ok := p.graph.Group(groupID)
	if !ok {
		return
	}
	g := p.elements[gid]
	r, ok := p.groups.RecomputeBounds(groupID, g.GroupStyle)
	if !ok || r == g.Bounds {
		return
	}
	g.Bounds = r
	p.changed(gid)
}

type target struct {
	extent core.Rect
	anchor bool
	point  core.Point
}

// targetOf resolves a graph id to the geometry a referrer attaches to.
func (p *Pathway) targetOf(ref string) (target, bool) {
	if ref == "" {
		return target{}, false
	}
	h, ok := p.graph.Lookup(ref)
	if !ok {
		return target{}, false
	}
	el, ok := p.elements[h.Element]
	if !ok {
		return target{}, false
	}
	if !h.IsAnchor() {
		return target{extent: el.Extent()}, true
	}
	if h.Anchor >= len(el.Anchors) {
		return target{}, false
	}
	pos := geometry.Lerp(el.Points[0].Pos, el.Points[1].Pos, el.Anchors[h.Anchor].Position)
	return target{anchor: true, point: pos}, true
}

// attachPoint returns where a referrer of ref with relative position
// (rx, ry) sits.
func (p *Pathway) attachPoint(ref string, rx, ry float64) (core.Point, bool) {
	t, ok := p.targetOf(ref)
	if !ok {
		return core.Point{}, false
	}
	if t.anchor {
		return t.point, true
	}
	return geometry.AbsolutePosition(t.extent, rx, ry), true
}

func (p *Pathway) gluePoint(id core.ElementID, index int) {
	el, ok := p.elements[id]
	if !ok {
		return
	}
	lp := &el.Points[index]
	pos, ok := p.attachPoint(lp.GraphRef, lp.RelX, lp.RelY)
	if !ok || pos == lp.Pos {
		return
	}
	lp.Pos = pos
	p.changed(id)
}

// glueState centres a state on its attachment point.
func (p *Pathway) glueState(id core.ElementID) {
	el, ok := p.elements[id]
	if !ok {
		return
	}
	pos, ok := p.attachPoint(el.StateRef, el.RelX, el.RelY)
	if !ok {
		return
	}
	c := el.Bounds.Center()
	if pos == c {
		return
	}
	el.Bounds = el.Bounds.Translate(core.Pt(pos.X-c.X, pos.Y-c.Y))
	p.changed(id)
}

// rebaseState recomputes a glued state's relative position from its bounds.
func (p *Pathway) rebaseState(el *Element) {
	if el.Kind != KindState {
		return
	}
	if t, ok := p.targetOf(el.StateRef); ok && !t.anchor {
		el.RelX, el.RelY = geometry.RelativePosition(t.extent, el.Bounds.Center())
	}
}

// Element returns a copy of the element.
func (p *Pathway) Element(id core.ElementID) (Element, bool) {
	el, ok := p.elements[id]
	if !ok {
		return Element{}, false
	}
	return el.clone(), true
}

// Elements returns copies of every element in insertion order.
func (p *Pathway) Elements() []Element {
	out := make([]Element, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.elements[id].clone())
	}
	return out
}

// Len returns the number of elements.
func (p *Pathway) Len() int {
	return len(p.elements)
}

// Lookup returns the element that owns graphID. Anchor ids resolve to their
// line.
func (p *Pathway) Lookup(graphID string) (Element, bool) {
	h, ok := p.graph.Lookup(graphID)
	if !ok {
		return Element{}, false
	}
	return p.Element(h.Element)
}

// Group returns the group element registered under groupID.
func (p *Pathway) Group(groupID string) (Element, bool) {
	id, ok := p.graph.Group(groupID)
	if !ok {
		return Element{}, false
	}
	return p.Element(id)
}

// GroupMembers returns the members of groupID in the order they joined.
func (p *Pathway) GroupMembers(groupID string) []core.ElementID {
	return p.groups.Members(groupID)
}

// ReferrerCount returns how many referrers point at graphID.
func (p *Pathway) ReferrerCount(graphID string) int {
	return len(p.graph.ReferrersOf(graphID))
}

// DanglingReferences lists references whose target id is not registered.
func (p *Pathway) DanglingReferences() []graph.DanglingReferenceWarning {
	return p.graph.DanglingReferences()
}

// FixReferences clears dangling references. Run it before writing the
// pathway out.
func (p *Pathway) FixReferences() int {
	n := p.graph.FixReferences()
	if n > 0 {
		p.revision++
	}
	return n
}

// NewGraphID returns an id not yet used by any element or group.
func (p *Pathway) NewGraphID() string {
	return p.graph.UniqueID()
}

// Revision increases with every change to the pathway.
func (p *Pathway) Revision() uint64 {
	return p.revision
}
