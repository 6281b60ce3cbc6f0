// Package groups tracks group membership and group bounds.
package groups

import (
	"errors"
	"fmt"
	"slices"

	"pathlink/core"
)

// ErrNotMember is returned when removing an element that is not a member of
// the group.
var ErrNotMember = errors.New("not a group member")

// Host is the element collection the bookkeeper works against.
type Host interface {
	// MemberBounds returns the current bounds of an element.
	MemberBounds(id core.ElementID) (core.Rect, bool)
	// RemoveGroup deletes the group element registered under groupID.
	RemoveGroup(groupID string) error
}

// Margins maps a group style to the distance its bounds extend beyond the
// members' combined bounds.
type Margins map[core.GroupStyle]float64

// DefaultMargins returns the stock margin per style.
func DefaultMargins() Margins {
	return Margins{
		core.GroupStyleNone:    0,
		core.GroupStyleGroup:   8,
		core.GroupStyleComplex: 12,
		core.GroupStylePathway: 8,
	}
}

// For returns the margin of style, 0 if unset.
func (m Margins) For(style core.GroupStyle) float64 {
	return m[style]
}

// Bookkeeper records which elements belong to which group. Groups are never
// created here; a group disappears when its last member leaves.
type Bookkeeper struct {
	members map[string][]core.ElementID
	margins Margins
	host    Host
}

// NewBookkeeper creates a Bookkeeper. A nil margins map uses DefaultMargins.
func NewBookkeeper(host Host, margins Margins) *Bookkeeper {
	if margins == nil {
		margins = DefaultMargins()
	}
	return &Bookkeeper{
		members: make(map[string][]core.ElementID),
		margins: margins,
		host:    host,
	}
}

// AddMember records that element belongs to groupID. Adding a member twice
// is a no-op.
func (b *Bookkeeper) AddMember(groupID string, element core.ElementID) error {
	if groupID == "" || element == 0 {
		return fmt.Errorf("add member %d to group %q: invalid membership", element, groupID)
	}
	if slices.Contains(b.members[groupID], element) {
		return nil
	}
	b.members[groupID] = append(b.members[groupID], element)
	return nil
}

// RemoveMember drops element from groupID. When the group becomes empty its
// group element is removed through the host and cascaded is true.
func (b *Bookkeeper) RemoveMember(groupID string, element core.ElementID) (cascaded bool, err error) {
	list := b.members[groupID]
	i := slices.Index(list, element)
	if i < 0 {
		return false, fmt.Errorf("remove %d from group %q: %w", element, groupID, ErrNotMember)
	}
	list = slices.Delete(list, i, i+1)
	if len(list) > 0 {
		b.members[groupID] = list
		return false, nil
	}

	delete(b.members, groupID)
	if err := b.host.RemoveGroup(groupID); err != nil {
		return true, fmt.Errorf("remove empty group %q: %w", groupID, err)
	}
	return true, nil
}

// Dissolve forgets every member of groupID without removing the group
// element, returning the former members.
func (b *Bookkeeper) Dissolve(groupID string) []core.ElementID {
	members := b.members[groupID]
	delete(b.members, groupID)
	return members
}

// Members returns the members of groupID in the order they joined.
func (b *Bookkeeper) Members(groupID string) []core.ElementID {
	return slices.Clone(b.members[groupID])
}

// Size returns the number of members of groupID.
func (b *Bookkeeper) Size(groupID string) int {
	return len(b.members[groupID])
}

// RecomputeBounds returns the union of the member bounds expanded by the
// margin of style. It returns false for a group without measurable members.
func (b *Bookkeeper) RecomputeBounds(groupID string, style core.GroupStyle) (core.Rect, bool) {
	var bounds core.Rect
	found := false
	for _, id := range b.members[groupID] {
		r, ok := b.host.MemberBounds(id)
		if !ok {
			continue
		}
		if !found {
			bounds, found = r, true
			continue
		}
		bounds = bounds.Union(r)
	}
	if !found {
		return core.Rect{}, false
	}
	return bounds.Expand(b.margins.For(style)), true
}
