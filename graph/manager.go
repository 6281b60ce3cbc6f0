// Package graph keeps the id registry and the reverse reference index of a
// pathway.
//
// The Manager is the single owner of the id→target and id→referrers maps.
// Targets are arena handles, never pointers, so the ownership graph has no
// cycles. The Manager is not safe for concurrent use; one model goroutine
// owns it.
package graph

import (
	"io"
	"log/slog"
	"maps"
	"slices"

	"pathlink/core"
	"pathlink/logging"
)

// Referrer is anything that holds a reference to a graph id: a line
// endpoint, a state glued to a data node. Implementations must be
// comparable, since the Manager finds them again with ==.
type Referrer interface {
	// GraphRef returns the id currently referenced.
	GraphRef() string
	// Unlink clears the reference. The referrer itself stays.
	Unlink()
	// RefeeChanged recomputes whatever the referrer derives from its target.
	RefeeChanged()
}

// Manager owns the graph id namespace, the group id namespace and the
// reverse reference index.
type Manager struct {
	ids    map[string]core.Handle
	groups map[string]core.ElementID
	refs   map[string][]Referrer

	random io.Reader
	logger *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for integrity warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithRandom sets the source of random bits for UniqueID.
func WithRandom(r io.Reader) Option {
	return func(m *Manager) { m.random = r }
}

// NewManager creates an empty Manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		ids:    make(map[string]core.Handle),
		groups: make(map[string]core.ElementID),
		refs:   make(map[string][]Referrer),
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) taken(id string) bool {
	if _, ok := m.ids[id]; ok {
		return true
	}
	_, ok := m.groups[id]
	return ok
}

// RegisterID maps id to target. Graph ids and group ids share one
// uniqueness check.
func (m *Manager) RegisterID(id string, target core.Handle) error {
	if id == "" || target.IsZero() {
		return ErrInvalidTarget
	}
	if m.taken(id) {
		return &DuplicateIDError{ID: id}
	}
	m.ids[id] = target
	return nil
}

// UnregisterID removes the mapping for id.
func (m *Manager) UnregisterID(id string) error {
	if _, ok := m.ids[id]; !ok {
		return &UnknownIDError{ID: id}
	}
	delete(m.ids, id)
	return nil
}

// Lookup resolves a graph id.
func (m *Manager) Lookup(id string) (core.Handle, bool) {
	h, ok := m.ids[id]
	return h, ok
}

// RegisterGroupID maps a group id to its group element.
func (m *Manager) RegisterGroupID(id string, group core.ElementID) error {
	if id == "" || group == 0 {
		return ErrInvalidTarget
	}
	if m.taken(id) {
		return &DuplicateIDError{ID: id}
	}
	m.groups[id] = group
	return nil
}

// UnregisterGroupID removes a group id.
func (m *Manager) UnregisterGroupID(id string) error {
	if _, ok := m.groups[id]; !ok {
		return &UnknownIDError{ID: id}
	}
	delete(m.groups, id)
	return nil
}

// Group resolves a group id to its group element.
func (m *Manager) Group(id string) (core.ElementID, bool) {
	g, ok := m.groups[id]
	return g, ok
}

// AddReference records that referrer points at id. The id does not have to
// be registered yet; forward references are resolved once it is.
func (m *Manager) AddReference(id string, referrer Referrer) {
	m.refs[id] = append(m.refs[id], referrer)
}

// RemoveReference forgets that referrer points at id. The id key is dropped
// once its last referrer is gone.
func (m *Manager) RemoveReference(id string, referrer Referrer) error {
	list, ok := m.refs[id]
	if !ok {
		return &UnknownReferenceError{ID: id}
	}
	i := slices.Index(list, referrer)
	if i < 0 {
		return &UnknownReferenceError{ID: id}
	}
	list = slices.Delete(list, i, i+1)
	if len(list) == 0 {
		delete(m.refs, id)
	} else {
		m.refs[id] = list
	}
	return nil
}

// HasReference reports whether referrer is tracked as pointing at id.
func (m *Manager) HasReference(id string, referrer Referrer) bool {
	return slices.Contains(m.refs[id], referrer)
}

// ReferrersOf returns a snapshot of the referrers of id in the order they
// were added. Callers may mutate references while iterating it.
func (m *Manager) ReferrersOf(id string) []Referrer {
	return slices.Clone(m.refs[id])
}

// OnElementRemoved unlinks every referrer of the given ids and then
// unregisters the ids. Empty ids are skipped.
func (m *Manager) OnElementRemoved(ids ...string) error {
	for _, id := range ids {
		if id == "" {
			continue
		}
		for _, r := range m.ReferrersOf(id) {
			r.Unlink()
		}
		if err := m.UnregisterID(id); err != nil {
			return err
		}
	}
	return nil
}

// OnElementMoved tells every referrer of the given ids to recompute.
// Notification is synchronous.
func (m *Manager) OnElementMoved(ids ...string) {
	for _, id := range ids {
		if id == "" {
			continue
		}
		for _, r := range m.ReferrersOf(id) {
			r.RefeeChanged()
		}
	}
}

// DanglingReferences lists every tracked reference whose id does not
// resolve, ordered by id.
func (m *Manager) DanglingReferences() []DanglingReferenceWarning {
	var out []DanglingReferenceWarning
	for _, id := range slices.Sorted(maps.Keys(m.refs)) {
		if _, ok := m.ids[id]; ok {
			continue
		}
		for _, r := range m.refs[id] {
			out = append(out, DanglingReferenceWarning{ID: id, Referrer: r})
		}
	}
	return out
}

// FixReferences clears every dangling reference and returns how many it
// fixed. It is a safety net run just before a pathway is written out; under
// correct bookkeeping it always returns 0.
func (m *Manager) FixReferences() int {
	dangling := m.DanglingReferences()
	for _, w := range dangling {
		m.logger.Warn("dangling reference", "id", w.ID, "referrer", w.Referrer)
		w.Referrer.Unlink()
	}
	// Referrers that do not deregister themselves on Unlink must not be
	// reported again.
	for _, w := range dangling {
		delete(m.refs, w.ID)
	}
	if len(dangling) > 0 {
		m.logger.Warn("fixed dangling references", "count", len(dangling))
	}
	return len(dangling)
}

// Len returns the number of registered graph ids.
func (m *Manager) Len() int {
	return len(m.ids)
}
