// Package connections turns pathway lines into connector routing requests.
package connections

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"

	"pathlink/core"
	"pathlink/logging"
	"pathlink/obstacles"
	"pathlink/pathfinding"
	"pathlink/pathway"

	"golang.org/x/sync/errgroup"
)

// ErrNotALine is returned when routing an element that is not a line.
var ErrNotALine = errors.New("element is not a line")

// Model is the pathway the router reads from.
type Model interface {
	Elements() []pathway.Element
	Revision() uint64
}

// Route is the routed geometry of one line.
type Route struct {
	Line     core.ElementID             `json:"line"`
	Segments []core.Segment             `json:"segments"`
	Fallback bool                       `json:"fallback,omitempty"`
	Reason   pathfinding.FallbackReason `json:"-"`
	Cached   bool                       `json:"-"`
}

// Router handles the routing of pathway lines around the other elements.
type Router struct {
	model   Model
	router  *pathfinding.Router
	cache   *pathfinding.RouteCache
	padding float64
	workers int
}

// Option configures a Router.
type Option func(*Router)

// WithCache stores routes in c, keyed by endpoints, excluded elements and
// pathway revision.
func WithCache(c *pathfinding.RouteCache) Option {
	return func(r *Router) { r.cache = c }
}

// WithPadding sets the clearance kept around every obstacle.
func WithPadding(padding float64) Option {
	return func(r *Router) { r.padding = padding }
}

// WithWorkers bounds the number of routes computed at once by RouteAll.
func WithWorkers(n int) Option {
	return func(r *Router) {
		if n > 0 {
			r.workers = n
		}
	}
}

// NewRouter creates a new connection router.
func NewRouter(model Model, router *pathfinding.Router, opts ...Option) *Router {
	r := &Router{
		model:   model,
		router:  router,
		workers: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RouteLine routes a single line against the current pathway.
func (r *Router) RouteLine(ctx context.Context, id core.ElementID) (Route, error) {
	snap := NewSnapshot(r.model)
	req, err := snap.Request(id)
	if err != nil {
		return Route{}, err
	}
	return r.route(ctx, snap, req), nil
}

// RouteAll routes lines concurrently from one snapshot of the pathway. The
// pathway is never touched by the workers, so the caller is free to apply
// the returned routes. Results are in the order of ids.
func (r *Router) RouteAll(ctx context.Context, ids []core.ElementID) ([]Route, error) {
	snap := NewSnapshot(r.model)
	reqs := make([]Request, len(ids))
	for i, id := range ids {
		req, err := snap.Request(id)
		if err != nil {
			return nil, err
		}
		reqs[i] = req
	}

	routes := make([]Route, len(reqs))
	var g errgroup.Group
	g.SetLimit(r.workers)
	for i, req := range reqs {
		g.Go(func() error {
			routes[i] = r.route(ctx, snap, req)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return routes, nil
}

// Lines returns the ids of every line in the pathway in insertion order.
func (r *Router) Lines() []core.ElementID {
	var ids []core.ElementID
	for _, e := range r.model.Elements() {
		if e.Kind == pathway.KindLine {
			ids = append(ids, e.ID)
		}
	}
	return ids
}

func (r *Router) route(ctx context.Context, snap *Snapshot, req Request) Route {
	key := pathfinding.NewCacheKey(req.Start, req.End, snap.Revision, req.Exclude)
	if r.cache != nil {
		if res, ok := r.cache.Get(key); ok {
			return Route{Line: req.Line, Segments: res.Segments, Fallback: res.Fallback, Reason: res.Reason, Cached: true}
		}
	}

	test := snap.Obstacles(req, r.padding)
	res := r.router.RouteDetailed(ctx, req.Start, req.End, test.Func())
	logging.FromContext(ctx).Debug("routed line",
		"line", req.Line,
		"segments", len(res.Segments),
		"expanded", res.Expanded,
		"fallback", res.Fallback)

	// Fallbacks caused by cancellation say nothing about the geometry.
	if r.cache != nil && res.Reason != pathfinding.FallbackCancelled {
		r.cache.Put(key, res)
	}
	return Route{Line: req.Line, Segments: res.Segments, Fallback: res.Fallback, Reason: res.Reason}
}

// Request is one line to route.
type Request struct {
	Line       core.ElementID
	Start, End core.Point
	// Exclude lists elements that must not act as obstacles: the line's
	// endpoint targets.
	Exclude []core.ElementID
}

// Snapshot is an immutable copy of the routing-relevant state of a pathway.
// It is safe for concurrent use.
type Snapshot struct {
	Revision uint64
	elements []pathway.Element
	byID     map[core.ElementID]int
	byGraph  map[string]core.ElementID
}

// NewSnapshot copies the current state of m.
func NewSnapshot(m Model) *Snapshot {
	s := &Snapshot{
		Revision: m.Revision(),
		elements: m.Elements(),
		byID:     make(map[core.ElementID]int),
		byGraph:  make(map[string]core.ElementID),
	}
	for i, e := range s.elements {
		s.byID[e.ID] = i
		if e.GraphID != "" {
			s.byGraph[e.GraphID] = e.ID
		}
		for _, a := range e.Anchors {
			if a.GraphID != "" {
				s.byGraph[a.GraphID] = e.ID
			}
		}
	}
	return s
}

// Request builds the routing request of a line.
func (s *Snapshot) Request(id core.ElementID) (Request, error) {
	i, ok := s.byID[id]
	if !ok {
		return Request{}, fmt.Errorf("route %d: %w", id, pathway.ErrUnknownElement)
	}
	line := s.elements[i]
	if line.Kind != pathway.KindLine {
		return Request{}, fmt.Errorf("route %s %d: %w", line.Kind, id, ErrNotALine)
	}

	req := Request{Line: id, Start: line.Points[0].Pos, End: line.Points[1].Pos}
	for _, p := range line.Points {
		if target, ok := s.byGraph[p.GraphRef]; ok && p.GraphRef != "" {
			req.Exclude = append(req.Exclude, target)
		}
	}
	return req, nil
}

// Obstacles returns the obstacle set for req: the bounds of every element
// except lines, groups and the excluded endpoint targets.
func (s *Snapshot) Obstacles(req Request, padding float64) *obstacles.Set {
	set := obstacles.NewSet()
	for _, e := range s.elements {
		if e.Kind == pathway.KindLine || e.Kind == pathway.KindGroup {
			continue
		}
		if slices.Contains(req.Exclude, e.ID) {
			continue
		}
		set.Add(obstacles.Rect{Element: e.ID, Bounds: e.Bounds, Padding: padding})
	}
	return set
}
