package pathfinding

import (
	"container/heap"
	"context"

	"pathlink/core"
	"pathlink/geometry"
	"pathlink/logging"
)

// cell is a lattice coordinate relative to the route start.
type cell struct {
	I, J int
}

// searchNode represents a state in the search: a lattice point and the
// direction it was entered from.
type searchNode struct {
	cell   cell
	pos    core.Point
	dir    core.Direction
	g      float64 // Cost from start
	h      float64 // Manhattan distance to the goal
	parent *searchNode
	seq    uint64 // Insertion order, the last tie-breaker
	index  int    // Index in the heap
}

func (n *searchNode) f() float64 { return n.g + n.h }

// nodeQueue is a priority queue of search nodes.
type nodeQueue []*searchNode

func (q nodeQueue) Len() int { return len(q) }

func (q nodeQueue) Less(i, j int) bool {
	if fi, fj := q[i].f(), q[j].f(); fi != fj {
		return fi < fj
	}
	// Prefer nodes closer to the goal, then the earliest pushed.
	if q[i].h != q[j].h {
		return q[i].h < q[j].h
	}
	return q[i].seq < q[j].seq
}

func (q nodeQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *nodeQueue) Push(x any) {
	n := x.(*searchNode)
	n.index = len(*q)
	*q = append(*q, n)
}

func (q *nodeQueue) Pop() any {
	old := *q
	n := len(old)
	node := old[n-1]
	old[n-1] = nil  // avoid memory leak
	node.index = -1 // for safety
	*q = old[:n-1]
	return node
}

var allDirections = []core.Direction{core.North, core.East, core.South, core.West}

// Router finds orthogonal connector routes on a lattice anchored at the
// route start. It is a penalized best-first search: the Manhattan heuristic
// ignores elbows and overlaps, and lattice cells are not revisited in other
// directions unless the cost improves, so routes are good rather than
// optimal. A Router holds no per-route state and is safe for concurrent use.
type Router struct {
	costs       PathCost
	maxOpen     int
	cancelEvery int
}

// NewRouter creates a router with the given cost model. A non-positive grid
// step falls back to DefaultPathCost.GridStep.
func NewRouter(costs PathCost) *Router {
	if costs.GridStep <= 0 {
		costs.GridStep = DefaultPathCost.GridStep
	}
	return &Router{
		costs:       costs,
		maxOpen:     DefaultMaxOpen,
		cancelEvery: DefaultCancelCheckInterval,
	}
}

// SetMaxOpen sets the open set size beyond which the search falls back to
// a direct segment.
func (r *Router) SetMaxOpen(n int) {
	if n > 0 {
		r.maxOpen = n
	}
}

// SetCancelCheckInterval sets how many expansions pass between context
// checks.
func (r *Router) SetCancelCheckInterval(n int) {
	if n > 0 {
		r.cancelEvery = n
	}
}

// Costs returns the cost model in use.
func (r *Router) Costs() PathCost {
	return r.costs
}

// Route returns the segments of a connector from start to end. The first
// segment starts at start and the last ends at end. It never fails: when
// the search gives up the route is the single segment start→end. A nil test
// means no obstacles.
func (r *Router) Route(ctx context.Context, start, end core.Point, test core.ObstacleTest) []core.Segment {
	return r.RouteDetailed(ctx, start, end, test).Segments
}

// RouteDetailed is Route with search statistics and the fallback reason.
func (r *Router) RouteDetailed(ctx context.Context, start, end core.Point, test core.ObstacleTest) Result {
	step := r.costs.GridStep
	goalRadius := 2 * step

	open := &nodeQueue{}
	best := map[cell]float64{{}: 0}
	var seq uint64

	heap.Push(open, &searchNode{
		pos: start,
		dir: core.None,
		h:   geometry.ManhattanDistance(start, end),
	})

	fallback := func(reason FallbackReason, expanded int) Result {
		logging.FromContext(ctx).Debug("route fallback",
			"reason", reason.String(),
			"route", core.Segment{Start: start, End: end}.String(),
			"expanded", expanded,
			"open", open.Len())
		return Result{Segments: direct(start, end), Fallback: true, Reason: reason, Expanded: expanded}
	}

	expanded := 0
	for open.Len() > 0 {
		if open.Len() > r.maxOpen {
			return fallback(FallbackOpenLimit, expanded)
		}
		if expanded%r.cancelEvery == 0 && ctx.Err() != nil {
			return fallback(FallbackCancelled, expanded)
		}

		current := heap.Pop(open).(*searchNode)
		if current.g > best[current.cell] {
			// Superseded by a cheaper entry for the same cell.
			continue
		}
		expanded++

		// A node near the end only finishes the route if the hop to the
		// exact end is clear; otherwise it is expanded like any other.
		if geometry.EuclideanDistance(current.pos, end) <= goalRadius && r.hopClear(current.pos, current.dir, end, test) {
			return Result{Segments: r.reconstruct(current, end), Expanded: expanded}
		}

		dirs := allDirections
		if current.dir != core.None {
			perp := current.dir.Perpendicular()
			dirs = []core.Direction{current.dir, perp[0], perp[1]}
		}
		for _, d := range dirs {
			dx, dy := d.Delta()
			c := cell{I: current.cell.I + dx, J: current.cell.J + dy}
			pos := core.Pt(start.X+float64(c.I)*step, start.Y+float64(c.J)*step)

			g := current.g + r.stepCost(current.dir, d, pos, test)
			if old, seen := best[c]; seen && g >= old {
				continue
			}
			best[c] = g
			seq++
			heap.Push(open, &searchNode{
				cell:   c,
				pos:    pos,
				dir:    d,
				g:      g,
				h:      geometry.ManhattanDistance(pos, end),
				parent: current,
				seq:    seq,
			})
		}
	}
	return fallback(FallbackExhausted, expanded)
}

// stepCost prices one lattice move into pos heading next.
func (r *Router) stepCost(prev, next core.Direction, pos core.Point, test core.ObstacleTest) float64 {
	cost := r.costs.GridStep
	if prev != core.None && prev != next {
		cost += r.costs.ElbowPenalty
	}
	if test != nil {
		if _, hit := test(pos); hit {
			cost += r.costs.OverlapPenalty
		}
	}
	return cost
}

// hopClear reports whether the hop from a goal candidate to end misses every
// obstacle. Points are sampled every half grid step and at the corner; the
// node itself is not sampled since its cost was already paid. An obstacle
// that contains end cannot be avoided and is ignored.
func (r *Router) hopClear(from core.Point, dir core.Direction, end core.Point, test core.ObstacleTest) bool {
	if test == nil || from == end {
		return true
	}
	endID, endBlocked := test(end)
	corner := hopCorner(from, end, dir)
	spacing := r.costs.GridStep / 2

	for _, s := range []core.Segment{{Start: from, End: corner}, {Start: corner, End: end}} {
		// The first sample is the segment start: the node, or the corner
		// already sampled as the end of the previous leg.
		for _, p := range geometry.SamplePoints(s, spacing)[1:] {
			if id, hit := test(p); hit && !(endBlocked && id == endID) {
				return false
			}
		}
	}
	return true
}

// reconstruct walks back from the goal node and turns the lattice path into
// merged segments ending exactly at end.
func (r *Router) reconstruct(goal *searchNode, end core.Point) []core.Segment {
	var path []*searchNode
	for n := goal; n != nil; n = n.parent {
		path = append(path, n)
	}

	var b segmentBuilder
	b.moveTo(path[len(path)-1].pos)
	for i := len(path) - 2; i >= 0; i-- {
		b.lineTo(path[i].pos)
	}
	b.finishAt(end)

	segs := b.segments()
	if len(segs) == 0 {
		return direct(path[len(path)-1].pos, end)
	}
	return segs
}
