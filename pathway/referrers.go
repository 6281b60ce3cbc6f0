package pathway

import (
	"fmt"

	"pathlink/core"
)

// pointRef is the referrer held by one end of a line.
type pointRef struct {
	p     *Pathway
	line  core.ElementID
	index int
}

func (r pointRef) GraphRef() string {
	el, ok := r.p.elements[r.line]
	if !ok {
		return ""
	}
	return el.Points[r.index].GraphRef
}

func (r pointRef) Unlink() {
	if err := r.p.relinkPoint(r.line, r.index, ""); err != nil {
		r.p.logger.Error("unlink line point", "line", r.line, "point", r.index, "err", err)
	}
}

func (r pointRef) RefeeChanged() {
	r.p.gluePoint(r.line, r.index)
}

func (r pointRef) String() string {
	return fmt.Sprintf("line %d point %d", r.line, r.index)
}

// stateRef is the referrer held by a state glued to a data node.
type stateRef struct {
	p     *Pathway
	state core.ElementID
}

func (r stateRef) GraphRef() string {
	el, ok := r.p.elements[r.state]
	if !ok {
		return ""
	}
	return el.StateRef
}

func (r stateRef) Unlink() {
	if err := r.p.relinkState(r.state, ""); err != nil {
		r.p.logger.Error("unlink state", "state", r.state, "err", err)
	}
}

func (r stateRef) RefeeChanged() {
	r.p.glueState(r.state)
}

func (r stateRef) String() string {
	return fmt.Sprintf("state %d", r.state)
}
