// Package scene loads pathway fixtures written in HCL.
//
//	group "g1" {
//	  style = "complex"
//	}
//
//	shape "a" {
//	  kind   = "datanode"
//	  bounds = [0, 0, 60, 30]
//	  group  = "g1"
//	}
//
//	state "p" {
//	  of   = "a"
//	  rel  = [1, -1]
//	  size = [10, 10]
//	}
//
//	line "l1" {
//	  start {
//	    ref = "a"
//	    rel = [1, 0]
//	  }
//	  end {
//	    at = [200, 15]
//	  }
//	  anchor "l1a" {
//	    position = 0.5
//	  }
//	}
//
// Block labels become graph ids, or group ids for groups.
package scene

import (
	"fmt"

	"pathlink/core"
	"pathlink/pathway"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Scene is a decoded fixture.
type Scene struct {
	Groups []Group `hcl:"group,block"`
	Shapes []Shape `hcl:"shape,block"`
	States []State `hcl:"state,block"`
	Lines  []Line  `hcl:"line,block"`
}

// Group declares a group element.
type Group struct {
	ID     string `hcl:"id,label"`
	Style  string `hcl:"style,optional"`
	Parent string `hcl:"group,optional"`
}

// Shape declares a shape, label or data node.
type Shape struct {
	ID     string    `hcl:"id,label"`
	Kind   string    `hcl:"kind,optional"`
	Bounds []float64 `hcl:"bounds"`
	Group  string    `hcl:"group,optional"`
}

// State declares a state glued to a data node.
type State struct {
	ID    string    `hcl:"id,label"`
	Of    string    `hcl:"of"`
	Rel   []float64 `hcl:"rel,optional"`
	Size  []float64 `hcl:"size"`
	Group string    `hcl:"group,optional"`
}

// Line declares a line with its two endpoints and anchors.
type Line struct {
	ID      string     `hcl:"id,label"`
	Start   Endpoint   `hcl:"start,block"`
	End     Endpoint   `hcl:"end,block"`
	Anchors []AnchorAt `hcl:"anchor,block"`
	Group   string     `hcl:"group,optional"`
}

// Endpoint is one end of a line: glued to Ref at Rel, or free at At.
type Endpoint struct {
	Ref string    `hcl:"ref,optional"`
	Rel []float64 `hcl:"rel,optional"`
	At  []float64 `hcl:"at,optional"`
}

// AnchorAt declares an anchor on a line.
type AnchorAt struct {
	ID       string  `hcl:"id,label"`
	Position float64 `hcl:"position"`
}

// Load reads a scene file.
func Load(path string) (*Scene, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse scene file %s: %w", path, diags)
	}
	return decode(file, path)
}

// Parse decodes scene source. The filename is used in diagnostics.
func Parse(src []byte, filename string) (*Scene, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse scene %s: %w", filename, diags)
	}
	return decode(file, filename)
}

func decode(file *hcl.File, filename string) (*Scene, error) {
	var s Scene
	if diags := gohcl.DecodeBody(file.Body, nil, &s); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode scene %s: %w", filename, diags)
	}
	return &s, nil
}

// Apply adds every element of the scene to p and returns the element
// handles by block label. Groups are added parents first, then shapes,
// states and lines. References between elements may point forward.
func (s *Scene) Apply(p *pathway.Pathway) (map[string]core.ElementID, error) {
	ids := make(map[string]core.ElementID)
	add := func(name string, e pathway.Element) error {
		id, err := p.Add(e)
		if err != nil {
			return fmt.Errorf("scene element %q: %w", name, err)
		}
		ids[name] = id
		return nil
	}

	groups, err := s.groupOrder()
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		style := core.GroupStyleGroup
		if g.Style != "" {
			if style, err = core.ParseGroupStyle(g.Style); err != nil {
				return nil, fmt.Errorf("scene group %q: %w", g.ID, err)
			}
		}
		if err := add(g.ID, pathway.Element{
			Kind:       pathway.KindGroup,
			GroupID:    g.ID,
			GroupStyle: style,
			GroupRef:   g.Parent,
		}); err != nil {
			return nil, err
		}
	}

	for _, sh := range s.Shapes {
		kind, err := shapeKind(sh.Kind)
		if err != nil {
			return nil, fmt.Errorf("scene shape %q: %w", sh.ID, err)
		}
		b := sh.Bounds
		if len(b) != 4 {
			return nil, fmt.Errorf("scene shape %q: bounds needs x, y, width and height", sh.ID)
		}
		if err := add(sh.ID, pathway.Element{
			Kind:     kind,
			GraphID:  sh.ID,
			GroupRef: sh.Group,
			Bounds:   core.NewRect(b[0], b[1], b[2], b[3]),
		}); err != nil {
			return nil, err
		}
	}

	for _, st := range s.States {
		rel, err := pair(st.Rel, "rel")
		if err != nil {
			return nil, fmt.Errorf("scene state %q: %w", st.ID, err)
		}
		if len(st.Size) != 2 {
			return nil, fmt.Errorf("scene state %q: size needs width and height", st.ID)
		}
		if err := add(st.ID, pathway.Element{
			Kind:     pathway.KindState,
			GraphID:  st.ID,
			GroupRef: st.Group,
			Bounds:   core.NewRect(0, 0, st.Size[0], st.Size[1]),
			StateRef: st.Of,
			RelX:     rel.X,
			RelY:     rel.Y,
		}); err != nil {
			return nil, err
		}
	}

	for _, l := range s.Lines {
		e := pathway.Element{Kind: pathway.KindLine, GraphID: l.ID, GroupRef: l.Group}
		for i, ep := range []Endpoint{l.Start, l.End} {
			lp, err := ep.linePoint()
			if err != nil {
				return nil, fmt.Errorf("scene line %q: %w", l.ID, err)
			}
			e.Points[i] = lp
		}
		for _, a := range l.Anchors {
			e.Anchors = append(e.Anchors, pathway.Anchor{GraphID: a.ID, Position: a.Position})
		}
		if err := add(l.ID, e); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// groupOrder sorts groups so every parent comes before its children.
func (s *Scene) groupOrder() ([]Group, error) {
	declared := make(map[string]bool, len(s.Groups))
	for _, g := range s.Groups {
		declared[g.ID] = true
	}

	var ordered []Group
	placed := make(map[string]bool, len(s.Groups))
	for len(ordered) < len(s.Groups) {
		progress := false
		for _, g := range s.Groups {
			if placed[g.ID] {
				continue
			}
			if g.Parent != "" && declared[g.Parent] && !placed[g.Parent] {
				continue
			}
			ordered = append(ordered, g)
			placed[g.ID] = true
			progress = true
		}
		if !progress {
			return nil, fmt.Errorf("scene groups form a cycle")
		}
	}
	return ordered, nil
}

func shapeKind(name string) (pathway.Kind, error) {
	switch name {
	case "", "shape":
		return pathway.KindShape, nil
	case "label":
		return pathway.KindLabel, nil
	case "datanode":
		return pathway.KindDataNode, nil
	}
	return 0, fmt.Errorf("unknown shape kind %q", name)
}

func (ep Endpoint) linePoint() (pathway.LinePoint, error) {
	var lp pathway.LinePoint
	if ep.Ref == "" && len(ep.At) == 0 {
		return lp, fmt.Errorf("endpoint needs ref or at")
	}
	pos, err := pair(ep.At, "at")
	if err != nil {
		return lp, err
	}
	rel, err := pair(ep.Rel, "rel")
	if err != nil {
		return lp, err
	}
	return pathway.LinePoint{Pos: pos, GraphRef: ep.Ref, RelX: rel.X, RelY: rel.Y}, nil
}

// pair reads an optional two-element list.
func pair(v []float64, name string) (core.Point, error) {
	switch len(v) {
	case 0:
		return core.Point{}, nil
	case 2:
		return core.Pt(v[0], v[1]), nil
	}
	return core.Point{}, fmt.Errorf("%s needs two coordinates, got %d", name, len(v))
}
