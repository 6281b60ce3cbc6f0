package preview

import (
	"pathlink/connections"
	"pathlink/core"
	"pathlink/pathway"

	"github.com/gdamore/tcell/v2"
)

// Extent returns the area covered by the elements and the routes.
func Extent(elements []pathway.Element, routes []connections.Route) core.Rect {
	var pts []core.Point
	for i := range elements {
		r := elements[i].Extent()
		pts = append(pts, r.Min, r.Max)
	}
	for _, rt := range routes {
		for _, s := range rt.Segments {
			pts = append(pts, s.Start, s.End)
		}
	}
	return core.BoundsOf(pts...)
}

// DrawScene draws groups as dashed boxes, other elements as solid boxes
// labelled with their graph id, then every line. A line is drawn along its
// route when one is given, otherwise straight between its points.
func DrawScene(c *Canvas, elements []pathway.Element, routes []connections.Route) {
	routed := make(map[core.ElementID][]core.Segment, len(routes))
	for _, rt := range routes {
		routed[rt.Line] = rt.Segments
	}

	for _, e := range elements {
		if e.Kind == pathway.KindGroup {
			c.DrawBox(e.Bounds, DashedBox)
		}
	}
	for _, e := range elements {
		if e.Kind == pathway.KindGroup || e.Kind == pathway.KindLine {
			continue
		}
		c.DrawBox(e.Bounds, SolidBox)
		x0, y0 := c.Cell(e.Bounds.Min)
		x1, y1 := c.Cell(e.Bounds.Max)
		if y1-y0 >= 2 {
			c.DrawText(x0+1, y0+1, e.GraphID, x1-x0-1)
		}
	}
	for _, e := range elements {
		if e.Kind != pathway.KindLine {
			continue
		}
		segs, ok := routed[e.ID]
		if !ok {
			segs = []core.Segment{{Start: e.Points[0].Pos, End: e.Points[1].Pos}}
		}
		c.DrawRoute(segs)
	}
}

// Run shows the canvas built by draw until the user presses q, Escape or
// Ctrl-C. draw is called again whenever the screen is resized. The caller
// owns s and must have initialised it.
func Run(s tcell.Screen, draw func(width, height int) (*Canvas, error)) error {
	redraw := func() error {
		c, err := draw(s.Size())
		if err != nil {
			return err
		}
		c.Show(s, tcell.StyleDefault)
		return nil
	}
	if err := redraw(); err != nil {
		return err
	}

	for {
		switch ev := s.PollEvent().(type) {
		case nil:
			return nil
		case *tcell.EventResize:
			s.Sync()
			if err := redraw(); err != nil {
				return err
			}
		case *tcell.EventKey:
			if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC || ev.Rune() == 'q' {
				return nil
			}
		}
	}
}
