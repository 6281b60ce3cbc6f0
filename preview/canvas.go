// Package preview draws pathways and their routed lines as box-drawing
// characters, either into a string or onto a tcell screen.
package preview

import (
	"errors"
	"math"
	"strings"

	"pathlink/core"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
)

// ErrInvalidSize is returned by NewCanvas for an empty grid or a
// non-positive unit.
var ErrInvalidSize = errors.New("invalid canvas size")

// BoxStyle holds the runes used to outline a rectangle.
type BoxStyle struct {
	TopLeft, TopRight       rune
	BottomLeft, BottomRight rune
	Horizontal, Vertical    rune
}

var (
	SolidBox  = BoxStyle{'┌', '┐', '└', '┘', '─', '│'}
	DashedBox = BoxStyle{'┌', '┐', '└', '┘', '┄', '┆'}
)

// continuation marks the second cell of a wide rune.
const continuation = '\x00'

// Canvas is a grid of character cells over a window of the pathway plane.
// Cell (0,0) shows Origin; one cell spans Unit.X by Unit.Y canvas units.
//
// Canvas is not safe for concurrent use.
type Canvas struct {
	cells  [][]rune
	width  int
	height int
	Origin core.Point
	Unit   core.Point
}

// NewCanvas creates a blank canvas.
func NewCanvas(width, height int, origin, unit core.Point) (*Canvas, error) {
	if width <= 0 || height <= 0 || unit.X <= 0 || unit.Y <= 0 {
		return nil, ErrInvalidSize
	}
	cells := make([][]rune, height)
	for y := range cells {
		cells[y] = []rune(strings.Repeat(" ", width))
	}
	return &Canvas{cells: cells, width: width, height: height, Origin: origin, Unit: unit}, nil
}

// Fit chooses an origin and unit that show all of extent on a width by
// height grid. Terminal cells are about twice as tall as they are wide, so
// a cell covers twice as many units vertically.
func Fit(width, height int, extent core.Rect) (origin, unit core.Point) {
	u := 1.0
	if width > 1 {
		u = math.Max(u, extent.Width()/float64(width-1))
	}
	if height > 1 {
		u = math.Max(u, extent.Height()/float64(2*(height-1)))
	}
	return extent.Min, core.Pt(u, 2*u)
}

// Size returns the width and height in cells.
func (c *Canvas) Size() (width, height int) {
	return c.width, c.height
}

// Cell maps a canvas position to the cell showing it.
func (c *Canvas) Cell(p core.Point) (x, y int) {
	return int(math.Round((p.X - c.Origin.X) / c.Unit.X)),
		int(math.Round((p.Y - c.Origin.Y) / c.Unit.Y))
}

// Get returns the rune at a cell, or a space outside the canvas.
func (c *Canvas) Get(x, y int) rune {
	if x < 0 || x >= c.width || y < 0 || y >= c.height {
		return ' '
	}
	return c.cells[y][x]
}

// Set places r at a cell, joining crossing lines. Cells outside the canvas
// are ignored.
func (c *Canvas) Set(x, y int, r rune) {
	if x < 0 || x >= c.width || y < 0 || y >= c.height {
		return
	}
	c.cells[y][x] = merge(c.cells[y][x], r)
}

func merge(existing, r rune) rune {
	horizontal := func(r rune) bool { return r == '─' || r == '┄' }
	vertical := func(r rune) bool { return r == '│' || r == '┆' }
	if (horizontal(existing) && vertical(r)) || (vertical(existing) && horizontal(r)) {
		return '┼'
	}
	return r
}

// DrawBox outlines r. Boxes smaller than a cell are drawn as a single mark.
func (c *Canvas) DrawBox(r core.Rect, style BoxStyle) {
	x0, y0 := c.Cell(r.Min)
	x1, y1 := c.Cell(r.Max)
	if x1 <= x0 || y1 <= y0 {
		c.Set(x0, y0, '□')
		return
	}

	for x := x0 + 1; x < x1; x++ {
		c.Set(x, y0, style.Horizontal)
		c.Set(x, y1, style.Horizontal)
	}
	for y := y0 + 1; y < y1; y++ {
		c.Set(x0, y, style.Vertical)
		c.Set(x1, y, style.Vertical)
	}
	c.Set(x0, y0, style.TopLeft)
	c.Set(x1, y0, style.TopRight)
	c.Set(x0, y1, style.BottomLeft)
	c.Set(x1, y1, style.BottomRight)
}

// DrawText writes text from a cell, using at most limit cells. Wide runes
// take two cells.
func (c *Canvas) DrawText(x, y int, text string, limit int) {
	used := 0
	for _, r := range text {
		w := runewidth.RuneWidth(r)
		if w == 0 {
			continue
		}
		if used+w > limit {
			return
		}
		c.Set(x+used, y, r)
		if w == 2 {
			c.Set(x+used+1, y, continuation)
		}
		used += w
	}
}

// DrawRoute draws connected segments with rounded corners at the joints
// and an arrow head at the end. Segments that are not axis-aligned are
// drawn as dotted lines.
func (c *Canvas) DrawRoute(segs []core.Segment) {
	if len(segs) == 0 {
		return
	}
	for _, s := range segs {
		c.drawSegment(s)
	}
	for i := 1; i < len(segs); i++ {
		if r, ok := corner(segs[i-1].Direction(), segs[i].Direction()); ok {
			x, y := c.Cell(segs[i].Start)
			c.Set(x, y, r)
		}
	}
	last := segs[len(segs)-1]
	if r, ok := arrows[last.Direction()]; ok {
		x, y := c.Cell(last.End)
		c.Set(x, y, r)
	}
}

var arrows = map[core.Direction]rune{
	core.North: '▲',
	core.East:  '▶',
	core.South: '▼',
	core.West:  '◀',
}

func (c *Canvas) drawSegment(s core.Segment) {
	x0, y0 := c.Cell(s.Start)
	x1, y1 := c.Cell(s.End)
	switch {
	case y0 == y1:
		for x := min(x0, x1); x <= max(x0, x1); x++ {
			c.Set(x, y0, '─')
		}
	case x0 == x1:
		for y := min(y0, y1); y <= max(y0, y1); y++ {
			c.Set(x0, y, '│')
		}
	default:
		c.drawDotted(x0, y0, x1, y1)
	}
}

// drawDotted draws a diagonal with Bresenham's algorithm.
func (c *Canvas) drawDotted(x0, y0, x1, y1 int) {
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		c.Set(x0, y0, '·')
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

// corner returns the rune joining a run heading from into one heading to.
func corner(from, to core.Direction) (rune, bool) {
	switch {
	case from == core.East && to == core.South, from == core.North && to == core.West:
		return '╮', true
	case from == core.East && to == core.North, from == core.South && to == core.West:
		return '╯', true
	case from == core.West && to == core.South, from == core.North && to == core.East:
		return '╭', true
	case from == core.West && to == core.North, from == core.South && to == core.East:
		return '╰', true
	}
	return 0, false
}

// String returns the canvas rows with trailing spaces removed.
func (c *Canvas) String() string {
	var sb strings.Builder
	for y, row := range c.cells {
		line := strings.Map(func(r rune) rune {
			if r == continuation {
				return -1
			}
			return r
		}, string(row))
		sb.WriteString(strings.TrimRight(line, " "))
		if y < c.height-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// Show copies the canvas onto s and updates the terminal.
func (c *Canvas) Show(s tcell.Screen, style tcell.Style) {
	s.Clear()
	for y, row := range c.cells {
		for x, r := range row {
			if r == continuation || r == ' ' {
				continue
			}
			s.SetContent(x, y, r, nil, style)
		}
	}
	s.Show()
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
