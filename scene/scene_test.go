package scene

import (
	"os"
	"path/filepath"
	"testing"

	"pathlink/core"
	"pathlink/pathway"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
group "inner" {
  style = "complex"
  group = "outer"
}

group "outer" {}

shape "a" {
  kind   = "datanode"
  bounds = [0, 0, 60, 30]
  group  = "inner"
}

state "p" {
  of   = "a"
  rel  = [1, -1]
  size = [10, 10]
}

line "l1" {
  start {
    ref = "a"
    rel = [1, 0]
  }
  end {
    at = [200, 15]
  }
  anchor "l1a" {
    position = 0.5
  }
}

line "l2" {
  start {
    ref = "l1a"
  }
  end {
    ref = "later"
    rel = [0, -1]
  }
}

shape "later" {
  bounds = [120, 100, 20, 20]
}
`

func apply(t *testing.T, src string) (*pathway.Pathway, map[string]core.ElementID) {
	t.Helper()
	s, err := Parse([]byte(src), "test.hcl")
	require.NoError(t, err)
	p := pathway.New()
	ids, err := s.Apply(p)
	require.NoError(t, err)
	return p, ids
}

func element(t *testing.T, p *pathway.Pathway, id core.ElementID) pathway.Element {
	t.Helper()
	el, ok := p.Element(id)
	require.True(t, ok)
	return el
}

func TestParse(t *testing.T) {
	s, err := Parse([]byte(sample), "test.hcl")
	require.NoError(t, err)

	assert.Len(t, s.Groups, 2)
	assert.Len(t, s.Shapes, 2)
	assert.Len(t, s.States, 1)
	require.Len(t, s.Lines, 2)
	assert.Equal(t, "a", s.Lines[0].Start.Ref)
	assert.Equal(t, []float64{200, 15}, s.Lines[0].End.At)
	assert.Equal(t, []AnchorAt{{ID: "l1a", Position: 0.5}}, s.Lines[0].Anchors)
}

func TestApply(t *testing.T) {
	p, ids := apply(t, sample)
	assert.Len(t, ids, 7)
	assert.Equal(t, 7, p.Len())

	a := element(t, p, ids["a"])
	assert.Equal(t, pathway.KindDataNode, a.Kind)
	assert.Equal(t, "inner", a.GroupRef)

	st := element(t, p, ids["p"])
	assert.Equal(t, core.NewRect(55, -5, 10, 10), st.Bounds, "states are centred on their attachment point")

	l1 := element(t, p, ids["l1"])
	assert.Equal(t, core.Pt(60, 15), l1.Points[0].Pos)
	assert.Equal(t, core.Pt(200, 15), l1.Points[1].Pos)

	l2 := element(t, p, ids["l2"])
	assert.Equal(t, core.Pt(130, 15), l2.Points[0].Pos, "glued to the anchor")
	assert.Equal(t, core.Pt(130, 100), l2.Points[1].Pos, "forward reference resolved")
	assert.Empty(t, p.DanglingReferences())
}

func TestApplyOrdersGroups(t *testing.T) {
	p, ids := apply(t, sample)

	inner := element(t, p, ids["inner"])
	assert.Equal(t, core.GroupStyleComplex, inner.GroupStyle)
	assert.Equal(t, "outer", inner.GroupRef)
	assert.Equal(t, core.Rect{Min: core.Pt(-12, -12), Max: core.Pt(72, 42)}, inner.Bounds)

	outer := element(t, p, ids["outer"])
	assert.Equal(t, core.GroupStyleGroup, outer.GroupStyle, "groups default to the plain style")
	assert.Equal(t, core.Rect{Min: core.Pt(-20, -20), Max: core.Pt(80, 50)}, outer.Bounds)
}

func TestApplyErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "group cycle",
			src:  `group "x" { group = "y" }` + "\n" + `group "y" { group = "x" }`,
			want: "cycle",
		},
		{
			name: "unknown group",
			src:  `shape "a" { bounds = [0, 0, 1, 1]` + "\n" + `group = "nope" }`,
			want: "unknown group",
		},
		{
			name: "bad style",
			src:  `group "g" { style = "fancy" }`,
			want: `scene group "g"`,
		},
		{
			name: "bad kind",
			src:  `shape "a" { kind = "blob"` + "\n" + `bounds = [0, 0, 1, 1] }`,
			want: "unknown shape kind",
		},
		{
			name: "short bounds",
			src:  `shape "a" { bounds = [0, 0, 1] }`,
			want: "bounds needs",
		},
		{
			name: "short size",
			src:  `state "s" { of = "a"` + "\n" + `size = [1] }`,
			want: "size needs",
		},
		{
			name: "bad rel",
			src:  `state "s" { of = "a"` + "\n" + `rel = [1, 2, 3]` + "\n" + `size = [1, 1] }`,
			want: "rel needs two coordinates",
		},
		{
			name: "free endpoint without position",
			src:  "line \"l\" {\nstart {}\nend {\nat = [0, 0]\n}\n}",
			want: "endpoint needs ref or at",
		},
		{
			name: "duplicate id",
			src:  `shape "a" { bounds = [0, 0, 1, 1] }` + "\n" + `line "a" {` + "\nstart {\nat = [0, 0]\n}\nend {\nat = [1, 1]\n}\n}",
			want: `scene element "a"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Parse([]byte(tt.src), "bad.hcl")
			require.NoError(t, err)
			_, err = s.Apply(pathway.New())
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte(`shape "a" {`), "bad.hcl")
	assert.ErrorContains(t, err, "failed to parse")

	_, err = Parse([]byte(`shape "a" { colour = "red" }`), "bad.hcl")
	assert.ErrorContains(t, err, "failed to decode")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.hcl")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, s.Lines, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.hcl"))
	assert.Error(t, err)
}
