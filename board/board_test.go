package board

import (
	"testing"

	"github.com/hoshinonyaruko/snake-in-led/structs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func open(w, h int) *Topology {
	return MustNew(structs.BoardDef{Name: "open", Width: w, Height: h})
}

func TestNextHeadWrapsHorizontally(t *testing.T) {
	b := open(10, 6)
	for y := 0; y < b.Height(); y++ {
		assert.Equal(t, structs.Point{X: 9, Y: y}, b.NextHead(structs.Point{X: 0, Y: y}, structs.Left))
		assert.Equal(t, structs.Point{X: 0, Y: y}, b.NextHead(structs.Point{X: 9, Y: y}, structs.Right))
	}
}

func TestNextHeadDoesNotWrapVertically(t *testing.T) {
	b := open(10, 6)

	top := b.NextHead(structs.Point{X: 4, Y: 0}, structs.Up)
	assert.Equal(t, structs.Point{X: 4, Y: -1}, top)
	assert.True(t, b.IsBlocked(top), "off-board cells are impassable")

	bottom := b.NextHead(structs.Point{X: 4, Y: 5}, structs.Down)
	assert.Equal(t, structs.Point{X: 4, Y: 6}, bottom)
	assert.True(t, b.IsBlocked(bottom))
}

func TestNextHeadBasicMoves(t *testing.T) {
	b := open(10, 10)
	head := structs.Point{X: 5, Y: 5}
	assert.Equal(t, structs.Point{X: 5, Y: 4}, b.NextHead(head, structs.Up))
	assert.Equal(t, structs.Point{X: 5, Y: 6}, b.NextHead(head, structs.Down))
	assert.Equal(t, structs.Point{X: 4, Y: 5}, b.NextHead(head, structs.Left))
	assert.Equal(t, structs.Point{X: 6, Y: 5}, b.NextHead(head, structs.Right))
}

func TestPortalTriggersOnlyOnUp(t *testing.T) {
	a, c := structs.Point{X: 2, Y: 0}, structs.Point{X: 7, Y: 0}
	b := MustNew(structs.BoardDef{
		Name: "portal", Width: 10, Height: 4,
		Portals: []structs.PortalPair{{A: a, B: c}},
	})

	assert.Equal(t, c, b.NextHead(a, structs.Up))
	assert.Equal(t, a, b.NextHead(c, structs.Up))

	assert.Equal(t, structs.Point{X: 2, Y: 1}, b.NextHead(a, structs.Down))
	assert.Equal(t, structs.Point{X: 1, Y: 0}, b.NextHead(a, structs.Left))
	assert.Equal(t, structs.Point{X: 3, Y: 0}, b.NextHead(a, structs.Right))
}

func TestPortalSymmetry(t *testing.T) {
	b := MustNew(structs.BoardDef{
		Name: "rows",
		Rows: []string{
			"#a....b#",
			"........",
			"..#..#..",
			"#a....b#",
		},
	})
	require.Len(t, b.Portals(), 2)
	for _, pair := range b.Portals() {
		back, ok := b.PortalOf(pair.B)
		require.True(t, ok)
		assert.Equal(t, pair.A, back)
		fwd, ok := b.PortalOf(pair.A)
		require.True(t, ok)
		assert.Equal(t, pair.B, fwd)
	}
}

func TestRowsBuildBlockedCells(t *testing.T) {
	b := MustNew(structs.BoardDef{
		Name: "rows",
		Rows: []string{
			"#..",
			".#.",
		},
	})
	assert.Equal(t, 3, b.Width())
	assert.Equal(t, 2, b.Height())
	assert.True(t, b.IsBlocked(structs.Point{X: 0, Y: 0}))
	assert.True(t, b.IsBlocked(structs.Point{X: 1, Y: 1}))
	assert.False(t, b.IsBlocked(structs.Point{X: 2, Y: 1}))
	assert.Equal(t, 4, b.OpenCount())
}

func TestNewRejectsMalformedBoards(t *testing.T) {
	tests := []struct {
		name string
		def  structs.BoardDef
		err  error
	}{
		{"zero size", structs.BoardDef{Width: 0, Height: 3}, ErrDimensions},
		{"blocked out of bounds", structs.BoardDef{Width: 3, Height: 3, Blocked: []structs.Point{{X: 3, Y: 0}}}, ErrOutOfBounds},
		{"portal out of bounds", structs.BoardDef{Width: 3, Height: 3, Portals: []structs.PortalPair{{A: structs.Point{}, B: structs.Point{X: 0, Y: -1}}}}, ErrOutOfBounds},
		{"portal to self", structs.BoardDef{Width: 3, Height: 3, Portals: []structs.PortalPair{{A: structs.Point{}, B: structs.Point{}}}}, ErrPortal},
		{"portal paired twice", structs.BoardDef{Width: 3, Height: 3, Portals: []structs.PortalPair{
			{A: structs.Point{X: 0, Y: 0}, B: structs.Point{X: 1, Y: 0}},
			{A: structs.Point{X: 0, Y: 0}, B: structs.Point{X: 2, Y: 0}},
		}}, ErrPortal},
		{"blocked portal", structs.BoardDef{Width: 3, Height: 3,
			Blocked: []structs.Point{{X: 1, Y: 0}},
			Portals: []structs.PortalPair{{A: structs.Point{X: 0, Y: 0}, B: structs.Point{X: 1, Y: 0}}},
		}, ErrPortal},
		{"unpaired portal letter", structs.BoardDef{Rows: []string{"a..", "..."}}, ErrPortal},
		{"portal letter thrice", structs.BoardDef{Rows: []string{"a.a", "a.."}}, ErrPortal},
		{"ragged rows", structs.BoardDef{Rows: []string{"...", ".."}}, ErrRowsMalformed},
		{"unknown cell", structs.BoardDef{Rows: []string{"..?"}}, ErrRowsMalformed},
		{"size mismatch", structs.BoardDef{Width: 4, Rows: []string{"..."}}, ErrRowsMalformed},
		{"all blocked", structs.BoardDef{Rows: []string{"##", "##"}}, ErrNoOpenCell},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.def)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestDefRoundTrip(t *testing.T) {
	orig := MustNew(structs.BoardDef{
		Name: "rt",
		Rows: []string{
			"#a..a#",
			"......",
			"..##..",
		},
	})
	again := MustNew(orig.Def())
	assert.Equal(t, orig.Width(), again.Width())
	assert.Equal(t, orig.Height(), again.Height())
	assert.Equal(t, orig.OpenCells(), again.OpenCells())
	assert.Equal(t, orig.Portals(), again.Portals())
}
