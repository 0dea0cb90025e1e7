package canvas

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vonshlovens/roomboard/internal/geom"
)

func positions(b *Board) map[string]geom.Point {
	out := make(map[string]geom.Point)
	for _, it := range b.Items() {
		out[it.ID] = it.Position
	}
	for _, f := range b.Folders() {
		out[f.ID] = f.Position
	}
	return out
}

func assertNoOverlap(t *testing.T, items []*Item, folders []*Folder) {
	t.Helper()
	var rects []geom.Rect
	var names []string
	for _, it := range items {
		rects = append(rects, it.Bounds())
		names = append(names, it.ID)
	}
	for _, f := range folders {
		rects = append(rects, geom.RectAt(f.Position, f.Footprint()))
		names = append(names, f.ID)
	}
	for i := range rects {
		for j := i + 1; j < len(rects); j++ {
			if rects[i].Overlaps(rects[j]) {
				t.Errorf("%s %+v overlaps %s %+v", names[i], rects[i], names[j], rects[j])
			}
		}
	}
}

func TestLayoutAll_ScatteredRootItems(t *testing.T) {
	// Five items at scattered positions; c and d share a y and are ordered
	// by creation time.
	b := newTestBoard(t, []*Item{
		newItem("a", TypeText, at(900, 40), createdAt(1)),
		newItem("b", TypeImage, at(-200, 700), createdAt(2)),
		newItem("c", TypeLink, at(300, 300), createdAt(4)),
		newItem("d", TypeText, at(300, 300), createdAt(3)),
		newItem("e", TypeText, at(50, 10), createdAt(5)),
	}, nil)

	require.NoError(t, b.LayoutAll("", DefaultLayout))

	items := b.VisibleItems("")
	require.Len(t, items, 5)
	assertNoOverlap(t, items, nil)

	// Anchor is the top-left of the original bounding box (-200, 10).
	// Reading order: e(10) a(40) d(300, older) c(300) b(700).
	// Row width 4*280+3*40 = 1240 fits four 280-wide cards.
	pos := positions(b)
	assert.Equal(t, geom.Point{X: -200, Y: 10}, pos["e"])
	assert.Equal(t, geom.Point{X: 120, Y: 10}, pos["a"])
	assert.Equal(t, geom.Point{X: 440, Y: 10}, pos["d"])
	assert.Equal(t, geom.Point{X: 760, Y: 10}, pos["c"])
	// Second row starts below the tallest card of the first row (160) plus the gap.
	assert.Equal(t, geom.Point{X: -200, Y: 210}, pos["b"])
}

func TestLayoutAll_Idempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	types := []ItemType{TypeText, TypeImage, TypeLink, TypeVideo, TypeRoom}

	var items []*Item
	for i := 0; i < 23; i++ {
		items = append(items, newItem(fmt.Sprintf("i%02d", i), types[rng.Intn(len(types))],
			at(rng.Float64()*3000-1500, rng.Float64()*3000-1500), createdAt(i)))
	}
	b := newTestBoard(t, items, []*Folder{newFolder("f", folderAt(10, 10))})

	require.NoError(t, b.LayoutAll("", DefaultLayout))
	first := positions(b)
	assertNoOverlap(t, b.VisibleItems(""), b.VisibleFolders(""))

	var changes []Change
	b.Subscribe(func(c Change) { changes = append(changes, c) })

	require.NoError(t, b.LayoutAll("", DefaultLayout))
	assert.Equal(t, first, positions(b))
	assert.Empty(t, changes, "no-op layout emits nothing")
}

func TestLayoutAll_NonOverlapWithExplicitSizes(t *testing.T) {
	rng := rand.New(rand.NewSource(99))

	var items []*Item
	for i := 0; i < 30; i++ {
		it := newItem(fmt.Sprintf("n%02d", i), TypeText,
			at(rng.Float64()*800, rng.Float64()*800), createdAt(i),
			sized(50+rng.Float64()*600, 40+rng.Float64()*400))
		items = append(items, it)
	}
	b := newTestBoard(t, items, nil)

	require.NoError(t, b.LayoutAll("", LayoutOptions{Columns: 3, ColumnWidth: 300, HGap: 24, VGap: 24}))
	assertNoOverlap(t, b.VisibleItems(""), nil)
}

func TestLayoutAll_ScopeExcludesHiddenItems(t *testing.T) {
	b := newTestBoard(t,
		[]*Item{
			newItem("r1", TypeRoom, at(0, 0)),
			newItem("inside", TypeText, inRoom("r1"), at(5000, 5000)),
			newItem("archived", TypeText, withStatus(StatusArchived), at(-9000, 0)),
			newItem("trashed", TypeText, withStatus(StatusTrash), at(9000, 0)),
			newItem("filed", TypeText, inFolder("f"), at(-1, -1)),
			newItem("x", TypeText, at(100, 0)),
		},
		[]*Folder{newFolder("f", folderAt(300, 0))},
	)

	require.NoError(t, b.LayoutAll("", DefaultLayout))

	pos := positions(b)
	assert.Equal(t, geom.Point{X: 5000, Y: 5000}, pos["inside"])
	assert.Equal(t, geom.Point{X: -9000, Y: 0}, pos["archived"])
	assert.Equal(t, geom.Point{X: 9000, Y: 0}, pos["trashed"])
	assert.Equal(t, geom.Point{X: -1, Y: -1}, pos["filed"])

	assert.Equal(t, geom.Point{X: 0, Y: 0}, pos["r1"])
	assert.Equal(t, geom.Point{X: 260, Y: 0}, pos["x"])
	assert.Equal(t, geom.Point{X: 580, Y: 0}, pos["f"])
}

func TestLayoutAll_EmptyAndSingle(t *testing.T) {
	b := newTestBoard(t, []*Item{newItem("r1", TypeRoom, at(10, 10))}, nil)

	require.NoError(t, b.LayoutAll("r1", DefaultLayout), "empty scope is a no-op")

	require.NoError(t, b.LayoutAll("", DefaultLayout))
	assert.Equal(t, geom.Point{X: 10, Y: 10}, mustItem(t, b, "r1").Position)

	assert.ErrorIs(t, b.LayoutAll("ghost", DefaultLayout), ErrNotFound)
}

func TestPack_OversizeOwnRow(t *testing.T) {
	opts := LayoutOptions{Columns: 2, ColumnWidth: 100, HGap: 10, VGap: 10} // row width 210
	boxes := []Box{
		{ID: "a", Position: geom.Point{X: 0, Y: 0}, Size: geom.Size{W: 100, H: 50}},
		{ID: "wide", Position: geom.Point{X: 0, Y: 1}, Size: geom.Size{W: 500, H: 30}},
		{ID: "b", Position: geom.Point{X: 0, Y: 2}, Size: geom.Size{W: 100, H: 50}},
		{ID: "c", Position: geom.Point{X: 1, Y: 2}, Size: geom.Size{W: 100, H: 50}},
		{ID: "d", Position: geom.Point{X: 0, Y: 3}, Size: geom.Size{W: 100, H: 50}},
	}

	got := Pack(boxes, opts)

	assert.Equal(t, geom.Point{X: 0, Y: 0}, got["a"])
	assert.Equal(t, geom.Point{X: 0, Y: 60}, got["wide"])
	assert.Equal(t, geom.Point{X: 0, Y: 100}, got["b"])
	assert.Equal(t, geom.Point{X: 110, Y: 100}, got["c"])
	assert.Equal(t, geom.Point{X: 0, Y: 160}, got["d"])
}

func TestPack_Empty(t *testing.T) {
	assert.Empty(t, Pack(nil, DefaultLayout))
}

func TestLayoutOptions_MaxRowWidth(t *testing.T) {
	assert.Equal(t, 1240.0, DefaultLayout.MaxRowWidth())
	assert.Equal(t, 900.0, LayoutOptions{Columns: 4, ColumnWidth: 280, RowWidth: 900}.MaxRowWidth())
	assert.Equal(t, 280.0, LayoutOptions{ColumnWidth: 280, HGap: 40}.MaxRowWidth())
}

func TestLayoutSelection(t *testing.T) {
	b := newTestBoard(t, []*Item{
		newItem("r1", TypeRoom),
		newItem("a", TypeText, inRoom("r1"), at(500, 500), createdAt(1)),
		newItem("b", TypeText, inRoom("r1"), at(100, 900), createdAt(2)),
		newItem("c", TypeText, inRoom("r1"), at(-40, -40), createdAt(3)),
		newItem("elsewhere", TypeText, at(0, 0)),
		newItem("gone", TypeText, inRoom("r1"), withStatus(StatusTrash)),
	}, nil)

	t.Run("out of scope rejects whole call", func(t *testing.T) {
		before := positions(b)
		err := b.LayoutSelection("r1", []string{"a", "elsewhere"}, DefaultLayout)
		assert.ErrorIs(t, err, ErrOutOfScope)
		assert.Equal(t, before, positions(b))

		assert.ErrorIs(t, b.LayoutSelection("r1", []string{"a", "gone"}, DefaultLayout), ErrOutOfScope)
		assert.ErrorIs(t, b.LayoutSelection("r1", []string{"nope"}, DefaultLayout), ErrNotFound)
	})

	t.Run("packs only the selection", func(t *testing.T) {
		require.NoError(t, b.LayoutSelection("r1", []string{"b", "a", "a"}, DefaultLayout))

		pos := positions(b)
		assert.Equal(t, geom.Point{X: 100, Y: 500}, pos["a"])
		assert.Equal(t, geom.Point{X: 420, Y: 500}, pos["b"])
		assert.Equal(t, geom.Point{X: -40, Y: -40}, pos["c"])
	})
}

func TestLayoutAll_SingleChangeNotification(t *testing.T) {
	b := newTestBoard(t, []*Item{
		newItem("a", TypeText, at(0, 500)),
		newItem("b", TypeText, at(0, 0)),
		newItem("c", TypeText, at(900, 900)),
	}, nil)

	var changes []Change
	b.Subscribe(func(c Change) { changes = append(changes, c) })

	require.NoError(t, b.LayoutAll("", DefaultLayout))

	require.Len(t, changes, 1)
	assert.Equal(t, ChangeLayout, changes[0].Kind)
	assert.ElementsMatch(t, []string{"a", "c"}, changes[0].IDs)
}

func TestPack_View(t *testing.T) {
	boxes := []Box{
		{ID: "a", Position: geom.Point{X: 500, Y: 500}, Size: geom.Size{W: 100, H: 50}},
		{ID: "b", Position: geom.Point{X: 700, Y: 500}, Size: geom.Size{W: 100, H: 50}},
	}
	opts := LayoutOptions{Columns: 4, ColumnWidth: 100, HGap: 10, VGap: 10}

	offscreen := geom.RectAt(geom.Point{X: -100, Y: -100}, geom.Size{W: 200, H: 200})
	opts.View = &offscreen
	got := Pack(boxes, opts)
	assert.Equal(t, geom.Point{X: -90, Y: -90}, got["a"])
	assert.Equal(t, geom.Point{X: 20, Y: -90}, got["b"])

	onscreen := geom.RectAt(geom.Point{X: 0, Y: 0}, geom.Size{W: 600, H: 600})
	opts.View = &onscreen
	got = Pack(boxes, opts)
	assert.Equal(t, geom.Point{X: 500, Y: 500}, got["a"], "a scope partly in view stays put")
	assert.Equal(t, geom.Point{X: 610, Y: 500}, got["b"])
}
