package canvas

import (
	"math"
	"sort"
	"time"

	"github.com/vonshlovens/roomboard/internal/geom"
)

// LayoutOptions controls the row grid produced by auto-layout.
type LayoutOptions struct {
	Columns     int     // column budget per row
	ColumnWidth float64 // nominal width of one column
	HGap        float64 // horizontal gap between items in a row
	VGap        float64 // vertical gap between rows

	// RowWidth, when positive, overrides the width derived from Columns.
	RowWidth float64

	// View, when set, is the world area the user is looking at. A scope
	// lying entirely outside it is packed at its top-left instead of in
	// place.
	View *geom.Rect
}

// DefaultLayout packs four default-width cards per row with 40px gaps.
var DefaultLayout = LayoutOptions{
	Columns:     4,
	ColumnWidth: 280,
	HGap:        40,
	VGap:        40,
}

// MaxRowWidth is the width a row may fill before wrapping.
func (o LayoutOptions) MaxRowWidth() float64 {
	if o.RowWidth > 0 {
		return o.RowWidth
	}
	cols := max(o.Columns, 1)
	return float64(cols)*o.ColumnWidth + float64(cols-1)*o.HGap
}

// Box is one entity as seen by the packer.
type Box struct {
	ID        string
	Position  geom.Point
	Size      geom.Size
	CreatedAt time.Time
}

// Pack places boxes into non-overlapping rows and returns the new top-left
// corner for every box id. Boxes are taken in reading order (y, then x,
// then creation time) and the grid is anchored at the top-left of their
// current bounding box, so packing an already packed set is a no-op.
// With opts.View set, a set entirely off-screen is moved into view.
func Pack(boxes []Box, opts LayoutOptions) map[string]geom.Point {
	out := make(map[string]geom.Point, len(boxes))
	if len(boxes) == 0 {
		return out
	}

	ordered := make([]Box, len(boxes))
	copy(ordered, boxes)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Position.Y != b.Position.Y {
			return a.Position.Y < b.Position.Y
		}
		if a.Position.X != b.Position.X {
			return a.Position.X < b.Position.X
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	bounds := geom.RectAt(ordered[0].Position, ordered[0].Size)
	for _, b := range ordered[1:] {
		bounds = bounds.Union(geom.RectAt(b.Position, b.Size))
	}
	anchor := bounds.Min
	if opts.View != nil && !bounds.Overlaps(*opts.View) {
		anchor = opts.View.Min.Add(geom.Point{X: opts.HGap, Y: opts.VGap})
	}

	rowWidth := opts.MaxRowWidth()
	var x, y, rowHeight float64
	inRow := 0

	newRow := func() {
		y += rowHeight + opts.VGap
		x, rowHeight, inRow = 0, 0, 0
	}

	for _, b := range ordered {
		if inRow > 0 && x+b.Size.W > rowWidth {
			newRow()
		}
		out[b.ID] = anchor.Add(geom.Point{X: x, Y: y})
		x += b.Size.W + opts.HGap
		rowHeight = math.Max(rowHeight, b.Size.H)
		inRow++

		// Oversized boxes keep the row to themselves.
		if b.Size.W > rowWidth {
			newRow()
		}
	}
	return out
}

// LayoutAll re-packs every visible item and folder of roomID.
func (b *Board) LayoutAll(roomID string, opts LayoutOptions) error {
	const op = "layout_all"
	return b.write(ChangeLayout, op, func() ([]string, error) {
		if roomID != "" {
			if _, err := b.room(roomID); err != nil {
				return nil, opErr(op, roomID, err)
			}
		}

		var boxes []Box
		for _, it := range b.items {
			if visibleItem(it, roomID) {
				boxes = append(boxes, itemBox(it))
			}
		}
		for _, f := range b.folders {
			if visibleFolder(f, roomID) {
				boxes = append(boxes, folderBox(f))
			}
		}
		return b.applyPositions(Pack(boxes, opts)), nil
	})
}

// LayoutSelection re-packs the given entities, all of which must be visible
// in roomID. One unknown or out-of-room id rejects the whole call.
func (b *Board) LayoutSelection(roomID string, ids []string, opts LayoutOptions) error {
	const op = "layout_selection"
	return b.write(ChangeLayout, op, func() ([]string, error) {
		seen := make(map[string]bool, len(ids))
		var boxes []Box
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true

			if it, ok := b.items[id]; ok {
				if !visibleItem(it, roomID) {
					return nil, opErr(op, id, ErrOutOfScope)
				}
				boxes = append(boxes, itemBox(it))
				continue
			}
			if f, ok := b.folders[id]; ok {
				if !visibleFolder(f, roomID) {
					return nil, opErr(op, id, ErrOutOfScope)
				}
				boxes = append(boxes, folderBox(f))
				continue
			}
			return nil, opErr(op, id, notFound("entity", id))
		}
		return b.applyPositions(Pack(boxes, opts)), nil
	})
}

// applyPositions commits packed positions and returns the ids that moved.
// Callers hold b.mu.
func (b *Board) applyPositions(pos map[string]geom.Point) []string {
	var moved []string
	for _, id := range sortedKeys(pos) {
		p := pos[id]
		if it, ok := b.items[id]; ok && it.Position != p {
			it.Position = p
			b.touchItem(it)
			moved = append(moved, id)
		}
		if f, ok := b.folders[id]; ok && f.Position != p {
			f.Position = p
			b.touchFolder(f)
			moved = append(moved, id)
		}
	}
	return moved
}

func itemBox(it *Item) Box {
	return Box{ID: it.ID, Position: it.Position, Size: it.Footprint(), CreatedAt: it.CreatedAt}
}

func folderBox(f *Folder) Box {
	return Box{ID: f.ID, Position: f.Position, Size: f.Footprint(), CreatedAt: f.CreatedAt}
}
