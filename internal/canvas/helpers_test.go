package canvas

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/vonshlovens/roomboard/internal/geom"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type itemOpt func(*Item)

func at(x, y float64) itemOpt { return func(it *Item) { it.Position = geom.Point{X: x, Y: y} } }
func inRoom(id string) itemOpt { return func(it *Item) { it.RoomID = id } }
func inFolder(id string) itemOpt { return func(it *Item) { it.FolderID = id } }
func withStatus(s Status) itemOpt { return func(it *Item) { it.Status = s } }
func createdAt(sec int) itemOpt { return func(it *Item) { it.CreatedAt = t0.Add(time.Duration(sec) * time.Second) } }
func titled(title string) itemOpt { return func(it *Item) { it.Metadata["title"] = title } }
func sized(w, h float64) itemOpt {
	return func(it *Item) {
		it.Metadata["width"] = w
		it.Metadata["height"] = h
	}
}

func newItem(id string, typ ItemType, opts ...itemOpt) *Item {
	it := &Item{
		ID:        id,
		Type:      typ,
		Metadata:  Metadata{},
		Status:    StatusActive,
		CreatedAt: t0,
		UpdatedAt: t0,
	}
	for _, opt := range opts {
		opt(it)
	}
	return it
}

type folderOpt func(*Folder)

func folderIn(room string) folderOpt { return func(f *Folder) { f.RoomID = room } }
func folderUnder(parent string) folderOpt { return func(f *Folder) { f.ParentID = parent } }
func folderAt(x, y float64) folderOpt {
	return func(f *Folder) { f.Position = geom.Point{X: x, Y: y} }
}

func newFolder(id string, opts ...folderOpt) *Folder {
	f := &Folder{ID: id, Name: id, CreatedAt: t0, UpdatedAt: t0}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// testClock hands out strictly increasing timestamps.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestBoard(t *testing.T, items []*Item, folders []*Folder) *Board {
	t.Helper()
	clock := &testClock{now: t0.Add(time.Hour)}
	seq := 0
	b := NewBoard(
		WithClock(clock.Now),
		WithIDFunc(func() string {
			seq++
			return fmt.Sprintf("new-%d", seq)
		}),
	)
	b.Load(items, folders)
	return b
}

func mustItem(t *testing.T, b *Board, id string) *Item {
	t.Helper()
	it, err := b.Item(id)
	if err != nil {
		t.Fatalf("item %s: %v", id, err)
	}
	return it
}

func mustFolder(t *testing.T, b *Board, id string) *Folder {
	t.Helper()
	f, err := b.Folder(id)
	if err != nil {
		t.Fatalf("folder %s: %v", id, err)
	}
	return f
}

func ids[T interface{ *Item | *Folder }](entities []T) []string {
	out := make([]string, 0, len(entities))
	for _, e := range entities {
		switch v := any(e).(type) {
		case *Item:
			out = append(out, v.ID)
		case *Folder:
			out = append(out, v.ID)
		}
	}
	return out
}
