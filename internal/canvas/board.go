// Package canvas implements the spatial containment and layout engine of the
// board: which container an item belongs to, how items move between
// containers, room navigation, auto-layout and drop handling.
//
// A Board owns the entity state. Every write runs inside a single critical
// section and emits one Change to subscribers after the lock is released,
// so readers never observe a half-applied operation. Sessions carry the
// per-client view state (current room and viewport) on top of a shared Board.
package canvas

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ChangeKind classifies a state change.
type ChangeKind string

const (
	ChangeLoad      ChangeKind = "load"
	ChangeReconcile ChangeKind = "reconcile"
	ChangeCreate    ChangeKind = "create"
	ChangeMove      ChangeKind = "move"
	ChangeStatus    ChangeKind = "status"
	ChangeLayout    ChangeKind = "layout"
	ChangeContent   ChangeKind = "content"
	ChangeSync      ChangeKind = "sync"
	ChangeForget    ChangeKind = "forget"
)

// Change is delivered to subscribers after a successful write.
type Change struct {
	Kind ChangeKind
	Op   string
	IDs  []string
}

// Local reports whether the change originated from a user operation on this
// board and therefore has to be handed to the persistence collaborator.
func (c Change) Local() bool {
	switch c.Kind {
	case ChangeCreate, ChangeMove, ChangeStatus, ChangeLayout, ChangeContent:
		return true
	}
	return false
}

// Board holds items and folders and enforces the containment invariants.
// It is safe for concurrent use.
type Board struct {
	mu      sync.RWMutex
	items   map[string]*Item
	folders map[string]*Folder

	subMu   sync.Mutex
	subs    map[int]func(Change)
	nextSub int

	now   func() time.Time
	newID func() string
}

// Option configures a Board.
type Option func(*Board)

// WithClock overrides the time source used for CreatedAt/UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(b *Board) { b.now = now }
}

// WithIDFunc overrides the id generator used for new entities.
func WithIDFunc(fn func() string) Option {
	return func(b *Board) { b.newID = fn }
}

// NewBoard creates an empty board.
func NewBoard(opts ...Option) *Board {
	b := &Board{
		items:   make(map[string]*Item),
		folders: make(map[string]*Folder),
		subs:    make(map[int]func(Change)),
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers fn to be called after every successful write. The
// returned function removes the subscription.
func (b *Board) Subscribe(fn func(Change)) (cancel func()) {
	b.subMu.Lock()
	defer b.subMu.Unlock()

	id := b.nextSub
	b.nextSub++
	b.subs[id] = fn

	return func() {
		b.subMu.Lock()
		defer b.subMu.Unlock()
		delete(b.subs, id)
	}
}

func (b *Board) notify(c Change) {
	b.subMu.Lock()
	keys := make([]int, 0, len(b.subs))
	for k := range b.subs {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	fns := make([]func(Change), 0, len(keys))
	for _, k := range keys {
		fns = append(fns, b.subs[k])
	}
	b.subMu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}

// write runs fn under the write lock and notifies subscribers when fn
// succeeds and reports touched ids. fn must validate before it mutates.
func (b *Board) write(kind ChangeKind, op string, fn func() ([]string, error)) error {
	var err error
	b.apply(kind, op, func() []string {
		var ids []string
		ids, err = fn()
		if err != nil {
			return nil
		}
		return ids
	})
	return err
}

// apply is write for mutations that cannot be rejected. Load, Reconcile
// and the sync marks take the collaborator's data as given and repair it
// instead of failing.
func (b *Board) apply(kind ChangeKind, op string, fn func() []string) {
	b.mu.Lock()
	ids := fn()
	b.mu.Unlock()

	if len(ids) > 0 {
		b.notify(Change{Kind: kind, Op: op, IDs: ids})
	}
}

func (b *Board) touchItem(it *Item) {
	it.UpdatedAt = b.now()
	it.SyncStatus = SyncPending
}

func (b *Board) touchFolder(f *Folder) {
	f.UpdatedAt = b.now()
	f.SyncStatus = SyncPending
}

// Item returns a copy of the item with the given id.
func (b *Board) Item(id string) (*Item, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	it, ok := b.items[id]
	if !ok {
		return nil, notFound("item", id)
	}
	return it.clone(), nil
}

// Folder returns a copy of the folder with the given id.
func (b *Board) Folder(id string) (*Folder, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	f, ok := b.folders[id]
	if !ok {
		return nil, notFound("folder", id)
	}
	return f.clone(), nil
}

// Items returns copies of every item, ordered by creation time.
func (b *Board) Items() []*Item {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]*Item, 0, len(b.items))
	for _, it := range b.items {
		out = append(out, it.clone())
	}
	sortItems(out)
	return out
}

// Folders returns copies of every folder, ordered by creation time.
func (b *Board) Folders() []*Folder {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]*Folder, 0, len(b.folders))
	for _, f := range b.folders {
		out = append(out, f.clone())
	}
	sortFolders(out)
	return out
}

// Len returns the number of items and folders on the board.
func (b *Board) Len() (items, folders int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.items), len(b.folders)
}

// AddItem creates an item from draft with a fresh id.
func (b *Board) AddItem(d ItemDraft) (*Item, error) {
	const op = "add_item"
	var created *Item

	err := b.write(ChangeCreate, op, func() ([]string, error) {
		if err := draftValidator.Struct(d); err != nil {
			return nil, opErr(op, "", fmt.Errorf("%w: %w", ErrInvalidDraft, err))
		}
		if d.FolderID != "" {
			if _, ok := b.folders[d.FolderID]; !ok {
				return nil, opErr(op, "", notFound("folder", d.FolderID))
			}
		}
		if d.RoomID != "" {
			if _, err := b.room(d.RoomID); err != nil {
				return nil, opErr(op, "", err)
			}
		}

		now := b.now()
		it := &Item{
			ID:         b.newID(),
			Type:       d.Type,
			Content:    d.Content,
			Metadata:   d.Metadata.clone(),
			Position:   d.Position,
			FolderID:   d.FolderID,
			RoomID:     d.RoomID,
			Status:     StatusActive,
			CreatedAt:  now,
			UpdatedAt:  now,
			SyncStatus: SyncPending,
		}
		if d.Inbox {
			it.Status = StatusInbox
		}
		b.items[it.ID] = it
		created = it.clone()
		return []string{it.ID}, nil
	})
	return created, err
}

// AddFolder creates a folder from draft with a fresh id.
func (b *Board) AddFolder(d FolderDraft) (*Folder, error) {
	const op = "add_folder"
	var created *Folder

	err := b.write(ChangeCreate, op, func() ([]string, error) {
		if d.ParentID != "" {
			if _, ok := b.folders[d.ParentID]; !ok {
				return nil, opErr(op, "", notFound("folder", d.ParentID))
			}
		}
		if d.RoomID != "" {
			if _, err := b.room(d.RoomID); err != nil {
				return nil, opErr(op, "", err)
			}
		}

		now := b.now()
		f := &Folder{
			ID:         b.newID(),
			Name:       d.Name,
			Position:   d.Position,
			RoomID:     d.RoomID,
			ParentID:   d.ParentID,
			CreatedAt:  now,
			UpdatedAt:  now,
			SyncStatus: SyncPending,
		}
		b.folders[f.ID] = f
		created = f.clone()
		return []string{f.ID}, nil
	})
	return created, err
}

// UpdateContent replaces an item's content and merges metadata keys into
// its metadata bag.
func (b *Board) UpdateContent(id, content string, meta Metadata) error {
	const op = "update_content"
	return b.write(ChangeContent, op, func() ([]string, error) {
		it, ok := b.items[id]
		if !ok {
			return nil, opErr(op, id, notFound("item", id))
		}
		it.Content = content
		if len(meta) > 0 && it.Metadata == nil {
			it.Metadata = make(Metadata, len(meta))
		}
		for k, v := range meta {
			it.Metadata[k] = v
		}
		b.touchItem(it)
		return []string{id}, nil
	})
}

// Forget drops an entity from local state. It exists for the persistence
// collaborator to apply an authoritative hard delete; user-facing deletion
// is SetTrashed.
func (b *Board) Forget(id string) error {
	return b.write(ChangeForget, "forget", func() ([]string, error) {
		_, isItem := b.items[id]
		_, isFolder := b.folders[id]
		if !isItem && !isFolder {
			return nil, opErr("forget", id, notFound("entity", id))
		}
		delete(b.items, id)
		delete(b.folders, id)
		return []string{id}, nil
	})
}

// MarkSynced records that the entity version stamped with updatedAt reached
// the store. Newer local versions stay pending.
func (b *Board) MarkSynced(id string, updatedAt time.Time) {
	b.markSync(id, updatedAt, SyncSynced)
}

// MarkSyncError records that pushing the entity version failed.
func (b *Board) MarkSyncError(id string, updatedAt time.Time) {
	b.markSync(id, updatedAt, SyncError)
}

func (b *Board) markSync(id string, version time.Time, status SyncStatus) {
	b.apply(ChangeSync, string(status), func() []string {
		if it, ok := b.items[id]; ok && it.UpdatedAt.Equal(version) && it.SyncStatus != status {
			it.SyncStatus = status
			return []string{id}
		}
		if f, ok := b.folders[id]; ok && f.UpdatedAt.Equal(version) && f.SyncStatus != status {
			f.SyncStatus = status
			return []string{id}
		}
		return nil
	})
}

func sortItems(items []*Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
}

func sortFolders(folders []*Folder) {
	sort.SliceStable(folders, func(i, j int) bool {
		if !folders[i].CreatedAt.Equal(folders[j].CreatedAt) {
			return folders[i].CreatedAt.Before(folders[j].CreatedAt)
		}
		return folders[i].ID < folders[j].ID
	})
}
