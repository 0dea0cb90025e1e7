package canvas

import (
	"log/slog"
	"sort"
)

// room returns the room-typed item with the given id. Callers hold b.mu.
func (b *Board) room(id string) (*Item, error) {
	it, ok := b.items[id]
	if !ok || it.Type != TypeRoom {
		return nil, notFound("room", id)
	}
	return it, nil
}

// area returns the project-typed item with the given id. Callers hold b.mu.
func (b *Board) area(id string) (*Item, error) {
	it, ok := b.items[id]
	if !ok || it.Type != TypeProject {
		return nil, notFound("area", id)
	}
	return it, nil
}

// parentOf returns the container directly holding id, or "" at root.
// Folders are held by their parent folder, otherwise by their room. Items
// are held by their folder, otherwise by their room.
func (b *Board) parentOf(id string) string {
	if f, ok := b.folders[id]; ok {
		if f.ParentID != "" {
			return f.ParentID
		}
		return f.RoomID
	}
	if it, ok := b.items[id]; ok {
		if it.FolderID != "" {
			return it.FolderID
		}
		return it.RoomID
	}
	return ""
}

// wouldCycle reports whether placing id directly inside container would
// make id its own ancestor. The walk is bounded by the entity count so a
// cycle that already exists elsewhere cannot hang it; running out of hops
// is treated as a cycle.
func (b *Board) wouldCycle(id, container string) bool {
	limit := len(b.items) + len(b.folders) + 1
	for cur := container; cur != ""; cur = b.parentOf(cur) {
		if cur == id {
			return true
		}
		limit--
		if limit < 0 {
			return true
		}
	}
	return false
}

// Load replaces the board state with the collections supplied by the
// persistence collaborator. Loaded data that breaks the containment
// invariants is repaired and logged.
func (b *Board) Load(items []*Item, folders []*Folder) {
	b.apply(ChangeLoad, "load", func() []string {
		b.items = make(map[string]*Item, len(items))
		b.folders = make(map[string]*Folder, len(folders))
		for _, it := range items {
			c := it.clone()
			c.SyncStatus = SyncSynced
			b.items[c.ID] = c
		}
		for _, f := range folders {
			c := f.clone()
			c.SyncStatus = SyncSynced
			b.folders[c.ID] = c
		}
		b.repair()

		ids := make([]string, 0, len(b.items)+len(b.folders))
		for id := range b.items {
			ids = append(ids, id)
		}
		for id := range b.folders {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		return ids
	})
}

// Reconcile applies authoritative entity versions from the persistence
// collaborator. A remote version replaces the local one unless the local
// version is strictly newer. It returns the ids that were replaced.
func (b *Board) Reconcile(items []*Item, folders []*Folder) []string {
	var applied []string

	b.apply(ChangeReconcile, "reconcile", func() []string {
		for _, remote := range items {
			if local, ok := b.items[remote.ID]; ok && local.UpdatedAt.After(remote.UpdatedAt) {
				continue
			}
			c := remote.clone()
			c.SyncStatus = SyncSynced
			b.items[c.ID] = c
			applied = append(applied, c.ID)
		}
		for _, remote := range folders {
			if local, ok := b.folders[remote.ID]; ok && local.UpdatedAt.After(remote.UpdatedAt) {
				continue
			}
			c := remote.clone()
			c.SyncStatus = SyncSynced
			b.folders[c.ID] = c
			applied = append(applied, c.ID)
		}
		if len(applied) > 0 {
			b.repair()
		}
		return applied
	})

	return applied
}

// repair enforces item exclusivity and breaks containment cycles in place.
// Callers hold b.mu.
func (b *Board) repair() {
	for _, id := range sortedKeys(b.items) {
		it := b.items[id]
		if it.FolderID != "" && it.RoomID != "" {
			slog.Warn("item has both folder and room, keeping folder",
				"id", id, "folder_id", it.FolderID, "room_id", it.RoomID)
			it.RoomID = ""
		}
	}

	ids := append(sortedKeys(b.folders), sortedKeys(b.items)...)
	for _, id := range ids {
		if !b.inCycle(id) {
			continue
		}
		slog.Error("containment cycle in loaded data, detaching to root", "id", id)
		if f, ok := b.folders[id]; ok {
			f.ParentID = ""
			f.RoomID = ""
		}
		if it, ok := b.items[id]; ok {
			it.FolderID = ""
			it.RoomID = ""
		}
	}
}

// inCycle reports whether id is its own ancestor. Cycles further up the
// chain that do not pass through id are left to their own members.
func (b *Board) inCycle(id string) bool {
	seen := make(map[string]bool)
	for cur := b.parentOf(id); cur != ""; cur = b.parentOf(cur) {
		if cur == id {
			return true
		}
		if seen[cur] {
			return false
		}
		seen[cur] = true
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
