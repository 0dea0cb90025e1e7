package canvas

// visibleItem reports whether it is drawn on the canvas of roomID: live,
// directly in the room and not filed in a folder.
func visibleItem(it *Item, roomID string) bool {
	return it.Status.Live() && it.RoomID == roomID && it.FolderID == ""
}

func visibleFolder(f *Folder, roomID string) bool {
	return f.RoomID == roomID && f.ParentID == ""
}

// VisibleItems returns the live items placed directly in roomID ("" is the
// root canvas). Items in nested rooms stay hidden until that room is entered.
func (b *Board) VisibleItems(roomID string) []*Item {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []*Item
	for _, it := range b.items {
		if visibleItem(it, roomID) {
			out = append(out, it.clone())
		}
	}
	sortItems(out)
	return out
}

// VisibleFolders returns the top-level folders placed in roomID.
func (b *Board) VisibleFolders(roomID string) []*Folder {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []*Folder
	for _, f := range b.folders {
		if visibleFolder(f, roomID) {
			out = append(out, f.clone())
		}
	}
	sortFolders(out)
	return out
}

// FolderContents returns the live items and subfolders filed in folderID.
func (b *Board) FolderContents(folderID string) ([]*Item, []*Folder, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if _, ok := b.folders[folderID]; !ok {
		return nil, nil, notFound("folder", folderID)
	}

	var items []*Item
	for _, it := range b.items {
		if it.FolderID == folderID && it.Status.Live() {
			items = append(items, it.clone())
		}
	}
	var folders []*Folder
	for _, f := range b.folders {
		if f.ParentID == folderID {
			folders = append(folders, f.clone())
		}
	}
	sortItems(items)
	sortFolders(folders)
	return items, folders, nil
}

// AreaMembers returns the live items whose position lies inside the
// project area's box and that share the area's container level. Membership
// is computed from positions on every call and never stored.
func (b *Board) AreaMembers(areaID string) ([]*Item, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	area, err := b.area(areaID)
	if err != nil {
		return nil, err
	}
	box := area.areaBox()

	var out []*Item
	for _, it := range b.items {
		if it.ID == areaID || !it.Status.Live() {
			continue
		}
		if it.RoomID != area.RoomID || it.FolderID != area.FolderID {
			continue
		}
		if box.Contains(it.Position) {
			out = append(out, it.clone())
		}
	}
	sortItems(out)
	return out, nil
}

// Crumb is one room on the path from the root canvas to the current room.
type Crumb struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Breadcrumb returns the room ancestry of roomID, outermost first and
// ending with roomID itself. The root canvas is not included; an empty
// roomID yields an empty path.
func (b *Board) Breadcrumb(roomID string) ([]Crumb, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if roomID == "" {
		return nil, nil
	}
	if _, err := b.room(roomID); err != nil {
		return nil, err
	}

	var path []Crumb
	seen := make(map[string]bool)
	for id := roomID; id != "" && !seen[id]; {
		seen[id] = true
		r, err := b.room(id)
		if err != nil {
			break
		}
		path = append(path, Crumb{ID: r.ID, Title: r.Metadata.Title()})
		id = r.RoomID
	}

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}
