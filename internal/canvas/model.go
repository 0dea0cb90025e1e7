package canvas

import (
	"maps"
	"time"

	"github.com/vonshlovens/roomboard/internal/geom"
)

// ItemType is the kind of content an item carries.
type ItemType string

const (
	TypeText    ItemType = "text"
	TypeImage   ItemType = "image"
	TypeLink    ItemType = "link"
	TypeVideo   ItemType = "video"
	TypeFile    ItemType = "file"
	TypeProject ItemType = "project"
	TypeRoom    ItemType = "room"
)

// Valid reports whether t is one of the known item types.
func (t ItemType) Valid() bool {
	switch t {
	case TypeText, TypeImage, TypeLink, TypeVideo, TypeFile, TypeProject, TypeRoom:
		return true
	}
	return false
}

// IsContainer reports whether items of type t group other entities.
func (t ItemType) IsContainer() bool { return t == TypeRoom || t == TypeProject }

// Status is the lifecycle state of an item. It is independent of where the
// item sits spatially.
type Status string

const (
	StatusInbox    Status = "inbox"
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
	StatusTrash    Status = "trash"
)

// Live reports whether items in this status take part in containment
// queries and layout.
func (s Status) Live() bool { return s != StatusArchived && s != StatusTrash }

// SyncStatus is bookkeeping for the persistence collaborator. Nothing in
// this package reads it.
type SyncStatus string

const (
	SyncSynced  SyncStatus = "synced"
	SyncPending SyncStatus = "pending"
	SyncError   SyncStatus = "error"
)

// Metadata is the open display bag attached to an item. Only title, width
// and height are interpreted here; every other key is passed through.
type Metadata map[string]any

// Title returns the "title" entry when it is a string.
func (m Metadata) Title() string {
	s, _ := m["title"].(string)
	return s
}

// Width returns the "width" entry when it is a positive number.
func (m Metadata) Width() (float64, bool) { return m.number("width") }

// Height returns the "height" entry when it is a positive number.
func (m Metadata) Height() (float64, bool) { return m.number("height") }

// Size returns the metadata box, falling back per dimension.
func (m Metadata) Size(fallback geom.Size) geom.Size {
	s := fallback
	if w, ok := m.Width(); ok {
		s.W = w
	}
	if h, ok := m.Height(); ok {
		s.H = h
	}
	return s
}

func (m Metadata) clone() Metadata { return maps.Clone(m) }

func (m Metadata) number(key string) (float64, bool) {
	var f float64
	switch v := m[key].(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	default:
		return 0, false
	}
	return f, f > 0
}

// Item is a placed unit of content. Project and room items are also
// containers.
type Item struct {
	ID        string     `json:"id"`
	Type      ItemType   `json:"type"`
	Content   string     `json:"content"`
	Metadata  Metadata   `json:"metadata,omitempty"`
	Position  geom.Point `json:"position"`
	Width     *float64   `json:"width,omitempty"`
	Height    *float64   `json:"height,omitempty"`
	ZIndex    *int       `json:"z_index,omitempty"`
	FolderID  string     `json:"folder_id,omitempty"`
	RoomID    string     `json:"room_id,omitempty"`
	Status    Status     `json:"status"`
	IsVaulted bool       `json:"is_vaulted"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	SyncStatus SyncStatus `json:"-"`
}

// clone returns a deep copy safe to hand out to readers.
func (it *Item) clone() *Item {
	c := *it
	c.Metadata = it.Metadata.clone()
	if it.Width != nil {
		w := *it.Width
		c.Width = &w
	}
	if it.Height != nil {
		h := *it.Height
		c.Height = &h
	}
	if it.ZIndex != nil {
		z := *it.ZIndex
		c.ZIndex = &z
	}
	return &c
}

// Folder is a named grouping node. Folders nest through ParentID and may sit
// inside a room.
type Folder struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Position  geom.Point `json:"position"`
	RoomID    string     `json:"room_id,omitempty"`
	ParentID  string     `json:"parent_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	SyncStatus SyncStatus `json:"-"`
}

func (f *Folder) clone() *Folder {
	c := *f
	return &c
}

// Default footprints used when neither explicit dimensions nor metadata give
// an item a size.
var defaultFootprints = map[ItemType]geom.Size{
	TypeText:    {W: 280, H: 160},
	TypeImage:   {W: 280, H: 220},
	TypeLink:    {W: 280, H: 120},
	TypeVideo:   {W: 320, H: 200},
	TypeFile:    {W: 280, H: 120},
	TypeProject: {W: 220, H: 220},
	TypeRoom:    {W: 220, H: 220},
}

var (
	folderFootprint = geom.Size{W: 220, H: 220}
	// areaFallback is the box of a project area without metadata size.
	areaFallback = geom.Size{W: 300, H: 200}
	// nominalFallback is the footprint assumed when centring a dropped entity.
	nominalFallback = geom.Size{W: 280, H: 120}
)

// Footprint is the bounding box size used for overlap and layout. Explicit
// dimensions win over metadata, which wins over the per-type default.
func (it *Item) Footprint() geom.Size {
	base, ok := defaultFootprints[it.Type]
	if !ok {
		base = defaultFootprints[TypeText]
	}
	s := it.Metadata.Size(base)
	if it.Width != nil && *it.Width > 0 {
		s.W = *it.Width
	}
	if it.Height != nil && *it.Height > 0 {
		s.H = *it.Height
	}
	return s
}

// Bounds returns the item's world-space bounding box.
func (it *Item) Bounds() geom.Rect { return geom.RectAt(it.Position, it.Footprint()) }

// areaBox is the containment box of a project area: its metadata size, or
// the fixed fallback.
func (it *Item) areaBox() geom.Rect {
	return geom.RectAt(it.Position, it.Metadata.Size(areaFallback))
}

// nominalFootprint is the size used when centring an entity on an area.
func (it *Item) nominalFootprint() geom.Size { return it.Metadata.Size(nominalFallback) }

// Footprint of a folder node.
func (f *Folder) Footprint() geom.Size { return folderFootprint }

// ItemDraft describes an item to be created.
type ItemDraft struct {
	Type     ItemType `validate:"itemtype"`
	Content  string
	Metadata Metadata
	Position geom.Point
	FolderID string `validate:"excluded_with=RoomID"`
	RoomID   string
	// Inbox creates the item with StatusInbox instead of StatusActive.
	Inbox bool
}

// FolderDraft describes a folder to be created.
type FolderDraft struct {
	Name     string
	Position geom.Point
	RoomID   string
	ParentID string
}
