package db

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vonshlovens/roomboard/internal/canvas"
	"github.com/vonshlovens/roomboard/internal/geom"
)

// ItemRecord is a row of board_items
type ItemRecord struct {
	ID        string    `db:"id"`
	Type      string    `db:"type"`
	Content   string    `db:"content"`
	Metadata  []byte    `db:"metadata"`
	PosX      float64   `db:"pos_x"`
	PosY      float64   `db:"pos_y"`
	Width     *float64  `db:"width"`
	Height    *float64  `db:"height"`
	ZIndex    *int32    `db:"z_index"`
	FolderID  *string   `db:"folder_id"`
	RoomID    *string   `db:"room_id"`
	Status    string    `db:"status"`
	IsVaulted bool      `db:"is_vaulted"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
	SyncedAt  time.Time `db:"synced_at"`
}

// FolderRecord is a row of board_folders
type FolderRecord struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	PosX      float64   `db:"pos_x"`
	PosY      float64   `db:"pos_y"`
	RoomID    *string   `db:"room_id"`
	ParentID  *string   `db:"parent_id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
	SyncedAt  time.Time `db:"synced_at"`
}

// BoardStatus summarises the stored board
type BoardStatus struct {
	Connected    bool
	LastSyncTime *time.Time
	ItemsBy      map[string]int // status -> count
	TotalItems   int
	TotalFolders int
	Rooms        int
}

// NewItemRecord converts a canvas item into its row form
func NewItemRecord(it *canvas.Item) (*ItemRecord, error) {
	meta, err := json.Marshal(it.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata for %s: %w", it.ID, err)
	}

	rec := &ItemRecord{
		ID:        it.ID,
		Type:      string(it.Type),
		Content:   it.Content,
		Metadata:  meta,
		PosX:      it.Position.X,
		PosY:      it.Position.Y,
		Width:     it.Width,
		Height:    it.Height,
		FolderID:  nullable(it.FolderID),
		RoomID:    nullable(it.RoomID),
		Status:    string(it.Status),
		IsVaulted: it.IsVaulted,
		CreatedAt: it.CreatedAt,
		UpdatedAt: it.UpdatedAt,
	}
	if it.ZIndex != nil {
		z := int32(*it.ZIndex)
		rec.ZIndex = &z
	}
	return rec, nil
}

// Item converts the row back into a canvas item
func (r *ItemRecord) Item() (*canvas.Item, error) {
	it := &canvas.Item{
		ID:        r.ID,
		Type:      canvas.ItemType(r.Type),
		Content:   r.Content,
		Position:  geom.Point{X: r.PosX, Y: r.PosY},
		Width:     r.Width,
		Height:    r.Height,
		FolderID:  deref(r.FolderID),
		RoomID:    deref(r.RoomID),
		Status:    canvas.Status(r.Status),
		IsVaulted: r.IsVaulted,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.ZIndex != nil {
		z := int(*r.ZIndex)
		it.ZIndex = &z
	}
	if len(r.Metadata) > 0 && string(r.Metadata) != "null" {
		if err := json.Unmarshal(r.Metadata, &it.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata for %s: %w", r.ID, err)
		}
	}
	if it.Metadata == nil {
		it.Metadata = canvas.Metadata{}
	}
	return it, nil
}

// NewFolderRecord converts a canvas folder into its row form
func NewFolderRecord(f *canvas.Folder) *FolderRecord {
	return &FolderRecord{
		ID:        f.ID,
		Name:      f.Name,
		PosX:      f.Position.X,
		PosY:      f.Position.Y,
		RoomID:    nullable(f.RoomID),
		ParentID:  nullable(f.ParentID),
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// Folder converts the row back into a canvas folder
func (r *FolderRecord) Folder() *canvas.Folder {
	return &canvas.Folder{
		ID:        r.ID,
		Name:      r.Name,
		Position:  geom.Point{X: r.PosX, Y: r.PosY},
		RoomID:    deref(r.RoomID),
		ParentID:  deref(r.ParentID),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// nullable maps the canvas "no container" value to SQL NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
