package db

import (
	"reflect"
	"testing"
	"time"

	"github.com/vonshlovens/roomboard/internal/canvas"
	"github.com/vonshlovens/roomboard/internal/geom"
)

func TestItemRecord_RoundTrip(t *testing.T) {
	w, z := 320.0, 7
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	it := &canvas.Item{
		ID:        "a",
		Type:      canvas.TypeProject,
		Content:   "Launch plan",
		Metadata:  canvas.Metadata{"title": "Launch", "width": 400.0, "tags": []any{"q3"}},
		Position:  geom.Point{X: -12.5, Y: 40},
		Width:     &w,
		ZIndex:    &z,
		RoomID:    "r1",
		Status:    canvas.StatusArchived,
		IsVaulted: true,
		CreatedAt: now,
		UpdatedAt: now.Add(time.Minute),
	}

	rec, err := NewItemRecord(it)
	if err != nil {
		t.Fatalf("NewItemRecord: %v", err)
	}
	if rec.FolderID != nil {
		t.Errorf("empty folder should map to NULL, got %q", *rec.FolderID)
	}
	if rec.RoomID == nil || *rec.RoomID != "r1" {
		t.Errorf("room_id = %v, want r1", rec.RoomID)
	}
	if rec.ZIndex == nil || *rec.ZIndex != 7 {
		t.Errorf("z_index = %v, want 7", rec.ZIndex)
	}

	back, err := rec.Item()
	if err != nil {
		t.Fatalf("Item: %v", err)
	}
	if !reflect.DeepEqual(it, back) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", back, it)
	}
}

func TestItemRecord_NullMetadata(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"empty", nil},
		{"json null", []byte("null")},
		{"empty object", []byte("{}")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &ItemRecord{ID: "x", Type: "text", Status: "active", Metadata: tt.raw}
			it, err := rec.Item()
			if err != nil {
				t.Fatalf("Item: %v", err)
			}
			if it.Metadata == nil {
				t.Error("metadata should never be nil")
			}
		})
	}

	bad := &ItemRecord{ID: "x", Metadata: []byte("{")}
	if _, err := bad.Item(); err == nil {
		t.Error("expected error for malformed metadata")
	}
}

func TestFolderRecord_RoundTrip(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	f := &canvas.Folder{
		ID:        "f",
		Name:      "Reading",
		Position:  geom.Point{X: 1, Y: 2},
		ParentID:  "parent",
		CreatedAt: now,
		UpdatedAt: now,
	}

	rec := NewFolderRecord(f)
	if rec.RoomID != nil {
		t.Errorf("empty room should map to NULL")
	}
	if got := rec.Folder(); !reflect.DeepEqual(f, got) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, f)
	}
}
