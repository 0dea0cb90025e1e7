package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vonshlovens/roomboard/internal/canvas"
)

const itemColumns = `id, type, content, metadata, pos_x, pos_y, width, height,
	z_index, folder_id, room_id, status, is_vaulted, created_at, updated_at, synced_at`

const folderColumns = `id, name, pos_x, pos_y, room_id, parent_id, created_at, updated_at, synced_at`

// Rows are replaced only by versions that are at least as new, so a slow
// push never overwrites a newer write from another client.
const upsertItemSQL = `
	INSERT INTO board_items (
		id, type, content, metadata, pos_x, pos_y, width, height,
		z_index, folder_id, room_id, status, is_vaulted, created_at, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
	)
	ON CONFLICT (id) DO UPDATE SET
		type = EXCLUDED.type,
		content = EXCLUDED.content,
		metadata = EXCLUDED.metadata,
		pos_x = EXCLUDED.pos_x,
		pos_y = EXCLUDED.pos_y,
		width = EXCLUDED.width,
		height = EXCLUDED.height,
		z_index = EXCLUDED.z_index,
		folder_id = EXCLUDED.folder_id,
		room_id = EXCLUDED.room_id,
		status = EXCLUDED.status,
		is_vaulted = EXCLUDED.is_vaulted,
		updated_at = EXCLUDED.updated_at,
		synced_at = NOW()
	WHERE board_items.updated_at <= EXCLUDED.updated_at
`

const upsertFolderSQL = `
	INSERT INTO board_folders (
		id, name, pos_x, pos_y, room_id, parent_id, created_at, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8
	)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		pos_x = EXCLUDED.pos_x,
		pos_y = EXCLUDED.pos_y,
		room_id = EXCLUDED.room_id,
		parent_id = EXCLUDED.parent_id,
		updated_at = EXCLUDED.updated_at,
		synced_at = NOW()
	WHERE board_folders.updated_at <= EXCLUDED.updated_at
`

func itemArgs(rec *ItemRecord) []any {
	return []any{
		rec.ID, rec.Type, rec.Content, rec.Metadata, rec.PosX, rec.PosY,
		rec.Width, rec.Height, rec.ZIndex, rec.FolderID, rec.RoomID,
		rec.Status, rec.IsVaulted, rec.CreatedAt, rec.UpdatedAt,
	}
}

func folderArgs(rec *FolderRecord) []any {
	return []any{
		rec.ID, rec.Name, rec.PosX, rec.PosY, rec.RoomID, rec.ParentID,
		rec.CreatedAt, rec.UpdatedAt,
	}
}

// UpsertItem writes an item. It reports false when the stored row is newer
// and was left alone.
func (db *DB) UpsertItem(ctx context.Context, it *canvas.Item) (bool, error) {
	rec, err := NewItemRecord(it)
	if err != nil {
		return false, err
	}
	tag, err := db.Pool.Exec(ctx, upsertItemSQL, itemArgs(rec)...)
	if err != nil {
		return false, fmt.Errorf("failed to upsert item %s: %w", it.ID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpsertFolder writes a folder. It reports false when the stored row is
// newer and was left alone.
func (db *DB) UpsertFolder(ctx context.Context, f *canvas.Folder) (bool, error) {
	tag, err := db.Pool.Exec(ctx, upsertFolderSQL, folderArgs(NewFolderRecord(f))...)
	if err != nil {
		return false, fmt.Errorf("failed to upsert folder %s: %w", f.ID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpsertBatch writes items and folders in one round trip
func (db *DB) UpsertBatch(ctx context.Context, items []*canvas.Item, folders []*canvas.Folder) error {
	batch := &pgx.Batch{}
	for _, f := range folders {
		batch.Queue(upsertFolderSQL, folderArgs(NewFolderRecord(f))...)
	}
	for _, it := range items {
		rec, err := NewItemRecord(it)
		if err != nil {
			return err
		}
		batch.Queue(upsertItemSQL, itemArgs(rec)...)
	}
	if batch.Len() == 0 {
		return nil
	}

	br := db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to upsert batch entry %d: %w", i, err)
		}
	}
	return nil
}

// PurgeTrash deletes items trashed before the cutoff and returns their ids
func (db *DB) PurgeTrash(ctx context.Context, before time.Time) ([]string, error) {
	rows, err := db.Pool.Query(ctx,
		"DELETE FROM board_items WHERE status = 'trash' AND updated_at < $1 RETURNING id",
		before,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to purge trash: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to purge trash: %w", err)
	}
	return ids, nil
}

// GetAllItems returns every stored item
func (db *DB) GetAllItems(ctx context.Context) ([]*canvas.Item, error) {
	return db.queryItems(ctx, "SELECT "+itemColumns+" FROM board_items")
}

// GetAllFolders returns every stored folder
func (db *DB) GetAllFolders(ctx context.Context) ([]*canvas.Folder, error) {
	return db.queryFolders(ctx, "SELECT "+folderColumns+" FROM board_folders")
}

// ItemsChangedSince returns items whose stored version is newer than since
func (db *DB) ItemsChangedSince(ctx context.Context, since time.Time) ([]*canvas.Item, error) {
	return db.queryItems(ctx,
		"SELECT "+itemColumns+" FROM board_items WHERE updated_at > $1 ORDER BY updated_at", since)
}

// FoldersChangedSince returns folders whose stored version is newer than since
func (db *DB) FoldersChangedSince(ctx context.Context, since time.Time) ([]*canvas.Folder, error) {
	return db.queryFolders(ctx,
		"SELECT "+folderColumns+" FROM board_folders WHERE updated_at > $1 ORDER BY updated_at", since)
}

func itemDest(rec *ItemRecord) []any {
	return []any{
		&rec.ID, &rec.Type, &rec.Content, &rec.Metadata, &rec.PosX, &rec.PosY,
		&rec.Width, &rec.Height, &rec.ZIndex, &rec.FolderID, &rec.RoomID,
		&rec.Status, &rec.IsVaulted, &rec.CreatedAt, &rec.UpdatedAt, &rec.SyncedAt,
	}
}

func folderDest(rec *FolderRecord) []any {
	return []any{
		&rec.ID, &rec.Name, &rec.PosX, &rec.PosY, &rec.RoomID, &rec.ParentID,
		&rec.CreatedAt, &rec.UpdatedAt, &rec.SyncedAt,
	}
}

func (db *DB) queryItems(ctx context.Context, query string, args ...any) ([]*canvas.Item, error) {
	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*canvas.Item
	for rows.Next() {
		rec := &ItemRecord{}
		if err := rows.Scan(itemDest(rec)...); err != nil {
			return nil, err
		}
		it, err := rec.Item()
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}

	return items, rows.Err()
}

func (db *DB) queryFolders(ctx context.Context, query string, args ...any) ([]*canvas.Folder, error) {
	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var folders []*canvas.Folder
	for rows.Next() {
		rec := &FolderRecord{}
		if err := rows.Scan(folderDest(rec)...); err != nil {
			return nil, err
		}
		folders = append(folders, rec.Folder())
	}

	return folders, rows.Err()
}
