package sync

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/vonshlovens/roomboard/internal/config"
)

// EntityState is the last version of an item or folder the store acknowledged
type EntityState struct {
	Hash       string    `json:"hash"`
	Version    time.Time `json:"version"`
	LastSynced time.Time `json:"last_synced"`
}

// FileState tracks an inbox file and the item it was imported as
type FileState struct {
	Hash         string    `json:"hash"`
	ItemID       string    `json:"item_id"`
	LastImported time.Time `json:"last_imported"`
	LastModified time.Time `json:"last_modified"`
	SizeBytes    int64     `json:"size_bytes"`
}

// SyncState represents the local sync state of one board
type SyncState struct {
	Board        string                  `json:"board"`
	LastFullPush *time.Time              `json:"last_full_push,omitempty"`
	LastPoll     *time.Time              `json:"last_poll,omitempty"`
	Entities     map[string]*EntityState `json:"entities"`
	Files        map[string]*FileState   `json:"files"`
}

// StateTracker manages local sync state
type StateTracker struct {
	state    *SyncState
	filePath string
	mu       sync.RWMutex
	dirty    bool
}

// NewStateTracker opens the state file of a board in the user state dir
func NewStateTracker(board string) (*StateTracker, error) {
	stateDir, err := config.GetStateDir()
	if err != nil {
		return nil, err
	}

	// One state file per board (database schema)
	boardHash := HashString(board)[:12]
	return OpenStateTracker(filepath.Join(stateDir, "state-"+boardHash+".json"), board), nil
}

// OpenStateTracker opens the state file at filePath. State recorded for a
// different board is discarded.
func OpenStateTracker(filePath, board string) *StateTracker {
	st := &StateTracker{
		filePath: filePath,
		state:    newSyncState(board),
	}

	if err := st.load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("ignoring unreadable sync state", "path", filePath, "error", err)
	}

	if st.state.Board != board {
		st.state = newSyncState(board)
	}

	return st
}

func newSyncState(board string) *SyncState {
	return &SyncState{
		Board:    board,
		Entities: make(map[string]*EntityState),
		Files:    make(map[string]*FileState),
	}
}

// load reads state from disk
func (st *StateTracker) load() error {
	data, err := os.ReadFile(st.filePath)
	if err != nil {
		return err
	}

	state := &SyncState{}
	if err := json.Unmarshal(data, state); err != nil {
		return err
	}

	if state.Entities == nil {
		state.Entities = make(map[string]*EntityState)
	}
	if state.Files == nil {
		state.Files = make(map[string]*FileState)
	}

	st.state = state
	return nil
}

// Save persists state to disk
func (st *StateTracker) Save() error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if !st.dirty {
		return nil
	}

	data, err := json.MarshalIndent(st.state, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(st.filePath), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(st.filePath, data, 0644); err != nil {
		return err
	}

	st.dirty = false
	return nil
}

// Entity returns the acknowledged state of an entity
func (st *StateTracker) Entity(id string) *EntityState {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.state.Entities[id]
}

// SetEntity records the version of an entity the store now holds
func (st *StateTracker) SetEntity(id string, state *EntityState) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.state.Entities[id] = state
	st.dirty = true
}

// RemoveEntity forgets an entity
func (st *StateTracker) RemoveEntity(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.state.Entities, id)
	st.dirty = true
}

// NeedsPush reports whether the store holds different content than hash
func (st *StateTracker) NeedsPush(id, hash string) bool {
	st.mu.RLock()
	defer st.mu.RUnlock()

	state, exists := st.state.Entities[id]
	if !exists {
		return true
	}
	return state.Hash != hash
}

// File returns the state of an inbox file
func (st *StateTracker) File(path string) *FileState {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.state.Files[path]
}

// SetFile updates the state of an inbox file
func (st *StateTracker) SetFile(path string, state *FileState) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.state.Files[path] = state
	st.dirty = true
}

// RemoveFile removes state for an inbox file
func (st *StateTracker) RemoveFile(path string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.state.Files, path)
	st.dirty = true
}

// FilePaths returns all tracked inbox paths, sorted
func (st *StateTracker) FilePaths() []string {
	st.mu.RLock()
	defer st.mu.RUnlock()

	paths := make([]string, 0, len(st.state.Files))
	for path := range st.state.Files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// SetLastFullPush updates the last full push time
func (st *StateTracker) SetLastFullPush(t time.Time) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.state.LastFullPush = &t
	st.dirty = true
}

// LastFullPush returns the last full push time
func (st *StateTracker) LastFullPush() *time.Time {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.state.LastFullPush
}

// SetLastPoll records the high-water mark of remote changes seen
func (st *StateTracker) SetLastPoll(t time.Time) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.state.LastPoll = &t
	st.dirty = true
}

// LastPoll returns the high-water mark of remote changes seen
func (st *StateTracker) LastPoll() *time.Time {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.state.LastPoll
}

// Clear removes all state
func (st *StateTracker) Clear() {
	st.mu.Lock()
	defer st.mu.Unlock()
	board := st.state.Board
	st.state = newSyncState(board)
	st.dirty = true
}

// EntityCount returns the number of tracked entities
func (st *StateTracker) EntityCount() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.state.Entities)
}

// FileCount returns the number of tracked inbox files
func (st *StateTracker) FileCount() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.state.Files)
}
