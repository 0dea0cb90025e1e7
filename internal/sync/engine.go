package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/vonshlovens/roomboard/internal/canvas"
	"github.com/vonshlovens/roomboard/internal/config"
	"github.com/vonshlovens/roomboard/internal/watcher"
)

// Push outcomes reported to the Observer
const (
	ResultSynced    = "synced"
	ResultUnchanged = "unchanged"
	ResultStale     = "stale"
	ResultError     = "error"
)

// Store is the persistence collaborator entities are pushed to.
// Upserts report false when the store already holds a newer version.
type Store interface {
	UpsertItem(ctx context.Context, it *canvas.Item) (bool, error)
	UpsertFolder(ctx context.Context, f *canvas.Folder) (bool, error)
	UpsertBatch(ctx context.Context, items []*canvas.Item, folders []*canvas.Folder) error
	GetAllItems(ctx context.Context) ([]*canvas.Item, error)
	GetAllFolders(ctx context.Context) ([]*canvas.Folder, error)
	ItemsChangedSince(ctx context.Context, since time.Time) ([]*canvas.Item, error)
	FoldersChangedSince(ctx context.Context, since time.Time) ([]*canvas.Folder, error)
}

// Observer receives the outcome of every push
type Observer interface {
	ObservePush(kind, result string)
}

type nopObserver struct{}

func (nopObserver) ObservePush(string, string) {}

// Engine pushes local board changes to the store and pulls remote ones back
type Engine struct {
	board    *canvas.Board
	store    Store
	state    *StateTracker
	config   config.SyncConfig
	observer Observer
	progress io.Writer

	mu         sync.Mutex
	retryQueue map[string]int // entity id -> retry count

	debouncer   *watcher.Debouncer
	unsubscribe func()
	done        chan struct{}
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithObserver reports push outcomes to o
func WithObserver(o Observer) EngineOption {
	return func(e *Engine) { e.observer = o }
}

// WithProgress sets where FullPush draws its progress bar
func WithProgress(w io.Writer) EngineOption {
	return func(e *Engine) { e.progress = w }
}

// NewEngine creates a new sync engine
func NewEngine(board *canvas.Board, store Store, state *StateTracker, cfg config.SyncConfig, opts ...EngineOption) *Engine {
	e := &Engine{
		board:      board,
		store:      store,
		state:      state,
		config:     cfg,
		observer:   nopObserver{},
		progress:   os.Stderr,
		retryQueue: make(map[string]int),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Bootstrap replaces the board state with the store's content
func (e *Engine) Bootstrap(ctx context.Context) error {
	items, err := e.store.GetAllItems(ctx)
	if err != nil {
		return fmt.Errorf("failed to load items: %w", err)
	}
	folders, err := e.store.GetAllFolders(ctx)
	if err != nil {
		return fmt.Errorf("failed to load folders: %w", err)
	}

	e.board.Load(items, folders)

	var high time.Time
	if lp := e.state.LastPoll(); lp != nil {
		high = *lp
	}
	for _, it := range items {
		e.recordItem(it)
		if it.UpdatedAt.After(high) {
			high = it.UpdatedAt
		}
	}
	for _, f := range folders {
		e.recordFolder(f)
		if f.UpdatedAt.After(high) {
			high = f.UpdatedAt
		}
	}
	if !high.IsZero() {
		e.state.SetLastPoll(high)
	}

	slog.Info("board loaded", "items", len(items), "folders", len(folders))
	return nil
}

// Start subscribes to local changes and pushes them after the debounce
// delay. It also polls the store and retries failed pushes until ctx is
// done or Stop is called.
func (e *Engine) Start(ctx context.Context) {
	e.debouncer = watcher.NewDebouncer(e.config.Debounce())
	e.done = make(chan struct{})
	e.unsubscribe = e.board.Subscribe(func(c canvas.Change) {
		if !c.Local() {
			return
		}
		for _, id := range c.IDs {
			e.debouncer.Add(id, watcher.EventModify)
		}
	})

	go e.run(ctx)

	slog.Info("sync engine started",
		"debounce", e.config.Debounce(),
		"poll_interval", e.config.PollInterval())
}

// Stop ends the background loop and pushes whatever is still pending
func (e *Engine) Stop(ctx context.Context) error {
	if e.unsubscribe == nil {
		return nil
	}
	e.unsubscribe()
	slog.Debug("stopping sync engine", "debounced", e.debouncer.PendingCount())

	// Debounced ids go through the loop while it still runs. Once ctx is
	// done the loop no longer reads, and stopping the debouncer releases
	// the flush; PushPending below covers what it dropped.
	flushed := make(chan struct{})
	go func() {
		defer close(flushed)
		e.debouncer.Flush()
	}()
	select {
	case <-flushed:
	case <-e.done:
	}
	e.debouncer.Stop()
	<-e.done
	<-flushed
	e.unsubscribe = nil

	err := e.PushPending(ctx)
	if saveErr := e.SaveState(); saveErr != nil {
		slog.Warn("failed to save state", "error", saveErr)
	}
	return err
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.done)

	pollC, stopPoll := tick(e.config.PollInterval())
	defer stopPoll()
	retryC, stopRetry := tick(e.config.RetryDelay())
	defer stopRetry()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-e.debouncer.Events():
			if !ok {
				return
			}
			if err := e.Push(ctx, ev.Key); err != nil {
				slog.Error("push failed", "id", ev.Key, "error", err)
			}

		case <-pollC:
			if _, err := e.Poll(ctx); err != nil {
				slog.Warn("poll failed", "error", err)
			}

		case <-retryC:
			e.RetryFailed(ctx)
		}
	}
}

// tick returns a ticker channel, or nil (never fires) for a zero interval
func tick(d time.Duration) (<-chan time.Time, func()) {
	if d <= 0 {
		return nil, func() {}
	}
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Push sends the current version of one entity to the store
func (e *Engine) Push(ctx context.Context, id string) error {
	if it, err := e.board.Item(id); err == nil {
		hash, err := HashItem(it)
		if err != nil {
			return fmt.Errorf("failed to hash item: %w", err)
		}
		return e.push(ctx, "item", id, hash, it.UpdatedAt, func(ctx context.Context) (bool, error) {
			return e.store.UpsertItem(ctx, it)
		})
	}
	if f, err := e.board.Folder(id); err == nil {
		hash, err := HashFolder(f)
		if err != nil {
			return fmt.Errorf("failed to hash folder: %w", err)
		}
		return e.push(ctx, "folder", id, hash, f.UpdatedAt, func(ctx context.Context) (bool, error) {
			return e.store.UpsertFolder(ctx, f)
		})
	}

	// Forgotten before the push ran
	e.dequeue(id)
	slog.Debug("entity gone, skipping push", "id", id)
	return nil
}

func (e *Engine) push(ctx context.Context, kind, id, hash string, version time.Time, upsert func(context.Context) (bool, error)) error {
	if !e.state.NeedsPush(id, hash) {
		e.board.MarkSynced(id, version)
		e.dequeue(id)
		e.observer.ObservePush(kind, ResultUnchanged)
		slog.Debug("entity unchanged, skipping", "id", id)
		return nil
	}

	applied, err := upsert(ctx)
	if err != nil {
		e.board.MarkSyncError(id, version)
		e.enqueue(id)
		e.observer.ObservePush(kind, ResultError)
		return fmt.Errorf("failed to push %s %s: %w", kind, id, err)
	}

	e.dequeue(id)
	if !applied {
		// The store holds a newer version; the next poll reconciles it
		e.observer.ObservePush(kind, ResultStale)
		slog.Debug("store has newer version", "kind", kind, "id", id)
		return nil
	}

	e.state.SetEntity(id, &EntityState{Hash: hash, Version: version, LastSynced: time.Now()})
	e.board.MarkSynced(id, version)
	e.observer.ObservePush(kind, ResultSynced)
	slog.Debug("entity pushed", "kind", kind, "id", id)
	return nil
}

// PushPending pushes every entity that is not marked synced
func (e *Engine) PushPending(ctx context.Context) error {
	var errs []error
	for _, it := range e.board.Items() {
		if it.SyncStatus != canvas.SyncSynced {
			errs = append(errs, e.Push(ctx, it.ID))
		}
	}
	for _, f := range e.board.Folders() {
		if f.SyncStatus != canvas.SyncSynced {
			errs = append(errs, e.Push(ctx, f.ID))
		}
	}
	return errors.Join(errs...)
}

// Poll fetches entities the store changed since the last poll and
// reconciles them into the board. It returns the ids that were applied.
func (e *Engine) Poll(ctx context.Context) ([]string, error) {
	var since time.Time
	if lp := e.state.LastPoll(); lp != nil {
		since = *lp
	}

	items, err := e.store.ItemsChangedSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch changed items: %w", err)
	}
	folders, err := e.store.FoldersChangedSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch changed folders: %w", err)
	}

	high := since
	var remoteItems []*canvas.Item
	for _, it := range items {
		if it.UpdatedAt.After(high) {
			high = it.UpdatedAt
		}
		// Skip the echo of our own pushes
		if hash, err := HashItem(it); err == nil && !e.state.NeedsPush(it.ID, hash) {
			continue
		}
		remoteItems = append(remoteItems, it)
	}
	var remoteFolders []*canvas.Folder
	for _, f := range folders {
		if f.UpdatedAt.After(high) {
			high = f.UpdatedAt
		}
		if hash, err := HashFolder(f); err == nil && !e.state.NeedsPush(f.ID, hash) {
			continue
		}
		remoteFolders = append(remoteFolders, f)
	}

	applied := e.board.Reconcile(remoteItems, remoteFolders)

	appliedSet := make(map[string]bool, len(applied))
	for _, id := range applied {
		appliedSet[id] = true
	}
	for _, it := range remoteItems {
		if appliedSet[it.ID] {
			e.recordItem(it)
		}
	}
	for _, f := range remoteFolders {
		if appliedSet[f.ID] {
			e.recordFolder(f)
		}
	}

	if high.After(since) {
		e.state.SetLastPoll(high)
	}
	if len(applied) > 0 {
		slog.Info("remote changes applied", "count", len(applied))
	}
	return applied, nil
}

// FullPush writes the whole board to the store in batches
func (e *Engine) FullPush(ctx context.Context) error {
	slog.Info("starting full push")
	start := time.Now()

	items := e.board.Items()
	folders := e.board.Folders()

	bar := progressbar.NewOptions(len(items)+len(folders),
		progressbar.OptionSetWriter(e.progress),
		progressbar.OptionSetDescription("Pushing board"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
	)

	size := max(e.config.BatchSize, 1)

	// Folders first so item folder references resolve
	for lo := 0; lo < len(folders); lo += size {
		chunk := folders[lo:min(lo+size, len(folders))]
		if err := e.store.UpsertBatch(ctx, nil, chunk); err != nil {
			return fmt.Errorf("failed to push folders: %w", err)
		}
		for _, f := range chunk {
			e.recordFolder(f)
			e.board.MarkSynced(f.ID, f.UpdatedAt)
		}
		_ = bar.Add(len(chunk))
	}

	for lo := 0; lo < len(items); lo += size {
		chunk := items[lo:min(lo+size, len(items))]
		if err := e.store.UpsertBatch(ctx, chunk, nil); err != nil {
			return fmt.Errorf("failed to push items: %w", err)
		}
		for _, it := range chunk {
			e.recordItem(it)
			e.board.MarkSynced(it.ID, it.UpdatedAt)
		}
		_ = bar.Add(len(chunk))
	}
	_ = bar.Finish()

	e.state.SetLastFullPush(time.Now())
	if err := e.state.Save(); err != nil {
		slog.Warn("failed to save state", "error", err)
	}

	slog.Info("full push completed",
		"items", len(items),
		"folders", len(folders),
		"duration_s", time.Since(start).Seconds())

	return nil
}

// RetryFailed retries failed pushes
func (e *Engine) RetryFailed(ctx context.Context) {
	maxRetries := e.config.RetryAttempts

	e.mu.Lock()
	ids := make([]string, 0, len(e.retryQueue))
	for id := range e.retryQueue {
		ids = append(ids, id)
	}
	e.mu.Unlock()
	sort.Strings(ids)

	for _, id := range ids {
		e.mu.Lock()
		count, ok := e.retryQueue[id]
		if !ok {
			e.mu.Unlock()
			continue
		}
		if count >= maxRetries {
			delete(e.retryQueue, id)
			e.mu.Unlock()
			slog.Error("max retries exceeded", "id", id)
			continue
		}
		e.retryQueue[id] = count + 1
		e.mu.Unlock()

		if err := e.Push(ctx, id); err != nil {
			slog.Warn("retry failed", "id", id, "attempt", count+1, "error", err)
		} else {
			slog.Info("retry succeeded", "id", id)
		}
	}
}

// RetryQueueLen returns the number of entities waiting for a retry
func (e *Engine) RetryQueueLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.retryQueue)
}

// SaveState persists the current state to disk
func (e *Engine) SaveState() error {
	return e.state.Save()
}

func (e *Engine) enqueue(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.retryQueue[id]; !ok {
		e.retryQueue[id] = 0
	}
}

func (e *Engine) dequeue(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.retryQueue, id)
}

func (e *Engine) recordItem(it *canvas.Item) {
	hash, err := HashItem(it)
	if err != nil {
		slog.Warn("failed to hash item", "id", it.ID, "error", err)
		return
	}
	e.state.SetEntity(it.ID, &EntityState{Hash: hash, Version: it.UpdatedAt, LastSynced: time.Now()})
}

func (e *Engine) recordFolder(f *canvas.Folder) {
	hash, err := HashFolder(f)
	if err != nil {
		slog.Warn("failed to hash folder", "id", f.ID, "error", err)
		return
	}
	e.state.SetEntity(f.ID, &EntityState{Hash: hash, Version: f.UpdatedAt, LastSynced: time.Now()})
}
