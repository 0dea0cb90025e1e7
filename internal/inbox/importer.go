// Package inbox turns files dropped into a folder into inbox items on the
// board. Markdown notes, plain text and internet shortcuts are supported;
// re-saving a file updates the item it was imported as.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/vonshlovens/roomboard/internal/canvas"
	"github.com/vonshlovens/roomboard/internal/config"
	"github.com/vonshlovens/roomboard/internal/parser"
	"github.com/vonshlovens/roomboard/internal/sync"
	"github.com/vonshlovens/roomboard/internal/watcher"
)

// Import results
const (
	ResultCreated   = "created"
	ResultUpdated   = "updated"
	ResultUnchanged = "unchanged"
	ResultSkipped   = "skipped"
	ResultRemoved   = "removed"
	ResultError     = "error"
)

// Recorder receives the result of every processed file
type Recorder interface {
	RecordImport(result string)
}

type nopRecorder struct{}

func (nopRecorder) RecordImport(string) {}

// Importer watches the drop folder and imports its files
type Importer struct {
	board    *canvas.Board
	state    *sync.StateTracker
	parser   *parser.Parser
	root     string
	filter   watcher.Filter
	debounce time.Duration
	recorder Recorder
	progress io.Writer
}

// Option configures an Importer
type Option func(*Importer)

// WithRecorder reports import results to r
func WithRecorder(r Recorder) Option {
	return func(im *Importer) { im.recorder = r }
}

// WithProgress sets where ImportDir draws its progress bar
func WithProgress(w io.Writer) Option {
	return func(im *Importer) { im.progress = w }
}

// New creates an importer for the drop folder in cfg
func New(board *canvas.Board, state *sync.StateTracker, cfg config.InboxConfig, debounce time.Duration, opts ...Option) *Importer {
	im := &Importer{
		board:    board,
		state:    state,
		parser:   parser.NewParser(),
		root:     cfg.Path,
		filter:   watcher.Filter{Ignore: cfg.IgnorePatterns, Include: cfg.IncludePatterns},
		debounce: debounce,
		recorder: nopRecorder{},
		progress: os.Stderr,
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// ImportFile imports the file at relPath (relative to the drop folder)
func (im *Importer) ImportFile(relPath string) (string, error) {
	result, err := im.importFile(relPath)
	im.recorder.RecordImport(result)
	return result, err
}

func (im *Importer) importFile(relPath string) (string, error) {
	relPath = filepath.ToSlash(relPath)
	if !im.filter.Allow(relPath) {
		return ResultSkipped, nil
	}

	absPath := filepath.Join(im.root, filepath.FromSlash(relPath))
	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return ResultSkipped, nil
		}
		return ResultError, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return ResultSkipped, nil
	}

	hash, err := sync.HashFile(absPath)
	if err != nil {
		return ResultError, fmt.Errorf("failed to hash file: %w", err)
	}

	prev := im.state.File(relPath)
	if prev != nil && prev.Hash == hash {
		return ResultUnchanged, nil
	}

	note, err := im.parser.ParseFile(absPath)
	if err != nil {
		return ResultError, fmt.Errorf("failed to parse file: %w", err)
	}
	if !parser.IsValidUTF8(note.RawContent) {
		slog.Warn("skipping binary file", "path", relPath)
		return ResultSkipped, nil
	}
	note.Path = relPath
	draft := note.Draft()

	result := ResultCreated
	itemID := ""
	if prev != nil && prev.ItemID != "" {
		err := im.board.UpdateContent(prev.ItemID, draft.Content, draft.Metadata)
		switch {
		case err == nil:
			result, itemID = ResultUpdated, prev.ItemID
		case errors.Is(err, canvas.ErrNotFound):
			// The item was forgotten; import the file again
		default:
			return ResultError, fmt.Errorf("failed to update item: %w", err)
		}
	}
	if itemID == "" {
		it, err := im.board.AddItem(draft)
		if err != nil {
			return ResultError, fmt.Errorf("failed to add item: %w", err)
		}
		itemID = it.ID
	}

	im.state.SetFile(relPath, &sync.FileState{
		Hash:         hash,
		ItemID:       itemID,
		LastImported: time.Now(),
		LastModified: info.ModTime(),
		SizeBytes:    info.Size(),
	})

	slog.Info("inbox file imported", "path", relPath, "id", itemID, "result", result)
	return result, nil
}

// Remove forgets a deleted file. The item it was imported as stays on the
// board.
func (im *Importer) Remove(relPath string) string {
	relPath = filepath.ToSlash(relPath)
	if im.state.File(relPath) == nil {
		return ResultSkipped
	}
	im.state.RemoveFile(relPath)
	im.recorder.RecordImport(ResultRemoved)
	slog.Debug("inbox file removed", "path", relPath)
	return ResultRemoved
}

// Summary counts the results of an ImportDir run
type Summary map[string]int

// ImportDir imports every file of the drop folder and forgets files that
// were deleted since the last scan
func (im *Importer) ImportDir(ctx context.Context) (Summary, error) {
	slog.Info("scanning inbox", "path", im.root)
	start := time.Now()

	var files []string
	err := filepath.WalkDir(im.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip errors
		}

		relPath, _ := filepath.Rel(im.root, path)
		relPath = filepath.ToSlash(relPath)
		if relPath == "." {
			return nil
		}

		if im.filter.Ignored(relPath) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && im.filter.Included(relPath) {
			files = append(files, relPath)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk inbox: %w", err)
	}

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetWriter(im.progress),
		progressbar.OptionSetDescription("Importing inbox"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionClearOnFinish(),
	)

	summary := make(Summary)
	present := make(map[string]bool, len(files))
	for _, relPath := range files {
		present[relPath] = true
	}
	for _, relPath := range im.state.FilePaths() {
		if !present[relPath] {
			summary[im.Remove(relPath)]++
		}
	}

	for _, relPath := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		result, err := im.ImportFile(relPath)
		if err != nil {
			slog.Error("failed to import file", "path", relPath, "error", err)
		}
		summary[result]++
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	if err := im.state.Save(); err != nil {
		slog.Warn("failed to save state", "error", err)
	}

	slog.Info("inbox scan completed",
		"files", len(files),
		"created", summary[ResultCreated],
		"updated", summary[ResultUpdated],
		"duration_s", time.Since(start).Seconds())

	return summary, nil
}

// Run watches the drop folder and imports files as they settle, until ctx
// is done
func (im *Importer) Run(ctx context.Context) error {
	w, err := watcher.NewWatcher(im.root, im.debounce, im.filter)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer func() {
		if err := w.Stop(); err != nil {
			slog.Warn("failed to stop watcher", "error", err)
		}
		if err := im.state.Save(); err != nil {
			slog.Warn("failed to save state", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events():
			if !ok {
				return nil
			}
			if ev.Type == watcher.EventDelete {
				im.Remove(ev.Key)
				continue
			}
			if _, err := im.ImportFile(ev.Key); err != nil {
				slog.Error("failed to import file", "path", ev.Key, "error", err)
			}
		}
	}
}
