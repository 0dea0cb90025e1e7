package inbox

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vonshlovens/roomboard/internal/canvas"
	"github.com/vonshlovens/roomboard/internal/config"
	"github.com/vonshlovens/roomboard/internal/sync"
)

type counts map[string]int

func (c counts) RecordImport(result string) { c[result]++ }

func newImporter(t *testing.T, cfg config.InboxConfig) (*Importer, *canvas.Board, *sync.StateTracker) {
	t.Helper()
	if cfg.Path == "" {
		cfg.Path = t.TempDir()
	}
	board := canvas.NewBoard()
	state := sync.OpenStateTracker(filepath.Join(t.TempDir(), "state.json"), "test")
	return New(board, state, cfg, 20*time.Millisecond, WithProgress(io.Discard)), board, state
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestImportFile_CreatesInboxItem(t *testing.T) {
	im, board, state := newImporter(t, config.InboxConfig{})
	writeFile(t, im.root, "ideas/garden.md", "---\ntags: [plants]\n---\nWater the ferns #weekly\n")

	result, err := im.ImportFile("ideas/garden.md")
	require.NoError(t, err)
	assert.Equal(t, ResultCreated, result)

	fs := state.File("ideas/garden.md")
	require.NotNil(t, fs)

	it, err := board.Item(fs.ItemID)
	require.NoError(t, err)
	assert.Equal(t, canvas.StatusInbox, it.Status)
	assert.Equal(t, canvas.TypeText, it.Type)
	assert.Equal(t, "Water the ferns #weekly", it.Content)
	assert.Equal(t, "garden", it.Metadata.Title())
	assert.Equal(t, []string{"plants", "weekly"}, it.Metadata["tags"])
	assert.Equal(t, "ideas/garden.md", it.Metadata["source"])
}

func TestImportFile_ResaveUpdatesSameItem(t *testing.T) {
	rec := counts{}
	im, board, state := newImporter(t, config.InboxConfig{})
	im.recorder = rec

	writeFile(t, im.root, "todo.md", "first draft")
	_, err := im.ImportFile("todo.md")
	require.NoError(t, err)
	id := state.File("todo.md").ItemID

	result, err := im.ImportFile("todo.md")
	require.NoError(t, err)
	assert.Equal(t, ResultUnchanged, result)

	writeFile(t, im.root, "todo.md", "second draft")
	result, err = im.ImportFile("todo.md")
	require.NoError(t, err)
	assert.Equal(t, ResultUpdated, result)
	assert.Equal(t, id, state.File("todo.md").ItemID)

	items, _ := board.Len()
	assert.Equal(t, 1, items)
	it, err := board.Item(id)
	require.NoError(t, err)
	assert.Equal(t, "second draft", it.Content)

	assert.Equal(t, counts{ResultCreated: 1, ResultUnchanged: 1, ResultUpdated: 1}, rec)
}

func TestImportFile_ForgottenItemIsRecreated(t *testing.T) {
	im, board, state := newImporter(t, config.InboxConfig{})

	writeFile(t, im.root, "a.md", "one")
	_, err := im.ImportFile("a.md")
	require.NoError(t, err)
	require.NoError(t, board.Forget(state.File("a.md").ItemID))

	writeFile(t, im.root, "a.md", "two")
	result, err := im.ImportFile("a.md")
	require.NoError(t, err)
	assert.Equal(t, ResultCreated, result)

	_, err = board.Item(state.File("a.md").ItemID)
	assert.NoError(t, err)
}

func TestImportFile_Skips(t *testing.T) {
	im, _, _ := newImporter(t, config.InboxConfig{
		IgnorePatterns:  []string{".trash/**"},
		IncludePatterns: []string{"**/*.md", "**/*.url"},
	})
	writeFile(t, im.root, ".trash/old.md", "gone")
	writeFile(t, im.root, "photo.png", "\x89PNG")
	writeFile(t, im.root, "bin.md", "\xff\xfe\x00")

	tests := []string{".trash/old.md", "photo.png", "missing.md", "bin.md"}
	for _, rel := range tests {
		result, err := im.ImportFile(rel)
		assert.NoError(t, err, rel)
		assert.Equal(t, ResultSkipped, result, rel)
	}
}

func TestImportDir(t *testing.T) {
	im, board, state := newImporter(t, config.InboxConfig{IgnorePatterns: []string{".git/**"}})
	writeFile(t, im.root, "a.md", "alpha")
	writeFile(t, im.root, "links/go.url", "[InternetShortcut]\nURL=https://go.dev\n")
	writeFile(t, im.root, ".git/HEAD", "ref")

	summary, err := im.ImportDir(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{ResultCreated: 2}, summary)

	var types []canvas.ItemType
	for _, it := range board.Items() {
		types = append(types, it.Type)
	}
	assert.ElementsMatch(t, []canvas.ItemType{canvas.TypeText, canvas.TypeLink}, types)

	summary, err = im.ImportDir(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{ResultUnchanged: 2}, summary)

	require.NoError(t, os.Remove(filepath.Join(im.root, "a.md")))
	summary, err = im.ImportDir(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{ResultRemoved: 1, ResultUnchanged: 1}, summary)
	assert.Nil(t, state.File("a.md"))
	assert.Len(t, board.Items(), 2)
}

func TestRemove_KeepsItem(t *testing.T) {
	im, board, state := newImporter(t, config.InboxConfig{})
	writeFile(t, im.root, "a.md", "alpha")
	_, err := im.ImportFile("a.md")
	require.NoError(t, err)
	id := state.File("a.md").ItemID

	assert.Equal(t, ResultRemoved, im.Remove("a.md"))
	assert.Nil(t, state.File("a.md"))
	assert.Equal(t, ResultSkipped, im.Remove("a.md"))

	_, err = board.Item(id)
	assert.NoError(t, err)
}

func TestRun_ImportsDroppedFiles(t *testing.T) {
	im, board, _ := newImporter(t, config.InboxConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- im.Run(ctx) }()

	// Give the watcher time to register the root
	time.Sleep(100 * time.Millisecond)
	writeFile(t, im.root, "dropped.md", "just dropped")

	require.Eventually(t, func() bool {
		items, _ := board.Len()
		return items == 1
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
