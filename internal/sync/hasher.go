package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/vonshlovens/roomboard/internal/canvas"
)

// HashFile computes SHA256 hash of an inbox file
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashContent computes SHA256 hash of content bytes
func HashContent(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}

// HashString computes SHA256 hash of a string
func HashString(content string) string {
	return HashContent([]byte(content))
}

// HashItem hashes the persisted fields of an item. UpdatedAt is left out so
// a write that restores earlier content hashes the same as that content.
func HashItem(it *canvas.Item) (string, error) {
	c := *it
	c.UpdatedAt = time.Time{}
	return hashJSON(c)
}

// HashFolder hashes the persisted fields of a folder, without UpdatedAt
func HashFolder(f *canvas.Folder) (string, error) {
	c := *f
	c.UpdatedAt = time.Time{}
	return hashJSON(c)
}

func hashJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return HashContent(data), nil
}
