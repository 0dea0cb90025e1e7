package watcher

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Filter decides which relative paths of the drop folder are considered.
// Ignore patterns also match any parent directory of a path. When include
// patterns are set, a path must match one of them.
type Filter struct {
	Ignore  []string
	Include []string
}

// Ignored reports whether relPath or one of its parent directories matches
// an ignore pattern
func (f Filter) Ignored(relPath string) bool {
	parts := strings.Split(relPath, "/")
	for _, pattern := range f.Ignore {
		if matched, err := doublestar.Match(pattern, relPath); err == nil && matched {
			return true
		}
		for i := 1; i < len(parts); i++ {
			partial := strings.Join(parts[:i], "/")
			if matched, _ := doublestar.Match(pattern, partial); matched {
				return true
			}
		}
	}
	return false
}

// Included reports whether relPath matches the include patterns (or there
// are none)
func (f Filter) Included(relPath string) bool {
	if len(f.Include) == 0 {
		return true
	}
	for _, pattern := range f.Include {
		if matched, err := doublestar.Match(pattern, relPath); err == nil && matched {
			return true
		}
	}
	return false
}

// Allow reports whether a file at relPath should be imported
func (f Filter) Allow(relPath string) bool {
	return !f.Ignored(relPath) && f.Included(relPath)
}
