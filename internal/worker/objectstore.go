package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FSObjectStore serves uploaded files straight from a local directory.
// Keys are paths relative to the base dir; traversal outside it is
// rejected.
type FSObjectStore struct {
	baseDir string
}

func NewFSObjectStore(baseDir string) *FSObjectStore {
	return &FSObjectStore{baseDir: baseDir}
}

func (s *FSObjectStore) Download(ctx context.Context, key string) (string, func(), error) {
	noop := func() {}

	cleaned := filepath.Clean(key)
	if strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", noop, fmt.Errorf("invalid object key %q", key)
	}

	path := filepath.Join(s.baseDir, cleaned)
	if _, err := os.Stat(path); err != nil {
		return "", noop, fmt.Errorf("object %q: %w", key, err)
	}
	// The file already lives on local disk; nothing to release.
	return path, noop, nil
}
