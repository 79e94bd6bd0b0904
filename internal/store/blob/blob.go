package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"lexpipe/internal/store"
)

// Store is a filesystem-backed BlobStore rooted at a single directory.
// Locations are slash-separated relative paths; writes never replace an
// existing artifact, matching the pipeline's append-only artifact rule.
type Store struct {
	root string
}

var _ store.BlobStore = (*Store)(nil)

func NewStore(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("blob store root cannot be empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root %s: %w", root, err)
	}
	return &Store{root: root}, nil
}

func (s *Store) Put(ctx context.Context, location string, data []byte) (string, error) {
	path, err := s.resolve(location)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("blob %s: %w", location, store.ErrDuplicate)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create blob directory for %s: %w", location, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write blob %s: %w", location, err)
	}
	return location, nil
}

func (s *Store) Get(ctx context.Context, location string) ([]byte, error) {
	path, err := s.resolve(location)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("blob %s: %w", location, store.ErrNotFound)
		}
		return nil, fmt.Errorf("read blob %s: %w", location, err)
	}
	return data, nil
}

// resolve maps a location to an absolute path under root, rejecting
// traversal outside it.
func (s *Store) resolve(location string) (string, error) {
	if location == "" {
		return "", fmt.Errorf("blob location cannot be empty")
	}
	clean := filepath.Clean(filepath.FromSlash(location))
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("blob location %q escapes store root", location)
	}
	return filepath.Join(s.root, clean), nil
}
