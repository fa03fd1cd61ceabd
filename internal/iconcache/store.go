// Package iconcache memoizes resolved, validated source icons in
// memory and in a pluggable persistent store, and emits them as
// self-contained data URLs.
package iconcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrIconNotFound is returned by stores when a named icon blob does
// not exist.
var ErrIconNotFound = errors.New("icon not found")

// Entry is one persisted index record mapping a source URL to its
// resolved icon. File is empty when the icon URL is usable directly
// and no bytes were cached.
type Entry struct {
	SourceURL string    `json:"sourceUrl"`
	IconURL   string    `json:"iconUrl,omitempty"`
	File      string    `json:"file,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store is the persistent backend behind the in-memory tier. Index
// writes are whole snapshots, never appends.
type Store interface {
	LoadIndex(ctx context.Context) (map[string]Entry, error)
	SaveIndex(ctx context.Context, index map[string]Entry) error
	ReadIcon(ctx context.Context, name string) ([]byte, error)
	WriteIcon(ctx context.Context, name string, data []byte) error
	DeleteIcon(ctx context.Context, name string) error
	ListIcons(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) error
}

const indexFileName = "index.json"

// DiskStore persists icons as one binary file each plus a JSON index
// file in a single directory.
type DiskStore struct {
	dir string
}

func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

func (s *DiskStore) LoadIndex(_ context.Context) (map[string]Entry, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, indexFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Entry{}, nil
		}
		return nil, fmt.Errorf("failed to read icon index: %w", err)
	}

	index := make(map[string]Entry)
	if err := json.Unmarshal(data, &index); err != nil {
		// A corrupt index is discarded; cached files are re-indexed
		// as sources resolve again.
		return map[string]Entry{}, nil
	}
	return index, nil
}

func (s *DiskStore) SaveIndex(_ context.Context, index map[string]Entry) error {
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode icon index: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, indexFileName), data, 0o644); err != nil {
		return fmt.Errorf("failed to write icon index: %w", err)
	}
	return nil
}

func (s *DiskStore) ReadIcon(_ context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrIconNotFound
		}
		return nil, fmt.Errorf("failed to read icon file: %w", err)
	}
	return data, nil
}

func (s *DiskStore) WriteIcon(_ context.Context, name string, data []byte) error {
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return fmt.Errorf("failed to write icon file: %w", err)
	}
	return nil
}

func (s *DiskStore) DeleteIcon(_ context.Context, name string) error {
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete icon file: %w", err)
	}
	return nil
}

func (s *DiskStore) ListIcons(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || e.Name() == indexFileName {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

func (s *DiskStore) Clear(ctx context.Context) error {
	names, err := s.ListIcons(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := s.DeleteIcon(ctx, name); err != nil {
			return err
		}
	}
	return s.SaveIndex(ctx, map[string]Entry{})
}

// Ensure DiskStore implements Store
var _ Store = (*DiskStore)(nil)
