package iconcache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDiskStore_IconRoundTrip(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore() error = %v", err)
	}

	ctx := context.Background()
	if err := store.WriteIcon(ctx, "abc123", pngData); err != nil {
		t.Fatalf("WriteIcon() error = %v", err)
	}

	got, err := store.ReadIcon(ctx, "abc123")
	if err != nil {
		t.Fatalf("ReadIcon() error = %v", err)
	}
	if string(got) != string(pngData) {
		t.Error("ReadIcon() returned different bytes than written")
	}

	names, err := store.ListIcons(ctx)
	if err != nil {
		t.Fatalf("ListIcons() error = %v", err)
	}
	if len(names) != 1 || names[0] != "abc123" {
		t.Errorf("ListIcons() = %v, want [abc123]", names)
	}

	if err := store.DeleteIcon(ctx, "abc123"); err != nil {
		t.Fatalf("DeleteIcon() error = %v", err)
	}
	if _, err := store.ReadIcon(ctx, "abc123"); !errors.Is(err, ErrIconNotFound) {
		t.Errorf("ReadIcon() after delete error = %v, want ErrIconNotFound", err)
	}
}

func TestDiskStore_DeleteMissingIconIsNoop(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore() error = %v", err)
	}

	if err := store.DeleteIcon(context.Background(), "nope"); err != nil {
		t.Errorf("DeleteIcon() on missing file error = %v, want nil", err)
	}
}

func TestDiskStore_IndexRoundTrip(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore() error = %v", err)
	}

	ctx := context.Background()
	index := map[string]Entry{
		"https://example.com/feed.xml": {
			SourceURL: "https://example.com/feed.xml",
			IconURL:   "https://example.com/favicon.ico",
			File:      "abc123",
			UpdatedAt: time.Now().UTC().Truncate(time.Second),
		},
	}
	if err := store.SaveIndex(ctx, index); err != nil {
		t.Fatalf("SaveIndex() error = %v", err)
	}

	loaded, err := store.LoadIndex(ctx)
	if err != nil {
		t.Fatalf("LoadIndex() error = %v", err)
	}
	entry, ok := loaded["https://example.com/feed.xml"]
	if !ok {
		t.Fatal("LoadIndex() missing saved entry")
	}
	if entry.File != "abc123" {
		t.Errorf("entry.File = %q, want %q", entry.File, "abc123")
	}
}

func TestDiskStore_LoadIndex_MissingFile(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore() error = %v", err)
	}

	index, err := store.LoadIndex(context.Background())
	if err != nil {
		t.Fatalf("LoadIndex() error = %v", err)
	}
	if len(index) != 0 {
		t.Errorf("LoadIndex() on empty dir = %v, want empty map", index)
	}
}

func TestDiskStore_LoadIndex_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskStore(dir)
	if err != nil {
		t.Fatalf("NewDiskStore() error = %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, indexFileName), []byte("{broken"), 0o644); err != nil {
		t.Fatalf("writing corrupt index: %v", err)
	}

	index, err := store.LoadIndex(context.Background())
	if err != nil {
		t.Fatalf("LoadIndex() error = %v, corrupt index should be discarded", err)
	}
	if len(index) != 0 {
		t.Errorf("LoadIndex() = %v, want empty map for corrupt index", index)
	}
}

func TestDiskStore_ListIcons_ExcludesIndex(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore() error = %v", err)
	}

	ctx := context.Background()
	if err := store.SaveIndex(ctx, map[string]Entry{}); err != nil {
		t.Fatalf("SaveIndex() error = %v", err)
	}
	if err := store.WriteIcon(ctx, "abc123", pngData); err != nil {
		t.Fatalf("WriteIcon() error = %v", err)
	}

	names, err := store.ListIcons(ctx)
	if err != nil {
		t.Fatalf("ListIcons() error = %v", err)
	}
	if len(names) != 1 || names[0] != "abc123" {
		t.Errorf("ListIcons() = %v, want only the icon blob", names)
	}
}
