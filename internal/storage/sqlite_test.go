package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func TestSQLiteStore(t *testing.T) {
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "cubelife.db"))
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	exerciseStore(t, store)
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cubelife.db")

	store := NewSQLiteStore(path)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := store.SaveState(ctx, "run-1", fixtureState(t)); err != nil {
		t.Fatalf("save state: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened := NewSQLiteStore(path)
	if err := reopened.Init(ctx); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() {
		_ = reopened.Close()
	})
	doc, ok, err := reopened.GetState(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("get state: ok=%t err=%v", ok, err)
	}
	if doc.Generation != 2 {
		t.Fatalf("unexpected generation: %d", doc.Generation)
	}
}

func TestSQLiteStoreRequiresInitAndPath(t *testing.T) {
	if _, _, err := NewSQLiteStore("unused.db").GetState(context.Background(), "run-1"); err == nil {
		t.Fatal("expected error before init")
	}
	if err := NewSQLiteStore("").Init(context.Background()); err == nil {
		t.Fatal("expected error for empty path")
	}
}
