package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestLocalStoreSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewLocalStore(newClient(mr), time.Hour).ForDevice("dev-1")
	ctx := context.Background()

	if _, ok, err := store.Get(ctx, "puzzleProgress"); err != nil || ok {
		t.Fatalf("expected missing key, ok=%v err=%v", ok, err)
	}
	if err := store.Set(ctx, "puzzleProgress", "{}"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !mr.Exists("local:dev-1:puzzleProgress") {
		t.Fatalf("expected namespaced redis key to be set")
	}
	if ttl := mr.TTL("local:dev-1:puzzleProgress"); ttl != time.Hour {
		t.Fatalf("expected ttl 1h, got %v", ttl)
	}

	if err := store.Remove(ctx, "puzzleProgress"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if mr.Exists("local:dev-1:puzzleProgress") {
		t.Fatalf("expected redis key to be removed")
	}
}
