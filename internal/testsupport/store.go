package testsupport

import (
	"context"
	"testing"

	"furrow/internal/config"
	"furrow/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// Enqueue persists a new pending recording for tests.
func Enqueue(t testing.TB, store *queue.Store, filename string, payload []byte) *queue.Item {
	t.Helper()

	item := queue.NewItem(filename, payload, "")
	if err := store.Put(context.Background(), item); err != nil {
		t.Fatalf("store.Put: %v", err)
	}
	return item
}
