package testsupport

import (
	"context"
	"testing"

	"marketreel/internal/config"
	"marketreel/internal/run"
)

// MustOpenStore opens a run.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *run.Store {
	t.Helper()

	store, err := run.Open(cfg)
	if err != nil {
		t.Fatalf("run.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewRun creates a pending run for tests using the provided store.
func NewRun(t testing.TB, store *run.Store, tradeDate string) *run.Run {
	t.Helper()

	item, err := store.NewRun(context.Background(), tradeDate)
	if err != nil {
		t.Fatalf("store.NewRun: %v", err)
	}
	return item
}
