package testsupport

import (
	"testing"

	"grila/internal/config"
	"grila/internal/results"
)

// MustOpenStore opens a SQLite results store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *results.SQLiteStore {
	t.Helper()

	store, err := results.OpenSQLite(cfg)
	if err != nil {
		t.Fatalf("results.OpenSQLite: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
