package testutil

import (
	"testing"

	"lockbyte/internal/history"
)

// NewTestHistory creates an in-memory SQLite history store with the schema
// applied. The store is closed when the test completes.
func NewTestHistory(t *testing.T) *history.SQLiteStore {
	t.Helper()

	store, err := history.NewSQLiteStore(":memory:", nil)
	if err != nil {
		t.Fatalf("history.NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
