package persistence

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	// The in-memory database disappears when its last connection closes.
	db.SetMaxOpenConns(1)
	return db
}

func TestSQLitePipelineStore(t *testing.T) {
	runStoreConformance(t, func(t *testing.T) PipelineStore {
		store, err := NewSQLitePipelineStore(newTestDB(t))
		if err != nil {
			t.Fatalf("failed to create store: %v", err)
		}
		return store
	})
}

func TestSQLiteSchemaIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	if _, err := NewSQLitePipelineStore(db); err != nil {
		t.Fatalf("first init failed: %v", err)
	}
	if _, err := NewSQLitePipelineStore(db); err != nil {
		t.Fatalf("second init failed: %v", err)
	}
}
