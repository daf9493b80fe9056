package store_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/allaspectsdev/frkbsync/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestOpenRunsMigrations(t *testing.T) {
	st := openTestStore(t)
	if err := st.Ping(); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	st1, err := store.Open(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	st1.Close()

	st2, err := store.Open(path)
	if err != nil {
		t.Fatalf("second open (re-running migrations): %v", err)
	}
	defer st2.Close()
}

func TestPruneExpiredSessions(t *testing.T) {
	st := openTestStore(t)
	n, err := st.PruneExpiredSessions(time.Now())
	if err != nil {
		t.Fatalf("prune expired sessions: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 rows pruned from empty table, got %d", n)
	}
}
