// Package testutil provides shared test helpers for temporary stores.
package testutil

import (
	"io"
	"os"
	"testing"

	"github.com/nibzard/ctxt/internal/kvstore"
)

// TestRepoDB opens a temporary SQLite-backed repository that is
// automatically closed and cleaned up. The open function is passed in so
// this package does not depend on the repositories it helps test.
func TestRepoDB[T io.Closer](t *testing.T, open func(dsn string) (T, error)) T {
	t.Helper()
	dbFile, err := os.CreateTemp("", "ctxt-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	repo, err := open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

// TestProfile creates a temporary profile directory with a file-backed
// key-value store.
func TestProfile(t *testing.T) (string, *kvstore.FS) {
	t.Helper()
	dir := t.TempDir()
	kv, err := kvstore.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, kv
}
