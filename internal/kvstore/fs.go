package kvstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// keys are restricted to simple names so they map directly onto file names.
var keyRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// FS implements Store backed by JSON files in a profile directory.
type FS struct {
	root string // absolute path to the profile directory
}

// NewFS creates an FS store rooted at the given directory, creating it if
// necessary.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("kvstore: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("kvstore: create root: %w", err)
	}
	return &FS{root: abs}, nil
}

// Get reads the value stored for key.
func (f *FS) Get(key string) ([]byte, bool, error) {
	p, err := f.keyPath(key)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("kvstore: read %s: %w", key, err)
	}
	return data, true, nil
}

// Set atomically writes value: tmp file → fsync → rename.
func (f *FS) Set(key string, value []byte) error {
	p, err := f.keyPath(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.root, ".ctxt-tmp-*")
	if err != nil {
		return fmt.Errorf("kvstore: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(value); err != nil {
		return fmt.Errorf("kvstore: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("kvstore: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("kvstore: close temp: %w", err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		return fmt.Errorf("kvstore: rename: %w", err)
	}
	success = true
	return nil
}

// Delete removes the file for key; absent keys are a no-op.
func (f *FS) Delete(key string) error {
	p, err := f.keyPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("kvstore: delete %s: %w", key, err)
	}
	return nil
}

// Path returns the backing file for key.
func (f *FS) Path(key string) string {
	p, err := f.keyPath(key)
	if err != nil {
		return ""
	}
	return p
}

// Root returns the profile directory.
func (f *FS) Root() string {
	return f.root
}

func (f *FS) keyPath(key string) (string, error) {
	if !keyRe.MatchString(key) {
		return "", fmt.Errorf("kvstore: invalid key: %q", key)
	}
	return filepath.Join(f.root, key+".json"), nil
}
