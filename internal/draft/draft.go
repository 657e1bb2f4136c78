// Package draft mirrors the active session to a durable local snapshot so
// an interrupted session can resume where it left off.
package draft

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nibzard/ctxt/internal/kvstore"
	"github.com/nibzard/ctxt/internal/models"
)

// Store persists and restores draft snapshots.
type Store struct {
	kv kvstore.Store
}

// NewStore creates a draft store over the given key-value store.
func NewStore(kv kvstore.Store) *Store {
	return &Store{kv: kv}
}

// Save writes a snapshot of the collection and name. An empty collection
// with a blank name deletes the snapshot instead: closing out a session
// must not leave an empty-but-present draft behind.
func (s *Store) Save(blocks []models.Block, name string) error {
	if len(blocks) == 0 && strings.TrimSpace(name) == "" {
		return s.kv.Delete(kvstore.KeyDraft)
	}
	snap := models.Snapshot{
		Blocks:  blocks,
		Name:    name,
		SavedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("draft: marshal snapshot: %w", err)
	}
	return s.kv.Set(kvstore.KeyDraft, data)
}

// Restore returns the stored snapshot, or nil when none exists or the
// stored payload is unreadable.
func (s *Store) Restore() (*models.Snapshot, error) {
	data, ok, err := s.kv.Get(kvstore.KeyDraft)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		// A corrupt draft is not worth failing session start over.
		return nil, nil
	}
	return &snap, nil
}
