package draft

import (
	"testing"

	"github.com/nibzard/ctxt/internal/blockstore"
	"github.com/nibzard/ctxt/internal/kvstore"
	"github.com/nibzard/ctxt/internal/models"
)

func TestSaveAndRestore(t *testing.T) {
	s := NewStore(kvstore.NewMemory())

	blocks := blockstore.Append(nil, models.Block{
		ID: blockstore.NewID(), Kind: models.KindNote, Body: "hello",
	})
	if err := s.Save(blocks, "my stack"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	snap, err := s.Restore()
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if snap == nil {
		t.Fatal("Restore returned nil snapshot")
	}
	if snap.Name != "my stack" || len(snap.Blocks) != 1 || snap.Blocks[0].Body != "hello" {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.SavedAt.IsZero() {
		t.Error("SavedAt not set")
	}
}

func TestRestoreWithoutSnapshot(t *testing.T) {
	s := NewStore(kvstore.NewMemory())
	snap, err := s.Restore()
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if snap != nil {
		t.Errorf("snapshot = %+v, want nil", snap)
	}
}

func TestEmptySaveDeletesSnapshot(t *testing.T) {
	kv := kvstore.NewMemory()
	s := NewStore(kv)

	blocks := blockstore.Append(nil, models.Block{ID: "1", Kind: models.KindNote, Body: "x"})
	_ = s.Save(blocks, "")

	// Emptying the collection with a blank name must remove the snapshot,
	// not write an empty one.
	if err := s.Save(nil, "  "); err != nil {
		t.Fatalf("Save empty: %v", err)
	}
	if _, ok, _ := kv.Get(kvstore.KeyDraft); ok {
		t.Error("snapshot still present after empty save")
	}
}

func TestEmptyBlocksWithNameStillSaved(t *testing.T) {
	s := NewStore(kvstore.NewMemory())
	if err := s.Save(nil, "named but empty"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	snap, _ := s.Restore()
	if snap == nil || snap.Name != "named but empty" {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestCorruptSnapshotIgnored(t *testing.T) {
	kv := kvstore.NewMemory()
	_ = kv.Set(kvstore.KeyDraft, []byte("{not json"))
	snap, err := NewStore(kv).Restore()
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if snap != nil {
		t.Error("corrupt snapshot should restore as nil")
	}
}
