package kvstore

import (
	"os"
	"testing"
)

func tempStore(t *testing.T) *FS {
	t.Helper()
	s, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return s
}

func TestSetAndGet(t *testing.T) {
	s := tempStore(t)
	if err := s.Set(KeyDraft, []byte(`{"name":"x"}`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := s.Get(KeyDraft)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if string(got) != `{"name":"x"}` {
		t.Errorf("value = %q", got)
	}
}

func TestGetMissingKey(t *testing.T) {
	s := tempStore(t)
	_, ok, err := s.Get(KeyImportQueue)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Error("missing key reported as present")
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := tempStore(t)
	_ = s.Set(KeyDraft, []byte("v"))
	if err := s.Delete(KeyDraft); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(KeyDraft); err != nil {
		t.Fatalf("Delete absent: %v", err)
	}
	if _, ok, _ := s.Get(KeyDraft); ok {
		t.Error("key present after delete")
	}
}

func TestInvalidKeyRejected(t *testing.T) {
	s := tempStore(t)
	for _, key := range []string{"", "../escape", "UPPER", "has space"} {
		if err := s.Set(key, []byte("v")); err == nil {
			t.Errorf("Set(%q) accepted invalid key", key)
		}
	}
}

func TestPathPointsInsideRoot(t *testing.T) {
	s := tempStore(t)
	_ = s.Set(KeyImportQueue, []byte("[]"))
	p := s.Path(KeyImportQueue)
	if p == "" {
		t.Fatal("Path returned empty for file-backed store")
	}
	if _, err := os.Stat(p); err != nil {
		t.Errorf("stat %s: %v", p, err)
	}
}

func TestMemoryStore(t *testing.T) {
	m := NewMemory()
	_ = m.Set(KeyDraft, []byte("v"))
	got, ok, _ := m.Get(KeyDraft)
	if !ok || string(got) != "v" {
		t.Errorf("memory get = %q ok=%v", got, ok)
	}
	got[0] = 'x' // caller must not alias store internals
	again, _, _ := m.Get(KeyDraft)
	if string(again) != "v" {
		t.Error("memory store aliases returned slice")
	}
	if m.Path(KeyDraft) != "" {
		t.Error("memory store should report no path")
	}
}
