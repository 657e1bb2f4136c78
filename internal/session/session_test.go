package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nibzard/ctxt/internal/apperr"
	"github.com/nibzard/ctxt/internal/autosave"
	"github.com/nibzard/ctxt/internal/blockstore"
	"github.com/nibzard/ctxt/internal/draft"
	"github.com/nibzard/ctxt/internal/importqueue"
	"github.com/nibzard/ctxt/internal/kvstore"
	"github.com/nibzard/ctxt/internal/models"
	"github.com/nibzard/ctxt/internal/reconciler"
)

type memPublisher struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (p *memPublisher) Publish(context.Context, string, string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.fail {
		return "", errors.New("remote down")
	}
	return "perm-id", nil
}

func (p *memPublisher) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type env struct {
	kv    *kvstore.Memory
	queue *importqueue.Queue
	pub   *memPublisher
}

func newEnv() *env {
	kv := kvstore.NewMemory()
	return &env{
		kv:    kv,
		queue: importqueue.New(kv, nil),
		pub:   &memPublisher{},
	}
}

func (e *env) config() Config {
	return Config{
		Drafts:     draft.NewStore(e.kv),
		Queue:      e.queue,
		Reconciler: reconciler.New(e.queue, nil),
		Publisher:  e.pub,
	}
}

func mustSession(t *testing.T, cfg Config) *Session {
	t.Helper()
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestMutationsKeepPositionsContiguous(t *testing.T) {
	s := mustSession(t, newEnv().config())
	ctx := context.Background()

	_, _ = s.AddNote(ctx, "a")
	_, _ = s.AddNote(ctx, "b")
	_, _ = s.AddSource(ctx, models.Extraction{SourceURL: "https://x", Title: "T", Body: "c"})

	blocks := s.Blocks()
	_ = s.Remove(ctx, blocks[1].ID)
	_ = s.Move(ctx, 0, 1)
	_, _ = s.Duplicate(ctx, s.Blocks()[0].ID)

	for i, b := range s.Blocks() {
		if b.Position != i {
			t.Errorf("position[%d] = %d", i, b.Position)
		}
	}
}

func TestAddNoteRejectsEmptyBody(t *testing.T) {
	s := mustSession(t, newEnv().config())
	if _, err := s.AddNote(context.Background(), "  \n"); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
	if len(s.Blocks()) != 0 {
		t.Error("rejected note reached the collection")
	}
}

func TestMoveOutOfBounds(t *testing.T) {
	s := mustSession(t, newEnv().config())
	_, _ = s.AddNote(context.Background(), "a")
	if err := s.Move(context.Background(), 0, 5); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestRemoveUnknown(t *testing.T) {
	s := mustSession(t, newEnv().config())
	if err := s.Remove(context.Background(), "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDraftFollowsMutations(t *testing.T) {
	e := newEnv()
	s := mustSession(t, e.config())
	_, _ = s.AddNote(context.Background(), "persist me")

	// A fresh session over the same store restores the draft.
	restored := mustSession(t, e.config())
	blocks := restored.Blocks()
	if len(blocks) != 1 || blocks[0].Body != "persist me" {
		t.Errorf("restored = %+v", blocks)
	}
}

func TestInitialBlocksSuppressRestore(t *testing.T) {
	e := newEnv()
	s := mustSession(t, e.config())
	_, _ = s.AddNote(context.Background(), "old draft")

	cfg := e.config()
	cfg.InitialBlocks = []models.Block{{Kind: models.KindNote, Body: "caller supplied"}}
	fresh := mustSession(t, cfg)

	blocks := fresh.Blocks()
	if len(blocks) != 1 || blocks[0].Body != "caller supplied" {
		t.Errorf("blocks = %+v", blocks)
	}
	if blocks[0].ID == "" || blocks[0].Position != 0 {
		t.Errorf("initial block not normalized: %+v", blocks[0])
	}
}

func TestPendingImportReplacesDraftAtStartup(t *testing.T) {
	e := newEnv()
	s := mustSession(t, e.config())
	_, _ = s.AddNote(context.Background(), "old draft")

	_ = e.queue.Enqueue(importqueue.Entry{ID: "q1", Kind: "note", Body: "queued"})

	// A fresh session skips the draft restore and folds the batch in
	// immediately; no later queue write is needed.
	fresh := mustSession(t, e.config())
	blocks := fresh.Blocks()
	if len(blocks) != 1 || blocks[0].Body != "queued" {
		t.Fatalf("blocks = %+v, want the queued batch", blocks)
	}

	pending, err := e.queue.Pending()
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if pending {
		t.Error("queue not cleared after startup merge")
	}
}

func TestRemixAutoPublishesOnFirstMutation(t *testing.T) {
	e := newEnv()
	cfg := e.config()
	cfg.RemixOf = "source-doc"
	cfg.InitialBlocks = serializedRemix()
	s := mustSession(t, cfg)

	if s.AutoSaveState() != autosave.Armed {
		t.Fatalf("state = %v, want armed", s.AutoSaveState())
	}

	_, _ = s.AddNote(context.Background(), "first edit")
	waitFor(t, func() bool { return s.AutoSaveState() == autosave.Fired })

	meta := s.Meta()
	if !meta.AutoPublished || meta.PublishedID != "perm-id" {
		t.Errorf("meta = %+v", meta)
	}
	if meta.RemixOf != "" {
		t.Error("derivation flag not cleared after auto publish")
	}

	// Further mutations must not publish again.
	_, _ = s.AddNote(context.Background(), "second edit")
	_, _ = s.AddNote(context.Background(), "third edit")
	time.Sleep(30 * time.Millisecond)
	if e.pub.callCount() != 1 {
		t.Errorf("publish calls = %d, want 1", e.pub.callCount())
	}
}

func TestStartRemixArmsAutoPublish(t *testing.T) {
	e := newEnv()
	s := mustSession(t, e.config())
	if s.AutoSaveState() != autosave.Inactive {
		t.Fatalf("state = %v, want inactive", s.AutoSaveState())
	}

	s.StartRemix(serializedRemix(), "Borrowed Stack", "source-doc")

	if s.AutoSaveState() != autosave.Armed {
		t.Fatalf("state = %v, want armed", s.AutoSaveState())
	}
	meta := s.Meta()
	if meta.RemixOf != "source-doc" || meta.Name != "Borrowed Stack" {
		t.Errorf("meta = %+v", meta)
	}
	if got := s.Blocks(); len(got) != 1 || got[0].Position != 0 || got[0].ID == "" {
		t.Errorf("blocks = %+v", got)
	}

	_, _ = s.AddNote(context.Background(), "first edit")
	waitFor(t, func() bool { return s.AutoSaveState() == autosave.Fired })
	if !s.Meta().AutoPublished {
		t.Error("remix mutation did not auto publish")
	}
}

// cancelAwarePublisher fails when its context is already done, the way a
// real HTTP client would.
type cancelAwarePublisher struct {
	memPublisher
}

func (p *cancelAwarePublisher) Publish(ctx context.Context, name, flattened string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.memPublisher.Publish(ctx, name, flattened)
}

func TestAutoPublishOutlivesCallerContext(t *testing.T) {
	e := newEnv()
	pub := &cancelAwarePublisher{}
	cfg := e.config()
	cfg.Publisher = pub
	cfg.RemixOf = "source-doc"
	s := mustSession(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _ = s.AddNote(ctx, "edit after handler returned")

	waitFor(t, func() bool { return s.AutoSaveState() == autosave.Fired })
	if pub.callCount() != 1 {
		t.Errorf("publish calls = %d, want 1", pub.callCount())
	}
}

func TestRemixPublishFailureRetries(t *testing.T) {
	e := newEnv()
	e.pub.fail = true
	cfg := e.config()
	cfg.RemixOf = "source-doc"
	s := mustSession(t, cfg)

	_, _ = s.AddNote(context.Background(), "edit during outage")
	waitFor(t, func() bool { return e.pub.callCount() == 1 })
	waitFor(t, func() bool { return s.AutoSaveState() == autosave.Armed })

	// The local mutation survived the failed publish.
	if len(s.Blocks()) != 1 {
		t.Error("mutation rolled back on publish failure")
	}

	e.pub.mu.Lock()
	e.pub.fail = false
	e.pub.mu.Unlock()

	waitFor(t, func() bool {
		_, _ = s.AddNote(context.Background(), "retry edit")
		return s.AutoSaveState() == autosave.Fired
	})
}

func TestNonRemixNeverAutoPublishes(t *testing.T) {
	e := newEnv()
	s := mustSession(t, e.config())
	for i := 0; i < 3; i++ {
		_, _ = s.AddNote(context.Background(), "edit")
	}
	time.Sleep(30 * time.Millisecond)
	if e.pub.callCount() != 0 {
		t.Errorf("publish calls = %d, want 0", e.pub.callCount())
	}
}

func TestSetNameDoesNotAutoPublish(t *testing.T) {
	e := newEnv()
	cfg := e.config()
	cfg.RemixOf = "source-doc"
	s := mustSession(t, cfg)

	s.SetName("renamed")
	time.Sleep(30 * time.Millisecond)
	if s.AutoSaveState() != autosave.Armed {
		t.Error("rename triggered the auto publish")
	}
}

func TestExportFormats(t *testing.T) {
	s := mustSession(t, newEnv().config())
	ctx := context.Background()
	_, _ = s.AddNote(ctx, "A")
	_, _ = s.AddSource(ctx, models.Extraction{SourceURL: "https://x", Title: "B", Body: "C"})

	md, err := s.Export(FormatMarkdown)
	if err != nil {
		t.Fatalf("Export markdown: %v", err)
	}
	if md != "A\n\n---\n\n# B\n\nSource: https://x\n\nC" {
		t.Errorf("markdown = %q", md)
	}

	if _, err := s.Export(FormatXML); err != nil {
		t.Errorf("Export xml: %v", err)
	}
	if _, err := s.Export(FormatJSON); err != nil {
		t.Errorf("Export json: %v", err)
	}
	if _, err := s.Export("yaml"); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("unknown format err = %v", err)
	}
}

func TestTokenEstimate(t *testing.T) {
	s := mustSession(t, newEnv().config())
	if got := s.TokenEstimate(); got != 0 {
		t.Errorf("empty estimate = %d", got)
	}
	_, _ = s.AddNote(context.Background(), "some words to count")
	if got := s.TokenEstimate(); got < 1 {
		t.Errorf("estimate = %d, want >= 1", got)
	}
}

func serializedRemix() []models.Block {
	return []models.Block{{
		ID:   blockstore.NewID(),
		Kind: models.KindNote,
		Body: "remixed content",
	}}
}
