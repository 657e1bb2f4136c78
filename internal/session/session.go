// Package session owns the live context stack for one editing session and
// coordinates the draft mirror, import reconciliation, and the remix
// auto-publish machine around every mutation.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nibzard/ctxt/internal/apperr"
	"github.com/nibzard/ctxt/internal/autosave"
	"github.com/nibzard/ctxt/internal/blockstore"
	"github.com/nibzard/ctxt/internal/draft"
	"github.com/nibzard/ctxt/internal/importqueue"
	"github.com/nibzard/ctxt/internal/models"
	"github.com/nibzard/ctxt/internal/reconciler"
	"github.com/nibzard/ctxt/internal/serializer"
	"github.com/nibzard/ctxt/internal/tokencount"
)

// Export formats.
const (
	FormatMarkdown = "markdown"
	FormatXML      = "xml"
	FormatJSON     = "json"
)

// Config assembles a session's collaborators and initial state.
type Config struct {
	Drafts     *draft.Store
	Queue      *importqueue.Queue
	Reconciler *reconciler.Reconciler
	Publisher  autosave.Publisher
	Logger     *slog.Logger

	// InitialBlocks seeds the collection directly and takes priority over
	// both the pending import batch and the stored draft.
	InitialBlocks []models.Block
	Name          string
	// RemixOf is the permanent id of the published document this session
	// derives from. A non-empty value arms the auto-publish machine.
	RemixOf string
}

// Session is the single owner of a block collection. All entry points are
// serialized through one mutex; asynchronous completions (import checks,
// publish results) go through the same lock.
type Session struct {
	mu     sync.Mutex
	blocks []models.Block
	meta   models.DocumentMeta

	drafts *draft.Store
	rec    *reconciler.Reconciler
	auto   *autosave.Coordinator
	pub    autosave.Publisher
	logger *slog.Logger
}

// New initializes a session. Restoration order: caller-supplied blocks win,
// then a pending import batch suppresses draft restore, then the draft.
func New(cfg Config) (*Session, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		meta: models.DocumentMeta{
			Name:      cfg.Name,
			CreatedAt: time.Now().UTC(),
			RemixOf:   cfg.RemixOf,
		},
		drafts: cfg.Drafts,
		rec:    cfg.Reconciler,
		auto:   autosave.New(cfg.Publisher, cfg.RemixOf != "", logger),
		pub:    cfg.Publisher,
		logger: logger,
	}

	switch {
	case len(cfg.InitialBlocks) > 0:
		blocks := make([]models.Block, 0, len(cfg.InitialBlocks))
		for _, b := range cfg.InitialBlocks {
			if b.ID == "" {
				b.ID = blockstore.NewID()
			}
			blocks = blockstore.Append(blocks, b)
		}
		s.blocks = blocks

	default:
		pending := false
		if cfg.Queue != nil {
			var err error
			pending, err = cfg.Queue.Pending()
			if err != nil {
				return nil, fmt.Errorf("session: check import queue: %w", err)
			}
		}
		if pending {
			logger.Info("pending import batch, skipping draft restore")
			break
		}
		if s.drafts != nil {
			snap, err := s.drafts.Restore()
			if err != nil {
				logger.Warn("draft restore failed", slog.String("error", err.Error()))
			} else if snap != nil {
				s.blocks = blockstore.Renumber(snap.Blocks)
				if s.meta.Name == "" {
					s.meta.Name = snap.Name
				}
				logger.Info("draft restored", slog.Int("blocks", len(s.blocks)))
			}
		}
	}

	// Fold any externally queued blocks into the fresh collection before
	// the first caller sees it.
	if accepted, err := s.ReconcileImports(); err != nil {
		logger.Warn("startup import merge failed", slog.String("error", err.Error()))
	} else if accepted > 0 {
		logger.Info("startup imports merged", slog.Int("accepted", accepted))
	}

	return s, nil
}

// StartRemix replaces the session contents with a published document's
// blocks and re-arms the auto-publish machine for the derived copy.
func (s *Session) StartRemix(blocks []models.Block, name, remixOf string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	normalized := make([]models.Block, 0, len(blocks))
	for _, b := range blocks {
		if b.ID == "" {
			b.ID = blockstore.NewID()
		}
		normalized = blockstore.Append(normalized, b)
	}
	s.blocks = normalized
	s.meta = models.DocumentMeta{
		Name:      name,
		CreatedAt: time.Now().UTC(),
		RemixOf:   remixOf,
	}
	s.auto = autosave.New(s.pub, true, s.logger)
	s.saveDraft()
}

// Blocks returns a copy of the collection ordered by position.
func (s *Session) Blocks() []models.Block {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Block, len(s.blocks))
	copy(out, s.blocks)
	return out
}

// Meta returns the current document metadata.
func (s *Session) Meta() models.DocumentMeta {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta
}

// AutoSaveState exposes the coordinator state for introspection.
func (s *Session) AutoSaveState() autosave.State {
	return s.auto.State()
}

// AddNote appends a free-form note block.
func (s *Session) AddNote(ctx context.Context, body string) (models.Block, error) {
	if strings.TrimSpace(body) == "" {
		return models.Block{}, fmt.Errorf("%w: empty note body", apperr.ErrInvalidInput)
	}
	b := models.Block{
		ID:   blockstore.NewID(),
		Kind: models.KindNote,
		Body: body,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks = blockstore.Append(s.blocks, b)
	s.afterMutation(ctx)
	return s.blocks[len(s.blocks)-1], nil
}

// AddSource appends a source block built from an extraction result.
func (s *Session) AddSource(ctx context.Context, ex models.Extraction) (models.Block, error) {
	if ex.SourceURL == "" {
		return models.Block{}, fmt.Errorf("%w: extraction without source url", apperr.ErrInvalidInput)
	}
	b := models.Block{
		ID:     blockstore.NewID(),
		Kind:   models.KindSource,
		Title:  ex.Title,
		Origin: ex.SourceURL,
		Body:   ex.Body,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks = blockstore.Append(s.blocks, b)
	s.afterMutation(ctx)
	return s.blocks[len(s.blocks)-1], nil
}

// Remove deletes a block by id.
func (s *Session) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.has(id) {
		return apperr.ErrNotFound
	}
	s.blocks = blockstore.Remove(s.blocks, id)
	s.afterMutation(ctx)
	return nil
}

// Move reorders the collection. Bounds are validated here so the store's
// silent-identity behaviour is never reachable with bad input.
func (s *Session) Move(ctx context.Context, from, to int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.blocks)
	if from < 0 || from >= n || to < 0 || to >= n {
		return fmt.Errorf("%w: move %d -> %d with %d blocks", apperr.ErrInvalidInput, from, to, n)
	}
	if from == to {
		return nil
	}
	s.blocks = blockstore.Move(s.blocks, from, to)
	s.afterMutation(ctx)
	return nil
}

// Update merges partial fields into a block.
func (s *Session) Update(ctx context.Context, id string, upd blockstore.Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.has(id) {
		return apperr.ErrNotFound
	}
	s.blocks = blockstore.Apply(s.blocks, id, upd)
	s.afterMutation(ctx)
	return nil
}

// Duplicate clones a block by id.
func (s *Session) Duplicate(ctx context.Context, id string) (models.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.blocks {
		if b.ID == id {
			s.blocks = blockstore.Duplicate(s.blocks, b)
			s.afterMutation(ctx)
			return s.blocks[len(s.blocks)-1], nil
		}
	}
	return models.Block{}, apperr.ErrNotFound
}

// SetName renames the document. The draft follows, but a rename is not a
// structural collection mutation and never triggers the auto-publish.
func (s *Session) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta.Name = name
	s.saveDraft()
}

// ReconcileImports folds the pending import batch into the collection.
// Accepted blocks update the draft; the merge does not count as a user
// mutation for the auto-publish machine.
func (s *Session) ReconcileImports() (int, error) {
	if s.rec == nil {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	merged, accepted, err := s.rec.Merge(s.blocks)
	if err != nil {
		return 0, err
	}
	s.blocks = merged
	if accepted > 0 {
		s.saveDraft()
	}
	return accepted, nil
}

// Export renders the collection in the requested format.
func (s *Session) Export(format string) (string, error) {
	s.mu.Lock()
	blocks := make([]models.Block, len(s.blocks))
	copy(blocks, s.blocks)
	name := s.meta.Name
	s.mu.Unlock()

	switch format {
	case FormatMarkdown, "":
		return serializer.EncodeMarkdown(blocks), nil
	case FormatXML:
		return serializer.EncodeXML(name, blocks), nil
	case FormatJSON:
		return serializer.EncodeJSON(name, blocks, time.Now())
	default:
		return "", fmt.Errorf("%w: unknown export format %q", apperr.ErrInvalidInput, format)
	}
}

// TokenEstimate approximates the token cost of the full flattened stack.
func (s *Session) TokenEstimate() int {
	s.mu.Lock()
	blocks := make([]models.Block, len(s.blocks))
	copy(blocks, s.blocks)
	s.mu.Unlock()
	return tokencount.Estimate(serializer.EncodeMarkdown(blocks))
}

// Publish persists the stack remotely on demand and records the permanent id.
func (s *Session) Publish(ctx context.Context, pub autosave.Publisher) (string, error) {
	s.mu.Lock()
	name := s.meta.Name
	flattened := serializer.EncodeMarkdown(s.blocks)
	s.mu.Unlock()

	id, err := pub.Publish(ctx, name, flattened)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.meta.PublishedID = id
	s.mu.Unlock()
	return id, nil
}

// afterMutation mirrors the collection to the draft and evaluates the
// auto-publish machine. Caller holds s.mu.
func (s *Session) afterMutation(ctx context.Context) {
	s.saveDraft()

	name := s.meta.Name
	flattened := serializer.EncodeMarkdown(s.blocks)
	// The publish must outlive the caller's request; detach cancellation.
	s.auto.OnMutation(context.WithoutCancel(ctx), name, flattened, func(id string) {
		s.mu.Lock()
		defer s.mu.Unlock()
		// The session now owns an independent document, not a remix.
		s.meta.AutoPublished = true
		s.meta.PublishedID = id
		s.meta.RemixOf = ""
	})
}

// saveDraft writes the draft snapshot. Caller holds s.mu. A failed write is
// recoverable; the in-memory collection is already updated.
func (s *Session) saveDraft() {
	if s.drafts == nil {
		return
	}
	if err := s.drafts.Save(s.blocks, s.meta.Name); err != nil {
		s.logger.Warn("draft save failed", slog.String("error", err.Error()))
	}
}

func (s *Session) has(id string) bool {
	for _, b := range s.blocks {
		if b.ID == id {
			return true
		}
	}
	return false
}
