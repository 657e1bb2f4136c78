// Package reconciler folds externally queued candidate blocks into a live
// collection without creating duplicates, even under repeated invocation.
package reconciler

import (
	"log/slog"
	"sync"

	"github.com/nibzard/ctxt/internal/blockstore"
	"github.com/nibzard/ctxt/internal/importqueue"
	"github.com/nibzard/ctxt/internal/models"
)

// Reconciler merges import-queue batches into a collection.
//
// Merge performs read-merge-clear as one atomic step: the queue is shared
// mutable state and the operation would duplicate if two passes consumed the
// same batch concurrently.
type Reconciler struct {
	mu     sync.Mutex
	queue  *importqueue.Queue
	merged map[string]struct{} // candidate ids already folded in this session
	logger *slog.Logger
}

// New creates a reconciler over the given queue.
func New(queue *importqueue.Queue, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		queue:  queue,
		merged: make(map[string]struct{}),
		logger: logger,
	}
}

// Merge folds the pending batch into blocks and returns the merged
// collection plus the number of accepted candidates.
//
// A candidate is accepted iff its id has not been merged before AND no
// existing block matches it on the (origin, title) identity key. Identity
// matching applies only to candidates with a non-empty origin: notes carry
// no origin and keying them on title alone would collapse unrelated notes.
//
// The queue is cleared even when nothing is accepted.
func (r *Reconciler) Merge(blocks []models.Block) ([]models.Block, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	batch, err := r.queue.Read()
	if err != nil {
		return blocks, 0, err
	}
	if len(batch) == 0 {
		return blocks, 0, r.queue.Clear()
	}

	existing := make(map[string]struct{}, len(blocks))
	for _, b := range blocks {
		if b.Origin != "" {
			existing[b.IdentityKey()] = struct{}{}
		}
	}

	out := blocks
	accepted := 0
	for _, cand := range batch {
		if _, seen := r.merged[cand.ID]; seen {
			continue
		}
		if cand.Origin != "" {
			if _, dup := existing[cand.IdentityKey()]; dup {
				// Same external content re-queued under a new id.
				r.merged[cand.ID] = struct{}{}
				continue
			}
			existing[cand.IdentityKey()] = struct{}{}
		}
		out = blockstore.Append(out, cand)
		r.merged[cand.ID] = struct{}{}
		accepted++
	}

	if err := r.queue.Clear(); err != nil {
		return out, accepted, err
	}
	if accepted > 0 {
		r.logger.Info("import batch merged",
			slog.Int("accepted", accepted),
			slog.Int("queued", len(batch)))
	}
	return out, accepted, nil
}
