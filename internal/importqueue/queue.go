// Package importqueue gives typed access to the shared import queue.
//
// The queue is durable storage written by other processes (batch converts,
// other sessions), so every entry is treated as untrusted input: malformed
// entries are skipped on read rather than propagated into the collection.
package importqueue

import (
	"encoding/json"
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/nibzard/ctxt/internal/kvstore"
	"github.com/nibzard/ctxt/internal/models"
)

// Entry is the wire shape of a queued candidate block.
type Entry struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Title  string `json:"title,omitempty"`
	Origin string `json:"origin,omitempty"`
	Body   string `json:"body"`
}

// Validate checks the schema of an externally produced entry.
func (e Entry) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.ID, validation.Required),
		validation.Field(&e.Kind, validation.Required,
			validation.In(string(models.KindSource), string(models.KindNote))),
		validation.Field(&e.Origin,
			validation.When(e.Kind == string(models.KindSource), validation.Required, is.URL)),
		validation.Field(&e.Body, validation.Required.When(e.Kind == string(models.KindNote))),
	)
}

// Queue reads and writes the shared import queue.
type Queue struct {
	kv     kvstore.Store
	logger *slog.Logger
}

// New creates a queue over the given store.
func New(kv kvstore.Store, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{kv: kv, logger: logger}
}

// Pending reports whether any entries are queued without consuming them.
func (q *Queue) Pending() (bool, error) {
	entries, err := q.Read()
	if err != nil {
		return false, err
	}
	return len(entries) > 0, nil
}

// Read returns the queued candidates in order, skipping entries that fail
// schema validation.
func (q *Queue) Read() ([]models.Block, error) {
	data, ok, err := q.kv.Get(kvstore.KeyImportQueue)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var raw []Entry
	if err := json.Unmarshal(data, &raw); err != nil {
		q.logger.Warn("import queue unreadable, dropping",
			slog.String("error", err.Error()))
		return nil, nil
	}

	var out []models.Block
	for _, e := range raw {
		if err := e.Validate(); err != nil {
			q.logger.Warn("skipping malformed queue entry",
				slog.String("id", e.ID),
				slog.String("error", err.Error()))
			continue
		}
		out = append(out, models.Block{
			ID:     e.ID,
			Kind:   models.BlockKind(e.Kind),
			Title:  e.Title,
			Origin: e.Origin,
			Body:   e.Body,
		})
	}
	return out, nil
}

// Enqueue appends entries to the queue.
func (q *Queue) Enqueue(entries ...Entry) error {
	data, ok, err := q.kv.Get(kvstore.KeyImportQueue)
	if err != nil {
		return err
	}
	var existing []Entry
	if ok {
		_ = json.Unmarshal(data, &existing)
	}
	existing = append(existing, entries...)
	payload, err := json.Marshal(existing)
	if err != nil {
		return fmt.Errorf("importqueue: marshal: %w", err)
	}
	return q.kv.Set(kvstore.KeyImportQueue, payload)
}

// Clear removes the queue.
func (q *Queue) Clear() error {
	return q.kv.Delete(kvstore.KeyImportQueue)
}

// WatchPath returns the file backing the queue, or "" when the store is not
// file-backed.
func (q *Queue) WatchPath() string {
	return q.kv.Path(kvstore.KeyImportQueue)
}
