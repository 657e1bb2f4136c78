// Package models defines the domain types for ctxt.
package models

import "time"

// BlockKind distinguishes fetched source fragments from free-form notes.
type BlockKind string

// Block kinds.
const (
	KindSource BlockKind = "source"
	KindNote   BlockKind = "note"
)

// Block is one content fragment in a context stack.
type Block struct {
	ID       string    `json:"id"`
	Kind     BlockKind `json:"kind"`
	Title    string    `json:"title,omitempty"`
	Origin   string    `json:"origin,omitempty"` // source URL; set iff Kind == KindSource
	Body     string    `json:"body"`
	Position int       `json:"position"`
}

// IdentityKey returns the secondary identity used for merge de-duplication.
// Externally produced candidates get a fresh ID each time they are emitted,
// so duplicates are recognised by (origin, title) instead.
func (b Block) IdentityKey() string {
	return b.Origin + "|" + b.Title
}

// DocumentMeta carries session-scoped metadata for the active stack.
type DocumentMeta struct {
	Name          string    `json:"name"`
	CreatedAt     time.Time `json:"created_at"`
	RemixOf       string    `json:"remix_of,omitempty"` // permanent id this session derives from
	AutoPublished bool      `json:"auto_published"`
	PublishedID   string    `json:"published_id,omitempty"`
}

// Snapshot is the durable draft representation of a session.
type Snapshot struct {
	Blocks  []Block   `json:"blocks"`
	Name    string    `json:"name"`
	SavedAt time.Time `json:"saved_at"`
}

// PublishedStack is a permanently stored, shareable document.
type PublishedStack struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	Content   string    `json:"content"` // flattened markdown
	UseCount  int       `json:"use_count"`
	CreatedAt time.Time `json:"created_at"`
}

// Extraction is the cleaned result of fetching a remote page.
type Extraction struct {
	SourceURL   string `json:"source_url"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	Description string `json:"description,omitempty"`
}
