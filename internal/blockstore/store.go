// Package blockstore implements the ordered block collection and its
// mutation operations. Every operation returns a new slice and re-derives
// the dense 0..n-1 position sequence; the input is never mutated.
package blockstore

import (
	"github.com/google/uuid"

	"github.com/nibzard/ctxt/internal/models"
)

// CopySuffix is appended to the title of a duplicated block.
const CopySuffix = " (copy)"

// NewID returns a fresh block identifier.
func NewID() string {
	return uuid.NewString()
}

// Renumber returns a copy of blocks with positions rewritten to 0..n-1 in
// the current slice order.
func Renumber(blocks []models.Block) []models.Block {
	out := make([]models.Block, len(blocks))
	copy(out, blocks)
	for i := range out {
		out[i].Position = i
	}
	return out
}

// Append adds block at the end of the collection.
func Append(blocks []models.Block, b models.Block) []models.Block {
	b.Position = len(blocks)
	out := make([]models.Block, 0, len(blocks)+1)
	out = append(out, blocks...)
	out = append(out, b)
	return out
}

// Remove deletes the block with the given id and restores contiguity.
// Unknown ids leave the collection unchanged.
func Remove(blocks []models.Block, id string) []models.Block {
	out := make([]models.Block, 0, len(blocks))
	for _, b := range blocks {
		if b.ID == id {
			continue
		}
		out = append(out, b)
	}
	if len(out) == len(blocks) {
		return blocks
	}
	return Renumber(out)
}

// Move removes the block at from and reinserts it at to in the remaining
// sequence. Equal or out-of-bounds indices return the collection unchanged;
// bounds are a caller precondition, not a recoverable error.
func Move(blocks []models.Block, from, to int) []models.Block {
	n := len(blocks)
	if from == to || from < 0 || from >= n || to < 0 || to >= n {
		return blocks
	}
	out := make([]models.Block, 0, n)
	out = append(out, blocks...)
	moved := out[from]
	out = append(out[:from], out[from+1:]...)
	rest := make([]models.Block, 0, n)
	rest = append(rest, out[:to]...)
	rest = append(rest, moved)
	rest = append(rest, out[to:]...)
	return Renumber(rest)
}

// Update describes a partial field merge for a block. Nil fields are left
// untouched; id and position are immutable through this path.
type Update struct {
	Title  *string
	Origin *string
	Body   *string
}

// Apply merges upd into the block with the given id.
func Apply(blocks []models.Block, id string, upd Update) []models.Block {
	out := make([]models.Block, len(blocks))
	copy(out, blocks)
	for i := range out {
		if out[i].ID != id {
			continue
		}
		if upd.Title != nil {
			out[i].Title = *upd.Title
		}
		if upd.Origin != nil {
			out[i].Origin = *upd.Origin
		}
		if upd.Body != nil {
			out[i].Body = *upd.Body
		}
		break
	}
	return out
}

// Duplicate clones src with a fresh id, appends the clone at the end, and
// marks a titled clone as a copy.
func Duplicate(blocks []models.Block, src models.Block) []models.Block {
	clone := src
	clone.ID = NewID()
	if clone.Title != "" {
		clone.Title += CopySuffix
	}
	return Append(blocks, clone)
}
