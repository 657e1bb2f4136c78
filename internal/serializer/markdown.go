// Package serializer converts a block collection to its export encodings.
// Flattened markdown is the canonical storage form and the only encoding
// with a decoder; encoder and decoder are a pair and must change together.
package serializer

import (
	"regexp"
	"strings"

	"github.com/nibzard/ctxt/internal/blockstore"
	"github.com/nibzard/ctxt/internal/models"
)

// Separator joins blocks in the flattened markdown form.
const Separator = "\n\n---\n\n"

// titledSectionRe matches the encoding of a source block: a heading line,
// a blank line, the attribution line, and optionally the remaining body.
var titledSectionRe = regexp.MustCompile(`(?s)^# ([^\n]+)\n\nSource: (\S+)(?:\n\n(.*))?$`)

// EncodeMarkdown renders blocks, ordered by position, into the flattened
// markdown storage form.
func EncodeMarkdown(blocks []models.Block) string {
	sections := make([]string, 0, len(blocks))
	for _, b := range sorted(blocks) {
		sections = append(sections, encodeSection(b))
	}
	return strings.Join(sections, Separator)
}

func encodeSection(b models.Block) string {
	if b.Kind != models.KindSource {
		return b.Body
	}
	var sb strings.Builder
	sb.WriteString("# ")
	sb.WriteString(b.Title)
	sb.WriteString("\n\nSource: ")
	sb.WriteString(b.Origin)
	if b.Body != "" {
		sb.WriteString("\n\n")
		sb.WriteString(b.Body)
	}
	return sb.String()
}

// DecodeMarkdown parses flattened markdown back into a block collection.
// Sections matching the titled-section pattern become source blocks; all
// other non-empty sections become notes verbatim. Decoded blocks receive
// fresh ids: identity is not preserved across a round trip, only content
// and order.
//
// Known lossy edges: a note whose body itself starts with a heading followed
// by an attribution-shaped line decodes as a source block, and a note body
// containing the literal block separator splits into multiple blocks.
func DecodeMarkdown(flattened string) []models.Block {
	if strings.TrimSpace(flattened) == "" {
		return nil
	}
	var out []models.Block
	for _, section := range strings.Split(flattened, Separator) {
		if strings.TrimSpace(section) == "" {
			continue
		}
		out = blockstore.Append(out, decodeSection(section))
	}
	return out
}

func decodeSection(section string) models.Block {
	if m := titledSectionRe.FindStringSubmatch(section); m != nil {
		return models.Block{
			ID:     blockstore.NewID(),
			Kind:   models.KindSource,
			Title:  m[1],
			Origin: m[2],
			Body:   m[3],
		}
	}
	return models.Block{
		ID:   blockstore.NewID(),
		Kind: models.KindNote,
		Body: section,
	}
}

// sorted returns blocks ordered by position without mutating the input.
func sorted(blocks []models.Block) []models.Block {
	out := make([]models.Block, len(blocks))
	copy(out, blocks)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Position < out[j-1].Position; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
