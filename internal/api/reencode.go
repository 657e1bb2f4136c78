package api

import (
	"fmt"
	"time"

	"github.com/nibzard/ctxt/internal/apperr"
	"github.com/nibzard/ctxt/internal/serializer"
	"github.com/nibzard/ctxt/internal/session"
)

// reencode renders stored flattened markdown in another export format by
// running it back through the decoder.
func reencode(name, flattened, format string) (string, error) {
	blocks := serializer.DecodeMarkdown(flattened)
	switch format {
	case session.FormatXML:
		return serializer.EncodeXML(name, blocks), nil
	case session.FormatJSON:
		return serializer.EncodeJSON(name, blocks, time.Now())
	default:
		return "", fmt.Errorf("%w: unknown export format %q", apperr.ErrInvalidInput, format)
	}
}
