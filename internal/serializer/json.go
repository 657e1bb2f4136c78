package serializer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nibzard/ctxt/internal/models"
)

// jsonExport is the JSON export envelope with stable field names.
type jsonExport struct {
	Name       string         `json:"name"`
	Blocks     []models.Block `json:"blocks"`
	ExportedAt time.Time      `json:"exported_at"`
}

// EncodeJSON renders blocks as a pretty-printed JSON document.
func EncodeJSON(name string, blocks []models.Block, now time.Time) (string, error) {
	ordered := sorted(blocks)
	if ordered == nil {
		ordered = []models.Block{}
	}
	out, err := json.MarshalIndent(jsonExport{
		Name:       name,
		Blocks:     ordered,
		ExportedAt: now.UTC(),
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("serializer: encode json: %w", err)
	}
	return string(out), nil
}
