package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/nibzard/ctxt/internal/models"
)

// AddBlockRequest is the request body for adding a block. Either URL is set
// (a source block is fetched and extracted) or Kind/Body describe the block
// directly.
type AddBlockRequest struct {
	URL    string `json:"url,omitempty"`
	Kind   string `json:"kind,omitempty"`
	Title  string `json:"title,omitempty"`
	Origin string `json:"origin,omitempty"`
	Body   string `json:"body,omitempty"`
}

// Validate checks the request shape.
func (r AddBlockRequest) Validate() error {
	if r.URL != "" {
		return nil
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.Kind, validation.Required,
			validation.In(string(models.KindSource), string(models.KindNote))),
		validation.Field(&r.Body, validation.Required.When(r.Kind == string(models.KindNote))),
		validation.Field(&r.Origin, validation.Required.When(r.Kind == string(models.KindSource))),
	)
}

// UpdateBlockRequest carries a partial block update; nil fields are left
// untouched.
type UpdateBlockRequest struct {
	Title  *string `json:"title,omitempty"`
	Origin *string `json:"origin,omitempty"`
	Body   *string `json:"body,omitempty"`
}

// MoveRequest reorders the collection.
type MoveRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// RenameRequest sets the document name.
type RenameRequest struct {
	Name string `json:"name"`
}

// ConvertRequest asks for a URL extraction.
type ConvertRequest struct {
	URL string `json:"url"`
}

// Validate checks the conversion request.
func (r ConvertRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.URL, validation.Required),
	)
}

// StackResponse is the full state of the active session.
type StackResponse struct {
	Name          string         `json:"name"`
	Blocks        []models.Block `json:"blocks"`
	TokenEstimate int            `json:"token_estimate"`
	RemixOf       string         `json:"remix_of,omitempty"`
	AutoPublished bool           `json:"auto_published"`
	PublishedID   string         `json:"published_id,omitempty"`
}

// ConvertResponse is the extraction result plus its token cost.
type ConvertResponse struct {
	models.Extraction
	TokenEstimate int `json:"token_estimate"`
}

// PublishResponse returns the permanent identifier of a published stack.
type PublishResponse struct {
	ID string `json:"id"`
}

// PublishedListItem is a lightweight published-stack listing entry.
type PublishedListItem struct {
	ID        string `json:"id"`
	Slug      string `json:"slug"`
	Name      string `json:"name"`
	UseCount  int    `json:"use_count"`
	CreatedAt string `json:"created_at"`
}
