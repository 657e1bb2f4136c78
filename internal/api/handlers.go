package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nibzard/ctxt/internal/apperr"
	"github.com/nibzard/ctxt/internal/blockstore"
	"github.com/nibzard/ctxt/internal/extract"
	"github.com/nibzard/ctxt/internal/models"
	"github.com/nibzard/ctxt/internal/published"
	"github.com/nibzard/ctxt/internal/serializer"
	"github.com/nibzard/ctxt/internal/session"
	"github.com/nibzard/ctxt/internal/tokencount"
)

// Handler holds API route handlers.
type Handler struct {
	sess      *session.Session
	repo      *published.Repo
	extractor *extract.Client
}

// NewHandler creates a new Handler.
func NewHandler(sess *session.Session, repo *published.Repo, extractor *extract.Client) *Handler {
	return &Handler{sess: sess, repo: repo, extractor: extractor}
}

// GetStack handles GET /stack.
func (h *Handler) GetStack(w http.ResponseWriter, _ *http.Request) {
	meta := h.sess.Meta()
	blocks := h.sess.Blocks()
	if blocks == nil {
		blocks = []models.Block{}
	}
	writeJSON(w, http.StatusOK, StackResponse{
		Name:          meta.Name,
		Blocks:        blocks,
		TokenEstimate: h.sess.TokenEstimate(),
		RemixOf:       meta.RemixOf,
		AutoPublished: meta.AutoPublished,
		PublishedID:   meta.PublishedID,
	})
}

// Rename handles PUT /stack/name.
func (h *Handler) Rename(w http.ResponseWriter, r *http.Request) {
	var req RenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json"))
		return
	}
	h.sess.SetName(req.Name)
	w.WriteHeader(http.StatusNoContent)
}

// AddBlock handles POST /stack/blocks.
func (h *Handler) AddBlock(w http.ResponseWriter, r *http.Request) {
	var req AddBlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	var (
		block models.Block
		err   error
	)
	switch {
	case req.URL != "":
		var ex *models.Extraction
		ex, err = h.extractor.Fetch(r.Context(), req.URL)
		if err != nil {
			status := http.StatusBadGateway
			if errors.Is(err, apperr.ErrInvalidInput) {
				status = http.StatusBadRequest
			}
			writeJSON(w, status, errorBody(err.Error()))
			return
		}
		block, err = h.sess.AddSource(r.Context(), *ex)

	case req.Kind == string(models.KindSource):
		block, err = h.sess.AddSource(r.Context(), models.Extraction{
			SourceURL: req.Origin,
			Title:     req.Title,
			Body:      req.Body,
		})

	default:
		block, err = h.sess.AddNote(r.Context(), req.Body)
	}

	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, block)
}

// UpdateBlock handles PATCH /stack/blocks/{id}.
func (h *Handler) UpdateBlock(w http.ResponseWriter, r *http.Request) {
	var req UpdateBlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json"))
		return
	}
	id := chi.URLParam(r, "id")
	err := h.sess.Update(r.Context(), id, blockstore.Update{
		Title:  req.Title,
		Origin: req.Origin,
		Body:   req.Body,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveBlock handles DELETE /stack/blocks/{id}.
func (h *Handler) RemoveBlock(w http.ResponseWriter, r *http.Request) {
	if err := h.sess.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DuplicateBlock handles POST /stack/blocks/{id}/duplicate.
func (h *Handler) DuplicateBlock(w http.ResponseWriter, r *http.Request) {
	block, err := h.sess.Duplicate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, block)
}

// MoveBlock handles POST /stack/move.
func (h *Handler) MoveBlock(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json"))
		return
	}
	if err := h.sess.Move(r.Context(), req.From, req.To); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Export handles GET /stack/export?format=markdown|xml|json.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	out, err := h.sess.Export(format)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"content":     out,
		"format":      formatOrDefault(format),
		"exported_at": time.Now().UTC().Format(time.RFC3339),
	})
}

// Publish handles POST /stack/publish.
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	id, err := h.sess.Publish(r.Context(), h.repo)
	if err != nil {
		slog.Error("publish failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody("publish failed"))
		return
	}
	writeJSON(w, http.StatusCreated, PublishResponse{ID: id})
}

// ListPublished handles GET /stacks.
func (h *Handler) ListPublished(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	stacks, err := h.repo.List(r.Context(), limit)
	if err != nil {
		slog.Error("list published failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	items := make([]PublishedListItem, len(stacks))
	for i, s := range stacks {
		items[i] = PublishedListItem{
			ID:        s.ID,
			Slug:      s.Slug,
			Name:      s.Name,
			UseCount:  s.UseCount,
			CreatedAt: s.CreatedAt.UTC().Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"stacks": items})
}

// GetPublished handles GET /stacks/{id}. The optional format parameter
// re-renders the stored flattened markdown through the decoder.
func (h *Handler) GetPublished(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	_ = h.repo.IncrementUseCount(r.Context(), s.ID)

	format := r.URL.Query().Get("format")
	content := s.Content
	if format != "" && format != session.FormatMarkdown {
		content, err = reencode(s.Name, s.Content, format)
		if err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":      s.ID,
		"slug":    s.Slug,
		"name":    s.Name,
		"content": content,
		"format":  formatOrDefault(format),
	})
}

// Remix handles POST /stacks/{id}/remix. The published stack's flattened
// markdown is decoded into the session as a derived copy, arming the
// auto-publish machine.
func (h *Handler) Remix(w http.ResponseWriter, r *http.Request) {
	s, err := h.repo.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	h.sess.StartRemix(serializer.DecodeMarkdown(s.Content), s.Name, s.ID)

	meta := h.sess.Meta()
	writeJSON(w, http.StatusCreated, StackResponse{
		Name:          meta.Name,
		Blocks:        h.sess.Blocks(),
		TokenEstimate: h.sess.TokenEstimate(),
		RemixOf:       meta.RemixOf,
	})
}

// Convert handles POST /convert.
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	var req ConvertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	ex, err := h.extractor.Fetch(r.Context(), req.URL)
	if err != nil {
		if errors.Is(err, apperr.ErrInvalidInput) {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return
		}
		writeJSON(w, http.StatusBadGateway, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, ConvertResponse{
		Extraction:    *ex,
		TokenEstimate: tokencount.Estimate(ex.Body),
	})
}

func formatOrDefault(format string) string {
	if format == "" {
		return session.FormatMarkdown
	}
	return format
}

// writeError maps domain errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("conflict"))
	default:
		slog.Error("request failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}
