package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/nibzard/ctxt/internal/extract"
	"github.com/nibzard/ctxt/internal/published"
	"github.com/nibzard/ctxt/internal/session"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
func NewRouter(sess *session.Session, repo *published.Repo, extractor *extract.Client, authEnabled bool, token string) chi.Router {
	h := NewHandler(sess, repo, extractor)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Active session stack.
	r.Get("/stack", h.GetStack)
	r.Put("/stack/name", h.Rename)
	r.Post("/stack/blocks", h.AddBlock)
	r.Patch("/stack/blocks/{id}", h.UpdateBlock)
	r.Delete("/stack/blocks/{id}", h.RemoveBlock)
	r.Post("/stack/blocks/{id}/duplicate", h.DuplicateBlock)
	r.Post("/stack/move", h.MoveBlock)
	r.Get("/stack/export", h.Export)
	r.Post("/stack/publish", h.Publish)

	// Published stacks.
	r.Get("/stacks", h.ListPublished)
	r.Get("/stacks/{id}", h.GetPublished)
	r.Post("/stacks/{id}/remix", h.Remix)

	// URL conversion.
	r.Post("/convert", h.Convert)

	return r
}
