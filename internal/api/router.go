package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/noteml/internal/noteservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *noteservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Notes CRUD.
	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Get("/notes/*", h.GetNote)
	r.Put("/notes/*", h.UpdateNote)
	r.Delete("/notes/*", h.DeleteNote)
	r.Post("/move/*", h.MoveNote)

	// Rendering.
	r.Get("/render/*", h.RenderNote)

	// Resources and reconciliation.
	r.Post("/resources/*", h.AddResource)
	r.Put("/resources/*", h.UpdateResources)
	r.Delete("/resources/*", h.DeleteResources)
	r.Post("/sync/*", h.SyncResources)
	r.Get("/integrity", h.BrokenNotes)
	r.Get("/integrity/*", h.Integrity)
	r.Get("/attachments/{hash}", h.ServeAttachment)
	r.Get("/attachments/{hash}/notes", h.AttachmentUsers)

	// Search.
	r.Get("/search", h.Search)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
