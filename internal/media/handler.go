package media

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pixedge/service/internal/response"
	"github.com/pixedge/service/internal/storage"
)

// Handler serves stored media and record metadata.
type Handler struct {
	repo  *Repository
	store storage.Store
}

// NewHandler creates a new media Handler.
func NewHandler(repo *Repository, store storage.Store) *Handler {
	return &Handler{repo: repo, store: store}
}

// Serve streams the stored bytes for a slug. A file extension on the path
// is accepted and stripped so direct links like /i/abc123.jpg work.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if idx := strings.IndexByte(id, '.'); idx != -1 {
		id = id[:idx]
	}

	rec, err := h.repo.Get(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		log.Printf("media: get record %s: %v", id, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	body, contentType, err := h.store.Fetch(r.Context(), rec.FileID)
	if err != nil {
		log.Printf("media: fetch file for %s: %v", id, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	defer body.Close()

	if rec.Type != "" {
		contentType = rec.Type
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	if _, err := io.Copy(w, body); err != nil {
		log.Printf("media: stream %s: %v", id, err)
	}
}

// Info godoc
//
//	@Summary		Media info
//	@Description	Return the stored metadata for a media record.
//	@Tags			media
//	@Produce		json
//	@Param			id	path		string	true	"Media ID"
//	@Success		200	{object}	response.Envelope{data=Record}
//	@Failure		404	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/info/{id} [get]
func (h *Handler) Info(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.repo.Get(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(w, "media not found")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, rec)
}

// Stats godoc
//
//	@Summary		Service stats
//	@Description	Return aggregate upload counters.
//	@Tags			media
//	@Produce		json
//	@Success		200	{object}	response.Envelope{data=Stats}
//	@Failure		500	{object}	response.Envelope
//	@Router			/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.repo.GetStats(r.Context())
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, stats)
}
