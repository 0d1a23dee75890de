package apikey

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pixedge/service/internal/middleware"
	"github.com/pixedge/service/internal/response"
)

// Handler holds HTTP handlers for API key endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a new apikey Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type createKeyRequest struct {
	Name      string `json:"name"       example:"ci-uploader"`
	RateLimit int    `json:"rate_limit" example:"100"`
}

type createdKeyData struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Key       string `json:"key"` // returned exactly once
	Prefix    string `json:"prefix"`
	RateLimit int    `json:"rate_limit"`
	CreatedAt string `json:"created_at"`
}

// List godoc
//
//	@Summary		List API keys
//	@Description	Return all API keys belonging to the authenticated user. Raw key material is never included.
//	@Tags			keys
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	response.Envelope{data=[]Key}
//	@Failure		401	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/keys [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}

	keys, err := h.svc.ListByUser(r.Context(), p.UserID)
	if err != nil {
		response.InternalError(w)
		return
	}
	if keys == nil {
		keys = []*Key{}
	}
	response.OK(w, keys)
}

// Create godoc
//
//	@Summary		Create API key
//	@Description	Mint a new API key. The raw key is returned exactly once; store it immediately.
//	@Tags			keys
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		createKeyRequest	true	"Key name and optional rate limit"
//	@Success		201		{object}	response.Envelope{data=createdKeyData}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/keys [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}

	var req createKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, response.CodeMissingFields, "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		response.BadRequest(w, response.CodeMissingFields, "API key name is required")
		return
	}

	raw, key, err := h.svc.Create(r.Context(), p.UserID, req.Name, req.RateLimit)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.Created(w, createdKeyData{
		ID:        key.ID,
		Name:      key.Name,
		Key:       raw,
		Prefix:    key.Prefix,
		RateLimit: key.RateLimit,
		CreatedAt: key.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// Revoke godoc
//
//	@Summary		Revoke API key
//	@Description	Deactivate an API key owned by the authenticated user.
//	@Tags			keys
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string	true	"API key ID"
//	@Success		200	{object}	response.Envelope
//	@Failure		401	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/keys/{id} [delete]
func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}

	id := chi.URLParam(r, "id")
	err := h.svc.Revoke(r.Context(), id, p.UserID)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(w, "api key not found")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]bool{"revoked": true})
}
