package webhook

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/pixedge/service/internal/middleware"
	"github.com/pixedge/service/internal/response"
)

// Handler holds HTTP handlers for webhook endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a new webhook Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type createWebhookRequest struct {
	URL    string   `json:"url"    example:"https://example.com/hooks/pixedge"`
	Events []string `json:"events" example:"upload"`
	Secret string   `json:"secret,omitempty"`
}

// List godoc
//
//	@Summary		List webhooks
//	@Description	Return all webhooks registered by the authenticated user.
//	@Tags			webhooks
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	response.Envelope{data=[]Webhook}
//	@Failure		401	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/webhooks [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}

	hooks, err := h.svc.ListByUser(r.Context(), p.UserID)
	if err != nil {
		response.InternalError(w)
		return
	}
	if hooks == nil {
		hooks = []*Webhook{}
	}
	response.OK(w, hooks)
}

// Create godoc
//
//	@Summary		Register webhook
//	@Description	Register a webhook URL to be notified on the subscribed events. Unknown events are dropped; at least one valid event is required.
//	@Tags			webhooks
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		createWebhookRequest	true	"Webhook target"
//	@Success		201		{object}	response.Envelope{data=Webhook}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/webhooks [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}

	var req createWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, response.CodeMissingFields, "invalid request body")
		return
	}
	if req.URL == "" {
		response.BadRequest(w, response.CodeMissingFields, "webhook URL is required")
		return
	}
	if u, err := url.Parse(req.URL); err != nil || u.Scheme == "" || u.Host == "" {
		response.BadRequest(w, response.CodeInvalidURL, "invalid webhook URL format")
		return
	}

	events := filterEvents(req.Events)
	if len(events) == 0 {
		response.BadRequest(w, response.CodeInvalidEvents, "at least one valid event is required (upload, delete)")
		return
	}

	var secret *string
	if req.Secret != "" {
		secret = &req.Secret
	}

	wh, err := h.svc.Create(r.Context(), p.UserID, req.URL, events, secret)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.Created(w, wh)
}

// Delete godoc
//
//	@Summary		Delete webhook
//	@Description	Remove a webhook owned by the authenticated user.
//	@Tags			webhooks
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string	true	"Webhook ID"
//	@Success		200	{object}	response.Envelope
//	@Failure		401	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/webhooks/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}

	id := chi.URLParam(r, "id")
	err := h.svc.Delete(r.Context(), id, p.UserID)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(w, "webhook not found")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]bool{"deleted": true})
}

// filterEvents keeps only known event names. An empty input defaults to
// the upload event.
func filterEvents(events []string) []string {
	if len(events) == 0 {
		return []string{EventUpload}
	}
	var out []string
	for _, e := range events {
		for _, valid := range ValidEvents {
			if e == valid {
				out = append(out, e)
				break
			}
		}
	}
	return out
}
