// Package upload orchestrates the upload path: identity resolution, rate
// limiting, slug allocation, file transfer, record persistence, and the
// best-effort notifications that follow.
package upload

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/pixedge/service/internal/auth"
	"github.com/pixedge/service/internal/media"
	"github.com/pixedge/service/internal/ratelimit"
	"github.com/pixedge/service/internal/response"
	"github.com/pixedge/service/internal/slug"
	"github.com/pixedge/service/internal/storage"
)

// Notifier posts operational messages to a log channel. Delivery is
// best-effort; errors are logged and dropped.
type Notifier interface {
	SendLog(ctx context.Context, text string) error
}

// IdentityResolver classifies a request into a principal.
type IdentityResolver interface {
	Resolve(r *http.Request) auth.Principal
}

// RecordSaver persists a media record, reserving its slug.
type RecordSaver interface {
	Save(ctx context.Context, rec *media.Record) error
}

// Dispatcher delivers upload events to the acting user's webhooks.
type Dispatcher interface {
	DispatchUpload(userID string, data interface{})
}

// Handler sequences the upload pipeline.
type Handler struct {
	resolver  IdentityResolver
	limiter   *ratelimit.Limiter
	allocator *slug.Allocator
	store     storage.Store
	records   RecordSaver
	webhooks  Dispatcher
	notifier  Notifier
	maxBytes  int64
	baseURL   string
	backend   string
}

// NewHandler creates an upload Handler. notifier may be nil.
func NewHandler(
	resolver IdentityResolver,
	limiter *ratelimit.Limiter,
	allocator *slug.Allocator,
	store storage.Store,
	records RecordSaver,
	webhooks Dispatcher,
	notifier Notifier,
	maxBytes int64,
	baseURL string,
	backend string,
) *Handler {
	return &Handler{
		resolver:  resolver,
		limiter:   limiter,
		allocator: allocator,
		store:     store,
		records:   records,
		webhooks:  webhooks,
		notifier:  notifier,
		maxBytes:  maxBytes,
		baseURL:   strings.TrimRight(baseURL, "/"),
		backend:   backend,
	}
}

// multipartOverhead is slack for boundaries and form fields on top of the
// file-size ceiling when capping the request body.
const multipartOverhead = 1 << 20

type uploadData struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	DirectURL     string `json:"direct_url"`
	Timestamp     int64  `json:"timestamp"`
	Authenticated bool   `json:"authenticated"`
}

// Upload godoc
//
//	@Summary		Upload media
//	@Description	Accept a multipart file upload with an optional custom vanity slug. Anonymous, session, and API-key callers are rate limited on separate tiers.
//	@Tags			upload
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file		formData	file	true	"File to upload"
//	@Param			customId	formData	string	false	"Custom vanity slug"
//	@Success		200			{object}	response.Envelope{data=uploadData}
//	@Failure		400			{object}	response.Envelope
//	@Failure		409			{object}	response.Envelope
//	@Failure		429			{object}	response.Envelope
//	@Failure		500			{object}	response.Envelope
//	@Router			/upload [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p := h.resolver.Resolve(r)

	tier := ratelimit.UploadTierFor(p)
	res := h.limiter.Check(ctx, tier.Key, tier.Limit, tier.WindowSeconds)
	if !res.Admitted {
		response.RateLimited(w, res.Limit, res.Remaining, "Too many uploads. Try again in a minute.")
		return
	}

	// Cap the body before parsing so an oversize upload is cut off while
	// streaming instead of being buffered end-to-end.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.BadRequest(w, response.CodeFileTooLarge,
				fmt.Sprintf("File too large. Max size is %d bytes.", h.maxBytes))
			return
		}
		response.BadRequest(w, response.CodeMissingFile, "No file provided in request")
		return
	}
	defer file.Close()

	if header.Size > h.maxBytes {
		response.BadRequest(w, response.CodeFileTooLarge,
			fmt.Sprintf("File too large. Max size is %d bytes.", h.maxBytes))
		return
	}

	id, err := h.allocator.Allocate(ctx, r.FormValue("customId"))
	if err != nil {
		h.writeSlugError(w, err)
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	fileID, err := h.store.Upload(ctx, header.Filename, file, header.Size, contentType)
	if err != nil {
		log.Printf("upload: store file for %s: %v", id, err)
		response.InternalError(w)
		return
	}

	rec := &media.Record{
		ID:        id,
		FileID:    fileID,
		Backend:   h.backend,
		UserID:    p.UserID,
		CreatedAt: time.Now().UnixMilli(),
		Size:      header.Size,
		Type:      contentType,
	}
	if err := h.records.Save(ctx, rec); err != nil {
		if errors.Is(err, media.ErrAlreadyExists) {
			// Lost the reservation race to a concurrent upload.
			response.FailWithSuggestions(w, http.StatusConflict, response.CodeIDAlreadyExists,
				fmt.Sprintf("ID %q is already taken", id), slug.Suggestions(id))
			return
		}
		log.Printf("upload: save record %s: %v", id, err)
		response.InternalError(w)
		return
	}

	publicURL := h.baseURL + "/i/" + id
	data := uploadData{
		ID:            id,
		URL:           publicURL,
		DirectURL:     publicURL + extensionFor(contentType),
		Timestamp:     rec.CreatedAt,
		Authenticated: !p.Anonymous(),
	}

	h.notify(p, rec, publicURL)
	h.webhooks.DispatchUpload(p.UserID, map[string]interface{}{
		"id":         id,
		"url":        publicURL,
		"size":       rec.Size,
		"type":       rec.Type,
		"created_at": rec.CreatedAt,
	})

	response.SetRateLimitHeaders(w, res.Limit, res.Remaining)
	response.OK(w, data)
}

// writeSlugError maps allocator failures to their response codes.
func (h *Handler) writeSlugError(w http.ResponseWriter, err error) {
	var taken *slug.TakenError
	switch {
	case errors.As(err, &taken):
		response.FailWithSuggestions(w, http.StatusConflict, response.CodeIDAlreadyExists,
			fmt.Sprintf("ID %q is already taken", taken.Slug), taken.Suggestions)
	case errors.Is(err, slug.ErrInvalidCustomID):
		response.BadRequest(w, response.CodeInvalidCustomID, err.Error())
	default:
		log.Printf("upload: allocate slug: %v", err)
		response.InternalError(w)
	}
}

// notify posts an operational log line in a detached goroutine.
func (h *Handler) notify(p auth.Principal, rec *media.Record, publicURL string) {
	if h.notifier == nil {
		return
	}
	var caller string
	switch p.Kind {
	case auth.KindAPIKey:
		caller = "API Key: " + p.KeyPrefix + "..."
	case auth.KindUser:
		caller = "User: " + p.UserID
	default:
		caller = "Anonymous"
	}
	text := fmt.Sprintf("<b>New upload</b>\n\n%s\nType: %s\nSize: %.2f MB\nLink: %s",
		caller, rec.Type, float64(rec.Size)/1024/1024, publicURL)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := h.notifier.SendLog(ctx, text); err != nil {
			log.Printf("upload: send log: %v", err)
		}
	}()
}

// extensionFor picks the direct-link extension used for previews.
func extensionFor(contentType string) string {
	if strings.HasPrefix(contentType, "video/") {
		return ".mp4"
	}
	return ".jpg"
}
