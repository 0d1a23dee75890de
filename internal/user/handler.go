package user

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/pixedge/service/internal/auth"
	"github.com/pixedge/service/internal/middleware"
	"github.com/pixedge/service/internal/response"
)

// emailRegex is a permissive shape check; deliverability is not verified.
var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const minPasswordLen = 8

// Handler holds HTTP handlers for account endpoints.
type Handler struct {
	svc        *Service
	codec      *auth.Codec
	production bool
}

// NewHandler creates a new user Handler.
func NewHandler(svc *Service, codec *auth.Codec, production bool) *Handler {
	return &Handler{svc: svc, codec: codec, production: production}
}

type credentialsRequest struct {
	Email    string `json:"email"    example:"me@example.com"`
	Password string `json:"password" example:"hunter2hunter2"`
}

type sessionData struct {
	User  userBody `json:"user"`
	Token string   `json:"token" example:"eyJhbGci..."`
}

type userBody struct {
	ID        string `json:"id"        example:"e7eedc79-0707-4fe4-8734-526b7ef13a7b"`
	Email     string `json:"email"     example:"me@example.com"`
	CreatedAt string `json:"created_at" example:"2026-02-27T14:48:34Z"`
}

// Register godoc
//
//	@Summary		Register account
//	@Description	Create a new account with email and password. Issues a session token and sets it as an HTTP-only cookie.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		credentialsRequest	true	"Email and password"
//	@Success		201		{object}	response.Envelope{data=sessionData}
//	@Failure		400		{object}	response.Envelope
//	@Failure		409		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/auth/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, response.CodeMissingFields, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		response.BadRequest(w, response.CodeMissingFields, "email and password are required")
		return
	}
	if !emailRegex.MatchString(req.Email) {
		response.BadRequest(w, response.CodeInvalidEmail, "invalid email format")
		return
	}
	if len(req.Password) < minPasswordLen {
		response.BadRequest(w, response.CodeWeakPassword, "password must be at least 8 characters")
		return
	}

	u, err := h.svc.Register(r.Context(), req.Email, req.Password)
	if errors.Is(err, ErrAlreadyExists) {
		response.Conflict(w, response.CodeUserExists, "user with this email already exists")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}

	token, err := h.codec.Issue(u.ID, u.Email)
	if err != nil {
		response.InternalError(w)
		return
	}

	h.setSessionCookie(w, token)
	response.Created(w, sessionData{User: toBody(u), Token: token})
}

// Login godoc
//
//	@Summary		Log in
//	@Description	Verify email and password. Issues a session token and sets it as an HTTP-only cookie.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		credentialsRequest	true	"Email and password"
//	@Success		200		{object}	response.Envelope{data=sessionData}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, response.CodeMissingFields, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		response.BadRequest(w, response.CodeMissingFields, "email and password are required")
		return
	}

	u, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		response.Fail(w, http.StatusUnauthorized, response.CodeInvalidCredentials, "invalid email or password")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}

	token, err := h.codec.Issue(u.ID, u.Email)
	if err != nil {
		response.InternalError(w)
		return
	}

	h.setSessionCookie(w, token)
	response.OK(w, sessionData{User: toBody(u), Token: token})
}

// Me godoc
//
//	@Summary		Current account
//	@Description	Return the authenticated user's account details.
//	@Tags			auth
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	response.Envelope{data=userBody}
//	@Failure		401	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/auth/me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}

	u, err := h.svc.GetByID(r.Context(), p.UserID)
	if h.svc.IsNotFound(err) {
		response.NotFound(w, "user not found")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, toBody(u))
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.production,
		SameSite: http.SameSiteLaxMode,
	})
}

func toBody(u *User) userBody {
	return userBody{
		ID:        u.ID,
		Email:     u.Email,
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339),
	}
}
