package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/utilitydesk/billing-console/internal/platform/httpx"
)

// SignOutHook is told which session ended so dependent state can be released.
type SignOutHook func(ctx context.Context, sessionID string)

// Handler serves sign-in and sign-out.
type Handler struct {
	manager   *Manager
	verifier  *Verifier
	validate  *validator.Validate
	logger    *slog.Logger
	onSignOut SignOutHook
	now       func() time.Time
}

type signInRequest struct {
	Token string `json:"token" validate:"required,jwt"`
}

type principalResponse struct {
	Subject   string     `json:"subject,omitempty"`
	Name      string     `json:"name,omitempty"`
	Role      string     `json:"role"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// NewHandler constructs the session handler.
func NewHandler(manager *Manager, verifier *Verifier, logger *slog.Logger, onSignOut SignOutHook) *Handler {
	return &Handler{
		manager:   manager,
		verifier:  verifier,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger,
		onSignOut: onSignOut,
		now:       time.Now,
	}
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

// MountRoutes registers the session endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleSignIn)
	r.Get("/", h.handleCurrent)
	r.Delete("/", h.handleSignOut)
}

func (h *Handler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	sess := FromContext(r.Context())
	if sess == nil {
		httpx.RespondError(w, errors.New("session middleware missing"))
		return
	}
	var req signInRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: token must be a JWT", httpx.ErrValidation))
		return
	}
	principal, err := h.verifier.Principal(req.Token, h.now())
	if err != nil {
		h.logger.Warn("rejected sign-in token", slog.Any("error", err))
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrUnauthorized, err))
		return
	}
	if sess.Authenticated() && h.onSignOut != nil {
		h.onSignOut(r.Context(), sess.ID)
	}
	sess.SignIn(req.Token, principal)
	h.logger.Info("console sign-in", slog.String("subject", principal.Subject), slog.String("role", principal.Role))
	httpx.JSON(w, http.StatusCreated, toResponse(principal))
}

func (h *Handler) handleCurrent(w http.ResponseWriter, r *http.Request) {
	sess := FromContext(r.Context())
	if !sess.Authenticated() {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(sess.Principal()))
}

func (h *Handler) handleSignOut(w http.ResponseWriter, r *http.Request) {
	sess := FromContext(r.Context())
	if sess.Authenticated() && h.onSignOut != nil {
		h.onSignOut(r.Context(), sess.ID)
	}
	h.manager.Destroy(sess)
	w.WriteHeader(http.StatusNoContent)
}

func toResponse(p Principal) principalResponse {
	resp := principalResponse{Subject: p.Subject, Name: p.Name, Role: p.Role}
	if !p.ExpiresAt.IsZero() {
		exp := p.ExpiresAt
		resp.ExpiresAt = &exp
	}
	return resp
}
