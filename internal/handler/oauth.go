package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/msomdec/calendar-api/internal/domain"
	"github.com/msomdec/calendar-api/internal/service"
	"github.com/msomdec/calendar-api/internal/view"
)

// OAuthHandler serves the browser redirects of the provider login flow.
type OAuthHandler struct {
	oauth       *service.OAuthService
	frontendURL string
}

// NewOAuthHandler creates a new OAuthHandler. Successful logins redirect to
// frontendURL + "/login".
func NewOAuthHandler(oauth *service.OAuthService, frontendURL string) *OAuthHandler {
	return &OAuthHandler{oauth: oauth, frontendURL: strings.TrimRight(frontendURL, "/")}
}

// HandleLogin redirects to the provider's consent screen.
// GET /auth/login/{provider}
func (h *OAuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	redirect, err := h.oauth.Begin(r.Context(), chi.URLParam(r, "provider"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Unknown provider")
			return
		}
		respondError(w, "begin oauth login", err)
		return
	}
	http.Redirect(w, r, redirect, http.StatusFound)
}

// HandleCallback completes the login and hands the token to the frontend.
// GET /auth/{provider}/callback?code=...&state=...
func (h *OAuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	q := r.URL.Query()

	if errParam := q.Get("error"); errParam != "" {
		msg := errParam
		if desc := q.Get("error_description"); desc != "" {
			msg += ": " + desc
		}
		h.renderFailure(w, r, msg)
		return
	}

	token, err := h.oauth.Complete(r.Context(), provider, q.Get("code"), q.Get("state"))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "Unknown provider")
		case errors.Is(err, domain.ErrProvider), errors.Is(err, domain.ErrDuplicateProviderID):
			slog.Warn("oauth callback rejected", "provider", provider, "error", err)
			h.renderFailure(w, r, err.Error())
		default:
			slog.Error("complete oauth login", "provider", provider, "error", err)
			h.renderFailure(w, r, "An unexpected error occurred. Please try again.")
		}
		return
	}

	http.Redirect(w, r, h.frontendURL+"/login?access_token="+url.QueryEscape(token), http.StatusFound)
}

// renderFailure shows the error page. Unexpected failures still answer 400
// so that the browser shows the page rather than a bare error.
func (h *OAuthHandler) renderFailure(w http.ResponseWriter, r *http.Request, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusBadRequest)
	if err := view.ErrorPage("Sign-in failed", message, h.frontendURL+"/login").Render(r.Context(), w); err != nil {
		slog.Error("render oauth error page", "error", err)
	}
}
