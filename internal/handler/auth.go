package handler

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/msomdec/calendar-api/internal/domain"
	"github.com/msomdec/calendar-api/internal/service"
)

// AuthHandler handles registration, password login and user lookups.
type AuthHandler struct {
	auth    *service.AuthService
	limiter *service.RateLimiter
}

// NewAuthHandler creates a new AuthHandler. limiter may be nil to disable
// login throttling.
func NewAuthHandler(auth *service.AuthService, limiter *service.RateLimiter) *AuthHandler {
	return &AuthHandler{auth: auth, limiter: limiter}
}

// HandleRegister creates a local account.
// POST /register
// Request:  {"username":"...","email":"...","password":"...","image":"..."}
// Response: user
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Invalid request body.")
		return
	}

	user, err := h.auth.Register(r.Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Image:    req.Image,
	})
	if err != nil {
		respondError(w, "register user", err)
		return
	}

	slog.Info("user registered", "user_id", user.ID)
	writeJSON(w, http.StatusOK, toUserDTO(user))
}

// HandleToken exchanges form credentials for a bearer token.
// POST /token
// Form:     username=<email>&password=...
// Response: {"access_token":"...","token_type":"bearer"}
func (h *AuthHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	if h.limiter != nil && !h.limiter.Allow(clientIP(r)) {
		writeError(w, http.StatusTooManyRequests, "Too many login attempts. Please wait a moment.")
		return
	}

	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Invalid form body.")
		return
	}
	username := r.PostForm.Get("username")
	password := r.PostForm.Get("password")
	if username == "" || password == "" {
		writeError(w, http.StatusUnprocessableEntity, "username and password are required")
		return
	}

	token, err := h.auth.Login(r.Context(), username, password)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			writeUnauthorized(w, "Incorrect username or password")
			return
		}
		respondError(w, "login user", err)
		return
	}

	writeJSON(w, http.StatusOK, TokenDTO{AccessToken: token, TokenType: "bearer"})
}

// HandleMe returns the currently authenticated user.
// GET /users/me/
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		writeUnauthorized(w, "Not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(user))
}

// HandleListUsers returns a page of users.
// GET /users/?skip=0&limit=100
func (h *AuthHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := pagination(r)
	if err != nil {
		respondError(w, "list users", err)
		return
	}

	users, err := h.auth.ListUsers(r.Context(), skip, limit)
	if err != nil {
		respondError(w, "list users", err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTOs(users))
}

// pagination reads skip and limit. Absent values default to the first
// full page.
func pagination(r *http.Request) (skip, limit int, err error) {
	q := r.URL.Query()
	if skip, err = intParam(q.Get("skip"), "skip", 0); err != nil {
		return 0, 0, err
	}
	if limit, err = intParam(q.Get("limit"), "limit", service.MaxPageSize); err != nil {
		return 0, 0, err
	}
	return skip, limit, nil
}

func intParam(raw, name string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, invalidf("%s must be a non-negative integer", name)
	}
	return n, nil
}

// clientIP keys the login limiter. RealIP has already rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
