package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/msomdec/calendar-api/internal/domain"
)

// writeJSON sends a JSON response with the given status code and data.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("write JSON response", "error", err)
	}
}

// writeError sends a {"detail": message} body with the given status code.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"detail": message})
}

// writeUnauthorized sends a 401 with the bearer challenge header.
func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, http.StatusUnauthorized, message)
}

// readJSON decodes the request body into the given destination.
func readJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

// respondError maps a service error onto a status code. Unexpected errors
// are logged under action and hidden from the client.
func respondError(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrDuplicateEmail):
		writeError(w, http.StatusBadRequest, "Email already registered")
	case errors.Is(err, domain.ErrDuplicateProviderID):
		writeError(w, http.StatusBadRequest, "Provider account already linked to another user")
	case errors.Is(err, domain.ErrUnauthorized):
		writeUnauthorized(w, "Could not validate credentials")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "Not authorized to modify this event")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, domain.ErrProvider):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error(action, "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred. Please try again.")
	}
}

// invalidf builds an error wrapping domain.ErrInvalidInput.
func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidInput, fmt.Sprintf(format, args...))
}
