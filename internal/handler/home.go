package handler

import (
	"net/http"
)

// AppName is the product name shown by the welcome endpoint.
const AppName = "Personal Calendar API"

// HandleHome greets API clients.
func HandleHome(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to " + AppName})
}
