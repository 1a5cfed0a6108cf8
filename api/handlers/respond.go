package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"archidoc/core/docs"
)

// Cookie names shared with the middleware layer.
const (
	SessionCookieName = "archidoc_session"
	CSRFCookieName    = "archidoc_csrf"
)

const jsonPayloadMaxBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, jsonPayloadMaxBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json payload")
		return false
	}
	return true
}

// writeDomainError maps the document layer's errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	var vErr *docs.ValidationError
	switch {
	case errors.Is(err, docs.ErrNotFound):
		writeError(w, http.StatusNotFound, "document not found")
	case errors.Is(err, docs.ErrCrossDepartment):
		writeError(w, http.StatusForbidden, "cross-department access denied")
	case errors.Is(err, docs.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, "insufficient permissions")
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, vErr.Error())
	default:
		writeError(w, http.StatusInternalServerError, "server error")
	}
}
