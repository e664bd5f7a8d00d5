package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// urlParam returns the named route parameter. Handlers invoked without a chi
// route context fall back to the segment following the resource marker.
func urlParam(r *http.Request, key string) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if v := rc.URLParam(key); v != "" {
			return strings.TrimSpace(v)
		}
	}
	marker := map[string]string{"id": "incidents", "field": "attributes"}[key]
	if marker == "" {
		return ""
	}
	segments := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	for i := len(segments) - 2; i >= 0; i-- {
		if segments[i] == marker {
			return strings.TrimSpace(segments[i+1])
		}
	}
	return ""
}
