// backend/src/handlers/context.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/username/chamasats/backend/src/logger"
	"github.com/username/chamasats/backend/src/models"
)

type contextKey string

const (
	viewerContextKey    contextKey = "viewer"
	requestIDContextKey contextKey = "requestID"
)

// GetViewerFromContext returns the authenticated viewer placed in the
// request context by AuthMiddleware.
func GetViewerFromContext(ctx context.Context) (models.Viewer, bool) {
	v, ok := ctx.Value(viewerContextKey).(models.Viewer)
	return v, ok
}

// NotFoundHandler answers unmatched routes. API paths get the same JSON
// error shape the handlers use; everything else gets the plain-text 404.
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		sendJSONError(w, "resource not found", http.StatusNotFound)
		return
	}
	http.NotFound(w, r)
}

func sendJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	logger.FromContext(context.Background()).Warn("Sending JSON error to client", "message", message, "statusCode", statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func sendJSON(w http.ResponseWriter, payload any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}
