// backend/src/handlers/middleware.go
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/username/chamasats/backend/src/logger"
	"github.com/username/chamasats/backend/src/models"
	"github.com/username/chamasats/backend/src/security"
)

// ContextualLoggerMiddleware attaches a request-scoped logger carrying a
// generated request id.
func ContextualLoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()

		ctxLogger := logger.FromContext(r.Context()).With(slog.String("requestID", requestID))

		ctx := logger.ToContext(r.Context(), ctxLogger)
		ctx = context.WithValue(ctx, requestIDContextKey, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AuthMiddleware validates the bearer token and places the resulting
// viewer in the request context. Chama roles are resolved per chama by
// the adapters, not here; the token only establishes identity.
func AuthMiddleware(authService *security.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctxLogger := logger.FromContext(r.Context())

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				ctxLogger.Debug("AuthMiddleware: Authorization header missing", "path", r.URL.Path)
				sendJSONError(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			tokenString := authHeader
			if strings.HasPrefix(authHeader, "Bearer ") {
				tokenString = strings.TrimPrefix(authHeader, "Bearer ")
			}
			if tokenString == "" {
				ctxLogger.Debug("AuthMiddleware: Token string empty", "path", r.URL.Path)
				sendJSONError(w, "Malformed token", http.StatusUnauthorized)
				return
			}

			claims, err := authService.ValidateToken(tokenString)
			if err != nil {
				ctxLogger.Warn("AuthMiddleware: Token validation failed", "path", r.URL.Path, "error", err)
				sendJSONError(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			viewer := models.Viewer{UserID: claims.Subject}

			enrichedLogger := ctxLogger.With(slog.String("userID", viewer.UserID))
			ctx := logger.ToContext(r.Context(), enrichedLogger)
			ctx = context.WithValue(ctx, viewerContextKey, viewer)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
