package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
)

type contextKey string

const (
	contextKeyUserEmail contextKey = "user-email"
	contextKeyUserRole  contextKey = "user-role"

	headerUserEmail = "X-User-Email"
	headerUserRole  = "X-User-Role"
)

// UserEmail достаёт email пользователя, положенный auth-middleware.
func UserEmail(ctx context.Context) string {
	email, _ := ctx.Value(contextKeyUserEmail).(string)
	return email
}

// UserRole достаёт роль пользователя из контекста.
func UserRole(ctx context.Context) string {
	role, _ := ctx.Value(contextKeyUserRole).(string)
	return role
}

// GatewayAuth извлекает идентичность из заголовков, проставленных API-гейтвеем.
// Сервис доверяет этим заголовкам: токены проверяются до него.
func GatewayAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email := r.Header.Get(headerUserEmail)
		if email == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing user identity headers")
			return
		}

		ctx := context.WithValue(r.Context(), contextKeyUserEmail, email)
		ctx = context.WithValue(ctx, contextKeyUserRole, r.Header.Get(headerUserRole))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestLogger пишет access-лог через logrus в формате остальных логов сервиса.
func RequestLogger(logger *log.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.WithFields(log.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"duration":   time.Since(start).String(),
				"request_id": middleware.GetReqID(r.Context()),
			}).Info("http request")
		})
	}
}
