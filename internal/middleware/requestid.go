package middleware

import (
	"context"
	"net/http"

	"agentforge/internal/infrastructure"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// RequestID takes the caller's X-Request-ID when it is a UUID and generates
// one otherwise. The ID is stored for chi, for the logger and echoed back.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(middleware.RequestIDHeader)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = infrastructure.GenerateRequestID()
		}

		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, requestID)
		ctx = infrastructure.WithRequestID(ctx, requestID)
		w.Header().Set(middleware.RequestIDHeader, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
