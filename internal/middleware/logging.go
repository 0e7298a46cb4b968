package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// RequestLogger writes one record when a request arrives and one when its
// response is complete
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			start := time.Now()
			url := r.URL.String()

			logger.InfoContext(ctx, "Incoming request",
				slog.String("method", r.Method),
				slog.String("url", url),
				slog.String("client_ip", clientIP(r)),
				slog.String("user_agent", r.UserAgent()),
			)

			ww, ok := w.(middleware.WrapResponseWriter)
			if !ok {
				ww = middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			}
			next.ServeHTTP(ww, r)

			logger.InfoContext(ctx, "Request completed",
				slog.String("method", r.Method),
				slog.String("url", url),
				slog.Int("status_code", responseStatus(ww.Status(), r)),
				slog.Float64("process_time", time.Since(start).Seconds()),
			)
		})
	}
}

// responseStatus fills in what net/http implies when nothing was written
func responseStatus(status int, r *http.Request) int {
	if status != 0 {
		return status
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return http.StatusSwitchingProtocols
	}
	return http.StatusOK
}
