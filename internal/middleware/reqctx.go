package middleware

import (
	"context"
	"net"
	"net/http"
	"time"
)

type requestContextKey struct{}

// RequestContext is what the pipeline knows about a request before any filter runs
type RequestContext struct {
	Received   time.Time
	ClientAddr string
	Method     string
	Path       string
}

// FromContext returns the RequestContext stored by the request-context stage
func FromContext(ctx context.Context) (*RequestContext, bool) {
	rc, ok := ctx.Value(requestContextKey{}).(*RequestContext)
	return rc, ok
}

// WithRequestContext records when the request arrived and stamps
// X-Process-Time on any response that an inner stage did not stamp itself,
// such as host or rate limit rejections and CORS preflights.
func WithRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rc := &RequestContext{
			Received:   time.Now(),
			ClientAddr: clientIP(r),
			Method:     r.Method,
			Path:       r.URL.Path,
		}
		ctx := context.WithValue(r.Context(), requestContextKey{}, rc)
		tw := newTimingWriter(w, rc.Received, false)
		next.ServeHTTP(tw, r.WithContext(ctx))
	})
}

// clientIP returns the host part of RemoteAddr, which RealIP may have rewritten
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
