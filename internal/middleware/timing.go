package middleware

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"
)

// ProcessTimeHeader carries the elapsed handling time in seconds
const ProcessTimeHeader = "X-Process-Time"

// Timing measures the time spent in the stages after it and reports it in
// X-Process-Time. The header is set just before the status line goes out.
func Timing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tw := newTimingWriter(w, time.Now(), true)
		next.ServeHTTP(tw, r)
		// a handler that wrote nothing still gets an implicit 200
		tw.stamp()
	})
}

// FormatProcessTime renders d as seconds
func FormatProcessTime(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 6, 64)
}

// timingWriter stamps X-Process-Time the first time headers are flushed
type timingWriter struct {
	http.ResponseWriter
	start     time.Time
	overwrite bool
	stamped   bool
}

func newTimingWriter(w http.ResponseWriter, start time.Time, overwrite bool) *timingWriter {
	return &timingWriter{ResponseWriter: w, start: start, overwrite: overwrite}
}

func (tw *timingWriter) stamp() {
	if tw.stamped {
		return
	}
	tw.stamped = true
	h := tw.Header()
	if tw.overwrite || h.Get(ProcessTimeHeader) == "" {
		h.Set(ProcessTimeHeader, FormatProcessTime(time.Since(tw.start)))
	}
}

func (tw *timingWriter) WriteHeader(code int) {
	// informational responses do not carry the final headers
	if code >= 200 {
		tw.stamp()
	}
	tw.ResponseWriter.WriteHeader(code)
}

func (tw *timingWriter) Write(b []byte) (int, error) {
	tw.stamp()
	return tw.ResponseWriter.Write(b)
}

// Flush implements http.Flusher
func (tw *timingWriter) Flush() {
	tw.stamp()
	if f, ok := tw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack implements http.Hijacker so websocket upgrades pass through
func (tw *timingWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := tw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer %T does not support hijacking", tw.ResponseWriter)
	}
	tw.stamped = true
	return hj.Hijack()
}

// Unwrap lets http.ResponseController reach the underlying writer
func (tw *timingWriter) Unwrap() http.ResponseWriter {
	return tw.ResponseWriter
}
