package websocket

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	apierrors "agentforge/internal/errors"
	"agentforge/internal/infrastructure"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10
)

// ReplyPrefix is prepended to every echoed message
const ReplyPrefix = "Message received: "

// Config holds the connection settings
type Config struct {
	ReadBufferSize  int
	WriteBufferSize int
	MaxMessageSize  int64
	// AllowedOrigins are accepted in addition to same-host origins. "*" accepts any.
	AllowedOrigins []string
}

// EchoHandler accepts websocket connections and answers each text message
// with ReplyPrefix followed by the message
type EchoHandler struct {
	upgrader       websocket.Upgrader
	maxMessageSize int64
	metrics        *infrastructure.WebSocketMetrics
	logger         *slog.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewEchoHandler creates an echo handler. metrics may be nil.
func NewEchoHandler(cfg Config, metrics *infrastructure.WebSocketMetrics, logger *slog.Logger) *EchoHandler {
	h := &EchoHandler{
		maxMessageSize: cfg.MaxMessageSize,
		metrics:        metrics,
		logger:         logger.With(slog.String("component", "websocket")),
		conns:          make(map[*websocket.Conn]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
		Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
			h.logger.WarnContext(r.Context(), "WebSocket upgrade failed",
				slog.Int("status", status),
				slog.String("error", reason.Error()),
				slog.String("origin", r.Header.Get("Origin")),
			)
			apierrors.Write(w, r, apierrors.New(status, http.StatusText(status)))
		},
	}
	return h
}

// ServeHTTP upgrades the connection and runs the echo loop until the client
// goes away. Plain HTTP requests get 501.
func (h *EchoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		apierrors.Write(w, r, apierrors.NotImplemented("Not Implemented"))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already replied
		return
	}

	// the request context is cancelled once the handler returns
	ctx := context.WithoutCancel(r.Context())
	logger := h.logger.With(
		slog.String("connection_id", uuid.NewString()),
		slog.String("remote_addr", conn.RemoteAddr().String()),
	)
	h.serve(ctx, conn, logger)
}

func (h *EchoHandler) serve(ctx context.Context, conn *websocket.Conn, logger *slog.Logger) {
	h.track(conn)
	connectedAt := time.Now()
	var received int64

	done := make(chan struct{})
	defer func() {
		close(done)
		h.untrack(conn)
		_ = conn.Close()
		logger.InfoContext(ctx, "WebSocket client disconnected",
			slog.Duration("connection_duration", time.Since(connectedAt)),
			slog.Int64("messages_received", received),
		)
	}()
	go h.keepAlive(conn, done)

	logger.InfoContext(ctx, "WebSocket client connected")

	conn.SetReadLimit(h.maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				logger.WarnContext(ctx, "Unexpected WebSocket close", slog.String("error", err.Error()))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		if msgType != websocket.TextMessage {
			continue
		}
		received++

		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, []byte(ReplyPrefix+string(message))); err != nil {
			logger.WarnContext(ctx, "WebSocket write failed", slog.String("error", err.Error()))
			return
		}
		if h.metrics != nil {
			h.metrics.Messages.Add(ctx, 1)
		}
	}
}

// keepAlive pings the peer so half-open connections hit the read deadline
func (h *EchoHandler) keepAlive(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (h *EchoHandler) track(conn *websocket.Conn) {
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()
	h.recordConnection(1)
}

func (h *EchoHandler) untrack(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
	h.recordConnection(-1)
}

func (h *EchoHandler) recordConnection(delta int64) {
	if h.metrics != nil {
		h.metrics.Connections.Add(context.Background(), delta,
			metric.WithAttributes(attribute.String("handler", "echo")))
	}
}

// Active returns the number of open connections
func (h *EchoHandler) Active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Close sends a going-away close frame to every open connection. The echo
// loops then end when the peers answer or the read deadline passes.
func (h *EchoHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for conn := range h.conns {
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	}
}

// originChecker admits requests without an Origin header, same-host origins
// and origins on the allow list
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		if strings.EqualFold(u.Host, r.Host) {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(strings.TrimSuffix(a, "/"), origin) {
				return true
			}
		}
		return false
	}
}
