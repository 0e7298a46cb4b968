package websocket

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, cfg Config) (*EchoHandler, *httptest.Server, *bytes.Buffer) {
	t.Helper()
	if cfg.MaxMessageSize == 0 {
		cfg.MaxMessageSize = 1024
	}
	var logs bytes.Buffer
	h := NewEchoHandler(cfg, nil, slog.New(slog.NewJSONHandler(&logs, nil)))
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return h, srv, &logs
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestEchoRepliesWithPrefix(t *testing.T) {
	h, srv, _ := newTestServer(t, Config{})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()

	for _, msg := range []string{"ping", "hello world", ""} {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(msg)))
		_, reply, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, "Message received: "+msg, string(reply))
	}
	assert.Equal(t, 1, h.Active(), "connection stays open between messages")
}

func TestEchoClientCloseIsClean(t *testing.T) {
	h, srv, logs := newTestServer(t, Config{})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))
	_, _, err = conn.ReadMessage()
	require.NoError(t, err)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "server answers the close handshake: %v", err)
	conn.Close()

	assert.Eventually(t, func() bool { return h.Active() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.NotContains(t, logs.String(), "Unexpected WebSocket close")
}

func TestEchoIgnoresBinaryFrames(t *testing.T) {
	_, srv, _ := newTestServer(t, Config{})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{0x01}))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("text")))
	_, reply, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "Message received: text", string(reply))
}

func TestEchoEnforcesMessageLimit(t *testing.T) {
	h, srv, _ := newTestServer(t, Config{MaxMessageSize: 8})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(strings.Repeat("x", 64))))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
	assert.Eventually(t, func() bool { return h.Active() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestEchoOriginPolicy(t *testing.T) {
	_, srv, _ := newTestServer(t, Config{AllowedOrigins: []string{"http://localhost:3000"}})

	tests := []struct {
		name   string
		origin string
		ok     bool
	}{
		{"no origin", "", true},
		{"allowed origin", "http://localhost:3000", true},
		{"same host", srv.URL, true},
		{"foreign origin", "http://attacker.test", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.origin != "" {
				header.Set("Origin", tt.origin)
			}
			conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
			if tt.ok {
				require.NoError(t, err)
				conn.Close()
				return
			}
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		})
	}
}

func TestEchoPlainHTTPIsNotImplemented(t *testing.T) {
	_, srv, _ := newTestServer(t, Config{})

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
	assert.JSONEq(t, `{"detail":"Not Implemented"}`, string(body))
}

func TestCloseSendsGoingAway(t *testing.T) {
	h, srv, _ := newTestServer(t, Config{})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return h.Active() == 1 }, time.Second, 10*time.Millisecond)

	h.Close()
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}
