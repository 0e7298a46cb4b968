package errors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler() (*ErrorHandler, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewErrorHandler(slog.New(slog.NewJSONHandler(&buf, nil))), &buf
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   map[string]interface{}
		wantLogged bool
	}{
		{
			name:       "client safe error keeps its detail",
			err:        NotImplemented("Login endpoint not yet implemented"),
			wantStatus: http.StatusNotImplemented,
			wantBody:   map[string]interface{}{"detail": "Login endpoint not yet implemented"},
		},
		{
			name:       "service unavailable is logged",
			err:        fmt.Errorf("readiness: %w", ErrServiceUnavailable),
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   map[string]interface{}{"detail": "Service unavailable", "error_code": "SERVICE_UNAVAILABLE"},
			wantLogged: true,
		},
		{
			name:       "wrapped api error",
			err:        fmt.Errorf("lookup: %w", ErrNotFound),
			wantStatus: http.StatusNotFound,
			wantBody:   map[string]interface{}{"detail": "Not Found"},
		},
		{
			name:       "unknown error is hidden",
			err:        fmt.Errorf("pq: relation \"users\" does not exist"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   map[string]interface{}{"detail": "Internal server error", "error_code": "INTERNAL_ERROR"},
			wantLogged: true,
		},
		{
			name:       "deadline exceeded",
			err:        fmt.Errorf("query: %w", context.DeadlineExceeded),
			wantStatus: http.StatusGatewayTimeout,
			wantBody:   map[string]interface{}{"detail": "Request timeout", "error_code": "TIMEOUT"},
			wantLogged: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, logs := newTestHandler()
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/content/", nil)

			h.HandleError(rec, req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantBody, decode(t, rec))
			assert.Equal(t, tt.wantLogged, logs.Len() > 0)
		})
	}
}

func TestHandleErrorNil(t *testing.T) {
	h, _ := newTestHandler()
	rec := httptest.NewRecorder()
	h.HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	assert.Zero(t, rec.Body.Len())
}

func TestHandleValidationError(t *testing.T) {
	type payload struct {
		Title string `validate:"required"`
		Words int    `validate:"min=1"`
	}
	err := validator.New().Struct(payload{})
	require.Error(t, err)

	h, _ := newTestHandler()
	rec := httptest.NewRecorder()
	h.HandleError(rec, httptest.NewRequest(http.MethodPost, "/", nil), err)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Request validation failed", body["detail"])
	assert.Len(t, body["errors"], 2)
}

func TestWrap(t *testing.T) {
	h, _ := newTestHandler()

	ok := h.Wrap(func(w http.ResponseWriter, r *http.Request) error {
		w.WriteHeader(http.StatusNoContent)
		return nil
	})
	rec := httptest.NewRecorder()
	ok(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	failing := h.Wrap(func(http.ResponseWriter, *http.Request) error {
		return NotImplemented("Not Implemented")
	})
	rec = httptest.NewRecorder()
	failing(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestRecovererHidesPanic(t *testing.T) {
	h, logs := newTestHandler()
	handler := h.Recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("secret connection string postgres://admin:pw@db")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"detail":"Internal server error","error_code":"INTERNAL_ERROR"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "postgres")

	assert.Contains(t, logs.String(), "panic recovered")
	assert.Contains(t, logs.String(), "secret connection string", "full detail stays server side")
	assert.Contains(t, logs.String(), "stack")
}

func TestRecovererAfterResponseStarted(t *testing.T) {
	h, logs := newTestHandler()
	handler := h.Recoverer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("partial"))
		panic("late failure")
	}))

	rec := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "partial", rec.Body.String())
	assert.Contains(t, logs.String(), "panic after response started")
}

func TestRecovererRepanicsAbort(t *testing.T) {
	h, _ := newTestHandler()
	handler := h.Recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	h, _ := newTestHandler()

	rec := httptest.NewRecorder()
	h.NotFound(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"detail":"Not Found"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.MethodNotAllowed(rec, httptest.NewRequest(http.MethodDelete, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.JSONEq(t, `{"detail":"Method Not Allowed"}`, rec.Body.String())
}
