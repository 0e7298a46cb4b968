package infrastructure

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"agentforge/internal/config"
)

func testOTelConfig() *OTelConfig {
	reg := prometheus.NewRegistry()
	return &OTelConfig{
		ServiceName:    config.ServiceName,
		ServiceVersion: "test",
		Environment:    config.EnvTest,
		TraceExporter:  "none",
		EnableMetrics:  true,
		Registerer:     reg,
		Gatherer:       reg,
	}
}

func TestOTelInitialization(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	providers, err := InitializeOTel(testOTelConfig(), logger)
	require.NoError(t, err)

	assert.Nil(t, providers.TracerProvider, "tracing disabled")
	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.MeterProvider)
	assert.NotNil(t, providers.Meter)
	assert.NotNil(t, providers.PrometheusHTTP)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, providers.Shutdown(ctx))
}

func TestOTelTracingStdout(t *testing.T) {
	cfg := testOTelConfig()
	cfg.EnableTracing = true
	cfg.TraceExporter = "stdout"
	cfg.SampleRatio = 1

	providers, err := InitializeOTel(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	require.NotNil(t, providers.TracerProvider)

	_, span := providers.Tracer.Start(context.Background(), "unit")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, providers.Shutdown(ctx))
}

func TestOTelUnsupportedExporter(t *testing.T) {
	cfg := testOTelConfig()
	cfg.EnableTracing = true
	cfg.TraceExporter = "jaeger"

	_, err := InitializeOTel(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorContains(t, err, "unsupported trace exporter")
}

func TestHTTPMetricsExported(t *testing.T) {
	providers, err := InitializeOTel(testOTelConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer func() { _ = providers.Shutdown(context.Background()) }()

	m, err := NewHTTPMetrics(providers.Meter)
	require.NoError(t, err)
	m.RequestsTotal.Add(context.Background(), 1, metric.WithAttributes(attribute.Int("status_code", 200)))

	rec := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "agentforge_http_requests_total")
}

func TestWebSocketMetrics(t *testing.T) {
	providers, err := InitializeOTel(testOTelConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer func() { _ = providers.Shutdown(context.Background()) }()

	m, err := NewWebSocketMetrics(providers.Meter)
	require.NoError(t, err)
	assert.NotNil(t, m.Connections)
	assert.NotNil(t, m.Messages)
}
