package resilientclient

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestClient_EmitsAttemptSpanWithNetworkEvents verifies that a client wired
// to a real (in-memory) TracerProvider produces one span per attempt
// carrying the request/response network-timing events.
func TestClient_EmitsAttemptSpanWithNetworkEvents(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())

	mt := NewMockTransport().StubResponse(200, "application/json", `{}`)
	c, err := NewClient("api.example.com", WithMockTransport(mt), WithTracerProvider(tp))
	require.NoError(t, err)
	defer c.Close()

	_, callErr := c.Request(context.Background(), RequestParams{Method: http.MethodGet, Pathname: "/x"})
	require.NoError(t, callErr)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "resilientclient.attempt", spans[0].Name)

	var names []string
	for _, ev := range spans[0].Events {
		names = append(names, ev.Name)
	}
	assert.Contains(t, names, "request start")
	assert.Contains(t, names, "response headers received")
	assert.Contains(t, names, "body end")
}

// TestClient_EmitsAttemptSpanOnFailure verifies a span is still recorded
// (and the error surfaced) when the attempt itself fails.
func TestClient_EmitsAttemptSpanOnFailure(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())

	mt := NewMockTransport().StubResponse(500, "text/plain", "boom")
	c, err := NewClient("api.example.com", WithMockTransport(mt), WithTracerProvider(tp))
	require.NoError(t, err)
	defer c.Close()

	_, callErr := c.Request(context.Background(), RequestParams{Method: http.MethodGet, Pathname: "/x"})
	require.Error(t, callErr)
	require.Len(t, exporter.GetSpans(), 1)
}

// TestClient_RecordsAttemptMetrics verifies that a client wired to a real
// MeterProvider records one histogram observation and one counter
// increment per attempt.
func TestClient_RecordsAttemptMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	mt := NewMockTransport().StubResponse(200, "application/json", `{}`)
	c, err := NewClient("api.example.com", WithMockTransport(mt), WithMeterProvider(mp))
	require.NoError(t, err)
	defer c.Close()

	_, callErr := c.Request(context.Background(), RequestParams{Method: http.MethodGet, Pathname: "/x"})
	require.NoError(t, callErr)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.NotEmpty(t, rm.ScopeMetrics)

	found := false
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == "resilientclient.attempt.count" {
				found = true
			}
		}
	}
	assert.True(t, found, "expected an attempt.count metric to have been recorded")
}
