// SPDX-License-Identifier: MIT
package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/larsks/pubsub-example/internal/telemetry"
)

func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})
	return sr
}

func TestTracing_RecordsServerSpan(t *testing.T) {
	sr := installRecorder(t)

	h := Tracing("test-tracer")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, trace.SpanFromContext(r.Context()).SpanContext().IsValid())
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/pub", nil))
	assert.Equal(t, http.StatusCreated, rec.Code)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "POST /pub", spans[0].Name())
	assert.Equal(t, trace.SpanKindServer, spans[0].SpanKind())
}

func TestTracing_ServerErrorMarksSpan(t *testing.T) {
	sr := installRecorder(t)

	h := Tracing("test-tracer")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/sub", nil))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "Error", spans[0].Status().Code.String())
}

func TestTracing_ContinuesInboundTrace(t *testing.T) {
	sr := installRecorder(t)

	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	req := httptest.NewRequest(http.MethodGet, "/sub", nil)
	req.Header.Set("traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")

	Tracing("test-tracer")(okHandler()).ServeHTTP(httptest.NewRecorder(), req)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, traceID, spans[0].SpanContext().TraceID().String())
}

func TestTracing_SkipsProbes(t *testing.T) {
	sr := installRecorder(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		Tracing("test-tracer")(okHandler()).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	assert.Empty(t, sr.Ended())
}

func TestTracing_NoopProvider(t *testing.T) {
	_, err := telemetry.NewProvider(context.Background(), telemetry.Config{Enabled: false})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	Tracing("test-tracer")(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
