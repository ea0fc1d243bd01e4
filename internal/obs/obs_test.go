package obs_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-configurator/internal/obs"
)

func TestHTTPMetricsLabels(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("configurator", []float64{1, 10}, registry)
	handler := obs.HTTPObs{Metrics: metrics}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	req = req.WithContext(obs.WithRoutePattern(req.Context(), "/health/ready"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "/health/ready", "204")))
	require.NotZero(t, testutil.CollectAndCount(metrics.ReqDur))
	require.Zero(t, testutil.ToFloat64(metrics.InFlight))
}

func TestHTTPMetricsReuseRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := obs.NewHTTPMetrics("configurator", nil, registry)
	second := obs.NewHTTPMetrics("configurator", nil, registry)
	require.Same(t, first.ReqTotal, second.ReqTotal)
}

func TestDomainMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := obs.NewDomainMetrics("configurator", registry)

	m.ObserveQuote("")
	m.ObserveQuote("US")
	m.ObservePromo(false)
	m.ObserveTransition("select_color", errors.New("invalid"))
	m.ObserveSave("redis", nil)
	m.ObserveRestore("stale")

	require.Equal(t, 1.0, testutil.ToFloat64(m.Quotes.WithLabelValues("DEFAULT")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Promos.WithLabelValues("rejected")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Transitions.WithLabelValues("select_color", "error")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Saves.WithLabelValues("redis", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Restores.WithLabelValues("stale")))

	var none *obs.DomainMetrics
	require.NotPanics(t, func() { none.ObserveQuote("US") })
}

func TestRequestLoggerWritesRouteAndSession(t *testing.T) {
	var buf bytes.Buffer
	logger := obs.NewLoggerTo(&buf, "json", "info")

	r := chi.NewRouter()
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Get("/api/v1/sessions/{sessionID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/s-1", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "http_request", entry["message"])
	require.Equal(t, "/api/v1/sessions/{sessionID}", entry["route"])
	require.Equal(t, "s-1", entry["session_id"])
	require.EqualValues(t, 200, entry["status"])
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := obs.NewLoggerTo(&buf, "json", "chatty")
	logger.Debug().Msg("hidden")
	require.Zero(t, buf.Len())
	logger.Info().Msg("shown")
	require.NotZero(t, buf.Len())
}

func TestInitTracerNone(t *testing.T) {
	shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{Exporter: "none"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	_, err = obs.InitTracer(context.Background(), obs.TracingConfig{Exporter: "zipkin"})
	require.Error(t, err)
}
