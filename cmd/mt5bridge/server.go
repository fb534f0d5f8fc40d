package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/peter-kozarec/equinox-mt5/pkg/exchange/mt5"
)

type stateReporter interface {
	State() mt5.State
}

type healthResponse struct {
	State string `json:"state"`
}

// newHTTPHandler serves the metrics registry and a health probe that fails
// until the client is connected.
func newHTTPHandler(reg *prometheus.Registry, metricsPath string, client stateReporter) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		state := client.State()
		status := http.StatusOK
		if state != mt5.StateConnected {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(healthResponse{State: state.String()})
	})
	r.Method(http.MethodGet, metricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	return r
}
