// Package metrics exposes Prometheus instrumentation plus a small HTTP
// surface for the status and positions snapshots.
package metrics

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haqhal13/EDGEBOTPRO/internal/signal"
)

var (
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ticks_total", Help: "Count of price ticks ingested"},
		[]string{"market"},
	)
	TradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "trades_total", Help: "Executed paper trades"},
		[]string{"market", "side", "phase"},
	)
	SettlementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "settlements_total", Help: "Settled positions"},
		[]string{"market", "winner"},
	)
	ParityBreaksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "parity_breaks_total", Help: "Ticks whose side prices fail the sum-to-one sanity check"},
	)
	CapitalUSD = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "capital_usd", Help: "Free capital in the shared pool"},
	)
	BuildingMarkets = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "building_markets", Help: "Markets currently in the build phase"},
	)
	OpenPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "open_positions", Help: "Finalized positions awaiting settlement"},
	)
)

func init() {
	prometheus.MustRegister(
		TicksTotal,
		TradesTotal,
		SettlementsTotal,
		ParityBreaksTotal,
		CapitalUSD,
		BuildingMarkets,
		OpenPositions,
	)
}

// StatusFunc supplies the current engine snapshot for the /status endpoint.
type StatusFunc func() signal.StatusSnapshot

// PositionsFunc supplies the open-position view for the /positions endpoint.
type PositionsFunc func() any

// Serve starts the HTTP listener. Pass nil funcs to disable the JSON routes.
func Serve(addr string, status StatusFunc, positions PositionsFunc) *http.Server {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler())
	if status != nil {
		router.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, status())
		}).Methods(http.MethodGet)
	}
	if positions != nil {
		router.HandleFunc("/positions", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, positions())
		}).Methods(http.MethodGet)
	}

	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
