// Package metrics exposes Prometheus collectors for the poll loops and the
// local API.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "crease"

var (
	// FetchTotal counts poll cycles by loop and outcome
	FetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fetch_total",
		Help:      "Poll cycles by loop and outcome.",
	}, []string{"loop", "outcome"})

	// FetchDuration tracks upstream fetch latency
	FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "fetch_duration_seconds",
		Help:      "Upstream fetch latency.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
	}, []string{"loop"})

	// ExtractionStrategy counts which fallback strategy produced each field
	ExtractionStrategy = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "extraction_strategy_total",
		Help:      "Extraction strategy hits per field; strategy=none when every strategy missed.",
	}, []string{"field", "strategy"})

	// DetailDiscarded counts detail results dropped because the selection moved on
	DetailDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "detail_discarded_total",
		Help:      "Detail results discarded because the target changed mid-fetch.",
	})

	// EventsDropped counts UI events dropped by the dispatcher
	EventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_dropped_total",
		Help:      "Events not delivered to listeners.",
	}, []string{"type", "reason"})

	// WebSocketClients is the number of connected widget sockets
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ws_clients",
		Help:      "Connected WebSocket clients.",
	})
)

// ObserveStrategy records an extraction strategy hit.
func ObserveStrategy(field, strategy string) {
	ExtractionStrategy.WithLabelValues(field, strategy).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
