// Package metrics exposes Prometheus instrumentation for the ordering core.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "sawt"

var (
	global *Metrics
	once   sync.Once
)

// Metrics holds the process-wide collectors.
type Metrics struct {
	TurnsTotal        *prometheus.CounterVec
	TurnDuration      prometheus.Histogram
	ActiveTurns       prometheus.Gauge
	PhaseTransitions  *prometheus.CounterVec
	OrdersConfirmed   prometheus.Counter
	LLMRequestsTotal  *prometheus.CounterVec
	LookupRetries     *prometheus.CounterVec
	MenuSearchesTotal *prometheus.CounterVec
}

// Get returns the collectors, registering them on first use.
//
// Metrics:
//   - sawt_turns_total{phase,result}
//   - sawt_turn_duration_seconds
//   - sawt_active_turns
//   - sawt_phase_transitions_total{from,to}
//   - sawt_orders_confirmed_total
//   - sawt_llm_requests_total{provider,result}
//   - sawt_lookup_retries_total{service}
//   - sawt_menu_searches_total{source}
func Get() *Metrics {
	once.Do(func() {
		global = &Metrics{
			TurnsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "turns_total",
					Help:      "Conversation turns handled, by phase at turn start and result.",
				},
				[]string{"phase", "result"}, // result: ok, rejected, error
			),
			TurnDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "turn_duration_seconds",
					Help:      "Wall time of one turn including agent calls.",
					Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
				},
			),
			ActiveTurns: promauto.NewGauge(
				prometheus.GaugeOpts{
					Namespace: namespace,
					Name:      "active_turns",
					Help:      "Turns currently holding a session lock.",
				},
			),
			PhaseTransitions: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "phase_transitions_total",
					Help:      "Committed phase changes.",
				},
				[]string{"from", "to"},
			),
			OrdersConfirmed: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "orders_confirmed_total",
					Help:      "Orders confirmed and persisted.",
				},
			),
			LLMRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "llm_requests_total",
					Help:      "Chat completion calls by provider and result.",
				},
				[]string{"provider", "result"}, // result: ok, rejected, error
			),
			LookupRetries: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "lookup_retries_total",
					Help:      "Retried read-only lookups by service.",
				},
				[]string{"service"},
			),
			MenuSearchesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "menu_searches_total",
					Help:      "Menu searches by the source that answered.",
				},
				[]string{"source"}, // vector, keyword, none
			),
		}
	})
	return global
}
