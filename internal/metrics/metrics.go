// Package metrics exposes the supervisor's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SpawnsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "supervisor_spawns_total",
		Help: "Total number of child spawn attempts.",
	})

	NotificationsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "supervisor_notifications_dropped_total",
		Help: "Total number of forwarded notifications dropped (no upstream sink, or send failure).",
	})

	LiveAgents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "supervisor_live_agents",
		Help: "Number of child sessions currently registered.",
	})

	PendingApprovals = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "supervisor_pending_approvals",
		Help: "Number of approval requests currently awaiting a decision.",
	})

	StaleResponsesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "supervisor_stale_responses_total",
		Help: "Total number of child responses dropped for an id we no longer track (late or unsolicited).",
	})
)

// Handler returns the HTTP handler serving the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
