// Package metrics holds the Prometheus collectors for core operations.
package metrics

import (
	"github.com/debemdeboas/quill/internal/apperr"
	"github.com/prometheus/client_golang/prometheus"
)

const OutcomeOK = "ok"

var (
	Operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "quill", Name: "operations_total", Help: "Session and content operations by outcome."},
		[]string{"op", "outcome"},
	)
	Workspaces = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: "quill", Name: "workspaces", Help: "Client workspaces currently held in memory."},
	)
	EventClients = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: "quill", Name: "sse_clients", Help: "Connected change-feed clients."},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(Operations)
	reg.MustRegister(Workspaces)
	reg.MustRegister(EventClients)
}

// Observe counts one call of op. Failures are labeled with their error kind.
func Observe(op string, err error) {
	Operations.WithLabelValues(op, Outcome(err)).Inc()
}

func Outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	return apperr.KindOf(err).String()
}
