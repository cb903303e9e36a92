// README: Prometheus counters for ride transitions.
package ride

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ride_transitions_total",
			Help: "Committed ride status transitions by target status.",
		},
		[]string{"to"},
	)

	conflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ride_transition_conflicts_total",
			Help: "Ride transitions rejected because another request won.",
		},
		[]string{"to"},
	)
)
