// Package metrics defines the Prometheus instrumentation for the key
// management service and the side-port metrics server that exposes it.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SealsTotal counts newly sealed records.
	SealsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medchain_seals_total",
		Help: "Total number of records sealed",
	})

	// OpensTotal counts successful document opens.
	OpensTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medchain_opens_total",
		Help: "Total number of successful document opens",
	})

	// GrantsTotal counts committed access grants.
	GrantsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medchain_grants_total",
		Help: "Total number of access grants committed",
	})

	// RevocationsTotal counts revocations, including idempotent repeats.
	RevocationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medchain_revocations_total",
		Help: "Total number of access revocations",
	})

	// RotationsTotal counts key rotations by result: ok, partial, error.
	RotationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medchain_rotations_total",
		Help: "Total number of key rotations by result",
	}, []string{"result"})
)
