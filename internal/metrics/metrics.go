// Package metrics provides Prometheus instrumentation for the matchpoint
// core: gauges for live connections and rooms, counters for message and
// match throughput.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ConnectionsActive tracks the current number of WebSocket connections
	// that passed the gate.
	ConnectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "matchpoint_connections_active",
		Help: "Current number of active chat connections",
	})

	// RoomsActive tracks the current number of rooms with at least one
	// joined connection.
	RoomsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "matchpoint_rooms_active",
		Help: "Current number of chat rooms with joined connections",
	})

	// MessagesTotal counts inbound chat frames by outcome: "delivered",
	// "rejected" (validation failure) or "failed" (persistence failure).
	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "matchpoint_messages_total",
		Help: "Total number of chat messages processed",
	}, []string{"outcome"})

	// MatchesCreated counts mutual matches created by the swipe engine.
	MatchesCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "matchpoint_matches_created_total",
		Help: "Total number of matches created",
	})

	// MatchesDestroyed counts matches torn down by block or unmatch.
	MatchesDestroyed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "matchpoint_matches_destroyed_total",
		Help: "Total number of matches torn down",
	})
)

func init() {
	prometheus.MustRegister(
		ConnectionsActive,
		RoomsActive,
		MessagesTotal,
		MatchesCreated,
		MatchesDestroyed,
	)
}
