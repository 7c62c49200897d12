// Package telemetry provides Prometheus metrics, tracing and correlation-id aware logging helpers.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Messages counts inbound messages by how the pipeline finished with them.
	Messages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keeper_messages_total",
		Help: "Inbound messages by pipeline outcome",
	}, []string{"outcome"})

	// Commands counts routed commands by name and the handler group that claimed them.
	Commands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keeper_commands_total",
		Help: "Commands handled by handler group",
	}, []string{"command", "group"})

	// Failures counts handler errors by kind.
	Failures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keeper_handler_failures_total",
		Help: "Handler failures by error kind",
	}, []string{"kind"})

	Warnings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "keeper_warnings_issued_total",
		Help: "Warnings issued to members",
	})

	Removals = promauto.NewCounter(prometheus.CounterOpts{
		Name: "keeper_members_removed_total",
		Help: "Members removed after reaching the warning threshold",
	})

	// Games counts game session transitions by kind and event (started, won, lost, draw, forfeited, finished).
	Games = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keeper_game_events_total",
		Help: "Game session events by kind",
	}, []string{"kind", "event"})

	HandleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "keeper_message_handle_duration_seconds",
		Help:    "Time spent handling one inbound message",
		Buckets: prometheus.DefBuckets,
	})
)

// TimeFunc measures the duration of fn and records it in obs if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}
