// Package metrics defines the Prometheus instrumentation exposed by
// liteDB, grounded on the reference vulture's metrics.go: package-level
// collectors constructed once and registered in init().
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "litedb"

var (
	// CommandsTotal counts every command dispatched by the engine, labeled
	// by command name and outcome ("ok" or "err").
	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "total number of commands executed, by command name and outcome",
		},
		[]string{"command", "outcome"},
	)

	// ConnectionsActive is the current number of open client connections.
	ConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "number of currently open client connections",
		},
	)

	// ConnectionsTotal counts every accepted connection since startup.
	ConnectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "total number of accepted client connections",
		},
	)

	// AOFWritesTotal counts every command appended to the append-only log.
	AOFWritesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aof_writes_total",
			Help:      "total number of commands appended to the AOF",
		},
	)

	// AOFFlushesTotal counts every periodic flush of the AOF buffer to the OS.
	AOFFlushesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aof_flushes_total",
			Help:      "total number of AOF flush cycles completed",
		},
	)

	// ReplayedCommandsTotal counts commands re-executed from the AOF at
	// startup.
	ReplayedCommandsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replayed_commands_total",
			Help:      "total number of commands replayed from the AOF at startup",
		},
	)
)

func init() {
	prometheus.MustRegister(
		CommandsTotal,
		ConnectionsActive,
		ConnectionsTotal,
		AOFWritesTotal,
		AOFFlushesTotal,
		ReplayedCommandsTotal,
	)
}
