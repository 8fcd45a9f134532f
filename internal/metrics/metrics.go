package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "slotcoord"

var (
	// MigrationsTotal counts migrations by terminal state.
	MigrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "migrations_total",
			Help:      "Migrations that reached a terminal state",
		},
		[]string{"state"}, // completed/failed/aborted
	)

	// MigrationTransitions counts state machine transitions.
	MigrationTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "migration_transitions_total",
			Help:      "Migration state transitions",
		},
		[]string{"from", "to"},
	)

	// MigrationStepDuration measures how long each state took.
	MigrationStepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "migration_step_duration_seconds",
			Help:      "Time spent in each migration state",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 15, 60, 300},
		},
		[]string{"state"},
	)

	// MigrationsInFlight tracks non-terminal jobs.
	MigrationsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "migrations_in_flight",
			Help:      "Migrations not yet in a terminal state",
		},
	)

	// MigrationWorkers tracks the migration worker pool.
	MigrationWorkers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "migration_workers",
			Help:      "Migration jobs executing on or waiting for a worker",
		},
		[]string{"state"}, // running/queued
	)

	// ChecksumMismatches counts failed verifications.
	ChecksumMismatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checksum_mismatches_total",
			Help:      "Slot digests that differed between source and destination",
		},
	)

	// RecordsCopied counts version records moved by completed copy steps.
	RecordsCopied = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_copied_total",
			Help:      "Version records transferred between servers",
		},
	)

	// Servers tracks servers per status.
	Servers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "servers",
			Help:      "Known metadata servers by status",
		},
		[]string{"status"}, // active/suspect/leaving/gone
	)

	// SlotsOwned tracks permanently owned slots per server.
	SlotsOwned = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "slots_owned",
			Help:      "Slots owned by each server",
		},
		[]string{"server"},
	)

	// SnapshotSaves counts snapshot writes.
	SnapshotSaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_saves_total",
			Help:      "Snapshot save attempts",
		},
		[]string{"status"}, // success/error
	)

	// DataPlaneRPCs counts outbound data-plane calls.
	DataPlaneRPCs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dataplane_rpcs_total",
			Help:      "Outbound data-plane RPCs",
		},
		[]string{"op", "status"},
	)

	// BreakerTransitions counts circuit breaker state changes.
	BreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_transitions_total",
			Help:      "Circuit breaker state changes per peer",
		},
		[]string{"peer", "to"},
	)

	// MovedSlots tracks slots a metadata server released and now redirects.
	MovedSlots = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "moved_slots",
			Help:      "Slots released to another metadata server",
		},
	)

	// FencedSlots tracks slots a metadata server currently refuses writes for.
	FencedSlots = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fenced_slots",
			Help:      "Slots under a write fence on this metadata server",
		},
	)
)
