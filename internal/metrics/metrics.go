// SPDX-License-Identifier: AGPL-3.0-only

// Package metrics registers the Prometheus collectors of the feed engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ordinary"

var (
	FetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "feed",
		Name:      "fetches_total",
		Help:      "Page fetches by subject kind and result.",
	}, []string{"subject", "result"})

	DroppedRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "feed",
		Name:      "dropped_records_total",
		Help:      "Records dropped because their variant did not match the subject.",
	}, []string{"subject", "type"})

	WritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "feed",
		Name:      "writes_total",
		Help:      "Protocol writes by kind and result.",
	}, []string{"kind", "result"})

	ReconcileOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reconciler",
		Name:      "outcomes_total",
		Help:      "Finished reconciliation cycles by outcome.",
	}, []string{"outcome"})

	ReconcileAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "reconciler",
		Name:      "attempts",
		Help:      "Verification attempts used per finished cycle.",
		Buckets:   []float64{0, 1, 2, 3, 5, 8},
	})

	OpenSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "feed",
		Name:      "open_sessions",
		Help:      "Feed sessions currently owned by a UI scope.",
	})
)
