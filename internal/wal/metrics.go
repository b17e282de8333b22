// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package wal

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	walWrites = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wal_writes_total",
		Help: "Total events written to the WAL",
	})

	walConfirms = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wal_confirms_total",
		Help: "Total WAL entries confirmed after a successful publish",
	})

	walRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wal_retries_total",
		Help: "Total failed publish attempts recorded against WAL entries",
	})

	walPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wal_pending_entries",
		Help: "WAL entries awaiting a successful publish",
	})

	walWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wal_write_failures_total",
		Help: "Events published without WAL durability because the write failed",
	})

	walDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wal_entries_dropped_total",
		Help: "WAL entries removed without being published",
	}, []string{"reason"}) // expired, max_retries

	walGCRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wal_gc_runs_total",
		Help: "Total value log garbage collection runs",
	})
)
