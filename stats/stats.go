// Copyright 2015 go-fuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package stats exports the engine-side drain metrics. The hot target-side
// paths (byteset writes, TORC inserts) never touch these; only the observer
// does, once per sweep.
package stats

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sweeps counts byte-set drain cycles.
	Sweeps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "millipede_sweeps_total",
		Help: "Byte-set drain sweeps performed by the observer.",
	})

	// DrainedBytes counts non-zero counters reported by sweeps.
	DrainedBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "millipede_drained_bytes_total",
		Help: "Non-zero counter bytes reported by drain sweeps.",
	})

	// SinkDrops counts features lost to full feature sinks.
	SinkDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "millipede_sink_drops_total",
		Help: "Features dropped because a bounded feature sink was full.",
	})

	// NewFeatures counts first-time features per domain.
	NewFeatures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "millipede_new_features_total",
		Help: "Features observed for the first time, by domain.",
	}, []string{"domain"})
)
