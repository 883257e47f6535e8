// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package search

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("thoughttree.search")

var (
	stepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "thoughttree_search_steps_total",
		Help: "Search steps completed by task and result",
	}, []string{"task", "result"})

	stepCandidates = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "thoughttree_search_step_candidates",
		Help:    "Candidates generated per search step",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1 to 512
	}, []string{"task"})

	stepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "thoughttree_search_step_duration_seconds",
		Help:    "Search step duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~200s
	}, []string{"task"})
)
