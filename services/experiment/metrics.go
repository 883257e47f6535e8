// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package experiment

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	instancesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "thoughttree_run_instances_total",
		Help: "Problem instances processed by task and result",
	}, []string{"task", "result"})

	instanceReward = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "thoughttree_run_instance_reward",
		Help:    "Mean reward over the graded outputs of one instance",
		Buckets: []float64{0, 0.1, 0.25, 0.5, 0.75, 1, 2.5, 5, 7.5, 10},
	}, []string{"task"})

	runCost = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "thoughttree_run_cost_dollars",
		Help: "Estimated spend so far by backend",
	}, []string{"backend"})
)
