// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// completionRequests counts sub-batch requests by model and result.
	completionRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "thoughttree_llm_requests_total",
		Help: "Completion sub-batch requests by model and result",
	}, []string{"model", "result"})

	// completionRetries counts attempts beyond the first.
	completionRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "thoughttree_llm_retries_total",
		Help: "Completion retries by model",
	}, []string{"model"})

	// completionTokens counts tokens by model and kind (prompt|completion).
	completionTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "thoughttree_llm_tokens_total",
		Help: "Tokens consumed by model and kind",
	}, []string{"model", "kind"})

	// completionDuration tracks sub-batch latency including retries.
	completionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "thoughttree_llm_request_duration_seconds",
		Help:    "Completion sub-batch duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
	}, []string{"model"})
)

func recordTokens(model string, t TokenCounts) {
	completionTokens.WithLabelValues(model, "prompt").Add(float64(t.PromptTokens))
	completionTokens.WithLabelValues(model, "completion").Add(float64(t.CompletionTokens))
}
