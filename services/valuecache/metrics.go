// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package valuecache

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("thoughttree.valuecache")

var (
	cacheHits     metric.Int64Counter
	cacheMisses   metric.Int64Counter
	cacheComputes metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		cacheHits, err = meter.Int64Counter(
			"value_cache_hits_total",
			metric.WithDescription("Value cache hits by scope"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheMisses, err = meter.Int64Counter(
			"value_cache_misses_total",
			metric.WithDescription("Value cache misses"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheComputes, err = meter.Int64Counter(
			"value_cache_computes_total",
			metric.WithDescription("Scores computed by the model, by whether the call was shared"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordHit(ctx context.Context, scope string) {
	if err := initMetrics(); err != nil {
		return
	}
	cacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("scope", scope)))
}

func recordMiss(ctx context.Context) {
	if err := initMetrics(); err != nil {
		return
	}
	cacheMisses.Add(ctx, 1)
}

func recordCompute(ctx context.Context, shared bool) {
	if err := initMetrics(); err != nil {
		return
	}
	cacheComputes.Add(ctx, 1, metric.WithAttributes(attribute.Bool("shared", shared)))
}
