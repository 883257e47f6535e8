// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package valuecache memoizes evaluation scores by their exact prompt.
//
// There are two scopes. The task-lifetime Cache lives for a whole run and
// is optionally persisted. A Local is created for one evaluation call and
// detects duplicate candidates within it by their text. Lookups go Local, then Cache,
// then the model; fresh scores are written to both scopes.
package valuecache

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// DuplicatePolicy decides what a duplicate within one evaluation scores.
type DuplicatePolicy string

const (
	// DuplicateZero scores repeated candidates 0 so the selection does not
	// pick the same state twice.
	DuplicateZero DuplicatePolicy = "zero"

	// DuplicateReuse gives repeated candidates the cached score.
	DuplicateReuse DuplicatePolicy = "reuse"
)

// ParseDuplicatePolicy validates a policy name. Empty means zero.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch DuplicatePolicy(s) {
	case "", DuplicateZero:
		return DuplicateZero, nil
	case DuplicateReuse:
		return DuplicateReuse, nil
	default:
		return "", fmt.Errorf("unknown duplicate policy %q", s)
	}
}

// ComputeFunc produces a fresh score, usually by calling the model.
type ComputeFunc func(ctx context.Context) (float64, error)

// Options configures a Cache.
type Options struct {
	// Store backs the task-lifetime scope. Nil uses a MemoryStore.
	Store Store

	// Enabled toggles the task-lifetime scope. The local scope is always on.
	Enabled bool

	// Duplicates is the local duplicate policy.
	Duplicates DuplicatePolicy

	// Namespace prefixes every store key. Runs that share a persistent
	// store only share scores within one namespace.
	Namespace string

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Stats counts cache outcomes since construction.
type Stats struct {
	LocalHits  int64 `json:"local_hits"`
	StoreHits  int64 `json:"store_hits"`
	Misses     int64 `json:"misses"`
	StoreSize  int   `json:"store_size"`
	StoreError int64 `json:"store_errors"`
}

// Cache is the task-lifetime score cache.
//
// Thread Safety: Safe for concurrent use. Identical concurrent computations
// for the same prompt are collapsed into one.
type Cache struct {
	store     Store
	enabled   bool
	policy    DuplicatePolicy
	namespace string
	group     singleflight.Group
	logger    *slog.Logger

	localHits atomic.Int64
	storeHits atomic.Int64
	misses    atomic.Int64
	storeErrs atomic.Int64
}

// New creates a Cache.
func New(opts Options) *Cache {
	store := opts.Store
	if store == nil {
		store = NewMemoryStore()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	policy := opts.Duplicates
	if policy == "" {
		policy = DuplicateZero
	}
	return &Cache{
		store:     store,
		enabled:   opts.Enabled,
		policy:    policy,
		namespace: opts.Namespace,
		logger:    logger,
	}
}

// Enabled reports whether the task-lifetime scope is consulted.
func (c *Cache) Enabled() bool {
	return c.enabled
}

// Len returns the number of task-lifetime entries.
func (c *Cache) Len() int {
	return c.store.Len()
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	return Stats{
		LocalHits:  c.localHits.Load(),
		StoreHits:  c.storeHits.Load(),
		Misses:     c.misses.Load(),
		StoreSize:  c.store.Len(),
		StoreError: c.storeErrs.Load(),
	}
}

// Close closes the backing store.
func (c *Cache) Close() error {
	return c.store.Close()
}

// NewLocal starts a per-evaluation scope.
func (c *Cache) NewLocal() *Local {
	return &Local{
		cache:   c,
		seen:    make(map[string]float64),
		prompts: make(map[string]float64),
	}
}

// Local is the per-evaluation scope. Duplicates are detected by
// candidate, while scores are shared by prompt, so two different
// candidates that reduce to one prompt get the same score.
//
// Thread Safety: Not safe for concurrent use.
type Local struct {
	cache   *Cache
	seen    map[string]float64
	prompts map[string]float64
}

// Score returns the score of the candidate identified by key, whose
// evaluation prompt is prompt. It consults the candidates already seen
// in this Local, then prompts already scored in this Local, then the
// task-lifetime store, then compute.
//
// Outputs:
//   - float64: The score. A repeated key within this Local scores 0
//     under DuplicateZero.
//   - error: Only errors from compute. Store failures are logged and
//     treated as misses.
func (l *Local) Score(ctx context.Context, key, prompt string, compute ComputeFunc) (float64, error) {
	c := l.cache

	if v, ok := l.seen[key]; ok {
		c.localHits.Add(1)
		recordHit(ctx, "local")
		if c.policy == DuplicateZero {
			return 0, nil
		}
		return v, nil
	}

	if v, ok := l.prompts[prompt]; ok {
		c.localHits.Add(1)
		recordHit(ctx, "local")
		l.seen[key] = v
		return v, nil
	}

	skey := c.namespace + prompt
	if c.enabled {
		v, ok, err := c.store.Get(ctx, skey)
		if err != nil {
			c.storeErrs.Add(1)
			c.logger.Warn("value cache lookup failed", "error", err)
		}
		if ok {
			c.storeHits.Add(1)
			recordHit(ctx, "store")
			l.remember(key, prompt, v)
			return v, nil
		}
	}

	c.misses.Add(1)
	recordMiss(ctx)

	res, err, shared := c.group.Do(skey, func() (interface{}, error) {
		return compute(ctx)
	})
	if err != nil {
		return 0, err
	}
	v := res.(float64)
	recordCompute(ctx, shared)

	l.remember(key, prompt, v)
	if c.enabled {
		if err := c.store.Put(ctx, skey, v); err != nil {
			c.storeErrs.Add(1)
			c.logger.Warn("value cache write failed", "error", err)
		}
	}
	return v, nil
}

func (l *Local) remember(key, prompt string, v float64) {
	l.seen[key] = v
	l.prompts[prompt] = v
}
