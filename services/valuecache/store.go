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
)

// Store is the task-lifetime backing for cached scores.
//
// Entries are never evicted. Keys are exact evaluation prompts.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the score stored under key and whether it exists.
	Get(ctx context.Context, key string) (float64, bool, error)

	// Put stores score under key, replacing any previous value.
	Put(ctx context.Context, key string, score float64) error

	// Len returns the number of stored entries.
	Len() int

	// Close releases resources held by the store.
	Close() error
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]float64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]float64)}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) (float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[key]
	return v, ok, nil
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, key string, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = score
	return nil
}

// Len implements Store.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }
