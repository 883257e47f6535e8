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
	"fmt"
	"sync/atomic"
)

// Backend names a supported completion model.
type Backend string

const (
	BackendGPT4  Backend = "gpt-4"
	BackendGPT35 Backend = "gpt-3.5-turbo"
)

// ParseBackend validates a backend name.
func ParseBackend(s string) (Backend, error) {
	switch Backend(s) {
	case BackendGPT4, BackendGPT35:
		return Backend(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBackend, s)
	}
}

// Cost returns the USD cost of the given token counts on this backend.
//
// gpt-4 bills completion tokens at $0.06/1k and prompt tokens at
// $0.03/1k. gpt-3.5-turbo bills all tokens at $0.0002/1k. Unknown
// backends cost nothing.
func (b Backend) Cost(t TokenCounts) float64 {
	completion := float64(t.CompletionTokens)
	prompt := float64(t.PromptTokens)
	switch b {
	case BackendGPT4:
		return completion/1000*0.06 + prompt/1000*0.03
	case BackendGPT35:
		return (completion + prompt) / 1000 * 0.0002
	default:
		return 0
	}
}

// UsageReport is a point-in-time view of accumulated usage.
type UsageReport struct {
	CompletionTokens int64   `json:"completion_tokens"`
	PromptTokens     int64   `json:"prompt_tokens"`
	Cost             float64 `json:"cost"`
}

// Usage accumulates token counts across completion calls.
//
// A Usage is owned by whoever constructs the client and is read by the
// experiment runner. The zero value is ready to use.
//
// Thread Safety: Safe for concurrent use.
type Usage struct {
	completionTokens atomic.Int64
	promptTokens     atomic.Int64
	calls            atomic.Int64
}

// NewUsage returns an empty accumulator.
func NewUsage() *Usage {
	return &Usage{}
}

// Record adds the counts of one call.
func (u *Usage) Record(t TokenCounts) {
	if u == nil {
		return
	}
	u.completionTokens.Add(t.CompletionTokens)
	u.promptTokens.Add(t.PromptTokens)
	u.calls.Add(1)
}

// Totals returns the accumulated token counts.
func (u *Usage) Totals() TokenCounts {
	if u == nil {
		return TokenCounts{}
	}
	return TokenCounts{
		CompletionTokens: u.completionTokens.Load(),
		PromptTokens:     u.promptTokens.Load(),
	}
}

// Calls returns the number of recorded calls.
func (u *Usage) Calls() int64 {
	if u == nil {
		return 0
	}
	return u.calls.Load()
}

// Report returns totals together with their cost on backend.
func (u *Usage) Report(backend Backend) UsageReport {
	t := u.Totals()
	return UsageReport{
		CompletionTokens: t.CompletionTokens,
		PromptTokens:     t.PromptTokens,
		Cost:             backend.Cost(t),
	}
}

// Reset zeroes all counters.
func (u *Usage) Reset() {
	if u == nil {
		return
	}
	u.completionTokens.Store(0)
	u.promptTokens.Store(0)
	u.calls.Store(0)
}
