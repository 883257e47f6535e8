// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides the completion client used by the search engine.
//
// A Client turns a list of chat messages plus sampling parameters into N
// text completions. Implementations own their retry policy: callers never
// retry themselves and only see an error once retries are exhausted.
//
// Token usage is recorded into an explicitly owned Usage accumulator that
// the caller passes in at construction time. There is no package-level
// mutable state.
package llm

import (
	"context"
	"strings"
)

// MaxBatchSize is the largest N sent in a single underlying request.
// Larger requests are split into sequential sub-batches.
const MaxBatchSize = 20

// DefaultMaxTokens is the completion budget used when a request leaves
// MaxTokens unset.
const DefaultMaxTokens = 1000

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single chat message.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserPrompt wraps a prompt as a single user message.
func UserPrompt(prompt string) []Message {
	return []Message{{Role: RoleUser, Content: prompt}}
}

// Request describes one completion call.
type Request struct {
	// Messages is the conversation to complete. Must not be empty.
	Messages []Message `json:"messages"`

	// Model is the backend model identifier (e.g. "gpt-4").
	Model string `json:"model"`

	// Temperature is the sampling temperature.
	Temperature float64 `json:"temperature"`

	// MaxTokens caps each completion. Zero means DefaultMaxTokens.
	MaxTokens int `json:"max_tokens"`

	// N is the number of completions requested. Values < 1 are treated as 1.
	N int `json:"n"`

	// Stop holds optional stop sequences.
	Stop []string `json:"stop,omitempty"`
}

// TokenCounts is the usage reported for one call.
type TokenCounts struct {
	CompletionTokens int64 `json:"completion_tokens"`
	PromptTokens     int64 `json:"prompt_tokens"`
}

// Add returns the element-wise sum of two counts.
func (t TokenCounts) Add(o TokenCounts) TokenCounts {
	return TokenCounts{
		CompletionTokens: t.CompletionTokens + o.CompletionTokens,
		PromptTokens:     t.PromptTokens + o.PromptTokens,
	}
}

// Response is the result of a completion call.
type Response struct {
	// Texts holds one entry per completion, in request order.
	Texts []string `json:"texts"`

	// Usage is the token usage summed over all sub-batches.
	Usage TokenCounts `json:"usage"`
}

// Client produces text completions.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Client interface {
	// Complete requests req.N completions.
	//
	// Inputs:
	//   - ctx: Context for cancellation. Must not be nil.
	//   - req: The request. Messages must not be empty.
	//
	// Outputs:
	//   - *Response: Completions and token usage. Never nil on success.
	//   - error: ErrEmptyPrompt for invalid input, ErrRetriesExhausted when
	//     transient failures outlast the retry policy, or a non-retryable
	//     backend error.
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Generator is a convenience wrapper that binds a Client to fixed sampling
// parameters, so tasks only pass the prompt, n and stop.
type Generator struct {
	Client      Client
	Model       string
	Temperature float64
	MaxTokens   int
}

// Generate sends prompt as a single user message and returns the texts.
func (g Generator) Generate(ctx context.Context, prompt string, n int, stop []string) ([]string, error) {
	resp, err := g.Client.Complete(ctx, Request{
		Messages:    UserPrompt(prompt),
		Model:       g.Model,
		Temperature: g.Temperature,
		MaxTokens:   g.MaxTokens,
		N:           n,
		Stop:        stop,
	})
	if err != nil {
		return nil, err
	}
	return resp.Texts, nil
}

// splitBatches splits n into chunks of at most MaxBatchSize.
func splitBatches(n int) []int {
	if n < 1 {
		n = 1
	}
	var batches []int
	for n > 0 {
		cnt := min(n, MaxBatchSize)
		batches = append(batches, cnt)
		n -= cnt
	}
	return batches
}

// estimateTokens approximates a token count at ~4 characters per token.
func estimateTokens(text string) int64 {
	n := len(strings.TrimSpace(text))
	if n == 0 {
		return 0
	}
	return int64((n + 3) / 4)
}
