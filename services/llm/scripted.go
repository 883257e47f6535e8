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
	"context"
	"sync"
)

// RespondFunc produces the completions for one request. It receives the
// flattened prompt text and the requested N.
type RespondFunc func(prompt string, n int) ([]string, error)

// ScriptedClient is a deterministic Client for tests and dry runs.
//
// Token usage is estimated from text length and recorded into Usage just
// like a real backend would report it.
//
// Thread Safety: Safe for concurrent use.
type ScriptedClient struct {
	Respond RespondFunc
	Usage   *Usage

	mu       sync.Mutex
	requests []Request
}

// NewScriptedClient returns a client that answers with respond.
func NewScriptedClient(respond RespondFunc, usage *Usage) *ScriptedClient {
	return &ScriptedClient{Respond: respond, Usage: usage}
}

// Complete implements Client.
func (s *ScriptedClient) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(req.Messages) == 0 {
		return nil, ErrEmptyPrompt
	}
	n := max(req.N, 1)

	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	prompt := flatten(req.Messages)
	texts, err := s.Respond(prompt, n)
	if err != nil {
		return nil, err
	}

	usage := TokenCounts{PromptTokens: estimateTokens(prompt) * int64(len(splitBatches(n)))}
	for _, t := range texts {
		usage.CompletionTokens += estimateTokens(t)
	}
	s.Usage.Record(usage)
	return &Response{Texts: texts, Usage: usage}, nil
}

// Calls returns the number of Complete calls that reached Respond.
func (s *ScriptedClient) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Requests returns a copy of every request seen so far.
func (s *ScriptedClient) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Fixed returns a RespondFunc that repeats text n times.
func Fixed(text string) RespondFunc {
	return func(_ string, n int) ([]string, error) {
		out := make([]string, n)
		for i := range out {
			out[i] = text
		}
		return out, nil
	}
}

func flatten(msgs []Message) string {
	if len(msgs) == 1 {
		return msgs[0].Content
	}
	var size int
	for _, m := range msgs {
		size += len(m.Content) + 1
	}
	b := make([]byte, 0, size)
	for i, m := range msgs {
		if i > 0 {
			b = append(b, '\n')
		}
		b = append(b, m.Content...)
	}
	return string(b)
}
