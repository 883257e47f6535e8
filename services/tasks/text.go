// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tasks

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// textScoreSamples is how many coherency judgements grade one passage.
const textScoreSamples = 5

var coherencyRe = regexp.MustCompile(`coherency score is (\d+)`)

// Text writes a four-paragraph passage ending in given sentences.
type Text struct {
	base
	data []string
}

// NewText builds the task over one input per line.
func NewText(data []string, deps Deps) *Text {
	deps = deps.withDefaults()
	return &Text{
		base: base{
			kind:   KindText,
			steps:  2,
			stops:  [][]string{{"\nPassage:\n"}, nil},
			gen:    deps.Generator,
			logger: deps.Logger,
		},
		data: data,
	}
}

func (t *Text) Len() int { return len(t.data) }

func (t *Text) Input(index int) (string, error) {
	if err := checkIndex(index, len(t.data)); err != nil {
		return "", err
	}
	return t.data[index], nil
}

func (t *Text) Generate(ctx context.Context, x, y string, method GenerateMethod, n int, style PromptStyle, stop []string) ([]string, error) {
	if method != GenerateSample {
		return nil, fmt.Errorf("%w: text generate %v", ErrUnsupportedMode, method)
	}
	tmpl := textStandardPrompt
	if style == StyleCoT {
		tmpl = textCoTPrompt
	}
	return t.sample(ctx, tmpl, x, y, n, stop)
}

func (t *Text) Evaluate(ctx context.Context, _ string, ys []string, method EvaluateMethod, n int) ([]float64, error) {
	if method != EvaluateVote {
		return nil, fmt.Errorf("%w: text evaluate %v", ErrUnsupportedMode, method)
	}
	return t.vote(ctx, ys, n)
}

// TestOutput scores the passage after the last "Passage:\n" by the mean
// of several coherency judgements. Judgements without a score are
// dropped; none at all yields 0.
func (t *Text) TestOutput(ctx context.Context, index int, output string) (Rewards, error) {
	if err := checkIndex(index, len(t.data)); err != nil {
		return Rewards{}, err
	}
	passage := output
	if i := strings.LastIndex(output, "Passage:\n"); i >= 0 {
		passage = output[i+len("Passage:\n"):]
	}

	outs, err := t.gen.Generate(ctx, textScorePrompt+passage, textScoreSamples, nil)
	if err != nil {
		return Rewards{}, fmt.Errorf("text score: %w", err)
	}

	scores := make([]int, 0, len(outs))
	for _, out := range outs {
		m := coherencyRe.FindStringSubmatch(out)
		if m == nil {
			t.logger.Debug("score no match", "output", out)
			continue
		}
		s, err := strconv.Atoi(m[1])
		if err != nil {
			t.logger.Debug("score not an integer", "score", m[1])
			continue
		}
		scores = append(scores, s)
	}

	r := Rewards{Rs: scores}
	if len(scores) > 0 {
		sum := 0
		for _, s := range scores {
			sum += s
		}
		r.R = float64(sum) / float64(len(scores))
	}
	return r, nil
}
