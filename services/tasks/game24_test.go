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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/thoughttree/services/llm"
	"github.com/AleutianAI/thoughttree/services/valuecache"
)

// testDeps wires a scripted client into task deps.
func testDeps(respond llm.RespondFunc) (Deps, *llm.ScriptedClient, *llm.Usage) {
	usage := llm.NewUsage()
	client := llm.NewScriptedClient(respond, usage)
	return Deps{
		Generator: llm.Generator{Client: client, Model: "gpt-4", Temperature: 0.7},
		Cache:     valuecache.New(valuecache.Options{Enabled: true}),
	}, client, usage
}

func cycle(outputs ...string) llm.RespondFunc {
	return func(_ string, n int) ([]string, error) {
		out := make([]string, n)
		for i := range out {
			out[i] = outputs[i%len(outputs)]
		}
		return out, nil
	}
}

func newGame24(t *testing.T, respond llm.RespondFunc) (*Game24, *llm.ScriptedClient, *llm.Usage) {
	t.Helper()
	deps, client, usage := testDeps(respond)
	return NewGame24([]string{"4 4 6 8", "1 1 4 6"}, deps), client, usage
}

func TestGame24_StepsAndStops(t *testing.T) {
	g, _, _ := newGame24(t, cycle("x"))
	assert.Equal(t, 4, g.Steps())
	for step := 0; step < 4; step++ {
		assert.Equal(t, []string{"\n"}, g.Stop(step))
	}
	assert.Nil(t, g.Stop(4))

	x, err := g.Input(1)
	require.NoError(t, err)
	assert.Equal(t, "1 1 4 6", x)

	_, err = g.Input(2)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestGame24_ValueScoring(t *testing.T) {
	g, client, _ := newGame24(t, cycle("4 6 12\n4 + 6 + 12 = 22\nsure", "likely", "12 * 4 = 48\nimpossible"))

	values, err := g.Evaluate(t.Context(), "4 4 6 8", []string{"4 + 8 = 12 (left: 4 6 12)\n"}, EvaluateValue, 3)
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.InDelta(t, 21.001, values[0], 1e-9)

	reqs := client.Requests()
	require.Len(t, reqs, 1)
	prompt := reqs[0].Messages[0].Content
	assert.True(t, strings.HasSuffix(prompt, "impossible\n4 6 12\n"), prompt)
	assert.Equal(t, 3, reqs[0].N)
}

func TestGame24_ValueFinalAnswerPrompt(t *testing.T) {
	g, client, _ := newGame24(t, cycle("sure"))
	y := "4 + 8 = 12 (left: 4 6 12)\n6 - 4 = 2 (left: 2 12)\n2 * 12 = 24 (left: 24)\nAnswer: (6 - 4) * (4 + 8) = 24\n"

	values, err := g.Evaluate(t.Context(), "4 4 6 8", []string{y}, EvaluateValue, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{20}, values)

	prompt := client.Requests()[0].Messages[0].Content
	assert.Contains(t, prompt, "Input: 4 4 6 8\nAnswer: (6 - 4) * (4 + 8) = 24\nJudge:")
}

func TestGame24_ShortCircuitsUnfinished(t *testing.T) {
	g, client, _ := newGame24(t, cycle("sure"))
	y := "4 + 8 = 12 (left: 4 6 12)\n6 - 4 = 2 (left: 2 12)\n2 + 12 = 14 (left: 14)\n14 + 1 = 15 (left: 15)\n"

	values, err := g.Evaluate(t.Context(), "4 4 6 8", []string{y}, EvaluateValue, 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, values)
	assert.Equal(t, 0, client.Calls())
}

func TestGame24_CacheReuseWithoutUsage(t *testing.T) {
	g, client, usage := newGame24(t, cycle("sure"))
	ys := []string{"4 + 8 = 12 (left: 4 6 12)\n"}

	first, err := g.Evaluate(t.Context(), "4 4 6 8", ys, EvaluateValue, 2)
	require.NoError(t, err)
	before := usage.Totals()

	second, err := g.Evaluate(t.Context(), "4 4 6 8", ys, EvaluateValue, 2)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, before, usage.Totals())
	assert.Equal(t, 1, client.Calls())
}

func TestGame24_SamePromptSharesScore(t *testing.T) {
	g, client, _ := newGame24(t, cycle("sure"))
	// Different text, same remaining numbers, so the same prompt. Only
	// the repeated text is a duplicate.
	ys := []string{
		"4 + 8 = 12 (left: 4 6 12)\n",
		"8 + 4 = 12 (left: 4 6 12)\n",
		"4 + 8 = 12 (left: 4 6 12)\n",
	}

	values, err := g.Evaluate(t.Context(), "4 4 6 8", ys, EvaluateValue, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{20, 20, 0}, values)
	assert.Equal(t, 1, client.Calls())
}

func TestScoreJudgements_ExactLastLine(t *testing.T) {
	tests := []struct {
		name    string
		outputs []string
		want    float64
	}{
		{"sure and likely", []string{"reasoning\nsure", "likely"}, 21},
		{"impossible", []string{"impossible"}, 0.001},
		{"capitalised is not counted", []string{"Sure", "LIKELY"}, 0},
		{"not on last line", []string{"sure\nmaybe"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, scoreJudgements(tt.outputs), 1e-9)
		})
	}
}

func TestGame24_Propose(t *testing.T) {
	g, client, _ := newGame24(t, cycle("4 + 4 = 8 (left: 6 8 8)\n\n6 * 4 = 24 (left: 4 8 24)"))

	ys, err := g.Generate(t.Context(), "4 4 6 8", "", GeneratePropose, 5, StyleStandard, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"4 + 4 = 8 (left: 6 8 8)\n", "6 * 4 = 24 (left: 4 8 24)\n"}, ys)

	req := client.Requests()[0]
	assert.Equal(t, 1, req.N)
	assert.True(t, strings.HasSuffix(req.Messages[0].Content, "Input: 4 4 6 8\nPossible next steps:\n"))
}

func TestGame24_ProposeFinalStepUsesCoT(t *testing.T) {
	g, client, _ := newGame24(t, cycle("Answer: (6 - 4) * (4 + 8) = 24"))
	y := "4 + 8 = 12 (left: 4 6 12)\n6 - 4 = 2 (left: 2 12)\n2 * 12 = 24 (left: 24)\n"

	ys, err := g.Generate(t.Context(), "4 4 6 8", y, GeneratePropose, 1, StyleStandard, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{y + "Answer: (6 - 4) * (4 + 8) = 24\n"}, ys)

	prompt := client.Requests()[0].Messages[0].Content
	assert.True(t, strings.HasSuffix(prompt, "Input: 4 4 6 8\nSteps:"+y))
}

func TestGame24_Sample(t *testing.T) {
	g, client, _ := newGame24(t, cycle("a", "b"))

	ys, err := g.Generate(t.Context(), "4 4 6 8", "prefix ", GenerateSample, 2, StyleCoT, []string{"\n"})
	require.NoError(t, err)
	assert.Equal(t, []string{"prefix a", "prefix b"}, ys)

	req := client.Requests()[0]
	assert.Equal(t, []string{"\n"}, req.Stop)
	assert.True(t, strings.HasSuffix(req.Messages[0].Content, "Input: 4 4 6 8\nprefix "))
	assert.Contains(t, req.Messages[0].Content, "Each step, you are only allowed")
}

func TestGame24_TestOutput(t *testing.T) {
	g, _, _ := newGame24(t, cycle("x"))
	tests := []struct {
		name   string
		index  int
		output string
		want   float64
	}{
		{"correct", 0, "steps\nAnswer: (4 + 8) * (6 - 4) = 24", 1},
		{"evaluates to 8", 1, "Answer: 6 / (1 - 1 / 4) = 24", 0},
		{"missing numbers", 1, "Answer: (1 + 1) * ... = 24", 0},
		{"evaluates to 36", 1, "answer: (1 + 1 + 4) * 6 = 36", 0},
		{"extra number", 0, "Answer: (4 + 8) * (6 - 4) + 1 = 25", 0},
		{"wrong total", 0, "Answer: 4 + 4 + 6 + 8 = 22", 0},
		{"garbage", 0, "I give up", 0},
		{"wrong multiset", 1, "Answer: 4 * (1 + 1 + 4) = 24", 0},
		{"correct second puzzle", 1, "Answer: 6 * 4 * 1 * 1 = 24", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := g.TestOutput(t.Context(), tt.index, tt.output)
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.R)
		})
	}
}

func TestGame24_VoteTallies(t *testing.T) {
	g, _, _ := newGame24(t, cycle("The best choice is 2", "Analysis...\nThe best choice is 2.", "the best choice is 1"))

	values, err := g.Evaluate(t.Context(), "4 4 6 8", []string{"a", "b", "c"}, EvaluateVote, 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 0}, values)
}
