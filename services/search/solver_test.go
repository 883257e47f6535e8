// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/thoughttree/services/llm"
	"github.com/AleutianAI/thoughttree/services/tasks"
)

// letterTask extends y with "a" or "b" and scores by the number of "a"s.
type letterTask struct {
	steps       int
	generated   int
	evaluated   int
	evalErr     error
	noProposals bool
	scores      func(ys []string) []float64
}

func (l *letterTask) Kind() tasks.Kind { return tasks.Kind("letters") }
func (l *letterTask) Len() int { return 1 }
func (l *letterTask) Steps() int { return l.steps }
func (l *letterTask) Stop(step int) []string { return []string{fmt.Sprint(step)} }
func (l *letterTask) Input(index int) (string, error) {
	if index != 0 {
		return "", tasks.ErrIndexOutOfRange
	}
	return "x", nil
}

func (l *letterTask) Generate(_ context.Context, _, y string, _ tasks.GenerateMethod, _ int, _ tasks.PromptStyle, _ []string) ([]string, error) {
	l.generated++
	if l.noProposals {
		return nil, nil
	}
	return []string{y + "a", y + "b"}, nil
}

func (l *letterTask) Evaluate(_ context.Context, _ string, ys []string, _ tasks.EvaluateMethod, _ int) ([]float64, error) {
	l.evaluated++
	if l.evalErr != nil {
		return nil, l.evalErr
	}
	if l.scores != nil {
		return l.scores(ys), nil
	}
	out := make([]float64, len(ys))
	for i, y := range ys {
		out[i] = float64(strings.Count(y, "a"))
	}
	return out, nil
}

func (l *letterTask) TestOutput(context.Context, int, string) (tasks.Rewards, error) {
	return tasks.Rewards{}, nil
}

func greedyOpts(nSelect int) Options {
	return Options{
		Generate:  tasks.GeneratePropose,
		Evaluate:  tasks.EvaluateValue,
		Select:    SelectGreedy,
		Style:     tasks.StyleStandard,
		NGenerate: 1,
		NEvaluate: 1,
		NSelect:   nSelect,
	}
}

func TestSolve_GreedyKeepsBest(t *testing.T) {
	task := &letterTask{steps: 2}
	s, err := NewSolver(task, greedyOpts(1), nil)
	require.NoError(t, err)

	res, err := s.Solve(t.Context(), 0)
	require.NoError(t, err)
	assert.Equal(t, "x", res.X)
	assert.Equal(t, []string{"aa"}, res.Ys)
	require.Len(t, res.Steps, 2)

	assert.Equal(t, StepRecord{
		Step: 0, X: "x",
		Ys:       []string{""},
		NewYs:    []string{"a", "b"},
		Values:   []float64{1, 0},
		Selected: []string{"a"},
	}, res.Steps[0])
	assert.Equal(t, []string{"a"}, res.Steps[1].Ys)
	assert.Equal(t, []string{"aa", "ab"}, res.Steps[1].NewYs)
	assert.Equal(t, 2, task.generated)
	assert.Equal(t, 2, task.evaluated)
}

func TestSolve_EvaluatesUnionOnce(t *testing.T) {
	task := &letterTask{steps: 2}
	s, err := NewSolver(task, greedyOpts(2), nil)
	require.NoError(t, err)

	res, err := s.Solve(t.Context(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"aa", "ab", "ba", "bb"}, res.Steps[1].NewYs)
	assert.Equal(t, []float64{2, 1, 1, 0}, res.Steps[1].Values)
	assert.Equal(t, []string{"aa", "ab"}, res.Ys)
	// One generate per parent, one evaluate per step.
	assert.Equal(t, 3, task.generated)
	assert.Equal(t, 2, task.evaluated)
}

func TestSolve_SampleSelection(t *testing.T) {
	task := &letterTask{steps: 1, scores: func(ys []string) []float64 { return []float64{0, 1} }}
	opts := greedyOpts(3)
	opts.Select = SelectSample
	opts.Seed = 11
	s, err := NewSolver(task, opts, nil)
	require.NoError(t, err)

	res, err := s.Solve(t.Context(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "b", "b"}, res.Ys)
}

func TestSolve_SampleZeroScoresFails(t *testing.T) {
	task := &letterTask{steps: 1, scores: func(ys []string) []float64 { return make([]float64, len(ys)) }}
	opts := greedyOpts(1)
	opts.Select = SelectSample
	s, err := NewSolver(task, opts, nil)
	require.NoError(t, err)

	_, err = s.Solve(t.Context(), 0)
	assert.ErrorIs(t, err, ErrZeroScores)
}

func TestSolve_NoCandidatesEndsEarly(t *testing.T) {
	task := &letterTask{steps: 3, noProposals: true}
	s, err := NewSolver(task, greedyOpts(1), nil)
	require.NoError(t, err)

	res, err := s.Solve(t.Context(), 0)
	require.NoError(t, err)
	assert.Empty(t, res.Ys)
	assert.Len(t, res.Steps, 1)
	assert.Equal(t, 0, task.evaluated)
}

func TestSolve_Errors(t *testing.T) {
	boom := errors.New("boom")
	task := &letterTask{steps: 1, evalErr: boom}
	s, err := NewSolver(task, greedyOpts(1), nil)
	require.NoError(t, err)

	_, err = s.Solve(t.Context(), 0)
	assert.ErrorIs(t, err, boom)

	_, err = s.Solve(t.Context(), 5)
	assert.ErrorIs(t, err, tasks.ErrIndexOutOfRange)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err = s.Solve(ctx, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOptions_Validate(t *testing.T) {
	_, err := NewSolver(&letterTask{}, Options{}, nil)
	assert.ErrorIs(t, err, ErrInvalidOptions)

	opts := greedyOpts(0)
	assert.ErrorIs(t, opts.Validate(), ErrInvalidOptions)
	assert.NoError(t, greedyOpts(1).Validate())
}

func TestNaiveSolve(t *testing.T) {
	usage := llm.NewUsage()
	client := llm.NewScriptedClient(func(_ string, n int) ([]string, error) {
		out := make([]string, n)
		for i := range out {
			out[i] = fmt.Sprintf("Answer: %d", i)
		}
		return out, nil
	}, usage)
	task := tasks.NewGame24([]string{"4 4 6 8"}, tasks.Deps{
		Generator: llm.Generator{Client: client, Model: "gpt-4"},
	})
	opts := greedyOpts(1)
	opts.NGenerate = 3
	s, err := NewSolver(task, opts, nil)
	require.NoError(t, err)

	res, err := s.NaiveSolve(t.Context(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Answer: 0", "Answer: 1", "Answer: 2"}, res.Ys)
	assert.Empty(t, res.Steps)

	req := client.Requests()[0]
	assert.Nil(t, req.Stop)
	assert.Equal(t, 3, req.N)
}

// TestSolve_TextEndToEnd drives the text task through a scripted model:
// two plan samples, a vote for the second, then a passage.
func TestSolve_TextEndToEnd(t *testing.T) {
	usage := llm.NewUsage()
	client := llm.NewScriptedClient(func(prompt string, n int) ([]string, error) {
		out := make([]string, n)
		for i := range out {
			switch {
			case strings.Contains(prompt, "Choice 1:"):
				out[i] = "Analysis...\nThe best choice is 2"
			case strings.HasSuffix(prompt, "Your passage here."):
				out[i] = fmt.Sprintf("Plan:\nP%d\n", i)
			default:
				out[i] = "Passage:\nDone."
			}
		}
		return out, nil
	}, usage)
	task := tasks.NewText([]string{"End."}, tasks.Deps{
		Generator: llm.Generator{Client: client, Model: "gpt-4", Temperature: 0.7},
	})

	s, err := NewSolver(task, Options{
		Generate:  tasks.GenerateSample,
		Evaluate:  tasks.EvaluateVote,
		Select:    SelectGreedy,
		Style:     tasks.StyleCoT,
		NGenerate: 2,
		NEvaluate: 3,
		NSelect:   1,
	}, nil)
	require.NoError(t, err)

	res, err := s.Solve(t.Context(), 0)
	require.NoError(t, err)
	require.Len(t, res.Steps, 2)

	assert.Equal(t, []string{"Plan:\nP0\n", "Plan:\nP1\n"}, res.Steps[0].NewYs)
	assert.Equal(t, []float64{0, 3}, res.Steps[0].Values)
	assert.Equal(t, []string{"Plan:\nP1\nPassage:\nDone."}, res.Ys)

	// Two samples and two votes.
	assert.Equal(t, 4, client.Calls())
	assert.Equal(t, []string{"\nPassage:\n"}, client.Requests()[0].Stop)
	assert.Positive(t, usage.Totals().PromptTokens)
}

func TestOptions_ValidateNaive(t *testing.T) {
	opts := Options{Naive: true, Style: tasks.StyleCoT, NGenerate: 2}
	assert.NoError(t, opts.Validate())

	opts.Style = 0
	assert.ErrorIs(t, opts.Validate(), ErrInvalidOptions)

	opts = Options{Naive: true, Style: tasks.StyleCoT}
	assert.ErrorIs(t, opts.Validate(), ErrInvalidOptions)
}

func TestRun_DispatchesNaive(t *testing.T) {
	client := llm.NewScriptedClient(func(_ string, n int) ([]string, error) {
		return make([]string, n), nil
	}, nil)
	task := tasks.NewGame24([]string{"4 4 6 8"}, tasks.Deps{
		Generator: llm.Generator{Client: client, Model: "gpt-4"},
	})
	s, err := NewSolver(task, Options{Naive: true, Style: tasks.StyleStandard, NGenerate: 2}, nil)
	require.NoError(t, err)
	assert.True(t, s.Options().Naive)

	res, err := s.Run(t.Context(), 0)
	require.NoError(t, err)
	assert.Len(t, res.Ys, 2)
	assert.Empty(t, res.Steps)
	assert.Equal(t, 1, client.Calls())
}
