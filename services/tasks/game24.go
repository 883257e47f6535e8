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
	"math"
	"regexp"
	"slices"
	"strings"

	"github.com/expr-lang/expr"

	"github.com/AleutianAI/thoughttree/services/valuecache"
)

// Judgement weights for value evaluation.
var game24Weights = map[string]float64{
	"sure":       20,
	"likely":     1,
	"impossible": 0.001,
}

var (
	numberRe     = regexp.MustCompile(`\d+`)
	arithmeticRe = regexp.MustCompile(`^[0-9+\-*/(). ]+$`)
)

// Game24 combines four numbers into 24.
type Game24 struct {
	base
	data  []string
	cache *valuecache.Cache
}

// NewGame24 builds the task over puzzles like "4 4 6 8".
func NewGame24(data []string, deps Deps) *Game24 {
	deps = deps.withDefaults()
	return &Game24{
		base: base{
			kind:   KindGame24,
			steps:  4,
			stops:  [][]string{{"\n"}, {"\n"}, {"\n"}, {"\n"}},
			gen:    deps.Generator,
			logger: deps.Logger,
		},
		data:  data,
		cache: deps.Cache,
	}
}

func (g *Game24) Len() int { return len(g.data) }

func (g *Game24) Input(index int) (string, error) {
	if err := checkIndex(index, len(g.data)); err != nil {
		return "", err
	}
	return g.data[index], nil
}

func (g *Game24) Generate(ctx context.Context, x, y string, method GenerateMethod, n int, style PromptStyle, stop []string) ([]string, error) {
	switch method {
	case GenerateSample:
		tmpl := game24StandardPrompt
		if style == StyleCoT {
			tmpl = game24CoTPrompt
		}
		return g.sample(ctx, tmpl, x, y, n, stop)
	case GeneratePropose:
		outs, err := g.gen.Generate(ctx, g.proposePrompt(x, y), 1, nil)
		if err != nil {
			return nil, fmt.Errorf("game24 propose: %w", err)
		}
		if len(outs) == 0 {
			return nil, ErrNoProposals
		}
		return splitProposals(y, outs[0]), nil
	default:
		return nil, fmt.Errorf("%w: game24 generate %v", ErrUnsupportedMode, method)
	}
}

// proposePrompt asks for next steps, or for the final answer once only
// 24 is left.
func (g *Game24) proposePrompt(x, y string) string {
	input := x
	if y != "" {
		input = y
	}
	current := currentNumbers(input)
	if current == "24" {
		return fill(game24CoTPrompt, x) + "Steps:" + y
	}
	return fill(game24ProposePrompt, current)
}

func (g *Game24) Evaluate(ctx context.Context, x string, ys []string, method EvaluateMethod, n int) ([]float64, error) {
	switch method {
	case EvaluateVote:
		return g.vote(ctx, ys, n)
	case EvaluateValue:
	default:
		return nil, fmt.Errorf("%w: game24 evaluate %v", ErrUnsupportedMode, method)
	}

	local := g.cache.NewLocal()
	values := make([]float64, len(ys))
	for i, y := range ys {
		if unfinished(y) {
			continue
		}
		prompt := valuePrompt(x, y)
		v, err := local.Score(ctx, y, prompt, func(ctx context.Context) (float64, error) {
			outs, err := g.gen.Generate(ctx, prompt, n, nil)
			if err != nil {
				return 0, err
			}
			return scoreJudgements(outs), nil
		})
		if err != nil {
			return nil, fmt.Errorf("game24 value: %w", err)
		}
		values[i] = v
	}
	return values, nil
}

// TestOutput checks that the final expression uses exactly the puzzle
// numbers and evaluates to 24.
func (g *Game24) TestOutput(_ context.Context, index int, output string) (Rewards, error) {
	if err := checkIndex(index, len(g.data)); err != nil {
		return Rewards{}, err
	}
	expression := strings.ReplaceAll(strings.ToLower(lastLine(output)), "answer: ", "")
	expression, _, _ = strings.Cut(expression, "=")
	expression = strings.TrimSpace(expression)

	used := numberRe.FindAllString(expression, -1)
	want := numberRe.FindAllString(g.data[index], -1)
	slices.Sort(used)
	slices.Sort(want)
	if !slices.Equal(used, want) {
		return Rewards{}, nil
	}

	v, err := evalArithmetic(expression)
	if err != nil {
		g.logger.Debug("game24 expression did not evaluate", "expression", expression, "error", err)
		return Rewards{}, nil
	}
	if math.Abs(v-24) < 1e-6 {
		return Rewards{R: 1}, nil
	}
	return Rewards{}, nil
}

func evalArithmetic(expression string) (float64, error) {
	if !arithmeticRe.MatchString(expression) {
		return 0, fmt.Errorf("not an arithmetic expression: %q", expression)
	}
	program, err := expr.Compile(expression, expr.AsFloat64())
	if err != nil {
		return 0, err
	}
	out, err := expr.Run(program, nil)
	if err != nil {
		return 0, err
	}
	v, ok := out.(float64)
	if !ok {
		return 0, fmt.Errorf("unexpected result type %T", out)
	}
	return v, nil
}

// valuePrompt judges a finished answer, or the remaining numbers.
func valuePrompt(x, y string) string {
	last := lastLine(y)
	if !strings.Contains(last, "left: ") {
		answer := strings.ReplaceAll(strings.ToLower(last), "answer: ", "")
		return strings.ReplaceAll(fill(game24ValueLastStepPrompt, x), "{answer}", answer)
	}
	return fill(game24ValuePrompt, currentNumbers(y))
}

// unfinished reports a four-step solution without an answer line. It can
// no longer reach 24, so it scores 0 without a model call.
func unfinished(y string) bool {
	lines := strings.Split(strings.TrimSpace(y), "\n")
	return len(lines) == 4 && !strings.Contains(strings.ToLower(y), "answer")
}

// scoreJudgements weights the last line of each judgement.
func scoreJudgements(outputs []string) float64 {
	var score float64
	for _, out := range outputs {
		score += game24Weights[lastLine(out)]
	}
	return score
}

// currentNumbers returns the numbers after the last "left: " marker, or
// the whole last line when there is none.
func currentNumbers(y string) string {
	last := lastLine(y)
	if i := strings.LastIndex(last, "left: "); i >= 0 {
		last = last[i+len("left: "):]
	}
	last, _, _ = strings.Cut(last, ")")
	return strings.TrimSpace(last)
}

// lastLine returns the last line of trimmed text, trimmed.
func lastLine(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.LastIndexByte(text, '\n'); i >= 0 {
		text = text[i+1:]
	}
	return strings.TrimSpace(text)
}

// splitProposals turns each non-blank line into y + line + "\n".
func splitProposals(y, output string) []string {
	var out []string
	for _, line := range strings.Split(output, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, y+line+"\n")
	}
	return out
}
