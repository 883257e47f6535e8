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
	"strings"

	"github.com/AleutianAI/thoughttree/services/crossword"
)

// Crosswords fills 5x5 mini crosswords.
type Crosswords struct {
	base
	env   *crossword.Env
	xs    []string
	index map[string]int
}

// NewCrosswords builds the task and pre-renders every puzzle's clues.
func NewCrosswords(puzzles []crossword.Puzzle, deps Deps) *Crosswords {
	deps = deps.withDefaults()
	c := &Crosswords{
		base: base{
			kind:   KindCrosswords,
			steps:  10,
			gen:    deps.Generator,
			logger: deps.Logger,
		},
		env:   crossword.NewEnv(puzzles),
		xs:    make([]string, len(puzzles)),
		index: make(map[string]int, len(puzzles)),
	}
	for i := range puzzles {
		// Reset cannot fail for an in-range index.
		_, _ = c.env.Reset(i)
		c.xs[i] = c.env.RenderClues(nil)
		if _, dup := c.index[c.xs[i]]; !dup {
			c.index[c.xs[i]] = i
		}
	}
	return c
}

func (c *Crosswords) Len() int { return len(c.xs) }

// Env exposes the environment for inspection.
func (c *Crosswords) Env() *crossword.Env { return c.env }

func (c *Crosswords) Input(index int) (string, error) {
	if err := checkIndex(index, len(c.xs)); err != nil {
		return "", err
	}
	if _, err := c.env.Reset(index); err != nil {
		return "", err
	}
	return c.xs[index], nil
}

func (c *Crosswords) Generate(ctx context.Context, x, y string, method GenerateMethod, n int, style PromptStyle, stop []string) ([]string, error) {
	switch method {
	case GenerateSample:
		tmpl := crosswordsStandardPrompt
		if style == StyleCoT {
			tmpl = crosswordsCoTPrompt
		}
		return c.sample(ctx, tmpl, x, y, n, stop)
	case GeneratePropose:
		return c.propose(ctx, x, y)
	default:
		return nil, fmt.Errorf("%w: crosswords generate %v", ErrUnsupportedMode, method)
	}
}

// propose replays y onto the board, then renders the status view into
// the propose prompt. Lines that are not grid actions are dropped.
func (c *Crosswords) propose(ctx context.Context, x, y string) ([]string, error) {
	if err := c.replay(x, y); err != nil {
		return nil, fmt.Errorf("crosswords propose prompt: %w", err)
	}
	prompt := fill(crosswordsProposePrompt, c.env.Render(true))

	outs, err := c.gen.Generate(ctx, prompt, 1, nil)
	if err != nil {
		return nil, fmt.Errorf("crosswords propose: %w", err)
	}
	if len(outs) == 0 {
		return nil, ErrNoProposals
	}

	var candidates []string
	for _, line := range strings.Split(outs[0], "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if _, err := crossword.ParseAction(line); err != nil {
			c.logger.Debug("dropping proposal", "line", line, "error", err)
			continue
		}
		candidates = append(candidates, y+line+"\n")
	}
	return candidates, nil
}

// replay resets the environment to puzzle x and applies every line of y.
func (c *Crosswords) replay(x, y string) error {
	idx, ok := c.index[x]
	if !ok {
		return fmt.Errorf("%w: input is not a loaded puzzle", ErrIndexOutOfRange)
	}
	if _, err := c.env.Reset(idx); err != nil {
		return err
	}
	for _, line := range strings.Split(y, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if _, err := c.env.Step(line); err != nil {
			return err
		}
	}
	return nil
}

func (c *Crosswords) Evaluate(ctx context.Context, _ string, ys []string, method EvaluateMethod, n int) ([]float64, error) {
	if method != EvaluateVote {
		return nil, fmt.Errorf("%w: crosswords evaluate %v", ErrUnsupportedMode, method)
	}
	return c.vote(ctx, ys, n)
}

// TestOutput fills the board from output and reports the final rewards.
// A grid after "Output:\n" is written row by row; otherwise every line
// that parses as an action is applied in order.
func (c *Crosswords) TestOutput(_ context.Context, index int, output string) (Rewards, error) {
	if err := checkIndex(index, len(c.xs)); err != nil {
		return Rewards{}, err
	}
	if _, err := c.env.Reset(index); err != nil {
		return Rewards{}, err
	}

	if i := strings.LastIndex(output, "Output:\n"); i >= 0 {
		actions, err := crossword.ParseGrid(output[i+len("Output:\n"):])
		if err != nil {
			c.logger.Debug("crossword grid partially parsed", "error", err)
		}
		for _, act := range actions {
			c.env.Apply(act)
		}
	} else {
		for _, line := range strings.Split(output, "\n") {
			act, err := crossword.ParseAction(line)
			if err != nil {
				continue
			}
			c.env.Apply(act)
		}
	}

	word := c.env.WordReward()
	return Rewards{
		R:       word,
		RLetter: c.env.LetterReward(),
		RWord:   word,
		RGame:   c.env.Solved(),
	}, nil
}
