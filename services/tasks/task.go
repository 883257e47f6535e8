// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tasks adapts each problem domain to the search engine.
//
// A Task builds prompts, turns completions into candidate partial
// solutions, scores candidates and grades finished outputs. Three variants
// exist: game24, text and crosswords. They share an embedded base holding
// the step count, stop sequences and the completion generator; variant
// state such as the crossword environment is owned by the variant.
package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/AleutianAI/thoughttree/services/llm"
	"github.com/AleutianAI/thoughttree/services/valuecache"
)

// Kind names a task variant.
type Kind string

const (
	KindGame24     Kind = "game24"
	KindText       Kind = "text"
	KindCrosswords Kind = "crosswords"
)

// ParseKind validates a task name.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindGame24, KindText, KindCrosswords:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTask, s)
	}
}

// dataDir returns the dataset subdirectory for the kind.
func (k Kind) dataDir() string {
	switch k {
	case KindGame24:
		return "24"
	default:
		return string(k)
	}
}

// GenerateMethod selects how candidates are produced.
type GenerateMethod int

const (
	// GenerateSample draws n independent completions.
	GenerateSample GenerateMethod = iota + 1
	// GeneratePropose draws one completion listing several next steps.
	GeneratePropose
)

// ParseGenerateMethod maps "sample" or "propose".
func ParseGenerateMethod(s string) (GenerateMethod, error) {
	switch s {
	case "sample":
		return GenerateSample, nil
	case "propose":
		return GeneratePropose, nil
	default:
		return 0, fmt.Errorf("%w: method_generate %q", ErrUnsupportedMode, s)
	}
}

func (m GenerateMethod) String() string {
	switch m {
	case GenerateSample:
		return "sample"
	case GeneratePropose:
		return "propose"
	default:
		return fmt.Sprintf("GenerateMethod(%d)", int(m))
	}
}

// EvaluateMethod selects how candidates are scored.
type EvaluateMethod int

const (
	// EvaluateValue scores each candidate independently.
	EvaluateValue EvaluateMethod = iota + 1
	// EvaluateVote ranks all candidates in one prompt.
	EvaluateVote
)

// ParseEvaluateMethod maps "value" or "vote".
func ParseEvaluateMethod(s string) (EvaluateMethod, error) {
	switch s {
	case "value":
		return EvaluateValue, nil
	case "vote":
		return EvaluateVote, nil
	default:
		return 0, fmt.Errorf("%w: method_evaluate %q", ErrUnsupportedMode, s)
	}
}

func (m EvaluateMethod) String() string {
	switch m {
	case EvaluateValue:
		return "value"
	case EvaluateVote:
		return "vote"
	default:
		return fmt.Sprintf("EvaluateMethod(%d)", int(m))
	}
}

// PromptStyle selects the sampling template.
type PromptStyle int

const (
	StyleStandard PromptStyle = iota + 1
	StyleCoT
)

// ParsePromptStyle maps "standard" or "cot".
func ParsePromptStyle(s string) (PromptStyle, error) {
	switch s {
	case "standard":
		return StyleStandard, nil
	case "cot":
		return StyleCoT, nil
	default:
		return 0, fmt.Errorf("%w: prompt_sample %q", ErrUnsupportedMode, s)
	}
}

func (s PromptStyle) String() string {
	switch s {
	case StyleStandard:
		return "standard"
	case StyleCoT:
		return "cot"
	default:
		return fmt.Sprintf("PromptStyle(%d)", int(s))
	}
}

// Rewards is the grading result for one output.
type Rewards struct {
	R       float64 `json:"r"`
	RLetter float64 `json:"r_letter,omitempty"`
	RWord   float64 `json:"r_word,omitempty"`
	RGame   bool    `json:"r_game,omitempty"`
	Rs      []int   `json:"rs,omitempty"`
}

// Task is a problem domain the search engine can solve.
//
// Thread Safety: Tasks are driven by one instance loop at a time and are
// not safe for concurrent use.
type Task interface {
	// Kind returns the variant.
	Kind() Kind

	// Len returns the number of dataset items.
	Len() int

	// Steps returns the number of search steps.
	Steps() int

	// Stop returns the stop sequences for step, or nil.
	Stop(step int) []string

	// Input returns problem x for dataset item index. Crosswords also
	// resets the environment to that puzzle.
	Input(index int) (string, error)

	// Generate returns candidate partial solutions extending y.
	Generate(ctx context.Context, x, y string, method GenerateMethod, n int, style PromptStyle, stop []string) ([]string, error)

	// Evaluate returns one score per candidate, in order.
	Evaluate(ctx context.Context, x string, ys []string, method EvaluateMethod, n int) ([]float64, error)

	// TestOutput grades a finished output for dataset item index.
	TestOutput(ctx context.Context, index int, output string) (Rewards, error)
}

// Deps are the collaborators shared by every variant.
type Deps struct {
	// Generator issues completions with the run's model and temperature.
	Generator llm.Generator

	// Cache memoizes value scores. Nil creates an enabled in-memory cache.
	Cache *valuecache.Cache

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// New loads the dataset for kind from dataDir and builds the task.
//
// Inputs:
//   - kind: The variant.
//   - dataDir: Root of the datasets; files live under 24/, text/ and
//     crosswords/.
//   - file: Dataset file name inside the variant directory.
//   - deps: Shared collaborators.
func New(kind Kind, dataDir, file string, deps Deps) (Task, error) {
	path := filepath.Join(dataDir, kind.dataDir(), file)

	switch kind {
	case KindGame24:
		data, err := LoadGame24(path)
		if err != nil {
			return nil, err
		}
		return NewGame24(data, deps), nil
	case KindText:
		data, err := LoadLines(path)
		if err != nil {
			return nil, err
		}
		return NewText(data, deps), nil
	case KindCrosswords:
		puzzles, err := loadPuzzles(path)
		if err != nil {
			return nil, err
		}
		return NewCrosswords(puzzles, deps), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTask, kind)
	}
}

// CheckModes reports ErrUnsupportedMode when kind cannot run gen or eval.
// Text only samples, and only game24 scores by value.
func CheckModes(kind Kind, gen GenerateMethod, eval EvaluateMethod) error {
	if kind == KindText && gen == GeneratePropose {
		return fmt.Errorf("%w: %s cannot %s", ErrUnsupportedMode, kind, gen)
	}
	if kind != KindGame24 && eval == EvaluateValue {
		return fmt.Errorf("%w: %s cannot %s", ErrUnsupportedMode, kind, eval)
	}
	return nil
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Cache == nil {
		d.Cache = valuecache.New(valuecache.Options{Enabled: true, Logger: d.Logger})
	}
	return d
}

// base holds what every variant shares.
type base struct {
	kind   Kind
	steps  int
	stops  [][]string
	gen    llm.Generator
	logger *slog.Logger
}

func (b *base) Kind() Kind { return b.kind }

func (b *base) Steps() int { return b.steps }

func (b *base) Stop(step int) []string {
	if step < 0 || step >= len(b.stops) {
		return nil
	}
	return b.stops[step]
}

// sample fills tmpl with x, appends y and extends y with n completions.
func (b *base) sample(ctx context.Context, tmpl, x, y string, n int, stop []string) ([]string, error) {
	prompt := fill(tmpl, x) + y
	outs, err := b.gen.Generate(ctx, prompt, n, stop)
	if err != nil {
		return nil, fmt.Errorf("%s sample: %w", b.kind, err)
	}
	ys := make([]string, len(outs))
	for i, o := range outs {
		ys[i] = y + o
	}
	return ys, nil
}

// checkIndex validates a dataset index.
func checkIndex(index, n int) error {
	if index < 0 || index >= n {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, index, n)
	}
	return nil
}
