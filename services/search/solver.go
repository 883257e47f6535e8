// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package search drives the generate, evaluate, select loop over a task.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/thoughttree/services/tasks"
)

// ErrInvalidOptions indicates solver options that cannot drive a search.
var ErrInvalidOptions = errors.New("invalid search options")

// Options configures one search run.
type Options struct {
	// Naive samples complete outputs once instead of searching. Only
	// NGenerate and Style apply.
	Naive bool

	Generate tasks.GenerateMethod
	Evaluate tasks.EvaluateMethod
	Select   SelectMethod
	Style    tasks.PromptStyle

	// NGenerate is the completions requested per parent when sampling.
	NGenerate int

	// NEvaluate is the completions requested per value or vote prompt.
	NEvaluate int

	// NSelect is the number of survivors kept per step.
	NSelect int

	// Seed seeds the sample selection source.
	Seed uint64
}

// Validate checks that every method the mode needs is set and every
// count it uses is positive.
func (o Options) Validate() error {
	if o.Naive {
		switch {
		case o.Style == 0:
			return fmt.Errorf("%w: naive run needs a prompt style", ErrInvalidOptions)
		case o.NGenerate < 1:
			return fmt.Errorf("%w: n_generate must be positive, got %d", ErrInvalidOptions, o.NGenerate)
		}
		return nil
	}
	switch {
	case o.Generate == 0:
		return fmt.Errorf("%w: generate method not set", ErrInvalidOptions)
	case o.Evaluate == 0:
		return fmt.Errorf("%w: evaluate method not set", ErrInvalidOptions)
	case o.Select == 0:
		return fmt.Errorf("%w: select method not set", ErrInvalidOptions)
	case o.NGenerate < 1, o.NEvaluate < 1, o.NSelect < 1:
		return fmt.Errorf("%w: sample counts must be positive (generate=%d evaluate=%d select=%d)",
			ErrInvalidOptions, o.NGenerate, o.NEvaluate, o.NSelect)
	}
	return nil
}

// Solver runs searches over one task.
//
// Thread Safety: Not safe for concurrent use. Instances are solved one
// at a time.
type Solver struct {
	task   tasks.Task
	opts   Options
	rng    *rand.Rand
	logger *slog.Logger
}

// NewSolver validates opts and binds them to task.
func NewSolver(task tasks.Task, opts Options, logger *slog.Logger) (*Solver, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Solver{
		task:   task,
		opts:   opts,
		rng:    rand.New(rand.NewPCG(opts.Seed, opts.Seed)),
		logger: logger.With("task", string(task.Kind())),
	}, nil
}

// Options returns the options the solver was built with.
func (s *Solver) Options() Options { return s.opts }

// Run solves index with NaiveSolve or Solve, as configured.
func (s *Solver) Run(ctx context.Context, index int) (*Result, error) {
	if s.opts.Naive {
		return s.NaiveSolve(ctx, index)
	}
	return s.Solve(ctx, index)
}

// Solve runs the iterative search for dataset item index.
//
// Description:
//
//	Starting from the empty partial solution, each step generates
//	candidates for every survivor, scores the union once and selects
//	the next survivors. A step that produces no candidates ends the
//	search early with no survivors.
//
// Outputs:
//   - *Result: Survivors after the last step and one StepRecord per step.
//   - error: Task errors, ErrZeroScores or ErrNegativeScore, or the
//     context error.
func (s *Solver) Solve(ctx context.Context, index int) (*Result, error) {
	ctx, span := tracer.Start(ctx, "search.Solve",
		trace.WithAttributes(
			attribute.String("search.task", string(s.task.Kind())),
			attribute.Int("search.index", index),
			attribute.Int("search.steps", s.task.Steps()),
		),
	)
	defer span.End()

	x, err := s.task.Input(index)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "input")
		return nil, err
	}

	res := &Result{X: x}
	ys := []string{""}
	for step := 0; step < s.task.Steps(); step++ {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "context canceled")
			return nil, err
		}

		rec, err := s.step(ctx, step, x, ys)
		if err != nil {
			stepsTotal.WithLabelValues(string(s.task.Kind()), "error").Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, "step failed")
			return nil, fmt.Errorf("step %d: %w", step, err)
		}
		stepsTotal.WithLabelValues(string(s.task.Kind()), "ok").Inc()
		res.Steps = append(res.Steps, rec)
		ys = rec.Selected

		if len(ys) == 0 {
			s.logger.Warn("no candidates, ending search early", "index", index, "step", step)
			break
		}
	}
	res.Ys = ys
	span.SetAttributes(attribute.Int("search.survivors", len(ys)))
	return res, nil
}

func (s *Solver) step(ctx context.Context, step int, x string, ys []string) (StepRecord, error) {
	ctx, span := tracer.Start(ctx, "search.Step",
		trace.WithAttributes(attribute.Int("search.step", step)),
	)
	defer span.End()
	start := time.Now()
	defer func() {
		stepDuration.WithLabelValues(string(s.task.Kind())).Observe(time.Since(start).Seconds())
	}()

	rec := StepRecord{Step: step, X: x, Ys: ys}

	for _, y := range ys {
		candidates, err := s.task.Generate(ctx, x, y, s.opts.Generate, s.opts.NGenerate, s.opts.Style, s.task.Stop(step))
		if err != nil {
			span.RecordError(err)
			return rec, fmt.Errorf("generate: %w", err)
		}
		rec.NewYs = append(rec.NewYs, candidates...)
	}
	stepCandidates.WithLabelValues(string(s.task.Kind())).Observe(float64(len(rec.NewYs)))
	span.SetAttributes(attribute.Int("search.candidates", len(rec.NewYs)))
	if len(rec.NewYs) == 0 {
		return rec, nil
	}

	values, err := s.task.Evaluate(ctx, x, rec.NewYs, s.opts.Evaluate, s.opts.NEvaluate)
	if err != nil {
		span.RecordError(err)
		return rec, fmt.Errorf("evaluate: %w", err)
	}
	rec.Values = values

	var ids []int
	switch s.opts.Select {
	case SelectGreedy:
		ids = Greedy(values, s.opts.NSelect)
	case SelectSample:
		ids, err = Sample(s.rng, values, s.opts.NSelect)
		if err != nil {
			span.RecordError(err)
			return rec, fmt.Errorf("select: %w", err)
		}
	default:
		return rec, fmt.Errorf("%w: %v", ErrUnsupportedSelect, s.opts.Select)
	}

	rec.Selected = make([]string, len(ids))
	for i, id := range ids {
		rec.Selected[i] = rec.NewYs[id]
	}
	s.logger.Debug("search step",
		"step", step,
		"candidates", len(rec.NewYs),
		"selected", len(rec.Selected),
	)
	return rec, nil
}

// NaiveSolve samples NGenerate complete outputs in one batch, with no
// stop sequence and no search.
func (s *Solver) NaiveSolve(ctx context.Context, index int) (*Result, error) {
	ctx, span := tracer.Start(ctx, "search.NaiveSolve",
		trace.WithAttributes(
			attribute.String("search.task", string(s.task.Kind())),
			attribute.Int("search.index", index),
		),
	)
	defer span.End()

	x, err := s.task.Input(index)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	ys, err := s.task.Generate(ctx, x, "", tasks.GenerateSample, s.opts.NGenerate, s.opts.Style, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate")
		return nil, fmt.Errorf("naive generate: %w", err)
	}
	return &Result{X: x, Ys: ys}, nil
}
