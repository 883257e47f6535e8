// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package experiment runs a search over a dataset range, grades every
// output and keeps the JSON run log current.
package experiment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/AleutianAI/thoughttree/services/crossword"
	"github.com/AleutianAI/thoughttree/services/llm"
	"github.com/AleutianAI/thoughttree/services/search"
	"github.com/AleutianAI/thoughttree/services/tasks"
	"github.com/AleutianAI/thoughttree/services/telemetry"
)

// ErrInvalidRange indicates a start/end range outside the dataset.
var ErrInvalidRange = errors.New("invalid task index range")

// Record is one problem instance in the run log.
type Record struct {
	Idx        int                 `json:"idx"`
	Steps      []search.StepRecord `json:"steps"`
	Ys         []string            `json:"ys"`
	Infos      []tasks.Rewards     `json:"infos"`
	UsageSoFar llm.UsageReport     `json:"usage_so_far"`
	RunID      string              `json:"run_id"`
	Error      string              `json:"error,omitempty"`
}

// Summary is the outcome of a finished or interrupted run.
type Summary struct {
	RunID     string          `json:"run_id"`
	Instances int             `json:"instances"`
	Failed    int             `json:"failed"`
	CntAvg    float64         `json:"cnt_avg"`
	CntAny    float64         `json:"cnt_any"`
	Usage     llm.UsageReport `json:"usage"`
	LogPath   string          `json:"log_path"`
}

// AvgAccuracy is cnt_avg over the processed instances.
func (s Summary) AvgAccuracy() float64 {
	if s.Instances == 0 {
		return 0
	}
	return s.CntAvg / float64(s.Instances)
}

// AnyAccuracy is cnt_any over the processed instances.
func (s Summary) AnyAccuracy() float64 {
	if s.Instances == 0 {
		return 0
	}
	return s.CntAny / float64(s.Instances)
}

// Options configures a Runner.
type Options struct {
	// Start and End bound the dataset indices, [Start, End).
	Start, End int

	// LogPath is rewritten with every record after each instance.
	LogPath string

	// Backend prices Usage in records.
	Backend llm.Backend

	// Usage is the accumulator the completion client records into.
	Usage *llm.Usage

	Logger *slog.Logger
}

// Runner processes problem instances strictly in order.
//
// Thread Safety: Run must not be called concurrently. Progress may be
// read from any goroutine.
type Runner struct {
	task     tasks.Task
	solver   *search.Solver
	opts     Options
	runID    string
	progress *Progress
	logger   *slog.Logger
	records  []Record
}

// NewRunner validates the range against the dataset and assigns a run id.
func NewRunner(task tasks.Task, solver *search.Solver, opts Options) (*Runner, error) {
	if opts.Start < 0 || opts.End <= opts.Start || opts.End > task.Len() {
		return nil, fmt.Errorf("%w: [%d, %d) over %d items", ErrInvalidRange, opts.Start, opts.End, task.Len())
	}
	if opts.LogPath == "" {
		return nil, errors.New("log path is required")
	}
	if opts.Usage == nil {
		opts.Usage = llm.NewUsage()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	runID := uuid.NewString()
	return &Runner{
		task:     task,
		solver:   solver,
		opts:     opts,
		runID:    runID,
		progress: newProgress(runID, string(task.Kind()), opts.Start, opts.End),
		logger:   opts.Logger.With("run_id", runID, "task", string(task.Kind())),
	}, nil
}

// RunID identifies this run in records and logs.
func (r *Runner) RunID() string { return r.runID }

// Progress is the live view served by the status server.
func (r *Runner) Progress() *Progress { return r.progress }

// Run solves and grades every instance in range.
//
// Description:
//
//	Each instance is solved, every surviving output graded, and the
//	whole log rewritten before the next index starts. An instance whose
//	model calls exhausted their retries, or that hit a malformed model
//	output it cannot recover from, is logged and recorded with its error
//	and the run continues. Any other error ends the run.
//
// Outputs:
//   - *Summary: Totals over the instances processed so far. Returned
//     with a non-nil error too.
//   - error: Configuration errors, log write failures or ctx.Err().
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	sum := &Summary{RunID: r.runID, LogPath: r.opts.LogPath}
	defer r.progress.finish()

	r.logger.Info("run started",
		"start", r.opts.Start,
		"end", r.opts.End,
		"naive", r.solver.Options().Naive,
		"log_path", r.opts.LogPath,
	)

	for idx := r.opts.Start; idx < r.opts.End; idx++ {
		if err := ctx.Err(); err != nil {
			return r.finish(sum), err
		}

		rec, err := r.instance(ctx, idx)
		failed := false
		if err != nil {
			if !instanceFatal(err) || ctx.Err() != nil {
				instancesTotal.WithLabelValues(string(r.task.Kind()), "aborted").Inc()
				return r.finish(sum), fmt.Errorf("instance %d: %w", idx, err)
			}
			r.logger.Error("instance failed", "idx", idx, "error", err)
			rec.Error = err.Error()
			failed = true
			sum.Failed++
		}
		rec.UsageSoFar = r.opts.Usage.Report(r.opts.Backend)
		r.records = append(r.records, rec)
		if err := r.writeLog(); err != nil {
			return r.finish(sum), err
		}

		mean, anyPositive := score(rec.Infos)
		sum.Instances++
		sum.CntAvg += mean
		if anyPositive {
			sum.CntAny++
		}

		result := "ok"
		if failed {
			result = "failed"
		}
		instancesTotal.WithLabelValues(string(r.task.Kind()), result).Inc()
		instanceReward.WithLabelValues(string(r.task.Kind())).Observe(mean)
		runCost.WithLabelValues(string(r.opts.Backend)).Set(rec.UsageSoFar.Cost)
		r.progress.record(idx, failed, sum.CntAvg, sum.CntAny, rec.UsageSoFar)

		r.logger.Info("instance done",
			"idx", idx,
			"mean_r", mean,
			"cnt_avg", sum.CntAvg,
			"cnt_any", sum.CntAny,
			"cost", rec.UsageSoFar.Cost,
		)
	}

	r.finish(sum)
	r.logger.Info("run finished",
		"instances", sum.Instances,
		"failed", sum.Failed,
		"avg_accuracy", sum.AvgAccuracy(),
		"any_accuracy", sum.AnyAccuracy(),
		"completion_tokens", sum.Usage.CompletionTokens,
		"prompt_tokens", sum.Usage.PromptTokens,
		"cost", sum.Usage.Cost,
	)
	return sum, nil
}

func (r *Runner) finish(sum *Summary) *Summary {
	sum.Usage = r.opts.Usage.Report(r.opts.Backend)
	return sum
}

// instance solves and grades one index. The record is partially filled
// when err is non-nil.
func (r *Runner) instance(ctx context.Context, idx int) (Record, error) {
	rec := Record{Idx: idx, RunID: r.runID}

	res, err := r.solver.Run(ctx, idx)
	if err != nil {
		return rec, err
	}
	rec.Steps = res.Steps
	rec.Ys = res.Ys

	logger := telemetry.LoggerWithTrace(ctx, r.logger)
	rec.Infos = make([]tasks.Rewards, 0, len(res.Ys))
	for _, y := range res.Ys {
		info, err := r.task.TestOutput(ctx, idx, y)
		if err != nil {
			return rec, fmt.Errorf("grade: %w", err)
		}
		rec.Infos = append(rec.Infos, info)
	}
	logger.Debug("instance graded", "idx", idx, "outputs", len(rec.Ys))
	return rec, nil
}

// instanceFatal reports errors that end the current instance but not
// the run.
func instanceFatal(err error) bool {
	return errors.Is(err, llm.ErrRetriesExhausted) ||
		errors.Is(err, llm.ErrInvalidRequest) ||
		errors.Is(err, llm.ErrNoChoices) ||
		errors.Is(err, tasks.ErrNoProposals) ||
		errors.Is(err, crossword.ErrInvalidAction) ||
		errors.Is(err, crossword.ErrInvalidPosition) ||
		errors.Is(err, crossword.ErrInvalidWord)
}

// score returns the mean r and whether any r is positive. No outputs
// score 0.
func score(infos []tasks.Rewards) (float64, bool) {
	if len(infos) == 0 {
		return 0, false
	}
	var total float64
	anyPositive := false
	for _, info := range infos {
		total += info.R
		if info.R > 0 {
			anyPositive = true
		}
	}
	return total / float64(len(infos)), anyPositive
}

// writeLog replaces the log file with every record so far.
func (r *Runner) writeLog() error {
	data, err := json.MarshalIndent(r.records, "", "    ")
	if err != nil {
		return fmt.Errorf("encode run log: %w", err)
	}
	dir := filepath.Dir(r.opts.LogPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".run-*.json")
	if err != nil {
		return fmt.Errorf("write run log: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write run log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write run log: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.opts.LogPath); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write run log: %w", err)
	}
	return nil
}
