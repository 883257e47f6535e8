// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/thoughttree/pkg/validation"
	"github.com/AleutianAI/thoughttree/services/llm"
	"github.com/AleutianAI/thoughttree/services/search"
	"github.com/AleutianAI/thoughttree/services/tasks"
)

func game24Config() RunConfig {
	cfg := Default()
	cfg.Task = "game24"
	cfg.TaskFilePath = "24.csv"
	cfg.MethodGenerate = "propose"
	cfg.MethodEvaluate = "value"
	cfg.MethodSelect = "greedy"
	cfg.NEvaluateSample = 3
	cfg.NSelectSample = 5
	return cfg
}

func TestLoad_YAMLOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
task: crosswords
task_file_path: mini0505.json
task_start_index: 0
task_end_index: 20
method_generate: propose
method_evaluate: vote
method_select: sample
n_evaluate_sample: 5
retry:
  max_attempts: 3
  initial_backoff: 500ms
  max_backoff: 10s
  backoff_factor: 2
  jitter_factor: 0.1
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "crosswords", cfg.Task)
	assert.Equal(t, 20, cfg.TaskEndIndex)
	assert.Equal(t, 5, cfg.NEvaluateSample)
	assert.Equal(t, "gpt-4", cfg.Backend, "default kept")
	assert.Equal(t, 0.7, cfg.Temperature)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Retry.InitialBackoff)
}

func TestLoad_JSONFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"task": "text", "naive_run": true, "prompt_sample": "cot"}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "text", cfg.Task)
	assert.True(t, cfg.NaiveRun)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("THOUGHTTREE_LOG_DIR", "/tmp/tt-logs")
	t.Setenv("THOUGHTTREE_REQUESTS_PER_SECOND", "2.5")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/tt-logs", cfg.LogDir)
	assert.Equal(t, 2.5, cfg.RequestsPerSecond)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestResolve_Iterative(t *testing.T) {
	r, err := game24Config().Resolve()
	require.NoError(t, err)

	assert.Equal(t, tasks.KindGame24, r.Kind)
	assert.Equal(t, llm.BackendGPT4, r.Backend)
	assert.Equal(t, search.Options{
		Generate:  tasks.GeneratePropose,
		Evaluate:  tasks.EvaluateValue,
		Select:    search.SelectGreedy,
		NGenerate: 1,
		NEvaluate: 3,
		NSelect:   5,
	}, r.Search)
	assert.Equal(t, "gpt-4_0.7_propose1_value3_greedy5_start900_end1000.json", r.LogFileName())
	assert.Equal(t, filepath.Join("logs", "game24", r.LogFileName()), r.LogPath())
}

func TestResolve_Naive(t *testing.T) {
	cfg := Default()
	cfg.Task = "text"
	cfg.TaskFilePath = "data_100_random_text.txt"
	cfg.Backend = "gpt-3.5-turbo"
	cfg.Temperature = 1
	cfg.NaiveRun = true
	cfg.PromptSample = "cot"
	cfg.NGenerateSample = 10
	cfg.TaskStartIndex = 0
	cfg.TaskEndIndex = 100

	r, err := cfg.Resolve()
	require.NoError(t, err)
	assert.Equal(t, tasks.StyleCoT, r.Search.Style)
	assert.True(t, r.Search.Naive)
	assert.Equal(t, "gpt-3.5-turbo_1.0_naive_cot_sample_10_start0_end100.json", r.LogFileName())
}

func TestResolve_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RunConfig)
		target error
	}{
		{"unknown backend", func(c *RunConfig) { c.Backend = "davinci" }, ErrInvalidConfig},
		{"unknown task", func(c *RunConfig) { c.Task = "sudoku" }, ErrInvalidConfig},
		{"unknown select", func(c *RunConfig) { c.MethodSelect = "beam" }, ErrInvalidConfig},
		{"empty range", func(c *RunConfig) { c.TaskEndIndex = c.TaskStartIndex }, ErrInvalidConfig},
		{"zero samples", func(c *RunConfig) { c.NSelectSample = 0 }, ErrInvalidConfig},
		{"bad duplicate policy", func(c *RunConfig) { c.DuplicatePolicy = "first" }, ErrInvalidConfig},
		{"bad retry", func(c *RunConfig) { c.Retry.MaxAttempts = -1 }, ErrInvalidConfig},
		{"bad base url", func(c *RunConfig) { c.APIBaseURL = "not a url" }, ErrInvalidConfig},
		{"missing methods", func(c *RunConfig) { c.MethodEvaluate = "" }, ErrInvalidConfig},
		{"sample needs style", func(c *RunConfig) { c.MethodGenerate = "sample" }, ErrInvalidConfig},
		{"naive needs style", func(c *RunConfig) { c.NaiveRun = true }, ErrInvalidConfig},
		{"text propose", func(c *RunConfig) { c.Task = "text" }, tasks.ErrUnsupportedMode},
		{"crosswords value", func(c *RunConfig) { c.Task = "crosswords" }, tasks.ErrUnsupportedMode},
		{"file outside data dir", func(c *RunConfig) { c.TaskFilePath = "../secrets.csv" }, validation.ErrInvalidFileName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := game24Config()
			tt.mutate(&cfg)
			_, err := cfg.Resolve()
			assert.ErrorIs(t, err, tt.target)
		})
	}
}

func TestFormatTemperature(t *testing.T) {
	assert.Equal(t, "0.7", formatTemperature(0.7))
	assert.Equal(t, "1.0", formatTemperature(1))
	assert.Equal(t, "0.0", formatTemperature(0))
}
