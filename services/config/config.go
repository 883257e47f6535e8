// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads and validates run configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/thoughttree/pkg/validation"
	"github.com/AleutianAI/thoughttree/services/llm"
	"github.com/AleutianAI/thoughttree/services/search"
	"github.com/AleutianAI/thoughttree/services/tasks"
	"github.com/AleutianAI/thoughttree/services/valuecache"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

var validate = validator.New(validator.WithRequiredStructEnabled())

// RunConfig is one experiment run.
//
// Thread Safety: Safe to read concurrently. Not safe to modify after
// Resolve.
type RunConfig struct {
	// Backend is the model name, priced by the usage report.
	Backend     string  `json:"backend" yaml:"backend" validate:"required,oneof=gpt-4 gpt-3.5-turbo"`
	Temperature float64 `json:"temperature" yaml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens" validate:"gte=0"`

	Task           string `json:"task" yaml:"task" validate:"required,oneof=game24 text crosswords"`
	DataDir        string `json:"data_dir" yaml:"data_dir" validate:"required"`
	TaskFilePath   string `json:"task_file_path" yaml:"task_file_path" validate:"required"`
	TaskStartIndex int    `json:"task_start_index" yaml:"task_start_index" validate:"gte=0"`
	TaskEndIndex   int    `json:"task_end_index" yaml:"task_end_index" validate:"gtfield=TaskStartIndex"`

	NaiveRun       bool   `json:"naive_run" yaml:"naive_run"`
	PromptSample   string `json:"prompt_sample" yaml:"prompt_sample" validate:"omitempty,oneof=standard cot"`
	MethodGenerate string `json:"method_generate" yaml:"method_generate" validate:"omitempty,oneof=sample propose"`
	MethodEvaluate string `json:"method_evaluate" yaml:"method_evaluate" validate:"omitempty,oneof=value vote"`
	MethodSelect   string `json:"method_select" yaml:"method_select" validate:"omitempty,oneof=sample greedy"`

	NGenerateSample int `json:"n_generate_sample" yaml:"n_generate_sample" validate:"gte=1"`
	NEvaluateSample int `json:"n_evaluate_sample" yaml:"n_evaluate_sample" validate:"gte=1"`
	NSelectSample   int `json:"n_select_sample" yaml:"n_select_sample" validate:"gte=1"`

	// Seed seeds sample selection.
	Seed uint64 `json:"seed" yaml:"seed"`

	// CacheValue keeps value scores for the whole run.
	CacheValue bool `json:"cache_value" yaml:"cache_value"`

	// ValueCacheDir persists value scores across runs when set.
	ValueCacheDir string `json:"value_cache_dir" yaml:"value_cache_dir"`

	// DuplicatePolicy is "zero" or "reuse".
	DuplicatePolicy string `json:"duplicate_policy" yaml:"duplicate_policy" validate:"omitempty,oneof=zero reuse"`

	LogDir   string `json:"log_dir" yaml:"log_dir" validate:"required"`
	LogLevel string `json:"log_level" yaml:"log_level" validate:"oneof=debug info warn error"`

	APIBaseURL        string          `json:"api_base_url" yaml:"api_base_url" validate:"omitempty,url"`
	RequestsPerSecond float64         `json:"requests_per_second" yaml:"requests_per_second" validate:"gte=0"`
	Retry             llm.RetryConfig `json:"retry" yaml:"retry"`

	// StatusAddr serves /healthz, /v1/progress and /metrics when set.
	StatusAddr string `json:"status_addr" yaml:"status_addr" validate:"omitempty,hostname_port"`

	TraceExporter   string `json:"trace_exporter" yaml:"trace_exporter" validate:"oneof=none stdout otlp"`
	MetricsExporter string `json:"metrics_exporter" yaml:"metrics_exporter" validate:"oneof=none prometheus stdout"`
}

// Default returns the reference defaults. Task and TaskFilePath have none.
func Default() RunConfig {
	return RunConfig{
		Backend:         string(llm.BackendGPT4),
		Temperature:     0.7,
		DataDir:         "data",
		TaskStartIndex:  900,
		TaskEndIndex:    1000,
		NGenerateSample: 1,
		NEvaluateSample: 1,
		NSelectSample:   1,
		CacheValue:      true,
		DuplicatePolicy: string(valuecache.DuplicateZero),
		LogDir:          "logs",
		LogLevel:        "info",
		Retry:           llm.DefaultRetryConfig(),
		TraceExporter:   "none",
		MetricsExporter: "prometheus",
	}
}

// Load reads path over Default, then applies THOUGHTTREE_* environment
// overrides. An empty path skips the file. Load does not validate;
// callers overlay flags and then Resolve.
func Load(path string) (RunConfig, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			if jsonErr := json.Unmarshal(data, &cfg); jsonErr != nil {
				return cfg, fmt.Errorf("parse config (tried YAML and JSON): YAML error: %v, JSON error: %w", err, jsonErr)
			}
		}
	}
	loadFromEnv(&cfg)
	return cfg, nil
}

func loadFromEnv(cfg *RunConfig) {
	if v := os.Getenv("THOUGHTTREE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("THOUGHTTREE_LOG_DIR"); v != "" {
		cfg.LogDir = v
	}
	if v := os.Getenv("THOUGHTTREE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("THOUGHTTREE_VALUE_CACHE_DIR"); v != "" {
		cfg.ValueCacheDir = v
	}
	if v := os.Getenv("THOUGHTTREE_STATUS_ADDR"); v != "" {
		cfg.StatusAddr = v
	}
	if v := os.Getenv("THOUGHTTREE_REQUESTS_PER_SECOND"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RequestsPerSecond = f
		}
	}
}

// Validate checks struct tags and the retry policy.
func (c RunConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.Retry.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Resolved is a validated RunConfig with every method name parsed.
type Resolved struct {
	RunConfig

	Kind       tasks.Kind
	Backend    llm.Backend
	Duplicates valuecache.DuplicatePolicy
	Search     search.Options
}

// Resolve validates the config and parses every method name once.
//
// Outputs:
//   - Resolved: Config with closed enums.
//   - error: ErrInvalidConfig for tag failures or a missing method,
//     tasks.ErrUnsupportedMode for a method the task cannot run.
func (c RunConfig) Resolve() (Resolved, error) {
	if err := c.Validate(); err != nil {
		return Resolved{}, err
	}

	if err := validation.ValidateFileName(c.TaskFilePath); err != nil {
		return Resolved{}, fmt.Errorf("%w: task_file_path: %w", ErrInvalidConfig, err)
	}

	r := Resolved{RunConfig: c}
	var err error
	if r.Kind, err = tasks.ParseKind(c.Task); err != nil {
		return Resolved{}, err
	}
	if r.Backend, err = llm.ParseBackend(c.Backend); err != nil {
		return Resolved{}, err
	}
	if r.Duplicates, err = valuecache.ParseDuplicatePolicy(c.DuplicatePolicy); err != nil {
		return Resolved{}, err
	}

	opts := search.Options{
		NGenerate: c.NGenerateSample,
		NEvaluate: c.NEvaluateSample,
		NSelect:   c.NSelectSample,
		Seed:      c.Seed,
	}
	if c.PromptSample != "" {
		if opts.Style, err = tasks.ParsePromptStyle(c.PromptSample); err != nil {
			return Resolved{}, err
		}
	}

	if c.NaiveRun {
		if opts.Style == 0 {
			return Resolved{}, fmt.Errorf("%w: naive_run requires prompt_sample", ErrInvalidConfig)
		}
		opts.Naive = true
		r.Search = opts
		return r, nil
	}

	if c.MethodGenerate == "" || c.MethodEvaluate == "" || c.MethodSelect == "" {
		return Resolved{}, fmt.Errorf("%w: method_generate, method_evaluate and method_select are required unless naive_run",
			ErrInvalidConfig)
	}
	if opts.Generate, err = tasks.ParseGenerateMethod(c.MethodGenerate); err != nil {
		return Resolved{}, err
	}
	if opts.Evaluate, err = tasks.ParseEvaluateMethod(c.MethodEvaluate); err != nil {
		return Resolved{}, err
	}
	if opts.Select, err = search.ParseSelectMethod(c.MethodSelect); err != nil {
		return Resolved{}, err
	}
	if opts.Generate == tasks.GenerateSample && opts.Style == 0 {
		return Resolved{}, fmt.Errorf("%w: method_generate=sample requires prompt_sample", ErrInvalidConfig)
	}
	if err := tasks.CheckModes(r.Kind, opts.Generate, opts.Evaluate); err != nil {
		return Resolved{}, err
	}
	if err := opts.Validate(); err != nil {
		return Resolved{}, err
	}
	r.Search = opts
	return r, nil
}

// LogPath is where the run's JSON log is written.
func (r Resolved) LogPath() string {
	return filepath.Join(r.LogDir, string(r.Kind), r.LogFileName())
}

// LogFileName names the log by backend, temperature, methods and range.
func (r Resolved) LogFileName() string {
	temp := formatTemperature(r.Temperature)
	if r.NaiveRun {
		return fmt.Sprintf("%s_%s_naive_%s_sample_%d_start%d_end%d.json",
			r.Backend, temp, r.Search.Style, r.NGenerateSample, r.TaskStartIndex, r.TaskEndIndex)
	}
	return fmt.Sprintf("%s_%s_%s%d_%s%d_%s%d_start%d_end%d.json",
		r.Backend, temp,
		r.Search.Generate, r.NGenerateSample,
		r.Search.Evaluate, r.NEvaluateSample,
		r.Search.Select, r.NSelectSample,
		r.TaskStartIndex, r.TaskEndIndex)
}

// formatTemperature always keeps a decimal point, so 1 prints as "1.0".
func formatTemperature(t float64) string {
	s := strconv.FormatFloat(t, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
