// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/AleutianAI/thoughttree/services/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// --- Global Command Variables ---
var (
	configPath string

	// flagValues receives every run flag. Only flags the user set are
	// copied over the loaded config.
	flagValues = config.Default()

	rootCmd = &cobra.Command{
		Use:   "thoughttree",
		Short: "Tree-of-Thoughts search over language model completions",
		Long: `thoughttree runs deliberate search over partial solutions proposed
and scored by a chat completion model, and grades the results against
the game24, text and crosswords benchmarks.`,
		SilenceUsage: true,
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run a search experiment over a dataset range",
		Long: `run loads the config file (if any), applies THOUGHTTREE_* environment
overrides and then the flags given on the command line. The run log is
rewritten after every instance under <log_dir>/<task>/.`,
		Args: cobra.NoArgs,
		RunE: runExperiment, // Defined in run.go
	}

	summarizeCmd = &cobra.Command{
		Use:   "summarize [run_log.json...]",
		Short: "Recompute accuracy and cost from finished run logs",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSummarize, // Defined in summarize.go
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println("thoughttree " + version)
		},
	}
)

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(summarizeCmd)
	rootCmd.AddCommand(versionCmd)

	bindRunFlags(runCmd.Flags(), &flagValues, &configPath)
}

// bindRunFlags registers the run flags on f, writing into v. Defaults
// come from v, so v should start as config.Default().
func bindRunFlags(f *pflag.FlagSet, v *config.RunConfig, configPath *string) {
	f.StringVar(configPath, "config", "", "Path to a YAML or JSON run config")

	// Model
	f.StringVar(&v.Backend, "backend", v.Backend, "Model name: gpt-4 or gpt-3.5-turbo")
	f.Float64Var(&v.Temperature, "temperature", v.Temperature, "Sampling temperature")
	f.IntVar(&v.MaxTokens, "max_tokens", v.MaxTokens, "Completion token limit per request (0 = backend default)")
	f.StringVar(&v.APIBaseURL, "api_base_url", "", "OpenAI-compatible endpoint (default OPENAI_BASE_URL or api.openai.com)")
	f.Float64Var(&v.RequestsPerSecond, "requests_per_second", 0, "Throttle completion requests (0 = unlimited)")

	// Task
	f.StringVar(&v.Task, "task", "", "Task: game24, text or crosswords")
	f.StringVar(&v.DataDir, "data_dir", v.DataDir, "Dataset root containing 24/, text/ and crosswords/")
	f.StringVar(&v.TaskFilePath, "task_file_path", "", "Dataset file inside the task directory")
	f.IntVar(&v.TaskStartIndex, "task_start_index", v.TaskStartIndex, "First dataset index (inclusive)")
	f.IntVar(&v.TaskEndIndex, "task_end_index", v.TaskEndIndex, "Last dataset index (exclusive)")

	// Search
	f.BoolVar(&v.NaiveRun, "naive_run", false, "Sample complete outputs instead of searching")
	f.StringVar(&v.PromptSample, "prompt_sample", "", "Sampling prompt: standard or cot")
	f.StringVar(&v.MethodGenerate, "method_generate", "", "Generation: sample or propose")
	f.StringVar(&v.MethodEvaluate, "method_evaluate", "", "Evaluation: value or vote")
	f.StringVar(&v.MethodSelect, "method_select", "", "Selection: sample or greedy")
	f.IntVar(&v.NGenerateSample, "n_generate_sample", v.NGenerateSample, "Completions per generation prompt")
	f.IntVar(&v.NEvaluateSample, "n_evaluate_sample", v.NEvaluateSample, "Completions per evaluation prompt")
	f.IntVar(&v.NSelectSample, "n_select_sample", v.NSelectSample, "Survivors kept per step")
	f.Uint64Var(&v.Seed, "seed", 0, "Seed for sample selection")

	// Value cache
	f.BoolVar(&v.CacheValue, "cache_value", v.CacheValue, "Reuse value scores across the run")
	f.StringVar(&v.ValueCacheDir, "value_cache_dir", "", "Persist value scores in BadgerDB at this directory")
	f.StringVar(&v.DuplicatePolicy, "duplicate_policy", v.DuplicatePolicy,
		"Repeated candidates within one evaluation: zero or reuse")

	// Output and observability
	f.StringVar(&v.LogDir, "log_dir", v.LogDir, "Directory for run logs")
	f.StringVar(&v.LogLevel, "log_level", v.LogLevel, "debug, info, warn or error")
	f.StringVar(&v.StatusAddr, "status_addr", "", "Serve /healthz, /v1/progress and /metrics on host:port")
	f.StringVar(&v.TraceExporter, "trace_exporter", v.TraceExporter, "none, stdout or otlp")
	f.StringVar(&v.MetricsExporter, "metrics_exporter", v.MetricsExporter, "none, prometheus or stdout")
}
