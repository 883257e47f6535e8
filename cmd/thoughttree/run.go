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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/AleutianAI/thoughttree/pkg/logging"
	"github.com/AleutianAI/thoughttree/services/config"
	"github.com/AleutianAI/thoughttree/services/experiment"
	"github.com/AleutianAI/thoughttree/services/llm"
	"github.com/AleutianAI/thoughttree/services/search"
	"github.com/AleutianAI/thoughttree/services/tasks"
	"github.com/AleutianAI/thoughttree/services/telemetry"
	"github.com/AleutianAI/thoughttree/services/valuecache"
)

const shutdownTimeout = 5 * time.Second

// flagOverlays copies one flag's value from src to dst. Keys are flag
// names.
var flagOverlays = map[string]func(dst *config.RunConfig, src config.RunConfig){
	"backend":             func(d *config.RunConfig, s config.RunConfig) { d.Backend = s.Backend },
	"temperature":         func(d *config.RunConfig, s config.RunConfig) { d.Temperature = s.Temperature },
	"max_tokens":          func(d *config.RunConfig, s config.RunConfig) { d.MaxTokens = s.MaxTokens },
	"api_base_url":        func(d *config.RunConfig, s config.RunConfig) { d.APIBaseURL = s.APIBaseURL },
	"requests_per_second": func(d *config.RunConfig, s config.RunConfig) { d.RequestsPerSecond = s.RequestsPerSecond },
	"task":                func(d *config.RunConfig, s config.RunConfig) { d.Task = s.Task },
	"data_dir":            func(d *config.RunConfig, s config.RunConfig) { d.DataDir = s.DataDir },
	"task_file_path":      func(d *config.RunConfig, s config.RunConfig) { d.TaskFilePath = s.TaskFilePath },
	"task_start_index":    func(d *config.RunConfig, s config.RunConfig) { d.TaskStartIndex = s.TaskStartIndex },
	"task_end_index":      func(d *config.RunConfig, s config.RunConfig) { d.TaskEndIndex = s.TaskEndIndex },
	"naive_run":           func(d *config.RunConfig, s config.RunConfig) { d.NaiveRun = s.NaiveRun },
	"prompt_sample":       func(d *config.RunConfig, s config.RunConfig) { d.PromptSample = s.PromptSample },
	"method_generate":     func(d *config.RunConfig, s config.RunConfig) { d.MethodGenerate = s.MethodGenerate },
	"method_evaluate":     func(d *config.RunConfig, s config.RunConfig) { d.MethodEvaluate = s.MethodEvaluate },
	"method_select":       func(d *config.RunConfig, s config.RunConfig) { d.MethodSelect = s.MethodSelect },
	"n_generate_sample":   func(d *config.RunConfig, s config.RunConfig) { d.NGenerateSample = s.NGenerateSample },
	"n_evaluate_sample":   func(d *config.RunConfig, s config.RunConfig) { d.NEvaluateSample = s.NEvaluateSample },
	"n_select_sample":     func(d *config.RunConfig, s config.RunConfig) { d.NSelectSample = s.NSelectSample },
	"seed":                func(d *config.RunConfig, s config.RunConfig) { d.Seed = s.Seed },
	"cache_value":         func(d *config.RunConfig, s config.RunConfig) { d.CacheValue = s.CacheValue },
	"value_cache_dir":     func(d *config.RunConfig, s config.RunConfig) { d.ValueCacheDir = s.ValueCacheDir },
	"duplicate_policy":    func(d *config.RunConfig, s config.RunConfig) { d.DuplicatePolicy = s.DuplicatePolicy },
	"log_dir":             func(d *config.RunConfig, s config.RunConfig) { d.LogDir = s.LogDir },
	"log_level":           func(d *config.RunConfig, s config.RunConfig) { d.LogLevel = s.LogLevel },
	"status_addr":         func(d *config.RunConfig, s config.RunConfig) { d.StatusAddr = s.StatusAddr },
	"trace_exporter":      func(d *config.RunConfig, s config.RunConfig) { d.TraceExporter = s.TraceExporter },
	"metrics_exporter":    func(d *config.RunConfig, s config.RunConfig) { d.MetricsExporter = s.MetricsExporter },
}

// loadRunConfig layers defaults, the config file, the environment and
// the flags the user set, in that order.
func loadRunConfig(set *pflag.FlagSet, path string, flags config.RunConfig) (config.Resolved, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Resolved{}, err
	}
	for name, overlay := range flagOverlays {
		if set.Changed(name) {
			overlay(&cfg, flags)
		}
	}
	return cfg.Resolve()
}

func runExperiment(cmd *cobra.Command, args []string) error {
	res, err := loadRunConfig(cmd.Flags(), configPath, flagValues)
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(res.LogLevel)
	if err != nil {
		return err
	}
	logs := logging.New(logging.Config{
		Level:   level,
		LogDir:  filepath.Join(res.LogDir, "thoughttree"),
		Service: "thoughttree",
		Output:  cmd.ErrOrStderr(),
	})
	defer logs.Close()
	logger := logs.Slog()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tcfg := telemetry.DefaultConfig()
	tcfg.ServiceVersion = version
	tcfg.TraceExporter = res.TraceExporter
	tcfg.MetricExporter = res.MetricsExporter
	shutdownTelemetry, err := telemetry.Init(ctx, tcfg)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	cache, err := openValueCache(res, logger)
	if err != nil {
		return err
	}
	defer func() {
		stats := cache.Stats()
		logger.Info("value cache",
			"local_hits", stats.LocalHits,
			"store_hits", stats.StoreHits,
			"misses", stats.Misses,
			"store_size", stats.StoreSize,
		)
		if err := cache.Close(); err != nil {
			logger.Warn("value cache close", "error", err)
		}
	}()

	usage := llm.NewUsage()
	client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		BaseURL:           res.APIBaseURL,
		Retry:             res.Retry,
		RequestsPerSecond: res.RequestsPerSecond,
		Usage:             usage,
		Logger:            logger,
	})
	if err != nil {
		return err
	}

	task, err := tasks.New(res.Kind, res.DataDir, res.TaskFilePath, tasks.Deps{
		Generator: llm.Generator{
			Client:      client,
			Model:       string(res.Backend),
			Temperature: res.Temperature,
			MaxTokens:   res.MaxTokens,
		},
		Cache:  cache,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	solver, err := search.NewSolver(task, res.Search, logger)
	if err != nil {
		return err
	}
	runner, err := experiment.NewRunner(task, solver, experiment.Options{
		Start:   res.TaskStartIndex,
		End:     res.TaskEndIndex,
		LogPath: res.LogPath(),
		Backend: res.Backend,
		Usage:   usage,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	if res.StatusAddr != "" {
		status := experiment.NewStatusServer(res.StatusAddr, runner.Progress(), logger)
		if err := status.Start(); err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := status.Shutdown(sctx); err != nil {
				logger.Warn("status server shutdown", "error", err)
			}
		}()
	}

	sum, runErr := runner.Run(ctx)
	if sum != nil {
		printSummary(cmd.OutOrStdout(), *sum)
	}
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			logger.Warn("run interrupted", "log_path", res.LogPath())
		}
		return runErr
	}
	return nil
}

// openValueCache backs the cache with BadgerDB when value_cache_dir is
// set, otherwise with memory. Scores are namespaced by backend and
// temperature so a shared directory never mixes models.
func openValueCache(res config.Resolved, logger *slog.Logger) (*valuecache.Cache, error) {
	opts := valuecache.Options{
		Enabled:    res.CacheValue,
		Duplicates: res.Duplicates,
		Namespace:  valueCacheNamespace(res),
		Logger:     logger,
	}
	if res.ValueCacheDir != "" {
		bcfg := valuecache.DefaultBadgerConfig(res.ValueCacheDir)
		bcfg.Logger = logger
		store, err := valuecache.OpenBadgerStore(bcfg)
		if err != nil {
			return nil, fmt.Errorf("open value cache: %w", err)
		}
		opts.Store = store
	}
	return valuecache.New(opts), nil
}

func valueCacheNamespace(res config.Resolved) string {
	return string(res.Backend) + "@" + strconv.FormatFloat(res.Temperature, 'g', -1, 64) + "|"
}

func printSummary(w io.Writer, sum experiment.Summary) {
	fmt.Fprintf(w, "run %s: %d instances, %d failed\n", sum.RunID, sum.Instances, sum.Failed)
	fmt.Fprintf(w, "avg accuracy %.4f, any accuracy %.4f\n", sum.AvgAccuracy(), sum.AnyAccuracy())
	fmt.Fprintf(w, "usage: %d completion tokens, %d prompt tokens, cost $%.4f\n",
		sum.Usage.CompletionTokens, sum.Usage.PromptTokens, sum.Usage.Cost)
	fmt.Fprintf(w, "log: %s\n", sum.LogPath)
}
