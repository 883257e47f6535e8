// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package logging builds the process logger.
//
// The console gets text on a terminal and JSON otherwise, filtered at the
// configured level. With LogDir set, every record down to Debug is also
// appended as JSON to "{service}_{YYYY-MM-DD}.log", so the per-step
// search records are always on disk even when the console is quiet.
//
//	logs := logging.New(logging.Config{Level: slog.LevelInfo, Service: "thoughttree"})
//	defer logs.Close()
//	slog.SetDefault(logs.Slog())
//
// This package does not redact anything. Do not log API keys.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// ErrUnknownLevel is returned by ParseLevel.
var ErrUnknownLevel = errors.New("unknown log level")

// ParseLevel accepts slog level names in any case, plus "warning". An
// empty string is Info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return slog.LevelInfo, nil
	case "warning":
		return slog.LevelWarn, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrUnknownLevel, s)
	}
	return level, nil
}

// Config configures a Logger. The zero value logs Info and above to
// stderr.
type Config struct {
	// Level filters the console. The log file always records Debug.
	Level slog.Level

	// LogDir enables the daily JSON log file. A leading "~/" is expanded.
	LogDir string

	// Service is attached to every record and names the log file.
	Service string

	// JSON forces JSON on the console even on a terminal.
	JSON bool

	// Quiet disables console output.
	Quiet bool

	// Output replaces stderr as the console writer. Writers that are not
	// files are never treated as terminals.
	Output io.Writer
}

// Logger owns the console handler and the log file behind one
// *slog.Logger.
//
// Thread Safety: Safe for concurrent use. Close is idempotent.
type Logger struct {
	slog *slog.Logger
	file *os.File

	closeOnce sync.Once
	closeErr  error
}

// New builds a Logger. A log file that cannot be opened is reported on
// the console and skipped.
func New(config Config) *Logger {
	l := &Logger{}
	var sinks tee

	if !config.Quiet {
		out := config.Output
		if out == nil {
			out = os.Stderr
		}
		opts := &slog.HandlerOptions{Level: config.Level}
		if config.JSON || !isTerminal(out) {
			sinks = append(sinks, slog.NewJSONHandler(out, opts))
		} else {
			sinks = append(sinks, slog.NewTextHandler(out, opts))
		}
	}

	var fileErr error
	if config.LogDir != "" {
		l.file, fileErr = openDailyFile(config.LogDir, config.Service)
		if fileErr == nil {
			sinks = append(sinks, slog.NewJSONHandler(l.file, &slog.HandlerOptions{Level: slog.LevelDebug}))
		}
	}
	if len(sinks) == 0 {
		sinks = append(sinks, slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: config.Level}))
	}

	var handler slog.Handler = sinks
	if len(sinks) == 1 {
		handler = sinks[0]
	}
	if config.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("service", config.Service)})
	}
	l.slog = slog.New(handler)

	if fileErr != nil {
		l.slog.Warn("log file disabled", "dir", config.LogDir, "error", fileErr)
	}
	return l
}

// Slog returns the logger components take.
func (l *Logger) Slog() *slog.Logger { return l.slog }

// Close syncs and closes the log file, if any.
func (l *Logger) Close() error {
	l.closeOnce.Do(func() {
		if l.file != nil {
			l.closeErr = errors.Join(l.file.Sync(), l.file.Close())
		}
	})
	return l.closeErr
}

func openDailyFile(dir, service string) (*os.File, error) {
	if rest, ok := strings.CutPrefix(dir, "~/"); ok {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("expand %s: %w", dir, err)
		}
		dir = filepath.Join(home, rest)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}
	if service == "" {
		service = "thoughttree"
	}
	name := service + "_" + time.Now().Format(time.DateOnly) + ".log"
	return os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// tee sends each record to every sink whose own level admits it.
type tee []slog.Handler

func (t tee) Enabled(ctx context.Context, level slog.Level) bool {
	return slices.ContainsFunc(t, func(h slog.Handler) bool { return h.Enabled(ctx, level) })
}

func (t tee) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (t tee) WithAttrs(attrs []slog.Attr) slog.Handler {
	return t.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (t tee) WithGroup(name string) slog.Handler {
	return t.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (t tee) each(fn func(slog.Handler) slog.Handler) tee {
	out := make(tee, len(t))
	for i, h := range t {
		out[i] = fn(h)
	}
	return out
}
