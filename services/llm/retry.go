// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// RetryConfig bounds how long one completion sub-batch may keep retrying.
// With the defaults a failing request is tried 6 times with waits of
// roughly 1, 2, 4, 8 and 16 seconds before the instance gives up.
type RetryConfig struct {
	MaxAttempts    int           `json:"max_attempts" yaml:"max_attempts"`
	InitialBackoff time.Duration `json:"initial_backoff" yaml:"initial_backoff"`
	MaxBackoff     time.Duration `json:"max_backoff" yaml:"max_backoff"`
	BackoffFactor  float64       `json:"backoff_factor" yaml:"backoff_factor"`

	// JitterFactor spreads each wait uniformly over [1-j, 1+j] times its
	// nominal value. Zero disables jitter.
	JitterFactor float64 `json:"jitter_factor" yaml:"jitter_factor"`
}

// DefaultRetryConfig returns the retry policy used for completion calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    6,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     60 * time.Second,
		BackoffFactor:  2.0,
		JitterFactor:   0.2,
	}
}

// Validate checks if the retry configuration is valid.
func (c RetryConfig) Validate() error {
	switch {
	case c.MaxAttempts < 1:
		return fmt.Errorf("%w: max_attempts must be >= 1", ErrInvalidRetryCfg)
	case c.InitialBackoff <= 0:
		return fmt.Errorf("%w: initial_backoff must be positive", ErrInvalidRetryCfg)
	case c.MaxBackoff < c.InitialBackoff:
		return fmt.Errorf("%w: max_backoff must be >= initial_backoff", ErrInvalidRetryCfg)
	case c.BackoffFactor < 1.0:
		return fmt.Errorf("%w: backoff_factor must be >= 1", ErrInvalidRetryCfg)
	case c.JitterFactor < 0 || c.JitterFactor >= 1:
		return fmt.Errorf("%w: jitter_factor must be in [0, 1)", ErrInvalidRetryCfg)
	}
	return nil
}

// Schedule returns the nominal wait after each failed attempt except the
// last, before jitter.
func (c RetryConfig) Schedule() []time.Duration {
	if c.MaxAttempts < 2 {
		return nil
	}
	waits := make([]time.Duration, c.MaxAttempts-1)
	wait := c.InitialBackoff
	for i := range waits {
		waits[i] = wait
		wait = min(time.Duration(float64(wait)*c.BackoffFactor), c.MaxBackoff)
	}
	return waits
}

// RetryableFunc is one attempt. attempt starts at 1.
type RetryableFunc func(ctx context.Context, attempt int) error

// Retrier runs attempts under a RetryConfig. Only errors IsRetryable
// accepts are retried.
//
// Thread Safety: Safe for concurrent use once built. OnRetry must be set
// before the first Do.
type Retrier struct {
	cfg      RetryConfig
	schedule []time.Duration

	// OnRetry, when set, runs after a retryable failure and before the
	// wait.
	OnRetry func(attempt int, err error, wait time.Duration)

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() float64
}

// NewRetrier validates cfg.
func NewRetrier(cfg RetryConfig) (*Retrier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Retrier{
		cfg:      cfg,
		schedule: cfg.Schedule(),
		sleep:    sleepCtx,
		jitter:   rand.Float64,
	}, nil
}

// Do calls fn until it succeeds, fails with an error that is not
// retryable, or runs out of attempts.
//
// Outputs:
//   - int: Attempts made.
//   - error: nil on success. A non-retryable error or ctx.Err() is
//     returned as is. When every attempt fails the last error is wrapped
//     in ErrRetriesExhausted.
func (r *Retrier) Do(ctx context.Context, fn RetryableFunc) (int, error) {
	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}
		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return attempt, nil
		}
		if !IsRetryable(lastErr) {
			return attempt, lastErr
		}
		if attempt == r.cfg.MaxAttempts {
			break
		}

		wait := r.spread(r.schedule[attempt-1])
		if r.OnRetry != nil {
			r.OnRetry(attempt, lastErr, wait)
		}
		if err := r.sleep(ctx, wait); err != nil {
			return attempt, err
		}
	}
	return r.cfg.MaxAttempts, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, r.cfg.MaxAttempts, lastErr)
}

func (r *Retrier) spread(d time.Duration) time.Duration {
	j := r.cfg.JitterFactor
	if j <= 0 {
		return d
	}
	return time.Duration(float64(d) * (1 + (r.jitter()*2-1)*j))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
