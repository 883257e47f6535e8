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
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		BackoffFactor:  2.0,
	}
}

func TestRetryConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  RetryConfig
		wantErr bool
	}{
		{"default config is valid", DefaultRetryConfig(), false},
		{"zero max attempts is invalid", RetryConfig{MaxAttempts: 0, InitialBackoff: time.Second, MaxBackoff: time.Second, BackoffFactor: 2.0}, true},
		{"negative initial backoff is invalid", RetryConfig{MaxAttempts: 3, InitialBackoff: -time.Second, MaxBackoff: time.Second, BackoffFactor: 2.0}, true},
		{"max backoff less than initial is invalid", RetryConfig{MaxAttempts: 3, InitialBackoff: 10 * time.Second, MaxBackoff: time.Second, BackoffFactor: 2.0}, true},
		{"backoff factor less than 1 is invalid", RetryConfig{MaxAttempts: 3, InitialBackoff: time.Second, MaxBackoff: time.Second, BackoffFactor: 0.5}, true},
		{"jitter of 1 is invalid", RetryConfig{MaxAttempts: 3, InitialBackoff: time.Second, MaxBackoff: time.Second, BackoffFactor: 2, JitterFactor: 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidRetryCfg) {
				t.Errorf("Validate() error = %v, want ErrInvalidRetryCfg", err)
			}
		})
	}
}

func TestDefaultRetryConfig_IsBounded(t *testing.T) {
	cfg := DefaultRetryConfig()
	if cfg.MaxAttempts != 6 {
		t.Errorf("MaxAttempts = %d, want 6", cfg.MaxAttempts)
	}
	if cfg.MaxBackoff != 60*time.Second {
		t.Errorf("MaxBackoff = %v, want 60s", cfg.MaxBackoff)
	}
}

// newTestRetrier records waits instead of sleeping.
func newTestRetrier(t *testing.T, cfg RetryConfig) (*Retrier, *[]time.Duration) {
	t.Helper()
	r, err := NewRetrier(cfg)
	if err != nil {
		t.Fatalf("NewRetrier() error = %v", err)
	}
	var waits []time.Duration
	r.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}
	return r, &waits
}

func TestRetryConfig_Schedule(t *testing.T) {
	got := DefaultRetryConfig().Schedule()
	want := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}
	if len(got) != len(want) {
		t.Fatalf("Schedule() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Schedule()[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	capped := RetryConfig{MaxAttempts: 5, InitialBackoff: 40 * time.Second, MaxBackoff: 60 * time.Second, BackoffFactor: 2}
	for i, d := range capped.Schedule()[1:] {
		if d != 60*time.Second {
			t.Errorf("capped Schedule()[%d] = %v, want 60s", i+1, d)
		}
	}

	if got := (RetryConfig{MaxAttempts: 1}).Schedule(); got != nil {
		t.Errorf("single attempt Schedule() = %v, want nil", got)
	}
}

func TestRetrier_SuccessOnFirstAttempt(t *testing.T) {
	r, waits := newTestRetrier(t, fastRetry(3))
	var calls atomic.Int32
	attempts, err := r.Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if attempts != 1 || calls.Load() != 1 || len(*waits) != 0 {
		t.Errorf("attempts = %d, calls = %d, waits = %v; want 1, 1, none", attempts, calls.Load(), *waits)
	}
}

func TestRetrier_SuccessAfterTransientFailures(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 5, InitialBackoff: time.Second, MaxBackoff: time.Minute, BackoffFactor: 2}
	r, waits := newTestRetrier(t, cfg)
	var retried []int
	r.OnRetry = func(attempt int, err error, wait time.Duration) {
		retried = append(retried, attempt)
	}

	attempts, err := r.Do(context.Background(), func(ctx context.Context, attempt int) error {
		if attempt < 3 {
			return ErrRateLimited
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if len(*waits) != 2 || (*waits)[0] != time.Second || (*waits)[1] != 2*time.Second {
		t.Errorf("waits = %v, want [1s 2s]", *waits)
	}
	if len(retried) != 2 || retried[0] != 1 || retried[1] != 2 {
		t.Errorf("OnRetry attempts = %v, want [1 2]", retried)
	}
}

func TestRetrier_AllAttemptsFail(t *testing.T) {
	r, waits := newTestRetrier(t, fastRetry(3))
	attempts, err := r.Do(context.Background(), func(ctx context.Context, attempt int) error {
		return ErrServerError
	})
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("Do() error = %v, want ErrRetriesExhausted", err)
	}
	if !errors.Is(err, ErrServerError) {
		t.Errorf("Do() error = %v, want wrapped ErrServerError", err)
	}
	if attempts != 3 || len(*waits) != 2 {
		t.Errorf("attempts = %d, waits = %d, want 3 and 2", attempts, len(*waits))
	}
}

func TestRetrier_NonRetryableError(t *testing.T) {
	r, _ := newTestRetrier(t, fastRetry(5))
	attempts, err := r.Do(context.Background(), func(ctx context.Context, attempt int) error {
		return ErrInvalidRequest
	})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("Do() error = %v, want ErrInvalidRequest", err)
	}
	if errors.Is(err, ErrRetriesExhausted) {
		t.Error("non-retryable error must not be wrapped in ErrRetriesExhausted")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestRetrier_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, _ := newTestRetrier(t, fastRetry(3))
	var calls atomic.Int32
	_, err := r.Do(ctx, func(ctx context.Context, attempt int) error {
		calls.Add(1)
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() error = %v, want context.Canceled", err)
	}
	if calls.Load() != 0 {
		t.Errorf("calls = %d, want 0", calls.Load())
	}
}

func TestRetrier_CancelDuringWait(t *testing.T) {
	r, err := NewRetrier(RetryConfig{MaxAttempts: 3, InitialBackoff: time.Hour, MaxBackoff: time.Hour, BackoffFactor: 1})
	if err != nil {
		t.Fatalf("NewRetrier() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.OnRetry = func(int, error, time.Duration) { cancel() }

	attempts, err := r.Do(ctx, func(ctx context.Context, attempt int) error {
		return ErrServerError
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() error = %v, want context.Canceled", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestRetrier_JitterWithinBounds(t *testing.T) {
	cfg := fastRetry(2)
	cfg.JitterFactor = 0.2
	r, err := NewRetrier(cfg)
	if err != nil {
		t.Fatalf("NewRetrier() error = %v", err)
	}
	base := 100 * time.Millisecond
	for _, u := range []float64{0, 0.25, 0.5, 0.999} {
		r.jitter = func() float64 { return u }
		got := r.spread(base)
		if got < 80*time.Millisecond || got > 120*time.Millisecond {
			t.Fatalf("spread(%v) with u=%v = %v, want within 20%%", base, u, got)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", ErrRateLimited, true},
		{"server error", ErrServerError, true},
		{"no choices", ErrNoChoices, true},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"invalid request", ErrInvalidRequest, false},
		{"empty prompt", ErrEmptyPrompt, false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
