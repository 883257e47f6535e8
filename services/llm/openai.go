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
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// apiKeySecretPath is where container secrets mount the API key.
const apiKeySecretPath = "/run/secrets/openai_api_key"

// OpenAIConfig configures an OpenAIClient.
type OpenAIConfig struct {
	// APIKey overrides OPENAI_API_KEY and the mounted secret.
	APIKey string

	// BaseURL points at an OpenAI-compatible server. Empty uses
	// OPENAI_BASE_URL, then the public endpoint.
	BaseURL string

	// Retry is the per-sub-batch retry policy.
	Retry RetryConfig

	// RequestsPerSecond throttles sub-batch requests. Zero disables it.
	RequestsPerSecond float64

	// Usage receives token counts. May be nil.
	Usage *Usage

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// HTTPClient overrides the transport, mostly for tests.
	HTTPClient *http.Client
}

// OpenAIClient implements Client on the OpenAI chat completions API.
//
// Thread Safety: Safe for concurrent use.
type OpenAIClient struct {
	client  *openai.Client
	retrier *Retrier
	limiter *rate.Limiter
	usage   *Usage
	logger  *slog.Logger
}

// NewOpenAIClient builds a client from cfg.
//
// Outputs:
//   - *OpenAIClient: Ready client.
//   - error: ErrMissingAPIKey when no key is configured, or an invalid
//     retry configuration.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	apiKey, err := resolveAPIKey(cfg.APIKey, logger)
	if err != nil {
		return nil, err
	}

	retry := cfg.Retry
	if retry.MaxAttempts == 0 {
		retry = DefaultRetryConfig()
	}
	retrier, err := NewRetrier(retry)
	if err != nil {
		return nil, err
	}
	retrier.OnRetry = func(attempt int, err error, wait time.Duration) {
		logger.Warn("retrying completion",
			"attempt", attempt,
			"wait", wait,
			"error", err)
	}

	oc := openai.DefaultConfig(apiKey)
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv("OPENAI_BASE_URL")
	}
	if baseURL != "" {
		oc.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	logger.Info("Initializing OpenAI client",
		"base_url", oc.BaseURL,
		"max_attempts", retry.MaxAttempts,
		"rps", cfg.RequestsPerSecond)

	return &OpenAIClient{
		client:  openai.NewClientWithConfig(oc),
		retrier: retrier,
		limiter: limiter,
		usage:   cfg.Usage,
		logger:  logger,
	}, nil
}

func resolveAPIKey(explicit string, logger *slog.Logger) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return key, nil
	}
	b, err := os.ReadFile(apiKeySecretPath)
	if err != nil {
		logger.Error("OPENAI_API_KEY environment variable not set and secret not found", "path", apiKeySecretPath)
		return "", ErrMissingAPIKey
	}
	logger.Info("Read the OpenAI API key from mounted secret")
	return strings.TrimSpace(string(b)), nil
}

// Complete implements Client.
//
// Requests for more than MaxBatchSize completions are split into
// sequential sub-batches, each with its own retry budget. Texts are
// concatenated in order and usage is summed.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (*Response, error) {
	if len(req.Messages) == 0 {
		return nil, ErrEmptyPrompt
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content}
	}

	out := &Response{}
	for _, cnt := range splitBatches(req.N) {
		creq := openai.ChatCompletionRequest{
			Model:       req.Model,
			Messages:    messages,
			Temperature: float32(req.Temperature),
			MaxTokens:   maxTokens,
			N:           cnt,
			Stop:        req.Stop,
		}
		texts, usage, err := c.completeBatch(ctx, creq)
		if err != nil {
			return nil, err
		}
		out.Texts = append(out.Texts, texts...)
		out.Usage = out.Usage.Add(usage)
	}
	return out, nil
}

func (c *OpenAIClient) completeBatch(ctx context.Context, creq openai.ChatCompletionRequest) ([]string, TokenCounts, error) {
	start := time.Now()
	var (
		texts []string
		usage TokenCounts
	)

	attempts, err := c.retrier.Do(ctx, func(ctx context.Context, attempt int) error {
		if attempt > 1 {
			completionRetries.WithLabelValues(creq.Model).Inc()
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		resp, err := c.client.CreateChatCompletion(ctx, creq)
		if err != nil {
			c.logger.Warn("OpenAI API call failed",
				"model", creq.Model,
				"attempt", attempt,
				"retryable", IsRetryable(err),
				"error", err)
			return classify(err)
		}
		if len(resp.Choices) == 0 {
			c.logger.Warn("OpenAI returned no choices", "model", creq.Model, "attempt", attempt)
			return ErrNoChoices
		}

		texts = make([]string, len(resp.Choices))
		for i, ch := range resp.Choices {
			texts[i] = ch.Message.Content
		}
		usage = TokenCounts{
			CompletionTokens: int64(resp.Usage.CompletionTokens),
			PromptTokens:     int64(resp.Usage.PromptTokens),
		}
		return nil
	})
	completionDuration.WithLabelValues(creq.Model).Observe(time.Since(start).Seconds())

	if err != nil {
		completionRequests.WithLabelValues(creq.Model, "error").Inc()
		return nil, TokenCounts{}, fmt.Errorf("completion n=%d: %w", creq.N, err)
	}

	completionRequests.WithLabelValues(creq.Model, "ok").Inc()
	recordTokens(creq.Model, usage)
	c.usage.Record(usage)

	c.logger.Debug("Received completions",
		"model", creq.Model,
		"n", len(texts),
		"attempts", attempts,
		"prompt_tokens", usage.PromptTokens,
		"completion_tokens", usage.CompletionTokens)
	return texts, usage, nil
}

// classify maps backend status codes onto package sentinels while keeping
// the original error in the chain.
func classify(err error) error {
	code := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		code = reqErr.HTTPStatusCode
	default:
		return err
	}

	switch {
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	case code >= 500:
		return fmt.Errorf("%w: %w", ErrServerError, err)
	case code >= 400 && code != http.StatusRequestTimeout:
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	default:
		return err
	}
}
