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
	"net"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

// Sentinel errors for the llm package.
var (
	// Request errors (not retryable)
	ErrEmptyPrompt     = errors.New("completion request has no messages")
	ErrInvalidRequest  = errors.New("completion request rejected by backend")
	ErrUnknownBackend  = errors.New("unknown completion backend")
	ErrMissingAPIKey   = errors.New("OPENAI_API_KEY environment variable not set")
	ErrInvalidRetryCfg = errors.New("invalid retry configuration")

	// Transient errors (retryable)
	ErrRateLimited = errors.New("completion backend rate limited")
	ErrServerError = errors.New("completion backend server error")
	ErrNoChoices   = errors.New("completion backend returned no choices")

	// ErrRetriesExhausted wraps the last transient error once the retry
	// policy gives up.
	ErrRetriesExhausted = errors.New("completion retries exhausted")
)

// IsRetryable reports whether err is a transient failure worth retrying.
//
// Retryable: rate limits, 5xx responses, empty choice lists, network
// errors and per-attempt timeouts. Not retryable: context cancellation
// by the caller, 4xx responses other than 408/429, and local validation
// errors.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrServerError) || errors.Is(err, ErrNoChoices) {
		return true
	}
	if errors.Is(err, ErrEmptyPrompt) || errors.Is(err, ErrInvalidRequest) || errors.Is(err, ErrMissingAPIKey) {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func retryableStatus(code int) bool {
	switch {
	case code == http.StatusTooManyRequests, code == http.StatusRequestTimeout:
		return true
	case code >= 500:
		return true
	case code == 0:
		// No status means the request never got a response.
		return true
	default:
		return false
	}
}
