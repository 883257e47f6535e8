// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

var voteRe = regexp.MustCompile(`(?i)best choice is\D*(\d+)`)

// votePromptFor lists candidates as 1-based choices.
func votePromptFor(ys []string) string {
	var b strings.Builder
	b.WriteString(votePrompt)
	for i, y := range ys {
		fmt.Fprintf(&b, "Choice %d:\n%s\n", i+1, y)
	}
	return b.String()
}

// vote asks for n judgements over all candidates and returns one tally
// per candidate.
func (b *base) vote(ctx context.Context, ys []string, n int) ([]float64, error) {
	if len(ys) == 0 {
		return nil, nil
	}
	outs, err := b.gen.Generate(ctx, votePromptFor(ys), n, nil)
	if err != nil {
		return nil, fmt.Errorf("%s vote: %w", b.kind, err)
	}
	return tallyVotes(outs, len(ys), b.logger), nil
}

// tallyVotes maps "best choice is N" (1-based) onto 0-based tallies.
// Unmatched outputs and out of range choices are logged and dropped.
func tallyVotes(outputs []string, candidates int, logger *slog.Logger) []float64 {
	tally := make([]float64, candidates)
	for _, out := range outputs {
		m := voteRe.FindStringSubmatch(out)
		if m == nil {
			logger.Debug("vote no match", "output", out)
			continue
		}
		choice, err := strconv.Atoi(m[1])
		if err != nil || choice < 1 || choice > candidates {
			logger.Debug("vote out of range", "choice", m[1], "candidates", candidates)
			continue
		}
		tally[choice-1]++
	}
	return tally
}
