// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package search

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"sort"
)

var (
	// ErrUnsupportedSelect indicates an unknown selection method name.
	ErrUnsupportedSelect = errors.New("unsupported select method")

	// ErrZeroScores indicates sample selection over scores that sum to zero.
	ErrZeroScores = errors.New("scores sum to zero")

	// ErrNegativeScore indicates sample selection over a negative or NaN score.
	ErrNegativeScore = errors.New("negative score")
)

// SelectMethod picks survivors from scored candidates.
type SelectMethod int

const (
	// SelectSample draws in proportion to score, with replacement.
	SelectSample SelectMethod = iota + 1

	// SelectGreedy keeps the highest scores.
	SelectGreedy
)

// ParseSelectMethod maps a configuration name onto a SelectMethod.
func ParseSelectMethod(s string) (SelectMethod, error) {
	switch s {
	case "sample":
		return SelectSample, nil
	case "greedy":
		return SelectGreedy, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedSelect, s)
	}
}

func (m SelectMethod) String() string {
	switch m {
	case SelectSample:
		return "sample"
	case SelectGreedy:
		return "greedy"
	default:
		return fmt.Sprintf("SelectMethod(%d)", int(m))
	}
}

// Greedy returns up to n candidate indices by descending score. Equal
// scores keep their original order.
func Greedy(scores []float64, n int) []int {
	ids := make([]int, len(scores))
	for i := range ids {
		ids[i] = i
	}
	slices.SortStableFunc(ids, func(a, b int) int {
		switch {
		case scores[a] > scores[b]:
			return -1
		case scores[a] < scores[b]:
			return 1
		default:
			return 0
		}
	})
	if n >= 0 && n < len(ids) {
		ids = ids[:n]
	}
	return ids
}

// Sample draws n indices independently, with replacement, each with
// probability score/sum(scores).
//
// Outputs:
//   - []int: n indices into scores.
//   - error: ErrNegativeScore for a negative or NaN score, ErrZeroScores
//     when the scores sum to zero.
func Sample(rng *rand.Rand, scores []float64, n int) ([]int, error) {
	cum := make([]float64, len(scores))
	var sum float64
	for i, s := range scores {
		if s < 0 || math.IsNaN(s) {
			return nil, fmt.Errorf("%w: index %d is %v", ErrNegativeScore, i, s)
		}
		sum += s
		cum[i] = sum
	}
	if sum == 0 {
		return nil, fmt.Errorf("%w: %d candidates", ErrZeroScores, len(scores))
	}

	ids := make([]int, n)
	for k := range ids {
		u := rng.Float64() * sum
		i := sort.Search(len(cum), func(i int) bool { return cum[i] > u })
		// Guards against u rounding onto the final boundary.
		ids[k] = min(i, len(cum)-1)
	}
	return ids, nil
}
