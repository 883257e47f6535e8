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

// StepRecord is what one search step saw and kept.
type StepRecord struct {
	Step     int       `json:"step"`
	X        string    `json:"x"`
	Ys       []string  `json:"ys"`
	NewYs    []string  `json:"new_ys"`
	Values   []float64 `json:"values"`
	Selected []string  `json:"select_new_ys"`
}

// Result is the outcome of one search over a problem.
type Result struct {
	// X is the problem input.
	X string `json:"x"`

	// Ys are the surviving outputs to grade.
	Ys []string `json:"ys"`

	// Steps is empty for naive runs.
	Steps []StepRecord `json:"steps,omitempty"`
}
