// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package crossword

import "errors"

// Sentinel errors for the crossword package.
var (
	// Action format errors
	ErrInvalidAction   = errors.New(`invalid action: format should be like "h1. apple"`)
	ErrInvalidPosition = errors.New("invalid action: position should be h1-h5 or v1-v5")
	ErrInvalidWord     = errors.New("invalid action: word should have 5 letters")

	// Puzzle errors
	ErrPuzzleIndex   = errors.New("puzzle index out of range")
	ErrInvalidPuzzle = errors.New("invalid puzzle: expected [clues[10], board[25]]")
	ErrNotReset      = errors.New("environment has no puzzle loaded")
)
