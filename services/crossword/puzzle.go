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

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Puzzle is one 5x5 mini crossword with its ground truth.
//
// Clues are ordered h1..h5 then v1..v5. Truth is the solved board in
// row-major order, one upper-case letter per cell.
type Puzzle struct {
	Clues [Slots]string
	Truth [Cells]byte
}

// UnmarshalJSON decodes the dataset form [clues[10], board[25]].
func (p *Puzzle) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPuzzle, err)
	}
	if len(raw) != 2 {
		return fmt.Errorf("%w: got %d elements", ErrInvalidPuzzle, len(raw))
	}

	var clues []string
	if err := json.Unmarshal(raw[0], &clues); err != nil {
		return fmt.Errorf("%w: clues: %w", ErrInvalidPuzzle, err)
	}
	var cells []string
	if err := json.Unmarshal(raw[1], &cells); err != nil {
		return fmt.Errorf("%w: board: %w", ErrInvalidPuzzle, err)
	}
	if len(clues) != Slots || len(cells) != Cells {
		return fmt.Errorf("%w: got %d clues and %d cells", ErrInvalidPuzzle, len(clues), len(cells))
	}

	copy(p.Clues[:], clues)
	for i, c := range cells {
		if len(c) != 1 {
			return fmt.Errorf("%w: cell %d is %q", ErrInvalidPuzzle, i, c)
		}
		p.Truth[i] = strings.ToUpper(c)[0]
	}
	return nil
}

// MarshalJSON encodes the puzzle back into the dataset form.
func (p Puzzle) MarshalJSON() ([]byte, error) {
	cells := make([]string, Cells)
	for i, c := range p.Truth {
		cells[i] = string(c)
	}
	return json.Marshal([]any{p.Clues[:], cells})
}

// Answers returns the ground-truth slot strings.
func (p Puzzle) Answers() [Slots]string {
	return deriveAnswers(p.Truth)
}

// LoadPuzzles reads a JSON array of puzzles from path.
func LoadPuzzles(path string) ([]Puzzle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading puzzles: %w", err)
	}
	var puzzles []Puzzle
	if err := json.Unmarshal(data, &puzzles); err != nil {
		return nil, fmt.Errorf("parsing puzzles %s: %w", path, err)
	}
	return puzzles, nil
}
