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
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/AleutianAI/thoughttree/services/crossword"
)

// LoadGame24 reads puzzles from a CSV file with a header row. The puzzle
// text is the second column.
func LoadGame24(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open game24 dataset: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %s", ErrEmptyDataset, path)
		}
		return nil, fmt.Errorf("read game24 header: %w", err)
	}

	var puzzles []string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read game24 dataset: %w", err)
		}
		if len(rec) < 2 {
			return nil, fmt.Errorf("game24 row %d has %d columns", len(puzzles)+2, len(rec))
		}
		puzzles = append(puzzles, strings.TrimSpace(rec[1]))
	}
	return puzzles, nil
}

// LoadLines reads one item per line.
func LoadLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open text dataset: %w", err)
	}
	text := strings.TrimRight(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	if text == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDataset, path)
	}
	return strings.Split(text, "\n"), nil
}

func loadPuzzles(path string) ([]crossword.Puzzle, error) {
	puzzles, err := crossword.LoadPuzzles(path)
	if err != nil {
		return nil, err
	}
	if len(puzzles) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDataset, path)
	}
	return puzzles, nil
}
