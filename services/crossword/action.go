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
	"fmt"
	"strings"
)

// Direction is the orientation of a slot.
type Direction byte

const (
	Horizontal Direction = 'h'
	Vertical   Direction = 'v'
)

// Action writes one word into one slot.
type Action struct {
	Direction Direction

	// Index is the 0-based row (horizontal) or column (vertical).
	Index int

	// Word is exactly Size upper-case letters or placeholders.
	Word string
}

// Slot returns the slot position in clue order: h1..h5 are 0..4 and
// v1..v5 are 5..9.
func (a Action) Slot() int {
	if a.Direction == Vertical {
		return Size + a.Index
	}
	return a.Index
}

// String renders the action in its textual form, e.g. "h1. RILLE".
func (a Action) String() string {
	return fmt.Sprintf("%c%d. %s", a.Direction, a.Index+1, a.Word)
}

// ParseAction parses the last line of text as "<h|v><1-5>. <word>".
//
// A trailing confidence annotation such as "(high)" is ignored, so model
// proposals like "h2. motor (medium)" parse directly.
//
// Outputs:
//   - Action: The parsed action with an upper-cased word.
//   - error: ErrInvalidAction, ErrInvalidPosition or ErrInvalidWord.
func ParseAction(text string) (Action, error) {
	line := strings.TrimSpace(text)
	if i := strings.LastIndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[i+1:])
	}

	pos, word, ok := strings.Cut(line, ". ")
	if !ok {
		return Action{}, fmt.Errorf("%w: %q", ErrInvalidAction, line)
	}

	pos = strings.ToLower(strings.TrimSpace(pos))
	if len(pos) != 2 || (pos[0] != 'h' && pos[0] != 'v') || pos[1] < '1' || pos[1] > '5' {
		return Action{}, fmt.Errorf("%w: %q", ErrInvalidPosition, pos)
	}

	if i := strings.IndexByte(word, '('); i >= 0 {
		word = word[:i]
	}
	word = strings.ToUpper(strings.TrimSpace(word))
	if !validWord(word) {
		return Action{}, fmt.Errorf("%w: %q", ErrInvalidWord, word)
	}

	return Action{
		Direction: Direction(pos[0]),
		Index:     int(pos[1] - '1'),
		Word:      word,
	}, nil
}

func validWord(w string) bool {
	if len(w) != Size {
		return false
	}
	for i := 0; i < len(w); i++ {
		c := w[i]
		if (c < 'A' || c > 'Z') && c != Placeholder {
			return false
		}
	}
	return true
}

// ParseGrid reads a solved grid written as rows of space separated
// letters, e.g. "R I L L E", and returns one horizontal action per row.
//
// Only the last Size non-blank lines are used. Short rows are padded with
// placeholders and extra letters are dropped. Rows that still do not form
// a valid word yield ErrInvalidWord.
func ParseGrid(text string) ([]Action, error) {
	var lines []string
	for _, l := range strings.Split(strings.TrimSpace(text), "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) > Size {
		lines = lines[len(lines)-Size:]
	}

	actions := make([]Action, 0, len(lines))
	for i, l := range lines {
		word := strings.ToUpper(strings.Join(strings.Fields(l), ""))
		if len(word) > Size {
			word = word[:Size]
		}
		word += strings.Repeat(string(Placeholder), Size-len(word))
		if !validWord(word) {
			return actions, fmt.Errorf("%w: row %d %q", ErrInvalidWord, i+1, word)
		}
		actions = append(actions, Action{Direction: Horizontal, Index: i, Word: word})
	}
	return actions, nil
}
