// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package crossword implements the 5x5 mini crossword environment.
//
// An Env holds the board, the ten answer slots derived from it, the fill
// status of every slot and the ground truth of the loaded puzzle. The
// only mutation is Step; everything else renders or reads state.
//
// Thread Safety: Env is not safe for concurrent use. It is owned by a
// single task and driven sequentially.
package crossword

import (
	"fmt"
	"strings"
)

const (
	// Size is the side length of the grid.
	Size = 5

	// Cells is the number of board cells.
	Cells = Size * Size

	// Slots is the number of answer slots (5 rows + 5 columns).
	Slots = 2 * Size

	// Placeholder marks an empty cell.
	Placeholder = '_'

	// MaxSteps is the step count after which an episode is done.
	MaxSteps = 20
)

// Status is the fill lifecycle of a slot.
type Status int

const (
	Unfilled Status = iota
	Filled
	Changed
)

// String returns the label used in status-partitioned renders.
func (s Status) String() string {
	switch s {
	case Unfilled:
		return "Unfilled"
	case Filled:
		return "Filled"
	case Changed:
		return "Changed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// StepResult is returned by Step.
type StepResult struct {
	// Render is the board with the status-partitioned answer view.
	Render string `json:"render"`

	// LetterReward is the fraction of the 25 cells matching the truth.
	LetterReward float64 `json:"r_letter"`

	// WordReward is the fraction of the 10 slots matching the truth.
	WordReward float64 `json:"r_word"`

	// Solved reports whether the whole board equals the truth.
	Solved bool `json:"r_game"`

	// Done is Solved or the step limit has been reached.
	Done bool `json:"done"`
}

// Env is the crossword state machine.
type Env struct {
	puzzles []Puzzle
	loaded  bool
	index   int

	board     [Cells]byte
	answers   [Slots]string
	status    [Slots]Status
	truthAnsw [Slots]string
	steps     int
}

// NewEnv creates an environment over puzzles. Call Reset before Step.
func NewEnv(puzzles []Puzzle) *Env {
	return &Env{puzzles: puzzles}
}

// Len returns the number of puzzles.
func (e *Env) Len() int {
	return len(e.puzzles)
}

// Index returns the loaded puzzle index, or -1 before the first Reset.
func (e *Env) Index() int {
	if !e.loaded {
		return -1
	}
	return e.index
}

// Reset loads puzzle index and clears the board, slots, statuses and
// step counter. It returns the plain render of the empty board.
func (e *Env) Reset(index int) (string, error) {
	if index < 0 || index >= len(e.puzzles) {
		return "", fmt.Errorf("%w: %d not in [0, %d)", ErrPuzzleIndex, index, len(e.puzzles))
	}
	e.index = index
	e.loaded = true
	for i := range e.board {
		e.board[i] = Placeholder
	}
	e.answers = deriveAnswers(e.board)
	e.status = [Slots]Status{}
	e.truthAnsw = e.puzzles[index].Answers()
	e.steps = 0
	return e.Render(false), nil
}

// Step parses and applies one action.
//
// Status rules: the written slot goes Unfilled to Filled, and Filled to
// Changed when one of its previously placed letters is overwritten. Any
// other slot that is not Unfilled becomes Changed when one of its placed
// letters is overwritten. Changed never reverts.
func (e *Env) Step(action string) (StepResult, error) {
	if !e.loaded {
		return StepResult{}, ErrNotReset
	}
	act, err := ParseAction(action)
	if err != nil {
		return StepResult{}, err
	}
	return e.Apply(act), nil
}

// Apply writes an already parsed action.
func (e *Env) Apply(act Action) StepResult {
	prev := e.answers
	for k := 0; k < Size; k++ {
		e.board[cellIndex(act, k)] = act.Word[k]
	}
	e.answers = deriveAnswers(e.board)
	e.steps++

	written := act.Slot()
	for i := range e.answers {
		if i == written || e.status[i] == Unfilled {
			continue
		}
		if overwritten(prev[i], e.answers[i]) {
			e.status[i] = Changed
		}
	}
	switch e.status[written] {
	case Unfilled:
		e.status[written] = Filled
	case Filled:
		if overwritten(prev[written], e.answers[written]) {
			e.status[written] = Changed
		}
	}

	solved := e.Solved()
	return StepResult{
		Render:       e.Render(true),
		LetterReward: e.LetterReward(),
		WordReward:   e.WordReward(),
		Solved:       solved,
		Done:         solved || e.steps >= MaxSteps,
	}
}

// Solved reports whether the board equals the truth.
func (e *Env) Solved() bool {
	return e.loaded && e.board == e.puzzles[e.index].Truth
}

// LetterReward is the fraction of cells matching the truth.
func (e *Env) LetterReward() float64 {
	truth := e.puzzles[e.index].Truth
	n := 0
	for i := range e.board {
		if e.board[i] == truth[i] {
			n++
		}
	}
	return float64(n) / Cells
}

// WordReward is the fraction of slots matching the truth.
func (e *Env) WordReward() float64 {
	n := 0
	for i := range e.answers {
		if e.answers[i] == e.truthAnsw[i] {
			n++
		}
	}
	return float64(n) / Slots
}

// Steps returns the number of actions applied since Reset.
func (e *Env) Steps() int {
	return e.steps
}

// Board returns the board in row-major order.
func (e *Env) Board() string {
	return string(e.board[:])
}

// Answers returns the current slot strings in clue order.
func (e *Env) Answers() [Slots]string {
	return e.answers
}

// Statuses returns the current slot statuses in clue order.
func (e *Env) Statuses() [Slots]Status {
	return e.status
}

// RenderBoard renders the grid under a "Current board:" header.
func (e *Env) RenderBoard() string {
	var b strings.Builder
	b.WriteString("Current board:\n")
	for r := 0; r < Size; r++ {
		b.Write(e.board[r*Size : (r+1)*Size])
		b.WriteByte('\n')
	}
	return b.String()
}

// Render renders the board followed by either the status-partitioned
// clue/answer view or every clue with its current answer.
func (e *Env) Render(withStatus bool) string {
	var b strings.Builder
	b.WriteString(e.RenderBoard())
	if !withStatus {
		b.WriteByte('\n')
		b.WriteString(e.RenderAnswers(nil))
		return b.String()
	}
	for _, s := range []Status{Unfilled, Filled, Changed} {
		b.WriteString("\n" + s.String() + ":\n")
		b.WriteString(e.RenderAnswers(&s))
	}
	return b.String()
}

// RenderClues lists "h1. clue" lines, restricted to status when non-nil.
func (e *Env) RenderClues(status *Status) string {
	return e.renderSlots(status, false)
}

// RenderAnswers lists "h1. clue: ANSWER" lines, restricted to status
// when non-nil.
func (e *Env) RenderAnswers(status *Status) string {
	return e.renderSlots(status, true)
}

func (e *Env) renderSlots(status *Status, withAnswer bool) string {
	if !e.loaded {
		return ""
	}
	clues := e.puzzles[e.index].Clues
	var b strings.Builder
	for i := 0; i < Slots; i++ {
		if status != nil && e.status[i] != *status {
			continue
		}
		b.WriteString(slotName(i))
		b.WriteString(". ")
		b.WriteString(clues[i])
		if withAnswer {
			b.WriteString(": ")
			b.WriteString(e.answers[i])
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func slotName(i int) string {
	if i < Size {
		return fmt.Sprintf("h%d", i+1)
	}
	return fmt.Sprintf("v%d", i-Size+1)
}

func cellIndex(act Action, k int) int {
	if act.Direction == Vertical {
		return k*Size + act.Index
	}
	return act.Index*Size + k
}

// deriveAnswers reads rows then columns off a board.
func deriveAnswers(board [Cells]byte) [Slots]string {
	var out [Slots]string
	buf := make([]byte, Size)
	for r := 0; r < Size; r++ {
		out[r] = string(board[r*Size : (r+1)*Size])
	}
	for c := 0; c < Size; c++ {
		for r := 0; r < Size; r++ {
			buf[r] = board[r*Size+c]
		}
		out[Size+c] = string(buf)
	}
	return out
}

// overwritten reports whether any placed letter of prev differs in next.
func overwritten(prev, next string) bool {
	for i := 0; i < len(prev) && i < len(next); i++ {
		if prev[i] != Placeholder && prev[i] != next[i] {
			return true
		}
	}
	return false
}
