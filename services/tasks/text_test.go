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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestText_StepsAndStops(t *testing.T) {
	deps, _, _ := testDeps(cycle("x"))
	txt := NewText([]string{"It rained. It stopped. It rained again. The end."}, deps)

	assert.Equal(t, KindText, txt.Kind())
	assert.Equal(t, 2, txt.Steps())
	assert.Equal(t, []string{"\nPassage:\n"}, txt.Stop(0))
	assert.Nil(t, txt.Stop(1))
}

func TestText_UnsupportedModes(t *testing.T) {
	deps, client, _ := testDeps(cycle("x"))
	txt := NewText([]string{"a"}, deps)

	_, err := txt.Generate(t.Context(), "a", "", GeneratePropose, 1, StyleCoT, nil)
	assert.ErrorIs(t, err, ErrUnsupportedMode)

	_, err = txt.Evaluate(t.Context(), "a", []string{"p"}, EvaluateValue, 1)
	assert.ErrorIs(t, err, ErrUnsupportedMode)
	assert.Equal(t, 0, client.Calls())
}

func TestText_SampleUsesPlanTemplate(t *testing.T) {
	deps, client, _ := testDeps(cycle("Plan:\nbe brief\n"))
	txt := NewText([]string{"End one."}, deps)

	ys, err := txt.Generate(t.Context(), "End one.", "", GenerateSample, 2, StyleCoT, txt.Stop(0))
	require.NoError(t, err)
	assert.Equal(t, []string{"Plan:\nbe brief\n", "Plan:\nbe brief\n"}, ys)

	req := client.Requests()[0]
	assert.Contains(t, req.Messages[0].Content, "must be: End one.")
	assert.Contains(t, req.Messages[0].Content, "Make a plan then write.")
	assert.Equal(t, []string{"\nPassage:\n"}, req.Stop)
}

func TestText_TestOutputAveragesScores(t *testing.T) {
	deps, client, _ := testDeps(cycle(
		"Analysis.\nThus the coherency score is 7",
		"no verdict",
		"Thus the coherency score is 9",
	))
	txt := NewText([]string{"a"}, deps)

	r, err := txt.TestOutput(t.Context(), 0, "Plan:\nx\nPassage:\nThe passage.")
	require.NoError(t, err)
	// 5 samples cycle 7, none, 9, 7, none.
	assert.Equal(t, []int{7, 9, 7}, r.Rs)
	assert.InDelta(t, 23.0/3.0, r.R, 1e-9)

	req := client.Requests()[0]
	assert.Equal(t, textScoreSamples, req.N)
	assert.True(t, strings.HasSuffix(req.Messages[0].Content, "from 1 to 10.\nThe passage."))
}

func TestText_TestOutputNothingParses(t *testing.T) {
	deps, _, _ := testDeps(cycle("I refuse"))
	txt := NewText([]string{"a"}, deps)

	r, err := txt.TestOutput(t.Context(), 0, "Passage:\nx")
	require.NoError(t, err)
	assert.Zero(t, r.R)
	assert.Empty(t, r.Rs)
}

func TestTallyVotes(t *testing.T) {
	deps, _, _ := testDeps(cycle("x"))
	txt := NewText([]string{"a"}, deps)

	got := tallyVotes([]string{
		"The best choice is 2",
		"the best choice is 2",
		"The best choice is 1",
		"The best choice is 4",
		"The best choice is 0",
		"I cannot decide",
	}, 3, txt.logger)
	assert.Equal(t, []float64{1, 2, 0}, got)
}

func TestVotePromptFor(t *testing.T) {
	p := votePromptFor([]string{"alpha", "beta"})
	assert.True(t, strings.HasSuffix(p, "Choice 1:\nalpha\nChoice 2:\nbeta\n"))
}
