// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package experiment

import (
	"sync"
	"time"

	"github.com/AleutianAI/thoughttree/services/llm"
)

// ProgressSnapshot is a point-in-time copy of run progress.
type ProgressSnapshot struct {
	RunID     string          `json:"run_id"`
	Task      string          `json:"task"`
	Start     int             `json:"task_start_index"`
	End       int             `json:"task_end_index"`
	Completed int             `json:"completed"`
	Failed    int             `json:"failed"`
	LastIndex int             `json:"last_index"`
	CntAvg    float64         `json:"cnt_avg"`
	CntAny    float64         `json:"cnt_any"`
	Usage     llm.UsageReport `json:"usage_so_far"`
	StartedAt time.Time       `json:"started_at"`
	Finished  bool            `json:"finished"`
}

// Progress is shared between the runner, which writes it, and the status
// server, which reads it.
//
// Thread Safety: Safe for concurrent use.
type Progress struct {
	mu   sync.RWMutex
	snap ProgressSnapshot
}

func newProgress(runID, task string, start, end int) *Progress {
	return &Progress{snap: ProgressSnapshot{
		RunID:     runID,
		Task:      task,
		Start:     start,
		End:       end,
		LastIndex: -1,
		StartedAt: time.Now(),
	}}
}

// Snapshot returns a copy of the current progress.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap
}

func (p *Progress) record(idx int, failed bool, cntAvg, cntAny float64, usage llm.UsageReport) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.Completed++
	if failed {
		p.snap.Failed++
	}
	p.snap.LastIndex = idx
	p.snap.CntAvg = cntAvg
	p.snap.CntAny = cntAny
	p.snap.Usage = usage
}

func (p *Progress) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.Finished = true
}
