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
	"encoding/json"
	"fmt"
	"os"
)

// LoadLog reads a run log written by Runner.
func LoadLog(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read run log: %w", err)
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode run log %s: %w", path, err)
	}
	return records, nil
}

// Summarize recomputes the run totals from its records. Usage is taken
// from the last record, since usage_so_far is cumulative.
func Summarize(path string, records []Record) Summary {
	sum := Summary{LogPath: path, Instances: len(records)}
	for _, rec := range records {
		if sum.RunID == "" {
			sum.RunID = rec.RunID
		}
		if rec.Error != "" {
			sum.Failed++
		}
		mean, anyPositive := score(rec.Infos)
		sum.CntAvg += mean
		if anyPositive {
			sum.CntAny++
		}
	}
	if len(records) > 0 {
		sum.Usage = records[len(records)-1].UsageSoFar
	}
	return sum
}
