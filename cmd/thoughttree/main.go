// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command thoughttree runs Tree-of-Thoughts experiments against a chat
// completion backend.
//
// Usage:
//
//	thoughttree run --task game24 --task_file_path 24.csv \
//	  --method_generate propose --method_evaluate value --method_select greedy \
//	  --n_evaluate_sample 3 --n_select_sample 5
//
//	thoughttree run --config runs/text-cot.yaml --status_addr 127.0.0.1:9464
//
//	thoughttree summarize logs/game24/gpt-4_0.7_propose1_value3_greedy5_start900_end1000.json
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
