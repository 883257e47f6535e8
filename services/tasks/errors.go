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

import "errors"

// Sentinel errors for the tasks package.
var (
	// Configuration errors
	ErrUnknownTask     = errors.New("unknown task")
	ErrUnsupportedMode = errors.New("mode not supported by task")

	// Dataset errors
	ErrIndexOutOfRange = errors.New("dataset index out of range")
	ErrEmptyDataset    = errors.New("dataset is empty")

	// ErrNoProposals means a propose completion yielded no usable line.
	ErrNoProposals = errors.New("propose completion yielded no candidates")
)
