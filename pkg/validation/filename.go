// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation checks user-provided names before they are joined
// into file system paths.
package validation

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidFileName is returned for names that are not a single plain
// file name.
var ErrInvalidFileName = errors.New("invalid file name")

// fileNamePattern allows letters, digits, dots, dashes and underscores.
// The first character may not be a dot.
var fileNamePattern = regexp.MustCompile(`^[A-Za-z0-9_\-][A-Za-z0-9_.\-]{0,254}$`)

// ValidateFileName accepts a bare file name such as "24.csv" or
// "mini0505.json" and rejects anything that could leave its directory.
//
// Example:
//
//	if err := validation.ValidateFileName(cfg.TaskFilePath); err != nil {
//	    return err
//	}
//	path := filepath.Join(dataDir, "24", cfg.TaskFilePath)
func ValidateFileName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidFileName)
	}
	if !fileNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q (letters, digits, '.', '-' and '_' only, no directories)", ErrInvalidFileName, name)
	}
	return nil
}
