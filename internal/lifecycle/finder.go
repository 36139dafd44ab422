// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package lifecycle

import (
	"context"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// NameFinder looks for a running process whose executable name matches.
type NameFinder struct {
	Name string
}

// Running reports whether any process named Name (or Name.exe) exists.
// Processes that vanish or deny access mid-scan are skipped.
func (f NameFinder) Running(ctx context.Context) (bool, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return false, err
	}

	want := strings.ToLower(f.Name)
	for _, proc := range procs {
		name, err := proc.NameWithContext(ctx)
		if err != nil {
			continue
		}
		if matchesName(name, want) {
			return true, nil
		}
	}
	return false, nil
}

func matchesName(name, want string) bool {
	name = strings.ToLower(name)
	return name == want || name == want+".exe"
}
