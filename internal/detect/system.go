// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package detect

import (
	"context"
	"fmt"
	"regexp"
	"runtime"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/jeranaias/termsage/internal/ollama"
)

// =============================================================================
// SYSTEM INFO
// =============================================================================

// SystemInfo describes the host running termsage.
type SystemInfo struct {
	OS              string `json:"os"`
	Arch            string `json:"arch"`
	CPUs            int    `json:"cpus"`
	TotalMemory     uint64 `json:"total_memory"`
	AvailableMemory uint64 `json:"available_memory"`
}

// memoryFunc is swapped in tests.
var memoryFunc = func(ctx context.Context) (total, available uint64, err error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, 0, err
	}
	return vm.Total, vm.Available, nil
}

// System reports the host platform and memory.
func System(ctx context.Context) (SystemInfo, error) {
	info := SystemInfo{
		OS:   runtime.GOOS,
		Arch: runtime.GOARCH,
		CPUs: runtime.NumCPU(),
	}
	total, available, err := memoryFunc(ctx)
	if err != nil {
		return info, fmt.Errorf("failed to read memory stats: %w", err)
	}
	info.TotalMemory = total
	info.AvailableMemory = available
	return info, nil
}

// =============================================================================
// MEMORY ESTIMATES
// =============================================================================

const (
	bytesPerParam   = 0.56
	overheadBytes   = 1536 << 20
	defaultEstimate = 6 << 30
)

// paramRegex matches parameter counts like "8b", "1.5b" or "70B" that are
// not part of a longer word.
var paramRegex = regexp.MustCompile(`(?i)(?:^|[^a-z0-9.])(\d+(?:\.\d+)?)b(?:$|[^a-z0-9])`)

// ParamBillions extracts the parameter count in billions from a model
// name or Ollama parameter_size string. It returns 0 when none is found.
func ParamBillions(s string) float64 {
	m := paramRegex.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return v
}

// EstimateMemory returns the bytes a model needs once loaded. The on-disk
// size wins when known; otherwise the parameter count is read from the
// model details or the name.
func EstimateMemory(m ollama.ModelInfo) uint64 {
	if m.Size > 0 {
		return uint64(m.Size) + overheadBytes
	}
	params := ParamBillions(m.Details.ParameterSize)
	if params == 0 {
		params = ParamBillions(strings.ReplaceAll(m.Name, ":", " "))
	}
	if params == 0 {
		return defaultEstimate
	}
	return uint64(params*bytesPerParam*(1<<30)) + overheadBytes
}

// Fits reports whether a model is expected to load within the host's
// available memory.
func (s SystemInfo) Fits(m ollama.ModelInfo) bool {
	return EstimateMemory(m) <= s.AvailableMemory
}
