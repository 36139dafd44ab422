// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package detect

import (
	"context"
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/termsage/internal/ollama"
)

func stubMemory(t *testing.T, total, available uint64, err error) {
	t.Helper()
	orig := memoryFunc
	memoryFunc = func(context.Context) (uint64, uint64, error) {
		return total, available, err
	}
	t.Cleanup(func() { memoryFunc = orig })
}

func TestSystem(t *testing.T) {
	stubMemory(t, 16<<30, 8<<30, nil)

	info, err := System(context.Background())
	require.NoError(t, err)
	assert.Equal(t, runtime.GOOS, info.OS)
	assert.Equal(t, runtime.GOARCH, info.Arch)
	assert.Positive(t, info.CPUs)
	assert.Equal(t, uint64(16<<30), info.TotalMemory)
	assert.Equal(t, uint64(8<<30), info.AvailableMemory)
}

func TestSystemMemoryError(t *testing.T) {
	stubMemory(t, 0, 0, errors.New("no /proc"))

	info, err := System(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no /proc")
	assert.Equal(t, runtime.GOOS, info.OS)
}

func TestParamBillions(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"8.0B", 8},
		{"llama3 8b", 8},
		{"qwen2.5-coder 14b", 14},
		{"tinyllama 1.1b", 1.1},
		{"mistral 7b-instruct", 7},
		{"llama3", 0},
		{"phi3 mini", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := ParamBillions(tt.in); got != tt.want {
			t.Errorf("ParamBillions(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestEstimateMemory(t *testing.T) {
	sized := ollama.ModelInfo{Name: "llama3:8b", Size: 4 << 30}
	assert.Equal(t, uint64(4<<30)+overheadBytes, EstimateMemory(sized))

	fromDetails := ollama.ModelInfo{Name: "custom", Details: ollama.ModelDetails{ParameterSize: "7B"}}
	fromName := ollama.ModelInfo{Name: "mistral:7b"}
	assert.Equal(t, EstimateMemory(fromDetails), EstimateMemory(fromName))
	assert.Greater(t, EstimateMemory(fromName), uint64(overheadBytes))

	assert.Equal(t, uint64(defaultEstimate), EstimateMemory(ollama.ModelInfo{Name: "mystery"}))
}

func TestFits(t *testing.T) {
	info := SystemInfo{AvailableMemory: 8 << 30}
	assert.True(t, info.Fits(ollama.ModelInfo{Name: "llama3:8b", Size: 4 << 30}))
	assert.False(t, info.Fits(ollama.ModelInfo{Name: "llama3:70b", Size: 40 << 30}))
	assert.False(t, info.Fits(ollama.ModelInfo{Name: "llama3:70b"}))
}
