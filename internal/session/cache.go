// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/jeranaias/termsage/internal/ollama"
)

// ModelSource lists installed models. *ollama.Client satisfies it.
type ModelSource interface {
	ListModels(ctx context.Context) ([]ollama.ModelInfo, error)
}

// =============================================================================
// MODEL CACHE
// =============================================================================

// cacheState is immutable once published.
type cacheState struct {
	models    []ollama.ModelInfo
	fetchedAt time.Time
	stale     bool
}

// ModelCache holds the most recently fetched model list.
//
// The list is replaced wholesale on every successful fetch and never
// mutated in place; a failed fetch leaves the previous list in place.
// Readers always see one complete list.
type ModelCache struct {
	source ModelSource
	state  atomic.Pointer[cacheState]
	// fetches counts calls into source, including failed ones.
	fetches atomic.Int64
}

// NewModelCache creates an empty cache backed by source.
func NewModelCache(source ModelSource) *ModelCache {
	return &ModelCache{source: source}
}

// Refresh always fetches and, on success, replaces the cached list.
func (c *ModelCache) Refresh(ctx context.Context) ([]ollama.ModelInfo, error) {
	c.fetches.Add(1)
	models, err := c.source.ListModels(ctx)
	if err != nil {
		return nil, err
	}

	list := make([]ollama.ModelInfo, len(models))
	copy(list, models)
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })

	c.state.Store(&cacheState{models: list, fetchedAt: time.Now()})
	return cloneModels(list), nil
}

// Ensure fetches once when the cache has never been filled or is stale,
// and otherwise returns the cached list without a network call.
func (c *ModelCache) Ensure(ctx context.Context) ([]ollama.ModelInfo, error) {
	st := c.state.Load()
	if st != nil && !st.stale {
		return cloneModels(st.models), nil
	}
	return c.Refresh(ctx)
}

// MarkStale forces the next Ensure to fetch.
func (c *ModelCache) MarkStale() {
	st := c.state.Load()
	if st == nil {
		return
	}
	c.state.Store(&cacheState{models: st.models, fetchedAt: st.fetchedAt, stale: true})
}

// Models returns the cached list without fetching. It may be empty.
func (c *ModelCache) Models() []ollama.ModelInfo {
	st := c.state.Load()
	if st == nil {
		return nil
	}
	return cloneModels(st.models)
}

// Names returns the cached model names in sorted order.
func (c *ModelCache) Names() []string {
	st := c.state.Load()
	if st == nil {
		return nil
	}
	names := make([]string, len(st.models))
	for i, m := range st.models {
		names[i] = m.Name
	}
	return names
}

// Loaded reports whether a list has been fetched and is not stale.
func (c *ModelCache) Loaded() bool {
	st := c.state.Load()
	return st != nil && !st.stale
}

// FetchedAt returns the time of the last successful fetch.
func (c *ModelCache) FetchedAt() time.Time {
	st := c.state.Load()
	if st == nil {
		return time.Time{}
	}
	return st.fetchedAt
}

// Fetches returns how many times the source has been queried.
func (c *ModelCache) Fetches() int64 {
	return c.fetches.Load()
}

func cloneModels(in []ollama.ModelInfo) []ollama.ModelInfo {
	if in == nil {
		return nil
	}
	out := make([]ollama.ModelInfo, len(in))
	copy(out, in)
	return out
}

func containsModel(models []ollama.ModelInfo, name string) bool {
	for _, m := range models {
		if m.Name == name {
			return true
		}
	}
	return false
}
