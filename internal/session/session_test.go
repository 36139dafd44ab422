// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/termsage/internal/ollama"
)

// fakeSource returns a fixed model list and counts calls.
type fakeSource struct {
	names []string
	err   error
	calls int
}

func (f *fakeSource) ListModels(context.Context) ([]ollama.ModelInfo, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]ollama.ModelInfo, len(f.names))
	for i, n := range f.names {
		out[i] = ollama.ModelInfo{Name: n, Size: int64(i+1) * 1_000_000_000}
	}
	return out, nil
}

func standardModels() *fakeSource {
	return &fakeSource{names: []string{"llama3:8b", "codellama:7b", "mistral:7b"}}
}

func newSession(src ModelSource) Session {
	return New(Snapshot{Temperature: 0.7, HistoryLimit: 100, AutoStart: true}, NewModelCache(src))
}

// =============================================================================
// TEMPERATURE
// =============================================================================

func TestSetTemperatureInRange(t *testing.T) {
	values := []float64{0, 0.1, 0.3, 0.5, 0.7, 0.99, 1}
	for _, v := range values {
		s, err := newSession(standardModels()).EnterSettings()
		require.NoError(t, err)

		next, err := s.SetTemperature(v)
		require.NoError(t, err)
		assert.Equal(t, v, next.Temperature())
		assert.Equal(t, ModeSettings, next.Mode())
	}
}

func TestSetTemperatureOutOfRange(t *testing.T) {
	values := []float64{-0.01, 1.01, 2, -1, math.NaN(), math.Inf(1), math.Inf(-1)}
	for _, v := range values {
		s, _ := newSession(standardModels()).EnterSettings()

		next, err := s.SetTemperature(v)
		assert.ErrorIs(t, err, ErrOutOfRange, "value %v", v)
		assert.Equal(t, 0.7, next.Temperature())
		assert.Equal(t, s, next)
	}
}

func TestSetTemperatureInMain(t *testing.T) {
	next, err := newSession(standardModels()).SetTemperature(0.2)
	require.NoError(t, err)
	assert.Equal(t, 0.2, next.Temperature())
	assert.Equal(t, ModeMain, next.Mode())
}

func TestSetTemperatureInChatRejected(t *testing.T) {
	s := newSession(standardModels())
	s, err := s.Select(context.Background(), "mistral:7b")
	require.NoError(t, err)
	s, err = s.EnterChat(context.Background())
	require.NoError(t, err)

	next, err := s.SetTemperature(0.1)
	assert.ErrorIs(t, err, ErrInvalidInCurrentMode)
	assert.Equal(t, 0.7, next.Temperature())
}

// =============================================================================
// SYSTEM PROMPT AND AUTO-START
// =============================================================================

func TestSetSystemPrompt(t *testing.T) {
	s, _ := newSession(standardModels()).EnterSettings()

	next, err := s.SetSystemPrompt("  You are terse.  ")
	require.NoError(t, err)
	assert.Equal(t, "You are terse.", next.SystemPrompt())

	unchanged, err := next.SetSystemPrompt("   \t ")
	assert.ErrorIs(t, err, ErrEmptyPrompt)
	assert.Equal(t, "You are terse.", unchanged.SystemPrompt())
}

func TestSetAutoStartSettingsOnly(t *testing.T) {
	s := newSession(standardModels())

	_, err := s.SetAutoStart(false)
	assert.ErrorIs(t, err, ErrInvalidInCurrentMode)

	s, _ = s.EnterSettings()
	next, err := s.SetAutoStart(false)
	require.NoError(t, err)
	assert.False(t, next.AutoStart())
	assert.True(t, s.AutoStart(), "receiver must not change")
}

// =============================================================================
// MODE TRANSITIONS
// =============================================================================

func TestEnterChatWithoutModel(t *testing.T) {
	src := standardModels()
	s := newSession(src)

	next, err := s.EnterChat(context.Background())
	assert.ErrorIs(t, err, ErrNoActiveModel)
	assert.Equal(t, ModeMain, next.Mode())
	assert.Equal(t, 0, src.calls, "no fetch without an active model")
}

func TestEnterChatRevalidatesModel(t *testing.T) {
	src := standardModels()
	s, err := newSession(src).Select(context.Background(), "llama3:8b")
	require.NoError(t, err)

	src.names = []string{"mistral:7b"}
	next, err := s.EnterChat(context.Background())
	assert.ErrorIs(t, err, ErrInvalidModel)
	assert.Equal(t, ModeMain, next.Mode())
}

func TestEnterChatFetchesFreshList(t *testing.T) {
	src := standardModels()
	s, err := newSession(src).Select(context.Background(), "llama3:8b")
	require.NoError(t, err)
	before := src.calls

	chat, err := s.EnterChat(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ModeChat, chat.Mode())
	assert.Equal(t, before+1, src.calls)
	assert.True(t, chat.Transcript().IsEmpty())
}

func TestEnterChatServiceError(t *testing.T) {
	src := standardModels()
	s, err := newSession(src).Select(context.Background(), "llama3:8b")
	require.NoError(t, err)

	src.err = ollama.ErrNotRunning
	next, err := s.EnterChat(context.Background())
	assert.True(t, ollama.IsNotRunning(err))
	assert.Equal(t, s, next)
}

func TestSettingsRoundTrip(t *testing.T) {
	s := newSession(standardModels())

	settings, err := s.EnterSettings()
	require.NoError(t, err)
	assert.Equal(t, ModeSettings, settings.Mode())

	_, err = settings.EnterSettings()
	assert.ErrorIs(t, err, ErrInvalidInCurrentMode)

	main, err := settings.Back()
	require.NoError(t, err)
	assert.Equal(t, ModeMain, main.Mode())

	_, err = main.Back()
	assert.ErrorIs(t, err, ErrInvalidInCurrentMode)
}

func TestExitChatReturnsTranscript(t *testing.T) {
	s, _ := newSession(standardModels()).Select(context.Background(), "llama3:8b")
	s, _ = s.EnterChat(context.Background())
	s, err := s.AppendTurn("hi", "hello")
	require.NoError(t, err)

	main, tr, err := s.ExitChat()
	require.NoError(t, err)
	assert.Equal(t, ModeMain, main.Mode())
	assert.Equal(t, 2, tr.Len())
	assert.True(t, main.Transcript().IsEmpty())

	_, _, err = main.ExitChat()
	assert.ErrorIs(t, err, ErrInvalidInCurrentMode)
}

func TestAppendTurnRespectsHistoryLimit(t *testing.T) {
	s := New(Snapshot{Temperature: 0.7, HistoryLimit: 4}, NewModelCache(standardModels()))
	s, _ = s.Select(context.Background(), "llama3:8b")
	s, _ = s.EnterChat(context.Background())

	for _, q := range []string{"a", "b", "c"} {
		var err error
		s, err = s.AppendTurn(q, "ok")
		require.NoError(t, err)
	}
	assert.Equal(t, 4, s.Transcript().Len())

	msgs := s.ChatMessages("d")
	assert.Equal(t, "b", msgs[0].Content)
}

func TestChatMessagesSystemPromptOutsideWindow(t *testing.T) {
	s := New(Snapshot{Temperature: 0.7, HistoryLimit: 2, SystemPrompt: "sys"}, NewModelCache(standardModels()))
	s, _ = s.Select(context.Background(), "llama3:8b")
	s, _ = s.EnterChat(context.Background())
	s, _ = s.AppendTurn("q1", "a1")
	s, _ = s.AppendTurn("q2", "a2")

	msgs := s.ChatMessages("q3")
	require.Len(t, msgs, 4)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "q2", msgs[1].Content)
	assert.Equal(t, "q3", msgs[3].Content)
}

// =============================================================================
// MODEL SELECTION
// =============================================================================

func TestResolveModel(t *testing.T) {
	tests := []struct {
		query string
		want  string
		kind  ErrorKind
	}{
		{"code", "codellama:7b", KindUnknown},
		{"llama", "llama3:8b", KindUnknown},
		{"mistral:7b", "mistral:7b", KindUnknown},
		{"MISTRAL", "mistral:7b", KindUnknown},
		{"zephyr", "", KindInvalidModel},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := newSession(standardModels()).ResolveModel(context.Background(), tt.query)
			if tt.kind != KindUnknown {
				assert.Equal(t, tt.kind, KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveModelAmbiguous(t *testing.T) {
	src := &fakeSource{names: []string{"llama3:8b", "llama3:70b", "mistral:7b"}}

	_, err := newSession(src).ResolveModel(context.Background(), "llama")
	var se *Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, KindAmbiguousModel, se.Kind)
	assert.Equal(t, []string{"llama3:70b", "llama3:8b"}, se.Candidates)
	assert.Contains(t, err.Error(), "llama3:70b, llama3:8b")
}

func TestResolveModelExactBeatsPrefix(t *testing.T) {
	src := &fakeSource{names: []string{"phi3", "phi3:mini"}}

	got, err := newSession(src).ResolveModel(context.Background(), "phi3")
	require.NoError(t, err)
	assert.Equal(t, "phi3", got)
}

func TestSelectFetchesOnceWhenEmpty(t *testing.T) {
	src := standardModels()
	s := newSession(src)

	next, err := s.Select(context.Background(), "mistral:7b")
	require.NoError(t, err)
	assert.Equal(t, "mistral:7b", next.ActiveModel())
	assert.Equal(t, "", s.ActiveModel(), "receiver must not change")
	assert.Equal(t, 1, src.calls)
}

func TestSelectUsesCacheThenMarksStale(t *testing.T) {
	src := standardModels()
	s := newSession(src)
	_, err := s.Models().Refresh(context.Background())
	require.NoError(t, err)

	_, err = s.Select(context.Background(), "codellama:7b")
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls, "cached list is reused")
	assert.False(t, s.Models().Loaded(), "selection marks the cache stale")

	_, err = s.Select(context.Background(), "llama3:8b")
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls, "stale cache is refetched")
}

func TestSelectInvalidModel(t *testing.T) {
	s := newSession(standardModels())

	next, err := s.Select(context.Background(), "zephyr")
	assert.ErrorIs(t, err, ErrInvalidModel)
	assert.Equal(t, "", next.ActiveModel())
	assert.Contains(t, err.Error(), "zephyr")
}

func TestSelectOutsideMain(t *testing.T) {
	s, _ := newSession(standardModels()).EnterSettings()

	_, err := s.Select(context.Background(), "llama3:8b")
	assert.ErrorIs(t, err, ErrInvalidInCurrentMode)
	assert.Equal(t, "'model' is not available in settings mode", err.Error())
}

func TestSelectServiceErrorKeepsCache(t *testing.T) {
	src := standardModels()
	s := newSession(src)
	_, _ = s.Models().Refresh(context.Background())
	s.Models().MarkStale()

	src.err = ollama.ErrTimeout
	_, err := s.Select(context.Background(), "llama3:8b")
	assert.True(t, ollama.IsTimeout(err))
	assert.Len(t, s.Models().Models(), 3, "failed fetch keeps the previous list")
}

// =============================================================================
// SNAPSHOT
// =============================================================================

func TestSnapshot(t *testing.T) {
	initial := Snapshot{ActiveModel: "llama3:8b", Temperature: 0.4, SystemPrompt: "sys", HistoryLimit: 50, AutoStart: false}
	s := New(initial, NewModelCache(standardModels()))
	assert.Equal(t, initial, s.Snapshot())

	s, _ = s.SetTemperature(0.9)
	snap := s.Snapshot()
	assert.Equal(t, 0.9, snap.Temperature)
	assert.Equal(t, "llama3:8b", snap.ActiveModel)
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "main", ModeMain.String())
	assert.Equal(t, "chat", ModeChat.String())
	assert.Equal(t, "settings", ModeSettings.String())
}

func TestModelCacheNamesSorted(t *testing.T) {
	c := NewModelCache(standardModels())
	assert.Nil(t, c.Names())

	_, err := c.Ensure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"codellama:7b", "llama3:8b", "mistral:7b"}, c.Names())
	assert.False(t, c.FetchedAt().IsZero())

	_, _ = c.Ensure(context.Background())
	assert.Equal(t, int64(1), c.Fetches())
}
