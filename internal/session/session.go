// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session implements the interaction state machine.
package session

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jeranaias/termsage/internal/model"
	"github.com/jeranaias/termsage/internal/ollama"
)

// =============================================================================
// MODE
// =============================================================================

// Mode is the interaction mode.
type Mode int

const (
	ModeMain Mode = iota
	ModeChat
	ModeSettings
)

// String returns the lowercase mode name.
func (m Mode) String() string {
	switch m {
	case ModeMain:
		return "main"
	case ModeChat:
		return "chat"
	case ModeSettings:
		return "settings"
	default:
		return "unknown"
	}
}

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot holds the persistable session fields. It seeds a new Session
// and is what the shell hands to the config persister on exit.
type Snapshot struct {
	ActiveModel  string
	Temperature  float64
	SystemPrompt string
	HistoryLimit int
	AutoStart    bool
}

// =============================================================================
// SESSION
// =============================================================================

// Session is the single owned root of interaction state.
//
// It is a value: every transition returns the next Session and leaves the
// receiver untouched, and on error the returned Session equals the
// receiver. The only shared part is the model cache handle.
type Session struct {
	mode         Mode
	activeModel  string
	temperature  float64
	systemPrompt string
	historyLimit int
	autoStart    bool

	transcript model.Transcript
	models     *ModelCache
}

// New creates a Session in Main mode.
func New(initial Snapshot, models *ModelCache) Session {
	return Session{
		mode:         ModeMain,
		activeModel:  initial.ActiveModel,
		temperature:  initial.Temperature,
		systemPrompt: initial.SystemPrompt,
		historyLimit: initial.HistoryLimit,
		autoStart:    initial.AutoStart,
		models:       models,
	}
}

// Mode returns the current mode.
func (s Session) Mode() Mode { return s.mode }

// ActiveModel returns the selected model name, or "" when unset.
func (s Session) ActiveModel() string { return s.activeModel }

// Temperature returns the sampling temperature.
func (s Session) Temperature() float64 { return s.temperature }

// SystemPrompt returns the system prompt.
func (s Session) SystemPrompt() string { return s.systemPrompt }

// HistoryLimit returns the maximum number of transcript turns kept.
func (s Session) HistoryLimit() int { return s.historyLimit }

// AutoStart reports whether the service may be started automatically.
func (s Session) AutoStart() bool { return s.autoStart }

// Transcript returns the chat transcript; empty outside Chat mode.
func (s Session) Transcript() model.Transcript { return s.transcript }

// Models returns the shared model cache.
func (s Session) Models() *ModelCache { return s.models }

// Snapshot returns the persistable fields.
func (s Session) Snapshot() Snapshot {
	return Snapshot{
		ActiveModel:  s.activeModel,
		Temperature:  s.temperature,
		SystemPrompt: s.systemPrompt,
		HistoryLimit: s.historyLimit,
		AutoStart:    s.autoStart,
	}
}

func (s Session) require(op string, modes ...Mode) error {
	for _, m := range modes {
		if s.mode == m {
			return nil
		}
	}
	return NewInvalidInMode(op, s.mode)
}

// =============================================================================
// MODEL SELECTION
// =============================================================================

// ResolveModel maps a user query to an installed model name: an exact
// match wins, otherwise a unique case-insensitive prefix match. The cache
// is fetched once if it is empty or stale.
func (s Session) ResolveModel(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	models, err := s.models.Ensure(ctx)
	if err != nil {
		return "", err
	}

	if containsModel(models, query) {
		return query, nil
	}

	lower := strings.ToLower(query)
	var matches []string
	for _, m := range models {
		if strings.HasPrefix(strings.ToLower(m.Name), lower) {
			matches = append(matches, m.Name)
		}
	}
	sort.Strings(matches)

	switch len(matches) {
	case 0:
		return "", &Error{Kind: KindInvalidModel, Op: "model", Value: query}
	case 1:
		return matches[0], nil
	default:
		return "", &Error{Kind: KindAmbiguousModel, Op: "model", Value: query, Candidates: matches}
	}
}

// Select makes name the active model. name must appear in the cached list;
// an empty or stale cache is fetched exactly once first. On success the
// cache is marked stale so the next lookup sees fresh data.
func (s Session) Select(ctx context.Context, name string) (Session, error) {
	if err := s.require("model", ModeMain); err != nil {
		return s, err
	}

	models, err := s.models.Ensure(ctx)
	if err != nil {
		return s, err
	}
	if !containsModel(models, name) {
		return s, &Error{Kind: KindInvalidModel, Op: "model", Value: name}
	}

	next := s
	next.activeModel = name
	s.models.MarkStale()
	return next, nil
}

// =============================================================================
// MODE TRANSITIONS
// =============================================================================

// EnterChat moves Main to Chat. The active model is revalidated against a
// freshly fetched list, and a new empty transcript begins.
func (s Session) EnterChat(ctx context.Context) (Session, error) {
	if err := s.require("chat", ModeMain); err != nil {
		return s, err
	}
	if s.activeModel == "" {
		return s, NewNoActiveModel("chat")
	}

	models, err := s.models.Refresh(ctx)
	if err != nil {
		return s, err
	}
	if !containsModel(models, s.activeModel) {
		return s, &Error{Kind: KindInvalidModel, Op: "chat", Value: s.activeModel}
	}

	next := s
	next.mode = ModeChat
	next.transcript = model.NewTranscript()
	return next, nil
}

// ExitChat returns to Main and hands back the finished transcript.
func (s Session) ExitChat() (Session, model.Transcript, error) {
	if err := s.require("exit", ModeChat); err != nil {
		return s, model.Transcript{}, err
	}

	finished := s.transcript
	next := s
	next.mode = ModeMain
	next.transcript = model.Transcript{}
	return next, finished, nil
}

// EnterSettings moves Main to Settings.
func (s Session) EnterSettings() (Session, error) {
	if err := s.require("settings", ModeMain); err != nil {
		return s, err
	}
	next := s
	next.mode = ModeSettings
	return next, nil
}

// Back moves Settings to Main.
func (s Session) Back() (Session, error) {
	if err := s.require("back", ModeSettings); err != nil {
		return s, err
	}
	next := s
	next.mode = ModeMain
	return next, nil
}

// =============================================================================
// SETTINGS
// =============================================================================

// SetTemperature sets the sampling temperature, which must lie in [0, 1].
func (s Session) SetTemperature(v float64) (Session, error) {
	if err := s.require("temperature", ModeMain, ModeSettings); err != nil {
		return s, err
	}
	if math.IsNaN(v) || v < 0 || v > 1 {
		return s, NewOutOfRange(strconv.FormatFloat(v, 'g', -1, 64))
	}
	next := s
	next.temperature = v
	return next, nil
}

// SetSystemPrompt replaces the system prompt. Blank prompts are rejected.
func (s Session) SetSystemPrompt(prompt string) (Session, error) {
	if err := s.require("system", ModeMain, ModeSettings); err != nil {
		return s, err
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return s, NewEmptyPrompt("system")
	}
	next := s
	next.systemPrompt = prompt
	return next, nil
}

// SetAutoStart toggles automatic service start.
func (s Session) SetAutoStart(enabled bool) (Session, error) {
	if err := s.require("autostart", ModeSettings); err != nil {
		return s, err
	}
	next := s
	next.autoStart = enabled
	return next, nil
}

// =============================================================================
// CHAT
// =============================================================================

// ChatMessages builds the request messages for the next chat turn.
func (s Session) ChatMessages(pending string) []ollama.Message {
	return s.transcript.ToOllamaMessages(s.systemPrompt, pending)
}

// AppendTurn records a completed exchange, dropping the oldest turns
// beyond the history limit.
func (s Session) AppendTurn(user, assistant string) (Session, error) {
	if err := s.require("chat", ModeChat); err != nil {
		return s, err
	}
	next := s
	next.transcript = s.transcript.Append(user, assistant, s.historyLimit)
	return next, nil
}

// ChatDuration returns how long the current chat has been running.
func (s Session) ChatDuration() time.Duration {
	if s.mode != ModeChat {
		return 0
	}
	return time.Since(s.transcript.StartedAt())
}
