// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/jeranaias/termsage/internal/session"
)

func mainSession(src *fakeSource) session.Session {
	return session.New(session.Snapshot{Temperature: 0.7, HistoryLimit: 100, AutoStart: true}, session.NewModelCache(src))
}

func inMode(t *testing.T, mode session.Mode, src *fakeSource) session.Session {
	t.Helper()
	s := mainSession(src)
	var err error
	switch mode {
	case session.ModeSettings:
		s, err = s.EnterSettings()
	case session.ModeChat:
		if s, err = s.Select(context.Background(), "llama3:8b"); err == nil {
			s, err = s.EnterChat(context.Background())
		}
	}
	if err != nil {
		t.Fatalf("entering %s: %v", mode, err)
	}
	return s
}

// TestCompleterComplete covers completion in every mode.
func TestCompleterComplete(t *testing.T) {
	tests := []struct {
		name  string
		mode  session.Mode
		input string
		want  []string
	}{
		{"command prefix", session.ModeMain, "mod", []string{"model"}},
		{"shared prefix", session.ModeMain, "c", []string{"chat", "clear", "config"}},
		{"alias included", session.ModeMain, "q", []string{"quit"}},
		{"case insensitive", session.ModeMain, "HE", []string{"help"}},
		{"leading space", session.ModeMain, "  gen", []string{"generate"}},
		{"no match", session.ModeMain, "xyz", nil},
		{"all main commands", session.ModeMain, "", []string{
			"chat", "clear", "config", "exit", "generate", "help", "history", "list",
			"model", "quit", "settings", "system", "temperature",
		}},
		{"model names", session.ModeMain, "model cod", []string{"codellama:7b"}},
		{"all model names", session.ModeMain, "model ", []string{"codellama:7b", "llama3:8b", "mistral:7b"}},
		{"model upper case command", session.ModeMain, "MODEL l", []string{"llama3:8b"}},
		{"model second word ignored", session.ModeMain, "model cod extra", nil},
		{"temperature presets", session.ModeMain, "temperature ", []string{"0.0", "0.3", "0.5", "0.7", "1.0"}},
		{"temperature prefix", session.ModeMain, "temperature 0.", []string{"0.0", "0.3", "0.5", "0.7"}},
		{"free text not completed", session.ModeMain, "generate hel", nil},
		{"autostart invalid in main", session.ModeMain, "autostart ", nil},
		{"settings commands", session.ModeSettings, "", []string{
			"autostart", "back", "clear", "exit", "help", "quit", "system", "temperature",
		}},
		{"model invalid in settings", session.ModeSettings, "mod", nil},
		{"autostart values", session.ModeSettings, "autostart o", []string{"off", "on"}},
		{"chat exit keywords", session.ModeChat, "", []string{"exit", "quit"}},
		{"chat exit prefix", session.ModeChat, "EX", []string{"exit"}},
		{"chat ordinary turn", session.ModeChat, "hello", nil},
		{"chat commands not offered", session.ModeChat, "mod", nil},
	}

	completer := NewCompleter(NewRegistry())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := inMode(t, tt.mode, standardModels())
			got := completer.Complete(context.Background(), tt.input, s)
			if diff := cmp.Diff(tt.want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("Complete(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

func TestCompleterFetchesModelsOnlyWhenAbsent(t *testing.T) {
	src := standardModels()
	s := mainSession(src)
	completer := NewCompleter(NewRegistry())

	completer.Complete(context.Background(), "model ", s)
	if src.calls != 1 {
		t.Fatalf("first completion fetched %d times, want 1", src.calls)
	}

	completer.Complete(context.Background(), "model l", s)
	if src.calls != 1 {
		t.Errorf("second completion fetched again (%d calls)", src.calls)
	}

	// A stale list is still the most recent one; completion does not refetch.
	s.Models().MarkStale()
	got := completer.Complete(context.Background(), "model m", s)
	if src.calls != 1 {
		t.Errorf("stale cache refetched during completion (%d calls)", src.calls)
	}
	if diff := cmp.Diff([]string{"mistral:7b"}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestCompleterFetchFailureYieldsNothing(t *testing.T) {
	src := standardModels()
	src.err = errService
	s := mainSession(src)

	got := NewCompleter(NewRegistry()).Complete(context.Background(), "model ", s)
	if len(got) != 0 {
		t.Errorf("Complete() = %v, want no candidates", got)
	}
}

func TestCompleterDoesNotChangeSession(t *testing.T) {
	s := mainSession(standardModels())
	before := s.Snapshot()

	NewCompleter(NewRegistry()).Complete(context.Background(), "model ", s)

	if s.Snapshot() != before || s.Mode() != session.ModeMain {
		t.Error("completion must not alter the session")
	}
}

func TestWordCompleter(t *testing.T) {
	s := mainSession(standardModels())
	wc := NewCompleter(NewRegistry()).WordCompleter(
		func() context.Context { return context.Background() },
		func() session.Session { return s },
	)

	tests := []struct {
		line     string
		pos      int
		wantHead string
		want     []string
		wantTail string
	}{
		{"mo", 2, "", []string{"model"}, ""},
		{"model cod", 9, "model ", []string{"codellama:7b"}, ""},
		{"mo xyz", 2, "", []string{"model"}, " xyz"},
		{"zzz", 3, "zzz", nil, ""},
	}

	for _, tt := range tests {
		head, got, tail := wc(tt.line, tt.pos)
		if head != tt.wantHead || tail != tt.wantTail {
			t.Errorf("WordCompleter(%q, %d) head=%q tail=%q, want head=%q tail=%q",
				tt.line, tt.pos, head, tail, tt.wantHead, tt.wantTail)
		}
		if diff := cmp.Diff(tt.want, got, cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("WordCompleter(%q) mismatch (-want +got):\n%s", tt.line, diff)
		}
	}
}

func TestFilterPrefixDedupes(t *testing.T) {
	got := filterPrefix([]string{"b", "a", "b", "ab"}, "")
	if diff := cmp.Diff([]string{"a", "ab", "b"}, got); diff != "" {
		t.Errorf("filterPrefix mismatch (-want +got):\n%s", diff)
	}
}
