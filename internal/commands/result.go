// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"fmt"

	"github.com/jeranaias/termsage/internal/ollama"
	"github.com/jeranaias/termsage/internal/session"
)

// ResultKind is the outcome class of a dispatch.
type ResultKind int

const (
	// ResultOk means the command succeeded.
	ResultOk ResultKind = iota
	// ResultError means the command failed; the session is unchanged.
	ResultError
	// ResultCancelled means the user interrupted a service call; the
	// session is unchanged and any partial output was discarded.
	ResultCancelled
)

// String returns the kind name.
func (k ResultKind) String() string {
	switch k {
	case ResultOk:
		return "ok"
	case ResultError:
		return "error"
	case ResultCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Event names the side effect a command asks the shell to perform.
type Event int

const (
	EventEnterChat Event = iota + 1
	EventExitChat
	EventEnterSettings
	EventLeaveSettings
	EventClear
	EventQuit
)

// String returns the event name.
func (e Event) String() string {
	switch e {
	case EventEnterChat:
		return "enter_chat"
	case EventExitChat:
		return "exit_chat"
	case EventEnterSettings:
		return "enter_settings"
	case EventLeaveSettings:
		return "leave_settings"
	case EventClear:
		return "clear"
	case EventQuit:
		return "quit"
	default:
		return "none"
	}
}

// Transition describes a mode change or shell action. It never refers
// to the session itself.
type Transition struct {
	From  session.Mode
	To    session.Mode
	Event Event
}

// Result is what a dispatch reports back to the shell.
type Result struct {
	Kind    ResultKind
	Command ID

	// Message is the text to show. For generate it is the full response.
	Message string

	// Err carries the typed error when Kind is ResultError.
	Err error

	// SideEffect is set when the shell must react (mode change, clear, quit).
	SideEffect *Transition

	// Streamed is set when Message was already delivered chunk by chunk.
	Streamed bool
}

// IsQuit reports whether the shell should exit.
func (r Result) IsQuit() bool {
	return r.SideEffect != nil && r.SideEffect.Event == EventQuit
}

func ok(id ID, format string, args ...any) Result {
	return Result{Kind: ResultOk, Command: id, Message: fmt.Sprintf(format, args...)}
}

func withEffect(r Result, from, to session.Mode, event Event) Result {
	r.SideEffect = &Transition{From: from, To: to, Event: event}
	return r
}

// failure classifies err: interrupts become ResultCancelled, everything
// else ResultError with the error's message.
func failure(id ID, err error) Result {
	if ollama.IsCancelled(err) {
		return Result{Kind: ResultCancelled, Command: id, Message: "Cancelled."}
	}
	return Result{Kind: ResultError, Command: id, Message: err.Error(), Err: err}
}

// ArgumentError reports an argument a command cannot interpret.
type ArgumentError struct {
	Command  string
	Value    string
	Expected string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%s: invalid value '%s' (expected %s)", e.Command, e.Value, e.Expected)
}
