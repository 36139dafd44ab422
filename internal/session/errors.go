// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// ERROR KINDS
// =============================================================================

// ErrorKind classifies local validation failures. All of them leave the
// session unchanged and are recovered from immediately.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindInvalidInCurrentMode
	KindUnknownCommand
	KindInvalidModel
	KindAmbiguousModel
	KindNoActiveModel
	KindOutOfRange
	KindEmptyPrompt
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindInvalidInCurrentMode:
		return "InvalidInCurrentMode"
	case KindUnknownCommand:
		return "UnknownCommand"
	case KindInvalidModel:
		return "InvalidModel"
	case KindAmbiguousModel:
		return "AmbiguousModel"
	case KindNoActiveModel:
		return "NoActiveModel"
	case KindOutOfRange:
		return "OutOfRange"
	case KindEmptyPrompt:
		return "EmptyPrompt"
	default:
		return "Unknown"
	}
}

// =============================================================================
// ERROR TYPE
// =============================================================================

// Error is a local validation failure.
type Error struct {
	Kind ErrorKind

	// Op is the command or transition that failed.
	Op string

	// Mode is the mode the session was in.
	Mode Mode

	// Value is the offending input (model name, command token, number).
	Value string

	// Candidates lists ambiguous matches or near-miss suggestions.
	Candidates []string
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindInvalidInCurrentMode:
		return fmt.Sprintf("'%s' is not available in %s mode", e.Op, e.Mode)
	case KindUnknownCommand:
		msg := fmt.Sprintf("unknown command '%s'", e.Value)
		if len(e.Candidates) > 0 {
			msg += "; did you mean: " + strings.Join(e.Candidates, ", ") + "?"
		}
		return msg
	case KindInvalidModel:
		return fmt.Sprintf("model '%s' is not installed", e.Value)
	case KindAmbiguousModel:
		return fmt.Sprintf("'%s' matches several models: %s", e.Value, strings.Join(e.Candidates, ", "))
	case KindNoActiveModel:
		return "no model selected; use 'model <name>' first"
	case KindOutOfRange:
		return fmt.Sprintf("temperature must be between 0.0 and 1.0, got %s", e.Value)
	case KindEmptyPrompt:
		return "prompt cannot be empty"
	default:
		return "session error"
	}
}

// Is matches any *Error of the same kind, so the sentinels below work
// with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinel errors for errors.Is checks.
var (
	ErrInvalidInCurrentMode = &Error{Kind: KindInvalidInCurrentMode}
	ErrUnknownCommand       = &Error{Kind: KindUnknownCommand}
	ErrInvalidModel         = &Error{Kind: KindInvalidModel}
	ErrAmbiguousModel       = &Error{Kind: KindAmbiguousModel}
	ErrNoActiveModel        = &Error{Kind: KindNoActiveModel}
	ErrOutOfRange           = &Error{Kind: KindOutOfRange}
	ErrEmptyPrompt          = &Error{Kind: KindEmptyPrompt}
)

// KindOf returns the kind of a session error, or KindUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// NewUnknownCommand reports an unrecognised command token with suggestions.
func NewUnknownCommand(token string, suggestions []string) *Error {
	return &Error{Kind: KindUnknownCommand, Value: token, Candidates: suggestions}
}

// NewInvalidInMode reports that op cannot run in mode.
func NewInvalidInMode(op string, mode Mode) *Error {
	return &Error{Kind: KindInvalidInCurrentMode, Op: op, Mode: mode}
}

// NewEmptyPrompt reports a blank prompt for op.
func NewEmptyPrompt(op string) *Error {
	return &Error{Kind: KindEmptyPrompt, Op: op}
}

// NewNoActiveModel reports that op needs a selected model.
func NewNoActiveModel(op string) *Error {
	return &Error{Kind: KindNoActiveModel, Op: op}
}

// NewOutOfRange reports an invalid temperature value.
func NewOutOfRange(value string) *Error {
	return &Error{Kind: KindOutOfRange, Op: "temperature", Value: value}
}
