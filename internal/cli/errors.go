// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error types and exit codes for the termsage CLI.
//
// Commands return errors; only main decides the exit code.

package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/termsage/internal/config"
	"github.com/jeranaias/termsage/internal/lifecycle"
	"github.com/jeranaias/termsage/internal/ollama"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates an unrecoverable error (startup included)
	ExitGeneralError = 1
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// StartupError reports a failure before the shell could start.
type StartupError struct {
	Stage string // e.g. "config", "service"
	Err   error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("startup failed (%s): %v", e.Stage, e.Err)
}

func (e *StartupError) Unwrap() error {
	return e.Err
}

// CommandError represents a non-interactive command failure.
type CommandError struct {
	Command string // e.g. "generate", "list"
	Reason  string // human-readable reason
	Err     error  // underlying error (if any)
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %s: %v", e.Command, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s failed: %s", e.Command, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewCommandError creates a new command error.
func NewCommandError(command, reason string, err error) error {
	return &CommandError{Command: command, Reason: reason, Err: err}
}

// IsStartupError reports whether err is a startup failure.
func IsStartupError(err error) bool {
	var se *StartupError
	return errors.As(err, &se) || config.IsLoadError(err)
}

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// GetExitCode determines the exit code for an error returned by Execute.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	return ExitGeneralError
}

// DisplayError writes err to w with a hint for common failures.
func DisplayError(w io.Writer, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(w, "%s %v\n", ErrorStyle.Render("Error:"), err)

	switch {
	case config.IsLoadError(err):
		fmt.Fprintln(w, DimStyle.Render("Fix the configuration file or pass --config to use another one."))
	case errors.Is(err, lifecycle.ErrServiceUnavailable), ollama.IsNotRunning(err):
		fmt.Fprintln(w, DimStyle.Render("Start Ollama with 'ollama serve' or enable auto-start."))
	case ollama.IsModelNotFound(err):
		fmt.Fprintln(w, DimStyle.Render("Run 'termsage list' to see installed models."))
	}
}
