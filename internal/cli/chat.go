// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Line editing and input history for the interactive shell.

package cli

import (
	"os"
	"path/filepath"

	"github.com/peterh/liner"
)

// =============================================================================
// LINE READER
// =============================================================================

// LineReader is the input side of the shell. Prompt returns
// liner.ErrPromptAborted on Ctrl+C and io.EOF on Ctrl+D.
type LineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(line string)
}

// =============================================================================
// INPUT HISTORY
// =============================================================================

// LineEditor provides input history, line editing and tab completion.
type LineEditor struct {
	line        *liner.State
	historyFile string
}

// NewLineEditor creates a line editor that keeps its history in
// historyFile ("" disables persistence). complete may be nil.
func NewLineEditor(historyFile string, complete liner.WordCompleter) *LineEditor {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	line.SetTabCompletionStyle(liner.TabPrints)
	if complete != nil {
		line.SetWordCompleter(complete)
	}

	e := &LineEditor{
		line:        line,
		historyFile: historyFile,
	}
	e.LoadHistory()
	return e
}

// LoadHistory loads command history from file.
func (e *LineEditor) LoadHistory() {
	if e.historyFile == "" {
		return
	}
	if f, err := os.Open(e.historyFile); err == nil {
		_, _ = e.line.ReadHistory(f)
		f.Close()
	}
}

// Prompt reads a line of input with the given prompt.
func (e *LineEditor) Prompt(prompt string) (string, error) {
	return e.line.Prompt(prompt)
}

// AppendHistory adds a line to the in-memory history.
func (e *LineEditor) AppendHistory(input string) {
	e.line.AppendHistory(input)
}

// SaveHistory persists command history to file with secure permissions.
func (e *LineEditor) SaveHistory() error {
	if e.historyFile == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(e.historyFile), 0700); err != nil {
		return err
	}

	// Create file with secure permissions (0600 - owner read/write only)
	f, err := os.OpenFile(e.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = e.line.WriteHistory(f)
	return err
}

// Close saves history and restores the terminal.
func (e *LineEditor) Close() error {
	saveErr := e.SaveHistory()
	if err := e.line.Close(); err != nil {
		return err
	}
	return saveErr
}
