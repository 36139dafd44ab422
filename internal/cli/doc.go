// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides the termsage command line and interactive shell.
//
// The root command starts the shell: a line-editing loop (liner) that
// feeds each input line to the command dispatcher and prints the result.
// Subcommands run one dispatch and exit (generate, list), report on the
// service and host (status), or browse and export the chat archive
// (history).
//
// # Key Types
//
//   - App: config, logger, Ollama client, lifecycle coordinator and archive
//   - Shell: the read-dispatch-print loop over a LineReader
//   - LineEditor: liner-backed LineReader with history and tab completion
//   - Renderer: glamour markdown rendering with a plain-text fallback
//
// # Exit Codes
//
// Execute returns errors instead of exiting; GetExitCode maps them to 0
// (success) or 1 (startup or command failure).
package cli
