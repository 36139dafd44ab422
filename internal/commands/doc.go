// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package commands parses and dispatches the interactive shell's commands.
//
// A Dispatcher takes one input line and the current session.Session and
// returns a Result together with the next session. The caller keeps the
// returned session; on failure it is the one that was passed in.
//
// # Key Types
//
//   - Registry: the built-in commands and the modes each is valid in
//   - Input: a parsed line (command word plus the raw remainder)
//   - Result: outcome of one dispatch, with an optional mode Transition
//   - Completer: tab completion for command names and arguments
//
// # Modes
//
// In chat mode every line other than exit/quit is sent to the model as a
// chat turn. In settings mode only the settings commands, help, back and
// exit are accepted.
//
// # Usage
//
//	d := commands.NewDispatcher(commands.Options{Service: client, Readiness: coord})
//	res, next := d.Dispatch(ctx, "model llama3", s)
//	if res.Kind == commands.ResultOk {
//		s = next
//	}
package commands
