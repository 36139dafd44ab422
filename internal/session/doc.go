// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session implements the interaction state machine.
//
// A Session is in one of three modes: Main (initial), Chat, or Settings.
// Transitions are methods that return the next Session value:
//
//	Main     --Select-->        Main
//	Main     --EnterChat-->     Chat
//	Chat     --AppendTurn-->    Chat
//	Chat     --ExitChat-->      Main
//	Main     --EnterSettings--> Settings
//	Settings --Back-->          Main
//
// Temperature and system prompt can be changed in Main and Settings;
// the auto-start flag only in Settings. A transition attempted in the
// wrong mode fails with KindInvalidInCurrentMode. Any failure returns
// the receiver unchanged.
//
// While in Chat the active model is always one that appeared in a model
// list fetched when the chat began.
//
// # Usage
//
//	s := session.New(session.Snapshot{Temperature: 0.7, HistoryLimit: 100},
//	    session.NewModelCache(client))
//	s, err := s.Select(ctx, "llama3:8b")
//	s, err = s.EnterChat(ctx)
package session
