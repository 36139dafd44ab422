// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat transcripts.
//
// # Key Types
//
//   - Transcript: ordered, bounded sequence of turns of one chat
//   - Turn: single role-tagged entry with timestamp
//   - Role: turn role enumeration (user, assistant, system)
//
// # Usage
//
//	tr := model.NewTranscript()
//	tr = tr.Append("Hello!", "Hi there.", 100)
//	msgs := tr.ToOllamaMessages(systemPrompt, "next question")
package model
