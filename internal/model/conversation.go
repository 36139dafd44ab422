// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/jeranaias/termsage/internal/ollama"
)

// =============================================================================
// TRANSCRIPT TYPE
// =============================================================================

// Transcript is the ordered sequence of turns of one chat sub-session.
//
// A Transcript is a value: Append returns a new Transcript and never
// writes into the backing array of the receiver, so copies taken earlier
// (for example by a Session held by the caller) are unaffected.
type Transcript struct {
	turns     []Turn
	startedAt time.Time
}

// NewTranscript starts an empty transcript.
func NewTranscript() Transcript {
	return Transcript{startedAt: time.Now()}
}

// Append returns a transcript with the completed exchange added and the
// oldest turns dropped so that at most limit turns remain. The window
// begins with a user turn unless that would leave it empty (limit 1).
// A limit of zero or less keeps everything.
func (t Transcript) Append(user, assistant string, limit int) Transcript {
	turns := make([]Turn, 0, len(t.turns)+2)
	turns = append(turns, t.turns...)
	turns = append(turns, NewTurn(RoleUser, user), NewTurn(RoleAssistant, assistant))

	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
		for len(turns) > 1 && turns[0].Role != RoleUser {
			turns = turns[1:]
		}
	}

	return Transcript{turns: turns, startedAt: t.startedAt}
}

// Len returns the number of turns.
func (t Transcript) Len() int {
	return len(t.turns)
}

// IsEmpty reports whether no exchange has completed.
func (t Transcript) IsEmpty() bool {
	return len(t.turns) == 0
}

// StartedAt returns when the chat sub-session began.
func (t Transcript) StartedAt() time.Time {
	return t.startedAt
}

// Turns returns a copy of the turns in order.
func (t Transcript) Turns() []Turn {
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// =============================================================================
// CONVERSION
// =============================================================================

// ToOllamaMessages builds the message list for a chat request: the system
// prompt (when set) first, then the transcript, then the pending user input.
// The system prompt is not counted against the history limit.
func (t Transcript) ToOllamaMessages(systemPrompt, pending string) []ollama.Message {
	msgs := make([]ollama.Message, 0, len(t.turns)+2)
	if systemPrompt != "" {
		msgs = append(msgs, ollama.NewSystemMessage(systemPrompt))
	}
	for _, turn := range t.turns {
		msgs = append(msgs, ollama.Message{Role: turn.Role.String(), Content: turn.Content})
	}
	if pending != "" {
		msgs = append(msgs, ollama.NewUserMessage(pending))
	}
	return msgs
}

// Title returns a short title derived from the first user turn.
func (t Transcript) Title() string {
	for _, turn := range t.turns {
		if turn.Role == RoleUser {
			return turn.Preview(50)
		}
	}
	return "Empty conversation"
}
