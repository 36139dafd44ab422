// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// =============================================================================
// PARSE RESULT
// =============================================================================

// Input is one parsed input line.
type Input struct {
	// Raw is the NFC-normalized, trimmed line.
	Raw string

	// Name is the lowercased first token ("" for blank input).
	Name string

	// Args is everything after the first token, trimmed but otherwise
	// untouched, so free text keeps its internal spacing.
	Args string
}

// Parse normalizes and splits an input line. Composed and decomposed
// forms of the same text parse identically.
func Parse(line string) Input {
	raw := strings.TrimSpace(norm.NFC.String(line))
	if raw == "" {
		return Input{}
	}

	name, rest := splitFirst(raw)
	return Input{
		Raw:  raw,
		Name: strings.ToLower(name),
		Args: strings.TrimSpace(rest),
	}
}

// IsExitKeyword reports whether the whole line is exit or quit.
func (in Input) IsExitKeyword() bool {
	return isExitKeyword(in.Raw)
}

func isExitKeyword(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "exit" || s == "quit"
}

// splitFirst splits at the first whitespace run.
func splitFirst(s string) (first, rest string) {
	end := strings.IndexFunc(s, unicode.IsSpace)
	if end == -1 {
		return s, ""
	}
	return s[:end], s[end:]
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// parseToggle reads on/off style values.
func parseToggle(s string) (value bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "true", "yes", "1", "enable", "enabled":
		return true, true
	case "off", "false", "no", "0", "disable", "disabled":
		return false, true
	default:
		return false, false
	}
}
