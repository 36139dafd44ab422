// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// styles.go - Shared styling for the termsage shell.
//
// Color handling:
// - Colors are automatically disabled for non-TTY output (piped, redirected)
// - Respects NO_COLOR environment variable (https://no-color.org/)
// - Supports FORCE_COLOR environment variable to override detection

package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/termsage/internal/session"
)

// init configures lipgloss color profile based on terminal capabilities.
func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

// =============================================================================
// SHARED STYLES
// =============================================================================

var (
	// TitleStyle is used for the welcome banner
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")) // Cyan

	// ErrorStyle is used for error messages and failures
	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")). // Red
			Bold(true)

	// WarningStyle is used for cancellations and warnings
	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	// DimStyle is used for secondary information and hints
	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242")) // Dim gray

	// HighlightStyle is used for chat ids and model names in listings
	HighlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("82")) // Bright green
)

// =============================================================================
// PROMPT
// =============================================================================

// PromptFor builds the prompt for the current session, e.g.
// "TermSage [llama3:8b] > " or "TermSage [llama3:8b] chat> ".
//
// liner measures the prompt by rune count, so escape sequences would
// misplace the cursor; the prompt is therefore plain text.
func PromptFor(s session.Session) string {
	prompt := "TermSage "
	if m := s.ActiveModel(); m != "" {
		prompt += "[" + m + "] "
	}
	switch s.Mode() {
	case session.ModeChat:
		prompt += "chat> "
	case session.ModeSettings:
		prompt += "settings> "
	default:
		prompt += "> "
	}
	return prompt
}
