// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// Renderer formats model output for display. Markdown is rendered only
// when Markdown is set, so piped output stays byte-for-byte intact.
type Renderer struct {
	Markdown bool
	term     *glamour.TermRenderer
}

// NewRenderer creates a renderer wrapping at width. If glamour cannot be
// initialized the renderer falls back to plain text.
func NewRenderer(markdown bool, width int) *Renderer {
	r := &Renderer{Markdown: markdown}
	if !markdown {
		return r
	}
	tr, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		r.Markdown = false
		return r
	}
	r.term = tr
	return r
}

// Render returns content ready to print, always ending in a newline.
func (r *Renderer) Render(content string) string {
	if r.Markdown && r.term != nil {
		if out, err := r.term.Render(content); err == nil {
			return out
		}
	}
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content
}
