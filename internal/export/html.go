// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/jeranaias/termsage/internal/model"
	"github.com/jeranaias/termsage/internal/storage"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports chats to a standalone HTML page with embedded CSS.
type HTMLExporter struct {
	options *Options
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{options: opts}
}

var (
	codeBlockRegex  = regexp.MustCompile("(?s)```([a-zA-Z0-9_+-]*)\n(.*?)```")
	inlineCodeRegex = regexp.MustCompile("`([^`\n]+)`")
)

// Export converts a chat to HTML format.
func (e *HTMLExporter) Export(chat *storage.StoredChat) ([]byte, error) {
	if err := validate(chat); err != nil {
		return nil, err
	}

	theme := e.options.Theme
	if theme != "light" {
		theme = "dark"
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	sb.WriteString("  <meta charset=\"UTF-8\">\n")
	sb.WriteString("  <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	fmt.Fprintf(&sb, "  <title>%s</title>\n", html.EscapeString(chat.Title))
	sb.WriteString("  <meta name=\"generator\" content=\"termsage\">\n")
	fmt.Fprintf(&sb, "  <meta name=\"date\" content=\"%s\">\n", chat.StartedAt.Format(time.RFC3339))
	sb.WriteString(css)
	sb.WriteString("</head>\n")
	fmt.Fprintf(&sb, "<body class=\"%s\">\n<div class=\"container\">\n", theme)

	if e.options.IncludeMetadata {
		sb.WriteString("  <header>\n")
		fmt.Fprintf(&sb, "    <h1>%s</h1>\n", html.EscapeString(chat.Title))
		fmt.Fprintf(&sb, "    <p class=\"meta\"><strong>Model:</strong> %s &middot; <strong>Started:</strong> %s &middot; <strong>Turns:</strong> %d</p>\n",
			html.EscapeString(chat.Model), formatTimestamp(chat.StartedAt), chat.Turns)
		sb.WriteString("  </header>\n")
	}

	sb.WriteString("  <main>\n")
	for _, turn := range chat.Messages {
		e.renderTurn(&sb, turn)
	}
	sb.WriteString("  </main>\n</div>\n</body>\n</html>\n")

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// =============================================================================
// RENDERING
// =============================================================================

func (e *HTMLExporter) renderTurn(sb *strings.Builder, turn model.Turn) {
	fmt.Fprintf(sb, "    <div class=\"message %s\">\n", html.EscapeString(string(turn.Role)))
	fmt.Fprintf(sb, "      <div class=\"role\">%s", html.EscapeString(turn.Role.DisplayName()))
	if e.options.IncludeTimestamps && !turn.Timestamp.IsZero() {
		fmt.Fprintf(sb, " <span class=\"time\">%s</span>", formatShortTimestamp(turn.Timestamp))
	}
	sb.WriteString("</div>\n")
	sb.WriteString("      <div class=\"content\">\n")
	sb.WriteString(formatContent(turn.Content))
	sb.WriteString("      </div>\n    </div>\n")
}

// formatContent escapes text, turns fenced code into <pre> blocks and
// groups the remaining lines into paragraphs.
func formatContent(content string) string {
	var sb strings.Builder
	rest := strings.TrimSpace(content)

	for rest != "" {
		loc := codeBlockRegex.FindStringSubmatchIndex(rest)
		if loc == nil {
			writeParagraphs(&sb, rest)
			break
		}
		writeParagraphs(&sb, rest[:loc[0]])

		lang := rest[loc[2]:loc[3]]
		code := strings.TrimRight(rest[loc[4]:loc[5]], "\n")
		sb.WriteString("        <pre>")
		if lang != "" {
			fmt.Fprintf(&sb, "<code class=\"language-%s\">", html.EscapeString(lang))
		} else {
			sb.WriteString("<code>")
		}
		sb.WriteString(html.EscapeString(code))
		sb.WriteString("</code></pre>\n")

		rest = rest[loc[1]:]
	}
	return sb.String()
}

func writeParagraphs(sb *strings.Builder, text string) {
	for _, para := range strings.Split(strings.TrimSpace(text), "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		escaped := html.EscapeString(para)
		escaped = inlineCodeRegex.ReplaceAllString(escaped, "<code>$1</code>")
		escaped = strings.ReplaceAll(escaped, "\n", "<br>\n")
		fmt.Fprintf(sb, "        <p>%s</p>\n", escaped)
	}
}

const css = `  <style>
    body { margin: 0; font-family: -apple-system, "Segoe UI", Roboto, sans-serif; line-height: 1.6; }
    body.dark { background: #1e1e2e; color: #cdd6f4; }
    body.light { background: #fafafa; color: #1f2328; }
    .container { max-width: 860px; margin: 0 auto; padding: 2rem 1rem; }
    header h1 { margin-bottom: 0.25rem; }
    .meta { opacity: 0.7; font-size: 0.9rem; }
    .message { border-radius: 8px; padding: 0.75rem 1rem; margin: 1rem 0; }
    .dark .user { background: #313244; }
    .dark .assistant { background: #181825; }
    .light .user { background: #e8f0fe; }
    .light .assistant { background: #ffffff; border: 1px solid #d0d7de; }
    .role { font-weight: 600; font-size: 0.85rem; text-transform: uppercase; opacity: 0.8; }
    .time { font-weight: 400; opacity: 0.6; margin-left: 0.5rem; }
    pre { overflow-x: auto; padding: 0.75rem; border-radius: 6px; background: rgba(127, 127, 127, 0.15); }
    code { font-family: "JetBrains Mono", Consolas, monospace; font-size: 0.9em; }
  </style>
`
