// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"context"
	"slices"
	"strings"
	"unicode"

	"github.com/jeranaias/termsage/internal/session"
)

// =============================================================================
// COMPLETER
// =============================================================================

// Completer produces tab completions for the current input and session.
// Nothing is cached between calls except the session's model list.
type Completer struct {
	registry *Registry
}

// NewCompleter creates a completer over registry.
func NewCompleter(registry *Registry) *Completer {
	return &Completer{registry: registry}
}

// Complete returns the sorted, deduplicated candidates for the word being
// typed at the end of input.
func (c *Completer) Complete(ctx context.Context, input string, s session.Session) []string {
	input = strings.TrimLeftFunc(input, unicode.IsSpace)

	if s.Mode() == session.ModeChat {
		return c.completeChat(input)
	}

	name, rest, typingName := splitForCompletion(input)
	if typingName {
		return filterPrefix(c.registry.NamesForMode(s.Mode()), name)
	}

	cmd, found := c.registry.Lookup(strings.ToLower(name))
	if !found || !cmd.ValidIn(s.Mode()) {
		return nil
	}

	// Only the first argument word is completed.
	rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
	if strings.IndexFunc(rest, unicode.IsSpace) >= 0 {
		return nil
	}

	return c.completeArg(ctx, cmd, rest, s)
}

// completeChat offers only the exit keywords.
func (c *Completer) completeChat(input string) []string {
	return filterPrefix([]string{"exit", "quit"}, input)
}

// completeArg returns completions for a command argument.
func (c *Completer) completeArg(ctx context.Context, cmd Command, partial string, s session.Session) []string {
	switch cmd.Arg {
	case ArgTypeModel:
		return filterPrefix(c.modelNames(ctx, s), partial)
	case ArgTypeEnum:
		return filterPrefix(cmd.Values, partial)
	default:
		return nil
	}
}

// modelNames reads the cached list, fetching only if nothing has been
// fetched yet. Fetch failures yield no candidates.
func (c *Completer) modelNames(ctx context.Context, s session.Session) []string {
	cache := s.Models()
	if cache == nil {
		return nil
	}
	names := cache.Names()
	if names == nil {
		if _, err := cache.Ensure(ctx); err != nil {
			return nil
		}
		names = cache.Names()
	}
	return names
}

// =============================================================================
// LINE EDITOR ADAPTER
// =============================================================================

// WordCompleter adapts Complete to a line editor callback of the form
// func(line string, pos int) (head string, completions []string, tail string).
// ctx and current are called per invocation so the latest session is used.
func (c *Completer) WordCompleter(ctx func() context.Context, current func() session.Session) func(string, int) (string, []string, string) {
	return func(line string, pos int) (string, []string, string) {
		if pos > len(line) {
			pos = len(line)
		}
		before, tail := line[:pos], line[pos:]

		candidates := c.Complete(ctx(), before, current())
		if len(candidates) == 0 {
			return before, nil, tail
		}

		// head is everything up to the word being completed.
		start := strings.LastIndexFunc(before, unicode.IsSpace) + 1
		return before[:start], candidates, tail
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// splitForCompletion separates the command token from the rest.
// typingName is true while the cursor is still inside the first token.
func splitForCompletion(input string) (name, rest string, typingName bool) {
	end := strings.IndexFunc(input, unicode.IsSpace)
	if end == -1 {
		return input, "", true
	}
	return input[:end], input[end:], false
}

// filterPrefix keeps values with a case-insensitive prefix match, sorted
// and deduplicated.
func filterPrefix(values []string, prefix string) []string {
	prefix = strings.ToLower(prefix)
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.HasPrefix(strings.ToLower(v), prefix) {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
