// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"sort"
	"strings"
)

// maxSuggestDistance bounds the edit distance of a suggestion.
const maxSuggestDistance = 2

// Suggest returns the known names close to input: those within edit
// distance 2, or sharing a prefix with it. Results are sorted.
func Suggest(input string, names []string) []string {
	input = strings.ToLower(input)
	if input == "" {
		return nil
	}

	var out []string
	for _, name := range names {
		if name == input {
			continue
		}
		if strings.HasPrefix(name, input) || strings.HasPrefix(input, name) ||
			levenshteinDistance(input, name) <= maxSuggestDistance {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// levenshteinDistance calculates the edit distance between two strings.
// This is the minimum number of single-character edits (insertions, deletions,
// or substitutions) required to change one string into the other.
func levenshteinDistance(s1, s2 string) int {
	a, b := []rune(s1), []rune(s2)
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	// Use two rows instead of full matrix for memory efficiency
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			// Minimum of: delete, insert, substitute
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}
