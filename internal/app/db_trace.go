package app

import (
	"regexp"
	"strings"
)

const maxTracedQueryLength = 512

// placeholderRunRegex matches a parenthesised list ending in three or more bare positional parameters.
var placeholderRunRegex = regexp.MustCompile(`\$(\d+)(?:\s*,\s*\$\d+)+\s*,\s*\$(\d+)\s*\)`)

// formatDBQueryForTrace is the otelsql query formatter: one line, placeholder
// runs folded to $first..$last, capped at maxTracedQueryLength.
func formatDBQueryForTrace(query string) string {
	normalized := strings.Join(strings.Fields(query), " ")
	normalized = strings.TrimSuffix(normalized, ";")
	if normalized == "" {
		return normalized
	}

	normalized = placeholderRunRegex.ReplaceAllString(normalized, "$$$1..$$$2)")
	if len(normalized) <= maxTracedQueryLength {
		return normalized
	}

	return normalized[:maxTracedQueryLength] + "..."
}
