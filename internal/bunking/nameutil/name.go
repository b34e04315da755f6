// Package nameutil provides the pure-function name normalization,
// parsing, nickname/spelling equivalence, and phonetic codecs shared by
// every resolution strategy.
package nameutil

import (
	"regexp"
	"strings"
	"sync"
)

// ParsedName is a name split into its components.
type ParsedName struct {
	First      string
	Last       string
	IsComplete bool
}

// ParseName splits name on whitespace into (first, last, is_complete).
// A single-token name has IsComplete=false and an empty Last. Any middle
// tokens are dropped from the parsed components (they remain only in the
// original string).
func ParseName(name string) ParsedName {
	if name == "" {
		return ParsedName{}
	}
	parts := strings.Fields(name)
	if len(parts) < 2 {
		if len(parts) == 1 {
			return ParsedName{First: parts[0]}
		}
		return ParsedName{}
	}
	return ParsedName{First: parts[0], Last: parts[len(parts)-1], IsComplete: true}
}

var punctuationPattern = sync.OnceValue(func() *regexp.Regexp {
	return regexp.MustCompile(`[.,'"()]`)
})

// NormalizeName strips leading/trailing whitespace, lowercases, collapses
// internal whitespace to single spaces, and removes the punctuation set
// . , ' " ( ). Hyphens are preserved.
func NormalizeName(name string) string {
	collapsed := strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(name))), " ")
	return punctuationPattern().ReplaceAllString(collapsed, "")
}

// SplitLastNameWords splits a last name into lowercase words on spaces
// and hyphens, e.g. "Simon-Harris" -> ["simon", "harris"].
func SplitLastNameWords(lastName string) []string {
	fields := strings.FieldsFunc(strings.TrimSpace(lastName), func(r rune) bool {
		return r == ' ' || r == '-' || r == '\t' || r == '\n'
	})
	out := make([]string, 0, len(fields))
	for _, w := range fields {
		if w == "" {
			continue
		}
		out = append(out, strings.ToLower(w))
	}
	return out
}

// LastNameMatches reports whether searchLast matches dbLast, handling
// compound/hyphenated last names by checking whether the searched words
// form a suffix of the database words (e.g. "Zarlin" matches "Simons
// Zarlin"; "Harris" matches "Simon-Harris").
func LastNameMatches(searchLast, dbLast string) bool {
	searchWords := SplitLastNameWords(searchLast)
	dbWords := SplitLastNameWords(dbLast)

	if len(searchWords) == 0 || len(dbWords) == 0 {
		return false
	}

	if equalWords(searchWords, dbWords) {
		return true
	}

	if len(searchWords) <= len(dbWords) {
		suffix := dbWords[len(dbWords)-len(searchWords):]
		if equalWords(searchWords, suffix) {
			return true
		}
	}

	return false
}

func equalWords(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
