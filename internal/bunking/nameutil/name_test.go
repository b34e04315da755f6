package nameutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseName(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected ParsedName
	}{
		{"empty", "", ParsedName{}},
		{"single token", "Madonna", ParsedName{First: "Madonna"}},
		{"first last", "Mike Smith", ParsedName{First: "Mike", Last: "Smith", IsComplete: true}},
		{"middle name dropped from components", "Mike J Smith", ParsedName{First: "Mike", Last: "Smith", IsComplete: true}},
		{"extra whitespace", "  Mike   Smith  ", ParsedName{First: "Mike", Last: "Smith", IsComplete: true}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ParseName(tc.input))
		})
	}
}

func TestNormalizeName(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercase and trim", "  Mike Smith  ", "mike smith"},
		{"collapse whitespace", "Mike   Smith", "mike smith"},
		{"strip punctuation", `O'Brien, "Mike" (Jr.)`, "obrien mike jr"},
		{"preserve hyphens", "Simon-Harris", "simon-harris"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, NormalizeName(tc.input))
		})
	}
}

func TestSplitLastNameWords(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected []string
	}{
		{"single word", "Zarlin", []string{"zarlin"}},
		{"space separated", "Simons Zarlin", []string{"simons", "zarlin"}},
		{"hyphenated", "Simon-Harris", []string{"simon", "harris"}},
		{"multi word", "De La Cruz", []string{"de", "la", "cruz"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, SplitLastNameWords(tc.input))
		})
	}
}

func TestLastNameMatches(t *testing.T) {
	testCases := []struct {
		name       string
		searchLast string
		dbLast     string
		expected   bool
	}{
		{"suffix match compound", "Zarlin", "Simons Zarlin", true},
		{"suffix match hyphenated", "Harris", "Simon-Harris", true},
		{"suffix match multi word", "Cruz", "De La Cruz", true},
		{"suffix match partial phrase", "La Cruz", "De La Cruz", true},
		{"not a word boundary match", "Smith", "Goldsmith", false},
		{"exact match", "Zarlin", "Zarlin", true},
		{"no match", "Jones", "Smith", false},
		{"search longer than db", "Simons Zarlin", "Zarlin", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, LastNameMatches(tc.searchLast, tc.dbLast))
		})
	}
}
