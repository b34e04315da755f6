package nameutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSoundex(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", "0000"},
		{"robert", "Robert", "R163"},
		{"rupert", "Rupert", "R163"},
		{"smith", "Smith", "S530"},
		{"smythe", "Smythe", "S530"},
		{"short name padded", "Lee", "L000"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Soundex(tc.input))
		})
	}
}

func TestMetaphone(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"kn prefix", "Knight", "NIT"},
		{"ph to f", "Phil", "FIL"},
		{"ck to k", "Nick", "NIK"},
		{"silent h dropped", "John", "JON"},
		{"collapses duplicate letters", "Emmett", "EMET"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Metaphone(tc.input))
		})
	}
}

func TestMetaphone_SamePhoneticSound(t *testing.T) {
	assert.Equal(t, Metaphone("Phillip"), Metaphone("Filip"))
}
