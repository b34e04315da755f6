package nameutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlexibleDate(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected time.Time
		ok       bool
	}{
		{"empty", "", time.Time{}, false},
		{"iso date", "2024-06-15", time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC), true},
		{"iso datetime", "2024-06-15T10:30:00", time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC), true},
		{"space separated", "2024-06-15 10:30:00", time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC), true},
		{"milliseconds and Z stripped", "2024-06-15T10:30:00.123Z", time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC), true},
		{"unparseable", "not-a-date", time.Time{}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseFlexibleDate(tc.input)
			require.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.True(t, tc.expected.Equal(got))
			}
		})
	}
}
