package nameutil

import (
	"strings"
	"time"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseFlexibleDate parses the handful of date formats seen in roster
// data exports: a plain ISO date, an ISO datetime, and a space-separated
// datetime, tolerating a trailing millisecond fraction and/or "Z"
// timezone marker (e.g. "2024-06-15T10:30:00.123Z"). Returns false if no
// layout matches or the input is empty.
func ParseFlexibleDate(dateStr string) (time.Time, bool) {
	if dateStr == "" {
		return time.Time{}, false
	}

	clean := dateStr
	if i := strings.Index(clean, "."); i >= 0 {
		clean = clean[:i]
	}
	if i := strings.Index(clean, "Z"); i >= 0 {
		clean = clean[:i]
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, clean); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}
