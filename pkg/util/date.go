package util

import (
	"strconv"
	"time"
)

// RunTagLayout names one run's output files, e.g. 2024-03-28_090507.
const RunTagLayout = "2006-01-02_150405"

// RunTag formats t as a file-name-safe run identifier.
func RunTag(t time.Time) string { return t.Format(RunTagLayout) }

// ParseRunTag reverses RunTag in t's location of choice.
func ParseRunTag(tag string, loc *time.Location) (time.Time, bool) {
	t, err := time.ParseInLocation(RunTagLayout, tag, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ParseTime tries RFC3339, RFC3339Nano, and unix seconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}
