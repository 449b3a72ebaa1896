package contest

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// zonedLayouts carry their own offset; localLayouts are interpreted in the
// caller-supplied location.
var (
	zonedLayouts = []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05-0700",
		"2006-01-02 15:04:05-07:00",
		"2006-01-02T15:04:05-0700",
		"2006-01-02T15:04:05.000-0700",
		time.RFC1123Z,
		time.RFC1123,
	}
	localLayouts = []string{
		"2006-01-02T15:04:05",
		"2006-01-02T15:04:05.000",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
		"Jan 2, 2006, 03:04 PM",
		"Jan 02, 2006 15:04:05",
	}
)

// ParseTime accepts the timestamp shapes the contest sources emit: RFC3339
// and offset layouts, zone-less layouts (read in loc, UTC when nil) and
// bare epoch seconds. The result is always UTC.
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time")
	}
	if loc == nil {
		loc = time.UTC
	}

	if isDigits(s) && len(s) >= 9 {
		sec, err := strconv.ParseInt(s, 10, 64)
		if err == nil {
			if len(s) >= 13 {
				return time.UnixMilli(sec).UTC(), nil
			}
			return FromUnix(sec), nil
		}
	}

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time: %q", s)
}

// FromUnix converts epoch seconds to a UTC instant.
func FromUnix(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

// SpanBetween returns end-start, or false when the span is not positive.
func SpanBetween(start, end time.Time) (time.Duration, bool) {
	if start.IsZero() || end.IsZero() || !end.After(start) {
		return 0, false
	}
	return end.Sub(start), true
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
