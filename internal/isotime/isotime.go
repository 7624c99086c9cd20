// Package isotime parses and formats ISO-8601 timestamps that carry an
// explicit UTC offset, and answers tenant-local calendar questions for a fixed
// offset.
package isotime

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Layout is the output layout for timestamps returned to callers.
const Layout = "2006-01-02T15:04:05-07:00"

const (
	minuteMs = int64(60_000)
	dayMs    = 24 * 60 * minuteMs
)

// ErrMissingOffset is returned for timestamps without a zone designator.
var ErrMissingOffset = errors.New("timezone offset is required")

// Timestamp is a parsed instant plus the offset it was written in.
type Timestamp struct {
	Millis        int64
	OffsetMinutes int
}

// Time returns the instant in its original offset.
func (ts Timestamp) Time() time.Time {
	return time.UnixMilli(ts.Millis).In(Zone(ts.OffsetMinutes))
}

// Parse accepts RFC 3339 timestamps ("2025-10-01T12:00:00+09:00",
// "2025-10-01T12:00:00.5Z"). A date-time without offset is rejected.
func Parse(value string) (Timestamp, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return Timestamp{}, fmt.Errorf("empty timestamp")
	}
	if !hasZone(s) {
		return Timestamp{}, ErrMissingOffset
	}

	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return Timestamp{}, fmt.Errorf("invalid ISO 8601 datetime %q", value)
	}
	_, offset := t.Zone()
	return Timestamp{Millis: t.UnixMilli(), OffsetMinutes: offset / 60}, nil
}

func hasZone(s string) bool {
	if strings.HasSuffix(s, "Z") || strings.HasSuffix(s, "z") {
		return true
	}
	idx := strings.IndexByte(s, 'T')
	if idx < 0 {
		return false
	}
	clock := s[idx+1:]
	return strings.ContainsAny(clock, "+-")
}

// Zone returns a fixed zone for an offset in minutes.
func Zone(offsetMinutes int) *time.Location {
	if offsetMinutes == 0 {
		return time.UTC
	}
	return time.FixedZone("", offsetMinutes*60)
}

// Format renders epoch milliseconds in the given offset, e.g.
// "2025-10-01T09:00:00+09:00".
func Format(millis int64, offsetMinutes int) string {
	return time.UnixMilli(millis).In(time.FixedZone("", offsetMinutes*60)).Format(Layout)
}

// LocalDayStart returns the UTC epoch of local midnight for the day that
// contains millis in the given offset.
func LocalDayStart(millis int64, offsetMinutes int) int64 {
	offsetMs := int64(offsetMinutes) * minuteMs
	local := millis + offsetMs
	day := local / dayMs
	if local%dayMs < 0 {
		day--
	}
	return day*dayMs - offsetMs
}

// Weekday returns the local weekday of millis in the given offset.
func Weekday(millis int64, offsetMinutes int) time.Weekday {
	return time.UnixMilli(millis).In(Zone(offsetMinutes)).Weekday()
}

// DayMillis is the length of one calendar day at a fixed offset.
func DayMillis() int64 {
	return dayMs
}
