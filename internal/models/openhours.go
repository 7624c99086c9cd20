package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

var weekdayKeys = [7]string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

// WeekdayKey returns the short key ("sun".."sat") used in stored open hours.
func WeekdayKey(d time.Weekday) string {
	return weekdayKeys[d]
}

func weekdayFromKey(key string) (time.Weekday, bool) {
	for i, k := range weekdayKeys {
		if k == key {
			return time.Weekday(i), true
		}
	}
	return 0, false
}

// HoursSegment is one tenant-local opening window, "HH:MM" to "HH:MM".
type HoursSegment struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Minutes returns the segment bounds as minutes after local midnight.
func (s HoursSegment) Minutes() (start, end int) {
	return ClockMinutes(s.Start), ClockMinutes(s.End)
}

// OpenHours maps a weekday to its opening windows. An empty value means no
// hours were configured.
type OpenHours map[time.Weekday][]HoursSegment

// Defined reports whether any weekday has hours configured.
func (h OpenHours) Defined() bool {
	return len(h) > 0
}

// ParseOpenHours decodes stored open hours leniently: unknown weekday keys,
// non-list values and segments without string bounds are ignored.
func ParseOpenHours(data []byte) OpenHours {
	hours := OpenHours{}
	if len(data) == 0 {
		return hours
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return hours
	}

	for key, value := range raw {
		day, ok := weekdayFromKey(key)
		if !ok {
			continue
		}
		var entries []json.RawMessage
		if err := json.Unmarshal(value, &entries); err != nil {
			continue
		}

		segments := make([]HoursSegment, 0, len(entries))
		for _, entry := range entries {
			var seg struct {
				Start *string `json:"start"`
				End   *string `json:"end"`
			}
			if err := json.Unmarshal(entry, &seg); err != nil || seg.Start == nil || seg.End == nil {
				continue
			}
			segments = append(segments, HoursSegment{Start: *seg.Start, End: *seg.End})
		}
		if len(segments) > 0 {
			hours[day] = segments
		}
	}
	return hours
}

// MarshalJSON encodes open hours with weekday keys.
func (h OpenHours) MarshalJSON() ([]byte, error) {
	out := make(map[string][]HoursSegment, len(h))
	for day, segments := range h {
		out[WeekdayKey(day)] = segments
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes open hours leniently.
func (h *OpenHours) UnmarshalJSON(data []byte) error {
	*h = ParseOpenHours(data)
	return nil
}

// Scan implements sql.Scanner for JSON/JSONB/TEXT columns.
func (h *OpenHours) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*h = OpenHours{}
	case []byte:
		*h = ParseOpenHours(v)
	case string:
		*h = ParseOpenHours([]byte(v))
	default:
		return fmt.Errorf("open hours: unsupported column type %T", src)
	}
	return nil
}

// Value implements driver.Valuer.
func (h OpenHours) Value() (driver.Value, error) {
	data, err := h.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// ClockMinutes parses "HH:MM" into minutes after midnight. Anything else
// counts as 0.
func ClockMinutes(value string) int {
	if len(value) != 5 || value[2] != ':' {
		return 0
	}
	digits := [4]byte{value[0], value[1], value[3], value[4]}
	for _, b := range digits {
		if b < '0' || b > '9' {
			return 0
		}
	}
	hours := int(value[0]-'0')*10 + int(value[1]-'0')
	minutes := int(value[3]-'0')*10 + int(value[4]-'0')
	return hours*60 + minutes
}
