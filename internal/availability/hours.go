package availability

import (
	"studiobook/internal/interval"
	"studiobook/internal/isotime"
	"studiobook/internal/models"
)

// openIntervals projects weekly tenant-local hours onto window, one local day
// at a time. A room without any configured hours is open for the whole
// window; a room with hours that all fall outside the window is closed.
func openIntervals(hours models.OpenHours, window interval.Interval, offsetMinutes int) []interval.Interval {
	var out []interval.Interval

	for day := isotime.LocalDayStart(window.Start, offsetMinutes); day < window.End; day += isotime.DayMillis() {
		for _, seg := range hours[isotime.Weekday(day, offsetMinutes)] {
			startMin, endMin := seg.Minutes()
			if endMin <= startMin {
				continue
			}
			start := max(day+int64(startMin)*60_000, window.Start)
			end := min(day+int64(endMin)*60_000, window.End)
			if start < end {
				out = append(out, interval.Interval{Start: start, End: end})
			}
		}
	}

	if len(out) == 0 {
		if hours.Defined() {
			return nil
		}
		return []interval.Interval{window}
	}
	return out
}
