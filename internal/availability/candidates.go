package availability

import (
	"sort"

	"studiobook/internal/interval"
)

// candidate is a generated, never persisted slot.
type candidate struct {
	roomID   string
	visible  interval.Interval
	occupied interval.Interval
}

// shape is the footprint of one reservation of the searched service.
type shape struct {
	durationMs int64
	beforeMs   int64
	afterMs    int64
	gridMs     int64
}

func (s shape) step() int64 {
	return max(s.gridMs, s.durationMs)
}

// occupiedFor returns [start - before, start + duration + after).
func (s shape) occupiedFor(start int64) interval.Interval {
	return interval.Interval{Start: start - s.beforeMs, End: start + s.durationMs + s.afterMs}
}

// plan describes where candidate generation begins and which starts are
// reported. Generation starts at local midnight of the requested day so the
// grid phase does not depend on where a page begins.
type plan struct {
	genStart      int64
	bounds        interval.Interval
	offsetMinutes int
}

// firstStart returns the first grid point of a free interval. The phase never
// depends on range.from: a query resumed from a cursor must lay the same grid
// as the full query, so starts are anchored to the free interval (opening
// time, end of a reservation or exception) and not to the query start. A room
// open 09:00 searched from 09:30 therefore yields 10:00, 11:00 for a one hour
// service. Free time that only starts at genStart because of an always-open
// room has no natural anchor, so it follows a step phase fixed to local
// midnight of the epoch.
func (p plan) firstStart(free interval.Interval, sh shape, alwaysOpen bool) int64 {
	if alwaysOpen && free.Start == p.genStart {
		epoch := -int64(p.offsetMinutes) * 60_000
		return epoch + interval.AlignUp(free.Start-epoch, sh.step())
	}
	return interval.AlignUp(free.Start, sh.gridMs)
}

// generate lays candidates over free intervals. A candidate must end inside
// its free interval and no later than the query end; candidates starting
// before the query start are dropped.
func (p plan) generate(roomID string, free []interval.Interval, sh shape, alwaysOpen bool) []candidate {
	var out []candidate
	step := sh.step()

	for _, iv := range free {
		for start := p.firstStart(iv, sh, alwaysOpen); start+sh.durationMs <= iv.End; start += step {
			end := start + sh.durationMs
			if end > p.bounds.End {
				break
			}
			if start < p.bounds.Start {
				continue
			}
			out = append(out, candidate{
				roomID:   roomID,
				visible:  interval.Interval{Start: start, End: end},
				occupied: sh.occupiedFor(start),
			})
		}
	}
	return out
}

// sortCandidates orders by start time, then room id.
func sortCandidates(list []candidate) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].visible.Start != list[j].visible.Start {
			return list[i].visible.Start < list[j].visible.Start
		}
		return list[i].roomID < list[j].roomID
	})
}

// paginate walks sorted candidates and keeps up to pageSize accepted ones.
// The cursor is the start of the first accepted candidate left out. A page
// never ends in the middle of a group of candidates sharing one start, since
// the cursor could not resume inside it; when the whole page is such a group
// the group is returned complete.
func paginate(list []candidate, pageSize int, accept func(candidate) bool) ([]candidate, int64, bool) {
	page := make([]candidate, 0, min(pageSize, len(list)))

	for i, c := range list {
		if !accept(c) {
			continue
		}
		if len(page) < pageSize {
			page = append(page, c)
			continue
		}

		cursor := c.visible.Start
		if page[len(page)-1].visible.Start != cursor {
			return page, cursor, true
		}

		trimmed := page
		for len(trimmed) > 0 && trimmed[len(trimmed)-1].visible.Start == cursor {
			trimmed = trimmed[:len(trimmed)-1]
		}
		if len(trimmed) > 0 {
			return trimmed, cursor, true
		}

		page = append(page, c)
		for _, rest := range list[i+1:] {
			if !accept(rest) {
				continue
			}
			if rest.visible.Start == cursor {
				page = append(page, rest)
				continue
			}
			return page, rest.visible.Start, true
		}
		return page, 0, false
	}
	return page, 0, false
}
