// Package occupancy indexes the occupied intervals of active reservations by
// room and by staff member.
package occupancy

import (
	"studiobook/internal/interval"
	"studiobook/internal/models"
)

// Index holds sorted occupied intervals per room and for one staff member.
type Index struct {
	rooms   map[string][]interval.Interval
	staffID string
	staff   []interval.Interval
}

// Build indexes reservations that are active and overlap window. staffID may
// be empty, in which case the staff list stays empty.
func Build(rows []models.Occupancy, window interval.Interval, staffID string) *Index {
	idx := &Index{
		rooms:   make(map[string][]interval.Interval),
		staffID: staffID,
	}

	for _, row := range rows {
		if !row.Status.IsActive() || !row.Interval.Valid() || !row.Interval.Overlaps(window) {
			continue
		}
		idx.rooms[row.RoomID] = append(idx.rooms[row.RoomID], row.Interval)
		if staffID != "" && row.StaffID == staffID {
			idx.staff = append(idx.staff, row.Interval)
		}
	}

	for id := range idx.rooms {
		interval.Sort(idx.rooms[id])
	}
	interval.Sort(idx.staff)
	return idx
}

// Room returns the sorted occupied intervals of a room.
func (i *Index) Room(roomID string) []interval.Interval {
	return i.rooms[roomID]
}

// Staff returns the sorted occupied intervals of the indexed staff member.
func (i *Index) Staff() []interval.Interval {
	return i.staff
}

// StaffID returns the staff member the index was built for.
func (i *Index) StaffID() string {
	return i.staffID
}

// RoomBusy reports whether the room is occupied anywhere in [start, end).
func (i *Index) RoomBusy(roomID string, occupied interval.Interval) bool {
	return HasOverlap(i.rooms[roomID], occupied.Start, occupied.End)
}

// StaffBusy reports whether the indexed staff member is occupied in occupied.
func (i *Index) StaffBusy(occupied interval.Interval) bool {
	return HasOverlap(i.staff, occupied.Start, occupied.End)
}

// HasOverlap is a linear half-open overlap scan. Sorted input allows an early
// exit; unsorted input is still answered correctly.
func HasOverlap(intervals []interval.Interval, start, end int64) bool {
	return interval.HasOverlap(intervals, start, end)
}
