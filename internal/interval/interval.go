// Package interval implements half-open [start, end) time intervals in epoch
// milliseconds and the set operations the engine builds on.
package interval

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrDegenerate is returned when an interval would have start >= end.
var ErrDegenerate = errors.New("interval start must be before end")

// Interval is a half-open range [Start, End) in epoch milliseconds.
type Interval struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// New constructs an interval and rejects degenerate bounds.
func New(start, end int64) (Interval, error) {
	if start >= end {
		return Interval{}, fmt.Errorf("%w: [%d, %d)", ErrDegenerate, start, end)
	}
	return Interval{Start: start, End: end}, nil
}

// MustNew is New for bounds known to be valid. It panics otherwise.
func MustNew(start, end int64) Interval {
	iv, err := New(start, end)
	if err != nil {
		panic(err)
	}
	return iv
}

// FromTimes builds an interval from two instants.
func FromTimes(start, end time.Time) (Interval, error) {
	return New(start.UnixMilli(), end.UnixMilli())
}

// Valid reports whether Start < End.
func (iv Interval) Valid() bool {
	return iv.Start < iv.End
}

// Duration returns the length of the interval.
func (iv Interval) Duration() time.Duration {
	return time.Duration(iv.End-iv.Start) * time.Millisecond
}

// Overlaps reports whether two half-open intervals share any instant.
// Touching intervals ([a,b) and [b,c)) do not overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start < other.End && other.Start < iv.End
}

// OverlapsRange is Overlaps against raw bounds.
func (iv Interval) OverlapsRange(start, end int64) bool {
	return iv.Start < end && start < iv.End
}

// Intersect returns the common part of two intervals.
func (iv Interval) Intersect(other Interval) (Interval, bool) {
	start := max(iv.Start, other.Start)
	end := min(iv.End, other.End)
	if start >= end {
		return Interval{}, false
	}
	return Interval{Start: start, End: end}, true
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%d,%d)", iv.Start, iv.End)
}

// Subtract returns the parts of iv not covered by cut: zero, one or two pieces.
func Subtract(iv, cut Interval) []Interval {
	if cut.End <= iv.Start || cut.Start >= iv.End {
		return []Interval{iv}
	}

	pieces := make([]Interval, 0, 2)
	if cut.Start > iv.Start {
		pieces = append(pieces, Interval{Start: iv.Start, End: cut.Start})
	}
	if cut.End < iv.End {
		pieces = append(pieces, Interval{Start: cut.End, End: iv.End})
	}
	return pieces
}

// SubtractAll removes every cut from every interval. Cuts are applied in
// ascending start order so the output is deterministic.
func SubtractAll(intervals, cuts []Interval) []Interval {
	result := append([]Interval(nil), intervals...)
	if len(result) == 0 || len(cuts) == 0 {
		return result
	}

	ordered := Sorted(cuts)
	for _, cut := range ordered {
		next := make([]Interval, 0, len(result)+1)
		for _, iv := range result {
			next = append(next, Subtract(iv, cut)...)
		}
		result = next
		if len(result) == 0 {
			break
		}
	}
	return result
}

// Sort orders intervals by start, then end, in place.
func Sort(intervals []Interval) {
	sort.SliceStable(intervals, func(i, j int) bool {
		if intervals[i].Start != intervals[j].Start {
			return intervals[i].Start < intervals[j].Start
		}
		return intervals[i].End < intervals[j].End
	})
}

// Sorted returns a sorted copy.
func Sorted(intervals []Interval) []Interval {
	out := append([]Interval(nil), intervals...)
	Sort(out)
	return out
}

// HasOverlap reports whether any interval overlaps [start, end). Sorted input
// lets the scan stop early; unsorted input still gives the right answer.
func HasOverlap(intervals []Interval, start, end int64) bool {
	_, ok := FirstOverlap(intervals, Interval{Start: start, End: end})
	return ok
}

// FirstOverlap returns the first interval in list order that overlaps target.
func FirstOverlap(intervals []Interval, target Interval) (Interval, bool) {
	sorted := sort.SliceIsSorted(intervals, func(i, j int) bool {
		return intervals[i].Start < intervals[j].Start
	})
	for _, iv := range intervals {
		if iv.Overlaps(target) {
			return iv, true
		}
		if sorted && iv.Start >= target.End {
			break
		}
	}
	return Interval{}, false
}

// CountOverlaps counts the intervals overlapping target.
func CountOverlaps(intervals []Interval, target Interval) int {
	n := 0
	for _, iv := range intervals {
		if iv.Overlaps(target) {
			n++
		}
	}
	return n
}

// AlignUp rounds value up to the next multiple of step. Values already on the
// grid are returned unchanged.
func AlignUp(value, step int64) int64 {
	if step <= 0 {
		return value
	}
	rem := value % step
	if rem == 0 {
		return value
	}
	if rem < 0 {
		return value - rem
	}
	return value + step - rem
}

// IsAligned reports whether value sits on the step grid.
func IsAligned(value, step int64) bool {
	return step > 0 && value%step == 0
}
