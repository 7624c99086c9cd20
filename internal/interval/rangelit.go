package interval

import (
	"strconv"
	"strings"
)

// ParseRange parses a Postgres-style range literal such as "[100,200)" into a
// half-open interval. An exclusive lower bound "(" moves the start forward by
// one millisecond and an inclusive upper bound "]" moves the end forward by
// one millisecond. Empty, unbounded or malformed literals return ok=false.
func ParseRange(literal string) (Interval, bool) {
	s := strings.TrimSpace(literal)
	if len(s) < 5 || strings.EqualFold(s, "empty") {
		return Interval{}, false
	}

	lower, upper := s[0], s[len(s)-1]
	if (lower != '[' && lower != '(') || (upper != ')' && upper != ']') {
		return Interval{}, false
	}

	parts := strings.Split(s[1:len(s)-1], ",")
	if len(parts) != 2 {
		return Interval{}, false
	}

	start, err := strconv.ParseInt(strings.Trim(strings.TrimSpace(parts[0]), `"`), 10, 64)
	if err != nil {
		return Interval{}, false
	}
	end, err := strconv.ParseInt(strings.Trim(strings.TrimSpace(parts[1]), `"`), 10, 64)
	if err != nil {
		return Interval{}, false
	}

	if lower == '(' {
		start++
	}
	if upper == ']' {
		end++
	}
	if start >= end {
		return Interval{}, false
	}
	return Interval{Start: start, End: end}, true
}

// FormatRange renders the interval as a canonical "[start,end)" literal.
func FormatRange(iv Interval) string {
	return "[" + strconv.FormatInt(iv.Start, 10) + "," + strconv.FormatInt(iv.End, 10) + ")"
}
