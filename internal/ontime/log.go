package ontime

import "time"

// Log is the state-change history for one device: intervals ordered by
// start, non-overlapping, with the open interval (if any) always last.
type Log struct {
	intervals []Interval
}

// Record applies one observed transition to the history. An OFF->ON
// opens an interval, an ON->OFF closes the open one. Duplicates (ON
// while already open, OFF while already closed) are no-ops, and events
// whose timestamps would corrupt the ordering are clamped or dropped.
// It reports whether the device's state actually changed.
func (l *Log) Record(state State, at time.Time) bool {
	switch state {
	case StateOn:
		if l.Open() {
			return false
		}
		if n := len(l.intervals); n > 0 && at.Before(l.intervals[n-1].End) {
			// A start before the previous close would overlap; clamp it.
			at = l.intervals[n-1].End
		}
		l.intervals = append(l.intervals, Interval{Start: at})
		return true
	case StateOff:
		if !l.Open() {
			return false
		}
		n := len(l.intervals)
		if !at.After(l.intervals[n-1].Start) {
			// Closing at or before the open point would leave an empty
			// interval; drop it instead.
			l.intervals = l.intervals[:n-1]
			return true
		}
		l.intervals[n-1].End = at
		return true
	}
	return false
}

// Open reports whether the device is currently inside an ON interval.
func (l *Log) Open() bool {
	n := len(l.intervals)
	return n > 0 && l.intervals[n-1].Open()
}

// Prune removes closed intervals that ended before now - retention and
// returns how many were removed. An open interval is never pruned,
// however old: it carries the current ON state and every window still
// needs it.
func (l *Log) Prune(now time.Time, retention time.Duration) int {
	horizon := now.Add(-retention)
	kept := l.intervals[:0]
	for _, iv := range l.intervals {
		if !iv.Open() && iv.End.Before(horizon) {
			continue
		}
		kept = append(kept, iv)
	}
	removed := len(l.intervals) - len(kept)
	l.intervals = kept
	return removed
}

// OverlapMinutes sums the ON time inside [from, to) in minutes, with an
// open interval measured up to now.
func (l *Log) OverlapMinutes(from, to, now time.Time) float64 {
	return OverlapMinutes(l.intervals, from, to, now)
}

// Len returns the number of stored intervals.
func (l *Log) Len() int {
	return len(l.intervals)
}

// Intervals returns a copy of the history, oldest first.
func (l *Log) Intervals() []Interval {
	out := make([]Interval, len(l.intervals))
	copy(out, l.intervals)
	return out
}

// OverlapMinutes sums the intersection of each interval with [from, to)
// and converts the total to minutes. Open intervals are measured up to
// now. The result is never negative.
func OverlapMinutes(intervals []Interval, from, to, now time.Time) float64 {
	var total time.Duration
	for _, iv := range intervals {
		total += iv.Clip(from, to, now)
	}
	return total.Minutes()
}
