package ontime

import (
	"math"
	"strconv"
	"strings"
)

// Baseline carries the values a previous run published, read back from
// the state store at startup so a restart does not visibly reset the
// tracked totals. Day fields seed the day tracker exactly once at
// construction; window entries pin each rolling window until fresh
// interval data exceeds them (see Tracker).
type Baseline struct {
	Windows          map[string]float64 // minutes by window key
	TodayMinutes     float64
	TodayCount       int
	YesterdayMinutes float64
	YesterdayCount   int
}

// Empty reports whether the baseline carries no values at all.
func (b Baseline) Empty() bool {
	return len(b.Windows) == 0 && b.TodayMinutes == 0 && b.TodayCount == 0 &&
		b.YesterdayMinutes == 0 && b.YesterdayCount == 0
}

// ParseBaseline extracts a baseline from previously published fields,
// keyed as in Snapshot.Fields. Missing or malformed values read as
// zero: a damaged or absent prior snapshot degrades the baseline, it
// never blocks startup. Zero-valued windows are not pinned; they would
// only hold the published value at zero.
func ParseBaseline(fields map[string]string) Baseline {
	b := Baseline{Windows: make(map[string]float64, len(Windows))}
	for _, w := range Windows {
		if v, ok := parseMinutes(fields[w.Key]); ok && v > 0 {
			b.Windows[w.Key] = v
		}
	}
	if v, ok := parseMinutes(fields[FieldTodayMinutes]); ok {
		b.TodayMinutes = v
	}
	if v, ok := parseMinutes(fields[FieldYesterdayMinutes]); ok {
		b.YesterdayMinutes = v
	}
	b.TodayCount = parseCount(fields[FieldTodayCount])
	b.YesterdayCount = parseCount(fields[FieldYesterdayCount])
	return b
}

func parseMinutes(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}
	return v, true
}

func parseCount(s string) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v < 0 {
		return 0
	}
	return v
}
