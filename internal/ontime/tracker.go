package ontime

import (
	"fmt"
	"time"
)

// Tracker owns the accounting state for one device: its interval
// history, the current day's running totals, the locked yesterday
// totals, and any restart baseline not yet handed off. It is not safe
// for concurrent use; callers serialize access (the engine runs one
// goroutine per device).
type Tracker struct {
	dev Device
	loc *time.Location

	log     Log
	winBase map[string]float64

	anchor         time.Time // local midnight of the day treated as "today"
	todayBase      float64   // baseline minutes already elapsed in the anchor day
	todayCount     int
	yesterdayMins  float64
	yesterdayCount int
}

// NewTracker builds a tracker for dev. The baseline seeds today and
// yesterday exactly once and pins each rolling window until fresh
// interval data exceeds it. now fixes the initial day anchor.
func NewTracker(dev Device, loc *time.Location, base Baseline, now time.Time) *Tracker {
	if loc == nil {
		loc = time.Local
	}
	winBase := base.Windows
	if winBase == nil {
		winBase = make(map[string]float64)
	}
	return &Tracker{
		dev:            dev,
		loc:            loc,
		winBase:        winBase,
		anchor:         startOfDay(now.In(loc)),
		todayBase:      base.TodayMinutes,
		todayCount:     base.TodayCount,
		yesterdayMins:  base.YesterdayMinutes,
		yesterdayCount: base.YesterdayCount,
	}
}

// Device returns the tracked device's identity.
func (t *Tracker) Device() Device {
	return t.dev
}

// On reports whether the device is currently ON.
func (t *Tracker) On() bool {
	return t.log.Open()
}

// RecordTransition folds one feed event into the history and reports
// whether it was a real state change. An OFF->ON whose timestamp falls
// in the current anchor day bumps today's event count; the count is
// attributed at the transition's own timestamp, never at recomputation.
func (t *Tracker) RecordTransition(state State, at time.Time) bool {
	changed := t.log.Record(state, at)
	if changed && state == StateOn && sameDay(at.In(t.loc), t.anchor) {
		t.todayCount++
	}
	return changed
}

// Rollover records the finals of one completed day.
type Rollover struct {
	Day     time.Time // local midnight starting the completed day
	Minutes float64
	Count   int
}

// TickResult is what one accounting pass produced.
type TickResult struct {
	Snapshot  Snapshot
	Rollovers []Rollover // one per day completed since the last pass, oldest first
	Pruned    int
}

// Tick runs one accounting pass as of now: prune aged-out history, roll
// the day anchor across any midnights crossed since the last pass, then
// rebuild the snapshot. It fails only when now is before the current
// anchor (clock stepped back across midnight); the caller skips the
// pass, keeps the previous snapshot, and retries at the next cadence.
func (t *Tracker) Tick(now time.Time) (TickResult, error) {
	local := now.In(t.loc)
	if local.Before(t.anchor) {
		return TickResult{}, fmt.Errorf("now %s is before day anchor %s",
			local.Format(time.RFC3339), t.anchor.Format("2006-01-02"))
	}
	var res TickResult
	res.Pruned = t.log.Prune(now, Retention)
	res.Rollovers = t.rollForward(local)
	res.Snapshot = t.snapshot(now)
	return res, nil
}

// rollForward advances the anchor one calendar day at a time until it
// reaches now's local date. Each step locks yesterday's finals and
// resets today. Days crossed while the process slept roll individually,
// so their totals come from the interval history rather than being
// collapsed into one step.
func (t *Tracker) rollForward(local time.Time) []Rollover {
	var rolled []Rollover
	for !sameDay(local, t.anchor) {
		next := nextDay(t.anchor)
		final := t.todayBase + t.log.OverlapMinutes(t.anchor, next, next)
		t.yesterdayMins = final
		t.yesterdayCount = t.todayCount
		rolled = append(rolled, Rollover{Day: t.anchor, Minutes: round1(final), Count: t.todayCount})
		t.todayBase = 0
		t.todayCount = 0
		t.anchor = next
	}
	return rolled
}

// snapshot rebuilds the published values as of now. A rolling window
// still pinned to its baseline publishes the baseline while the
// interval-derived sum is below it; the moment the derived sum exceeds
// the baseline the pin is dropped for good, so published windows never
// revert to a stale baseline.
func (t *Tracker) snapshot(now time.Time) Snapshot {
	s := Snapshot{
		Device: t.dev,
		At:     now,
		On:     t.log.Open(),
	}
	s.Windows = make([]WindowValue, len(Windows))
	for i, w := range Windows {
		derived := t.log.OverlapMinutes(now.Add(-w.Duration), now, now)
		if base, ok := t.winBase[w.Key]; ok {
			if derived > base {
				delete(t.winBase, w.Key)
			} else {
				derived = base
			}
		}
		m := round1(derived)
		s.Windows[i] = WindowValue{Key: w.Key, Label: w.Label, Minutes: m, Display: FormatMinutes(m)}
	}
	today := round1(t.todayBase + t.log.OverlapMinutes(t.anchor, now, now))
	s.Today = DayValue{Minutes: today, Display: FormatMinutes(today), Count: t.todayCount}
	yesterday := round1(t.yesterdayMins)
	s.Yesterday = DayValue{Minutes: yesterday, Display: FormatMinutes(yesterday), Count: t.yesterdayCount}
	return s
}

// BaselineWindows returns how many rolling windows are still pinned to
// their restart baseline.
func (t *Tracker) BaselineWindows() int {
	return len(t.winBase)
}

// IntervalCount returns the size of the stored history.
func (t *Tracker) IntervalCount() int {
	return t.log.Len()
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func nextDay(midnight time.Time) time.Time {
	y, m, d := midnight.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, midnight.Location())
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
