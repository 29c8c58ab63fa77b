package ontime

import (
	"testing"
	"time"
)

func TestRecordOpensAndCloses(t *testing.T) {
	var l Log
	t0 := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)

	if !l.Record(StateOn, t0) {
		t.Fatal("expected OFF->ON to be recorded")
	}
	if !l.Open() {
		t.Error("expected an open interval after ON")
	}

	t1 := t0.Add(30 * time.Minute)
	if !l.Record(StateOff, t1) {
		t.Fatal("expected ON->OFF to be recorded")
	}
	if l.Open() {
		t.Error("expected no open interval after OFF")
	}

	ivs := l.Intervals()
	if len(ivs) != 1 {
		t.Fatalf("expected 1 interval, got %d", len(ivs))
	}
	if !ivs[0].Start.Equal(t0) || !ivs[0].End.Equal(t1) {
		t.Errorf("expected [%v, %v), got [%v, %v)", t0, t1, ivs[0].Start, ivs[0].End)
	}
}

func TestDuplicateTransitionsIgnored(t *testing.T) {
	var l Log
	t0 := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)

	// OFF with nothing open is a no-op
	if l.Record(StateOff, t0) {
		t.Error("OFF with no open interval should not be recorded")
	}

	l.Record(StateOn, t0)
	// Duplicate ON while open is a no-op
	if l.Record(StateOn, t0.Add(time.Minute)) {
		t.Error("duplicate ON should not be recorded")
	}
	if l.Len() != 1 {
		t.Errorf("expected 1 interval, got %d", l.Len())
	}

	l.Record(StateOff, t0.Add(10*time.Minute))
	// Duplicate OFF while closed is a no-op
	if l.Record(StateOff, t0.Add(11*time.Minute)) {
		t.Error("duplicate OFF should not be recorded")
	}
	if l.Len() != 1 {
		t.Errorf("expected 1 interval, got %d", l.Len())
	}
}

func TestRecordClampsBackdatedOn(t *testing.T) {
	var l Log
	t0 := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	t1 := t0.Add(10 * time.Minute)

	l.Record(StateOn, t0)
	l.Record(StateOff, t1)

	// ON timestamped before the previous close gets clamped to it
	l.Record(StateOn, t0.Add(5*time.Minute))
	ivs := l.Intervals()
	if len(ivs) != 2 {
		t.Fatalf("expected 2 intervals, got %d", len(ivs))
	}
	if !ivs[1].Start.Equal(t1) {
		t.Errorf("expected clamped start %v, got %v", t1, ivs[1].Start)
	}
	assertInvariants(t, &l)
}

func TestRecordDropsEmptyInterval(t *testing.T) {
	var l Log
	t0 := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)

	l.Record(StateOn, t0)
	// OFF at the exact open instant would leave [t0, t0); drop it
	if !l.Record(StateOff, t0) {
		t.Error("OFF at the open instant is still a state change")
	}
	if l.Len() != 0 {
		t.Errorf("expected empty history, got %d intervals", l.Len())
	}

	l.Record(StateOn, t0)
	// OFF timestamped before the open instant also drops the interval
	l.Record(StateOff, t0.Add(-time.Minute))
	if l.Len() != 0 {
		t.Errorf("expected empty history, got %d intervals", l.Len())
	}
}

func TestInvariantsUnderEventSequence(t *testing.T) {
	var l Log
	base := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	// A messy but realistic sequence: duplicates, backdated events,
	// instant toggles.
	script := []struct {
		state  State
		offset time.Duration
	}{
		{StateOn, 0},
		{StateOn, 1 * time.Minute},
		{StateOff, 10 * time.Minute},
		{StateOff, 11 * time.Minute},
		{StateOn, 5 * time.Minute},
		{StateOff, 20 * time.Minute},
		{StateOn, 30 * time.Minute},
		{StateOff, 30 * time.Minute},
		{StateOn, 40 * time.Minute},
	}
	for _, s := range script {
		l.Record(s.state, base.Add(s.offset))
		assertInvariants(t, &l)
	}
	if !l.Open() {
		t.Error("expected an open interval at the end of the script")
	}
}

func TestPruneRemovesOnlyAgedClosedIntervals(t *testing.T) {
	var l Log
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	// Closed 22 days ago: outside the 3-week retention
	l.Record(StateOn, now.AddDate(0, 0, -22).Add(-time.Hour))
	l.Record(StateOff, now.AddDate(0, 0, -22))
	// Closed 20 days ago: still inside
	l.Record(StateOn, now.AddDate(0, 0, -20).Add(-time.Hour))
	l.Record(StateOff, now.AddDate(0, 0, -20))

	removed := l.Prune(now, Retention)
	if removed != 1 {
		t.Errorf("expected 1 interval pruned, got %d", removed)
	}
	ivs := l.Intervals()
	if len(ivs) != 1 {
		t.Fatalf("expected 1 interval left, got %d", len(ivs))
	}
	if !ivs[0].End.Equal(now.AddDate(0, 0, -20)) {
		t.Errorf("wrong interval survived: ends %v", ivs[0].End)
	}

	// The 3-week window no longer sees the pruned interval
	got := l.OverlapMinutes(now.Add(-Retention), now, now)
	if got != 60.0 {
		t.Errorf("expected 60.0 minutes in 3-week window, got %v", got)
	}
}

func TestPruneKeepsOpenIntervalRegardlessOfAge(t *testing.T) {
	var l Log
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	l.Record(StateOn, now.AddDate(0, 0, -30))
	if removed := l.Prune(now, Retention); removed != 0 {
		t.Errorf("expected 0 pruned, got %d", removed)
	}
	if !l.Open() {
		t.Error("open interval must survive pruning")
	}
}

func TestOverlapMinutes(t *testing.T) {
	base := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	at := func(mins int) time.Time { return base.Add(time.Duration(mins) * time.Minute) }
	now := at(600)

	closed := Interval{Start: at(100), End: at(200)}
	open := Interval{Start: at(500)}

	tests := []struct {
		name      string
		intervals []Interval
		from, to  time.Time
		want      float64
	}{
		{"contained", []Interval{closed}, at(0), at(300), 100.0},
		{"clipped left", []Interval{closed}, at(150), at(300), 50.0},
		{"clipped right", []Interval{closed}, at(0), at(150), 50.0},
		{"clipped both", []Interval{closed}, at(120), at(180), 60.0},
		{"disjoint before", []Interval{closed}, at(300), at(400), 0.0},
		{"disjoint after", []Interval{closed}, at(0), at(50), 0.0},
		{"open runs to now", []Interval{open}, at(0), now, 100.0},
		{"open clipped by range", []Interval{open}, at(0), at(550), 50.0},
		{"sum of several", []Interval{closed, open}, at(0), now, 200.0},
		{"empty range", []Interval{closed}, at(150), at(150), 0.0},
		{"inverted range", []Interval{closed}, at(300), at(100), 0.0},
	}
	for _, tt := range tests {
		got := OverlapMinutes(tt.intervals, tt.from, tt.to, now)
		if got != tt.want {
			t.Errorf("%s: expected %v minutes, got %v", tt.name, tt.want, got)
		}
		if got < 0 {
			t.Errorf("%s: overlap must never be negative, got %v", tt.name, got)
		}
	}
}

// assertInvariants checks the ordering and overlap guarantees the rest
// of the package relies on.
func assertInvariants(t *testing.T, l *Log) {
	t.Helper()
	ivs := l.Intervals()
	openSeen := 0
	for i, iv := range ivs {
		if iv.Open() {
			openSeen++
			if i != len(ivs)-1 {
				t.Fatalf("open interval at position %d is not last", i)
			}
			continue
		}
		if !iv.End.After(iv.Start) {
			t.Fatalf("interval %d is empty or inverted: [%v, %v)", i, iv.Start, iv.End)
		}
		if i+1 < len(ivs) && ivs[i+1].Start.Before(iv.End) {
			t.Fatalf("intervals %d and %d overlap", i, i+1)
		}
	}
	if openSeen > 1 {
		t.Fatalf("more than one open interval: %d", openSeen)
	}
}
