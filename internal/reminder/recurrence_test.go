package reminder

import (
	"testing"
	"time"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("failed to load location %s: %v", name, err)
	}
	return loc
}

func TestNextOccurrence(t *testing.T) {
	utc := time.UTC

	tests := []struct {
		name string
		base time.Time
		rule RepeatRule
		loc  *time.Location
		want time.Time
	}{
		{
			name: "daily",
			base: time.Date(2025, 3, 10, 9, 0, 0, 0, utc),
			rule: RepeatRule{Kind: RepeatDaily, Interval: 1},
			loc:  utc,
			want: time.Date(2025, 3, 11, 9, 0, 0, 0, utc),
		},
		{
			name: "daily interval 3",
			base: time.Date(2025, 3, 10, 9, 0, 0, 0, utc),
			rule: RepeatRule{Kind: RepeatDaily, Interval: 3},
			loc:  utc,
			want: time.Date(2025, 3, 13, 9, 0, 0, 0, utc),
		},
		{
			name: "weekly crosses month boundary",
			base: time.Date(2025, 1, 28, 18, 30, 0, 0, utc),
			rule: RepeatRule{Kind: RepeatWeekly, Interval: 2},
			loc:  utc,
			want: time.Date(2025, 2, 11, 18, 30, 0, 0, utc),
		},
		{
			name: "monthly clamps jan 31 to feb 28",
			base: time.Date(2025, 1, 31, 10, 0, 0, 0, utc),
			rule: RepeatRule{Kind: RepeatMonthly, Interval: 1},
			loc:  utc,
			want: time.Date(2025, 2, 28, 10, 0, 0, 0, utc),
		},
		{
			name: "monthly clamps to leap day",
			base: time.Date(2024, 1, 31, 10, 0, 0, 0, utc),
			rule: RepeatRule{Kind: RepeatMonthly, Interval: 1},
			loc:  utc,
			want: time.Date(2024, 2, 29, 10, 0, 0, 0, utc),
		},
		{
			name: "monthly keeps day when it exists",
			base: time.Date(2025, 4, 15, 8, 0, 0, 0, utc),
			rule: RepeatRule{Kind: RepeatMonthly, Interval: 2},
			loc:  utc,
			want: time.Date(2025, 6, 15, 8, 0, 0, 0, utc),
		},
		{
			name: "yearly from leap day clamps",
			base: time.Date(2024, 2, 29, 12, 0, 0, 0, utc),
			rule: RepeatRule{Kind: RepeatYearly, Interval: 1},
			loc:  utc,
			want: time.Date(2025, 2, 28, 12, 0, 0, 0, utc),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextOccurrence(tt.base, tt.rule, tt.loc)
			if !got.Equal(tt.want) {
				t.Errorf("NextOccurrence() = %v, want %v", got, tt.want)
			}
			if !got.After(tt.base) {
				t.Errorf("NextOccurrence() = %v is not after base %v", got, tt.base)
			}
		})
	}
}

func TestNextOccurrenceKeepsWallClockAcrossDST(t *testing.T) {
	ny := mustLoad(t, "America/New_York")

	// 2025-03-08 09:00 EST; DST starts on March 9. Adding one calendar
	// day must keep 09:00 local, not add a flat 24h (which would land on
	// 10:00 local).
	base := time.Date(2025, 3, 8, 9, 0, 0, 0, ny).UTC()
	got := NextOccurrence(base, RepeatRule{Kind: RepeatDaily, Interval: 1}, ny)

	local := got.In(ny)
	if local.Hour() != 9 || local.Day() != 9 {
		t.Errorf("expected Mar 9 09:00 local, got %v", local)
	}
	// The UTC distance shrinks to 23h when the clocks spring forward.
	if d := got.Sub(base); d != 23*time.Hour {
		t.Errorf("expected 23h UTC delta across spring-forward, got %v", d)
	}
}

func TestNextOccurrenceIsPure(t *testing.T) {
	base := time.Date(2025, 5, 1, 7, 0, 0, 0, time.UTC)
	rule := RepeatRule{Kind: RepeatWeekly, Interval: 1}
	a := NextOccurrence(base, rule, time.UTC)
	b := NextOccurrence(base, rule, time.UTC)
	if !a.Equal(b) {
		t.Errorf("same inputs produced %v and %v", a, b)
	}
}

func TestNextAfterSkipsMissedOccurrences(t *testing.T) {
	// The system was down for a while: base is long past. The engine must
	// walk forward to the first still-future occurrence instead of
	// scheduling in the past and causing a delivery storm.
	base := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	now := time.Date(2025, 1, 20, 12, 0, 0, 0, time.UTC)

	got := NextAfter(base, now, RepeatRule{Kind: RepeatDaily, Interval: 1}, time.UTC)
	want := time.Date(2025, 1, 21, 8, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("NextAfter() = %v, want %v", got, want)
	}
	if !got.After(now) {
		t.Errorf("NextAfter() returned a non-future time %v", got)
	}
}

func TestRepeatedApplicationNeverDecreases(t *testing.T) {
	loc := mustLoad(t, "America/New_York")
	rules := []RepeatRule{
		{Kind: RepeatDaily, Interval: 1},
		{Kind: RepeatWeekly, Interval: 2},
		{Kind: RepeatMonthly, Interval: 1},
		{Kind: RepeatYearly, Interval: 1},
	}

	for _, rule := range rules {
		cur := time.Date(2024, 10, 31, 22, 30, 0, 0, time.UTC)
		for i := 0; i < 50; i++ {
			next := NextOccurrence(cur, rule, loc)
			if !next.After(cur) {
				t.Fatalf("rule %v: occurrence %v not after %v (step %d)", rule, next, cur, i)
			}
			cur = next
		}
	}
}
