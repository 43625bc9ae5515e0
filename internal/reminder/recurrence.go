package reminder

import "time"

// NextOccurrence computes the occurrence that follows base under the given
// rule. The addition happens in the user's calendar (loc), then the result
// is converted back to UTC, so adding a day across a DST transition keeps
// the same wall-clock time instead of drifting by an hour.
//
// Monthly and yearly rules clamp to the last valid day of the target month
// when the source day does not exist there (Jan 31 + 1 month = Feb 28/29).
//
// The function is pure: no side effects and no access to the current time.
func NextOccurrence(base time.Time, rule RepeatRule, loc *time.Location) time.Time {
	local := base.In(loc)

	var next time.Time
	switch rule.Kind {
	case RepeatDaily:
		next = addDays(local, rule.Interval, loc)
	case RepeatWeekly:
		next = addDays(local, 7*rule.Interval, loc)
	case RepeatMonthly:
		next = addMonthsClamped(local, rule.Interval, loc)
	case RepeatYearly:
		next = addMonthsClamped(local, 12*rule.Interval, loc)
	default:
		// Unknown kinds behave as daily so a bad row cannot stall a series.
		next = addDays(local, rule.Interval, loc)
	}
	return next.UTC()
}

// NextAfter applies the rule repeatedly until the occurrence is strictly
// after now. External schedulers reject or immediately fire on past
// timestamps; skipping forward prevents a delivery storm after downtime.
func NextAfter(base, now time.Time, rule RepeatRule, loc *time.Location) time.Time {
	next := NextOccurrence(base, rule, loc)
	for !next.After(now) {
		next = NextOccurrence(next, rule, loc)
	}
	return next
}

func addDays(local time.Time, days int, loc *time.Location) time.Time {
	return time.Date(
		local.Year(), local.Month(), local.Day()+days,
		local.Hour(), local.Minute(), local.Second(), local.Nanosecond(),
		loc,
	)
}

func addMonthsClamped(local time.Time, months int, loc *time.Location) time.Time {
	// Anchor at the first of the month so time.Date normalization cannot
	// spill into the following month, then clamp the day.
	anchor := time.Date(local.Year(), local.Month(), 1,
		local.Hour(), local.Minute(), local.Second(), local.Nanosecond(), loc)
	target := anchor.AddDate(0, months, 0)

	day := local.Day()
	if last := lastDayOfMonth(target.Year(), target.Month()); day > last {
		day = last
	}
	return time.Date(target.Year(), target.Month(), day,
		local.Hour(), local.Minute(), local.Second(), local.Nanosecond(), loc)
}

func lastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
