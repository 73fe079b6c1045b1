package template

import (
	"time"

	"sitelens/internal/domain"
)

// Window resolves a date-range descriptor into a concrete [from, to] pair
// relative to now. now must already carry the reporting timezone; all
// civil-day arithmetic happens in its location. Unknown or missing presets
// fall back to a trailing 30-day window. The computation is pure.
func Window(dr domain.DateRange, now time.Time) (time.Time, time.Time) {
	switch dr.Preset {
	case domain.RangeToday:
		return startOfDay(now), now
	case domain.RangeYesterday:
		y := now.AddDate(0, 0, -1)
		return startOfDay(y), endOfDay(y)
	case domain.RangeThisWeek:
		return startOfWeek(now), now
	case domain.RangeLast7Days:
		return now.AddDate(0, 0, -7), now
	case domain.RangeLastWeek:
		wk := startOfWeek(now)
		return wk.AddDate(0, 0, -7), wk.Add(-time.Second)
	case domain.RangeLast28Days:
		return now.AddDate(0, 0, -28), now
	case domain.RangeCurrentMonth:
		return startOfMonth(now), now
	case domain.RangeLastMonth:
		first := startOfMonth(now)
		return first.AddDate(0, -1, 0), first.Add(-time.Second)
	case domain.RangeCustom:
		if !dr.From.IsZero() && !dr.To.IsZero() {
			return dr.From, dr.To
		}
	}
	return now.AddDate(0, 0, -30), now
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return startOfDay(t).AddDate(0, 0, 1).Add(-time.Second)
}

// startOfWeek returns midnight of the Monday of t's week.
func startOfWeek(t time.Time) time.Time {
	wd := int(t.Weekday())
	if wd == 0 {
		wd = 7 // Sunday belongs to the week that started six days earlier
	}
	return startOfDay(t).AddDate(0, 0, -(wd - 1))
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
