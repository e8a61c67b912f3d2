package orders

import (
	"fmt"
	"time"
)

// Placed-date windows accepted by the order list.
const (
	PlacedToday       = "today"
	PlacedYesterday   = "yesterday"
	PlacedLastWeek    = "last_week"
	PlacedThisMonth   = "this_month"
	PlacedThreeMonths = "three_months"
	PlacedThisYear    = "this_year"
)

// PlacedWindow resolves a named window to [since, until) relative to now's
// calendar day in now's location. An open bound is the zero time.
func PlacedWindow(name string, now time.Time) (since, until time.Time, err error) {
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	switch name {
	case PlacedToday:
		return today, today.AddDate(0, 0, 1), nil
	case PlacedYesterday:
		return today.AddDate(0, 0, -1), today, nil
	case PlacedLastWeek:
		return today.AddDate(0, 0, -7), time.Time{}, nil
	case PlacedThisMonth:
		return time.Date(y, m, 1, 0, 0, 0, 0, now.Location()), time.Time{}, nil
	case PlacedThreeMonths:
		return today.AddDate(0, 0, -90), time.Time{}, nil
	case PlacedThisYear:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, now.Location()), time.Time{}, nil
	}
	return time.Time{}, time.Time{}, fmt.Errorf("unknown placed window %q", name)
}
