// Package engine holds the pure period arithmetic of the budget engine:
// calendar boundaries, period closing and category allocation checks.
// Nothing in this package performs I/O.
package engine

import (
	"fmt"
	"time"

	"famledger/internal/models"
)

// NormalizeDate truncates t to midnight UTC of its calendar date.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// anchor returns the refresh day of the given month, clamped to its length.
// Month overflow is normalised, so month 13 is January of the next year.
func anchor(year int, month time.Month, refreshDay int) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	y, m := first.Year(), first.Month()
	return time.Date(y, m, min(refreshDay, daysIn(y, m)), 0, 0, 0, 0, time.UTC)
}

// ValidRefreshDay reports whether day can anchor a period.
func ValidRefreshDay(day int) bool {
	return day >= 1 && day <= 31
}

// CheckStart verifies that start lands on the refresh day of its month.
func CheckStart(start time.Time, refreshDay int) error {
	if !ValidRefreshDay(refreshDay) {
		return fmt.Errorf("refresh day %d out of range 1..31", refreshDay)
	}
	start = NormalizeDate(start)
	if want := anchor(start.Year(), start.Month(), refreshDay); !start.Equal(want) {
		return fmt.Errorf("start date %s does not match refresh day %d (expected %s)",
			start.Format(time.DateOnly), refreshDay, want.Format(time.DateOnly))
	}
	return nil
}

// PeriodEnd returns the exclusive end of the period beginning at start.
// Monthly periods end on the refresh day of the following month; yearly
// periods end on the same month and refresh day of the following year.
func PeriodEnd(period models.BudgetPeriod, refreshDay int, start time.Time) (time.Time, error) {
	if !ValidRefreshDay(refreshDay) {
		return time.Time{}, fmt.Errorf("refresh day %d out of range 1..31", refreshDay)
	}
	start = NormalizeDate(start)
	switch period {
	case models.BudgetPeriodMonthly:
		return anchor(start.Year(), start.Month()+1, refreshDay), nil
	case models.BudgetPeriodYearly:
		return anchor(start.Year()+1, start.Month(), refreshDay), nil
	}
	return time.Time{}, fmt.Errorf("unknown budget period %q", period)
}

// PeriodLabel names the period beginning at start: "2024-01" for monthly
// periods and "2024" for yearly ones. Labels are unique within a scope.
func PeriodLabel(period models.BudgetPeriod, start time.Time) string {
	if period == models.BudgetPeriodYearly {
		return start.Format("2006")
	}
	return start.Format("2006-01")
}

// MaxPeriodsBetween bounds the number of periods that can begin in
// [from, to]. Callers use it to cap catch-up loops.
func MaxPeriodsBetween(period models.BudgetPeriod, from, to time.Time) int {
	if to.Before(from) {
		return 0
	}
	years := to.Year() - from.Year()
	if period == models.BudgetPeriodYearly {
		return years + 1
	}
	return years*12 + int(to.Month()) - int(from.Month()) + 1
}
