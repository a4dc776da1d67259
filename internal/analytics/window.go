package analytics

import (
	"fmt"
	"time"

	"github.com/odyssey-erp/invoice-analytics/internal/ledger"
)

// WindowKind selects a calendar rule relative to the reference instant.
type WindowKind string

const (
	YearToDate   WindowKind = "year_to_date"
	PriorYear    WindowKind = "prior_year"
	CurrentMonth WindowKind = "current_month"
	PriorMonth   WindowKind = "prior_month"
)

// MaxTrendMonths bounds the trailing window to the month-name table.
const MaxTrendMonths = 12

var monthLabels = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// Window is an immutable date interval derived from a reference instant.
// Start is inclusive. End is exclusive unless EndInclusive is set; a zero End is unbounded.
type Window struct {
	Kind         WindowKind
	Start        time.Time
	End          time.Time
	EndInclusive bool
}

// Range converts the window into a ledger date filter.
func (w Window) Range() ledger.DateRange {
	return ledger.DateRange{From: w.Start, To: w.End, IncludeTo: w.EndInclusive}
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return w.Range().Contains(t)
}

// MonthWindow is one calendar month of a trailing series.
type MonthWindow struct {
	Window
	Year  int
	Month time.Month
	Label string
}

// HorizonBucket is a due-date window of the cash-outflow forecast.
type HorizonBucket struct {
	Window
	Label string
}

// WindowFor computes the window of the given kind around now.
func WindowFor(kind WindowKind, now time.Time) (Window, error) {
	switch kind {
	case YearToDate:
		return Window{Kind: kind, Start: startOfYear(now, 0), End: now, EndInclusive: true}, nil
	case PriorYear:
		return Window{Kind: kind, Start: startOfYear(now, -1), End: startOfYear(now, 0)}, nil
	case CurrentMonth:
		return Window{Kind: kind, Start: startOfMonth(now, 0), End: now, EndInclusive: true}, nil
	case PriorMonth:
		return Window{Kind: kind, Start: startOfMonth(now, -1), End: startOfMonth(now, 0)}, nil
	default:
		return Window{}, fmt.Errorf("%w: unknown window kind %q", ErrInvalidParameter, kind)
	}
}

// TrailingMonths returns n calendar months ending with the month of now, oldest first.
func TrailingMonths(now time.Time, n int) ([]MonthWindow, error) {
	if n <= 0 || n > MaxTrendMonths {
		return nil, fmt.Errorf("%w: months must be between 1 and %d, got %d", ErrInvalidParameter, MaxTrendMonths, n)
	}
	out := make([]MonthWindow, 0, n)
	for offset := -(n - 1); offset <= 0; offset++ {
		start := startOfMonth(now, offset)
		out = append(out, MonthWindow{
			Window: Window{Start: start, End: startOfMonth(now, offset+1)},
			Year:   start.Year(),
			Month:  start.Month(),
			Label:  monthLabels[start.Month()-1],
		})
	}
	return out, nil
}

// DueHorizons returns the four fixed forecast buckets in ascending horizon order.
func DueHorizons(now time.Time) []HorizonBucket {
	const day = 24 * time.Hour
	at := func(days int) time.Time { return now.Add(time.Duration(days) * day) }
	return []HorizonBucket{
		{Label: "0-7 days", Window: Window{Start: now, End: at(7)}},
		{Label: "8-30 days", Window: Window{Start: at(7), End: at(30)}},
		{Label: "31-60 days", Window: Window{Start: at(30), End: at(60)}},
		{Label: "60+ days", Window: Window{Start: at(60)}},
	}
}

// startOfYear returns Jan 1 of now's year shifted by offset years, in now's location.
func startOfYear(now time.Time, offset int) time.Time {
	return time.Date(now.Year()+offset, time.January, 1, 0, 0, 0, 0, now.Location())
}

// startOfMonth returns the first day of now's month shifted by offset months.
// time.Date normalises month overflow, so January minus one is December of the prior year.
func startOfMonth(now time.Time, offset int) time.Time {
	return time.Date(now.Year(), now.Month()+time.Month(offset), 1, 0, 0, 0, 0, now.Location())
}
