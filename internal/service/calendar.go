package service

import (
	"time"

	"github.com/kokitones-gif/redrive-backend-sub000/internal/models"
	appErrors "github.com/kokitones-gif/redrive-backend-sub000/pkg/errors"
)

// CalendarMode selects the navigable window shape.
type CalendarMode string

const (
	CalendarModeMonth   CalendarMode = "month"
	CalendarModeWeek    CalendarMode = "week"
	CalendarModeTwoWeek CalendarMode = "twoWeek"
)

// Valid reports whether the mode is known.
func (m CalendarMode) Valid() bool {
	switch m {
	case CalendarModeMonth, CalendarModeWeek, CalendarModeTwoWeek:
		return true
	}
	return false
}

// CalendarWindow is an ordered run of dates plus the alignment padding a
// month grid needs before its first day.
type CalendarWindow struct {
	Dates         []time.Time
	LeadingBlanks int
}

// Midnight truncates a timestamp to local midnight. Horizon comparisons use
// the date alone, independent of the current wall-clock time.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// HorizonEnd is the last bookable date for a horizon of the given months.
func HorizonEnd(today time.Time, months int) time.Time {
	return Midnight(today).AddDate(0, months, 0)
}

// sundayAlign returns the Sunday on or before the given date.
func sundayAlign(t time.Time) time.Time {
	t = Midnight(t)
	return t.AddDate(0, 0, -int(t.Weekday()))
}

// Window computes the dates visible for a navigation mode anchored at the
// given date. Anchors whose window falls entirely outside
// [today, today+horizonMonths] are rejected with OutOfHorizon; the caller
// treats that as a navigation no-op rather than clamping to an arbitrary date.
func Window(mode CalendarMode, anchor, today time.Time, horizonMonths int) (CalendarWindow, error) {
	if !mode.Valid() {
		return CalendarWindow{}, appErrors.Clone(appErrors.ErrValidation, "unknown calendar mode")
	}

	anchor = Midnight(anchor)
	todayStart := Midnight(today)
	horizon := HorizonEnd(today, horizonMonths)

	var start, end time.Time
	var leading int
	switch mode {
	case CalendarModeMonth:
		start = time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, anchor.Location())
		end = start.AddDate(0, 1, -1)
		leading = int(start.Weekday())
	case CalendarModeWeek:
		start = sundayAlign(anchor)
		end = start.AddDate(0, 0, 6)
	case CalendarModeTwoWeek:
		start = sundayAlign(anchor)
		end = start.AddDate(0, 0, 13)
	}

	// The window must intersect the permitted horizon: nothing before today,
	// nothing starting beyond the horizon end.
	if end.Before(todayStart) || start.After(horizon) {
		return CalendarWindow{}, appErrors.ErrOutOfHorizon
	}

	dates := make([]time.Time, 0, int(end.Sub(start).Hours()/24)+1)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return CalendarWindow{Dates: dates, LeadingBlanks: leading}, nil
}

// ShiftAnchor moves the anchor by whole window steps, returning the original
// anchor unchanged when the destination window would leave the horizon.
func ShiftAnchor(mode CalendarMode, anchor, today time.Time, steps, horizonMonths int) time.Time {
	anchor = Midnight(anchor)
	var candidate time.Time
	switch mode {
	case CalendarModeMonth:
		candidate = anchor.AddDate(0, steps, 0)
	case CalendarModeWeek:
		candidate = anchor.AddDate(0, 0, 7*steps)
	case CalendarModeTwoWeek:
		candidate = anchor.AddDate(0, 0, 14*steps)
	default:
		return anchor
	}

	if _, err := Window(mode, candidate, today, horizonMonths); err != nil {
		return anchor
	}
	return candidate
}

// WithinHorizon reports whether a single date may be acted on by a caller with
// the given horizon. Used to re-validate booking dates server side regardless
// of what window the client last rendered.
func WithinHorizon(date, today time.Time, horizonMonths int) bool {
	date = Midnight(date)
	todayStart := Midnight(today)
	return !date.Before(todayStart) && !date.After(HorizonEnd(today, horizonMonths))
}

// HorizonMonthsForRole maps an actor role to its navigation horizon.
func HorizonMonthsForRole(role models.UserRole, instructorMonths, studentMonths int) int {
	if role == models.RoleInstructor || role == models.RoleAdmin {
		return instructorMonths
	}
	return studentMonths
}
