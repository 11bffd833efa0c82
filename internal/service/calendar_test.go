package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/kokitones-gif/redrive-backend-sub000/pkg/errors"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestWindowMonth(t *testing.T) {
	// June 2026 starts on a Monday, so the Sunday-first grid pads one cell.
	today := date(2026, time.June, 10)
	window, err := Window(CalendarModeMonth, date(2026, time.June, 18), today, 4)
	require.NoError(t, err)

	assert.Len(t, window.Dates, 30)
	assert.Equal(t, date(2026, time.June, 1), window.Dates[0])
	assert.Equal(t, date(2026, time.June, 30), window.Dates[len(window.Dates)-1])
	assert.Equal(t, 1, window.LeadingBlanks)
}

func TestWindowWeekAlignsToSunday(t *testing.T) {
	today := date(2026, time.June, 10)
	// June 10 2026 is a Wednesday; its week starts Sunday June 7.
	window, err := Window(CalendarModeWeek, today, today, 2)
	require.NoError(t, err)

	require.Len(t, window.Dates, 7)
	assert.Equal(t, date(2026, time.June, 7), window.Dates[0])
	assert.Equal(t, time.Sunday, window.Dates[0].Weekday())
	assert.Equal(t, date(2026, time.June, 13), window.Dates[6])
	assert.Equal(t, 0, window.LeadingBlanks)
}

func TestWindowTwoWeek(t *testing.T) {
	today := date(2026, time.June, 10)
	window, err := Window(CalendarModeTwoWeek, today, today, 2)
	require.NoError(t, err)

	require.Len(t, window.Dates, 14)
	assert.Equal(t, date(2026, time.June, 7), window.Dates[0])
	assert.Equal(t, date(2026, time.June, 20), window.Dates[13])
}

func TestWindowPartiallyPastIsAllowed(t *testing.T) {
	// A month grid anchored mid-month reaches back before today; the window
	// still intersects the horizon so it must render.
	today := date(2026, time.June, 20)
	_, err := Window(CalendarModeMonth, date(2026, time.June, 1), today, 4)
	assert.NoError(t, err)
}

func TestWindowEntirelyOutsideHorizon(t *testing.T) {
	today := date(2026, time.June, 10)

	_, err := Window(CalendarModeMonth, date(2026, time.March, 15), today, 4)
	assert.True(t, appErrors.Is(err, appErrors.ErrOutOfHorizon))

	_, err = Window(CalendarModeMonth, date(2026, time.December, 1), today, 4)
	assert.True(t, appErrors.Is(err, appErrors.ErrOutOfHorizon))

	// Two months ahead is within the student horizon, four months is not.
	_, err = Window(CalendarModeWeek, date(2026, time.October, 14), today, 2)
	assert.True(t, appErrors.Is(err, appErrors.ErrOutOfHorizon))
}

func TestWindowUnknownMode(t *testing.T) {
	_, err := Window(CalendarMode("quarter"), date(2026, time.June, 1), date(2026, time.June, 1), 4)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestShiftAnchorMovesWithinHorizon(t *testing.T) {
	today := date(2026, time.June, 10)
	anchor := date(2026, time.June, 10)

	next := ShiftAnchor(CalendarModeMonth, anchor, today, 1, 4)
	assert.Equal(t, date(2026, time.July, 10), next)

	weekNext := ShiftAnchor(CalendarModeWeek, anchor, today, 2, 2)
	assert.Equal(t, date(2026, time.June, 24), weekNext)
}

func TestShiftAnchorOutOfHorizonIsNoOp(t *testing.T) {
	today := date(2026, time.June, 10)
	anchor := date(2026, time.June, 10)

	// Five months forward leaves the four-month instructor horizon.
	assert.Equal(t, anchor, ShiftAnchor(CalendarModeMonth, anchor, today, 5, 4))
	// Backwards past today is equally a no-op.
	assert.Equal(t, anchor, ShiftAnchor(CalendarModeMonth, anchor, today, -2, 4))
	assert.Equal(t, anchor, ShiftAnchor(CalendarModeTwoWeek, anchor, today, -3, 2))
}

func TestWithinHorizon(t *testing.T) {
	today := date(2026, time.June, 10)

	assert.True(t, WithinHorizon(today, today, 2))
	assert.True(t, WithinHorizon(date(2026, time.August, 10), today, 2))
	assert.False(t, WithinHorizon(date(2026, time.August, 11), today, 2))
	assert.False(t, WithinHorizon(date(2026, time.June, 9), today, 2))
	assert.True(t, WithinHorizon(date(2026, time.October, 10), today, 4))
	assert.False(t, WithinHorizon(date(2026, time.October, 11), today, 4))
}
