package models

import "time"

// Period is one of the three coarse time-of-day buckets a lesson day is
// divided into for capacity purposes.
type Period string

const (
	PeriodMorning   Period = "MORNING"
	PeriodAfternoon Period = "AFTERNOON"
	PeriodEvening   Period = "EVENING"
)

// Periods lists all periods in display order.
var Periods = []Period{PeriodMorning, PeriodAfternoon, PeriodEvening}

// Valid reports whether the period is a known bucket.
func (p Period) Valid() bool {
	switch p {
	case PeriodMorning, PeriodAfternoon, PeriodEvening:
		return true
	}
	return false
}

// SlotStatus is the derived, never-stored visibility state of a slot.
type SlotStatus string

const (
	SlotStatusAvailable SlotStatus = "AVAILABLE"
	SlotStatusTentative SlotStatus = "TENTATIVE"
	SlotStatusBooked    SlotStatus = "BOOKED"
)

// DefaultSlotCapacity applies to any period the instructor never configured.
const DefaultSlotCapacity = 2

// SlotCapacity is a sparse per (instructor, date, period) capacity override.
// Absent rows mean capacity=DefaultSlotCapacity, enabled=true. Rows are only
// ever superseded by upserts, never deleted.
type SlotCapacity struct {
	ID           string    `db:"id" json:"id"`
	InstructorID string    `db:"instructor_id" json:"instructor_id"`
	Date         time.Time `db:"lesson_date" json:"date"`
	Period       Period    `db:"period" json:"period"`
	Capacity     int       `db:"capacity" json:"capacity"`
	Enabled      bool      `db:"enabled" json:"enabled"`
	// Holiday marks rows disabled by the weekday policy cascade, so that
	// re-including the weekday restores only policy-disabled periods and
	// leaves manual disables alone.
	Holiday   bool      `db:"holiday" json:"holiday"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// PeriodCapacity is the effective capacity of one period after defaulting.
type PeriodCapacity struct {
	Capacity int  `json:"capacity"`
	Enabled  bool `json:"enabled"`
}

// DayAvailability is the per-date view returned by availability queries.
type DayAvailability struct {
	Date      string                `json:"date"`
	IsHoliday bool                  `json:"is_holiday"`
	Periods   map[Period]SlotStatus `json:"periods"`
}
