package models

import (
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// WeekdayPolicy stores the set of weekdays an instructor accepts bookings on.
// Dates whose weekday falls outside the set are holidays: every period is
// forced closed regardless of capacity.
type WeekdayPolicy struct {
	ID           string         `db:"id" json:"id"`
	InstructorID string         `db:"instructor_id" json:"instructor_id"`
	Weekdays     types.JSONText `db:"weekdays" json:"weekdays"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// WeekdaySet is a decoded weekday-acceptance set (time.Weekday keyed).
type WeekdaySet map[time.Weekday]struct{}

// Contains reports whether the weekday is accepted.
func (s WeekdaySet) Contains(d time.Weekday) bool {
	_, ok := s[d]
	return ok
}

// NewWeekdaySet builds a set from raw weekday numbers (0=Sunday .. 6=Saturday).
func NewWeekdaySet(days []int) WeekdaySet {
	set := make(WeekdaySet, len(days))
	for _, d := range days {
		set[time.Weekday(d)] = struct{}{}
	}
	return set
}

// AllWeekdays is the default policy for instructors who never configured one.
func AllWeekdays() WeekdaySet {
	return NewWeekdaySet([]int{0, 1, 2, 3, 4, 5, 6})
}

// DecodeWeekdays parses the stored JSON array into a WeekdaySet.
func (p *WeekdayPolicy) DecodeWeekdays() (WeekdaySet, error) {
	var days []int
	if err := json.Unmarshal(p.Weekdays, &days); err != nil {
		return nil, err
	}
	return NewWeekdaySet(days), nil
}

// EncodeWeekdays serialises weekday numbers for storage.
func EncodeWeekdays(days []int) (types.JSONText, error) {
	raw, err := json.Marshal(days)
	if err != nil {
		return nil, err
	}
	return types.JSONText(raw), nil
}
