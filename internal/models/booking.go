package models

import "time"

// BookingStatus represents lifecycle states for a lesson booking.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusTentative BookingStatus = "TENTATIVE"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCompleted BookingStatus = "COMPLETED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
	BookingStatusRejected  BookingStatus = "REJECTED"
)

// Terminal reports whether the status admits no further transitions.
func (s BookingStatus) Terminal() bool {
	switch s {
	case BookingStatusCompleted, BookingStatusCancelled, BookingStatusRejected:
		return true
	}
	return false
}

// Transmission enumerates vehicle transmission types offered for a lesson.
type Transmission string

const (
	TransmissionManual    Transmission = "MANUAL"
	TransmissionAutomatic Transmission = "AUTOMATIC"
)

// Booking is one lesson request on the ledger. A booking occupies exactly one
// (date, period) pair for its lifetime; ConfirmedTime is set iff the status is
// CONFIRMED or COMPLETED.
type Booking struct {
	ID                string        `db:"id" json:"id"`
	InstructorID      string        `db:"instructor_id" json:"instructor_id"`
	StudentID         string        `db:"student_id" json:"student_id"`
	Date              time.Time     `db:"lesson_date" json:"date"`
	Period            Period        `db:"period" json:"period"`
	ConfirmedTime     *time.Time    `db:"confirmed_time" json:"confirmed_time,omitempty"`
	Status            BookingStatus `db:"status" json:"status"`
	CourseID          string        `db:"course_id" json:"course_id"`
	Price             int64         `db:"price" json:"price"`
	MeetingPoint      *string       `db:"meeting_point" json:"meeting_point,omitempty"`
	Notes             *string       `db:"notes" json:"notes,omitempty"`
	Transmission      Transmission  `db:"transmission" json:"transmission"`
	InstructorVehicle bool          `db:"instructor_vehicle" json:"instructor_vehicle"`
	Pickup            bool          `db:"pickup" json:"pickup"`
	CreatedAt         time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time     `db:"updated_at" json:"updated_at"`
}

// BookingFilter captures criteria for listing bookings.
type BookingFilter struct {
	InstructorID string
	StudentID    string
	Statuses     []BookingStatus
	StartDate    *time.Time
	EndDate      *time.Time
	Page         int
	PageSize     int
}
