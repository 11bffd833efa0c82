package models

import "time"

// Instructor is the bookable profile students browse before picking a slot.
// The id doubles as the owning user's id; profiles are strictly one per
// instructor account.
type Instructor struct {
	ID            string       `db:"id" json:"id"`
	FullName      string       `db:"full_name" json:"full_name"`
	Transmission  Transmission `db:"transmission" json:"transmission"`
	PricePerHour  int64        `db:"price_per_hour" json:"price_per_hour"`
	MeetingPoint  string       `db:"meeting_point" json:"meeting_point"`
	Bio           *string      `db:"bio" json:"bio,omitempty"`
	VehicleOption bool         `db:"vehicle_option" json:"vehicle_option"`
	PickupOption  bool         `db:"pickup_option" json:"pickup_option"`
	Active        bool         `db:"active" json:"active"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at" json:"updated_at"`
}

// InstructorFilter captures criteria for listing instructors.
type InstructorFilter struct {
	Transmission *Transmission
	Active       *bool
	Search       string
	Page         int
	PageSize     int
}
