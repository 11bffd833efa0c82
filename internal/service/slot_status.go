package service

import (
	"github.com/kokitones-gif/redrive-backend-sub000/internal/models"
)

// ResolveSlotStatus derives the visible status of one slot from its effective
// capacity entry and the bookings sharing that (instructor, date, period) key.
// Pure and side-effect free; callers recompute instead of caching so a status
// can never go stale relative to the ledger.
//
// Confirmed demand saturates first: a slot is never reported AVAILABLE when
// one more confirmation would push confirmed demand past capacity.
func ResolveSlotStatus(entry models.PeriodCapacity, bookings []models.Booking) models.SlotStatus {
	if !entry.Enabled {
		return models.SlotStatusBooked
	}

	capacity := entry.Capacity
	if capacity < 1 {
		capacity = 1
	}

	confirmed, tentative := demandCounts(bookings)
	switch {
	case confirmed >= capacity:
		return models.SlotStatusBooked
	case confirmed+tentative >= capacity:
		return models.SlotStatusTentative
	default:
		return models.SlotStatusAvailable
	}
}

// demandCounts tallies the demand a slot carries. Cancelled and rejected
// bookings free capacity immediately; completed ones belong to past dates and
// are likewise excluded.
func demandCounts(bookings []models.Booking) (confirmed int, tentative int) {
	for _, b := range bookings {
		switch b.Status {
		case models.BookingStatusConfirmed:
			confirmed++
		case models.BookingStatusPending, models.BookingStatusTentative:
			tentative++
		}
	}
	return confirmed, tentative
}
