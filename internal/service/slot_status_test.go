package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kokitones-gif/redrive-backend-sub000/internal/models"
)

func bookingsWithStatuses(statuses ...models.BookingStatus) []models.Booking {
	out := make([]models.Booking, len(statuses))
	for i, s := range statuses {
		out[i] = models.Booking{ID: string(rune('a' + i)), Status: s}
	}
	return out
}

func TestResolveSlotStatus(t *testing.T) {
	open := models.PeriodCapacity{Capacity: 2, Enabled: true}

	tests := []struct {
		name     string
		entry    models.PeriodCapacity
		bookings []models.Booking
		want     models.SlotStatus
	}{
		{"empty slot", open, nil, models.SlotStatusAvailable},
		{"one pending leaves room", open, bookingsWithStatuses(models.BookingStatusPending), models.SlotStatusAvailable},
		{"held demand fills capacity", open, bookingsWithStatuses(models.BookingStatusPending, models.BookingStatusTentative), models.SlotStatusTentative},
		{"one confirmed one pending", open, bookingsWithStatuses(models.BookingStatusConfirmed, models.BookingStatusPending), models.SlotStatusTentative},
		{"confirmed demand saturates", open, bookingsWithStatuses(models.BookingStatusConfirmed, models.BookingStatusConfirmed), models.SlotStatusBooked},
		{"confirmed saturation beats extra pendings", open, bookingsWithStatuses(models.BookingStatusConfirmed, models.BookingStatusConfirmed, models.BookingStatusPending), models.SlotStatusBooked},
		{"disabled period is booked regardless", models.PeriodCapacity{Capacity: 2, Enabled: false}, nil, models.SlotStatusBooked},
		{"cancelled bookings free capacity", open, bookingsWithStatuses(models.BookingStatusCancelled, models.BookingStatusCancelled), models.SlotStatusAvailable},
		{"rejected bookings free capacity", open, bookingsWithStatuses(models.BookingStatusConfirmed, models.BookingStatusRejected), models.SlotStatusAvailable},
		{"completed bookings do not count", open, bookingsWithStatuses(models.BookingStatusCompleted), models.SlotStatusAvailable},
		{"capacity one single pending", models.PeriodCapacity{Capacity: 1, Enabled: true}, bookingsWithStatuses(models.BookingStatusPending), models.SlotStatusTentative},
		{"zero capacity clamps to one", models.PeriodCapacity{Capacity: 0, Enabled: true}, bookingsWithStatuses(models.BookingStatusConfirmed), models.SlotStatusBooked},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ResolveSlotStatus(tc.entry, tc.bookings))
		})
	}
}

// Walks one slot through a full demand cycle: two holds make it tentative but
// still requestable, two confirmations close it, and a cancellation reopens it.
func TestResolveSlotStatusDemandCycle(t *testing.T) {
	entry := models.PeriodCapacity{Capacity: 2, Enabled: true}

	slot := bookingsWithStatuses(models.BookingStatusPending, models.BookingStatusPending)
	assert.Equal(t, models.SlotStatusTentative, ResolveSlotStatus(entry, slot))

	// A third request may still arrive while the slot is merely tentative.
	slot = append(slot, models.Booking{ID: "c", Status: models.BookingStatusPending})
	assert.Equal(t, models.SlotStatusTentative, ResolveSlotStatus(entry, slot))

	slot[0].Status = models.BookingStatusConfirmed
	slot[1].Status = models.BookingStatusConfirmed
	assert.Equal(t, models.SlotStatusBooked, ResolveSlotStatus(entry, slot))

	slot[0].Status = models.BookingStatusCancelled
	assert.Equal(t, models.SlotStatusTentative, ResolveSlotStatus(entry, slot))

	slot[2].Status = models.BookingStatusRejected
	assert.Equal(t, models.SlotStatusAvailable, ResolveSlotStatus(entry, slot))
}
