package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kokitones-gif/redrive-backend-sub000/internal/models"
	appErrors "github.com/kokitones-gif/redrive-backend-sub000/pkg/errors"
)

type mockCapacityStore struct {
	entries        []models.SlotCapacity
	getEntry       *models.SlotCapacity
	upserts        []*models.SlotCapacity
	listRangeCalls int
}

func (m *mockCapacityStore) Get(ctx context.Context, instructorID string, date time.Time, period models.Period) (*models.SlotCapacity, error) {
	if m.getEntry == nil {
		return nil, sql.ErrNoRows
	}
	cp := *m.getEntry
	return &cp, nil
}

func (m *mockCapacityStore) ListRange(ctx context.Context, instructorID string, from, to time.Time) ([]models.SlotCapacity, error) {
	m.listRangeCalls++
	return m.entries, nil
}

func (m *mockCapacityStore) Upsert(ctx context.Context, entry *models.SlotCapacity) error {
	m.upserts = append(m.upserts, entry)
	return nil
}

type mockRangeLedger struct {
	bookings []models.Booking
}

func (m *mockRangeLedger) ListForRange(ctx context.Context, instructorID string, from, to time.Time) ([]models.Booking, error) {
	return m.bookings, nil
}

type fakeCache struct {
	store map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{store: map[string][]byte{}}
}

func (f *fakeCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := f.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (f *fakeCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.store[key] = raw
	return nil
}

func (f *fakeCache) InvalidatePattern(ctx context.Context, pattern string) error {
	f.store = map[string][]byte{}
	return nil
}

func newAvailabilityServiceForTest(caps *mockCapacityStore, ledger *mockRangeLedger, policy *mockPolicySource, cache availabilityCache, today time.Time) *AvailabilityService {
	svc := NewAvailabilityService(caps, ledger, policy, cache, nil, nil, zap.NewNop(), testSchedulingConfig)
	svc.now = func() time.Time { return today }
	return svc
}

func rangeRequest(from, to time.Time, role models.UserRole) AvailabilityRangeRequest {
	return AvailabilityRangeRequest{InstructorID: "inst-1", StartDate: from, EndDate: to, Role: role}
}

func TestAvailabilityServiceGetRangeDefaults(t *testing.T) {
	svc := newAvailabilityServiceForTest(&mockCapacityStore{}, &mockRangeLedger{}, &mockPolicySource{}, nil, date(2026, time.June, 10))

	days, err := svc.GetRange(context.Background(), rangeRequest(date(2026, time.June, 15), date(2026, time.June, 16), models.RoleStudent))
	require.NoError(t, err)
	require.Len(t, days, 2)

	for _, day := range days {
		assert.False(t, day.IsHoliday)
		require.Len(t, day.Periods, 3)
		for _, period := range models.Periods {
			assert.Equal(t, models.SlotStatusAvailable, day.Periods[period])
		}
	}
}

func TestAvailabilityServiceGetRangeResolvesDemand(t *testing.T) {
	lessonDate := date(2026, time.June, 15)
	ledger := &mockRangeLedger{bookings: []models.Booking{
		{ID: "b1", Date: lessonDate, Period: models.PeriodMorning, Status: models.BookingStatusConfirmed},
		{ID: "b2", Date: lessonDate, Period: models.PeriodMorning, Status: models.BookingStatusConfirmed},
		{ID: "b3", Date: lessonDate, Period: models.PeriodAfternoon, Status: models.BookingStatusConfirmed},
		{ID: "b4", Date: lessonDate, Period: models.PeriodAfternoon, Status: models.BookingStatusPending},
		{ID: "b5", Date: lessonDate, Period: models.PeriodEvening, Status: models.BookingStatusCancelled},
	}}
	svc := newAvailabilityServiceForTest(&mockCapacityStore{}, ledger, &mockPolicySource{}, nil, date(2026, time.June, 10))

	days, err := svc.GetRange(context.Background(), rangeRequest(lessonDate, lessonDate, models.RoleStudent))
	require.NoError(t, err)
	require.Len(t, days, 1)

	assert.Equal(t, models.SlotStatusBooked, days[0].Periods[models.PeriodMorning])
	assert.Equal(t, models.SlotStatusTentative, days[0].Periods[models.PeriodAfternoon])
	assert.Equal(t, models.SlotStatusAvailable, days[0].Periods[models.PeriodEvening])
}

func TestAvailabilityServiceGetRangeDisabledPeriod(t *testing.T) {
	lessonDate := date(2026, time.June, 15)
	caps := &mockCapacityStore{entries: []models.SlotCapacity{
		{InstructorID: "inst-1", Date: lessonDate, Period: models.PeriodMorning, Capacity: 2, Enabled: false},
	}}
	svc := newAvailabilityServiceForTest(caps, &mockRangeLedger{}, &mockPolicySource{}, nil, date(2026, time.June, 10))

	days, err := svc.GetRange(context.Background(), rangeRequest(lessonDate, lessonDate, models.RoleStudent))
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, models.SlotStatusBooked, days[0].Periods[models.PeriodMorning])
	assert.Equal(t, models.SlotStatusAvailable, days[0].Periods[models.PeriodAfternoon])
}

func TestAvailabilityServiceGetRangeHolidayShortCircuit(t *testing.T) {
	// June 14 2026 is a Sunday; the policy below excludes it. Capacity rows and
	// ledger contents are irrelevant on holidays.
	policy := &mockPolicySource{weekdays: []int{1, 2, 3, 4, 5, 6}}
	svc := newAvailabilityServiceForTest(&mockCapacityStore{}, &mockRangeLedger{}, policy, nil, date(2026, time.June, 10))

	days, err := svc.GetRange(context.Background(), rangeRequest(date(2026, time.June, 14), date(2026, time.June, 15), models.RoleStudent))
	require.NoError(t, err)
	require.Len(t, days, 2)

	assert.True(t, days[0].IsHoliday)
	for _, period := range models.Periods {
		assert.Equal(t, models.SlotStatusBooked, days[0].Periods[period])
	}
	assert.False(t, days[1].IsHoliday)
}

func TestAvailabilityServiceGetRangeHorizonByRole(t *testing.T) {
	svc := newAvailabilityServiceForTest(&mockCapacityStore{}, &mockRangeLedger{}, &mockPolicySource{}, nil, date(2026, time.June, 10))

	// Three months out: beyond the student horizon, within the instructor one.
	from := date(2026, time.September, 1)
	to := date(2026, time.September, 2)

	_, err := svc.GetRange(context.Background(), rangeRequest(from, to, models.RoleStudent))
	assert.True(t, appErrors.Is(err, appErrors.ErrOutOfHorizon))

	_, err = svc.GetRange(context.Background(), rangeRequest(from, to, models.RoleInstructor))
	assert.NoError(t, err)
}

func TestAvailabilityServiceGetRangeRejectsWideRange(t *testing.T) {
	svc := newAvailabilityServiceForTest(&mockCapacityStore{}, &mockRangeLedger{}, &mockPolicySource{}, nil, date(2026, time.June, 10))

	_, err := svc.GetRange(context.Background(), rangeRequest(date(2026, time.June, 10), date(2026, time.August, 20), models.RoleInstructor))
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestAvailabilityServiceGetRangeUsesCache(t *testing.T) {
	caps := &mockCapacityStore{}
	svc := newAvailabilityServiceForTest(caps, &mockRangeLedger{}, &mockPolicySource{}, newFakeCache(), date(2026, time.June, 10))

	req := rangeRequest(date(2026, time.June, 15), date(2026, time.June, 16), models.RoleStudent)

	first, err := svc.GetRange(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.GetRange(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, caps.listRangeCalls)
}

func TestAvailabilityServiceSetSlotPreservesCapacityOnDisable(t *testing.T) {
	caps := &mockCapacityStore{getEntry: &models.SlotCapacity{
		ID: "sc1", InstructorID: "inst-1", Date: date(2026, time.June, 15), Period: models.PeriodMorning,
		Capacity: 3, Enabled: true,
	}}
	svc := newAvailabilityServiceForTest(caps, &mockRangeLedger{}, &mockPolicySource{}, nil, date(2026, time.June, 10))

	entry, err := svc.SetSlot(context.Background(), SetSlotRequest{
		InstructorID: "inst-1",
		Date:         date(2026, time.June, 15),
		Period:       models.PeriodMorning,
		Enabled:      false,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, entry.Capacity)
	assert.False(t, entry.Enabled)
	assert.False(t, entry.Holiday)
	require.Len(t, caps.upserts, 1)
}

func TestAvailabilityServiceSetSlotValidation(t *testing.T) {
	svc := newAvailabilityServiceForTest(&mockCapacityStore{}, &mockRangeLedger{}, &mockPolicySource{}, nil, date(2026, time.June, 10))

	zero := 0
	_, err := svc.SetSlot(context.Background(), SetSlotRequest{
		InstructorID: "inst-1", Date: date(2026, time.June, 15), Period: models.PeriodMorning, Capacity: &zero,
	})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.SetSlot(context.Background(), SetSlotRequest{
		InstructorID: "inst-1", Date: date(2026, time.June, 15), Period: models.Period("NIGHT"),
	})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.SetSlot(context.Background(), SetSlotRequest{
		InstructorID: "inst-1", Date: date(2026, time.November, 15), Period: models.PeriodMorning,
	})
	assert.True(t, appErrors.Is(err, appErrors.ErrOutOfHorizon))
}

func TestAvailabilityServiceGetCalendarClampsToHorizon(t *testing.T) {
	svc := newAvailabilityServiceForTest(&mockCapacityStore{}, &mockRangeLedger{}, &mockPolicySource{}, nil, date(2026, time.June, 10))

	view, err := svc.GetCalendar(context.Background(), CalendarRequest{
		InstructorID: "inst-1",
		Mode:         CalendarModeMonth,
		Anchor:       date(2026, time.June, 10),
		Role:         models.RoleInstructor,
	})
	require.NoError(t, err)

	assert.Equal(t, "2026-06-01", view.WindowStart)
	assert.Equal(t, "2026-06-30", view.WindowEnd)
	assert.Equal(t, 1, view.LeadingBlanks)
	// Days before today carry no actionable slots and are omitted.
	require.NotEmpty(t, view.Days)
	assert.Equal(t, "2026-06-10", view.Days[0].Date)
	assert.Equal(t, "2026-06-30", view.Days[len(view.Days)-1].Date)
}

func TestAvailabilityServiceGetCalendarShiftNoOp(t *testing.T) {
	svc := newAvailabilityServiceForTest(&mockCapacityStore{}, &mockRangeLedger{}, &mockPolicySource{}, nil, date(2026, time.June, 10))

	view, err := svc.GetCalendar(context.Background(), CalendarRequest{
		InstructorID: "inst-1",
		Mode:         CalendarModeMonth,
		Anchor:       date(2026, time.June, 10),
		Shift:        6,
		Role:         models.RoleInstructor,
	})
	require.NoError(t, err)
	// The shift would leave the four-month horizon, so the page stays put.
	assert.Equal(t, "2026-06-10", view.Anchor)
	assert.Equal(t, "2026-06-01", view.WindowStart)
}
