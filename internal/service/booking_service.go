package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kokitones-gif/redrive-backend-sub000/internal/models"
	"github.com/kokitones-gif/redrive-backend-sub000/internal/repository"
	"github.com/kokitones-gif/redrive-backend-sub000/pkg/config"
	appErrors "github.com/kokitones-gif/redrive-backend-sub000/pkg/errors"
)

type bookingLedger interface {
	GetByID(ctx context.Context, id string) (*models.Booking, error)
	ListForSlot(ctx context.Context, instructorID string, date time.Time, period models.Period) ([]models.Booking, error)
	List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error)
	Create(ctx context.Context, booking *models.Booking) error
	UpdateStatus(ctx context.Context, id string, status models.BookingStatus, confirmedTime *time.Time) error
	CompleteElapsed(ctx context.Context, before time.Time) (int64, error)
}

type bookingCapacitySource interface {
	Get(ctx context.Context, instructorID string, date time.Time, period models.Period) (*models.SlotCapacity, error)
}

// BookingService governs the booking lifecycle: request, confirm with a
// concrete time, reject, cancel, and the completion sweep.
//
// All mutations against one instructor's calendar are serialized through a
// per-instructor mutex: capacity checks depend on a consistent read of the
// slot's full booking set. Calendars of different instructors are fully
// independent and never contend.
type BookingService struct {
	bookings   bookingLedger
	capacities bookingCapacitySource
	policies   weekdayPolicySource
	cache      availabilityCache
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        config.SchedulingConfig
	now        func() time.Time

	locks sync.Map // instructorID -> *sync.Mutex
}

// NewBookingService constructs the service.
func NewBookingService(
	bookings bookingLedger,
	capacities bookingCapacitySource,
	policies weekdayPolicySource,
	cache availabilityCache,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg config.SchedulingConfig,
) *BookingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultCapacity < 1 {
		cfg.DefaultCapacity = models.DefaultSlotCapacity
	}
	return &BookingService{
		bookings:   bookings,
		capacities: capacities,
		policies:   policies,
		cache:      cache,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
}

func (s *BookingService) lockInstructor(instructorID string) func() {
	value, _ := s.locks.LoadOrStore(instructorID, &sync.Mutex{})
	mu := value.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// RequestBookingInput describes a student's booking request.
type RequestBookingInput struct {
	StudentID         string              `json:"student_id" validate:"required"`
	InstructorID      string              `json:"instructor_id" validate:"required"`
	Date              time.Time           `json:"date" validate:"required"`
	Period            models.Period       `json:"period" validate:"required"`
	CourseID          string              `json:"course_id" validate:"required"`
	Price             int64               `json:"price" validate:"gte=0"`
	MeetingPoint      *string             `json:"meeting_point"`
	Notes             *string             `json:"notes"`
	Transmission      models.Transmission `json:"transmission" validate:"required,oneof=MANUAL AUTOMATIC"`
	InstructorVehicle bool                `json:"instructor_vehicle"`
	Pickup            bool                `json:"pickup"`
}

// Request creates a pending booking after re-validating the slot server
// side. Whatever status the client last rendered is irrelevant: capacity is
// checked again inside the instructor's critical section so sequential
// requests can never overshoot it.
func (s *BookingService) Request(ctx context.Context, input RequestBookingInput) (*models.Booking, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking request")
	}
	if !input.Period.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown period")
	}

	date := Midnight(input.Date)
	if !WithinHorizon(date, s.now(), s.cfg.StudentHorizonMonths) {
		return nil, appErrors.ErrOutOfHorizon
	}

	unlock := s.lockInstructor(input.InstructorID)
	defer unlock()

	weekdays, err := s.loadWeekdays(ctx, input.InstructorID)
	if err != nil {
		return nil, err
	}
	if !weekdays.Contains(date.Weekday()) {
		return nil, appErrors.Clone(appErrors.ErrSlotClosed, "instructor does not operate on this weekday")
	}

	entry, err := s.effectiveCapacity(ctx, input.InstructorID, date, input.Period)
	if err != nil {
		return nil, err
	}
	if !entry.Enabled {
		return nil, appErrors.ErrSlotClosed
	}

	slotBookings, err := s.bookings.ListForSlot(ctx, input.InstructorID, date, input.Period)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slot bookings")
	}
	if ResolveSlotStatus(entry, slotBookings) == models.SlotStatusBooked {
		s.metrics.IncCapacityConflict()
		return nil, appErrors.ErrCapacityExceeded
	}

	booking := &models.Booking{
		InstructorID:      input.InstructorID,
		StudentID:         input.StudentID,
		Date:              date,
		Period:            input.Period,
		Status:            models.BookingStatusPending,
		CourseID:          input.CourseID,
		Price:             input.Price,
		MeetingPoint:      input.MeetingPoint,
		Notes:             input.Notes,
		Transmission:      input.Transmission,
		InstructorVehicle: input.InstructorVehicle,
		Pickup:            input.Pickup,
	}
	if err := s.bookings.Create(ctx, booking); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create booking")
	}

	s.metrics.IncBookingCreated()
	s.invalidate(ctx, input.InstructorID)
	return booking, nil
}

// ConfirmWithTime approves a held booking and fixes its concrete lesson
// time. This is the only way a booking acquires a wall-clock time; until then
// it is scheduled only to a coarse period bucket.
func (s *BookingService) ConfirmWithTime(ctx context.Context, bookingID string, confirmedTime time.Time, claims *models.JWTClaims) (*models.Booking, error) {
	existing, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := authorizeMutation(existing, claims, false); err != nil {
		return nil, err
	}

	unlock := s.lockInstructor(existing.InstructorID)
	defer unlock()

	// Re-read inside the critical section; the first read raced with other
	// mutations on this calendar.
	booking, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status.Terminal() {
		return nil, appErrors.ErrInvalidState
	}

	if booking.Status != models.BookingStatusConfirmed {
		entry, err := s.effectiveCapacity(ctx, booking.InstructorID, booking.Date, booking.Period)
		if err != nil {
			return nil, err
		}
		slotBookings, err := s.bookings.ListForSlot(ctx, booking.InstructorID, booking.Date, booking.Period)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slot bookings")
		}
		confirmed, _ := demandCounts(slotBookings)
		if confirmed >= entry.Capacity {
			s.metrics.IncCapacityConflict()
			return nil, appErrors.ErrCapacityExceeded
		}
	}

	ct := confirmedTime.UTC()
	if err := s.bookings.UpdateStatus(ctx, bookingID, models.BookingStatusConfirmed, &ct); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to confirm booking")
	}

	booking.Status = models.BookingStatusConfirmed
	booking.ConfirmedTime = &ct

	s.metrics.IncBookingConfirmed()
	s.invalidate(ctx, booking.InstructorID)
	return booking, nil
}

// Reject declines a requested booking. Rejecting an already-terminal booking
// is a no-op so client retries stay safe.
func (s *BookingService) Reject(ctx context.Context, bookingID string, claims *models.JWTClaims) (*models.Booking, error) {
	return s.terminate(ctx, bookingID, claims, false, models.BookingStatusRejected, func(status models.BookingStatus) error {
		// Only held bookings can be declined; a confirmed lesson must be
		// cancelled instead.
		if status == models.BookingStatusConfirmed {
			return appErrors.Clone(appErrors.ErrInvalidState, "confirmed bookings must be cancelled, not rejected")
		}
		return nil
	})
}

// Cancel withdraws a booking from any non-terminal state. Idempotent on
// terminal bookings.
func (s *BookingService) Cancel(ctx context.Context, bookingID string, claims *models.JWTClaims) (*models.Booking, error) {
	return s.terminate(ctx, bookingID, claims, true, models.BookingStatusCancelled, func(models.BookingStatus) error {
		return nil
	})
}

func (s *BookingService) terminate(ctx context.Context, bookingID string, claims *models.JWTClaims, studentAllowed bool, target models.BookingStatus, allowed func(models.BookingStatus) error) (*models.Booking, error) {
	existing, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := authorizeMutation(existing, claims, studentAllowed); err != nil {
		return nil, err
	}

	unlock := s.lockInstructor(existing.InstructorID)
	defer unlock()

	booking, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status.Terminal() {
		return booking, nil
	}
	if err := allowed(booking.Status); err != nil {
		return nil, err
	}

	// Terminal states release the slot; the confirmed time no longer holds.
	if err := s.bookings.UpdateStatus(ctx, bookingID, target, nil); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update booking")
	}
	booking.Status = target
	booking.ConfirmedTime = nil

	s.invalidate(ctx, booking.InstructorID)
	return booking, nil
}

// List returns bookings visible to the caller: students see their own,
// instructors their calendar, admins everything the filter selects.
func (s *BookingService) List(ctx context.Context, filter models.BookingFilter, claims *models.JWTClaims) ([]models.Booking, *models.Pagination, error) {
	if claims == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	switch claims.Role {
	case models.RoleStudent:
		filter.StudentID = claims.UserID
	case models.RoleInstructor:
		filter.InstructorID = claims.UserID
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}

	bookings, total, err := s.bookings.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return bookings, pagination, nil
}

// CompleteElapsed flips confirmed bookings whose lesson date has passed to
// COMPLETED. Invoked by the background sweep.
func (s *BookingService) CompleteElapsed(ctx context.Context) (int64, error) {
	count, err := s.bookings.CompleteElapsed(ctx, Midnight(s.now()))
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "completion sweep failed")
	}
	if count > 0 {
		s.logger.Info("completed elapsed bookings", zap.Int64("count", count))
		s.metrics.AddBookingsCompleted(count)
		if s.cache != nil {
			if err := s.cache.InvalidatePattern(ctx, "availability:*"); err != nil {
				s.logger.Warn("failed to invalidate availability cache after sweep", zap.Error(err))
			}
		}
	}
	return count, nil
}

// authorizeMutation gates lifecycle transitions: admins act anywhere,
// instructors only on their own calendar, students only cancel their own
// bookings.
func authorizeMutation(booking *models.Booking, claims *models.JWTClaims, studentAllowed bool) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	switch claims.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleInstructor:
		if booking.InstructorID == claims.UserID {
			return nil
		}
	case models.RoleStudent:
		if studentAllowed && booking.StudentID == claims.UserID {
			return nil
		}
	}
	return appErrors.ErrForbidden
}

func (s *BookingService) getBooking(ctx context.Context, id string) (*models.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
	}
	return booking, nil
}

func (s *BookingService) effectiveCapacity(ctx context.Context, instructorID string, date time.Time, period models.Period) (models.PeriodCapacity, error) {
	entry, err := s.capacities.Get(ctx, instructorID, date, period)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.PeriodCapacity{Capacity: s.cfg.DefaultCapacity, Enabled: true}, nil
		}
		return models.PeriodCapacity{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slot capacity")
	}
	return models.PeriodCapacity{Capacity: entry.Capacity, Enabled: entry.Enabled}, nil
}

func (s *BookingService) loadWeekdays(ctx context.Context, instructorID string) (models.WeekdaySet, error) {
	policy, err := s.policies.GetByInstructor(ctx, instructorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.AllWeekdays(), nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load weekday policy")
	}
	set, err := policy.DecodeWeekdays()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "corrupt weekday policy")
	}
	return set, nil
}

func (s *BookingService) invalidate(ctx context.Context, instructorID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidatePattern(ctx, repository.AvailabilityPattern(instructorID)); err != nil {
		s.logger.Warn("failed to invalidate availability cache", zap.String("instructor_id", instructorID), zap.Error(err))
	}
}
