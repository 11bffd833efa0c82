package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kokitones-gif/redrive-backend-sub000/internal/models"
	"github.com/kokitones-gif/redrive-backend-sub000/internal/repository"
	"github.com/kokitones-gif/redrive-backend-sub000/pkg/config"
	appErrors "github.com/kokitones-gif/redrive-backend-sub000/pkg/errors"
)

// maxRangeDays bounds a single availability query; the widest calendar view
// is a month grid.
const maxRangeDays = 62

type slotCapacityStore interface {
	Get(ctx context.Context, instructorID string, date time.Time, period models.Period) (*models.SlotCapacity, error)
	ListRange(ctx context.Context, instructorID string, from, to time.Time) ([]models.SlotCapacity, error)
	Upsert(ctx context.Context, entry *models.SlotCapacity) error
}

type availabilityLedger interface {
	ListForRange(ctx context.Context, instructorID string, from, to time.Time) ([]models.Booking, error)
}

type weekdayPolicySource interface {
	GetByInstructor(ctx context.Context, instructorID string) (*models.WeekdayPolicy, error)
}

type availabilityCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	InvalidatePattern(ctx context.Context, pattern string) error
}

// AvailabilityService resolves per-date, per-period slot statuses and owns
// capacity-store mutations.
type AvailabilityService struct {
	capacities slotCapacityStore
	bookings   availabilityLedger
	policies   weekdayPolicySource
	cache      availabilityCache
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        config.SchedulingConfig
	now        func() time.Time
}

// NewAvailabilityService constructs the service.
func NewAvailabilityService(
	capacities slotCapacityStore,
	bookings availabilityLedger,
	policies weekdayPolicySource,
	cache availabilityCache,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg config.SchedulingConfig,
) *AvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultCapacity < 1 {
		cfg.DefaultCapacity = models.DefaultSlotCapacity
	}
	return &AvailabilityService{
		capacities: capacities,
		bookings:   bookings,
		policies:   policies,
		cache:      cache,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
}

// AvailabilityRangeRequest describes one availability lookup.
type AvailabilityRangeRequest struct {
	InstructorID string          `validate:"required"`
	StartDate    time.Time       `validate:"required"`
	EndDate      time.Time       `validate:"required"`
	Role         models.UserRole `validate:"required"`
}

// GetRange resolves the status of every slot between two dates inclusive.
// The permitted horizon depends on the caller's role: students look two
// months ahead, instructors four.
func (s *AvailabilityService) GetRange(ctx context.Context, req AvailabilityRangeRequest) ([]models.DayAvailability, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability query")
	}

	from := Midnight(req.StartDate)
	to := Midnight(req.EndDate)
	if to.Before(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_date must be on or after start_date")
	}
	if int(to.Sub(from).Hours()/24) >= maxRangeDays {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date range too wide")
	}

	today := s.now()
	months := HorizonMonthsForRole(req.Role, s.cfg.InstructorHorizonMonths, s.cfg.StudentHorizonMonths)
	if !WithinHorizon(from, today, months) || !WithinHorizon(to, today, months) {
		return nil, appErrors.ErrOutOfHorizon
	}

	key := repository.AvailabilityKey(req.InstructorID, from.Format(time.DateOnly), to.Format(time.DateOnly))
	var cached []models.DayAvailability
	if s.cache != nil {
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			s.metrics.IncCacheHit()
			return cached, nil
		}
		s.metrics.IncCacheMiss()
	}

	days, err := s.resolveRange(ctx, req.InstructorID, from, to)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, days, s.cfg.AvailabilityCacheTTL); err != nil {
			s.logger.Warn("failed to cache availability", zap.Error(err))
		}
	}
	return days, nil
}

func (s *AvailabilityService) resolveRange(ctx context.Context, instructorID string, from, to time.Time) ([]models.DayAvailability, error) {
	weekdays, err := s.loadWeekdays(ctx, instructorID)
	if err != nil {
		return nil, err
	}

	entries, err := s.capacities.ListRange(ctx, instructorID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slot capacities")
	}
	capacityByKey := make(map[string]models.SlotCapacity, len(entries))
	for _, entry := range entries {
		capacityByKey[slotKey(entry.Date, entry.Period)] = entry
	}

	bookings, err := s.bookings.ListForRange(ctx, instructorID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bookings")
	}
	bookingsByKey := make(map[string][]models.Booking, len(bookings))
	for _, b := range bookings {
		k := slotKey(b.Date, b.Period)
		bookingsByKey[k] = append(bookingsByKey[k], b)
	}

	days := make([]models.DayAvailability, 0, int(to.Sub(from).Hours()/24)+1)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		day := models.DayAvailability{
			Date:    d.Format(time.DateOnly),
			Periods: make(map[models.Period]models.SlotStatus, len(models.Periods)),
		}

		if !weekdays.Contains(d.Weekday()) {
			// Holiday short-circuits every period, regardless of capacity.
			day.IsHoliday = true
			for _, period := range models.Periods {
				day.Periods[period] = models.SlotStatusBooked
			}
			days = append(days, day)
			continue
		}

		for _, period := range models.Periods {
			entry := s.effectiveCapacity(capacityByKey, d, period)
			day.Periods[period] = ResolveSlotStatus(entry, bookingsByKey[slotKey(d, period)])
		}
		days = append(days, day)
	}
	return days, nil
}

// CalendarRequest describes one calendar page lookup. Shift moves the anchor
// by whole window steps before resolving; an out-of-horizon shift leaves the
// anchor where it was.
type CalendarRequest struct {
	InstructorID string          `validate:"required"`
	Mode         CalendarMode    `validate:"required"`
	Anchor       time.Time       `validate:"required"`
	Shift        int
	Role         models.UserRole `validate:"required"`
}

// CalendarView is one rendered calendar page. Days covers only the actionable
// portion of the window; dates before today or past the horizon are left to
// the client to render as inert cells.
type CalendarView struct {
	Mode          CalendarMode             `json:"mode"`
	Anchor        string                   `json:"anchor"`
	WindowStart   string                   `json:"window_start"`
	WindowEnd     string                   `json:"window_end"`
	LeadingBlanks int                      `json:"leading_blanks"`
	Days          []models.DayAvailability `json:"days"`
}

// GetCalendar resolves availability for one navigable window. The window is
// clamped to the caller's horizon; navigation that would leave it entirely is
// answered with the unshifted page instead of an error.
func (s *AvailabilityService) GetCalendar(ctx context.Context, req CalendarRequest) (*CalendarView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid calendar query")
	}
	if !req.Mode.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown calendar mode")
	}

	today := s.now()
	months := HorizonMonthsForRole(req.Role, s.cfg.InstructorHorizonMonths, s.cfg.StudentHorizonMonths)

	anchor := Midnight(req.Anchor)
	if req.Shift != 0 {
		anchor = ShiftAnchor(req.Mode, anchor, today, req.Shift, months)
	}

	window, err := Window(req.Mode, anchor, today, months)
	if err != nil {
		return nil, err
	}

	start := window.Dates[0]
	end := window.Dates[len(window.Dates)-1]

	// Clamp the resolvable span to [today, horizon]; the window may well
	// reach past both edges (e.g. the month grid of the current month).
	from := start
	if todayStart := Midnight(today); from.Before(todayStart) {
		from = todayStart
	}
	to := end
	if horizon := HorizonEnd(today, months); to.After(horizon) {
		to = horizon
	}

	days, err := s.GetRange(ctx, AvailabilityRangeRequest{
		InstructorID: req.InstructorID,
		StartDate:    from,
		EndDate:      to,
		Role:         req.Role,
	})
	if err != nil {
		return nil, err
	}

	return &CalendarView{
		Mode:          req.Mode,
		Anchor:        anchor.Format(time.DateOnly),
		WindowStart:   start.Format(time.DateOnly),
		WindowEnd:     end.Format(time.DateOnly),
		LeadingBlanks: window.LeadingBlanks,
		Days:          days,
	}, nil
}

// SetSlotRequest describes an instructor capacity-store mutation.
type SetSlotRequest struct {
	InstructorID string        `validate:"required"`
	Date         time.Time     `validate:"required"`
	Period       models.Period `validate:"required"`
	Enabled      bool
	Capacity     *int
}

// SetSlot upserts the capacity entry for one slot. Disabling a period with
// confirmed bookings does not cancel them; it only closes the period to new
// demand.
func (s *AvailabilityService) SetSlot(ctx context.Context, req SetSlotRequest) (*models.SlotCapacity, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot payload")
	}
	if !req.Period.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown period")
	}
	if req.Capacity != nil && *req.Capacity < 1 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "capacity must be at least 1")
	}

	date := Midnight(req.Date)
	if !WithinHorizon(date, s.now(), s.cfg.InstructorHorizonMonths) {
		return nil, appErrors.ErrOutOfHorizon
	}

	capacity := s.cfg.DefaultCapacity
	existing, err := s.capacities.Get(ctx, req.InstructorID, date, req.Period)
	switch {
	case err == nil:
		capacity = existing.Capacity
	case errors.Is(err, sql.ErrNoRows):
		// no override yet, defaults apply
	default:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slot capacity")
	}
	if req.Capacity != nil {
		capacity = *req.Capacity
	}

	entry := &models.SlotCapacity{
		InstructorID: req.InstructorID,
		Date:         date,
		Period:       req.Period,
		Capacity:     capacity,
		Enabled:      req.Enabled,
		Holiday:      false,
	}
	if existing != nil {
		entry.ID = existing.ID
		entry.CreatedAt = existing.CreatedAt
	}
	if err := s.capacities.Upsert(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store slot capacity")
	}

	s.invalidate(ctx, req.InstructorID)
	return entry, nil
}

// effectiveCapacity applies defaulting for slots with no stored override.
// Defaults live here and nowhere else.
func (s *AvailabilityService) effectiveCapacity(entries map[string]models.SlotCapacity, date time.Time, period models.Period) models.PeriodCapacity {
	if entry, ok := entries[slotKey(date, period)]; ok {
		return models.PeriodCapacity{Capacity: entry.Capacity, Enabled: entry.Enabled}
	}
	return models.PeriodCapacity{Capacity: s.cfg.DefaultCapacity, Enabled: true}
}

func (s *AvailabilityService) loadWeekdays(ctx context.Context, instructorID string) (models.WeekdaySet, error) {
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

func (s *AvailabilityService) invalidate(ctx context.Context, instructorID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidatePattern(ctx, repository.AvailabilityPattern(instructorID)); err != nil {
		s.logger.Warn("failed to invalidate availability cache", zap.String("instructor_id", instructorID), zap.Error(err))
	}
}

func slotKey(date time.Time, period models.Period) string {
	return date.Format(time.DateOnly) + "|" + string(period)
}
