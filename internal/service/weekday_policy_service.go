package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kokitones-gif/redrive-backend-sub000/internal/models"
	"github.com/kokitones-gif/redrive-backend-sub000/internal/repository"
	"github.com/kokitones-gif/redrive-backend-sub000/pkg/config"
	appErrors "github.com/kokitones-gif/redrive-backend-sub000/pkg/errors"
)

type weekdayPolicyStore interface {
	GetByInstructor(ctx context.Context, instructorID string) (*models.WeekdayPolicy, error)
	Upsert(ctx context.Context, policy *models.WeekdayPolicy) error
}

type holidayCascadeStore interface {
	MarkHoliday(ctx context.Context, instructorID string, dates []time.Time, defaultCapacity int) error
	ClearHoliday(ctx context.Context, instructorID string, dates []time.Time) error
}

// WeekdayPolicyService manages per-instructor operating weekdays and the
// cascade that keeps the capacity store consistent with them.
type WeekdayPolicyService struct {
	policies   weekdayPolicyStore
	capacities holidayCascadeStore
	cache      availabilityCache
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        config.SchedulingConfig
	now        func() time.Time
}

// NewWeekdayPolicyService constructs the service.
func NewWeekdayPolicyService(
	policies weekdayPolicyStore,
	capacities holidayCascadeStore,
	cache availabilityCache,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg config.SchedulingConfig,
) *WeekdayPolicyService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultCapacity < 1 {
		cfg.DefaultCapacity = models.DefaultSlotCapacity
	}
	return &WeekdayPolicyService{
		policies:   policies,
		capacities: capacities,
		cache:      cache,
		validator:  validate,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Get returns the instructor's accepted weekdays, defaulting to all seven.
func (s *WeekdayPolicyService) Get(ctx context.Context, instructorID string) ([]int, error) {
	policy, err := s.policies.GetByInstructor(ctx, instructorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []int{0, 1, 2, 3, 4, 5, 6}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load weekday policy")
	}
	set, err := policy.DecodeWeekdays()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "corrupt weekday policy")
	}
	days := make([]int, 0, len(set))
	for d := range set {
		days = append(days, int(d))
	}
	sort.Ints(days)
	return days, nil
}

// Set replaces the weekday-acceptance set and re-derives holiday state for
// every date through the instructor horizon. The cascade is a bulk,
// idempotent re-derivation: re-applying the same set is a no-op in effect.
// Re-enabled dates are not blindly reset to available; status resolution
// still counts whatever bookings exist on them.
func (s *WeekdayPolicyService) Set(ctx context.Context, instructorID string, weekdays []int) ([]int, error) {
	if instructorID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "instructor id is required")
	}

	seen := make(map[int]struct{}, len(weekdays))
	for _, d := range weekdays {
		if d < 0 || d > 6 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "weekdays must be between 0 (Sunday) and 6 (Saturday)")
		}
		seen[d] = struct{}{}
	}
	normalized := make([]int, 0, len(seen))
	for d := range seen {
		normalized = append(normalized, d)
	}
	sort.Ints(normalized)

	encoded, err := models.EncodeWeekdays(normalized)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode weekdays")
	}

	policy := &models.WeekdayPolicy{InstructorID: instructorID, Weekdays: encoded}
	if existing, err := s.policies.GetByInstructor(ctx, instructorID); err == nil {
		policy.ID = existing.ID
		policy.CreatedAt = existing.CreatedAt
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load weekday policy")
	}

	if err := s.policies.Upsert(ctx, policy); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store weekday policy")
	}

	if err := s.cascade(ctx, instructorID, models.NewWeekdaySet(normalized)); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.InvalidatePattern(ctx, repository.AvailabilityPattern(instructorID)); err != nil {
			s.logger.Warn("failed to invalidate availability cache", zap.Error(err))
		}
	}
	return normalized, nil
}

// cascade walks today through the horizon end and partitions dates into
// holidays and operating days under the new set.
func (s *WeekdayPolicyService) cascade(ctx context.Context, instructorID string, set models.WeekdaySet) error {
	today := Midnight(s.now())
	end := HorizonEnd(today, s.cfg.InstructorHorizonMonths)

	var holidays, operating []time.Time
	for d := today; !d.After(end); d = d.AddDate(0, 0, 1) {
		if set.Contains(d.Weekday()) {
			operating = append(operating, d)
		} else {
			holidays = append(holidays, d)
		}
	}

	if err := s.capacities.MarkHoliday(ctx, instructorID, holidays, s.cfg.DefaultCapacity); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark holidays")
	}
	if err := s.capacities.ClearHoliday(ctx, instructorID, operating); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear holidays")
	}
	return nil
}
