package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kokitones-gif/redrive-backend-sub000/internal/models"
)

const slotCapacityColumns = `id, instructor_id, lesson_date, period, capacity, enabled, holiday, created_at, updated_at`

// SlotCapacityRepository persists per-slot capacity overrides. Absent rows
// fall back to defaults inside the availability service, never here.
type SlotCapacityRepository struct {
	db *sqlx.DB
}

// NewSlotCapacityRepository constructs the repository.
func NewSlotCapacityRepository(db *sqlx.DB) *SlotCapacityRepository {
	return &SlotCapacityRepository{db: db}
}

// Get returns the override for one slot key, if any.
func (r *SlotCapacityRepository) Get(ctx context.Context, instructorID string, date time.Time, period models.Period) (*models.SlotCapacity, error) {
	query := fmt.Sprintf(`SELECT %s FROM slot_capacities WHERE instructor_id = $1 AND lesson_date = $2 AND period = $3`, slotCapacityColumns)
	var entry models.SlotCapacity
	if err := r.db.GetContext(ctx, &entry, query, instructorID, date, period); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListRange returns all overrides on an instructor calendar between two dates.
func (r *SlotCapacityRepository) ListRange(ctx context.Context, instructorID string, from, to time.Time) ([]models.SlotCapacity, error) {
	query := fmt.Sprintf(`SELECT %s FROM slot_capacities
WHERE instructor_id = $1 AND lesson_date BETWEEN $2 AND $3
ORDER BY lesson_date ASC, period ASC`, slotCapacityColumns)
	var entries []models.SlotCapacity
	if err := r.db.SelectContext(ctx, &entries, query, instructorID, from, to); err != nil {
		return nil, fmt.Errorf("list slot capacities: %w", err)
	}
	return entries, nil
}

// Upsert creates or supersedes the override for one slot key.
func (r *SlotCapacityRepository) Upsert(ctx context.Context, entry *models.SlotCapacity) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now

	const query = `INSERT INTO slot_capacities (id, instructor_id, lesson_date, period, capacity, enabled, holiday, created_at, updated_at)
VALUES (:id, :instructor_id, :lesson_date, :period, :capacity, :enabled, :holiday, :created_at, :updated_at)
ON CONFLICT (instructor_id, lesson_date, period) DO UPDATE
SET capacity = EXCLUDED.capacity,
    enabled = EXCLUDED.enabled,
    holiday = EXCLUDED.holiday,
    updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("upsert slot capacity: %w", err)
	}
	return nil
}

// MarkHoliday force-closes every period on the given dates, preserving any
// configured capacity so that re-enabling restores it. Missing rows are
// created with the default capacity.
func (r *SlotCapacityRepository) MarkHoliday(ctx context.Context, instructorID string, dates []time.Time, defaultCapacity int) error {
	if len(dates) == 0 {
		return nil
	}
	const query = `INSERT INTO slot_capacities (id, instructor_id, lesson_date, period, capacity, enabled, holiday, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, FALSE, TRUE, $6, $6)
ON CONFLICT (instructor_id, lesson_date, period) DO UPDATE
SET enabled = FALSE,
    holiday = TRUE,
    updated_at = EXCLUDED.updated_at`
	now := time.Now().UTC()
	for _, date := range dates {
		for _, period := range models.Periods {
			if _, err := r.db.ExecContext(ctx, query, uuid.NewString(), instructorID, date, period, defaultCapacity, now); err != nil {
				return fmt.Errorf("mark holiday: %w", err)
			}
		}
	}
	return nil
}

// ClearHoliday re-enables only the periods that the weekday-policy cascade
// closed. Manually disabled periods keep their enabled=false flag.
func (r *SlotCapacityRepository) ClearHoliday(ctx context.Context, instructorID string, dates []time.Time) error {
	if len(dates) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`UPDATE slot_capacities
SET enabled = TRUE, holiday = FALSE, updated_at = ?
WHERE instructor_id = ? AND holiday = TRUE AND lesson_date IN (?)`, time.Now().UTC(), instructorID, dates)
	if err != nil {
		return fmt.Errorf("clear holiday: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("clear holiday: %w", err)
	}
	return nil
}
