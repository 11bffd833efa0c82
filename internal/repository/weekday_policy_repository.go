package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kokitones-gif/redrive-backend-sub000/internal/models"
)

// WeekdayPolicyRepository persists per-instructor weekday-acceptance sets.
type WeekdayPolicyRepository struct {
	db *sqlx.DB
}

// NewWeekdayPolicyRepository constructs the repository.
func NewWeekdayPolicyRepository(db *sqlx.DB) *WeekdayPolicyRepository {
	return &WeekdayPolicyRepository{db: db}
}

// GetByInstructor returns the stored policy for an instructor.
func (r *WeekdayPolicyRepository) GetByInstructor(ctx context.Context, instructorID string) (*models.WeekdayPolicy, error) {
	const query = `SELECT id, instructor_id, weekdays, created_at, updated_at FROM weekday_policies WHERE instructor_id = $1`
	var policy models.WeekdayPolicy
	if err := r.db.GetContext(ctx, &policy, query, instructorID); err != nil {
		return nil, err
	}
	return &policy, nil
}

// Upsert creates or replaces the policy for an instructor.
func (r *WeekdayPolicyRepository) Upsert(ctx context.Context, policy *models.WeekdayPolicy) error {
	if policy.ID == "" {
		policy.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if policy.CreatedAt.IsZero() {
		policy.CreatedAt = now
	}
	policy.UpdatedAt = now

	const query = `INSERT INTO weekday_policies (id, instructor_id, weekdays, created_at, updated_at)
VALUES (:id, :instructor_id, :weekdays, :created_at, :updated_at)
ON CONFLICT (instructor_id) DO UPDATE
SET weekdays = EXCLUDED.weekdays,
    updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, policy); err != nil {
		return fmt.Errorf("upsert weekday policy: %w", err)
	}
	return nil
}
