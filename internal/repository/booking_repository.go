package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kokitones-gif/redrive-backend-sub000/internal/models"
)

const bookingColumns = `id, instructor_id, student_id, lesson_date, period, confirmed_time, status, course_id, price, meeting_point, notes, transmission, instructor_vehicle, pickup, created_at, updated_at`

// BookingRepository persists the booking ledger.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository constructs the repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// GetByID returns a single booking.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings WHERE id = $1`, bookingColumns)
	var booking models.Booking
	if err := r.db.GetContext(ctx, &booking, query, id); err != nil {
		return nil, err
	}
	return &booking, nil
}

// ListForSlot returns every booking occupying one (instructor, date, period)
// key. Status filtering is left to the resolver so that it stays the single
// place deciding which states count against capacity.
func (r *BookingRepository) ListForSlot(ctx context.Context, instructorID string, date time.Time, period models.Period) ([]models.Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings WHERE instructor_id = $1 AND lesson_date = $2 AND period = $3`, bookingColumns)
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, instructorID, date, period); err != nil {
		return nil, fmt.Errorf("list bookings for slot: %w", err)
	}
	return bookings, nil
}

// ListForRange returns bookings on an instructor calendar between two dates
// inclusive, ordered for per-day grouping.
func (r *BookingRepository) ListForRange(ctx context.Context, instructorID string, from, to time.Time) ([]models.Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings
WHERE instructor_id = $1 AND lesson_date BETWEEN $2 AND $3
ORDER BY lesson_date ASC, period ASC, created_at ASC`, bookingColumns)
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, instructorID, from, to); err != nil {
		return nil, fmt.Errorf("list bookings for range: %w", err)
	}
	return bookings, nil
}

// List returns bookings matching the filter with a total count.
func (r *BookingRepository) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	idx := 1

	appendArg := func(cond string, value interface{}) {
		conditions = append(conditions, fmt.Sprintf(cond, idx))
		args = append(args, value)
		idx++
	}

	if filter.InstructorID != "" {
		appendArg("instructor_id = $%d", filter.InstructorID)
	}
	if filter.StudentID != "" {
		appendArg("student_id = $%d", filter.StudentID)
	}
	if filter.StartDate != nil {
		appendArg("lesson_date >= $%d", *filter.StartDate)
	}
	if filter.EndDate != nil {
		appendArg("lesson_date <= $%d", *filter.EndDate)
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			placeholders[i] = fmt.Sprintf("$%d", idx)
			args = append(args, status)
			idx++
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ", ")))
	}

	where := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM bookings WHERE %s`, where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	query := fmt.Sprintf(`SELECT %s FROM bookings WHERE %s ORDER BY lesson_date ASC, period ASC, created_at ASC LIMIT $%d OFFSET $%d`,
		bookingColumns, where, idx, idx+1)
	args = append(args, pageSize, (page-1)*pageSize)

	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, total, nil
}

// Create inserts a new booking.
func (r *BookingRepository) Create(ctx context.Context, booking *models.Booking) error {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	booking.UpdatedAt = now

	const query = `INSERT INTO bookings (id, instructor_id, student_id, lesson_date, period, confirmed_time, status, course_id, price, meeting_point, notes, transmission, instructor_vehicle, pickup, created_at, updated_at)
VALUES (:id, :instructor_id, :student_id, :lesson_date, :period, :confirmed_time, :status, :course_id, :price, :meeting_point, :notes, :transmission, :instructor_vehicle, :pickup, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, booking); err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

// UpdateStatus applies a lifecycle transition, optionally fixing the concrete
// lesson time alongside it.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id string, status models.BookingStatus, confirmedTime *time.Time) error {
	const query = `UPDATE bookings SET status = $1, confirmed_time = $2, updated_at = $3 WHERE id = $4`
	result, err := r.db.ExecContext(ctx, query, status, confirmedTime, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update booking status: no rows for %s", id)
	}
	return nil
}

// CompleteElapsed flips confirmed bookings whose lesson date has passed to
// COMPLETED and returns how many rows changed.
func (r *BookingRepository) CompleteElapsed(ctx context.Context, before time.Time) (int64, error) {
	const query = `UPDATE bookings SET status = $1, updated_at = $2 WHERE status = $3 AND lesson_date < $4`
	result, err := r.db.ExecContext(ctx, query, models.BookingStatusCompleted, time.Now().UTC(), models.BookingStatusConfirmed, before)
	if err != nil {
		return 0, fmt.Errorf("complete elapsed bookings: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("complete elapsed bookings: %w", err)
	}
	return affected, nil
}
