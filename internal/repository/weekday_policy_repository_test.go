package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kokitones-gif/redrive-backend-sub000/internal/models"
)

func TestWeekdayPolicyRepositoryGetByInstructor(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewWeekdayPolicyRepository(db)

	rows := sqlmock.NewRows([]string{"id", "instructor_id", "weekdays", "created_at", "updated_at"}).
		AddRow("wp1", "inst-1", []byte(`[1,2,3,4,5]`), time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, instructor_id, weekdays, created_at, updated_at FROM weekday_policies WHERE instructor_id = $1")).
		WithArgs("inst-1").
		WillReturnRows(rows)

	policy, err := repo.GetByInstructor(context.Background(), "inst-1")
	require.NoError(t, err)

	set, err := policy.DecodeWeekdays()
	require.NoError(t, err)
	assert.True(t, set.Contains(time.Monday))
	assert.False(t, set.Contains(time.Sunday))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWeekdayPolicyRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewWeekdayPolicyRepository(db)

	mock.ExpectExec("INSERT INTO weekday_policies").
		WillReturnResult(sqlmock.NewResult(1, 1))

	encoded, err := models.EncodeWeekdays([]int{1, 2, 3})
	require.NoError(t, err)
	policy := &models.WeekdayPolicy{InstructorID: "inst-1", Weekdays: encoded}
	require.NoError(t, repo.Upsert(context.Background(), policy))
	assert.NotEmpty(t, policy.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
