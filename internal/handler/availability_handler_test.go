package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kokitones-gif/redrive-backend-sub000/internal/models"
	"github.com/kokitones-gif/redrive-backend-sub000/internal/service"
)

type capacityStoreMock struct {
	upserts []*models.SlotCapacity
}

func (m *capacityStoreMock) Get(ctx context.Context, instructorID string, date time.Time, period models.Period) (*models.SlotCapacity, error) {
	return nil, sql.ErrNoRows
}

func (m *capacityStoreMock) ListRange(ctx context.Context, instructorID string, from, to time.Time) ([]models.SlotCapacity, error) {
	return nil, nil
}

func (m *capacityStoreMock) Upsert(ctx context.Context, entry *models.SlotCapacity) error {
	m.upserts = append(m.upserts, entry)
	return nil
}

type rangeLedgerMock struct{}

func (rangeLedgerMock) ListForRange(ctx context.Context, instructorID string, from, to time.Time) ([]models.Booking, error) {
	return nil, nil
}

func newAvailabilityHandlerForTest(caps *capacityStoreMock) *AvailabilityHandler {
	svc := service.NewAvailabilityService(caps, rangeLedgerMock{}, policyMock{}, nil, nil, nil, zap.NewNop(), testCfg)
	return NewAvailabilityHandler(svc)
}

func TestAvailabilityHandlerGetRange(t *testing.T) {
	h := newAvailabilityHandlerForTest(&capacityStoreMock{})

	start := time.Now()
	end := start.AddDate(0, 0, 2)
	target := fmt.Sprintf("/instructors/inst-1/availability?startDate=%s&endDate=%s",
		start.Format(time.DateOnly), end.Format(time.DateOnly))
	c, w := testContext(t, http.MethodGet, target, nil, &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})
	c.Params = gin.Params{{Key: "instructorId", Value: "inst-1"}}
	h.GetRange(c)

	require.Equal(t, http.StatusOK, w.Code)
	var envelope struct {
		Data []models.DayAvailability `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Len(t, envelope.Data, 3)
}

func TestAvailabilityHandlerGetRangeBadDate(t *testing.T) {
	h := newAvailabilityHandlerForTest(&capacityStoreMock{})

	c, w := testContext(t, http.MethodGet, "/instructors/inst-1/availability?startDate=June-1&endDate=2026-06-05", nil,
		&models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})
	c.Params = gin.Params{{Key: "instructorId", Value: "inst-1"}}
	h.GetRange(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAvailabilityHandlerGetRangeUnauthenticated(t *testing.T) {
	h := newAvailabilityHandlerForTest(&capacityStoreMock{})

	c, w := testContext(t, http.MethodGet, "/instructors/inst-1/availability", nil, nil)
	c.Params = gin.Params{{Key: "instructorId", Value: "inst-1"}}
	h.GetRange(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAvailabilityHandlerCalendarDefaults(t *testing.T) {
	h := newAvailabilityHandlerForTest(&capacityStoreMock{})

	c, w := testContext(t, http.MethodGet, "/instructors/inst-1/calendar", nil,
		&models.JWTClaims{UserID: "inst-1", Role: models.RoleInstructor})
	c.Params = gin.Params{{Key: "instructorId", Value: "inst-1"}}
	h.Calendar(c)

	require.Equal(t, http.StatusOK, w.Code)
	var envelope struct {
		Data service.CalendarView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, service.CalendarModeMonth, envelope.Data.Mode)
	assert.Equal(t, time.Now().Format(time.DateOnly), envelope.Data.Anchor)
}

func TestAvailabilityHandlerCalendarRejectsBadShift(t *testing.T) {
	h := newAvailabilityHandlerForTest(&capacityStoreMock{})

	c, w := testContext(t, http.MethodGet, "/instructors/inst-1/calendar?shift=next", nil,
		&models.JWTClaims{UserID: "inst-1", Role: models.RoleInstructor})
	c.Params = gin.Params{{Key: "instructorId", Value: "inst-1"}}
	h.Calendar(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAvailabilityHandlerSetSlot(t *testing.T) {
	caps := &capacityStoreMock{}
	h := newAvailabilityHandlerForTest(caps)

	payload, _ := json.Marshal(map[string]interface{}{
		"date":    time.Now().AddDate(0, 0, 3).Format(time.DateOnly),
		"period":  "afternoon",
		"enabled": false,
	})
	c, w := testContext(t, http.MethodPut, "/instructors/inst-1/availability", payload,
		&models.JWTClaims{UserID: "inst-1", Role: models.RoleInstructor})
	c.Params = gin.Params{{Key: "instructorId", Value: "inst-1"}}
	h.SetSlot(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, caps.upserts, 1)
	assert.Equal(t, models.PeriodAfternoon, caps.upserts[0].Period)
	assert.False(t, caps.upserts[0].Enabled)
	assert.Equal(t, testCfg.DefaultCapacity, caps.upserts[0].Capacity)
}

func TestAvailabilityHandlerSetSlotUnknownPeriod(t *testing.T) {
	h := newAvailabilityHandlerForTest(&capacityStoreMock{})

	payload, _ := json.Marshal(map[string]interface{}{
		"date":   time.Now().AddDate(0, 0, 3).Format(time.DateOnly),
		"period": "dawn",
	})
	c, w := testContext(t, http.MethodPut, "/instructors/inst-1/availability", payload,
		&models.JWTClaims{UserID: "inst-1", Role: models.RoleInstructor})
	c.Params = gin.Params{{Key: "instructorId", Value: "inst-1"}}
	h.SetSlot(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
