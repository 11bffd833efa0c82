package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kokitones-gif/redrive-backend-sub000/internal/middleware"
	"github.com/kokitones-gif/redrive-backend-sub000/internal/models"
	"github.com/kokitones-gif/redrive-backend-sub000/internal/service"
	"github.com/kokitones-gif/redrive-backend-sub000/pkg/config"
	"github.com/kokitones-gif/redrive-backend-sub000/pkg/storage"
)

var testCfg = config.SchedulingConfig{
	DefaultCapacity:         2,
	InstructorHorizonMonths: 4,
	StudentHorizonMonths:    2,
}

type ledgerMock struct {
	bookings map[string]*models.Booking
	slot     []models.Booking
	created  []*models.Booking
	list     []models.Booking
}

func (m *ledgerMock) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	if b, ok := m.bookings[id]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *ledgerMock) ListForSlot(ctx context.Context, instructorID string, date time.Time, period models.Period) ([]models.Booking, error) {
	return m.slot, nil
}

func (m *ledgerMock) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error) {
	return m.list, len(m.list), nil
}

func (m *ledgerMock) Create(ctx context.Context, booking *models.Booking) error {
	booking.ID = "b-new"
	m.created = append(m.created, booking)
	return nil
}

func (m *ledgerMock) UpdateStatus(ctx context.Context, id string, status models.BookingStatus, confirmedTime *time.Time) error {
	if b, ok := m.bookings[id]; ok {
		b.Status = status
		b.ConfirmedTime = confirmedTime
	}
	return nil
}

func (m *ledgerMock) CompleteElapsed(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

type capsMock struct{}

func (capsMock) Get(ctx context.Context, instructorID string, date time.Time, period models.Period) (*models.SlotCapacity, error) {
	return nil, sql.ErrNoRows
}

type policyMock struct{}

func (policyMock) GetByInstructor(ctx context.Context, instructorID string) (*models.WeekdayPolicy, error) {
	return nil, sql.ErrNoRows
}

func newBookingHandlerForTest(ledger *ledgerMock) *BookingHandler {
	return newBookingHandlerWithArchive(ledger, nil)
}

func newBookingHandlerWithArchive(ledger *ledgerMock, archive *service.ExportArchive) *BookingHandler {
	svc := service.NewBookingService(ledger, capsMock{}, policyMock{}, nil, nil, nil, zap.NewNop(), testCfg)
	exports := service.NewExportService(ledger, archive, zap.NewNop())
	return NewBookingHandler(svc, exports)
}

func testContext(t *testing.T, method, target string, body []byte, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	c.Request = req
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func TestBookingHandlerCreate(t *testing.T) {
	ledger := &ledgerMock{}
	h := newBookingHandlerForTest(ledger)

	lessonDate := time.Now().AddDate(0, 0, 7).Format(time.DateOnly)
	payload, _ := json.Marshal(map[string]interface{}{
		"instructor_id": "inst-1",
		"date":          lessonDate,
		"period":        "morning",
		"course_id":     "course-1",
		"price":         45000,
		"transmission":  "manual",
	})

	c, w := testContext(t, http.MethodPost, "/bookings", payload, &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})
	h.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, ledger.created, 1)
	assert.Equal(t, "stu-1", ledger.created[0].StudentID)
	assert.Equal(t, models.PeriodMorning, ledger.created[0].Period)
}

func TestBookingHandlerCreateInvalidBody(t *testing.T) {
	h := newBookingHandlerForTest(&ledgerMock{})

	c, w := testContext(t, http.MethodPost, "/bookings", []byte(`{"instructor_id":`), &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})
	h.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBookingHandlerCreateFullSlot(t *testing.T) {
	ledger := &ledgerMock{slot: []models.Booking{
		{ID: "x1", Status: models.BookingStatusConfirmed},
		{ID: "x2", Status: models.BookingStatusConfirmed},
	}}
	h := newBookingHandlerForTest(ledger)

	lessonDate := time.Now().AddDate(0, 0, 7).Format(time.DateOnly)
	payload, _ := json.Marshal(map[string]interface{}{
		"instructor_id": "inst-1",
		"date":          lessonDate,
		"period":        "MORNING",
		"course_id":     "course-1",
		"transmission":  "MANUAL",
	})

	c, w := testContext(t, http.MethodPost, "/bookings", payload, &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})
	h.Create(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Empty(t, ledger.created)
}

func TestBookingHandlerPatchCancel(t *testing.T) {
	ledger := &ledgerMock{bookings: map[string]*models.Booking{
		"b1": {ID: "b1", InstructorID: "inst-1", StudentID: "stu-1", Status: models.BookingStatusPending},
	}}
	h := newBookingHandlerForTest(ledger)

	payload, _ := json.Marshal(map[string]string{"action": "cancel"})
	c, w := testContext(t, http.MethodPatch, "/bookings/b1", payload, &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})
	c.Params = gin.Params{{Key: "id", Value: "b1"}}
	h.Patch(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.BookingStatusCancelled, ledger.bookings["b1"].Status)
}

func TestBookingHandlerPatchConfirmRequiresTime(t *testing.T) {
	ledger := &ledgerMock{bookings: map[string]*models.Booking{
		"b1": {ID: "b1", InstructorID: "inst-1", StudentID: "stu-1", Status: models.BookingStatusPending},
	}}
	h := newBookingHandlerForTest(ledger)

	payload, _ := json.Marshal(map[string]string{"action": "confirm"})
	c, w := testContext(t, http.MethodPatch, "/bookings/b1", payload, &models.JWTClaims{UserID: "inst-1", Role: models.RoleInstructor})
	c.Params = gin.Params{{Key: "id", Value: "b1"}}
	h.Patch(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBookingHandlerPatchConfirm(t *testing.T) {
	ledger := &ledgerMock{bookings: map[string]*models.Booking{
		"b1": {ID: "b1", InstructorID: "inst-1", StudentID: "stu-1", Status: models.BookingStatusPending},
	}}
	h := newBookingHandlerForTest(ledger)

	payload, _ := json.Marshal(map[string]string{
		"action":         "confirm",
		"confirmed_time": time.Now().AddDate(0, 0, 7).UTC().Format(time.RFC3339),
	})
	c, w := testContext(t, http.MethodPatch, "/bookings/b1", payload, &models.JWTClaims{UserID: "inst-1", Role: models.RoleInstructor})
	c.Params = gin.Params{{Key: "id", Value: "b1"}}
	h.Patch(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.BookingStatusConfirmed, ledger.bookings["b1"].Status)
	assert.NotNil(t, ledger.bookings["b1"].ConfirmedTime)
}

func TestBookingHandlerPatchUnknownAction(t *testing.T) {
	h := newBookingHandlerForTest(&ledgerMock{})

	payload, _ := json.Marshal(map[string]string{"action": "postpone"})
	c, w := testContext(t, http.MethodPatch, "/bookings/b1", payload, &models.JWTClaims{UserID: "inst-1", Role: models.RoleInstructor})
	c.Params = gin.Params{{Key: "id", Value: "b1"}}
	h.Patch(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBookingHandlerList(t *testing.T) {
	ledger := &ledgerMock{list: []models.Booking{{ID: "b1"}, {ID: "b2"}}}
	h := newBookingHandlerForTest(ledger)

	c, w := testContext(t, http.MethodGet, "/bookings?page=1&limit=10", nil, &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})
	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	var envelope struct {
		Data       []models.Booking   `json:"data"`
		Pagination *models.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Len(t, envelope.Data, 2)
	require.NotNil(t, envelope.Pagination)
	assert.Equal(t, 2, envelope.Pagination.TotalCount)
}

func TestBookingHandlerExportCSV(t *testing.T) {
	lessonDate := time.Now().AddDate(0, 0, 3)
	ledger := &ledgerMock{list: []models.Booking{{
		ID: "b1", InstructorID: "inst-1", StudentID: "stu-1",
		Date: lessonDate, Period: models.PeriodMorning,
		Status: models.BookingStatusConfirmed, CourseID: "course-1", Price: 45000,
	}}}
	h := newBookingHandlerForTest(ledger)

	target := fmt.Sprintf("/bookings/export?format=csv&startDate=%s&endDate=%s",
		time.Now().Format(time.DateOnly), time.Now().AddDate(0, 0, 7).Format(time.DateOnly))
	c, w := testContext(t, http.MethodGet, target, nil, &models.JWTClaims{UserID: "inst-1", Role: models.RoleInstructor})
	h.Export(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "course-1")
}

func TestBookingHandlerExportLinkAndDownload(t *testing.T) {
	lessonDate := time.Now().AddDate(0, 0, 3)
	ledger := &ledgerMock{list: []models.Booking{{
		ID: "b1", InstructorID: "inst-1", StudentID: "stu-1",
		Date: lessonDate, Period: models.PeriodMorning,
		Status: models.BookingStatusConfirmed, CourseID: "course-1", Price: 45000,
	}}}

	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	archive := &service.ExportArchive{
		Store:  store,
		Signer: storage.NewSigner("test-secret", time.Hour),
		TTL:    time.Hour,
	}
	h := newBookingHandlerWithArchive(ledger, archive)

	target := fmt.Sprintf("/bookings/export?format=csv&delivery=link&startDate=%s&endDate=%s",
		time.Now().Format(time.DateOnly), time.Now().AddDate(0, 0, 7).Format(time.DateOnly))
	c, w := testContext(t, http.MethodGet, target, nil, &models.JWTClaims{UserID: "inst-1", Role: models.RoleInstructor})
	h.Export(c)

	require.Equal(t, http.StatusOK, w.Code)
	var envelope struct {
		Data struct {
			DownloadURL string `json:"download_url"`
			Filename    string `json:"filename"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Contains(t, envelope.Data.DownloadURL, "token=")
	require.Contains(t, envelope.Data.Filename, ".csv")

	token := envelope.Data.DownloadURL[strings.Index(envelope.Data.DownloadURL, "token=")+len("token="):]
	c, w = testContext(t, http.MethodGet, "/bookings/export/download?token="+token, nil, nil)
	h.Download(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "course-1")
}

func TestBookingHandlerDownloadRejectsBadToken(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	archive := &service.ExportArchive{
		Store:  store,
		Signer: storage.NewSigner("test-secret", time.Hour),
		TTL:    time.Hour,
	}
	h := newBookingHandlerWithArchive(&ledgerMock{}, archive)

	c, w := testContext(t, http.MethodGet, "/bookings/export/download?token=forged.token.value", nil, nil)
	h.Download(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	c, w = testContext(t, http.MethodGet, "/bookings/export/download", nil, nil)
	h.Download(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
