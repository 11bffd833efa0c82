package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kokitones-gif/redrive-backend-sub000/internal/models"
	"github.com/kokitones-gif/redrive-backend-sub000/internal/service"
	appErrors "github.com/kokitones-gif/redrive-backend-sub000/pkg/errors"
	"github.com/kokitones-gif/redrive-backend-sub000/pkg/response"
)

// BookingHandler manages booking lifecycle endpoints.
type BookingHandler struct {
	service *service.BookingService
	exports *service.ExportService
}

// NewBookingHandler constructs handler.
func NewBookingHandler(svc *service.BookingService, exports *service.ExportService) *BookingHandler {
	return &BookingHandler{service: svc, exports: exports}
}

type createBookingPayload struct {
	InstructorID      string  `json:"instructor_id" binding:"required"`
	Date              string  `json:"date" binding:"required"`
	Period            string  `json:"period" binding:"required"`
	CourseID          string  `json:"course_id" binding:"required"`
	Price             int64   `json:"price"`
	MeetingPoint      *string `json:"meeting_point"`
	Notes             *string `json:"notes"`
	Transmission      string  `json:"transmission" binding:"required"`
	InstructorVehicle bool    `json:"instructor_vehicle"`
	Pickup            bool    `json:"pickup"`
}

// Create godoc
// @Summary Request a lesson booking
// @Tags Bookings
// @Accept json
// @Produce json
// @Param payload body createBookingPayload true "Booking payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /bookings [post]
func (h *BookingHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload createBookingPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	date, err := parseDate(payload.Date)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD"))
		return
	}

	booking, err := h.service.Request(c.Request.Context(), service.RequestBookingInput{
		StudentID:         claims.UserID,
		InstructorID:      payload.InstructorID,
		Date:              date,
		Period:            periodFromString(payload.Period),
		CourseID:          payload.CourseID,
		Price:             payload.Price,
		MeetingPoint:      payload.MeetingPoint,
		Notes:             payload.Notes,
		Transmission:      models.Transmission(strings.ToUpper(payload.Transmission)),
		InstructorVehicle: payload.InstructorVehicle,
		Pickup:            payload.Pickup,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, booking)
}

// List godoc
// @Summary List bookings visible to the caller
// @Tags Bookings
// @Produce json
// @Param status query string false "Comma-separated status filter"
// @Param startDate query string false "Range start (YYYY-MM-DD)"
// @Param endDate query string false "Range end (YYYY-MM-DD)"
// @Param instructorId query string false "Instructor filter (admin only)"
// @Param studentId query string false "Student filter (admin only)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /bookings [get]
func (h *BookingHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var filter models.BookingFilter
	filter.InstructorID = c.Query("instructorId")
	filter.StudentID = c.Query("studentId")
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			filter.Statuses = append(filter.Statuses, models.BookingStatus(strings.ToUpper(strings.TrimSpace(s))))
		}
	}
	if raw := c.Query("startDate"); raw != "" {
		start, err := parseDate(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "startDate must be YYYY-MM-DD"))
			return
		}
		filter.StartDate = &start
	}
	if raw := c.Query("endDate"); raw != "" {
		end, err := parseDate(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "endDate must be YYYY-MM-DD"))
			return
		}
		filter.EndDate = &end
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		filter.PageSize = limit
	}

	bookings, pagination, err := h.service.List(c.Request.Context(), filter, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bookings, pagination)
}

type patchBookingPayload struct {
	Action        string `json:"action" binding:"required"`
	ConfirmedTime string `json:"confirmed_time"`
}

// Patch godoc
// @Summary Transition a booking's lifecycle state
// @Description Actions: confirm (requires confirmed_time), reject, cancel
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param payload body patchBookingPayload true "Transition payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings/{id} [patch]
func (h *BookingHandler) Patch(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload patchBookingPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	id := c.Param("id")
	var (
		booking *models.Booking
		err     error
	)
	switch strings.ToLower(payload.Action) {
	case "confirm":
		var confirmedTime time.Time
		confirmedTime, err = time.Parse(time.RFC3339, payload.ConfirmedTime)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "confirmed_time must be RFC3339"))
			return
		}
		booking, err = h.service.ConfirmWithTime(c.Request.Context(), id, confirmedTime, claims)
	case "reject":
		booking, err = h.service.Reject(c.Request.Context(), id, claims)
	case "cancel":
		booking, err = h.service.Cancel(c.Request.Context(), id, claims)
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "action must be confirm, reject or cancel"))
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}

// Export godoc
// @Summary Export the caller's booking ledger
// @Tags Bookings
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf"
// @Param delivery query string false "inline (default) or link"
// @Param startDate query string true "Range start (YYYY-MM-DD)"
// @Param endDate query string true "Range end (YYYY-MM-DD)"
// @Success 200 {file} file
// @Router /bookings/export [get]
func (h *BookingHandler) Export(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	start, err := parseDate(c.Query("startDate"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "startDate must be YYYY-MM-DD"))
		return
	}
	end, err := parseDate(c.Query("endDate"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "endDate must be YYYY-MM-DD"))
		return
	}

	instructorID := claims.UserID
	if claims.Role == models.RoleAdmin {
		if override := c.Query("instructorId"); override != "" {
			instructorID = override
		}
	}

	format := service.ExportFormat(strings.ToLower(c.DefaultQuery("format", "csv")))

	// delivery=link archives the file and returns a signed URL instead of
	// streaming the bytes in-band.
	if strings.EqualFold(c.Query("delivery"), "link") {
		link, err := h.exports.ArchiveLedger(c.Request.Context(), instructorID, start, end, format)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, gin.H{
			"download_url": c.Request.URL.Path + "/download?token=" + link.Token,
			"filename":     link.Filename,
			"expires_at":   link.ExpiresAt,
		}, nil)
		return
	}

	result, err := h.exports.RenderLedger(c.Request.Context(), instructorID, start, end, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+result.Filename)
	c.Data(http.StatusOK, result.ContentType, result.Payload)
}

// Download godoc
// @Summary Download a previously archived export
// @Description The token authenticates the request; no session is required.
// @Tags Bookings
// @Produce text/csv
// @Produce application/pdf
// @Param token query string true "Signed download token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /bookings/export/download [get]
func (h *BookingHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	result, err := h.exports.OpenArchived(token)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+result.Filename)
	c.Data(http.StatusOK, result.ContentType, result.Payload)
}
