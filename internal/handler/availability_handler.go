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

// AvailabilityHandler manages availability and calendar endpoints.
type AvailabilityHandler struct {
	service *service.AvailabilityService
}

// NewAvailabilityHandler constructs handler.
func NewAvailabilityHandler(svc *service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{service: svc}
}

// GetRange godoc
// @Summary Get slot availability for a date range
// @Tags Availability
// @Produce json
// @Param instructorId path string true "Instructor ID"
// @Param startDate query string true "Range start (YYYY-MM-DD)"
// @Param endDate query string true "Range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /instructors/{instructorId}/availability [get]
func (h *AvailabilityHandler) GetRange(c *gin.Context) {
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

	days, err := h.service.GetRange(c.Request.Context(), service.AvailabilityRangeRequest{
		InstructorID: c.Param("instructorId"),
		StartDate:    start,
		EndDate:      end,
		Role:         claims.Role,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, days, nil)
}

// Calendar godoc
// @Summary Get a navigable calendar page
// @Tags Availability
// @Produce json
// @Param instructorId path string true "Instructor ID"
// @Param mode query string false "Window mode: month, week or twoWeek"
// @Param anchor query string false "Anchor date (YYYY-MM-DD), defaults to today"
// @Param shift query int false "Whole-window steps to move the anchor"
// @Success 200 {object} response.Envelope
// @Router /instructors/{instructorId}/calendar [get]
func (h *AvailabilityHandler) Calendar(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	anchor := time.Now()
	if raw := c.Query("anchor"); raw != "" {
		parsed, err := parseDate(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "anchor must be YYYY-MM-DD"))
			return
		}
		anchor = parsed
	}

	shift := 0
	if raw := c.Query("shift"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "shift must be an integer"))
			return
		}
		shift = parsed
	}

	view, err := h.service.GetCalendar(c.Request.Context(), service.CalendarRequest{
		InstructorID: c.Param("instructorId"),
		Mode:         service.CalendarMode(c.DefaultQuery("mode", string(service.CalendarModeMonth))),
		Anchor:       anchor,
		Shift:        shift,
		Role:         claims.Role,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

type setSlotPayload struct {
	Date     string `json:"date" binding:"required"`
	Period   string `json:"period" binding:"required"`
	Enabled  bool   `json:"enabled"`
	Capacity *int   `json:"capacity"`
}

// SetSlot godoc
// @Summary Set capacity and enablement for one slot
// @Tags Availability
// @Accept json
// @Produce json
// @Param instructorId path string true "Instructor ID"
// @Param payload body setSlotPayload true "Slot payload"
// @Success 200 {object} response.Envelope
// @Router /instructors/{instructorId}/availability [put]
func (h *AvailabilityHandler) SetSlot(c *gin.Context) {
	var payload setSlotPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	date, err := parseDate(payload.Date)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD"))
		return
	}

	entry, err := h.service.SetSlot(c.Request.Context(), service.SetSlotRequest{
		InstructorID: c.Param("instructorId"),
		Date:         date,
		Period:       periodFromString(payload.Period),
		Enabled:      payload.Enabled,
		Capacity:     payload.Capacity,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

func parseDate(raw string) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, raw, time.Local)
}

func periodFromString(raw string) models.Period {
	return models.Period(strings.ToUpper(raw))
}
