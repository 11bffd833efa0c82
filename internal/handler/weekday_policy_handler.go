package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kokitones-gif/redrive-backend-sub000/internal/service"
	appErrors "github.com/kokitones-gif/redrive-backend-sub000/pkg/errors"
	"github.com/kokitones-gif/redrive-backend-sub000/pkg/response"
)

// WeekdayPolicyHandler manages per-instructor operating weekday endpoints.
type WeekdayPolicyHandler struct {
	service *service.WeekdayPolicyService
}

// NewWeekdayPolicyHandler constructs handler.
func NewWeekdayPolicyHandler(svc *service.WeekdayPolicyService) *WeekdayPolicyHandler {
	return &WeekdayPolicyHandler{service: svc}
}

// Get godoc
// @Summary Get the instructor's operating weekdays
// @Tags Availability
// @Produce json
// @Param instructorId path string true "Instructor ID"
// @Success 200 {object} response.Envelope
// @Router /instructors/{instructorId}/weekday-policy [get]
func (h *WeekdayPolicyHandler) Get(c *gin.Context) {
	weekdays, err := h.service.Get(c.Request.Context(), c.Param("instructorId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"weekdays": weekdays}, nil)
}

type setWeekdayPolicyPayload struct {
	Weekdays []int `json:"weekdays"`
}

// Set godoc
// @Summary Replace the instructor's operating weekdays
// @Description Weekdays are 0 (Sunday) through 6 (Saturday). Dates on removed
// weekdays become holidays through the scheduling horizon; re-added weekdays
// are reopened without touching existing bookings.
// @Tags Availability
// @Accept json
// @Produce json
// @Param instructorId path string true "Instructor ID"
// @Param payload body setWeekdayPolicyPayload true "Weekday payload"
// @Success 200 {object} response.Envelope
// @Router /instructors/{instructorId}/weekday-policy [put]
func (h *WeekdayPolicyHandler) Set(c *gin.Context) {
	var payload setWeekdayPolicyPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	weekdays, err := h.service.Set(c.Request.Context(), c.Param("instructorId"), payload.Weekdays)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"weekdays": weekdays}, nil)
}
