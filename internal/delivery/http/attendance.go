package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/paincake00/geoclock/internal/entity"
	"github.com/paincake00/geoclock/internal/export"
)

// exportLimit наибольшее число записей в выгрузке.
const exportLimit = 500

// ClockInput тело time-in/time-out. Без location используется трекер пользователя.
type ClockInput struct {
	Location *SampleInput `json:"location"`
}

type RecordsResponse struct {
	Records []*entity.AttendanceRecord `json:"records"`
}

func (h *Handler) attendanceStatus(c *gin.Context) {
	st, err := h.AttendanceService.Status(c.Request.Context(), user(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// bindClock пустое тело допустимо.
func bindClock(c *gin.Context) (*entity.LocationSample, bool) {
	var input ClockInput
	if err := c.ShouldBindJSON(&input); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err)
		return nil, false
	}
	if input.Location == nil {
		return nil, true
	}
	s := input.Location.sample()
	return &s, true
}

func (h *Handler) timeIn(c *gin.Context) {
	sample, ok := bindClock(c)
	if !ok {
		return
	}

	record, err := h.AttendanceService.TimeIn(c.Request.Context(), user(c), sample)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

func (h *Handler) timeOut(c *gin.Context) {
	sample, ok := bindClock(c)
	if !ok {
		return
	}

	record, err := h.AttendanceService.TimeOut(c.Request.Context(), user(c), sample)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

func (h *Handler) attendanceRecords(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	records, err := h.AttendanceService.History(c.Request.Context(), user(c), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if records == nil {
		records = []*entity.AttendanceRecord{}
	}
	c.JSON(http.StatusOK, RecordsResponse{Records: records})
}

func (h *Handler) exportAttendance(c *gin.Context) {
	u := user(c)
	records, err := h.AttendanceService.History(c.Request.Context(), u, exportLimit)
	if err != nil {
		h.respondError(c, err)
		return
	}

	// Книга собирается целиком до отправки заголовков.
	var buf bytes.Buffer
	if err := export.WriteAttendance(&buf, records, h.AttendanceService.Location); err != nil {
		h.respondError(c, fmt.Errorf("write attendance export: %w", err))
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="attendance-%s.xlsx"`, u.ID))
	c.Data(http.StatusOK, export.ContentType, buf.Bytes())
}

func (h *Handler) currentShift(c *gin.Context) {
	sched := h.AttendanceService.Schedule
	c.JSON(http.StatusOK, gin.H{
		"shift_type": h.AttendanceService.CurrentShiftType(),
		"morning":    sched.Morning,
		"evening":    sched.Evening,
	})
}
