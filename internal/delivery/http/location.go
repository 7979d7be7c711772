package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/paincake00/geoclock/internal/entity"
	"github.com/paincake00/geoclock/internal/geo"
)

// SampleInput показание датчика. Указатели отличают ноль от пропущенного поля.
type SampleInput struct {
	Lat       *float64   `json:"lat" binding:"required,min=-90,max=90"`
	Lng       *float64   `json:"lng" binding:"required,min=-180,max=180"`
	Accuracy  float64    `json:"accuracy" binding:"gte=0"`
	Timestamp *time.Time `json:"timestamp"`
}

func (in SampleInput) sample() entity.LocationSample {
	s := entity.LocationSample{Lat: *in.Lat, Lng: *in.Lng, Accuracy: in.Accuracy}
	if in.Timestamp != nil {
		s.Timestamp = *in.Timestamp
	}
	return s
}

// IngestInput образец от шлюза устройств.
type IngestInput struct {
	UserID string `json:"user_id" binding:"required"`
	SampleInput
}

type CheckLocationInput struct {
	Lat *float64 `json:"lat" binding:"required,min=-90,max=90"`
	Lng *float64 `json:"lng" binding:"required,min=-180,max=180"`
}

func (h *Handler) ingestSample(c *gin.Context) {
	var input IngestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.TrackingService.Ingest(c.Request.Context(), input.UserID, input.sample()); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func (h *Handler) checkLocation(c *gin.Context) {
	var input CheckLocationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	check, err := h.GeoService.CheckLocation(c.Request.Context(), geo.Coordinate{Lat: *input.Lat, Lng: *input.Lng})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, check)
}
