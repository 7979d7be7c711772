package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) startTracking(c *gin.Context) {
	snap, err := h.TrackingService.Start(c.Request.Context(), user(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) stopTracking(c *gin.Context) {
	u := user(c)
	h.TrackingService.Stop(u)
	c.JSON(http.StatusOK, h.TrackingService.Status(u))
}

func (h *Handler) trackingStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.TrackingService.Status(user(c)))
}
