package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/paincake00/geoclock/internal/entity"
	"github.com/paincake00/geoclock/internal/geo"
	"github.com/paincake00/geoclock/internal/usecase"
)

// GeometryInput геометрия с панели рисования.
type GeometryInput struct {
	Type        string           `json:"type" binding:"required,oneof=circle rectangle polygon"`
	Center      *geo.Coordinate  `json:"center" binding:"required_if=Type circle"`
	Radius      float64          `json:"radius" binding:"gte=0"`
	Coordinates []geo.Coordinate `json:"coordinates" binding:"required_unless=Type circle"`
}

func (in GeometryInput) shape() (geo.Shape, error) {
	return entity.ShapeFromFields(in.Type, in.Center, in.Radius, in.Coordinates)
}

type GeofenceInput struct {
	Name string `json:"name" binding:"max=100"`
	GeometryInput
}

type RenameInput struct {
	Name string `json:"name" binding:"required,max=100"`
}

// GeofenceResponse документ геозоны с именем для показа.
type GeofenceResponse struct {
	entity.GeofenceDocument
	DisplayName string `json:"display_name"`
}

func geofenceResponse(g *entity.Geofence, displayName string) GeofenceResponse {
	if displayName == "" {
		displayName = g.Name
	}
	return GeofenceResponse{GeofenceDocument: g.Document(), DisplayName: displayName}
}

func (h *Handler) listGeofences(c *gin.Context) {
	fences, err := h.GeofenceService.ListForUser(c.Request.Context(), user(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	names := usecase.DisplayNames(fences)
	res := make([]GeofenceResponse, 0, len(fences))
	for i, g := range fences {
		res = append(res, geofenceResponse(g, names[i]))
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) suggestGeofenceName(c *gin.Context) {
	name, err := h.GeofenceService.SuggestName(c.Request.Context(), user(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name})
}

func (h *Handler) createGeofence(c *gin.Context) {
	var input GeofenceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	shape, err := input.shape()
	if err != nil {
		h.respondError(c, err)
		return
	}

	g := &entity.Geofence{Name: input.Name, Shape: shape}
	if err := h.GeofenceService.Create(c.Request.Context(), user(c), g); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, geofenceResponse(g, ""))
}

func (h *Handler) getGeofence(c *gin.Context) {
	g, err := h.GeofenceService.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, geofenceResponse(g, ""))
}

func (h *Handler) updateGeofenceGeometry(c *gin.Context) {
	var input GeometryInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	shape, err := input.shape()
	if err != nil {
		h.respondError(c, err)
		return
	}

	g, err := h.GeofenceService.UpdateGeometry(c.Request.Context(), user(c), c.Param("id"), shape)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, geofenceResponse(g, ""))
}

func (h *Handler) renameGeofence(c *gin.Context) {
	var input RenameInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	g, err := h.GeofenceService.Rename(c.Request.Context(), user(c), c.Param("id"), input.Name)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, geofenceResponse(g, ""))
}

func (h *Handler) deleteGeofence(c *gin.Context) {
	if err := h.GeofenceService.Delete(c.Request.Context(), user(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
