package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/paincake00/geoclock/internal/delivery/http/middleware"
	"github.com/paincake00/geoclock/internal/entity"
	"github.com/paincake00/geoclock/internal/logger"
	"github.com/paincake00/geoclock/internal/usecase"
)

// Pinger интерфейс для проверки соединения с сервисами (БД, Redis).
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler структура, объединяющая все HTTP-обработчики.
type Handler struct {
	GeofenceService   *usecase.GeofenceService
	GeoService        *usecase.GeoService
	TrackingService   *usecase.TrackingService
	AttendanceService *usecase.AttendanceService
	DBPinger          Pinger
	RedisPinger       Pinger
	APIKey            string
	JWTSecret         []byte
	Log               logger.Logger
}

// NewHandler создает новый экземпляр HTTP-обработчика.
func NewHandler(
	gfs *usecase.GeofenceService,
	gs *usecase.GeoService,
	ts *usecase.TrackingService,
	as *usecase.AttendanceService,
	db Pinger,
	rds Pinger,
	apiKey string,
	jwtSecret []byte,
	l logger.Logger,
) *Handler {
	return &Handler{
		GeofenceService:   gfs,
		GeoService:        gs,
		TrackingService:   ts,
		AttendanceService: as,
		DBPinger:          db,
		RedisPinger:       rds,
		APIKey:            apiKey,
		JWTSecret:         jwtSecret,
		Log:               l,
	}
}

// InitRoutes инициализирует роутер Gin и настраивает маршруты API.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.Default()

	router.GET("/api/v1/system/health", h.healthCheck)

	v1 := router.Group("/api/v1")
	{
		// Шлюз устройств авторизуется ключом, а не токеном пользователя.
		devices := v1.Group("/location")
		devices.Use(middleware.AuthMiddleware(h.APIKey))
		{
			devices.POST("/samples", h.ingestSample)
		}

		auth := v1.Group("")
		auth.Use(middleware.Authentication(h.JWTSecret))
		{
			geofences := auth.Group("/geofences")
			{
				geofences.GET("", h.listGeofences)
				geofences.GET("/suggested-name", h.suggestGeofenceName) // Отдельно от /:id
				geofences.POST("", h.createGeofence)
				geofences.GET("/:id", h.getGeofence)
				geofences.PUT("/:id/geometry", h.updateGeofenceGeometry)
				geofences.PUT("/:id/name", h.renameGeofence)
				geofences.DELETE("/:id", h.deleteGeofence)
			}

			auth.POST("/location/check", h.checkLocation)

			tracking := auth.Group("/tracking")
			{
				tracking.GET("", h.trackingStatus)
				tracking.POST("/start", h.startTracking)
				tracking.POST("/stop", h.stopTracking)
			}

			att := auth.Group("/attendance")
			{
				att.GET("", h.attendanceStatus)
				att.POST("/time-in", h.timeIn)
				att.POST("/time-out", h.timeOut)
				att.GET("/records", h.attendanceRecords)
				att.GET("/records/export", h.exportAttendance)
			}

			auth.GET("/shift/current", h.currentShift)
		}
	}

	return router
}

// user пользователь запроса. Маршруты без Authentication его не имеют.
func user(c *gin.Context) entity.User {
	u, _ := middleware.CurrentUser(c)
	return u
}

// healthCheck проверяет состояние сервиса и зависимостей (хранилище, Redis).
func (h *Handler) healthCheck(c *gin.Context) {
	ctx := c.Request.Context()
	if h.DBPinger != nil {
		if err := h.DBPinger.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "db": err.Error()})
			return
		}
	}
	if h.RedisPinger != nil {
		if err := h.RedisPinger.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "redis": err.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
