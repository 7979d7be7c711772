package usecase

import (
	"context"

	"github.com/paincake00/geoclock/internal/attendance"
	"github.com/paincake00/geoclock/internal/entity"
	"github.com/paincake00/geoclock/internal/geo"
	"github.com/paincake00/geoclock/internal/tracking"
)

// GeofenceRepository хранилище геозон. Отсутствующая геозона даёт entity.ErrNotFound.
type GeofenceRepository interface {
	Create(ctx context.Context, g *entity.Geofence) error // заполняет ID и CreatedAt
	GetByID(ctx context.Context, id string) (*entity.Geofence, error)
	ListByOwner(ctx context.Context, owner string) ([]*entity.Geofence, error)
	ListAll(ctx context.Context) ([]*entity.Geofence, error)
	UpdateShape(ctx context.Context, id string, shape geo.Shape) error
	Rename(ctx context.Context, id, name string) error
	Delete(ctx context.Context, id string) error
}

type AttendanceRepository interface {
	attendance.RecordStore
	ListRecords(ctx context.Context, userID string, limit int) ([]*entity.AttendanceRecord, error) // newest first
	CountRecordsOnDate(ctx context.Context, userID, date string) (int, error)
}

type ShiftStore = attendance.ShiftStore

type QueueRepository interface {
	Enqueue(ctx context.Context, task string, payload interface{}) error
	Dequeue(ctx context.Context, task string) (string, error) // Returns payload JSON
}

// GeofenceCache кеш активных геозон. Промах: nil, nil.
type GeofenceCache interface {
	SetGeofences(ctx context.Context, fences []*entity.Geofence) error
	GetGeofences(ctx context.Context) ([]*entity.Geofence, error)
	InvalidateGeofences(ctx context.Context) error
}

// LocationPublisher принимает образцы от шлюза устройств.
type LocationPublisher interface {
	PublishLocation(ctx context.Context, userID string, s entity.LocationSample) error
}

// SensorSource выдаёт датчик местоположения конкретного пользователя.
type SensorSource interface {
	SensorFor(userID string) tracking.Sensor
}
