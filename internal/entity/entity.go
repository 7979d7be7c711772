package entity

import (
	"time"

	"github.com/paincake00/geoclock/internal/geo"
)

// Роли пользователей дашборда.
const (
	RoleSupervisor = "supervisor"
	RoleIntern     = "intern"
)

// User участник стажировки, данные берутся из claims токена.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// IsSupervisor сообщает, может ли пользователь управлять геозонами.
func (u User) IsSupervisor() bool {
	return u.Role == RoleSupervisor
}

// Geofence рабочая зона, нарисованная руководителем.
type Geofence struct {
	ID        string
	Name      string
	Shape     geo.Shape
	CreatedBy string
	CreatedAt time.Time
}

// Contains сообщает, находится ли точка внутри геозоны.
func (g *Geofence) Contains(p geo.Coordinate) bool {
	if g == nil {
		return false
	}
	return geo.Contains(g.Shape, p)
}

// InsideAny true, если точка лежит хотя бы в одной геозоне.
func InsideAny(p geo.Coordinate, fences []*Geofence) bool {
	for _, g := range fences {
		if g.Contains(p) {
			return true
		}
	}
	return false
}

// LocationSample показание датчика местоположения.
type LocationSample struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Accuracy  float64   `json:"accuracy"`
	Timestamp time.Time `json:"timestamp"`
}

// Coordinate возвращает точку без точности и времени.
func (s LocationSample) Coordinate() geo.Coordinate {
	return geo.Coordinate{Lat: s.Lat, Lng: s.Lng}
}

// Типы записей посещаемости.
const (
	RecordTimeIn  = "time-in"
	RecordTimeOut = "time-out"
)

// AttendanceRecord неизменяемая запись об отметке прихода или ухода.
type AttendanceRecord struct {
	ID            string         `json:"id" firestore:"id"`
	UserID        string         `json:"userId" firestore:"userId"`
	UserName      string         `json:"userName" firestore:"userName"`
	Type          string         `json:"type" firestore:"type"`
	Timestamp     time.Time      `json:"timestamp" firestore:"timestamp"`
	Location      geo.Coordinate `json:"location" firestore:"location"`
	Accuracy      float64        `json:"accuracy" firestore:"accuracy"`
	Date          string         `json:"date" firestore:"date"`
	ShiftDuration *int64         `json:"shiftDuration,omitempty" firestore:"shiftDuration,omitempty"` // ms, только для time-out
}

// Shift маркер открытой смены. Не более одного на пользователя.
type Shift struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId"`
	UserName  string         `json:"userName"`
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Location  geo.Coordinate `json:"location"`
	Accuracy  float64        `json:"accuracy"`
	Date      string         `json:"date"`
}

// ShiftFromRecord строит маркер смены из записи time-in.
func ShiftFromRecord(r *AttendanceRecord) *Shift {
	return &Shift{
		ID:        r.ID,
		UserID:    r.UserID,
		UserName:  r.UserName,
		Type:      RecordTimeIn,
		Timestamp: r.Timestamp,
		Location:  r.Location,
		Accuracy:  r.Accuracy,
		Date:      r.Date,
	}
}

// AttendanceEvent структура для отправки в очередь Redis и последующей обработки воркером.
type AttendanceEvent struct {
	Event           string  `json:"event"`
	RecordID        string  `json:"record_id"`
	UserID          string  `json:"user_id"`
	UserName        string  `json:"user_name"`
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`
	Accuracy        float64 `json:"accuracy"`
	ShiftDurationMs *int64  `json:"shift_duration_ms,omitempty"`
	OccurredAt      string  `json:"occurred_at"`
}

// EventFromRecord формирует событие вебхука по записи посещаемости.
func EventFromRecord(r *AttendanceRecord) AttendanceEvent {
	event := "attendance.time_in"
	if r.Type == RecordTimeOut {
		event = "attendance.time_out"
	}
	return AttendanceEvent{
		Event:           event,
		RecordID:        r.ID,
		UserID:          r.UserID,
		UserName:        r.UserName,
		Latitude:        r.Location.Lat,
		Longitude:       r.Location.Lng,
		Accuracy:        r.Accuracy,
		ShiftDurationMs: r.ShiftDuration,
		OccurredAt:      r.Timestamp.Format(time.RFC3339),
	}
}
