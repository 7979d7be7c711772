package usecase

import (
	"context"

	"github.com/paincake00/geoclock/internal/entity"
	"github.com/paincake00/geoclock/internal/geo"
)

// GeofenceMatch результат проверки точки для одной геозоны.
type GeofenceMatch struct {
	Geofence    *entity.Geofence `json:"geofence"`
	DisplayName string           `json:"display_name"`
	Inside      bool             `json:"inside"`
	// DistanceMeters расстояние до центра, только для кругов.
	DistanceMeters *float64 `json:"distance_meters,omitempty"`
}

// LocationCheck ответ на проверку координат.
type LocationCheck struct {
	Point     geo.Coordinate  `json:"point"`
	InsideAny bool            `json:"inside_any"`
	Matches   []GeofenceMatch `json:"geofences"`
}

// GeoService отвечает за проверку координат пользователя относительно рабочих зон.
type GeoService struct {
	Geofences *GeofenceService
}

// NewGeoService создает новый экземпляр гео-сервиса.
func NewGeoService(gs *GeofenceService) *GeoService {
	return &GeoService{Geofences: gs}
}

// CheckLocation проверяет точку против каждой активной геозоны.
func (s *GeoService) CheckLocation(ctx context.Context, p geo.Coordinate) (*LocationCheck, error) {
	fences, err := s.Geofences.Active(ctx)
	if err != nil {
		return nil, err
	}
	return Evaluate(p, fences), nil
}

// Evaluate чистая проверка точки против набора геозон.
func Evaluate(p geo.Coordinate, fences []*entity.Geofence) *LocationCheck {
	names := DisplayNames(fences)
	res := &LocationCheck{Point: p, Matches: make([]GeofenceMatch, 0, len(fences))}
	for i, g := range fences {
		if g == nil {
			continue
		}
		m := GeofenceMatch{Geofence: g, DisplayName: names[i], Inside: g.Contains(p)}
		if c, ok := g.Shape.(geo.Circle); ok {
			d := geo.HaversineDistance(p, c.Center)
			m.DistanceMeters = &d
		}
		if m.Inside {
			res.InsideAny = true
		}
		res.Matches = append(res.Matches, m)
	}
	return res
}
