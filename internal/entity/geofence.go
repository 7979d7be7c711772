package entity

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/paincake00/geoclock/internal/geo"
)

var (
	// ErrMixedShape поля разных форм в одной геозоне.
	ErrMixedShape      = errors.New("geofence mixes fields of different shapes")
	// ErrCorruptGeofence сохранённая геозона не собирается в форму своего типа.
	ErrCorruptGeofence = errors.New("stored geofence is corrupt")
)

// GeofenceDocument плоское представление геозоны для JSON, Firestore и YAML.
type GeofenceDocument struct {
	ID          string           `json:"id,omitempty" firestore:"-" yaml:"-"`
	Name        string           `json:"name" firestore:"name" yaml:"name"`
	Type        string           `json:"type" firestore:"type" yaml:"type"`
	Center      *geo.Coordinate  `json:"center,omitempty" firestore:"center,omitempty" yaml:"center,omitempty"`
	Radius      float64          `json:"radius,omitempty" firestore:"radius,omitempty" yaml:"radius,omitempty"`
	Coordinates []geo.Coordinate `json:"coordinates,omitempty" firestore:"coordinates,omitempty" yaml:"coordinates,omitempty"`
	CreatedBy   string           `json:"createdBy,omitempty" firestore:"createdBy" yaml:"createdBy,omitempty"`
	CreatedAt   time.Time        `json:"createdAt,omitempty" firestore:"createdAt" yaml:"-"`
}

// Document раскладывает форму по полям документа.
func (g *Geofence) Document() GeofenceDocument {
	doc := GeofenceDocument{
		ID:        g.ID,
		Name:      g.Name,
		CreatedBy: g.CreatedBy,
		CreatedAt: g.CreatedAt,
	}
	doc.Type, doc.Center, doc.Radius, doc.Coordinates = ShapeFields(g.Shape)
	return doc
}

// ShapeFields возвращает поля документа, соответствующие форме.
func ShapeFields(s geo.Shape) (typ string, center *geo.Coordinate, radius float64, coords []geo.Coordinate) {
	switch v := s.(type) {
	case geo.Circle:
		c := v.Center
		return string(geo.KindCircle), &c, v.Radius, nil
	case geo.Rectangle:
		return string(geo.KindRectangle), nil, 0, append([]geo.Coordinate(nil), v.Corners[:]...)
	case geo.Polygon:
		return string(geo.KindPolygon), nil, 0, append([]geo.Coordinate(nil), v.Vertices...)
	case geo.Unsupported:
		return v.Type, nil, 0, nil
	}
	return "", nil, 0, nil
}

// Geofence собирает геозону из документа. Неизвестный тип даёт geo.Unsupported без ошибки.
func (d GeofenceDocument) Geofence() (*Geofence, error) {
	shape, err := ShapeFromFields(d.Type, d.Center, d.Radius, d.Coordinates)
	if err != nil {
		return nil, err
	}
	return &Geofence{
		ID:        d.ID,
		Name:      d.Name,
		Shape:     shape,
		CreatedBy: d.CreatedBy,
		CreatedAt: d.CreatedAt,
	}, nil
}

// StoredGeofence собирает геозону, прочитанную из хранилища или кеша.
// Повреждённая форма заменяется geo.Unsupported; геозона возвращается вместе с ошибкой ErrCorruptGeofence.
func (d GeofenceDocument) StoredGeofence() (*Geofence, error) {
	shape, err := StoredShape(d.Type, d.Center, d.Radius, d.Coordinates)
	return &Geofence{
		ID:        d.ID,
		Name:      d.Name,
		Shape:     shape,
		CreatedBy: d.CreatedBy,
		CreatedAt: d.CreatedAt,
	}, err
}

// StoredShape как ShapeFromFields, но форма, которую не удалось собрать, становится geo.Unsupported.
// Такая форма не содержит ни одной точки.
func StoredShape(typ string, center *geo.Coordinate, radius float64, coords []geo.Coordinate) (geo.Shape, error) {
	shape, err := ShapeFromFields(typ, center, radius, coords)
	if err != nil {
		return geo.Unsupported{Type: typ}, fmt.Errorf("%w: %w", ErrCorruptGeofence, err)
	}
	return shape, nil
}

// ShapeFromFields строит форму по тегу типа. Поля чужих форм запрещены.
func ShapeFromFields(typ string, center *geo.Coordinate, radius float64, coords []geo.Coordinate) (geo.Shape, error) {
	switch geo.Kind(typ) {
	case geo.KindCircle:
		if len(coords) > 0 {
			return nil, fmt.Errorf("%w: circle with coordinates", ErrMixedShape)
		}
		if center == nil {
			return nil, fmt.Errorf("circle: center is required")
		}
		return geo.Circle{Center: *center, Radius: radius}, nil
	case geo.KindRectangle:
		if center != nil || radius != 0 {
			return nil, fmt.Errorf("%w: rectangle with center/radius", ErrMixedShape)
		}
		if len(coords) != 4 {
			return nil, fmt.Errorf("%w: got %d", geo.ErrInvalidCorners, len(coords))
		}
		var r geo.Rectangle
		copy(r.Corners[:], coords)
		return r, nil
	case geo.KindPolygon:
		if center != nil || radius != 0 {
			return nil, fmt.Errorf("%w: polygon with center/radius", ErrMixedShape)
		}
		return geo.Polygon{Vertices: append([]geo.Coordinate(nil), coords...)}, nil
	default:
		return geo.Unsupported{Type: typ}, nil
	}
}

func (g Geofence) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.Document())
}

// UnmarshalJSON читает кешированную геозону. Повреждённая форма читается как geo.Unsupported.
func (g *Geofence) UnmarshalJSON(data []byte) error {
	var doc GeofenceDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	parsed, _ := doc.StoredGeofence()
	*g = *parsed
	return nil
}
