package geo

import (
	"errors"
	"fmt"
	"math"
)

// Kind тип формы геозоны.
type Kind string

const (
	KindCircle    Kind = "circle"
	KindRectangle Kind = "rectangle"
	KindPolygon   Kind = "polygon"
)

// Shape закрытый набор форм геозон: Circle, Rectangle, Polygon и Unsupported.
// Реализовать интерфейс вне пакета нельзя.
type Shape interface {
	Kind() Kind
	contains(p Coordinate) bool
}

// Circle круг с центром и радиусом в метрах.
type Circle struct {
	Center Coordinate
	Radius float64
}

// Rectangle прямоугольник, заданный четырьмя углами.
// Углы 0 и 2 считаются противоположными, поворот не сохраняется.
type Rectangle struct {
	Corners [4]Coordinate
}

// Polygon многоугольник, последняя вершина неявно соединяется с первой.
type Polygon struct {
	Vertices []Coordinate
}

// Unsupported форма неизвестного типа, прочитанная из хранилища. Не содержит ни одной точки.
type Unsupported struct {
	Type string
}

func (Circle) Kind() Kind        { return KindCircle }
func (Rectangle) Kind() Kind     { return KindRectangle }
func (Polygon) Kind() Kind       { return KindPolygon }
func (u Unsupported) Kind() Kind { return Kind(u.Type) }

func (c Circle) contains(p Coordinate) bool    { return PointInCircle(p, c.Center, c.Radius) }
func (r Rectangle) contains(p Coordinate) bool { return PointInBoundingRectangle(p, r.Corners) }
func (pg Polygon) contains(p Coordinate) bool  { return PointInPolygon(p, pg.Vertices) }
func (Unsupported) contains(Coordinate) bool   { return false }

// Contains сообщает, лежит ли точка внутри формы. Для nil всегда false.
func Contains(s Shape, p Coordinate) bool {
	if s == nil {
		return false
	}
	return s.contains(p)
}

// PointInCircle граница включается.
func PointInCircle(p, center Coordinate, radius float64) bool {
	return HaversineDistance(p, center) <= radius
}

// PointInBoundingRectangle строит ограничивающий прямоугольник по углам 0 и 2. Границы включаются.
func PointInBoundingRectangle(p Coordinate, corners [4]Coordinate) bool {
	latMin := math.Min(corners[0].Lat, corners[2].Lat)
	latMax := math.Max(corners[0].Lat, corners[2].Lat)
	lngMin := math.Min(corners[0].Lng, corners[2].Lng)
	lngMax := math.Max(corners[0].Lng, corners[2].Lng)

	return p.Lat >= latMin && p.Lat <= latMax && p.Lng >= lngMin && p.Lng <= lngMax
}

// edgeTolerance допуск векторного произведения (градусы²) для точки на ребре.
const edgeTolerance = 1e-12

// PointInPolygon правило чёт-нечет (ray casting). Точка на ребре или в вершине считается внутри.
func PointInPolygon(p Coordinate, vertices []Coordinate) bool {
	n := len(vertices)
	if n < 3 {
		return false
	}

	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		vi, vj := vertices[i], vertices[j]
		if onSegment(p, vj, vi) {
			return true
		}
		if (vi.Lat > p.Lat) != (vj.Lat > p.Lat) &&
			p.Lng < (vj.Lng-vi.Lng)*(p.Lat-vi.Lat)/(vj.Lat-vi.Lat)+vi.Lng {
			inside = !inside
		}
	}
	return inside
}

func onSegment(p, a, b Coordinate) bool {
	cross := (b.Lat-a.Lat)*(p.Lng-a.Lng) - (b.Lng-a.Lng)*(p.Lat-a.Lat)
	if math.Abs(cross) > edgeTolerance {
		return false
	}
	return p.Lat >= math.Min(a.Lat, b.Lat) && p.Lat <= math.Max(a.Lat, b.Lat) &&
		p.Lng >= math.Min(a.Lng, b.Lng) && p.Lng <= math.Max(a.Lng, b.Lng)
}

var (
	ErrInvalidRadius   = errors.New("radius must be greater than zero")
	ErrInvalidCorners  = errors.New("rectangle requires exactly 4 corners")
	ErrTooFewVertices  = errors.New("polygon requires at least 3 vertices")
	ErrCoordinateRange = errors.New("coordinate out of range")
	ErrUnknownShape    = errors.New("unknown geofence type")
)

// Validate проверяет геометрию формы перед сохранением.
func Validate(s Shape) error {
	switch v := s.(type) {
	case Circle:
		if !(v.Radius > 0) {
			return ErrInvalidRadius
		}
		return checkRange(v.Center)
	case Rectangle:
		return checkRange(v.Corners[:]...)
	case Polygon:
		if len(v.Vertices) < 3 {
			return ErrTooFewVertices
		}
		return checkRange(v.Vertices...)
	case Unsupported:
		return fmt.Errorf("%w: %q", ErrUnknownShape, v.Type)
	default:
		return ErrUnknownShape
	}
}

func checkRange(points ...Coordinate) error {
	for i, p := range points {
		if !p.Valid() {
			return fmt.Errorf("%w: point %d (%v, %v)", ErrCoordinateRange, i, p.Lat, p.Lng)
		}
	}
	return nil
}
