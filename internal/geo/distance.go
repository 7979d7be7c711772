package geo

import "math"

// EarthRadiusMeters радиус Земли, используемый в формуле гаверсинусов.
const EarthRadiusMeters = 6371000

// Coordinate точка на поверхности Земли в градусах (WGS84).
type Coordinate struct {
	Lat float64 `json:"lat" firestore:"lat" yaml:"lat"`
	Lng float64 `json:"lng" firestore:"lng" yaml:"lng"`
}

// Valid проверяет, что широта и долгота лежат в допустимых диапазонах.
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// HaversineDistance вычисляет расстояние между двумя точками в метрах по формуле гаверсинусов.
func HaversineDistance(p1, p2 Coordinate) float64 {
	phi1 := p1.Lat * math.Pi / 180
	phi2 := p2.Lat * math.Pi / 180
	deltaPhi := (p2.Lat - p1.Lat) * math.Pi / 180
	deltaLambda := (p2.Lng - p1.Lng) * math.Pi / 180

	a := math.Sin(deltaPhi/2)*math.Sin(deltaPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*
			math.Sin(deltaLambda/2)*math.Sin(deltaLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}
