package tracking

import (
	"fmt"
	"time"

	"github.com/paincake00/geoclock/internal/entity"
)

// DefaultMaxAge возраст, после которого образец не считается текущим местоположением.
const DefaultMaxAge = time.Minute

// Fresh образец снят не раньше now-maxAge. Образец без времени устаревший.
// maxAge <= 0 отключает проверку.
func Fresh(s entity.LocationSample, now time.Time, maxAge time.Duration) bool {
	if maxAge <= 0 {
		return true
	}
	if s.Timestamp.IsZero() {
		return false
	}
	return now.Sub(s.Timestamp) <= maxAge
}

// CheckAge как Fresh, но возвращает LocationError с видом position_unavailable.
func CheckAge(s entity.LocationSample, now time.Time, maxAge time.Duration) error {
	if Fresh(s, now, maxAge) {
		return nil
	}
	if s.Timestamp.IsZero() {
		return &entity.LocationError{Kind: entity.LocationPositionUnavailable, Err: fmt.Errorf("last fix has no timestamp")}
	}
	age := now.Sub(s.Timestamp).Truncate(time.Second)
	return &entity.LocationError{Kind: entity.LocationPositionUnavailable, Err: fmt.Errorf("last fix is %s old, limit %s", age, maxAge)}
}
