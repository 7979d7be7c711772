package entity

import (
	"errors"
	"fmt"
)

// Отказы охранных условий машины посещаемости. Состояние при них не меняется.
var (
	ErrLocationUnavailable = errors.New("location unavailable")
	ErrOutsideGeofence     = errors.New("outside work area")
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrAlreadyClockedIn    = fmt.Errorf("%w: already clocked in", ErrInvalidTransition)
	ErrNotClockedIn        = fmt.Errorf("%w: not clocked in", ErrInvalidTransition)
)

// Ошибки хранилища и доступа.
var (
	ErrStorage   = errors.New("storage failure")
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
)

// Ошибки валидации входных данных.
var (
	ErrInvalidGeofence = errors.New("invalid geofence")
	ErrShapeChanged    = errors.New("geofence type cannot be changed")
	ErrInvalidSample   = errors.New("invalid location sample")
)

// StorageError сбой долговременного хранилища. Переход не применён, операцию можно повторить.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() []error {
	return []error{ErrStorage, e.Err}
}

// NewStorageError оборачивает ошибку репозитория.
func NewStorageError(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// LocationErrorKind причина недоступности местоположения.
type LocationErrorKind string

const (
	LocationPermissionDenied    LocationErrorKind = "permission_denied"
	LocationPositionUnavailable LocationErrorKind = "position_unavailable"
	LocationTimeout             LocationErrorKind = "timeout"
	LocationUnknown             LocationErrorKind = "unknown"
)

// LocationError ошибка датчика местоположения.
type LocationError struct {
	Kind LocationErrorKind
	Err  error
}

func (e *LocationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message(), e.Err)
	}
	return e.Message()
}

// Message текст для пользователя.
func (e *LocationError) Message() string {
	switch e.Kind {
	case LocationPermissionDenied:
		return "Location access denied. Please enable location permissions."
	case LocationPositionUnavailable:
		return "Location information is unavailable."
	case LocationTimeout:
		return "Location request timed out."
	default:
		return "An unknown error occurred while retrieving location."
	}
}

func (e *LocationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrLocationUnavailable}
	}
	return []error{ErrLocationUnavailable, e.Err}
}
