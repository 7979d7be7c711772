package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/paincake00/geoclock/internal/entity"
	"github.com/paincake00/geoclock/internal/logger"
	"github.com/paincake00/geoclock/internal/tracking"
)

// TrackingService ведёт трекеры местоположения пользователей.
type TrackingService struct {
	Sensors   SensorSource
	Publisher LocationPublisher
	Geofences *GeofenceService
	Timeout   time.Duration
	MaxAge    time.Duration // старше образец не годится для отметки
	Log       logger.Logger

	now      func() time.Time
	mu       sync.Mutex
	trackers map[string]*tracking.Tracker
}

// NewTrackingService подписывается на изменения геозон, чтобы трекеры пересчитывали принадлежность.
func NewTrackingService(sensors SensorSource, pub LocationPublisher, gs *GeofenceService, timeout time.Duration, l logger.Logger) *TrackingService {
	s := &TrackingService{
		Sensors:   sensors,
		Publisher: pub,
		Geofences: gs,
		Timeout:   timeout,
		MaxAge:    tracking.DefaultMaxAge,
		Log:       l,
		now:       time.Now,
		trackers:  make(map[string]*tracking.Tracker),
	}
	gs.OnChange(s.refreshGeofences)
	return s
}

// SetClock подменяет часы проверки свежести и приёма образцов.
func (s *TrackingService) SetClock(now func() time.Time) {
	s.now = now
}

// CheckFresh ошибка LocationError, если образец старше MaxAge.
func (s *TrackingService) CheckFresh(sample *entity.LocationSample) error {
	return tracking.CheckAge(*sample, s.now(), s.MaxAge)
}

func (s *TrackingService) refreshGeofences(_ context.Context, fences []*entity.Geofence) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.trackers {
		t.SetGeofences(fences)
	}
}

// Ingest принимает образец от шлюза устройств.
func (s *TrackingService) Ingest(ctx context.Context, userID string, sample entity.LocationSample) error {
	if !sample.Coordinate().Valid() || sample.Accuracy < 0 {
		return fmt.Errorf("%w: coordinates or accuracy out of range", entity.ErrInvalidSample)
	}
	if sample.Timestamp.IsZero() {
		sample.Timestamp = s.now()
	}
	if err := s.Publisher.PublishLocation(ctx, userID, sample); err != nil {
		return entity.NewStorageError("publish location", err)
	}
	return nil
}

// Start запускает трекер пользователя. Подписка живёт до Stop, а не до конца запроса.
func (s *TrackingService) Start(ctx context.Context, u entity.User) (tracking.Snapshot, error) {
	fences, err := s.Geofences.Active(ctx)
	if err != nil {
		return tracking.Snapshot{}, err
	}

	s.mu.Lock()
	t, ok := s.trackers[u.ID]
	s.mu.Unlock()

	if !ok {
		t = tracking.NewTracker(s.Sensors.SensorFor(u.ID), s.Timeout)
	}
	t.SetGeofences(fences)
	// Start вызывает Watch датчика; s.mu здесь не держится.
	if err := t.Start(context.Background()); err != nil {
		return tracking.Snapshot{}, err
	}

	if !ok {
		s.mu.Lock()
		existing, found := s.trackers[u.ID]
		if !found {
			s.trackers[u.ID] = t
		}
		s.mu.Unlock()

		if found {
			t.Stop()
			t = existing
		}
	}
	s.Log.Info("location tracking started", u)
	return t.Snapshot(), nil
}

// Stop останавливает трекер. Повторный вызов безопасен.
func (s *TrackingService) Stop(u entity.User) {
	s.mu.Lock()
	t, ok := s.trackers[u.ID]
	delete(s.trackers, u.ID)
	s.mu.Unlock()

	if ok {
		t.Stop()
		s.Log.Info("location tracking stopped", u)
	}
}

// Status состояние трекера пользователя.
func (s *TrackingService) Status(u entity.User) tracking.Snapshot {
	s.mu.Lock()
	t, ok := s.trackers[u.ID]
	s.mu.Unlock()

	if !ok {
		return tracking.Snapshot{}
	}
	return t.Snapshot()
}

// Locate копия последнего образца трекера, если он не старше MaxAge, иначе одноразовый запрос к датчику.
// Устаревший ответ датчика считается отсутствием местоположения.
func (s *TrackingService) Locate(ctx context.Context, u entity.User) (*entity.LocationSample, error) {
	s.mu.Lock()
	t, ok := s.trackers[u.ID]
	s.mu.Unlock()

	var (
		sample *entity.LocationSample
		err    error
	)
	if ok {
		if last := t.Sample(); last != nil && tracking.Fresh(*last, s.now(), s.MaxAge) {
			return last, nil
		}
		sample, err = t.Locate(ctx)
	} else {
		sample, err = tracking.Locate(ctx, s.Sensors.SensorFor(u.ID), s.Timeout)
	}
	if err != nil {
		return nil, err
	}
	if err := s.CheckFresh(sample); err != nil {
		return nil, err
	}
	return sample, nil
}

// StopAll останавливает все трекеры при завершении сервера.
func (s *TrackingService) StopAll() {
	s.mu.Lock()
	trackers := s.trackers
	s.trackers = make(map[string]*tracking.Tracker)
	s.mu.Unlock()

	for _, t := range trackers {
		t.Stop()
	}
}
