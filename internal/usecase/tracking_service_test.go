package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paincake00/geoclock/internal/entity"
	"github.com/paincake00/geoclock/internal/geo"
	"github.com/paincake00/geoclock/internal/logger"
	"github.com/paincake00/geoclock/internal/tracking"
)

func TestTrackingService_StartIngestStop(t *testing.T) {
	ctx := context.Background()
	gs, _, _ := newGeofenceService()
	src := newFeeds()
	svc := NewTrackingService(src, src, gs, time.Second, logger.Discard())
	defer svc.StopAll()

	require.NoError(t, gs.Create(ctx, supervisor, &entity.Geofence{Shape: geo.Circle{Center: manila, Radius: 50}}))

	snap, err := svc.Start(ctx, intern)
	require.NoError(t, err)
	assert.True(t, snap.Tracking)

	require.NoError(t, svc.Ingest(ctx, intern.ID, entity.LocationSample{Lat: manila.Lat, Lng: manila.Lng}))
	assert.Eventually(t, func() bool { return svc.Status(intern).InsideWorkArea }, time.Second, 5*time.Millisecond)

	svc.Stop(intern)
	svc.Stop(intern)
	assert.False(t, svc.Status(intern).Tracking)
}

func TestTrackingService_GeofenceChangeReevaluates(t *testing.T) {
	ctx := context.Background()
	gs, _, _ := newGeofenceService()
	src := newFeeds()
	svc := NewTrackingService(src, src, gs, time.Second, logger.Discard())
	defer svc.StopAll()

	_, err := svc.Start(ctx, intern)
	require.NoError(t, err)
	require.NoError(t, svc.Ingest(ctx, intern.ID, entity.LocationSample{Lat: manila.Lat, Lng: manila.Lng}))
	assert.Eventually(t, func() bool { return svc.Status(intern).Sample != nil }, time.Second, 5*time.Millisecond)
	assert.False(t, svc.Status(intern).InsideWorkArea)

	require.NoError(t, gs.Create(ctx, supervisor, &entity.Geofence{Shape: geo.Circle{Center: manila, Radius: 50}}))
	assert.True(t, svc.Status(intern).InsideWorkArea)
}

func TestTrackingService_IngestValidates(t *testing.T) {
	gs, _, _ := newGeofenceService()
	src := newFeeds()
	svc := NewTrackingService(src, src, gs, time.Second, logger.Discard())

	err := svc.Ingest(context.Background(), intern.ID, entity.LocationSample{Lat: 120, Lng: 0})
	assert.ErrorIs(t, err, entity.ErrInvalidSample)

	err = svc.Ingest(context.Background(), intern.ID, entity.LocationSample{Lat: 1, Lng: 1, Accuracy: -1})
	assert.ErrorIs(t, err, entity.ErrInvalidSample)
}

func TestTrackingService_LocateReturnsCopy(t *testing.T) {
	ctx := context.Background()
	gs, _, _ := newGeofenceService()
	src := newFeeds()
	svc := NewTrackingService(src, src, gs, time.Second, logger.Discard())

	require.NoError(t, svc.Ingest(ctx, intern.ID, entity.LocationSample{Lat: 1, Lng: 2}))
	s, err := svc.Locate(ctx, intern)
	require.NoError(t, err)
	assert.Equal(t, 1.0, s.Lat)
}

func TestTrackingService_LocateRejectsStaleSample(t *testing.T) {
	ctx := context.Background()
	gs, _, _ := newGeofenceService()
	src := newFeeds()
	svc := NewTrackingService(src, src, gs, 50*time.Millisecond, logger.Discard())
	now := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)
	svc.SetClock(func() time.Time { return now })

	src.get(intern.ID).Publish(entity.LocationSample{Lat: 1, Lng: 2, Timestamp: now.Add(-72 * time.Hour)})
	_, err := svc.Locate(ctx, intern)
	require.ErrorIs(t, err, entity.ErrLocationUnavailable)
	var le *entity.LocationError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, entity.LocationPositionUnavailable, le.Kind)

	svc.MaxAge = 0
	s, err := svc.Locate(ctx, intern)
	require.NoError(t, err)
	assert.Equal(t, 1.0, s.Lat)
}

func TestTrackingService_IngestStampsWithClock(t *testing.T) {
	ctx := context.Background()
	gs, _, _ := newGeofenceService()
	src := newFeeds()
	svc := NewTrackingService(src, src, gs, 50*time.Millisecond, logger.Discard())
	now := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)
	svc.SetClock(func() time.Time { return now })

	require.NoError(t, svc.Ingest(ctx, intern.ID, entity.LocationSample{Lat: 1, Lng: 2}))
	s, err := svc.Locate(ctx, intern)
	require.NoError(t, err)
	assert.True(t, s.Timestamp.Equal(now))
}

// gatedSensors Watch пользователя "slow" ждёт закрытия gate.
type gatedSensors struct {
	*feeds
	gate chan struct{}
}

type gatedSensor struct {
	tracking.Sensor
	gate chan struct{}
}

func (s gatedSensor) Watch(ctx context.Context) (<-chan tracking.Reading, error) {
	select {
	case <-s.gate:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.Sensor.Watch(ctx)
}

func (g gatedSensors) SensorFor(userID string) tracking.Sensor {
	if userID == "slow" {
		return gatedSensor{Sensor: g.get(userID), gate: g.gate}
	}
	return g.get(userID)
}

func TestTrackingService_StartDoesNotBlockOtherUsers(t *testing.T) {
	ctx := context.Background()
	gs, _, _ := newGeofenceService()
	src := gatedSensors{feeds: newFeeds(), gate: make(chan struct{})}
	svc := NewTrackingService(src, src, gs, time.Second, logger.Discard())
	defer svc.StopAll()

	slow := entity.User{ID: "slow", Name: "Slow", Role: entity.RoleIntern}
	slowDone := make(chan error, 1)
	go func() {
		_, err := svc.Start(ctx, slow)
		slowDone <- err
	}()

	done := make(chan error, 1)
	go func() {
		_, err := svc.Start(ctx, intern)
		done <- err
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("start blocked by another user's subscription")
	}
	assert.False(t, svc.Status(slow).Tracking)
	assert.True(t, svc.Status(intern).Tracking)

	close(src.gate)
	require.NoError(t, <-slowDone)
	assert.True(t, svc.Status(slow).Tracking)
}

func TestTrackingService_ConcurrentStartKeepsOneTracker(t *testing.T) {
	ctx := context.Background()
	gs, _, _ := newGeofenceService()
	src := newFeeds()
	svc := NewTrackingService(src, src, gs, time.Second, logger.Discard())
	defer svc.StopAll()

	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		go func() {
			_, err := svc.Start(ctx, intern)
			errs <- err
		}()
	}
	for i := 0; i < 4; i++ {
		require.NoError(t, <-errs)
	}
	assert.Eventually(t, func() bool { return src.get(intern.ID).Subscribers() == 1 }, time.Second, 5*time.Millisecond)
}
