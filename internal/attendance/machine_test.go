package attendance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paincake00/geoclock/internal/entity"
	"github.com/paincake00/geoclock/internal/geo"
)

type memRecords struct {
	mu      sync.Mutex
	records []*entity.AttendanceRecord
	err     error
}

func (s *memRecords) AppendRecord(_ context.Context, r *entity.AttendanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, r)
	return nil
}

type memShifts struct {
	shifts map[string]*entity.Shift
	setErr error
}

func newMemShifts() *memShifts {
	return &memShifts{shifts: map[string]*entity.Shift{}}
}

func (s *memShifts) GetShift(_ context.Context, userID string) (*entity.Shift, error) {
	return s.shifts[userID], nil
}

func (s *memShifts) SetShift(_ context.Context, sh *entity.Shift) error {
	if s.setErr != nil {
		return s.setErr
	}
	s.shifts[sh.UserID] = sh
	return nil
}

func (s *memShifts) DeleteShift(_ context.Context, userID string) error {
	delete(s.shifts, userID)
	return nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

var (
	manila = geo.Coordinate{Lat: 14.5995, Lng: 120.9842}
	office = []*entity.Geofence{{ID: "g1", Name: "Office", Shape: geo.Circle{Center: manila, Radius: 50}}}
	intern = entity.User{ID: "u1", Name: "Juan", Role: entity.RoleIntern}
)

func sampleAt(c geo.Coordinate) *entity.LocationSample {
	return &entity.LocationSample{Lat: c.Lat, Lng: c.Lng, Accuracy: 12}
}

func newTestMachine(records *memRecords, shifts *memShifts, c *clock) *Machine {
	return NewMachine(intern, records, shifts, WithClock(c.now), WithLocation(time.UTC))
}

func TestTimeIn_TimeOut(t *testing.T) {
	ctx := context.Background()
	records, shifts := &memRecords{}, newMemShifts()
	c := &clock{t: time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)}
	m := newTestMachine(records, shifts, c)

	in, err := m.TimeIn(ctx, sampleAt(manila), office)
	require.NoError(t, err)
	assert.Equal(t, ClockedIn, m.State())
	assert.Equal(t, entity.RecordTimeIn, in.Type)
	assert.Equal(t, "2024-05-06", in.Date)
	assert.Equal(t, 12.0, in.Accuracy)
	assert.Nil(t, in.ShiftDuration)
	require.Contains(t, shifts.shifts, intern.ID)
	assert.Equal(t, in.ID, shifts.shifts[intern.ID].ID)

	c.advance(90 * time.Minute)
	out, err := m.TimeOut(ctx, sampleAt(manila), office)
	require.NoError(t, err)
	assert.Equal(t, ClockedOut, m.State())
	require.NotNil(t, out.ShiftDuration)
	assert.Equal(t, int64(5_400_000), *out.ShiftDuration)
	assert.NotContains(t, shifts.shifts, intern.ID)
	assert.Len(t, records.records, 2)
}

func TestTimeIn_Twice(t *testing.T) {
	ctx := context.Background()
	records := &memRecords{}
	m := newTestMachine(records, newMemShifts(), &clock{t: time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)})

	_, err := m.TimeIn(ctx, sampleAt(manila), office)
	require.NoError(t, err)

	_, err = m.TimeIn(ctx, sampleAt(manila), office)
	assert.ErrorIs(t, err, entity.ErrInvalidTransition)
	assert.ErrorIs(t, err, entity.ErrAlreadyClockedIn)
	assert.Len(t, records.records, 1, "rejected transition must not append")
	assert.Equal(t, ClockedIn, m.State())
}

func TestTimeOut_NotClockedIn(t *testing.T) {
	m := newTestMachine(&memRecords{}, newMemShifts(), &clock{t: time.Now()})

	_, err := m.TimeOut(context.Background(), sampleAt(manila), office)
	assert.ErrorIs(t, err, entity.ErrNotClockedIn)
	assert.ErrorIs(t, err, entity.ErrInvalidTransition)
}

func TestGuards(t *testing.T) {
	ctx := context.Background()
	records := &memRecords{}
	m := newTestMachine(records, newMemShifts(), &clock{t: time.Now()})

	// ~200 м к северу от центра.
	away := geo.Coordinate{Lat: manila.Lat + 0.0018, Lng: manila.Lng}
	require.Greater(t, geo.HaversineDistance(away, manila), 190.0)

	_, err := m.TimeIn(ctx, sampleAt(away), office)
	assert.ErrorIs(t, err, entity.ErrOutsideGeofence)

	_, err = m.TimeIn(ctx, nil, office)
	assert.ErrorIs(t, err, entity.ErrLocationUnavailable)

	assert.Empty(t, records.records)
	assert.Equal(t, ClockedOut, m.State())

	_, err = m.TimeIn(ctx, sampleAt(away), nil)
	assert.NoError(t, err, "no geofences means no restriction")
}

func TestGuards_LocationCheckedBeforeState(t *testing.T) {
	ctx := context.Background()
	m := newTestMachine(&memRecords{}, newMemShifts(), &clock{t: time.Now()})

	_, err := m.TimeIn(ctx, sampleAt(manila), office)
	require.NoError(t, err)

	_, err = m.TimeIn(ctx, nil, office)
	assert.ErrorIs(t, err, entity.ErrLocationUnavailable)
}

func TestGuards_UnsupportedFenceFailsClosed(t *testing.T) {
	fences := []*entity.Geofence{{ID: "x", Shape: geo.Unsupported{Type: "hexagon"}}}
	m := newTestMachine(&memRecords{}, newMemShifts(), &clock{t: time.Now()})

	_, err := m.TimeIn(context.Background(), sampleAt(manila), fences)
	assert.ErrorIs(t, err, entity.ErrOutsideGeofence)
}

func TestStorageFailure(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection reset")
	records, shifts := &memRecords{err: boom}, newMemShifts()
	m := newTestMachine(records, shifts, &clock{t: time.Now()})

	_, err := m.TimeIn(ctx, sampleAt(manila), office)
	assert.ErrorIs(t, err, entity.ErrStorage)
	assert.ErrorIs(t, err, boom)

	var se *entity.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "append time-in", se.Op)

	assert.Equal(t, ClockedOut, m.State())
	assert.Empty(t, shifts.shifts)

	records.err = nil
	_, err = m.TimeIn(ctx, sampleAt(manila), office)
	assert.NoError(t, err, "storage failure is retryable")
}

func TestMarkerFailureStillTransitions(t *testing.T) {
	records, shifts := &memRecords{}, newMemShifts()
	shifts.setErr = errors.New("redis down")
	m := newTestMachine(records, shifts, &clock{t: time.Now()})

	_, err := m.TimeIn(context.Background(), sampleAt(manila), office)
	require.NoError(t, err)
	assert.Equal(t, ClockedIn, m.State())
	assert.Len(t, records.records, 1)
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)

	t.Run("today is resumed", func(t *testing.T) {
		shifts := newMemShifts()
		shifts.shifts[intern.ID] = &entity.Shift{ID: "s1", UserID: intern.ID, Type: entity.RecordTimeIn, Timestamp: now.Add(-time.Hour), Date: "2024-05-06"}

		m := newTestMachine(&memRecords{}, shifts, &clock{t: now})
		require.NoError(t, m.Restore(ctx))
		assert.Equal(t, ClockedIn, m.State())
		assert.Equal(t, "s1", m.CurrentShift().ID)
	})

	t.Run("yesterday is discarded", func(t *testing.T) {
		shifts := newMemShifts()
		shifts.shifts[intern.ID] = &entity.Shift{ID: "s0", UserID: intern.ID, Type: entity.RecordTimeIn, Timestamp: now.Add(-24 * time.Hour), Date: "2024-05-05"}

		m := newTestMachine(&memRecords{}, shifts, &clock{t: now})
		require.NoError(t, m.Restore(ctx))
		assert.Equal(t, ClockedOut, m.State())
		assert.Nil(t, m.CurrentShift())
		assert.Empty(t, shifts.shifts, "stale marker must be removed")
	})

	t.Run("no marker", func(t *testing.T) {
		m := newTestMachine(&memRecords{}, newMemShifts(), &clock{t: now})
		require.NoError(t, m.Restore(ctx))
		assert.Equal(t, ClockedOut, m.State())
	})
}

func TestShiftExpiresAtMidnight(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Date(2024, 5, 6, 23, 0, 0, 0, time.UTC)}
	m := newTestMachine(&memRecords{}, newMemShifts(), c)

	_, err := m.TimeIn(ctx, sampleAt(manila), office)
	require.NoError(t, err)

	c.advance(2 * time.Hour)
	assert.Equal(t, ClockedOut, m.State())

	_, err = m.TimeOut(ctx, sampleAt(manila), office)
	assert.ErrorIs(t, err, entity.ErrNotClockedIn)

	_, err = m.TimeIn(ctx, sampleAt(manila), office)
	assert.NoError(t, err, "a new day allows a new shift")
}

func TestDateUsesConfiguredLocation(t *testing.T) {
	loc := time.FixedZone("PHT", 8*60*60)
	// 20:00 UTC 6 мая = 04:00 7 мая по Маниле.
	c := &clock{t: time.Date(2024, 5, 6, 20, 0, 0, 0, time.UTC)}
	m := NewMachine(intern, &memRecords{}, newMemShifts(), WithClock(c.now), WithLocation(loc))

	r, err := m.TimeIn(context.Background(), sampleAt(manila), office)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-07", r.Date)
}

func TestConcurrentTimeIn(t *testing.T) {
	records := &memRecords{}
	m := newTestMachine(records, newMemShifts(), &clock{t: time.Now()})

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.TimeIn(context.Background(), sampleAt(manila), office); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Len(t, records.records, 1)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "1h 30m", FormatDuration(5_400_000))
	assert.Equal(t, "0h 0m", FormatDuration(59_999))
	assert.Equal(t, "8h 5m", FormatDuration(8*3_600_000+5*60_000+999))
	assert.Equal(t, "0h 0m", FormatDuration(-10))
}

func TestCommitHook(t *testing.T) {
	ctx := context.Background()
	records := &memRecords{}
	c := &clock{t: time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)}

	var committed []string
	m := NewMachine(intern, records, newMemShifts(), WithClock(c.now), WithLocation(time.UTC),
		WithCommitHook(func(r *entity.AttendanceRecord) { committed = append(committed, r.Type) }))

	_, err := m.TimeOut(ctx, sampleAt(manila), office)
	require.ErrorIs(t, err, entity.ErrNotClockedIn)

	_, err = m.TimeIn(ctx, sampleAt(manila), office)
	require.NoError(t, err)

	records.err = errors.New("disk full")
	_, err = m.TimeOut(ctx, sampleAt(manila), office)
	require.ErrorIs(t, err, entity.ErrStorage)

	records.err = nil
	_, err = m.TimeOut(ctx, sampleAt(manila), office)
	require.NoError(t, err)

	assert.Equal(t, []string{entity.RecordTimeIn, entity.RecordTimeOut}, committed)
}
