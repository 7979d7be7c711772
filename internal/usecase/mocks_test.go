package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/paincake00/geoclock/internal/entity"
	"github.com/paincake00/geoclock/internal/geo"
	"github.com/paincake00/geoclock/internal/tracking"
)

type memGeofenceRepo struct {
	mu      sync.Mutex
	fences  map[string]*entity.Geofence
	seq     int
	listErr error
	calls   int
}

func newMemGeofenceRepo() *memGeofenceRepo {
	return &memGeofenceRepo{fences: map[string]*entity.Geofence{}}
}

func (r *memGeofenceRepo) Create(_ context.Context, g *entity.Geofence) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	g.ID = fmt.Sprintf("g%d", r.seq)
	g.CreatedAt = time.Now()
	cp := *g
	r.fences[g.ID] = &cp
	return nil
}

func (r *memGeofenceRepo) GetByID(_ context.Context, id string) (*entity.Geofence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.fences[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (r *memGeofenceRepo) list(filter func(*entity.Geofence) bool) []*entity.Geofence {
	var out []*entity.Geofence
	for _, g := range r.fences {
		if filter(g) {
			cp := *g
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memGeofenceRepo) ListByOwner(_ context.Context, owner string) ([]*entity.Geofence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list(func(g *entity.Geofence) bool { return g.CreatedBy == owner }), nil
}

func (r *memGeofenceRepo) ListAll(_ context.Context) ([]*entity.Geofence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.list(func(*entity.Geofence) bool { return true }), nil
}

func (r *memGeofenceRepo) UpdateShape(_ context.Context, id string, shape geo.Shape) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.fences[id]
	if !ok {
		return entity.ErrNotFound
	}
	g.Shape = shape
	return nil
}

func (r *memGeofenceRepo) Rename(_ context.Context, id, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.fences[id]
	if !ok {
		return entity.ErrNotFound
	}
	g.Name = name
	return nil
}

func (r *memGeofenceRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.fences[id]; !ok {
		return entity.ErrNotFound
	}
	delete(r.fences, id)
	return nil
}

type memCache struct {
	mu     sync.Mutex
	fences []*entity.Geofence
}

func (c *memCache) SetGeofences(_ context.Context, fences []*entity.Geofence) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fences = fences
	return nil
}

func (c *memCache) GetGeofences(_ context.Context) ([]*entity.Geofence, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fences, nil
}

func (c *memCache) InvalidateGeofences(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fences = nil
	return nil
}

type memAttendanceRepo struct {
	mu      sync.Mutex
	records []*entity.AttendanceRecord
	err     error
}

func (r *memAttendanceRepo) AppendRecord(_ context.Context, rec *entity.AttendanceRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.records = append(r.records, rec)
	return nil
}

func (r *memAttendanceRepo) ListRecords(_ context.Context, userID string, limit int) ([]*entity.AttendanceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.AttendanceRecord
	for i := len(r.records) - 1; i >= 0 && len(out) < limit; i-- {
		if r.records[i].UserID == userID {
			out = append(out, r.records[i])
		}
	}
	return out, nil
}

func (r *memAttendanceRepo) CountRecordsOnDate(_ context.Context, userID, date string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rec := range r.records {
		if rec.UserID == userID && rec.Date == date {
			n++
		}
	}
	return n, nil
}

type memShifts struct {
	mu     sync.Mutex
	shifts map[string]*entity.Shift
	// gates GetShift пользователя ждёт закрытия канала.
	gates  map[string]chan struct{}
}

func newMemShifts() *memShifts {
	return &memShifts{shifts: map[string]*entity.Shift{}, gates: map[string]chan struct{}{}}
}

func (s *memShifts) GetShift(ctx context.Context, userID string) (*entity.Shift, error) {
	s.mu.Lock()
	gate := s.gates[userID]
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shifts[userID], nil
}

func (s *memShifts) SetShift(_ context.Context, sh *entity.Shift) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shifts[sh.UserID] = sh
	return nil
}

func (s *memShifts) DeleteShift(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.shifts, userID)
	return nil
}

type memQueue struct {
	mu    sync.Mutex
	items map[string][]interface{}
	// delay задержка перед записью события.
	delay func(payload interface{}) time.Duration
}

func newMemQueue() *memQueue {
	return &memQueue{items: map[string][]interface{}{}}
}

func (q *memQueue) Enqueue(_ context.Context, task string, payload interface{}) error {
	if q.delay != nil {
		time.Sleep(q.delay(payload))
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items[task] = append(q.items[task], payload)
	return nil
}

func (q *memQueue) Dequeue(_ context.Context, task string) (string, error) {
	return "", fmt.Errorf("not implemented")
}

func (q *memQueue) events(task string) []entity.AttendanceEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []entity.AttendanceEvent
	for _, p := range q.items[task] {
		out = append(out, p.(entity.AttendanceEvent))
	}
	return out
}

// feeds датчики пользователей и публикация в них.
type feeds struct {
	mu    sync.Mutex
	byKey map[string]*tracking.Feed
}

func newFeeds() *feeds {
	return &feeds{byKey: map[string]*tracking.Feed{}}
}

func (f *feeds) get(userID string) *tracking.Feed {
	f.mu.Lock()
	defer f.mu.Unlock()
	feed, ok := f.byKey[userID]
	if !ok {
		feed = tracking.NewFeed()
		f.byKey[userID] = feed
	}
	return feed
}

func (f *feeds) SensorFor(userID string) tracking.Sensor {
	return f.get(userID)
}

func (f *feeds) PublishLocation(_ context.Context, userID string, s entity.LocationSample) error {
	f.get(userID).Publish(s)
	return nil
}
