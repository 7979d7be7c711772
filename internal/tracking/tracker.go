package tracking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/paincake00/geoclock/internal/entity"
)

var ErrStopped = errors.New("tracker stopped")

// Snapshot состояние трекера в момент вызова.
type Snapshot struct {
	Tracking       bool                   `json:"tracking"`
	Sample         *entity.LocationSample `json:"location,omitempty"`
	Error          string                 `json:"error,omitempty"`
	InsideWorkArea bool                   `json:"inside_work_area"`
	UpdatedAt      time.Time              `json:"updated_at,omitempty"`
}

// Tracker держит последнее местоположение пользователя и принадлежность рабочей зоне.
// Обновления применяются по принципу last-write-wins из одного цикла чтения подписки.
type Tracker struct {
	sensor  Sensor
	timeout time.Duration
	now     func() time.Time

	mu        sync.RWMutex
	fences    []*entity.Geofence
	sample    *entity.LocationSample
	err       *entity.LocationError
	inside    bool
	updatedAt time.Time
	running   bool

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
	stopped  bool
}

// NewTracker timeout ограничивает одноразовые запросы Locate.
func NewTracker(sensor Sensor, timeout time.Duration) *Tracker {
	return &Tracker{sensor: sensor, timeout: timeout, now: time.Now}
}

// Start подписывается на датчик. Повторный вызов ничего не делает.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return ErrStopped
	}
	if t.running {
		return nil
	}

	watchCtx, cancel := context.WithCancel(ctx)
	readings, err := t.sensor.Watch(watchCtx)
	if err != nil {
		cancel()
		return AsLocationError(err)
	}

	t.cancel = cancel
	t.done = make(chan struct{})
	t.running = true
	go t.loop(readings, t.done)
	return nil
}

func (t *Tracker) loop(readings <-chan Reading, done chan struct{}) {
	defer close(done)
	for r := range readings {
		if r.Err != nil {
			t.fail(AsLocationError(r.Err))
			continue
		}
		t.apply(r.Sample)
	}
	t.mu.Lock()
	t.running = false
	t.mu.Unlock()
}

// Stop отменяет подписку и дожидается завершения цикла. Идемпотентен.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() {
		t.mu.Lock()
		t.stopped = true
		cancel, done := t.cancel, t.done
		t.mu.Unlock()

		if cancel != nil {
			cancel()
			<-done
		}
	})
}

func (t *Tracker) apply(s entity.LocationSample) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.sample = &s
	t.err = nil
	t.updatedAt = t.now()
	t.inside = entity.InsideAny(s.Coordinate(), t.fences)
}

func (t *Tracker) fail(err *entity.LocationError) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.err = err
	t.updatedAt = t.now()
}

// SetGeofences заменяет набор геозон и пересчитывает принадлежность.
func (t *Tracker) SetGeofences(fences []*entity.Geofence) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.fences = fences
	if t.sample != nil {
		t.inside = entity.InsideAny(t.sample.Coordinate(), fences)
	} else {
		t.inside = false
	}
}

// Sample копия последнего образца или nil.
func (t *Tracker) Sample() *entity.LocationSample {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.sample == nil {
		return nil
	}
	s := *t.sample
	return &s
}

// InsideWorkArea false при пустом наборе геозон или отсутствии образца.
func (t *Tracker) InsideWorkArea() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.inside
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap := Snapshot{
		Tracking:       t.running,
		InsideWorkArea: t.inside,
		UpdatedAt:      t.updatedAt,
	}
	if t.sample != nil {
		s := *t.sample
		snap.Sample = &s
	}
	if t.err != nil {
		snap.Error = t.err.Message()
	}
	return snap
}

// Locate одноразовый запрос к датчику. Успешный результат становится текущим образцом.
func (t *Tracker) Locate(ctx context.Context) (*entity.LocationSample, error) {
	s, err := Locate(ctx, t.sensor, t.timeout)
	if err != nil {
		t.fail(AsLocationError(err))
		return nil, err
	}
	t.apply(*s)
	return s, nil
}
