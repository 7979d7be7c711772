package tracking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/paincake00/geoclock/internal/entity"
)

// Reading одно показание подписки: либо образец, либо ошибка.
type Reading struct {
	Sample entity.LocationSample
	Err    error
}

// Sensor источник местоположения пользователя.
type Sensor interface {
	// CurrentLocation одноразовый запрос, ограничен контекстом.
	CurrentLocation(ctx context.Context) (entity.LocationSample, error)
	// Watch подписка на обновления. Канал закрывается после отмены ctx.
	Watch(ctx context.Context) (<-chan Reading, error)
}

// Locate одноразовый запрос с таймаутом. Любая ошибка приводится к *entity.LocationError.
func Locate(ctx context.Context, s Sensor, timeout time.Duration) (*entity.LocationSample, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	sample, err := s.CurrentLocation(ctx)
	if err != nil {
		return nil, AsLocationError(err)
	}
	return &sample, nil
}

// AsLocationError классифицирует ошибку датчика.
func AsLocationError(err error) *entity.LocationError {
	var le *entity.LocationError
	if errors.As(err, &le) {
		return le
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &entity.LocationError{Kind: entity.LocationTimeout, Err: err}
	}
	return &entity.LocationError{Kind: entity.LocationUnknown, Err: err}
}

// Feed датчик в памяти: показания публикуются вызовом Publish.
// Подписчик получает только последнее показание, промежуточные перезаписываются.
type Feed struct {
	mu   sync.Mutex
	last *Reading
	subs map[chan Reading]struct{}
	wait []chan Reading
}

var _ Sensor = (*Feed)(nil)

func NewFeed() *Feed {
	return &Feed{subs: make(map[chan Reading]struct{})}
}

// Publish рассылает новый образец.
func (f *Feed) Publish(s entity.LocationSample) {
	f.broadcast(Reading{Sample: s})
}

// Fail рассылает ошибку датчика.
func (f *Feed) Fail(err error) {
	f.broadcast(Reading{Err: err})
}

func (f *Feed) broadcast(r Reading) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.last = &r
	for ch := range f.subs {
		Offer(ch, r)
	}
	for _, ch := range f.wait {
		ch <- r
	}
	f.wait = nil
}

// Offer кладёт показание в буфер на одно место, вытесняя устаревшее.
func Offer(ch chan Reading, r Reading) {
	select {
	case ch <- r:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- r:
	default:
	}
}

// CurrentLocation возвращает последнее показание или ждёт следующего.
func (f *Feed) CurrentLocation(ctx context.Context) (entity.LocationSample, error) {
	f.mu.Lock()
	if f.last != nil {
		r := *f.last
		f.mu.Unlock()
		return r.Sample, r.Err
	}
	ch := make(chan Reading, 1)
	f.wait = append(f.wait, ch)
	f.mu.Unlock()

	select {
	case r := <-ch:
		return r.Sample, r.Err
	case <-ctx.Done():
		return entity.LocationSample{}, ctx.Err()
	}
}

func (f *Feed) Watch(ctx context.Context) (<-chan Reading, error) {
	ch := make(chan Reading, 1)

	f.mu.Lock()
	f.subs[ch] = struct{}{}
	if f.last != nil {
		ch <- *f.last
	}
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		delete(f.subs, ch)
		close(ch)
		f.mu.Unlock()
	}()
	return ch, nil
}

// Subscribers число активных подписок.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
