package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/paincake00/geoclock/internal/entity"
	"github.com/paincake00/geoclock/internal/tracking"
)

func lastLocationKey(userID string) string {
	return "last_location:" + userID
}

func locationChannel(userID string) string {
	return "location:" + userID
}

// PublishLocation сохраняет последнее местоположение и рассылает его подписчикам.
// Ключ живёт LocationMaxAge: более старый образец текущим местоположением не считается.
func (r *RedisRepo) PublishLocation(ctx context.Context, userID string, s entity.LocationSample) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	_, err = r.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, lastLocationKey(userID), data, r.LocationMaxAge)
		p.Publish(ctx, locationChannel(userID), data)
		return nil
	})
	return err
}

// SensorFor датчик, читающий образцы пользователя из Redis.
func (r *RedisRepo) SensorFor(userID string) tracking.Sensor {
	return &LocationSensor{client: r.Client, userID: userID, maxAge: r.LocationMaxAge, now: time.Now}
}

// LocationSensor подписка на канал location:<user>.
// Образцы старше maxAge датчик не отдаёт.
type LocationSensor struct {
	client *redis.Client
	userID string
	maxAge time.Duration
	now    func() time.Time
}

func (s *LocationSensor) fresh(sample entity.LocationSample) bool {
	return tracking.Fresh(sample, s.now(), s.maxAge)
}

var _ tracking.Sensor = (*LocationSensor)(nil)

func (s *LocationSensor) last(ctx context.Context) (*entity.LocationSample, error) {
	val, err := s.client.Get(ctx, lastLocationKey(s.userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, &entity.LocationError{Kind: entity.LocationPositionUnavailable, Err: err}
	}
	var sample entity.LocationSample
	if err := json.Unmarshal(val, &sample); err != nil {
		return nil, &entity.LocationError{Kind: entity.LocationUnknown, Err: err}
	}
	return &sample, nil
}

func decode(msg *redis.Message) tracking.Reading {
	var sample entity.LocationSample
	if err := json.Unmarshal([]byte(msg.Payload), &sample); err != nil {
		return tracking.Reading{Err: &entity.LocationError{Kind: entity.LocationUnknown, Err: err}}
	}
	return tracking.Reading{Sample: sample}
}

// CurrentLocation последнее известное свежее местоположение или первое свежее опубликованное после вызова.
func (s *LocationSensor) CurrentLocation(ctx context.Context) (entity.LocationSample, error) {
	// Подписка до чтения ключа, чтобы не пропустить публикацию между ними.
	sub := s.client.Subscribe(ctx, locationChannel(s.userID))
	defer sub.Close()

	sample, err := s.last(ctx)
	if err != nil {
		return entity.LocationSample{}, err
	}
	if sample != nil && s.fresh(*sample) {
		return *sample, nil
	}

	msgs := sub.Channel()
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return entity.LocationSample{}, &entity.LocationError{Kind: entity.LocationPositionUnavailable}
			}
			r := decode(msg)
			if r.Err != nil {
				return r.Sample, r.Err
			}
			if s.fresh(r.Sample) {
				return r.Sample, nil
			}
		case <-ctx.Done():
			return entity.LocationSample{}, ctx.Err()
		}
	}
}

// Watch подписка на образцы пользователя. Первым приходит последнее известное местоположение, если оно свежее.
func (s *LocationSensor) Watch(ctx context.Context) (<-chan tracking.Reading, error) {
	sub := s.client.Subscribe(ctx, locationChannel(s.userID))
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, &entity.LocationError{Kind: entity.LocationPositionUnavailable, Err: err}
	}

	out := make(chan tracking.Reading, 1)
	if sample, err := s.last(ctx); err == nil && sample != nil && s.fresh(*sample) {
		out <- tracking.Reading{Sample: *sample}
	}

	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				tracking.Offer(out, decode(msg))
			}
		}
	}()
	return out, nil
}
