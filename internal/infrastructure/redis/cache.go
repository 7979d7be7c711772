package redis

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/paincake00/geoclock/internal/entity"
)

const GeofencesCacheKey = "active_geofences"

// SetGeofences сохраняет список геозон в кеш с TTL.
func (r *RedisRepo) SetGeofences(ctx context.Context, fences []*entity.Geofence) error {
	data, err := json.Marshal(fences)
	if err != nil {
		return err
	}
	return r.Client.Set(ctx, GeofencesCacheKey, data, r.CacheTTL).Err()
}

// GetGeofences получает список геозон из кеша.
func (r *RedisRepo) GetGeofences(ctx context.Context) ([]*entity.Geofence, error) {
	val, err := r.Client.Get(ctx, GeofencesCacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil // кеш пуст
	}
	if err != nil {
		return nil, err
	}

	fences := []*entity.Geofence{}
	if err := json.Unmarshal(val, &fences); err != nil {
		return nil, err
	}
	return fences, nil
}

// InvalidateGeofences удаляет кеш геозон.
func (r *RedisRepo) InvalidateGeofences(ctx context.Context) error {
	return r.Client.Del(ctx, GeofencesCacheKey).Err()
}
