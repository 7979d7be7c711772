package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/paincake00/geoclock/internal/entity"
)

// shiftTTL маркер смены старше суток всё равно отбрасывается при восстановлении.
const shiftTTL = 36 * time.Hour

func shiftKey(userID string) string {
	return "current_shift:" + userID
}

// GetShift возвращает маркер открытой смены или nil.
func (r *RedisRepo) GetShift(ctx context.Context, userID string) (*entity.Shift, error) {
	val, err := r.Client.Get(ctx, shiftKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var s entity.Shift
	if err := json.Unmarshal(val, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SetShift сохраняет маркер смены пользователя.
func (r *RedisRepo) SetShift(ctx context.Context, s *entity.Shift) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.Client.Set(ctx, shiftKey(s.UserID), data, shiftTTL).Err()
}

// DeleteShift удаляет маркер смены.
func (r *RedisRepo) DeleteShift(ctx context.Context, userID string) error {
	return r.Client.Del(ctx, shiftKey(userID)).Err()
}
