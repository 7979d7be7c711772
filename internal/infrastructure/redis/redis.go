package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRepo реализация репозиториев на основе Redis: очередь, кеш геозон, маркеры смен и поток местоположений.
type RedisRepo struct {
	Client   *redis.Client
	CacheTTL time.Duration

	// LocationMaxAge TTL ключа last_location и предел возраста образца для датчиков. 0 без ограничения.
	LocationMaxAge time.Duration
}

// Options параметры подключения.
type Options struct {
	Addr           string
	Password       string
	DB             int
	CacheTTL       time.Duration
	LocationMaxAge time.Duration
}

// New создает новое подключение к Redis.
func New(opts Options) (*RedisRepo, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	repo := NewWithClient(client, opts.CacheTTL)
	repo.LocationMaxAge = opts.LocationMaxAge
	return repo, nil
}

// NewWithClient оборачивает готовый клиент.
func NewWithClient(client *redis.Client, cacheTTL time.Duration) *RedisRepo {
	if cacheTTL <= 0 {
		cacheTTL = 60 * time.Second
	}
	return &RedisRepo{Client: client, CacheTTL: cacheTTL}
}

// Close закрывает соединение.
func (r *RedisRepo) Close() {
	r.Client.Close()
}

// Ping проверяет доступность Redis.
func (r *RedisRepo) Ping(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}

// Queue (Очередь)

// Enqueue добавляет задачу в очередь списка (LPush).
func (r *RedisRepo) Enqueue(ctx context.Context, queueName string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return r.Client.LPush(ctx, queueName, data).Err()
}

// Dequeue извлекает задачу из очереди (BRPop - блокирующее чтение).
func (r *RedisRepo) Dequeue(ctx context.Context, queueName string) (string, error) {
	// 0 - бесконечное ожидание, выход по отмене контекста.
	result, err := r.Client.BRPop(ctx, 0, queueName).Result()
	if err != nil {
		return "", err
	}
	// result содержит [имя_очереди, значение]
	if len(result) < 2 {
		return "", fmt.Errorf("redis pop unexpected result")
	}
	return result[1], nil
}
