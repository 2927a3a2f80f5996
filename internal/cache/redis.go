// Package cache реализует кэш на основе Redis для списков тарифов и фильмов,
// а также одноразовые флаги предупреждений об истечении подписки.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/magabrotheeeer/kinozal-backend/internal/config"
	"github.com/redis/go-redis/v9"
)

// Cache инкапсулирует клиент Redis.
type Cache struct {
	Db *redis.Client
}

// InitServer создаёт клиент Redis и проверяет соединение.
func InitServer(ctx context.Context, cfg config.RedisConnection) (*Cache, error) {
	const op = "cache.InitServer"
	db := redis.NewClient(&redis.Options{
		Addr:         cfg.AddressRedis,
		Password:     cfg.Password,
		DB:           cfg.DB,
		Username:     cfg.User,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.TimeoutRedis,
		WriteTimeout: cfg.TimeoutRedis,
	})

	if err := db.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Cache{Db: db}, nil
}

// Get читает значение по ключу и десериализует его в result.
// Возвращает false, если ключа нет.
func (c *Cache) Get(key string, result any) (bool, error) {
	const op = "cache.Get"
	val, err := c.Db.Get(context.Background(), key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	err = json.Unmarshal([]byte(val), result)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// Set сериализует value в JSON и сохраняет его с указанным временем жизни.
func (c *Cache) Set(key string, value any, expiration time.Duration) error {
	jsonData, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.Db.Set(context.Background(), key, jsonData, expiration).Err()
}

// Invalidate удаляет ключ из кэша.
func (c *Cache) Invalidate(key string) error {
	return c.Db.Del(context.Background(), key).Err()
}

// SetFlagOnce атомарно устанавливает флаг, если он ещё не установлен.
// Возвращает true, если флаг установлен этим вызовом. Используется,
// чтобы предупреждение об истечении подписки уходило пользователю
// один раз за сессию.
func (c *Cache) SetFlagOnce(ctx context.Context, key string, expiration time.Duration) (bool, error) {
	const op = "cache.SetFlagOnce"
	ok, err := c.Db.SetNX(ctx, key, "1", expiration).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return ok, nil
}

// ClearFlag сбрасывает флаг. Вызывается при входе пользователя,
// чтобы новая сессия снова получила предупреждение.
func (c *Cache) ClearFlag(ctx context.Context, key string) error {
	const op = "cache.ClearFlag"
	if err := c.Db.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
