package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"courtbook/internal/config"
	"courtbook/internal/models"

	"github.com/redis/go-redis/v9"
)

type RedisAvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	client := redis.NewClient(options)

	return client
}

func NewRedisAvailabilityCache(client *redis.Client, ttl time.Duration) *RedisAvailabilityCache {
	if ttl <= 0 {
		ttl = models.AvailabilityCacheTTL * time.Second
	}
	return &RedisAvailabilityCache{
		client: client,
		ttl:    ttl,
	}
}

func availabilityKey(coachID int64, date string) string {
	return fmt.Sprintf("availability:%d:%s", coachID, date)
}

func (r *RedisAvailabilityCache) Get(ctx context.Context, coachID int64, date string) (*models.DayAvailability, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, availabilityKey(coachID, date)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get availability from redis: %w", err)
	}

	var availability models.DayAvailability
	if err := json.Unmarshal([]byte(val), &availability); err != nil {
		return nil, fmt.Errorf("failed to unmarshal availability: %w", err)
	}

	return &availability, nil
}

func (r *RedisAvailabilityCache) Set(ctx context.Context, availability *models.DayAvailability) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(availability)
	if err != nil {
		return fmt.Errorf("failed to marshal availability: %w", err)
	}

	key := availabilityKey(availability.CoachID, availability.Date)
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set availability in redis: %w", err)
	}

	return nil
}

func (r *RedisAvailabilityCache) Invalidate(ctx context.Context, coachID int64, date string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, availabilityKey(coachID, date)).Err(); err != nil {
		return fmt.Errorf("failed to delete availability from redis: %w", err)
	}
	return nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
