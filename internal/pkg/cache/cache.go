package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// 两级缓存的时间窗口。快存 TTL 同时用于回源写入和持久层回填（warm-up）。
const (
	FastTTL          = 30 * time.Minute
	DurableStaleness = 6 * time.Hour
)

// Store 快存契约：get 可 miss，set 带 TTL
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RedisStore Redis 快存实现
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache get %s: %w", key, err)
	}
	return val, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// GetJSON 读取并反序列化，miss 或反序列化失败都按 miss 处理
func GetJSON(ctx context.Context, s Store, key string, dest interface{}) (bool, error) {
	val, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		// 损坏的缓存按 miss 处理，回源覆盖
		return false, nil
	}
	return true, nil
}

// SetJSON 序列化后写入
func SetJSON(ctx context.Context, s Store, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal %s: %w", key, err)
	}
	return s.Set(ctx, key, string(data), ttl)
}
