package iconcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Redis-backed Store for deployments where the icon
// cache should be shared across processes instead of living on local
// disk. Icon blobs are stored one key each; the index is a single
// JSON snapshot key, rewritten whole on every save like the disk
// index file.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// RedisConfig holds connection settings for the Redis icon store
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "newsticker:icons:"
	}

	return &RedisStore{client: client, prefix: prefix}, nil
}

func (s *RedisStore) indexKey() string {
	return s.prefix + "index"
}

func (s *RedisStore) iconKey(name string) string {
	return s.prefix + "blob:" + name
}

func (s *RedisStore) LoadIndex(ctx context.Context) (map[string]Entry, error) {
	data, err := s.client.Get(ctx, s.indexKey()).Bytes()
	if err != nil {
		if err == redis.Nil {
			return map[string]Entry{}, nil
		}
		return nil, fmt.Errorf("failed to read icon index: %w", err)
	}

	index := make(map[string]Entry)
	if err := json.Unmarshal(data, &index); err != nil {
		return map[string]Entry{}, nil
	}
	return index, nil
}

func (s *RedisStore) SaveIndex(ctx context.Context, index map[string]Entry) error {
	data, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("failed to encode icon index: %w", err)
	}
	if err := s.client.Set(ctx, s.indexKey(), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write icon index: %w", err)
	}
	return nil
}

func (s *RedisStore) ReadIcon(ctx context.Context, name string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.iconKey(name)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrIconNotFound
		}
		return nil, fmt.Errorf("failed to read icon: %w", err)
	}
	return data, nil
}

func (s *RedisStore) WriteIcon(ctx context.Context, name string, data []byte) error {
	if err := s.client.Set(ctx, s.iconKey(name), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write icon: %w", err)
	}
	return nil
}

func (s *RedisStore) DeleteIcon(ctx context.Context, name string) error {
	if err := s.client.Del(ctx, s.iconKey(name)).Err(); err != nil {
		return fmt.Errorf("failed to delete icon: %w", err)
	}
	return nil
}

func (s *RedisStore) ListIcons(ctx context.Context) ([]string, error) {
	var names []string
	iter := s.client.Scan(ctx, 0, s.prefix+"blob:*", 100).Iterator()
	for iter.Next(ctx) {
		names = append(names, iter.Val()[len(s.prefix)+len("blob:"):])
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan icon keys: %w", err)
	}
	return names, nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete key: %w", err)
		}
	}
	return iter.Err()
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ensure RedisStore implements Store
var _ Store = (*RedisStore)(nil)
