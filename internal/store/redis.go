package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/johncmanuel/isabot/internal/config"
	"github.com/johncmanuel/isabot/internal/domain"
)

// Redis implements RecordStore on a Redis server. Compare-and-set maps to
// SET NX / SET XX; prefix scans walk the keyspace with SCAN and sort
// client-side, which is fine at guild scale.
type Redis struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(cfg *config.RedisConfig, logger *slog.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &Redis{client: client, logger: logger}, nil
}

func (s *Redis) Scan(ctx context.Context, prefix string) ([]KeyValue, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scanning prefix %q: %w", prefix, err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	sort.Strings(keys)

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("fetching scanned keys: %w", err)
	}

	results := make([]KeyValue, 0, len(keys))
	for i, v := range values {
		// A key deleted between SCAN and MGET comes back nil; skip it.
		str, ok := v.(string)
		if !ok {
			continue
		}
		results = append(results, KeyValue{Key: keys[i], Value: []byte(str)})
	}
	return results, nil
}

func (s *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting key %q: %w", key, err)
	}
	return val, nil
}

func (s *Redis) CompareAndSet(ctx context.Context, key string, expectAbsent bool, value []byte) (bool, error) {
	var ok bool
	var err error
	if expectAbsent {
		ok, err = s.client.SetNX(ctx, key, value, 0).Result()
	} else {
		ok, err = s.client.SetXX(ctx, key, value, 0).Result()
	}
	if err != nil {
		return false, fmt.Errorf("compare-and-set %q: %w", key, err)
	}
	return ok, nil
}

func (s *Redis) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("setting key %q: %w", key, err)
	}
	return nil
}

func (s *Redis) Close() error {
	return s.client.Close()
}
