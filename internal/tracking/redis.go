package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// compareAndSetScript writes the record only while the stored revision still
// matches.
// KEYS[1] = record key
// ARGV[1] = expected revision
// ARGV[2] = encoded record
// ARGV[3] = ttl in seconds, 0 for none
var compareAndSetScript = redis.NewScript(`
local current = tonumber(redis.call("HGET", KEYS[1], "revision") or "0")
local expected = tonumber(ARGV[1])
if current ~= expected then
    return {0, current}
end
local updated = current + 1
redis.call("HSET", KEYS[1], "revision", updated, "body", ARGV[2])
local ttl = tonumber(ARGV[3])
if ttl > 0 then
    redis.call("EXPIRE", KEYS[1], ttl)
end
return {1, updated}
`)

// RedisStore keeps records in Redis hashes shared by every gateway instance.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Prefix is prepended to every conversation key.
	Prefix string
	// TTL expires idle conversations; zero keeps them forever.
	TTL time.Duration
}

func NewRedisStore(cfg RedisConfig) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisStoreWithClient(client, cfg.Prefix, cfg.TTL)
}

func NewRedisStoreWithClient(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "cardkit:"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Get(ctx context.Context, key string) (Record, error) {
	vals, err := s.client.HMGet(ctx, s.prefix+key, "revision", "body").Result()
	if err != nil {
		return Record{}, fmt.Errorf("redis get %s: %w", key, err)
	}
	body, _ := vals[1].(string)
	if body == "" {
		return Record{}, nil
	}
	return decodeRecord([]byte(body))
}

func (s *RedisStore) Set(ctx context.Context, key string, rec Record) (int64, error) {
	stored := rec
	stored.Revision = rec.Revision + 1
	data, err := encodeRecord(stored)
	if err != nil {
		return 0, err
	}

	res, err := compareAndSetScript.Run(ctx, s.client, []string{s.prefix + key},
		rec.Revision, string(data), int64(s.ttl/time.Second)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis set %s: %w", key, err)
	}
	results, ok := res.([]interface{})
	if !ok || len(results) != 2 {
		return 0, errors.New("redis set: invalid response from script")
	}
	written, _ := results[0].(int64)
	revision, _ := results[1].(int64)
	if written != 1 {
		return 0, &ConflictError{Key: key, ExpectedRevision: rec.Revision, CurrentRevision: revision}
	}
	return revision, nil
}
