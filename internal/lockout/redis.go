package lockout

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// DefaultConnectTimeout bounds the startup ping.
const DefaultConnectTimeout = 5 * time.Second

const keyPrefix = "clinic-bff:lockout:"

// incrScript increments and arms the expiry only on the first failure so the
// window stays fixed from that point.
var incrScript = goredis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return {n, redis.call('PTTL', KEYS[1])}
`)

// RedisConfig holds the connection settings for RedisStore.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore shares counters across gateway replicas.
type RedisStore struct {
	client *goredis.Client
}

// NewRedisStore connects and pings Redis.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), DefaultConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (r *RedisStore) Get(ctx context.Context, key string) (int, time.Duration, error) {
	k := keyPrefix + key

	pipe := r.client.Pipeline()
	get := pipe.Get(ctx, k)
	ttl := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, goredis.Nil) {
		return 0, 0, err
	}

	n, err := get.Int()
	if errors.Is(err, goredis.Nil) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, err
	}
	return n, clampTTL(ttl.Val()), nil
}

func (r *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	res, err := incrScript.Run(ctx, r.client, []string{keyPrefix + key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, 0, err
	}
	if len(res) != 2 {
		return 0, 0, fmt.Errorf("unexpected lockout script reply %v", res)
	}
	return int(res[0]), clampTTL(time.Duration(res[1]) * time.Millisecond), nil
}

func (r *RedisStore) Reset(ctx context.Context, key string) error {
	return r.client.Del(ctx, keyPrefix+key).Err()
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

// clampTTL maps Redis' negative sentinels (no key, no expiry) to zero.
func clampTTL(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
