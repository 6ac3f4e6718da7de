package runstate

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNilClient 表示未提供 redis 客户端。
var ErrNilClient = errors.New("runstate: nil redis client")

const redisKeyPrefix = "cache-state:"

// Redis 以 hash cache-state:<runID> 保存状态，ttl > 0 时每次写入都会刷新过期时间。
type Redis struct {
	rdb redis.UniversalClient
	key string
	ttl time.Duration
}

var _ Store = (*Redis)(nil)

// NewRedis 创建 redis 状态存储，Close 时关闭 client。
func NewRedis(client redis.UniversalClient, runID string, ttl time.Duration) (*Redis, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return nil, ErrRunIDRequired
	}
	return &Redis{rdb: client, key: redisKeyPrefix + runID, ttl: ttl}, nil
}

func (r *Redis) Get(ctx context.Context, name string) (string, error) {
	value, err := r.rdb.HGet(ctx, r.key, name).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (r *Redis) Set(ctx context.Context, name, value string) error {
	if r.ttl <= 0 {
		return r.rdb.HSet(ctx, r.key, name, value).Err()
	}
	_, err := r.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, r.key, name, value)
		p.Expire(ctx, r.key, r.ttl)
		return nil
	})
	return err
}

func (r *Redis) Close() error {
	if err := r.rdb.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return err
	}
	return nil
}
