package runstate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/island-is/cache/internal/config"
	"github.com/island-is/cache/internal/runner"
)

// ErrRunIDRequired 表示 file/redis 驱动缺少 run 标识，无法把两个阶段对应起来。
var ErrRunIDRequired = errors.New("run id required for this state driver: set --run-id or CACHE_RUN_ID")

// Store 保存跨阶段的字符串状态。Get 对不存在的名称返回空串与 nil。
type Store interface {
	Get(ctx context.Context, name string) (string, error)
	Set(ctx context.Context, name, value string) error
	Close() error
}

// Open 根据配置选择状态驱动。runID 为空时使用 runner 提供的 run 标识。
func Open(cfg config.StateConfig, env runner.Environment, runID string) (Store, error) {
	if strings.TrimSpace(runID) == "" {
		runID = env.RunIdentity()
	}

	switch cfg.StateDriver {
	case config.StateDriverGitHub, "":
		return NewGitHub(env.StateFile, nil), nil
	case config.StateDriverFile:
		return NewFile(cfg.StatePath, runID)
	case config.StateDriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		store, err := NewRedis(client, runID, cfg.RedisStateTTL.DurationValue())
		if err != nil {
			client.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported state driver %q", cfg.StateDriver)
	}
}
