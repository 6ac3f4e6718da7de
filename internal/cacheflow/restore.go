package cacheflow

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/island-is/cache/internal/gate"
	"github.com/island-is/cache/internal/runner"
)

// RestoreInput 是 restore 阶段的调用参数。ForceSkip 为 true 时只记录 primary key，不做查找。
type RestoreInput struct {
	Paths       []string
	PrimaryKey  string
	RestoreKeys []string
	ForceSkip   bool
}

// RestoreResult 对应 cache-hit 与 success 两个输出。
type RestoreResult struct {
	Hit        bool
	Success    bool
	Resolution Resolution
}

// Restorer 编排 restore 阶段：环境检查、记录状态、查找、上报结果。
type Restorer struct {
	resolver *Resolver
	state    StateStore
	env      runner.Environment
	logger   logrus.FieldLogger
}

func NewRestorer(resolver *Resolver, state StateStore, env runner.Environment, logger logrus.FieldLogger) *Restorer {
	return &Restorer{resolver: resolver, state: state, env: env, logger: logger}
}

// Run 执行一次 restore。返回的 error 只可能是校验类错误，调用方应据此让本次运行失败。
func (r *Restorer) Run(ctx context.Context, in RestoreInput) (RestoreResult, error) {
	if verdict := gate.Check(r.env); !verdict.Allowed {
		r.logger.WithField("code", string(verdict.Code)).Warn(verdict.Reason)
		return RestoreResult{}, nil
	}

	// save 阶段依赖 primary key，必须在任何可能失败的步骤之前写入
	if err := r.state.Set(ctx, StateCachePrimaryKey, in.PrimaryKey); err != nil {
		r.logger.WithError(err).Warn("failed to save primary key to run state")
	}

	if in.ForceSkip {
		r.logger.Info("force-cache-save is set, skipping cache restore")
		return RestoreResult{Success: true}, nil
	}

	res, err := r.resolver.Resolve(ctx, in.Paths, in.PrimaryKey, in.RestoreKeys)
	if err != nil {
		return RestoreResult{}, err
	}

	if res.Kind == NoMatch {
		keys := append([]string{in.PrimaryKey}, in.RestoreKeys...)
		r.logger.Infof("Cache not found for input keys: %s", strings.Join(keys, ", "))
		return RestoreResult{Success: true, Resolution: res}, nil
	}

	if err := r.state.Set(ctx, StateCacheMatchedKey, res.Key); err != nil {
		r.logger.WithError(err).Warn("failed to save matched key to run state")
		return RestoreResult{Success: true, Resolution: res}, nil
	}

	r.logger.Infof("Cache restored from key: %s", res.Key)
	return RestoreResult{Hit: res.Hit(), Success: true, Resolution: res}, nil
}
