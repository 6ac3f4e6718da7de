package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/island-is/cache/internal/backend"
	"github.com/island-is/cache/internal/backend/local"
	"github.com/island-is/cache/internal/backend/s3store"
	"github.com/island-is/cache/internal/config"
	"github.com/island-is/cache/internal/metrics"
	"github.com/island-is/cache/internal/runner"
	"github.com/island-is/cache/internal/runstate"
)

// session 持有一次运行所需的后端与状态存储，Close 时按相反顺序释放。
type session struct {
	backend *backend.Logged
	state   runstate.Store
	logger  logrus.FieldLogger
}

// openSession 按照“状态存储 → 归档器 → 后端 → 异步错误出口”的顺序装配组件。
func openSession(ctx context.Context, cfg *config.Config, env runner.Environment, runID string, logger logrus.FieldLogger) (*session, error) {
	state, err := runstate.Open(cfg.State, env, runID)
	if err != nil {
		return nil, fmt.Errorf("初始化状态存储失败: %w", err)
	}

	b, err := openBackend(ctx, cfg.Backend, env)
	if err != nil {
		state.Close()
		return nil, fmt.Errorf("初始化缓存后端失败: %w", err)
	}

	logged := backend.WithLogging(b, logger.WithField("backend", cfg.Summary()), metrics.NewLatencyTracker(0.01))
	// 异步失败只记录警告，不影响本次运行结果
	logged.SetAsyncErrorHandler(func(err error) {
		logger.Warn(err.Error())
	})

	return &session{backend: logged, state: state, logger: logger}, nil
}

func openBackend(ctx context.Context, cfg config.BackendConfig, env runner.Environment) (backend.Backend, error) {
	compression, err := backend.ParseCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}
	archiver, err := backend.NewArchiver(env.Workspace, env.TempDir, compression)
	if err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case config.BackendS3:
		client, err := s3store.NewClient(ctx, s3store.ClientOptions{
			Region:       cfg.S3Region,
			Endpoint:     cfg.S3Endpoint,
			UsePathStyle: cfg.S3UsePathStyle,
		})
		if err != nil {
			return nil, err
		}
		store, err := s3store.New(client, cfg.S3Bucket, cfg.S3Prefix, archiver)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		store, err := local.New(cfg.StoragePath, archiver)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}

// Close 等待后端后台任务结束后再摘除异步错误出口。
func (s *session) Close() {
	if err := s.backend.Close(); err != nil {
		s.logger.WithError(err).Warn("close cache backend")
	}
	s.backend.SetAsyncErrorHandler(nil)
	if err := s.state.Close(); err != nil {
		s.logger.WithError(err).Debug("close run state")
	}
}
