package backend

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/island-is/cache/internal/metrics"
)

// Logged 包装任意 Backend，记录每次调用的参数、结果与耗时。
// 装饰器与具体实现解耦，fs/s3 无需各自处理调试日志。
type Logged struct {
	backend Backend
	logger  logrus.FieldLogger
	tracker *metrics.LatencyTracker
}

var (
	_ Backend       = (*Logged)(nil)
	_ AsyncReporter = (*Logged)(nil)
)

// WithLogging 创建日志装饰器；tracker 为空时只记录日志。
func WithLogging(b Backend, logger logrus.FieldLogger, tracker *metrics.LatencyTracker) *Logged {
	return &Logged{backend: b, logger: logger, tracker: tracker}
}

func (l *Logged) Restore(ctx context.Context, paths []string, primaryKey string, restoreKeys []string) (string, error) {
	fields := logrus.Fields{
		"op":           metrics.OpRestore,
		"primary_key":  primaryKey,
		"restore_keys": restoreKeys,
		"paths":        paths,
	}
	l.logger.WithFields(fields).Debug("backend restore")

	start := time.Now()
	var key string
	err := l.observe(metrics.OpRestore, func() (err error) {
		key, err = l.backend.Restore(ctx, paths, primaryKey, restoreKeys)
		return err
	})

	fields["elapsed"] = time.Since(start).String()
	if err != nil {
		fields["kind"] = KindOf(err).String()
		l.logger.WithFields(fields).WithError(err).Debug("backend restore failed")
		return key, err
	}
	fields["matched_key"] = key
	l.logger.WithFields(fields).Debug("backend restore done")
	return key, nil
}

func (l *Logged) Save(ctx context.Context, paths []string, key string, opts SaveOptions) error {
	fields := logrus.Fields{
		"op":                metrics.OpSave,
		"key":               key,
		"paths":             paths,
		"upload_chunk_size": opts.UploadChunkSize,
	}
	l.logger.WithFields(fields).Debug("backend save")

	start := time.Now()
	err := l.observe(metrics.OpSave, func() error {
		return l.backend.Save(ctx, paths, key, opts)
	})

	fields["elapsed"] = time.Since(start).String()
	if err != nil {
		fields["kind"] = KindOf(err).String()
		l.logger.WithFields(fields).WithError(err).Debug("backend save failed")
		return err
	}
	l.logger.WithFields(fields).Debug("backend save done")
	return nil
}

// Close 关闭底层后端并输出耗时统计。
func (l *Logged) Close() error {
	err := l.backend.Close()
	if l.tracker != nil {
		for _, stat := range l.tracker.Snapshot() {
			l.logger.WithField("op", stat.Operation).Debug(stat.String())
		}
	}
	if err != nil {
		l.logger.WithError(err).Debug("backend close failed")
	}
	return err
}

// SetAsyncErrorHandler 透传给支持异步错误上报的底层后端。
func (l *Logged) SetAsyncErrorHandler(handler func(error)) {
	if r, ok := l.backend.(AsyncReporter); ok {
		r.SetAsyncErrorHandler(handler)
	}
}

func (l *Logged) observe(op string, fn func() error) error {
	if l.tracker == nil {
		return fn()
	}
	return l.tracker.Observe(op, fn)
}
