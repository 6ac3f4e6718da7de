package cacheflow

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/island-is/cache/internal/backend"
	"github.com/island-is/cache/internal/logging"
)

// MatchKind 描述一次查找的结果类别。
type MatchKind int

const (
	NoMatch MatchKind = iota
	ExactMatch
	FallbackMatch
)

func (k MatchKind) String() string {
	switch k {
	case ExactMatch:
		return "exact"
	case FallbackMatch:
		return "fallback"
	default:
		return "none"
	}
}

// Resolution 是查找结论；Kind 为 NoMatch 时 Key 为空。
type Resolution struct {
	Kind MatchKind
	Key  string
}

// Hit 仅在精确命中时为 true。
func (r Resolution) Hit() bool {
	return r.Kind == ExactMatch
}

// Resolver 调用后端 Restore 并把返回的 key 归类。
type Resolver struct {
	backend backend.Backend
	logger  logrus.FieldLogger
}

func NewResolver(b backend.Backend, logger logrus.FieldLogger) *Resolver {
	return &Resolver{backend: b, logger: logger}
}

// Resolve 只把校验类错误返回给调用方；其余后端错误记录后按未命中处理。
func (r *Resolver) Resolve(ctx context.Context, paths []string, primaryKey string, restoreKeys []string) (Resolution, error) {
	key, err := r.restore(ctx, paths, primaryKey, restoreKeys)
	if err != nil {
		if backend.IsValidation(err) {
			return Resolution{}, err
		}
		r.logger.WithFields(logging.KeyFields(primaryKey, "")).
			WithField("kind", backend.KindOf(err).String()).
			Error(err.Error())
		return Resolution{Kind: NoMatch}, nil
	}
	return classify(primaryKey, key), nil
}

// restore 把后端内部的 panic 转换为普通错误，下载失败只按未命中处理。
func (r *Resolver) restore(ctx context.Context, paths []string, primaryKey string, restoreKeys []string) (key string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			key = ""
			err = fmt.Errorf("unexpected error during cache restore: %v", rec)
		}
	}()
	return r.backend.Restore(ctx, paths, primaryKey, restoreKeys)
}

func classify(primaryKey, key string) Resolution {
	switch {
	case key == "":
		return Resolution{Kind: NoMatch}
	case IsExactKeyMatch(primaryKey, key):
		return Resolution{Kind: ExactMatch, Key: key}
	default:
		return Resolution{Kind: FallbackMatch, Key: key}
	}
}
