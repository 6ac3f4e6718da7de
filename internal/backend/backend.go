package backend

import (
	"context"
	"sort"
	"strings"
	"time"
)

// Backend 是缓存归档存储的抽象，fs 与 s3 实现都遵循同一份查找语义。
type Backend interface {
	// Restore 查找并解包缓存。优先精确匹配 primaryKey，否则按 restoreKeys 顺序做前缀匹配，
	// 同一前缀下取最新条目。未命中返回空串与 nil。
	Restore(ctx context.Context, paths []string, primaryKey string, restoreKeys []string) (string, error)

	// Save 打包 paths 并以 key 存储。key 已存在或正被其他任务写入时返回
	// KindReservationConflict 错误。所有失败都通过返回值同步报告。
	Save(ctx context.Context, paths []string, key string, opts SaveOptions) error

	// Close 等待后台工作结束并释放资源。
	Close() error
}

// SaveOptions 控制上传过程，UploadChunkSize 原样交给具体后端解释。
type SaveOptions struct {
	UploadChunkSize int64
}

// AsyncReporter 由可能在调用返回后仍有后台失败的后端实现（例如 multipart 清理）。
// 处理函数在进程级安装一次，后端在 Close 之前都可能调用它。
type AsyncReporter interface {
	SetAsyncErrorHandler(handler func(error))
}

// Entry 描述存储中的一个缓存条目，用于匹配选择。
type Entry struct {
	Key       string
	CreatedAt time.Time
}

// SelectMatch 在候选条目中按查找语义选出命中项：
// 先精确匹配 primaryKey；否则依次把每个 restoreKey 当作前缀，取该前缀下 CreatedAt 最新的条目，
// 第一个有候选的 restoreKey 胜出。
func SelectMatch(primaryKey string, restoreKeys []string, entries []Entry) (Entry, bool) {
	for _, e := range entries {
		if e.Key == primaryKey {
			return e, true
		}
	}

	for _, prefix := range restoreKeys {
		var matches []Entry
		for _, e := range entries {
			if strings.HasPrefix(e.Key, prefix) {
				matches = append(matches, e)
			}
		}
		if len(matches) == 0 {
			continue
		}
		sort.SliceStable(matches, func(i, j int) bool {
			return matches[i].CreatedAt.After(matches[j].CreatedAt)
		})
		return matches[0], true
	}
	return Entry{}, false
}
