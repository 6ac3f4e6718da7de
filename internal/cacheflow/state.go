package cacheflow

import "context"

// 跨阶段状态名称。
const (
	StateCachePrimaryKey = "CACHE_KEY"
	StateCacheMatchedKey = "CACHE_RESULT"
)

// StateStore 是两个阶段共享的键值状态，runstate 中的各驱动都满足该接口。
type StateStore interface {
	Get(ctx context.Context, name string) (string, error)
	Set(ctx context.Context, name, value string) error
}

// IsExactKeyMatch 判断命中的 key 是否就是 primaryKey。未记录命中与空串命中同样视为非精确。
func IsExactKeyMatch(primaryKey, matchedKey string) bool {
	return matchedKey != "" && matchedKey == primaryKey
}

// Decision 是 save 阶段的上传决定。
type Decision int

const (
	DecisionSkip Decision = iota
	DecisionSave
)

func (d Decision) String() string {
	if d == DecisionSave {
		return "save"
	}
	return "skip"
}

// Decide 计算上传决定：forceSave 优先，其次精确命中时跳过。
func Decide(primaryKey, matchedKey string, forceSave bool) Decision {
	if !forceSave && IsExactKeyMatch(primaryKey, matchedKey) {
		return DecisionSkip
	}
	return DecisionSave
}
