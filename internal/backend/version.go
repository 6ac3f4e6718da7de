package backend

import (
	"encoding/hex"
	"strings"

	"github.com/zeebo/blake3"
)

// versionSalt 参与版本计算，修改它会让所有已有条目失效。
const versionSalt = "island-is.cache.v1"

// Version 由路径模式与压缩方式派生缓存版本；路径或压缩方式不同的条目互不匹配。
func Version(paths []string, compression Compression) string {
	components := append(append([]string{}, paths...), compression.String(), versionSalt)
	sum := blake3.Sum256([]byte(strings.Join(components, "|")))
	return hex.EncodeToString(sum[:])
}

// EntryName 将任意 key 映射为可安全用作文件名的 BLAKE3 十六进制摘要。
func EntryName(key string) string {
	sum := blake3.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
