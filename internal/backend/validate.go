package backend

import (
	"strings"
	"unicode/utf8"
)

// 与托管缓存服务一致的 key 限制。
const (
	MaxKeys      = 10
	MaxKeyLength = 512
)

// ValidatePaths 要求至少一个路径模式。
func ValidatePaths(op string, paths []string) error {
	if len(paths) == 0 {
		return Validation(op, "Path Validation Error: At least one directory or file path is required")
	}
	return nil
}

// ValidateKey 校验单个 key 的长度与字符。
func ValidateKey(op, key string) error {
	if key == "" {
		return Validation(op, "Key Validation Error: key cannot be empty.")
	}
	if utf8.RuneCountInString(key) > MaxKeyLength {
		return Validation(op, "Key Validation Error: %s cannot be larger than %d characters.", key, MaxKeyLength)
	}
	if strings.Contains(key, ",") {
		return Validation(op, "Key Validation Error: %s cannot contain commas.", key)
	}
	return nil
}

// ValidateKeys 校验 primaryKey 与 restoreKeys 的总数以及每个 key。
func ValidateKeys(op, primaryKey string, restoreKeys []string) error {
	keys := append([]string{primaryKey}, restoreKeys...)
	if len(keys) > MaxKeys {
		return Validation(op, "Key Validation Error: Keys are limited to a maximum of %d.", MaxKeys)
	}
	for _, key := range keys {
		if err := ValidateKey(op, key); err != nil {
			return err
		}
	}
	return nil
}
