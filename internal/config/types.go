package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if seconds, err := time.ParseDuration(raw); err == nil {
		*d = Duration(seconds)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// 支持的后端、压缩、状态驱动与日志格式取值。
const (
	BackendFS = "fs"
	BackendS3 = "s3"

	CompressionZstd = "zstd"
	CompressionLZ4  = "lz4"

	StateDriverGitHub = "github"
	StateDriverFile   = "file"
	StateDriverRedis  = "redis"

	LogFormatJSON   = "json"
	LogFormatText   = "text"
	LogFormatGitHub = "github"
)

// GlobalConfig 描述日志等进程级行为，restore 与 save 共享同一份参数。
type GlobalConfig struct {
	LogLevel      string `mapstructure:"LogLevel"`
	LogFormat     string `mapstructure:"LogFormat"`
	LogFilePath   string `mapstructure:"LogFilePath"`
	LogMaxSize    int    `mapstructure:"LogMaxSize"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogCompress   bool   `mapstructure:"LogCompress"`
	// OperationTimeout 限制单次 restore/save 的总耗时，0 表示不限制。
	OperationTimeout Duration `mapstructure:"OperationTimeout"`
}

// BackendConfig 决定缓存归档存放在哪里以及如何压缩。
type BackendConfig struct {
	Backend        string `mapstructure:"Backend"`
	StoragePath    string `mapstructure:"StoragePath"`
	Compression    string `mapstructure:"Compression"`
	S3Bucket       string `mapstructure:"S3Bucket"`
	S3Prefix       string `mapstructure:"S3Prefix"`
	S3Region       string `mapstructure:"S3Region"`
	S3Endpoint     string `mapstructure:"S3Endpoint"`
	S3UsePathStyle bool   `mapstructure:"S3UsePathStyle"`
}

// StateConfig 描述 restore → save 之间的跨阶段状态保存在哪里。
type StateConfig struct {
	StateDriver   string   `mapstructure:"StateDriver"`
	StatePath     string   `mapstructure:"StatePath"`
	RedisAddr     string   `mapstructure:"RedisAddr"`
	RedisPassword string   `mapstructure:"RedisPassword"`
	RedisDB       int      `mapstructure:"RedisDB"`
	RedisStateTTL Duration `mapstructure:"RedisStateTTL"`
}

// Config 是 TOML 文件映射的整体结构，所有字段均位于顶层。
type Config struct {
	Global  GlobalConfig  `mapstructure:",squash"`
	Backend BackendConfig `mapstructure:",squash"`
	State   StateConfig   `mapstructure:",squash"`
}

// Summary 输出后端与状态驱动摘要，例如 fs:zstd/github，供日志字段使用。
func (c *Config) Summary() string {
	if c == nil {
		return ""
	}
	return fmt.Sprintf("%s:%s/%s", c.Backend.Backend, c.Backend.Compression, c.State.StateDriver)
}
