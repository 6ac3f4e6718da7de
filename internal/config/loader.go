package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// DefaultConfigPath 是未显式指定配置文件时尝试读取的路径，文件缺失时仅使用默认值。
const DefaultConfigPath = "cache.toml"

// EnvPrefix 允许通过 CACHE_<KEY> 环境变量覆盖配置文件中的同名字段。
const EnvPrefix = "CACHE"

// Load 读取并解析 TOML 配置文件，同时注入默认值、环境变量覆盖与校验逻辑。
// path 为空时尝试 DefaultConfigPath，不存在则只使用默认值。
func Load(path string) (*Config, error) {
	optional := false
	if path == "" {
		path = DefaultConfigPath
		optional = true
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if !optional || !isNotExist(err) {
			return nil, fmt.Errorf("读取配置失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)
	applyBackendDefaults(&cfg.Backend)
	applyStateDefaults(&cfg.State)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Backend.Backend == BackendFS {
		absStorage, err := filepath.Abs(cfg.Backend.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("无法解析缓存目录: %w", err)
		}
		cfg.Backend.StoragePath = absStorage
	}

	return &cfg, nil
}

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return true
	}
	return errors.Is(err, fs.ErrNotExist)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFormat", LogFormatGitHub)
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("OperationTimeout", "0")
	v.SetDefault("Backend", BackendFS)
	v.SetDefault("StoragePath", "")
	v.SetDefault("Compression", CompressionZstd)
	v.SetDefault("S3Bucket", "")
	v.SetDefault("S3Prefix", "")
	v.SetDefault("S3Region", "")
	v.SetDefault("S3Endpoint", "")
	v.SetDefault("S3UsePathStyle", false)
	v.SetDefault("StateDriver", StateDriverGitHub)
	v.SetDefault("StatePath", "")
	v.SetDefault("RedisAddr", "")
	v.SetDefault("RedisPassword", "")
	v.SetDefault("RedisDB", 0)
	v.SetDefault("RedisStateTTL", "24h")
}

func applyGlobalDefaults(g *GlobalConfig) {
	g.LogLevel = strings.ToLower(strings.TrimSpace(g.LogLevel))
	if g.LogLevel == "" {
		g.LogLevel = "info"
	}
	g.LogFormat = strings.ToLower(strings.TrimSpace(g.LogFormat))
	if g.LogFormat == "" {
		g.LogFormat = LogFormatGitHub
	}
}

func applyBackendDefaults(b *BackendConfig) {
	b.Backend = strings.ToLower(strings.TrimSpace(b.Backend))
	if b.Backend == "" {
		b.Backend = BackendFS
	}
	b.Compression = strings.ToLower(strings.TrimSpace(b.Compression))
	if b.Compression == "" {
		b.Compression = CompressionZstd
	}
	if b.Backend == BackendFS && b.StoragePath == "" {
		b.StoragePath = defaultStoragePath()
	}
	b.S3Prefix = strings.Trim(b.S3Prefix, "/")
}

func applyStateDefaults(s *StateConfig) {
	s.StateDriver = strings.ToLower(strings.TrimSpace(s.StateDriver))
	if s.StateDriver == "" {
		s.StateDriver = StateDriverGitHub
	}
	if s.StateDriver == StateDriverFile && s.StatePath == "" {
		s.StatePath = filepath.Join(os.TempDir(), "cache-state")
	}
	if s.RedisStateTTL.DurationValue() < 0 {
		s.RedisStateTTL = Duration(0)
	}
}

// defaultStoragePath 优先使用用户缓存目录，失败时退回临时目录。
func defaultStoragePath() string {
	if dir, err := os.UserCacheDir(); err == nil && dir != "" {
		return filepath.Join(dir, "island-is-cache")
	}
	return filepath.Join(os.TempDir(), "island-is-cache")
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
