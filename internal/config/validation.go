package config

import (
	"errors"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
)

var supportedBackends = map[string]struct{}{
	BackendFS: {},
	BackendS3: {},
}

var supportedCompressions = map[string]struct{}{
	CompressionZstd: {},
	CompressionLZ4:  {},
}

var supportedStateDrivers = map[string]struct{}{
	StateDriverGitHub: {},
	StateDriverFile:   {},
	StateDriverRedis:  {},
}

var supportedLogFormats = map[string]struct{}{
	LogFormatJSON:   {},
	LogFormatText:   {},
	LogFormatGitHub: {},
}

// Validate 针对语义级别做进一步校验，防止非法配置进入 restore/save 流程。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if _, err := logrus.ParseLevel(g.LogLevel); err != nil {
		return newFieldError("Global.LogLevel", "无法识别的日志级别 "+g.LogLevel)
	}
	if _, ok := supportedLogFormats[g.LogFormat]; !ok {
		return newFieldError("Global.LogFormat", "仅支持 json|text|github")
	}
	if g.LogFilePath != "" && g.LogMaxSize <= 0 {
		return newFieldError("Global.LogMaxSize", "必须大于 0")
	}
	if g.LogMaxBackups < 0 {
		return newFieldError("Global.LogMaxBackups", "不能为负数")
	}
	if g.OperationTimeout.DurationValue() < 0 {
		return newFieldError("Global.OperationTimeout", "不能为负数")
	}

	b := c.Backend
	if _, ok := supportedBackends[b.Backend]; !ok {
		return newFieldError("Backend.Backend", "仅支持 fs|s3")
	}
	if _, ok := supportedCompressions[b.Compression]; !ok {
		return newFieldError("Backend.Compression", "仅支持 zstd|lz4")
	}
	switch b.Backend {
	case BackendFS:
		if strings.TrimSpace(b.StoragePath) == "" {
			return newFieldError("Backend.StoragePath", "不能为空")
		}
	case BackendS3:
		if strings.TrimSpace(b.S3Bucket) == "" {
			return newFieldError("Backend.S3Bucket", "s3 后端必须配置 bucket")
		}
		if b.S3Endpoint != "" {
			if err := validateEndpoint(b.S3Endpoint); err != nil {
				return newFieldError("Backend.S3Endpoint", err.Error())
			}
		}
	}

	s := c.State
	if _, ok := supportedStateDrivers[s.StateDriver]; !ok {
		return newFieldError("State.StateDriver", "仅支持 github|file|redis")
	}
	switch s.StateDriver {
	case StateDriverFile:
		if strings.TrimSpace(s.StatePath) == "" {
			return newFieldError("State.StatePath", "不能为空")
		}
	case StateDriverRedis:
		if strings.TrimSpace(s.RedisAddr) == "" {
			return newFieldError("State.RedisAddr", "redis 状态驱动必须配置地址")
		}
		if s.RedisDB < 0 {
			return newFieldError("State.RedisDB", "不能为负数")
		}
	}

	return nil
}

func validateEndpoint(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("仅支持 http/https")
	}
	if parsed.Host == "" {
		return errors.New("缺少 Host")
	}
	return nil
}
