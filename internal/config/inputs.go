package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// action 输入名称，与 workflow 中 `with:` 下的键保持一致。
const (
	InputKey             = "key"
	InputPath            = "path"
	InputRestoreKeys     = "restore-keys"
	InputUploadChunkSize = "upload-chunk-size"
	InputForceCacheSave  = "force-cache-save"
	InputRunID           = "run-id"
)

// InputEnvPrefix 是 runner 注入 action 输入时使用的环境变量前缀（INPUT_<NAME>）。
const InputEnvPrefix = "INPUT"

// Inputs 汇总一次 restore/save 调用的 action 输入。
type Inputs struct {
	Key             string
	Paths           []string
	RestoreKeys     []string
	UploadChunkSize int64
	ForceCacheSave  bool
	RunID           string
}

// RegisterInputFlags 在 flag 集上注册与 action 输入同名的参数，命令行值优先于 INPUT_ 环境变量。
func RegisterInputFlags(fs *pflag.FlagSet) {
	fs.String(InputKey, "", "primary cache key")
	fs.StringArray(InputPath, nil, "path pattern to cache (repeatable)")
	fs.StringArray(InputRestoreKeys, nil, "ordered fallback key prefix (repeatable)")
	fs.String(InputUploadChunkSize, "", "upload chunk size in bytes, passed to the backend")
	fs.String(InputForceCacheSave, "", "skip restore and always save the cache (true/false)")
	fs.String(InputRunID, "", "run identity for file/redis state stores (default from GITHUB_RUN_ID)")
}

// LoadInputs 合并命令行与 INPUT_ 环境变量，requireKey 控制 key 是否为必填。
func LoadInputs(fs *pflag.FlagSet, requireKey bool) (Inputs, error) {
	v := viper.New()
	v.SetEnvPrefix(InputEnvPrefix)
	v.AutomaticEnv()
	for _, name := range []string{InputKey, InputPath, InputRestoreKeys, InputUploadChunkSize, InputForceCacheSave} {
		if flag := fs.Lookup(name); flag != nil {
			if err := v.BindPFlag(name, flag); err != nil {
				return Inputs{}, fmt.Errorf("绑定参数 %s 失败: %w", name, err)
			}
		}
	}
	if err := v.BindEnv(InputRunID, EnvPrefix+"_RUN_ID"); err != nil {
		return Inputs{}, fmt.Errorf("绑定参数 %s 失败: %w", InputRunID, err)
	}
	if flag := fs.Lookup(InputRunID); flag != nil && flag.Changed {
		v.Set(InputRunID, flag.Value.String())
	}

	in := Inputs{
		Key:             strings.TrimSpace(v.GetString(InputKey)),
		Paths:           inputList(v.Get(InputPath)),
		RestoreKeys:     inputList(v.Get(InputRestoreKeys)),
		UploadChunkSize: inputInt(v.GetString(InputUploadChunkSize)),
		ForceCacheSave:  inputBool(v.GetString(InputForceCacheSave)),
		RunID:           strings.TrimSpace(v.GetString(InputRunID)),
	}

	if requireKey && in.Key == "" {
		return Inputs{}, newFieldError(inputField(InputKey), "Input required and not supplied")
	}
	if len(in.Paths) == 0 {
		return Inputs{}, newFieldError(inputField(InputPath), "Input required and not supplied")
	}
	return in, nil
}

var negationPrefix = regexp.MustCompile(`^!\s+`)

// inputList 将多行输入拆分为列表：去除首尾空白、丢弃空行，并把 "! pattern" 规整为 "!pattern"。
func inputList(raw interface{}) []string {
	var lines []string
	switch v := raw.(type) {
	case nil:
		return nil
	case []string:
		for _, item := range v {
			lines = append(lines, strings.Split(item, "\n")...)
		}
	case []interface{}:
		for _, item := range v {
			lines = append(lines, strings.Split(fmt.Sprint(item), "\n")...)
		}
	default:
		lines = strings.Split(fmt.Sprint(v), "\n")
	}

	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(negationPrefix.ReplaceAllString(line, "!"))
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// inputInt 解析非负整数，无法解析或为负时视为未设置。
func inputInt(raw string) int64 {
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || value < 0 {
		return 0
	}
	return value
}

func inputBool(raw string) bool {
	return strings.EqualFold(strings.TrimSpace(raw), "true")
}
