package runner

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
)

// ErrCommandFileUnset 表示 runner 未提供对应的命令文件路径。
var ErrCommandFileUnset = errors.New("runner command file not set")

// delimiterPrefix 与 runner 侧解析 heredoc 的约定一致。
const delimiterPrefix = "ghadelimiter_"

// newDelimiter 可在测试中替换，以获得确定的输出。
var newDelimiter = func() string {
	return delimiterPrefix + uuid.NewString()
}

// FormatKeyValue 渲染一条 file command 记录：
//
//	name<<ghadelimiter_<uuid>
//	value
//	ghadelimiter_<uuid>
func FormatKeyValue(name, value string) (string, error) {
	delimiter := newDelimiter()
	if strings.Contains(name, delimiter) {
		return "", fmt.Errorf("unexpected input: name should not contain the delimiter %q", delimiter)
	}
	if strings.Contains(value, delimiter) {
		return "", fmt.Errorf("unexpected input: value should not contain the delimiter %q", delimiter)
	}
	return fmt.Sprintf("%s<<%s\n%s\n%s\n", name, delimiter, value, delimiter), nil
}

// AppendFileCommand 将 name/value 追加到 runner 的命令文件（GITHUB_STATE、GITHUB_OUTPUT 等）。
func AppendFileCommand(path, name, value string) error {
	if path == "" {
		return ErrCommandFileUnset
	}
	record, err := FormatKeyValue(name, value)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open command file: %w", err)
	}
	if _, err := f.WriteString(record); err != nil {
		f.Close()
		return fmt.Errorf("write command file: %w", err)
	}
	return f.Close()
}
