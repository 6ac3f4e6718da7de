package logging

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// GitHubFormatter 将日志渲染为 runner 能识别的 workflow 命令：
// debug → ::debug::，warn → ::warning::，error 及以上 → ::error::，info 输出为单行纯文本。
// 结构化字段以 key=value 形式附在消息末尾，BaseFields 中的公共字段除外。
type GitHubFormatter struct{}

var hiddenFields = map[string]struct{}{
	"action":     {},
	"configPath": {},
}

// Format 实现 logrus.Formatter。
func (f *GitHubFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var buf bytes.Buffer

	msg := entry.Message
	if suffix := formatFields(entry.Data); suffix != "" {
		msg = msg + " " + suffix
	}

	switch {
	case entry.Level <= logrus.ErrorLevel:
		buf.WriteString("::error::")
		buf.WriteString(escapeData(msg))
	case entry.Level == logrus.WarnLevel:
		buf.WriteString("::warning::")
		buf.WriteString(escapeData(msg))
	case entry.Level >= logrus.DebugLevel:
		buf.WriteString("::debug::")
		buf.WriteString(escapeData(msg))
	default:
		buf.WriteString(flattenLines(msg))
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func formatFields(data logrus.Fields) string {
	if len(data) == 0 {
		return ""
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		if _, hidden := hiddenFields[k]; hidden {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, data[k]))
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// escapeData 转义 workflow 命令消息中的 %、\r、\n。
func escapeData(s string) string {
	s = strings.ReplaceAll(s, "%", "%25")
	s = strings.ReplaceAll(s, "\r", "%0D")
	s = strings.ReplaceAll(s, "\n", "%0A")
	return s
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// flattenLines 把换行折叠为空格，使纯文本行中的任何内容都无法以 "::" 开启新的 workflow 命令。
func flattenLines(s string) string {
	return lineBreaks.Replace(s)
}
