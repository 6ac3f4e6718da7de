package runner

import (
	"fmt"
	"io"
	"strconv"
)

// 步骤输出名称。
const (
	OutputCacheHit = "cache-hit"
	OutputSuccess  = "success"
)

// Publisher 负责发布步骤输出：有 GITHUB_OUTPUT 时写命令文件，否则以 name=value 行写入 fallback。
type Publisher struct {
	outputFile string
	fallback   io.Writer
}

// NewPublisher 基于 runner 环境构建 Publisher。
func NewPublisher(e Environment, fallback io.Writer) *Publisher {
	return &Publisher{outputFile: e.OutputFile, fallback: fallback}
}

// SetOutput 发布单个输出值。
func (p *Publisher) SetOutput(name, value string) error {
	if p.outputFile != "" {
		return AppendFileCommand(p.outputFile, name, value)
	}
	if p.fallback == nil {
		return nil
	}
	_, err := fmt.Fprintf(p.fallback, "%s=%s\n", name, value)
	return err
}

// SetBool 以 "true"/"false" 发布布尔输出。
func (p *Publisher) SetBool(name string, value bool) error {
	return p.SetOutput(name, strconv.FormatBool(value))
}
