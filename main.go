package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/island-is/cache/internal/cacheflow"
	"github.com/island-is/cache/internal/config"
	"github.com/island-is/cache/internal/logging"
	"github.com/island-is/cache/internal/runner"
	"github.com/island-is/cache/internal/version"
)

// 子命令名称。
const (
	cmdRestore     = "restore"
	cmdSave        = "save"
	cmdCheckConfig = "check-config"
	cmdVersion     = "version"
)

// configEnv 指定配置文件路径的环境变量，--config 优先。
const configEnv = "CACHE_CONFIG"

// cliOptions 汇总 CLI 解析后的结果，便于在测试中注入。
type cliOptions struct {
	command    string
	configPath string
	flags      *pflag.FlagSet
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		printUsage(stdErr)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, opts)
	stop()
	os.Exit(code)
}

// run 执行子命令并返回退出码：0 成功或被跳过，1 致命错误。
func run(ctx context.Context, opts cliOptions) int {
	if opts.command == cmdVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	fields := logging.BaseFields(opts.command, opts.configPath)
	switch opts.command {
	case cmdCheckConfig:
		fields["backend"] = cfg.Summary()
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	case cmdRestore:
		return runRestore(ctx, cfg, logger.WithFields(fields), opts.flags)
	case cmdSave:
		return runSave(ctx, cfg, logger.WithFields(fields), opts.flags)
	default:
		fmt.Fprintf(stdErr, "unknown command %q\n", opts.command)
		return 2
	}
}

// parseEnvironment 读取 runner 环境变量，测试中可替换。
var parseEnvironment = runner.ParseEnvironment

// runRestore 是 restore 阶段的进程边界：只有校验类错误会把 success 置为 false 并返回 1，
// 其余异常（包括 panic）记录为警告，按未命中继续。
func runRestore(ctx context.Context, cfg *config.Config, logger *logrus.Entry, flags *pflag.FlagSet) (code int) {
	publisher := runner.NewPublisher(runner.Environment{OutputFile: os.Getenv("GITHUB_OUTPUT")}, stdOut)
	result := cacheflow.RestoreResult{}
	defer func() {
		if r := recover(); r != nil {
			logger.Warnf("unexpected error during restore: %v", r)
			result = cacheflow.RestoreResult{Success: true}
			code = 0
		}
		publishRestore(publisher, result, logger)
	}()

	env, err := parseEnvironment()
	if err != nil {
		logger.Error(err.Error())
		return 1
	}
	publisher = runner.NewPublisher(env, stdOut)

	inputs, err := config.LoadInputs(flags, true)
	if err != nil {
		logger.Error(err.Error())
		return 1
	}

	sess, err := openSession(ctx, cfg, env, inputs.RunID, logger)
	if err != nil {
		logger.Error(err.Error())
		return 1
	}
	defer sess.Close()

	opCtx, cancel := withTimeout(ctx, cfg.Global.OperationTimeout)
	defer cancel()

	restorer := cacheflow.NewRestorer(cacheflow.NewResolver(sess.backend, logger), sess.state, env, logger)
	result, err = restorer.Run(opCtx, cacheflow.RestoreInput{
		Paths:       inputs.Paths,
		PrimaryKey:  inputs.Key,
		RestoreKeys: inputs.RestoreKeys,
		ForceSkip:   inputs.ForceCacheSave,
	})
	if err != nil {
		logger.Error(err.Error())
		return 1
	}
	return 0
}

func publishRestore(p *runner.Publisher, result cacheflow.RestoreResult, logger logrus.FieldLogger) {
	if err := p.SetBool(runner.OutputCacheHit, result.Hit); err != nil {
		logger.WithError(err).Warn("failed to publish output " + runner.OutputCacheHit)
	}
	if err := p.SetBool(runner.OutputSuccess, result.Success); err != nil {
		logger.WithError(err).Warn("failed to publish output " + runner.OutputSuccess)
	}
}

// runSave 是 save 阶段的进程边界：缓存上传只是优化，除校验错误外一律降级为警告。
func runSave(ctx context.Context, cfg *config.Config, logger *logrus.Entry, flags *pflag.FlagSet) (code int) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warnf("unexpected error during save: %v", r)
			code = 0
		}
	}()

	env, err := parseEnvironment()
	if err != nil {
		logger.Warn(err.Error())
		return 0
	}

	inputs, err := config.LoadInputs(flags, false)
	if err != nil {
		logger.Warn(err.Error())
		return 0
	}

	sess, err := openSession(ctx, cfg, env, inputs.RunID, logger)
	if err != nil {
		logger.Warn(err.Error())
		return 0
	}
	defer sess.Close()

	opCtx, cancel := withTimeout(ctx, cfg.Global.OperationTimeout)
	defer cancel()

	saver := cacheflow.NewSaver(sess.backend, sess.state, env, logger)
	outcome, err := saver.Run(opCtx, cacheflow.SaveInput{
		Paths:           inputs.Paths,
		ForceSave:       inputs.ForceCacheSave,
		UploadChunkSize: inputs.UploadChunkSize,
	})
	logger.WithField("outcome", outcome.String()).Debug("save finished")
	if err != nil {
		logger.Error(err.Error())
		return 1
	}
	return 0
}

func withTimeout(ctx context.Context, d config.Duration) (context.Context, context.CancelFunc) {
	if d.DurationValue() <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.DurationValue())
}

// parseCLIFlags 解析子命令与参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	if len(args) == 0 {
		return cliOptions{}, fmt.Errorf("缺少子命令")
	}

	command := args[0]
	switch command {
	case "--version", "-v":
		command = cmdVersion
	case cmdRestore, cmdSave, cmdCheckConfig, cmdVersion:
	default:
		return cliOptions{}, fmt.Errorf("未知子命令: %s", command)
	}

	fs := pflag.NewFlagSet("cache "+command, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	configFlag := fs.String("config", "", "配置文件路径（默认 ./cache.toml，可被 "+configEnv+" 覆盖）")
	if command == cmdRestore || command == cmdSave {
		config.RegisterInputFlags(fs)
	}

	if err := fs.Parse(args[1:]); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv(configEnv)
	if *configFlag != "" {
		path = *configFlag
	}

	return cliOptions{
		command:    command,
		configPath: path,
		flags:      fs,
	}, nil
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `%s

Usage:
  cache restore      [--config file] [--key k] [--path p ...] [--restore-keys k ...] [--force-cache-save true]
  cache save         [--config file] [--path p ...] [--upload-chunk-size n] [--force-cache-save true]
  cache check-config [--config file]
  cache version

Action inputs are also read from INPUT_<NAME> environment variables.
`, version.Full())
}
