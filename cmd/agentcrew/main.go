package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BaSui01/agentcrew/config"
	"github.com/BaSui01/agentcrew/internal/tlsutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// 构建时通过 ldflags 注入
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		os.Exit(runCommand(os.Args[2:]))
	case "serve":
		os.Exit(serveCommand(os.Args[2:]))
	case "health":
		os.Exit(healthCommand(os.Args[2:]))
	case "version", "-v", "--version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// ▶️ run 命令
// =============================================================================

func runCommand(args []string) int {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file (YAML)")
	description := fs.String("task", "", "Task description")
	expected := fs.String("expected-output", "", "Expected output of the task")
	requireHuman := fs.Bool("require-human-input", false, "Ask for human input before the agents answer")
	humanInput := fs.String("human-input", "", "Human input provided up front")
	inputs := inputFlags{}
	fs.Var(inputs, "input", "Task input as key=value (repeatable)")
	_ = fs.Parse(args)

	cfg, logger, ok := setup(*configPath, true)
	if !ok {
		return 1
	}
	defer logger.Sync()

	opts := runOptions{
		Description:    *description,
		Input:          inputs,
		ExpectedOutput: *expected,
		RequireHuman:   *requireHuman,
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "human-input" {
			opts.HumanInput = humanInput
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	output, err := runTask(ctx, cfg, opts, os.Stdin, os.Stderr, logger)
	fmt.Println(output)
	if err != nil {
		logger.Error("crew run failed", zap.Error(err))
		return 1
	}
	return 0
}

// =============================================================================
// 🌐 serve 命令
// =============================================================================

func serveCommand(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file (YAML)")
	_ = fs.Parse(args)

	cfg, logger, ok := setup(*configPath, false)
	if !ok {
		return 1
	}
	defer logger.Sync()

	logger.Info("Starting agentcrew",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	srv, err := NewServer(cfg, logger)
	if err != nil {
		logger.Error("failed to assemble crew", zap.Error(err))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		return 1
	}
	logger.Info("agentcrew stopped")
	return 0
}

// =============================================================================
// 🏥 健康检查命令
// =============================================================================

func healthCommand(args []string) int {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:8080", "Server address")
	_ = fs.Parse(args)

	client := tlsutil.HTTPClient(5 * time.Second)
	resp, err := client.Get(*addr + "/ready")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: status %d\n", resp.StatusCode)
		return 1
	}
	fmt.Println("OK")
	return 0
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion() {
	fmt.Printf("agentcrew %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`agentcrew - multi-agent task orchestration

Usage:
  agentcrew <command> [options]

Commands:
  run       Run a single task through the configured crew
  serve     Start the HTTP API server
  health    Check server readiness
  version   Show version information
  help      Show this help message

Options for 'run':
  --config <path>              Path to configuration file (YAML)
  --task <text>                Task description (required)
  --input key=value            Task input, repeatable
  --expected-output <text>     Expected output
  --require-human-input        Prompt on stdin before the agents answer
  --human-input <text>         Human input provided up front

Options for 'serve':
  --config <path>              Path to configuration file (YAML)

Examples:
  agentcrew run --config crew.yaml --task "Write a release note" --input version=1.2.0
  agentcrew serve --config /etc/agentcrew/config.yaml
  agentcrew health --addr http://localhost:8080`)
}

// =============================================================================
// 🔧 配置与日志初始化
// =============================================================================

// setup 加载并校验配置，创建 logger；logToStderr 时 stdout 只留给任务结果
func setup(configPath string, logToStderr bool) (*config.Config, *zap.Logger, bool) {
	cfg, err := config.NewLoader().WithConfigPath(configPath).Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, nil, false
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		return nil, nil, false
	}
	if logToStderr {
		cfg.Log.OutputPaths = []string{"stderr"}
	}
	return cfg, initLogger(cfg.Log), true
}

func initLogger(cfg config.LogConfig) *zap.Logger {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}

	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       cfg.Format == "console",
		Encoding:          encoding,
		EncoderConfig:     encoderConfig,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     !cfg.EnableCaller,
		DisableStacktrace: !cfg.EnableStacktrace,
	}

	logger, err := zapConfig.Build()
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}
	return logger
}
