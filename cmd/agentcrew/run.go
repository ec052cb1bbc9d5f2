package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/BaSui01/agentcrew"
	"github.com/BaSui01/agentcrew/agent"
	"github.com/BaSui01/agentcrew/agent/hitl"
	"github.com/BaSui01/agentcrew/config"
	"go.uber.org/zap"
)

// inputFlags 可重复的 -input key=value
type inputFlags map[string]any

func (f inputFlags) String() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, f[k]))
	}
	return strings.Join(parts, ",")
}

func (f inputFlags) Set(value string) error {
	key, val, ok := strings.Cut(value, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return fmt.Errorf("input must be key=value, got %q", value)
	}
	f[key] = val
	return nil
}

// runOptions 单次任务运行参数
type runOptions struct {
	Description    string
	Input          map[string]any
	ExpectedOutput string
	RequireHuman   bool
	HumanInput     *string
}

// runTask 组装编排实例执行单个任务；需要人工输入时从 in 读取一行作答
func runTask(ctx context.Context, cfg *config.Config, opts runOptions, in io.Reader, out io.Writer, logger *zap.Logger, appOpts ...agentcrew.Option) (string, error) {
	if strings.TrimSpace(opts.Description) == "" {
		return "", errors.New("task description is required")
	}

	app, err := agentcrew.NewFromConfig(cfg, logger, appOpts...)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("failed to close crew", zap.Error(err))
		}
	}()

	app.Broker.RegisterHandler(consoleResponder(app.Broker, in, out))

	taskOpts := []agent.TaskOption{
		agent.WithInput(opts.Input),
		agent.WithExpectedOutput(opts.ExpectedOutput),
	}
	if opts.RequireHuman {
		taskOpts = append(taskOpts, agent.WithHumanInputRequired())
	}
	if opts.HumanInput != nil {
		taskOpts = append(taskOpts, agent.WithHumanInput(*opts.HumanInput))
	}

	exec := app.Crew.Execute(ctx, agent.NewTask(opts.Description, taskOpts...))
	output := exec.Await(ctx)
	return output, exec.Err()
}

// consoleResponder 在终端提示并读取人工输入，多个请求依次作答
func consoleResponder(broker *hitl.Broker, in io.Reader, out io.Writer) hitl.RequestHandler {
	reader := bufio.NewReader(in)
	var mu sync.Mutex

	return func(ctx context.Context, req *hitl.Request) error {
		mu.Lock()
		defer mu.Unlock()

		fmt.Fprintf(out, "\nHuman input requested by %s for task %s:\n  %s\n", req.Agent, req.ID, req.Description)
		if req.ExpectedOutput != "" {
			fmt.Fprintf(out, "  expected: %s\n", req.ExpectedOutput)
		}
		fmt.Fprint(out, "> ")

		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return fmt.Errorf("read human input: %w", err)
		}
		return broker.Resolve(ctx, req.ID, strings.TrimRight(line, "\r\n"))
	}
}
