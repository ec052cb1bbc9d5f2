package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/BaSui01/agentcrew"
	"github.com/BaSui01/agentcrew/api/handlers"
	"github.com/BaSui01/agentcrew/config"
	"github.com/BaSui01/agentcrew/internal/server"
	"github.com/BaSui01/agentcrew/internal/telemetry"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// skipAuthPaths 免认证路径
var skipAuthPaths = []string{"/health", "/ready", "/version", "/metrics"}

// =============================================================================
// 🖥️ Server
// =============================================================================

// Server 组装编排实例、HTTP 路由与中间件
type Server struct {
	cfg       *config.Config
	logger    *zap.Logger
	app       *agentcrew.App
	telemetry *telemetry.Providers

	health     *handlers.HealthHandler
	executions *handlers.ExecutionHandler
	hitl       *handlers.HITLHandler
	events     *handlers.EventsHandler
}

// NewServer 创建服务器；opts 透传给 agentcrew.NewFromConfig
func NewServer(cfg *config.Config, logger *zap.Logger, opts ...agentcrew.Option) (*Server, error) {
	s := &Server{cfg: cfg, logger: logger}

	providers, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		// 遥测不可用不阻止启动
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}
	s.telemetry = providers
	if providers.Enabled() {
		opts = append([]agentcrew.Option{agentcrew.WithTracer(providers.Tracer())}, opts...)
	}

	app, err := agentcrew.NewFromConfig(cfg, logger, opts...)
	if err != nil {
		s.shutdownTelemetry()
		return nil, err
	}
	s.app = app

	s.executions, err = handlers.NewExecutionHandler(app.Crew, 0, logger)
	if err != nil {
		_ = app.Close()
		s.shutdownTelemetry()
		return nil, fmt.Errorf("create execution handler: %w", err)
	}
	s.hitl = handlers.NewHITLHandler(app.Broker, logger)
	s.events = handlers.NewEventsHandler(app.Bus, logger)
	s.health = handlers.NewHealthHandler(logger)
	if nc := app.NATS(); nc != nil {
		s.health.RegisterCheck(handlers.NewPingCheck("nats", func(context.Context) error {
			if status := nc.Status(); status != nats.CONNECTED {
				return fmt.Errorf("nats status %s", status)
			}
			return nil
		}))
	}
	return s, nil
}

// App 编排实例
func (s *Server) App() *agentcrew.App { return s.app }

// Handler 构建带中间件的路由
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.health.HandleHealth)
	mux.HandleFunc("GET /ready", s.health.HandleReady)
	mux.HandleFunc("GET /version", s.health.HandleVersion(Version, BuildTime, GitCommit))
	if g := s.app.Gatherer(); g != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	}

	mux.HandleFunc("POST /v1/executions", s.executions.HandleCreate)
	mux.HandleFunc("GET /v1/executions", s.executions.HandleList)
	mux.HandleFunc("GET /v1/executions/{id}", s.executions.HandleGet)
	mux.HandleFunc("GET /v1/hitl/requests", s.hitl.HandleList)
	mux.HandleFunc("GET /v1/hitl/requests/{taskID}", s.hitl.HandleGet)
	mux.HandleFunc("POST /v1/hitl/requests/{taskID}", s.hitl.HandleResolve)
	mux.HandleFunc("GET /v1/events", s.events.HandleStream)

	middlewares := []Middleware{
		RequestID(),
		Recovery(s.logger),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.app.Metrics),
	}
	if s.telemetry.Enabled() {
		middlewares = append(middlewares, OTelTracing())
	}
	if s.cfg.Server.JWT.Enabled {
		middlewares = append(middlewares, JWTAuth(s.cfg.Server.JWT, skipAuthPaths, s.logger))
	}
	return Chain(mux, middlewares...)
}

// Run 启动 HTTP 服务并阻塞到 ctx 结束，随后释放全部资源
func (s *Server) Run(ctx context.Context) error {
	manager := server.NewManager(s.Handler(), server.ConfigFrom(s.cfg.Server), s.logger)
	s.logger.Info("serving crew",
		zap.String("crew", s.app.Crew.Name()),
		zap.String("process", string(s.app.Crew.Process())),
		zap.Int("port", s.cfg.Server.HTTPPort),
		zap.Bool("jwt", s.cfg.Server.JWT.Enabled),
	)
	runErr := manager.Run(ctx)
	return errors.Join(runErr, s.Close())
}

// Close 取消未结束的运行并关闭编排实例与遥测
func (s *Server) Close() error {
	s.executions.Close()
	err := s.app.Close()
	s.shutdownTelemetry()
	return err
}

func (s *Server) shutdownTelemetry() {
	timeout := s.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = server.DefaultConfig().ShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.telemetry.Shutdown(ctx); err != nil {
		s.logger.Warn("telemetry shutdown error", zap.Error(err))
	}
}
