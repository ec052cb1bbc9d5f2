package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/agentcrew/agent"
	"github.com/BaSui01/agentcrew/config"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// =============================================================================
// 🔌 连接
// =============================================================================

// Connect 按配置连接 NATS；NATSURL 为空时返回 nil 连接与 nil 错误
func Connect(cfg config.EventsConfig, logger *zap.Logger) (*nats.Conn, error) {
	if cfg.NATSURL == "" {
		return nil, nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	nc, err := nats.Connect(cfg.NATSURL,
		nats.Name("agentcrew"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", cfg.NATSURL, err)
	}
	logger.Info("connected to nats", zap.String("url", cfg.NATSURL))
	return nc, nil
}

// subject 拼接主题，空前缀时直接使用后缀
func subject(prefix, suffix string) string {
	prefix = strings.TrimSuffix(prefix, ".")
	if prefix == "" {
		return suffix
	}
	return prefix + "." + suffix
}

// =============================================================================
// 📤 事件发布
// =============================================================================

// NATSPublisher 将事件以 JSON 发布到 {prefix}.{type}
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
	logger *zap.Logger
}

var _ agent.EventSink = (*NATSPublisher)(nil)

// NewNATSPublisher 创建 NATS 事件发布器
func NewNATSPublisher(conn *nats.Conn, prefix string, logger *zap.Logger) *NATSPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSPublisher{
		conn:   conn,
		prefix: prefix,
		logger: logger.With(zap.String("component", "nats_publisher")),
	}
}

// Subject 事件类型对应的主题
func (p *NATSPublisher) Subject(t agent.EventType) string {
	return subject(p.prefix, string(t))
}

// Publish 发布事件，失败只记录日志
func (p *NATSPublisher) Publish(e agent.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		p.logger.Error("failed to marshal event", zap.Error(err))
		return
	}
	if err := p.conn.Publish(p.Subject(e.Type), data); err != nil {
		p.logger.Warn("failed to publish event",
			zap.String("type", string(e.Type)),
			zap.String("run_id", e.RunID),
			zap.Error(err),
		)
	}
}

// =============================================================================
// 📥 远端人工输入
// =============================================================================

// HumanInputResolver 按任务 ID 提交人工输入，hitl.Broker 实现该接口
type HumanInputResolver interface {
	Resolve(ctx context.Context, taskID, input string) error
}

// HumanInputResponse 远端提交的人工输入
type HumanInputResponse struct {
	TaskID string `json:"task_id"`
	Input  string `json:"input"`
}

// HumanInputAck 请求-应答模式下的回复
type HumanInputAck struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// NATSHumanInputResponder 订阅 {prefix}.human_input.respond 并转交人工输入
type NATSHumanInputResponder struct {
	conn     *nats.Conn
	prefix   string
	resolver HumanInputResolver
	timeout  time.Duration
	sub      *nats.Subscription
	logger   *zap.Logger
}

// NewNATSHumanInputResponder 创建远端人工输入订阅者
func NewNATSHumanInputResponder(conn *nats.Conn, prefix string, resolver HumanInputResolver, logger *zap.Logger) *NATSHumanInputResponder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSHumanInputResponder{
		conn:     conn,
		prefix:   prefix,
		resolver: resolver,
		timeout:  10 * time.Second,
		logger:   logger.With(zap.String("component", "nats_human_input")),
	}
}

// Subject 订阅的主题
func (r *NATSHumanInputResponder) Subject() string {
	return subject(r.prefix, "human_input.respond")
}

// Start 开始订阅
func (r *NATSHumanInputResponder) Start() error {
	if r.sub != nil {
		return fmt.Errorf("human input responder already started")
	}
	sub, err := r.conn.Subscribe(r.Subject(), r.handle)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", r.Subject(), err)
	}
	r.sub = sub
	r.logger.Info("listening for human input", zap.String("subject", r.Subject()))
	return nil
}

// Close 取消订阅
func (r *NATSHumanInputResponder) Close() error {
	if r.sub == nil {
		return nil
	}
	err := r.sub.Unsubscribe()
	r.sub = nil
	return err
}

func (r *NATSHumanInputResponder) handle(msg *nats.Msg) {
	var resp HumanInputResponse
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		r.reply(msg, fmt.Errorf("invalid human input message: %w", err))
		return
	}
	if resp.TaskID == "" {
		r.reply(msg, fmt.Errorf("invalid human input message: task_id is required"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	err := r.resolver.Resolve(ctx, resp.TaskID, resp.Input)
	if err != nil {
		r.logger.Warn("failed to resolve human input", zap.String("task_id", resp.TaskID), zap.Error(err))
	} else {
		r.logger.Info("human input resolved", zap.String("task_id", resp.TaskID))
	}
	r.reply(msg, err)
}

func (r *NATSHumanInputResponder) reply(msg *nats.Msg, err error) {
	if msg.Reply == "" {
		return
	}
	ack := HumanInputAck{OK: err == nil}
	if err != nil {
		ack.Error = err.Error()
	}
	data, _ := json.Marshal(ack)
	if perr := msg.Respond(data); perr != nil {
		r.logger.Warn("failed to send human input ack", zap.Error(perr))
	}
}
