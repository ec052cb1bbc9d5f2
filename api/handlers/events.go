package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/BaSui01/agentcrew/agent"
	"github.com/BaSui01/agentcrew/internal/eventbus"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"
)

// eventWriteTimeout 单条事件写超时
const eventWriteTimeout = 10 * time.Second

// EventSource 可订阅的事件源
type EventSource interface {
	Subscribe(buffer int, filter eventbus.Filter) *eventbus.Subscription
}

// EventsHandler 通过 WebSocket 推送运行事件
type EventsHandler struct {
	source         EventSource
	logger         *zap.Logger
	buffer         int
	originPatterns []string
}

// EventsOption 配置 EventsHandler
type EventsOption func(*EventsHandler)

// WithEventBuffer 每个连接的订阅缓冲大小
func WithEventBuffer(n int) EventsOption {
	return func(h *EventsHandler) { h.buffer = n }
}

// WithOriginPatterns 允许的跨域 Origin 模式
func WithOriginPatterns(patterns ...string) EventsOption {
	return func(h *EventsHandler) { h.originPatterns = patterns }
}

// NewEventsHandler 创建处理器
func NewEventsHandler(source EventSource, logger *zap.Logger, opts ...EventsOption) *EventsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &EventsHandler{
		source: source,
		logger: logger.With(zap.String("handler", "events")),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleStream GET /v1/events[?run_id=...]
//
// 每条事件以一个 JSON 文本帧发送；总线关闭时以 StatusGoingAway 结束连接。
func (h *EventsHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	var filter eventbus.Filter
	runID := r.URL.Query().Get("run_id")
	if runID != "" {
		filter = eventbus.ForRun(runID)
	}
	sub := h.source.Subscribe(h.buffer, filter)
	defer sub.Close()

	h.logger.Debug("event stream opened", zap.String("remote", r.RemoteAddr), zap.String("run_id", runID))

	// CloseRead 消费控制帧，客户端断开时取消 ctx
	ctx := conn.CloseRead(r.Context())

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("event stream closed by client", zap.Int64("dropped", sub.Dropped()))
			return
		case e, ok := <-sub.Events():
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "event bus closed")
				return
			}
			if err := h.write(ctx, conn, e); err != nil {
				h.logger.Debug("event stream write failed", zap.Error(err))
				return
			}
		}
	}
}

func (h *EventsHandler) write(ctx context.Context, conn *websocket.Conn, e agent.Event) error {
	ctx, cancel := context.WithTimeout(ctx, eventWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, e)
}
