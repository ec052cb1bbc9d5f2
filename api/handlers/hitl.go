package handlers

import (
	"errors"
	"net/http"

	"github.com/BaSui01/agentcrew/agent"
	"github.com/BaSui01/agentcrew/agent/hitl"
	"github.com/BaSui01/agentcrew/api"
	"github.com/BaSui01/agentcrew/types"
	"go.uber.org/zap"
)

// HumanInputRequest 人工输入提交请求
type HumanInputRequest = api.HumanInputRequest

// HITLHandler 人工输入请求的查询与提交
type HITLHandler struct {
	broker *hitl.Broker
	logger *zap.Logger
}

// NewHITLHandler 创建处理器
func NewHITLHandler(broker *hitl.Broker, logger *zap.Logger) *HITLHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HITLHandler{
		broker: broker,
		logger: logger.With(zap.String("handler", "hitl")),
	}
}

// HandleList GET /v1/hitl/requests[?status=pending|resolved|cancelled]
//
// 不带 status 时只返回等待中的请求；status=all 返回全部历史。
func (h *HITLHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	switch hitl.RequestStatus(status) {
	case "":
		WriteSuccess(w, h.broker.Pending())
		return
	case hitl.RequestStatusPending, hitl.RequestStatusResolved, hitl.RequestStatusCancelled:
	default:
		if status != "all" {
			WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "unknown status: "+status, h.logger)
			return
		}
		status = ""
	}

	requests, err := h.broker.List(r.Context(), hitl.RequestStatus(status))
	if err != nil {
		WriteError(w, types.NewError(types.ErrInternalError, "failed to list human input requests").WithCause(err), h.logger)
		return
	}
	if requests == nil {
		requests = []*hitl.Request{}
	}
	WriteSuccess(w, requests)
}

// HandleGet GET /v1/hitl/requests/{taskID}
func (h *HITLHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("taskID")
	req, err := h.broker.Get(r.Context(), taskID)
	if err != nil {
		h.writeBrokerError(w, taskID, err)
		return
	}
	WriteSuccess(w, req)
}

// HandleResolve POST /v1/hitl/requests/{taskID}
func (h *HITLHandler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var body HumanInputRequest
	if err := DecodeJSONBody(w, r, &body, h.logger); err != nil {
		return
	}

	taskID := r.PathValue("taskID")
	if err := h.broker.Resolve(r.Context(), taskID, body.Input); err != nil {
		h.writeBrokerError(w, taskID, err)
		return
	}

	req, err := h.broker.Get(r.Context(), taskID)
	if err != nil {
		h.writeBrokerError(w, taskID, err)
		return
	}
	WriteSuccess(w, req)
}

func (h *HITLHandler) writeBrokerError(w http.ResponseWriter, taskID string, err error) {
	switch {
	case errors.Is(err, hitl.ErrRequestNotFound):
		WriteError(w, types.NewError(types.ErrNotFound, "no pending human input request for task "+taskID).WithCause(err), h.logger)
	case errors.Is(err, agent.ErrNotAwaitingHumanInput):
		WriteError(w, types.NewError(types.ErrConflict, "task "+taskID+" is no longer awaiting human input").WithCause(err), h.logger)
	default:
		WriteError(w, types.NewError(types.ErrInternalError, "human input request failed").WithCause(err), h.logger)
	}
}
