package testutil

import (
	"context"
	"testing"
	"time"
)

// pollInterval 异步断言的轮询间隔
const pollInterval = 10 * time.Millisecond

// defaultTestTimeout 单个测试上下文的上限，覆盖 HITL 等待与事件流
const defaultTestTimeout = 30 * time.Second

// =============================================================================
// 🎯 上下文辅助
// =============================================================================

// TestContext 返回随测试结束取消的上下文
func TestContext(t testing.TB) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	t.Cleanup(cancel)
	return ctx
}

// CancelledContext 返回已取消的上下文
func CancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

// =============================================================================
// ⏱️ 异步断言
// =============================================================================

// WaitFor 轮询直到条件成立或超时，超时前最后再判定一次
func WaitFor(condition func() bool, timeout time.Duration) bool {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		if condition() {
			return true
		}
		select {
		case <-ticker.C:
		case <-deadline.C:
			return condition()
		}
	}
}

// AssertEventuallyTrue 条件在 timeout 内未成立时标记失败
func AssertEventuallyTrue(t testing.TB, condition func() bool, timeout time.Duration) {
	t.Helper()
	if !WaitFor(condition, timeout) {
		t.Errorf("condition did not become true within %v", timeout)
	}
}
