/*
Package testutil 提供 AgentCrew 测试的共享工具和辅助函数。

# 概述

testutil 包为各包的单元测试提供统一的辅助能力，避免重复实现相似的
测试基础设施。

# 核心能力

  - 上下文辅助: TestContext / CancelledContext，自动注册 Cleanup
  - 异步断言: WaitFor / AssertEventuallyTrue，用于等待 pending 请求、
    事件订阅与指标落盘

# 子包

  - testutil/mocks: 脚本化模型后端 ScriptedCompleter、记录调用的 Tool、
    支持错误注入的 Memory
  - testutil/fixtures: 模型响应样例（工具调用、经理计划）与离线配置

# 使用示例

	ctx := testutil.TestContext(t)
	backend := mocks.NewScriptedCompleter(fixtures.ToolCallResponse("echo", map[string]any{"input": "hi"}), "done")
	out, err := backend.Complete(ctx, "prompt")
*/
package testutil
