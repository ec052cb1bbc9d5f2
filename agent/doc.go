// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 agent 提供 AgentCrew 的任务模型与推理 Agent。

# 概述

Task 是工作单元，携带描述、输入、期望输出、可选完成回调以及人工输入
相关字段。状态机：

	PENDING → IN_PROGRESS ⇄ AWAITING_HUMAN_INPUT
	              ↓
	     COMPLETED | FAILED

另外允许 PENDING → FAILED 与 AWAITING_HUMAN_INPUT → FAILED。终态没有
出边；Complete 至多生效一次，回调随之至多触发一次。

ExecutionContext 是一次 Crew 运行的共享状态：全局共享内存、按任务 ID
划分的任务内存，以及只追加的时间戳日志。日志同时写入 zap（debug）并在
挂载 EventSink 时发布为事件。

# ReasoningAgent

PerformTask 立即返回 Future。推理循环运行在 Agent 自有的有界工作池中：

  - 组装 prompt（角色、任务、相关记忆、工具目录、调用说明、历史）
  - 调用 llm.Completer
  - ExtractToolCall 以括号平衡方式查找第一个合法工具调用；没有则视为
    最终答案
  - 未声明的工具与工具错误写入历史后继续；模型错误、取消与超出迭代
    上限（默认 5）使任务失败

需要人工输入而尚未提供时，任务进入 AWAITING_HUMAN_INPUT 并安装一次性
句柄。等待在独立 goroutine 中 select 句柄、ctx 与可选超时，不占用
worker。Task.SetHumanInput 解析句柄后续作提交到工作池，Future 以人工
输入完成。

# 使用示例

	a, err := agent.NewReasoningAgent(agent.ReasoningConfig{
	    Name: "researcher",
	    Role: "a meticulous researcher",
	}, backend, logger, agent.WithTools(tools.NewEchoTool()))
	if err != nil {
	    return err
	}
	defer a.Close()

	out, err := a.PerformTask(ctx, agent.NewTask("Summarize the report"), nil).Await(ctx)

编排策略见子包 agent/crews，人工输入请求的登记与转发见 agent/hitl，
记忆后端见 agent/memory。
*/
package agent
