// Package hitl 提供人工输入（Human-in-the-Loop）请求的登记与转交。
//
// Broker 挂载到执行上下文后，任务进入 AWAITING_HUMAN_INPUT 时登记一条
// 请求，外部通过 HTTP、NATS 或命令行按任务 ID 调用 Resolve 提交输入，
// 等待中的 Agent 随即继续执行。超时或取消的等待记为 cancelled。
package hitl
