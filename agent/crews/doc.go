// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 crews 提供把多个 Agent 组合起来完成同一个任务的编排策略与 Crew 门面。

# 概述

Crew 在构造时绑定一组有序的 Agent 和一种编排策略（ProcessType），
每次执行都会创建全新的 agent.ExecutionContext，并在独立 goroutine 中
把任务交给策略处理。策略失败不会以 error 的形式逃逸：用户可见的失败
均为以 "Error: " 或 "Error during crew execution: " 开头的文本。

# 编排策略

  - Sequential：按列表顺序链式交接，第 i 个 Agent 的任务描述是第 i-1 个
    Agent 的输出。任一环节失败即停止，结果为
    "Error: Process failed or produced no result."。
  - Hierarchical：第一个 Agent 为经理，其余为按名称寻址的工人。经理先产出
    JSON 计划（sub_tasks / manager_notes，可带代码围栏或说明文字），子任务
    按计划顺序逐个执行，最后由经理综合所有子任务结果。
  - Consensual：所有 Agent 使用原任务的独立派生副本并行执行（errgroup），
    全部结束后由最后一个 Agent 综合各方观点。

# 回调

原任务的回调在一次运行中只触发一次。层级与共识策略通过综合任务的回调
完成原任务；顺序策略默认在链路结束时完成原任务，
SequentialOptions.PerHopCallbacks 开启后在每一跳成功时都触发回调。

# 使用示例

	crew, err := crews.NewCrew(crews.Config{
		Name:    "writers",
		Process: crews.ProcessSequential,
	}, []agent.Agent{researcher, writer}, logger)
	if err != nil {
		return err
	}
	defer crew.Close()

	result := crew.Run(ctx, agent.NewTask("Write a short note about Go channels"))
*/
package crews
