// =============================================================================
// 📦 测试数据工厂 - 模型响应测试数据
// =============================================================================
// 提供预定义的模型原始响应，用于测试
// =============================================================================
package fixtures

import (
	"encoding/json"
	"fmt"
)

// =============================================================================
// 🔧 工具调用
// =============================================================================

// ToolCallJSON 返回裸 JSON 形式的工具调用
func ToolCallJSON(tool string, params map[string]any) string {
	if params == nil {
		params = map[string]any{}
	}
	data, err := json.Marshal(map[string]any{
		"tool_name":       tool,
		"tool_parameters": params,
	})
	if err != nil {
		panic(err)
	}
	return string(data)
}

// ToolCallResponse 返回带说明文字与代码围栏的工具调用
func ToolCallResponse(tool string, params map[string]any) string {
	return fmt.Sprintf("I should use a tool for this.\n```json\n%s\n```\n", ToolCallJSON(tool, params))
}

// =============================================================================
// 📋 经理计划
// =============================================================================

// SubTask 计划中的子任务
type SubTask struct {
	Description    string `json:"task_description"`
	AssignedAgent  string `json:"assigned_agent_name"`
	ExpectedOutput string `json:"expected_output,omitempty"`
}

// PlanJSON 返回计划的 JSON 文本
func PlanJSON(notes string, subTasks ...SubTask) string {
	if subTasks == nil {
		subTasks = []SubTask{}
	}
	data, err := json.Marshal(map[string]any{
		"sub_tasks":     subTasks,
		"manager_notes": notes,
	})
	if err != nil {
		panic(err)
	}
	return string(data)
}

// PlanResponse 返回带说明文字与代码围栏的计划
func PlanResponse(notes string, subTasks ...SubTask) string {
	return "Here is my plan:\n```json\n" + PlanJSON(notes, subTasks...) + "\n```"
}
