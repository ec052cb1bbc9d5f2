package crews

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// SubTask 经理计划中的子任务
type SubTask struct {
	Description    string `json:"task_description"`
	AssignedAgent  string `json:"assigned_agent_name"`
	ExpectedOutput string `json:"expected_output,omitempty"`
}

// Plan 经理的分解计划
type Plan struct {
	SubTasks     []SubTask `json:"sub_tasks"`
	ManagerNotes string    `json:"manager_notes,omitempty"`
}

// ParsePlan 从经理的原始输出中解析计划
//
// 依次尝试：整段 JSON、```json 代码块、无语言标记的代码块、
// 第一个 '{' 到最后一个 '}' 之间的内容。
func ParsePlan(raw string) (*Plan, error) {
	content := strings.TrimSpace(raw)
	if content == "" {
		return nil, fmt.Errorf("%w: empty response", ErrPlanParse)
	}

	candidates := []string{content}
	if idx := strings.Index(content, "```json"); idx != -1 {
		start := idx + len("```json")
		if end := strings.Index(content[start:], "```"); end != -1 {
			candidates = append(candidates, strings.TrimSpace(content[start:start+end]))
		}
	}
	if idx := strings.Index(content, "```"); idx != -1 {
		start := idx + len("```")
		// 跳过同一行的语言标记
		if nl := strings.Index(content[start:], "\n"); nl != -1 {
			start += nl + 1
		}
		if end := strings.Index(content[start:], "```"); end != -1 {
			candidates = append(candidates, strings.TrimSpace(content[start:start+end]))
		}
	}
	if first, last := strings.Index(content, "{"), strings.LastIndex(content, "}"); first != -1 && last > first {
		candidates = append(candidates, content[first:last+1])
	}

	var lastErr error
	for _, c := range candidates {
		plan, err := decodePlan(c)
		if err == nil {
			return plan, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %v", ErrPlanParse, lastErr)
}

// decodePlan 严格解码：必须是 JSON 对象且不含未知字段
func decodePlan(s string) (*Plan, error) {
	if !strings.HasPrefix(s, "{") {
		return nil, errors.New("plan is not a JSON object")
	}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.DisallowUnknownFields()

	var p Plan
	if err := dec.Decode(&p); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("unexpected data after plan object")
	}
	return &p, nil
}
