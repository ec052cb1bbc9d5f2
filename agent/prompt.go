package agent

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"github.com/BaSui01/agentcrew/internal/pool"
	"github.com/BaSui01/agentcrew/llm"
	"github.com/BaSui01/agentcrew/llm/tokenizer"
	"github.com/BaSui01/agentcrew/types"
)

// =============================================================================
// 📝 Prompt 组装
// =============================================================================

// toolUseInstructions 工具调用说明；示例本身不是合法 JSON，不会被误识别为调用
const toolUseInstructions = `To use a tool, respond with a JSON object in exactly this form (it may be wrapped in a code block):
{"tool_name": "<name of the tool>", "tool_parameters": {<parameter name and value pairs>}}
Use only the tools listed above. When you have enough information, respond with the final answer as plain text and no tool call.`

// promptData 构造一次 prompt 所需的全部数据
type promptData struct {
	name       string
	role       string
	task       *Task
	memories   []any
	tools      []types.Tool
	history    []string
	omitted    int
	humanInput *string
}

// buildPrompt 按固定分节组装 prompt
func buildPrompt(d promptData) string {
	buf := pool.ByteBufferPool.Get()
	defer pool.ByteBufferPool.Put(buf)

	fmt.Fprintf(buf, "You are %s, %s.\n\n", d.name, d.role)

	writeTaskBlock(buf, d.task)

	if d.humanInput != nil {
		fmt.Fprintf(buf, "Human Input Provided: %s\n\n", *d.humanInput)
	}

	if len(d.memories) == 0 {
		buf.WriteString("No relevant information found in memory.\n\n")
	} else {
		buf.WriteString("Previously recorded information that might be relevant:\n")
		for _, m := range d.memories {
			fmt.Fprintf(buf, "- %v\n", m)
		}
		buf.WriteByte('\n')
	}

	writeToolCatalog(buf, d.tools)
	buf.WriteString(toolUseInstructions)
	buf.WriteString("\n\n")

	buf.WriteString("History:\n")
	switch {
	case d.omitted > 0:
		fmt.Fprintf(buf, "(%d earlier entries omitted)\n", d.omitted)
	case len(d.history) == 0:
		buf.WriteString("No history yet.\n")
	}
	if len(d.history) > 0 {
		buf.WriteString(strings.Join(d.history, "\n"))
		buf.WriteByte('\n')
	}

	return buf.String()
}

// fitPrompt 组装不超过 budget 个 token 的 prompt，返回丢弃的历史条数
//
// 从最早的历史开始丢弃；历史丢完仍超出时原样返回。budget <= 0 不限制。
func fitPrompt(d promptData, budget int, counter tokenizer.Counter) (string, int) {
	prompt := buildPrompt(d)
	if budget <= 0 {
		return prompt, 0
	}
	dropped := 0
	for len(d.history) > 0 && counter.CountTokens(prompt) > budget {
		d.history = d.history[1:]
		d.omitted++
		dropped++
		prompt = buildPrompt(d)
	}
	return prompt, dropped
}

func writeTaskBlock(buf *bytes.Buffer, task *Task) {
	buf.WriteString("Current Task:\n")
	fmt.Fprintf(buf, "ID: %s\n", task.ID())
	fmt.Fprintf(buf, "%s %s\n", llm.DescriptionLinePrefix, task.Description())
	if eo := task.ExpectedOutput(); eo != "" {
		fmt.Fprintf(buf, "Expected Output: %s\n", eo)
	}

	input := task.Input()
	if len(input) == 0 {
		buf.WriteString("Input: No input data provided.\n\n")
		return
	}
	buf.WriteString("Input:\n")
	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(buf, "- %s: %v\n", k, input[k])
	}
	buf.WriteByte('\n')
}

func writeToolCatalog(buf *bytes.Buffer, tools []types.Tool) {
	if len(tools) == 0 {
		buf.WriteString("No tools available.\n\n")
		return
	}
	buf.WriteString("Available Tools:\n")
	for _, t := range tools {
		fmt.Fprintf(buf, "Tool: %s\n", t.Name())
		fmt.Fprintf(buf, "Description: %s\n", t.Description())
		buf.WriteString("Expected Parameters:\n")
		schema := t.ParameterSchema()
		if len(schema) == 0 {
			buf.WriteString("- none\n")
		}
		params := make([]string, 0, len(schema))
		for p := range schema {
			params = append(params, p)
		}
		slices.Sort(params)
		for _, p := range params {
			fmt.Fprintf(buf, "- %s: %s\n", p, schema[p])
		}
		buf.WriteByte('\n')
	}
}
