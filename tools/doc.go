// Package tools 提供 Agent 推理过程中可调用的内置工具与按名称构造工具的注册表。
//
// 内置工具：
//   - echo：原样返回 input 参数
//   - clock：返回当前时间，可指定时区
//
// 配置中 agents[].tools 列出的名称通过 Registry.Build 转换为 types.Tool。
package tools
