// Package config 提供 AgentCrew 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量 的顺序叠加，环境变量名由
// 前缀与 env 结构体标签拼接而成（如 AGENTCREW_LLM_MODEL）。
// LLM API Key 未配置时回退到服务商约定的环境变量。
package config
