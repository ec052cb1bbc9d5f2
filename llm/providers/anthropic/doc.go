// Package anthropic 基于 anthropic-sdk-go 的 Messages API 实现 llm.Completer。
//
// 每次调用以单条用户消息发送 prompt，响应中的文本块按顺序拼接返回。
// SDK 返回的 API 错误按 HTTP 状态码映射为 types.Error。
package anthropic
