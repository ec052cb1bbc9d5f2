// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 providers 汇集各模型服务商的 llm.Completer 实现与共用的错误映射。

# 子包

  - openaicompat：OpenAI Chat Completions 兼容协议（openai、groq 等）。
  - anthropic：基于 anthropic-sdk-go 的 Messages API。

# 错误语义

  - [MapHTTPError] 将上游 HTTP 状态码映射为 types.Error，并标记是否可重试。
  - [TransportError] 将网络层失败映射为可重试的上游错误。
  - [ReadErrorMessage] 从 JSON 错误响应中提取可读消息。
*/
package providers
