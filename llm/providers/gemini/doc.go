// Copyright 2026 AgentCrew Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

包 gemini 直接对接 Google Gemini REST API（generativelanguage.googleapis.com），
实现 llm.Completer。不经过 openaicompat 兼容层。

# 核心结构体

  - Provider — 持有 http.Client 与 Config，使用 x-goog-api-key 请求头认证
  - generateRequest / generateResponse — generateContent 的请求/响应结构

# 支持能力

  - 单轮生成（/v1beta/models/{model}:generateContent）
  - maxOutputTokens / temperature 生成参数
  - HTTP 错误按状态码映射为 types.Error
*/
package gemini
