// Package eventbus 分发 crew 运行事件。
//
// Bus 在进程内扇出事件（HTTP 事件流订阅），发布方永不阻塞，订阅方缓冲
// 已满时丢弃并计数。NATSPublisher 将事件以 JSON 发布到 {prefix}.{type}；
// NATSHumanInputResponder 订阅 {prefix}.human_input.respond，把远端提交的
// 人工输入转交给 HITL Broker。
package eventbus
