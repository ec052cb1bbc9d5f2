// Package telemetry 集中初始化 OpenTelemetry 的 TracerProvider 与 MeterProvider，
// 并为 crew、agent、模型调用与 HTTP 层提供统一的 tracer。
package telemetry
