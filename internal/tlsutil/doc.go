// Package tlsutil 为 agentcrew 的出站连接提供统一的 TLS 设置（TLS 1.2+，仅 AEAD 密码套件）。
package tlsutil
