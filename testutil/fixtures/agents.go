// =============================================================================
// 📦 测试数据工厂 - Crew 配置测试数据
// =============================================================================
// 提供离线可运行的配置（echo 模型、短期记忆），用于测试
// =============================================================================
package fixtures

import (
	"github.com/BaSui01/agentcrew/config"
)

// =============================================================================
// 🤖 配置工厂
// =============================================================================

// AgentConfig 返回使用默认参数的 Agent 配置
func AgentConfig(name string, tools ...string) config.AgentConfig {
	return config.AgentConfig{
		Name:  name,
		Role:  "a " + name + " agent",
		Tools: tools,
	}
}

// EchoConfig 返回 echo 模型、短期记忆、给定编排方式与 Agent 的配置
func EchoConfig(process string, agents ...string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Crew.Name = "test-crew"
	cfg.Crew.Process = process
	cfg.LLM.Provider = "echo"
	cfg.LLM.Cache.Enabled = false
	cfg.LLM.RateLimitRPS = 0
	cfg.Memory.Type = "short_term"
	cfg.Agents = make([]config.AgentConfig, 0, len(agents))
	for _, name := range agents {
		cfg.Agents = append(cfg.Agents, AgentConfig(name, "echo"))
	}
	return cfg
}
