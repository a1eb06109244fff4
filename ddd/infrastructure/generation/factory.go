package generation

import (
	"sync"

	"insight-service/ddd/domain/gateway"
	"insight-service/pkg/assert"
	"insight-service/pkg/config"
	"insight-service/pkg/logger"
)

var (
	primaryOnce       sync.Once
	singletonPrimary  gateway.GenerationGateway
	fallbackOnce      sync.Once
	singletonFallback gateway.GenerationGateway
)

// NewGenerationGateway 按provider字段构造对应客户端，
// 未识别的provider回落到OpenAI兼容协议
func NewGenerationGateway(cfg *config.GenerationProviderConfig) gateway.GenerationGateway {
	switch cfg.Provider {
	case "gemini":
		return NewGeminiClient(cfg)
	case "openai", "deepseek", "":
		return NewOpenAIClient(cfg)
	default:
		logger.Warnf("unknown generation provider %q, using openai-compatible client", cfg.Provider)
		return NewOpenAIClient(cfg)
	}
}

func DefaultPrimaryGateway() gateway.GenerationGateway {
	assert.NotCircular()
	primaryOnce.Do(func() {
		cfg := config.GetGlobalConfig().Generation.Primary
		singletonPrimary = NewGenerationGateway(&cfg)
	})
	assert.NotNil(singletonPrimary)
	return singletonPrimary
}

// DefaultFallbackGateway 备用提供方未配置时返回nil，编排方按无备用处理
func DefaultFallbackGateway() gateway.GenerationGateway {
	assert.NotCircular()
	fallbackOnce.Do(func() {
		cfg := config.GetGlobalConfig().Generation.Fallback
		if cfg.BaseURL == "" || cfg.Model == "" {
			return
		}
		singletonFallback = NewGenerationGateway(&cfg)
	})
	return singletonFallback
}
