package gateway

import "context"

// GenerationGateway 文本生成提供方的出站契约。
// 提示词构造与响应解析属于领域层，适配器只负责一来一回。
type GenerationGateway interface {
	// Generate 提交提示词，返回原始文本输出
	Generate(ctx context.Context, prompt string) (string, error)
	// Model 返回生成所用的模型标识，写入摘要产物
	Model() string
}
