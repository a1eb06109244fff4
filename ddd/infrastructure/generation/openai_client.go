package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"insight-service/ddd/domain/vo"
	"insight-service/pkg/config"
)

// OpenAIClient OpenAI兼容的chat-completions客户端，
// 也覆盖DeepSeek、通义等兼容同一接口的提供方
type OpenAIClient struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
}

func NewOpenAIClient(cfg *config.GenerationProviderConfig) *OpenAIClient {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIClient{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

func (c *OpenAIClient) Model() string {
	return c.model
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	payload, _ := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", vo.NewTransientError(vo.StageSummarization, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", vo.NewTransientError(vo.StageSummarization, fmt.Errorf("chat completion: %w", err))
	}
	defer resp.Body.Close()

	if err := classifyGenerationStatus(resp, "chat completion"); err != nil {
		return "", err
	}

	var body chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", vo.NewRejectedError(vo.StageSummarization, fmt.Errorf("invalid chat response: %w", err))
	}
	if body.Error != nil {
		return "", vo.NewRejectedError(vo.StageSummarization, fmt.Errorf("provider error: %s", body.Error.Message))
	}
	if len(body.Choices) == 0 || body.Choices[0].Message.Content == "" {
		return "", vo.NewRejectedError(vo.StageSummarization, fmt.Errorf("empty completion from model %s", c.model))
	}
	return body.Choices[0].Message.Content, nil
}

// classifyGenerationStatus 限流与5xx按可重试处理，其余非2xx视为提供方拒绝。
// 具体阶段由编排方重新标注，这里统一挂在摘要阶段上。
func classifyGenerationStatus(resp *http.Response, op string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err := fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, string(snippet))
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return vo.NewTransientError(vo.StageSummarization, err)
	}
	return vo.NewRejectedError(vo.StageSummarization, err)
}
