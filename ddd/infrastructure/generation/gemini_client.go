package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"insight-service/ddd/domain/vo"
	"insight-service/pkg/config"
)

// GeminiClient Google Gemini generateContent客户端，通常作为备用提供方
type GeminiClient struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
}

func NewGeminiClient(cfg *config.GenerationProviderConfig) *GeminiClient {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &GeminiClient{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

func (c *GeminiClient) Model() string {
	return c.model
}

type geminiRequest struct {
	Contents         []geminiContent  `json:"contents"`
	GenerationConfig *geminiGenConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: prompt}}},
		},
	}
	if c.temperature > 0 || c.maxTokens > 0 {
		reqBody.GenerationConfig = &geminiGenConfig{
			Temperature:     c.temperature,
			MaxOutputTokens: c.maxTokens,
		}
	}
	payload, _ := json.Marshal(reqBody)

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", vo.NewTransientError(vo.StageSummarization, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", vo.NewTransientError(vo.StageSummarization, fmt.Errorf("generate content: %w", err))
	}
	defer resp.Body.Close()

	if err := classifyGenerationStatus(resp, "generate content"); err != nil {
		return "", err
	}

	var body geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", vo.NewRejectedError(vo.StageSummarization, fmt.Errorf("invalid gemini response: %w", err))
	}
	if body.Error != nil {
		return "", vo.NewRejectedError(vo.StageSummarization, fmt.Errorf("provider error: %s", body.Error.Message))
	}
	if len(body.Candidates) == 0 || len(body.Candidates[0].Content.Parts) == 0 {
		return "", vo.NewRejectedError(vo.StageSummarization, fmt.Errorf("empty candidates from model %s", c.model))
	}

	var text string
	for _, part := range body.Candidates[0].Content.Parts {
		text += part.Text
	}
	if text == "" {
		return "", vo.NewRejectedError(vo.StageSummarization, fmt.Errorf("empty text from model %s", c.model))
	}
	return text, nil
}
