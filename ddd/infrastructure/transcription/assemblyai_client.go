package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"insight-service/ddd/domain/gateway"
	"insight-service/ddd/domain/vo"
	"insight-service/pkg/assert"
	"insight-service/pkg/config"
	"insight-service/pkg/logger"
)

var (
	clientOnce      sync.Once
	singletonClient gateway.TranscriptionGateway
)

// AssemblyClient 语音转写客户端。
// 流程：上传音频 -> 提交转写任务 -> 轮询直至终态 -> 归一化结果。
// 上游时间戳单位是毫秒，出站统一换算为秒。
type AssemblyClient struct {
	baseURL         string
	apiKey          string
	pollInterval    time.Duration
	maxPollAttempts int
	httpClient      *http.Client
	probe           *AudioProbe // 可空，空则跳过音轨前置校验
}

func DefaultTranscriptionGateway() gateway.TranscriptionGateway {
	assert.NotCircular()
	clientOnce.Do(func() {
		cfg := config.GetGlobalConfig()
		singletonClient = NewAssemblyClient(&cfg.Transcription, NewAudioProbe(cfg.Ingest.FFprobeBinary))
	})
	assert.NotNil(singletonClient)
	return singletonClient
}

func NewAssemblyClient(cfg *config.TranscriptionConfig, probe *AudioProbe) *AssemblyClient {
	return &AssemblyClient{
		baseURL:         cfg.BaseURL,
		apiKey:          cfg.APIKey,
		pollInterval:    cfg.PollInterval,
		maxPollAttempts: cfg.MaxPollAttempts,
		httpClient:      &http.Client{Timeout: cfg.RequestTimeout},
		probe:           probe,
	}
}

type submitRequest struct {
	AudioURL          string `json:"audio_url"`
	SpeakerLabels     bool   `json:"speaker_labels,omitempty"`
	AutoChapters      bool   `json:"auto_chapters,omitempty"`
	EntityDetection   bool   `json:"entity_detection,omitempty"`
	SentimentAnalysis bool   `json:"sentiment_analysis,omitempty"`
	AutoHighlights    bool   `json:"auto_highlights,omitempty"`
	Punctuate         bool   `json:"punctuate,omitempty"`
	LanguageDetection bool   `json:"language_detection,omitempty"`
}

type transcriptResponse struct {
	ID           string  `json:"id"`
	Status       string  `json:"status"`
	Error        string  `json:"error"`
	Text         string  `json:"text"`
	LanguageCode string  `json:"language_code"`
	Confidence   float64 `json:"confidence"`
	Words        []struct {
		Text       string  `json:"text"`
		Start      int64   `json:"start"`
		End        int64   `json:"end"`
		Confidence float64 `json:"confidence"`
		Speaker    string  `json:"speaker"`
	} `json:"words"`
	Utterances []struct {
		Speaker    string  `json:"speaker"`
		Text       string  `json:"text"`
		Start      int64   `json:"start"`
		End        int64   `json:"end"`
		Confidence float64 `json:"confidence"`
	} `json:"utterances"`
	Chapters []struct {
		Gist     string `json:"gist"`
		Headline string `json:"headline"`
		Summary  string `json:"summary"`
		Start    int64  `json:"start"`
		End      int64  `json:"end"`
	} `json:"chapters"`
	Entities []struct {
		EntityType string `json:"entity_type"`
		Text       string `json:"text"`
		Start      int64  `json:"start"`
		End        int64  `json:"end"`
	} `json:"entities"`
	SentimentAnalysisResults []struct {
		Text       string  `json:"text"`
		Sentiment  string  `json:"sentiment"`
		Confidence float64 `json:"confidence"`
		Start      int64   `json:"start"`
		End        int64   `json:"end"`
	} `json:"sentiment_analysis_results"`
	AutoHighlightsResult *struct {
		Results []struct {
			Text  string  `json:"text"`
			Rank  float64 `json:"rank"`
			Count int     `json:"count"`
		} `json:"results"`
	} `json:"auto_highlights_result"`
}

func (c *AssemblyClient) Transcribe(ctx context.Context, filePath string, opts *gateway.TranscribeOptions) (*vo.Transcript, error) {
	if c.probe != nil {
		if err := c.probe.EnsureAudioTrack(ctx, filePath); err != nil {
			return nil, err
		}
	}

	audioURL, err := c.uploadMedia(ctx, filePath)
	if err != nil {
		return nil, err
	}

	transcriptID, err := c.submit(ctx, audioURL, opts)
	if err != nil {
		return nil, err
	}
	logger.Info("transcription submitted", map[string]interface{}{
		"transcript_id": transcriptID,
		"file_path":     filePath,
	})

	resp, err := c.poll(ctx, transcriptID)
	if err != nil {
		return nil, err
	}
	return normalizeTranscript(resp), nil
}

// uploadMedia 流式上传本地媒体文件，返回上游可访问的音频地址
func (c *AssemblyClient) uploadMedia(ctx context.Context, filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", vo.NewPreconditionError(vo.StageTranscription, fmt.Errorf("open media file: %w", err))
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/upload", f)
	if err != nil {
		return "", vo.NewTransientError(vo.StageTranscription, err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", vo.NewTransientError(vo.StageTranscription, fmt.Errorf("upload media: %w", err))
	}
	defer resp.Body.Close()

	if err := classifyHTTPStatus(resp, "upload media"); err != nil {
		return "", err
	}

	var body struct {
		UploadURL string `json:"upload_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.UploadURL == "" {
		return "", vo.NewRejectedError(vo.StageTranscription, fmt.Errorf("invalid upload response: %v", err))
	}
	return body.UploadURL, nil
}

func (c *AssemblyClient) submit(ctx context.Context, audioURL string, opts *gateway.TranscribeOptions) (string, error) {
	if opts == nil {
		opts = &gateway.TranscribeOptions{}
	}
	payload, _ := json.Marshal(submitRequest{
		AudioURL:          audioURL,
		SpeakerLabels:     opts.SpeakerLabels,
		AutoChapters:      opts.AutoChapters,
		EntityDetection:   opts.EntityDetection,
		SentimentAnalysis: opts.SentimentAnalysis,
		AutoHighlights:    opts.AutoHighlights,
		Punctuate:         opts.Punctuate,
		LanguageDetection: opts.LanguageDetect,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/transcript", bytes.NewReader(payload))
	if err != nil {
		return "", vo.NewTransientError(vo.StageTranscription, err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", vo.NewTransientError(vo.StageTranscription, fmt.Errorf("submit transcript: %w", err))
	}
	defer resp.Body.Close()

	if err := classifyHTTPStatus(resp, "submit transcript"); err != nil {
		return "", err
	}

	var body transcriptResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.ID == "" {
		return "", vo.NewRejectedError(vo.StageTranscription, fmt.Errorf("invalid submit response: %v", err))
	}
	return body.ID, nil
}

// poll 按固定间隔轮询任务，超出轮询预算按可重试处理
func (c *AssemblyClient) poll(ctx context.Context, transcriptID string) (*transcriptResponse, error) {
	for attempt := 0; attempt < c.maxPollAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, vo.NewTransientError(vo.StageTranscription, ctx.Err())
			case <-time.After(c.pollInterval):
			}
		}

		resp, err := c.fetchTranscript(ctx, transcriptID)
		if err != nil {
			return nil, err
		}
		switch resp.Status {
		case "completed":
			if resp.Text == "" {
				return nil, vo.NewRejectedError(vo.StageTranscription, fmt.Errorf("transcript %s completed with empty text", transcriptID))
			}
			return resp, nil
		case "error":
			return nil, vo.NewRejectedError(vo.StageTranscription, fmt.Errorf("transcript %s failed: %s", transcriptID, resp.Error))
		case "queued", "processing":
			continue
		default:
			return nil, vo.NewRejectedError(vo.StageTranscription, fmt.Errorf("transcript %s unknown status %q", transcriptID, resp.Status))
		}
	}
	return nil, vo.NewTransientError(vo.StageTranscription, fmt.Errorf("transcript %s not finished after %d polls", transcriptID, c.maxPollAttempts))
}

func (c *AssemblyClient) fetchTranscript(ctx context.Context, transcriptID string) (*transcriptResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/transcript/"+transcriptID, nil)
	if err != nil {
		return nil, vo.NewTransientError(vo.StageTranscription, err)
	}
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, vo.NewTransientError(vo.StageTranscription, fmt.Errorf("poll transcript: %w", err))
	}
	defer resp.Body.Close()

	if err := classifyHTTPStatus(resp, "poll transcript"); err != nil {
		return nil, err
	}

	var body transcriptResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, vo.NewRejectedError(vo.StageTranscription, fmt.Errorf("invalid poll response: %w", err))
	}
	return &body, nil
}

// classifyHTTPStatus 限流与5xx按可重试处理，其余非2xx视为提供方拒绝
func classifyHTTPStatus(resp *http.Response, op string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err := fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, string(snippet))
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return vo.NewTransientError(vo.StageTranscription, err)
	}
	return vo.NewRejectedError(vo.StageTranscription, err)
}

// normalizeTranscript 上游毫秒时间戳归一化为秒
func normalizeTranscript(resp *transcriptResponse) *vo.Transcript {
	t := &vo.Transcript{
		Text:       resp.Text,
		Language:   resp.LanguageCode,
		Confidence: resp.Confidence,
	}
	for _, w := range resp.Words {
		t.Words = append(t.Words, vo.Word{
			Text:       w.Text,
			Start:      msToSeconds(w.Start),
			End:        msToSeconds(w.End),
			Confidence: w.Confidence,
			Speaker:    w.Speaker,
		})
	}
	for _, u := range resp.Utterances {
		t.Utterances = append(t.Utterances, vo.Utterance{
			Speaker:    u.Speaker,
			Text:       u.Text,
			Start:      msToSeconds(u.Start),
			End:        msToSeconds(u.End),
			Confidence: u.Confidence,
		})
	}
	for _, ch := range resp.Chapters {
		t.Chapters = append(t.Chapters, vo.Chapter{
			Gist:     ch.Gist,
			Headline: ch.Headline,
			Summary:  ch.Summary,
			Start:    msToSeconds(ch.Start),
			End:      msToSeconds(ch.End),
		})
	}
	for _, e := range resp.Entities {
		t.Entities = append(t.Entities, vo.Entity{
			Type:  e.EntityType,
			Text:  e.Text,
			Start: msToSeconds(e.Start),
			End:   msToSeconds(e.End),
		})
	}
	for _, s := range resp.SentimentAnalysisResults {
		t.Sentiments = append(t.Sentiments, vo.SentimentSpan{
			Text:       s.Text,
			Sentiment:  s.Sentiment,
			Confidence: s.Confidence,
			Start:      msToSeconds(s.Start),
			End:        msToSeconds(s.End),
		})
	}
	if resp.AutoHighlightsResult != nil {
		for _, h := range resp.AutoHighlightsResult.Results {
			t.Highlights = append(t.Highlights, vo.Highlight{
				Text:  h.Text,
				Rank:  h.Rank,
				Count: h.Count,
			})
		}
	}
	return t
}

func msToSeconds(ms int64) float64 {
	return float64(ms) / 1000.0
}
