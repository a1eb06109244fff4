package gateway

import (
	"context"

	"insight-service/ddd/domain/vo"
)

// TranscribeOptions 转写功能开关，零值表示使用服务端默认特性集
type TranscribeOptions struct {
	SpeakerLabels     bool
	AutoChapters      bool
	EntityDetection   bool
	SentimentAnalysis bool
	AutoHighlights    bool
	Punctuate         bool
	LanguageDetect    bool
}

// TranscriptionGateway 语音转写提供方的出站契约。
// 实现负责上传音频、提交任务、轮询与结果归一化；
// 错误必须按vo.StageError分类返回。
type TranscriptionGateway interface {
	Transcribe(ctx context.Context, filePath string, opts *TranscribeOptions) (*vo.Transcript, error)
}
