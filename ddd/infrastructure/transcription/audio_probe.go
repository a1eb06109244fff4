package transcription

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"insight-service/ddd/domain/vo"
)

// AudioProbe 借助ffprobe校验媒体文件是否含音频流。
// 无音频的文件送去转写必然失败，提前拦截省掉一轮远程调用。
type AudioProbe struct {
	binary string
}

func NewAudioProbe(binary string) *AudioProbe {
	if binary == "" {
		binary = "ffprobe"
	}
	return &AudioProbe{binary: binary}
}

// EnsureAudioTrack 文件不含音频流时返回前置条件错误
func (p *AudioProbe) EnsureAudioTrack(ctx context.Context, filePath string) error {
	cmd := exec.CommandContext(ctx, p.binary,
		"-v", "error",
		"-select_streams", "a",
		"-show_entries", "stream=codec_type",
		"-of", "json",
		filePath,
	)
	output, err := cmd.Output()
	if err != nil {
		return vo.NewPreconditionError(vo.StageTranscription, fmt.Errorf("probe media %s: %w", filePath, err))
	}

	var result struct {
		Streams []struct {
			CodecType string `json:"codec_type"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(output, &result); err != nil {
		return vo.NewPreconditionError(vo.StageTranscription, fmt.Errorf("parse probe output: %w", err))
	}
	for _, s := range result.Streams {
		if s.CodecType == "audio" {
			return nil
		}
	}
	return vo.NewPreconditionError(vo.StageTranscription, fmt.Errorf("media %s has no audio track", filePath))
}
