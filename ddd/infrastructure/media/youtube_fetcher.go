package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"insight-service/pkg/assert"
	"insight-service/pkg/config"
	"insight-service/pkg/logger"
)

var (
	fetcherOnce      sync.Once
	singletonFetcher *YoutubeFetcher
)

// YoutubeFetcher yt-dlp的薄封装，拉取YouTube音频到本地staging目录
type YoutubeFetcher struct {
	binary    string
	uploadDir string
}

func DefaultYoutubeFetcher() *YoutubeFetcher {
	assert.NotCircular()
	fetcherOnce.Do(func() {
		cfg := config.GetGlobalConfig().Ingest
		singletonFetcher = NewYoutubeFetcher(cfg.YoutubeBinary, cfg.UploadDir)
	})
	assert.NotNil(singletonFetcher)
	return singletonFetcher
}

func NewYoutubeFetcher(binary, uploadDir string) *YoutubeFetcher {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &YoutubeFetcher{binary: binary, uploadDir: uploadDir}
}

// FetchAudio 下载音频流，返回本地文件路径与视频标题
func (f *YoutubeFetcher) FetchAudio(ctx context.Context, sourceURL, videoUUID string) (string, string, error) {
	destDir := filepath.Join(f.uploadDir, videoUUID)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", "", fmt.Errorf("create staging dir: %w", err)
	}

	outputTemplate := filepath.Join(destDir, "audio.%(ext)s")
	cmd := exec.CommandContext(ctx, f.binary,
		"--no-playlist",
		"-x",
		"--audio-format", "mp3",
		"-o", outputTemplate,
		"--print", "after_move:title",
		"--print", "after_move:filepath",
		sourceURL,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		logger.Warnf("youtube fetch failed url=%s stderr=%s", sourceURL, truncate(stderr.String(), 512))
		return "", "", fmt.Errorf("fetch audio from %s: %w", sourceURL, err)
	}

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	if len(lines) < 2 {
		return "", "", fmt.Errorf("unexpected downloader output for %s", sourceURL)
	}
	title := strings.TrimSpace(lines[0])
	filePath := strings.TrimSpace(lines[len(lines)-1])
	if _, err := os.Stat(filePath); err != nil {
		return "", "", fmt.Errorf("downloaded file missing: %w", err)
	}
	return filePath, title, nil
}

// IsValidYoutubeURL 来源地址白名单校验
func IsValidYoutubeURL(sourceURL string) bool {
	u := strings.ToLower(strings.TrimSpace(sourceURL))
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return false
	}
	for _, host := range []string{"youtube.com/", "www.youtube.com/", "youtu.be/", "m.youtube.com/"} {
		if strings.Contains(u, "://"+host) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
