package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"

	"insight-service/ddd/domain/entity"
	"insight-service/ddd/domain/gateway"
	"insight-service/ddd/domain/repo"
	"insight-service/ddd/domain/vo"
	"insight-service/pkg/config"
	"insight-service/pkg/logger"
	"insight-service/pkg/metrics"
)

// PipelineService 流水线编排领域服务。
// 驱动单个视频按 转写→摘要→出题 的固定顺序前进，
// 每个阶段成功后立即持久化，崩溃或重投递后从已持久化的阶段续跑。
type PipelineService interface {
	// ProcessVideo 处理一次任务投递；返回的错误已按vo.FailureKind分类
	ProcessVideo(ctx context.Context, videoUUID, filePath string) error

	// MarkFailed 队列层重试预算耗尽后落终态失败
	MarkFailed(ctx context.Context, videoUUID, errorMessage string) error
}

type pipelineServiceImpl struct {
	videoRepo     repo.VideoRepository
	transcription gateway.TranscriptionGateway
	generation    gateway.GenerationGateway
	genFallback   gateway.GenerationGateway // 可为nil，RemoteRejected时启用
	usage         gateway.UsageGateway
	cfg           *config.Config
}

// NewPipelineService 创建流水线编排服务。
// genFallback为nil时不启用备用文本生成提供方。
func NewPipelineService(
	videoRepo repo.VideoRepository,
	transcription gateway.TranscriptionGateway,
	generation gateway.GenerationGateway,
	genFallback gateway.GenerationGateway,
	usage gateway.UsageGateway,
	cfg *config.Config,
) PipelineService {
	return &pipelineServiceImpl{
		videoRepo:     videoRepo,
		transcription: transcription,
		generation:    generation,
		genFallback:   genFallback,
		usage:         usage,
		cfg:           cfg,
	}
}

// ProcessVideo 处理一次任务投递
func (s *pipelineServiceImpl) ProcessVideo(ctx context.Context, videoUUID, filePath string) error {
	if s.cfg == nil {
		s.cfg = config.GetGlobalConfig()
	}

	video, err := s.videoRepo.GetVideo(ctx, videoUUID)
	if err != nil {
		return vo.NewPreconditionError(vo.StageTranscription, fmt.Errorf("load video %s: %w", videoUUID, err))
	}
	if video.IsTerminal() {
		logger.Infof("skip terminal video video_uuid=%s status=%s", videoUUID, video.Status())
		return nil
	}

	if err := video.Claim(); err != nil {
		return vo.NewPreconditionError(video.Stage(), err)
	}
	if err := s.videoRepo.UpdateClaim(ctx, video); err != nil {
		return vo.NewTransientError(video.Stage(), fmt.Errorf("persist claim: %w", err))
	}

	logger.Infof("pipeline claimed video video_uuid=%s stage=%s attempt_path=%s", videoUUID, video.Stage(), filePath)

	// 从已持久化的阶段续跑，绝不重跑已完成的阶段
	if video.Stage() == vo.StageTranscription {
		if err := s.runTranscription(ctx, video, filePath); err != nil {
			return err
		}
	}
	if video.Stage() == vo.StageSummarization {
		if err := s.runSummarization(ctx, video); err != nil {
			return err
		}
	}
	if video.Stage() == vo.StageQuestionGeneration {
		if err := s.runQuestionGeneration(ctx, video); err != nil {
			return err
		}
	}

	if _, err := s.usage.IncrementUsageCounter(ctx, video.UserUUID(), "videos_processed"); err != nil {
		// 计数失败不影响流水线结果
		logger.Warnf("usage counter increment failed user_uuid=%s error=%v", video.UserUUID(), err)
	}
	metrics.VideosProcessed.WithLabelValues(vo.VideoStatusCompleted.String()).Inc()

	logger.Infof("pipeline completed video_uuid=%s questions=%d", videoUUID, len(video.Questions()))
	return nil
}

// MarkFailed 落终态失败，保留最后错误信息
func (s *pipelineServiceImpl) MarkFailed(ctx context.Context, videoUUID, errorMessage string) error {
	video, err := s.videoRepo.GetVideo(ctx, videoUUID)
	if err != nil {
		return fmt.Errorf("load video %s: %w", videoUUID, err)
	}
	if video.IsTerminal() {
		return nil
	}
	if err := video.Fail(errorMessage); err != nil {
		return err
	}
	if err := s.videoRepo.UpdateFailure(ctx, video); err != nil {
		return fmt.Errorf("persist failure: %w", err)
	}
	metrics.VideosProcessed.WithLabelValues(vo.VideoStatusFailed.String()).Inc()
	logger.Warnf("pipeline failed terminally video_uuid=%s error=%s", videoUUID, errorMessage)
	return nil
}

// runTranscription 阶段一：语音转写
func (s *pipelineServiceImpl) runTranscription(ctx context.Context, video *entity.VideoEntity, filePath string) error {
	stage := vo.StageTranscription

	// 远程调用前校验本地文件，缺失直接判前置失败，零远程调用
	if _, err := os.Stat(filePath); err != nil {
		return vo.NewPreconditionError(stage, fmt.Errorf("source file not readable: %w", err))
	}

	opts := s.transcribeOptions()
	var transcript *vo.Transcript
	err := s.callWithRetry(ctx, stage, func() error {
		t, callErr := s.transcription.Transcribe(ctx, filePath, opts)
		if callErr != nil {
			return callErr
		}
		transcript = t
		return nil
	})
	if err != nil {
		return err
	}

	if err := video.AttachTranscript(transcript); err != nil {
		return vo.NewRejectedError(stage, err)
	}
	if err := s.videoRepo.UpdateTranscript(ctx, video); err != nil {
		return vo.NewTransientError(stage, fmt.Errorf("persist transcript: %w", err))
	}
	logger.Infof("transcription persisted video_uuid=%s language=%s words=%d",
		video.VideoUUID(), transcript.Language, len(transcript.Words))
	return nil
}

// runSummarization 阶段二：摘要生成
func (s *pipelineServiceImpl) runSummarization(ctx context.Context, video *entity.VideoEntity) error {
	stage := vo.StageSummarization

	transcript := video.Transcript()
	if transcript.IsEmpty() {
		return vo.NewPreconditionError(stage, errors.New("transcript missing before summarization"))
	}

	prompt := BuildSummaryPrompt(transcript.Text, transcript.Language)
	raw, model, err := s.generateWithFallback(ctx, stage, prompt, func(output string) error {
		_, _, parseErr := ParseSummary(output)
		return parseErr
	})
	if err != nil {
		return err
	}

	text, keyPoints, _ := ParseSummary(raw)
	summary := &vo.Summary{
		Text:        text,
		KeyPoints:   keyPoints,
		Model:       model,
		GeneratedAt: time.Now(),
	}
	if err := video.AttachSummary(summary); err != nil {
		return vo.NewRejectedError(stage, err)
	}
	if err := s.videoRepo.UpdateSummary(ctx, video); err != nil {
		return vo.NewTransientError(stage, fmt.Errorf("persist summary: %w", err))
	}
	logger.Infof("summary persisted video_uuid=%s model=%s key_points=%d", video.VideoUUID(), model, len(keyPoints))
	return nil
}

// runQuestionGeneration 阶段三：出题
func (s *pipelineServiceImpl) runQuestionGeneration(ctx context.Context, video *entity.VideoEntity) error {
	stage := vo.StageQuestionGeneration

	transcript := video.Transcript()
	if transcript.IsEmpty() {
		return vo.NewPreconditionError(stage, errors.New("transcript missing before question generation"))
	}

	count := s.cfg.Pipeline.QuestionCount
	prompt := BuildQuestionsPrompt(transcript.Text, count)

	var questions []vo.Question
	_, _, err := s.generateWithFallback(ctx, stage, prompt, func(output string) error {
		parsed, parseErr := ParseQuestions(output)
		if parseErr != nil {
			return parseErr
		}
		// 全部条目不合格等同于不可用的响应，走拒绝分支而不是带零题完成
		if len(parsed) == 0 {
			return errors.New("no well-formed questions in response")
		}
		questions = parsed
		return nil
	})
	if err != nil {
		return err
	}

	if err := video.AttachQuestions(questions); err != nil {
		return vo.NewRejectedError(stage, err)
	}
	if err := s.videoRepo.UpdateQuestions(ctx, video); err != nil {
		return vo.NewTransientError(stage, fmt.Errorf("persist questions: %w", err))
	}
	logger.Infof("questions persisted video_uuid=%s count=%d", video.VideoUUID(), len(questions))
	return nil
}

// generateWithFallback 先主提供方，RemoteRejected（含响应不可解析）再试备用提供方。
// 每个提供方各自享有完整的进程内瞬时重试预算。
func (s *pipelineServiceImpl) generateWithFallback(
	ctx context.Context,
	stage vo.ProcessingStage,
	prompt string,
	validate func(output string) error,
) (string, string, error) {
	raw, err := s.generateOnce(ctx, stage, s.generation, prompt, validate)
	if err == nil {
		return raw, s.generation.Model(), nil
	}
	if vo.KindOf(err) != vo.FailureRejected || s.genFallback == nil {
		return "", "", err
	}

	logger.Warnf("primary generation rejected, trying fallback stage=%s error=%v", stage, err)
	raw, fbErr := s.generateOnce(ctx, stage, s.genFallback, prompt, validate)
	if fbErr != nil {
		return "", "", fbErr
	}
	return raw, s.genFallback.Model(), nil
}

// generateOnce 单个提供方的一次生成，带瞬时重试与输出校验
func (s *pipelineServiceImpl) generateOnce(
	ctx context.Context,
	stage vo.ProcessingStage,
	g gateway.GenerationGateway,
	prompt string,
	validate func(output string) error,
) (string, error) {
	var raw string
	err := s.callWithRetry(ctx, stage, func() error {
		output, callErr := g.Generate(ctx, prompt)
		if callErr != nil {
			return callErr
		}
		if validate != nil {
			if parseErr := validate(output); parseErr != nil {
				return vo.NewRejectedError(stage, parseErr)
			}
		}
		raw = output
		return nil
	})
	if err != nil {
		return "", err
	}
	return raw, nil
}

// callWithRetry 进程内瞬时重试：最多StageMaxAttempts次，基础延迟指数翻倍。
// 非瞬时错误直接穿透，不消耗重试预算。
func (s *pipelineServiceImpl) callWithRetry(ctx context.Context, stage vo.ProcessingStage, fn func() error) error {
	maxAttempts := s.cfg.Pipeline.StageMaxAttempts
	baseDelay := s.cfg.Pipeline.StageBaseDelay

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = baseDelay
	policy.Multiplier = 2
	policy.RandomizationFactor = 0
	policy.MaxElapsedTime = 0

	started := time.Now()
	defer func() {
		metrics.StageDuration.WithLabelValues(stage.String()).Observe(time.Since(started).Seconds())
	}()

	attempts := 0
	operation := func() error {
		attempts++
		err := fn()
		if err == nil {
			metrics.StageAttempts.WithLabelValues(stage.String(), "success").Inc()
			return nil
		}
		if !vo.IsTransient(err) {
			metrics.StageAttempts.WithLabelValues(stage.String(), "rejected").Inc()
			return backoff.Permanent(err)
		}
		metrics.StageAttempts.WithLabelValues(stage.String(), "transient").Inc()
		logger.Warnf("stage call transient failure stage=%s attempt=%d error=%v", stage, attempts, err)
		return err
	}

	err := backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(maxAttempts-1)), ctx))
	if err == nil {
		return nil
	}

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Err
	}
	var se *vo.StageError
	if errors.As(err, &se) {
		return se
	}
	// 网关实现未分类的错误按瞬时兜底
	return vo.NewTransientError(stage, err)
}

// transcribeOptions 转写特性集：配置给定默认值，调用方可覆盖的场景走gateway参数
func (s *pipelineServiceImpl) transcribeOptions() *gateway.TranscribeOptions {
	t := s.cfg.Transcription
	return &gateway.TranscribeOptions{
		SpeakerLabels:     t.SpeakerLabels,
		AutoChapters:      t.AutoChapters,
		EntityDetection:   t.EntityDetection,
		SentimentAnalysis: t.SentimentAnalysis,
		AutoHighlights:    t.AutoHighlights,
		Punctuate:         t.Punctuate,
		LanguageDetect:    t.LanguageDetect,
	}
}
