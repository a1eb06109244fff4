package entity

import (
	"time"

	"github.com/google/uuid"

	"insight-service/ddd/domain/vo"
)

// VideoEntity 视频聚合根，承载流水线状态机与全部派生产物
type VideoEntity struct {
	videoUUID      string
	userUUID       string
	title          string
	sourceFilePath string // 本地上传路径，与sourceURL二选一
	sourceURL      string // YouTube来源地址，与sourceFilePath二选一
	status         vo.VideoStatus
	stage          vo.ProcessingStage
	transcript     *vo.Transcript
	summary        *vo.Summary
	questions      []vo.Question
	errorMessage   string
	createdAt      time.Time
	updatedAt      time.Time
	completedAt    *time.Time
}

// NewUploadedVideoEntity 创建本地上传来源的视频
func NewUploadedVideoEntity(userUUID, title, sourceFilePath string) *VideoEntity {
	now := time.Now()
	return &VideoEntity{
		videoUUID:      uuid.New().String(),
		userUUID:       userUUID,
		title:          title,
		sourceFilePath: sourceFilePath,
		status:         vo.VideoStatusUploading,
		stage:          vo.StageTranscription,
		createdAt:      now,
		updatedAt:      now,
	}
}

// NewYoutubeVideoEntity 创建YouTube来源的视频
func NewYoutubeVideoEntity(userUUID, title, sourceURL string) *VideoEntity {
	now := time.Now()
	return &VideoEntity{
		videoUUID: uuid.New().String(),
		userUUID:  userUUID,
		title:     title,
		sourceURL: sourceURL,
		status:    vo.VideoStatusUploading,
		stage:     vo.StageTranscription,
		createdAt: now,
		updatedAt: now,
	}
}

// RestoreVideoEntity 从持久化状态重建实体，持久化层专用
func RestoreVideoEntity(
	videoUUID, userUUID, title, sourceFilePath, sourceURL string,
	status vo.VideoStatus,
	stage vo.ProcessingStage,
	transcript *vo.Transcript,
	summary *vo.Summary,
	questions []vo.Question,
	errorMessage string,
	createdAt, updatedAt time.Time,
	completedAt *time.Time,
) *VideoEntity {
	return &VideoEntity{
		videoUUID:      videoUUID,
		userUUID:       userUUID,
		title:          title,
		sourceFilePath: sourceFilePath,
		sourceURL:      sourceURL,
		status:         status,
		stage:          stage,
		transcript:     transcript,
		summary:        summary,
		questions:      questions,
		errorMessage:   errorMessage,
		createdAt:      createdAt,
		updatedAt:      updatedAt,
		completedAt:    completedAt,
	}
}

// Getters
func (v *VideoEntity) VideoUUID() string          { return v.videoUUID }
func (v *VideoEntity) UserUUID() string           { return v.userUUID }
func (v *VideoEntity) Title() string              { return v.title }
func (v *VideoEntity) SourceFilePath() string     { return v.sourceFilePath }
func (v *VideoEntity) SourceURL() string          { return v.sourceURL }
func (v *VideoEntity) Status() vo.VideoStatus     { return v.status }
func (v *VideoEntity) Stage() vo.ProcessingStage  { return v.stage }
func (v *VideoEntity) Transcript() *vo.Transcript { return v.transcript }
func (v *VideoEntity) Summary() *vo.Summary       { return v.summary }
func (v *VideoEntity) Questions() []vo.Question   { return v.questions }
func (v *VideoEntity) ErrorMessage() string       { return v.errorMessage }
func (v *VideoEntity) CreatedAt() time.Time       { return v.createdAt }
func (v *VideoEntity) UpdatedAt() time.Time       { return v.updatedAt }
func (v *VideoEntity) CompletedAt() *time.Time    { return v.completedAt }

// SetStagedSource 补写staging落盘结果，仅在持久化前的摄取流程使用
func (v *VideoEntity) SetStagedSource(title, filePath string) {
	if title != "" {
		v.title = title
	}
	v.sourceFilePath = filePath
	v.updatedAt = time.Now()
}

// IsTerminal 是否已到终态
func (v *VideoEntity) IsTerminal() bool {
	return v.status.IsTerminal()
}

// Claim Worker认领任务，进入处理中
func (v *VideoEntity) Claim() error {
	if v.status == vo.VideoStatusProcessing {
		// 队列重投递时再次认领是合法的幂等操作
		return nil
	}
	if !v.status.CanTransitionTo(vo.VideoStatusProcessing) {
		return NewDomainError("cannot claim video in status " + v.status.String())
	}
	v.status = vo.VideoStatusProcessing
	v.updatedAt = time.Now()
	return nil
}

// AttachTranscript 写入转写产物并前进到摘要阶段
func (v *VideoEntity) AttachTranscript(t *vo.Transcript) error {
	if t.IsEmpty() {
		return NewDomainError("transcript must not be empty")
	}
	if !v.stage.CanTransitionTo(vo.StageSummarization) {
		return NewDomainError("cannot attach transcript at stage " + v.stage.String())
	}
	v.transcript = t
	v.stage = vo.StageSummarization
	v.errorMessage = ""
	v.updatedAt = time.Now()
	return nil
}

// AttachSummary 写入摘要产物并前进到出题阶段
func (v *VideoEntity) AttachSummary(s *vo.Summary) error {
	if s == nil || s.Text == "" {
		return NewDomainError("summary must not be empty")
	}
	if !v.stage.CanTransitionTo(vo.StageQuestionGeneration) {
		return NewDomainError("cannot attach summary at stage " + v.stage.String())
	}
	v.summary = s
	v.stage = vo.StageQuestionGeneration
	v.errorMessage = ""
	v.updatedAt = time.Now()
	return nil
}

// AttachQuestions 写入题目产物并完成流水线
func (v *VideoEntity) AttachQuestions(questions []vo.Question) error {
	if !v.stage.CanTransitionTo(vo.StageCompleted) {
		return NewDomainError("cannot attach questions at stage " + v.stage.String())
	}
	now := time.Now()
	v.questions = questions
	v.stage = vo.StageCompleted
	v.status = vo.VideoStatusCompleted
	v.errorMessage = ""
	v.completedAt = &now
	v.updatedAt = now
	return nil
}

// Fail 终态失败，保留最后错误信息
func (v *VideoEntity) Fail(errorMessage string) error {
	if v.status.IsTerminal() {
		return NewDomainError("cannot fail video in terminal status " + v.status.String())
	}
	if errorMessage == "" {
		errorMessage = "processing failed"
	}
	v.status = vo.VideoStatusFailed
	v.stage = vo.StageFailed
	v.errorMessage = errorMessage
	v.updatedAt = time.Now()
	return nil
}

// ResetForRetry 外部重试入口：失败的视频回到首个缺失产物的阶段重新入队
func (v *VideoEntity) ResetForRetry() error {
	if v.status != vo.VideoStatusFailed {
		return NewDomainError("only failed videos can be retried")
	}
	switch {
	case v.transcript.IsEmpty():
		v.stage = vo.StageTranscription
	case v.summary == nil || v.summary.Text == "":
		v.stage = vo.StageSummarization
	default:
		v.stage = vo.StageQuestionGeneration
	}
	v.status = vo.VideoStatusUploading
	v.errorMessage = ""
	v.updatedAt = time.Now()
	return nil
}

// DomainError 领域错误
type DomainError struct {
	message string
}

func NewDomainError(message string) *DomainError {
	return &DomainError{message: message}
}

func (e *DomainError) Error() string {
	return e.message
}
