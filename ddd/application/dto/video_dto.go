package dto

import (
	"time"

	"insight-service/ddd/domain/entity"
	"insight-service/ddd/domain/vo"
)

// VideoDto 视频数据传输对象。
// 对外只暴露status/stage/error三元组描述处理进度，不泄漏内部重试细节。
type VideoDto struct {
	VideoUUID    string        `json:"video_uuid"`
	UserUUID     string        `json:"user_uuid"`
	Title        string        `json:"title"`
	SourceURL    string        `json:"source_url,omitempty"`
	Status       string        `json:"status"`
	Stage        string        `json:"processing_stage"`
	Transcript   *TranscriptDto `json:"transcript,omitempty"`
	Summary      *vo.Summary   `json:"summary,omitempty"`
	Questions    []vo.Question `json:"questions,omitempty"`
	ErrorMessage string        `json:"error,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
}

// TranscriptDto 转写产物DTO，列表接口不携带词级明细
type TranscriptDto struct {
	Text       string       `json:"text"`
	Language   string       `json:"language"`
	Confidence float64      `json:"confidence"`
	Chapters   []vo.Chapter `json:"chapters,omitempty"`
}

// VideoListDto 分页列表DTO
type VideoListDto struct {
	Videos     []*VideoDto `json:"videos"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	Size       int         `json:"size"`
	TotalPages int         `json:"total_pages"`
}

// NewVideoDto 从实体创建详情DTO
func NewVideoDto(v *entity.VideoEntity) *VideoDto {
	if v == nil {
		return nil
	}
	d := &VideoDto{
		VideoUUID:    v.VideoUUID(),
		UserUUID:     v.UserUUID(),
		Title:        v.Title(),
		SourceURL:    v.SourceURL(),
		Status:       v.Status().String(),
		Stage:        v.Stage().String(),
		Summary:      v.Summary(),
		Questions:    v.Questions(),
		ErrorMessage: v.ErrorMessage(),
		CreatedAt:    v.CreatedAt(),
		UpdatedAt:    v.UpdatedAt(),
		CompletedAt:  v.CompletedAt(),
	}
	if t := v.Transcript(); !t.IsEmpty() {
		d.Transcript = &TranscriptDto{
			Text:       t.Text,
			Language:   t.Language,
			Confidence: t.Confidence,
			Chapters:   t.Chapters,
		}
	}
	return d
}

// NewVideoBriefDto 列表项DTO，不携带派生产物正文
func NewVideoBriefDto(v *entity.VideoEntity) *VideoDto {
	if v == nil {
		return nil
	}
	return &VideoDto{
		VideoUUID:    v.VideoUUID(),
		UserUUID:     v.UserUUID(),
		Title:        v.Title(),
		SourceURL:    v.SourceURL(),
		Status:       v.Status().String(),
		Stage:        v.Stage().String(),
		ErrorMessage: v.ErrorMessage(),
		CreatedAt:    v.CreatedAt(),
		UpdatedAt:    v.UpdatedAt(),
		CompletedAt:  v.CompletedAt(),
	}
}

// NewVideoListDto 组装分页列表DTO
func NewVideoListDto(videos []*entity.VideoEntity, total int64, page, size int) *VideoListDto {
	dtos := make([]*VideoDto, 0, len(videos))
	for _, v := range videos {
		dtos = append(dtos, NewVideoBriefDto(v))
	}
	totalPages := int(total) / size
	if int(total)%size > 0 {
		totalPages++
	}
	return &VideoListDto{
		Videos:     dtos,
		Total:      total,
		Page:       page,
		Size:       size,
		TotalPages: totalPages,
	}
}
