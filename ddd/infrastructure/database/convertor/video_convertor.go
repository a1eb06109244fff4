package convertor

import (
	"encoding/json"

	"insight-service/ddd/domain/entity"
	"insight-service/ddd/domain/vo"
	"insight-service/ddd/infrastructure/database/po"
	"insight-service/pkg/logger"
)

// VideoConvertor 实体与持久化对象互转
type VideoConvertor struct{}

func NewVideoConvertor() *VideoConvertor {
	return &VideoConvertor{}
}

// ToPO 实体转持久化对象
func (c *VideoConvertor) ToPO(video *entity.VideoEntity) *po.Video {
	p := &po.Video{
		VideoUUID:      video.VideoUUID(),
		UserUUID:       video.UserUUID(),
		Title:          video.Title(),
		SourceFilePath: video.SourceFilePath(),
		SourceURL:      video.SourceURL(),
		Status:         video.Status().String(),
		Stage:          video.Stage().String(),
		ErrorMessage:   video.ErrorMessage(),
		CompletedAt:    video.CompletedAt(),
	}
	if t := video.Transcript(); t != nil {
		p.Transcript = marshalColumn(t)
	}
	if s := video.Summary(); s != nil {
		p.Summary = marshalColumn(s)
	}
	if qs := video.Questions(); len(qs) > 0 {
		p.Questions = marshalColumn(qs)
	}
	return p
}

// ToEntity 持久化对象转实体
func (c *VideoConvertor) ToEntity(p *po.Video) *entity.VideoEntity {
	var transcript *vo.Transcript
	if p.Transcript != nil && *p.Transcript != "" {
		transcript = &vo.Transcript{}
		if err := json.Unmarshal([]byte(*p.Transcript), transcript); err != nil {
			logger.Warnf("corrupt transcript column video_uuid=%s error=%v", p.VideoUUID, err)
			transcript = nil
		}
	}

	var summary *vo.Summary
	if p.Summary != nil && *p.Summary != "" {
		summary = &vo.Summary{}
		if err := json.Unmarshal([]byte(*p.Summary), summary); err != nil {
			logger.Warnf("corrupt summary column video_uuid=%s error=%v", p.VideoUUID, err)
			summary = nil
		}
	}

	var questions []vo.Question
	if p.Questions != nil && *p.Questions != "" {
		if err := json.Unmarshal([]byte(*p.Questions), &questions); err != nil {
			logger.Warnf("corrupt questions column video_uuid=%s error=%v", p.VideoUUID, err)
			questions = nil
		}
	}

	return entity.RestoreVideoEntity(
		p.VideoUUID,
		p.UserUUID,
		p.Title,
		p.SourceFilePath,
		p.SourceURL,
		vo.VideoStatus(p.Status),
		vo.ProcessingStage(p.Stage),
		transcript,
		summary,
		questions,
		p.ErrorMessage,
		p.CreatedAt,
		p.UpdatedAt,
		p.CompletedAt,
	)
}

// MarshalColumn 序列化JSON列，供仓储构造字段更新使用
func (c *VideoConvertor) MarshalColumn(v interface{}) *string {
	return marshalColumn(v)
}

func marshalColumn(v interface{}) *string {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		logger.Warnf("marshal column failed error=%v", err)
		return nil
	}
	s := string(data)
	return &s
}
