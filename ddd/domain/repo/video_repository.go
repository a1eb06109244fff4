package repo

import (
	"context"

	"insight-service/ddd/domain/entity"
	"insight-service/ddd/domain/vo"
)

// VideoRepository 视频聚合根仓储。
// 所有写操作都是对单条视频记录的原子字段更新，不存在跨记录事务。
type VideoRepository interface {
	// CreateVideo 创建视频记录
	CreateVideo(ctx context.Context, video *entity.VideoEntity) error

	// GetVideo 按UUID读取视频
	GetVideo(ctx context.Context, videoUUID string) (*entity.VideoEntity, error)

	// ListVideosByUser 按属主分页查询
	ListVideosByUser(ctx context.Context, userUUID string, page, size int) ([]*entity.VideoEntity, int64, error)

	// UpdateClaim 认领：status置processing
	UpdateClaim(ctx context.Context, video *entity.VideoEntity) error

	// UpdateTranscript 持久化转写产物与阶段前进
	UpdateTranscript(ctx context.Context, video *entity.VideoEntity) error

	// UpdateSummary 持久化摘要产物与阶段前进
	UpdateSummary(ctx context.Context, video *entity.VideoEntity) error

	// UpdateQuestions 持久化题目产物与完成态
	UpdateQuestions(ctx context.Context, video *entity.VideoEntity) error

	// UpdateFailure 持久化终态失败
	UpdateFailure(ctx context.Context, video *entity.VideoEntity) error

	// UpdateRetryReset 持久化外部重试的状态重置
	UpdateRetryReset(ctx context.Context, video *entity.VideoEntity) error

	// DeleteVideo 删除视频记录
	DeleteVideo(ctx context.Context, videoUUID string) error

	// CountByStatus 按状态统计（运营接口用）
	CountByStatus(ctx context.Context, status vo.VideoStatus) (int64, error)
}
