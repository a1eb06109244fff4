package persistence

import (
	"context"
	"errors"
	"sync"

	"gorm.io/gorm"

	"insight-service/ddd/domain/entity"
	"insight-service/ddd/domain/repo"
	"insight-service/ddd/domain/vo"
	"insight-service/ddd/infrastructure/database/convertor"
	"insight-service/ddd/infrastructure/database/dao"
	"insight-service/pkg/assert"
	"insight-service/pkg/errno"
)

var (
	videoRepositoryOnce      sync.Once
	singletonVideoRepository repo.VideoRepository
)

// VideoRepositoryImpl 视频仓储实现。
// 每个Update*方法只写自己阶段归属的列，单行Updates保证原子性。
type VideoRepositoryImpl struct {
	videoDAO  *dao.VideoDAO
	convertor *convertor.VideoConvertor
}

func DefaultVideoRepository() repo.VideoRepository {
	assert.NotCircular()
	videoRepositoryOnce.Do(func() {
		singletonVideoRepository = &VideoRepositoryImpl{
			videoDAO:  dao.NewVideoDAO(),
			convertor: convertor.NewVideoConvertor(),
		}
	})
	assert.NotNil(singletonVideoRepository)
	return singletonVideoRepository
}

// NewVideoRepositoryWith 测试用，注入指定DAO
func NewVideoRepositoryWith(videoDAO *dao.VideoDAO) repo.VideoRepository {
	return &VideoRepositoryImpl{
		videoDAO:  videoDAO,
		convertor: convertor.NewVideoConvertor(),
	}
}

func (r *VideoRepositoryImpl) CreateVideo(ctx context.Context, video *entity.VideoEntity) error {
	return r.videoDAO.Create(ctx, r.convertor.ToPO(video))
}

func (r *VideoRepositoryImpl) GetVideo(ctx context.Context, videoUUID string) (*entity.VideoEntity, error) {
	p, err := r.videoDAO.FindByVideoUUID(ctx, videoUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errno.NewBizError(errno.ErrVideoNotFound, err)
		}
		return nil, err
	}
	return r.convertor.ToEntity(p), nil
}

func (r *VideoRepositoryImpl) ListVideosByUser(ctx context.Context, userUUID string, page, size int) ([]*entity.VideoEntity, int64, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 10
	}
	pos, total, err := r.videoDAO.ListByUser(ctx, userUUID, (page-1)*size, size)
	if err != nil {
		return nil, 0, err
	}
	videos := make([]*entity.VideoEntity, 0, len(pos))
	for _, p := range pos {
		videos = append(videos, r.convertor.ToEntity(p))
	}
	return videos, total, nil
}

func (r *VideoRepositoryImpl) UpdateClaim(ctx context.Context, video *entity.VideoEntity) error {
	return r.videoDAO.UpdateFields(ctx, video.VideoUUID(), map[string]interface{}{
		"status": video.Status().String(),
	})
}

func (r *VideoRepositoryImpl) UpdateTranscript(ctx context.Context, video *entity.VideoEntity) error {
	return r.videoDAO.UpdateFields(ctx, video.VideoUUID(), map[string]interface{}{
		"transcript":    r.convertor.MarshalColumn(video.Transcript()),
		"stage":         video.Stage().String(),
		"error_message": "",
	})
}

func (r *VideoRepositoryImpl) UpdateSummary(ctx context.Context, video *entity.VideoEntity) error {
	return r.videoDAO.UpdateFields(ctx, video.VideoUUID(), map[string]interface{}{
		"summary":       r.convertor.MarshalColumn(video.Summary()),
		"stage":         video.Stage().String(),
		"error_message": "",
	})
}

func (r *VideoRepositoryImpl) UpdateQuestions(ctx context.Context, video *entity.VideoEntity) error {
	return r.videoDAO.UpdateFields(ctx, video.VideoUUID(), map[string]interface{}{
		"questions":     r.convertor.MarshalColumn(video.Questions()),
		"stage":         video.Stage().String(),
		"status":        video.Status().String(),
		"error_message": "",
		"completed_at":  video.CompletedAt(),
	})
}

func (r *VideoRepositoryImpl) UpdateFailure(ctx context.Context, video *entity.VideoEntity) error {
	return r.videoDAO.UpdateFields(ctx, video.VideoUUID(), map[string]interface{}{
		"status":        video.Status().String(),
		"stage":         video.Stage().String(),
		"error_message": video.ErrorMessage(),
	})
}

func (r *VideoRepositoryImpl) UpdateRetryReset(ctx context.Context, video *entity.VideoEntity) error {
	return r.videoDAO.UpdateFields(ctx, video.VideoUUID(), map[string]interface{}{
		"status":        video.Status().String(),
		"stage":         video.Stage().String(),
		"error_message": "",
	})
}

func (r *VideoRepositoryImpl) DeleteVideo(ctx context.Context, videoUUID string) error {
	return r.videoDAO.DeleteByVideoUUID(ctx, videoUUID)
}

func (r *VideoRepositoryImpl) CountByStatus(ctx context.Context, status vo.VideoStatus) (int64, error) {
	return r.videoDAO.CountByStatus(ctx, status.String())
}
