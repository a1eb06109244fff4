package dao

import (
	"context"

	"gorm.io/gorm"

	"insight-service/ddd/infrastructure/database/po"
	"insight-service/internal/resource"
)

// VideoDAO 视频表数据访问对象
type VideoDAO struct {
	db *gorm.DB
}

func NewVideoDAO() *VideoDAO {
	return &VideoDAO{db: resource.DefaultMysqlResource().MainDB()}
}

// NewVideoDAOWith 测试用，注入指定句柄
func NewVideoDAOWith(db *gorm.DB) *VideoDAO {
	return &VideoDAO{db: db}
}

func (d *VideoDAO) Create(ctx context.Context, video *po.Video) error {
	return d.db.WithContext(ctx).Model(&po.Video{}).Create(video).Error
}

func (d *VideoDAO) FindByVideoUUID(ctx context.Context, videoUUID string) (*po.Video, error) {
	var video po.Video
	if err := d.db.WithContext(ctx).Where("video_uuid = ?", videoUUID).First(&video).Error; err != nil {
		return nil, err
	}
	return &video, nil
}

func (d *VideoDAO) ListByUser(ctx context.Context, userUUID string, offset, limit int) ([]*po.Video, int64, error) {
	var videos []*po.Video
	var total int64

	q := d.db.WithContext(ctx).Model(&po.Video{}).Where("user_uuid = ?", userUUID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&videos).Error; err != nil {
		return nil, 0, err
	}
	return videos, total, nil
}

// UpdateFields 单行原子字段更新，update内容由调用方按阶段归属裁剪
func (d *VideoDAO) UpdateFields(ctx context.Context, videoUUID string, update map[string]interface{}) error {
	return d.db.WithContext(ctx).Model(&po.Video{}).Where("video_uuid = ?", videoUUID).Updates(update).Error
}

func (d *VideoDAO) DeleteByVideoUUID(ctx context.Context, videoUUID string) error {
	return d.db.WithContext(ctx).Where("video_uuid = ?", videoUUID).Delete(&po.Video{}).Error
}

func (d *VideoDAO) CountByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&po.Video{}).Where("status = ?", status).Count(&count).Error
	return count, err
}
