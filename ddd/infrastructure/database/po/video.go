package po

import (
	"time"

	"gorm.io/gorm"
)

// BaseModel 公共持久化字段
type BaseModel struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Video 视频持久化对象。
// 派生产物以JSON列整体存取，各列只归属一个流水线阶段，
// 单行Updates即可满足原子字段合并，不需要读改写。
type Video struct {
	BaseModel
	VideoUUID      string     `gorm:"column:video_uuid;type:varchar(36);uniqueIndex" json:"video_uuid"`
	UserUUID       string     `gorm:"column:user_uuid;type:varchar(36);index" json:"user_uuid"`
	Title          string     `gorm:"column:title;type:varchar(255)" json:"title"`
	SourceFilePath string     `gorm:"column:source_file_path;type:varchar(512)" json:"source_file_path"`
	SourceURL      string     `gorm:"column:source_url;type:varchar(512)" json:"source_url"`
	Status         string     `gorm:"column:status;type:varchar(20);index" json:"status"`
	Stage          string     `gorm:"column:stage;type:varchar(30);index" json:"stage"`
	Transcript     *string    `gorm:"column:transcript;type:json" json:"transcript,omitempty"`
	Summary        *string    `gorm:"column:summary;type:json" json:"summary,omitempty"`
	Questions      *string    `gorm:"column:questions;type:json" json:"questions,omitempty"`
	ErrorMessage   string     `gorm:"column:error_message;type:varchar(1024)" json:"error_message"`
	CompletedAt    *time.Time `gorm:"column:completed_at;type:timestamp" json:"completed_at,omitempty"`
}

// TableName 指定表名
func (Video) TableName() string {
	return "videos"
}
