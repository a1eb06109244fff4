package cqe

import (
	"mime/multipart"
	"path/filepath"
	"strings"

	"insight-service/pkg/errno"
)

// UploadVideoReq 本地上传创建请求（multipart表单）
type UploadVideoReq struct {
	UserUUID string                // 从认证中间件注入
	Title    string                `form:"title"`
	File     *multipart.FileHeader // 表单字段 "file"
}

func (req *UploadVideoReq) Validate(maxSizeBytes int64, allowedExtensions []string) error {
	if req.UserUUID == "" {
		return errno.ErrUserUUIDRequired
	}
	if req.File == nil {
		return errno.ErrSourceRequired
	}
	if req.File.Size <= 0 || req.File.Size > maxSizeBytes {
		return errno.ErrFileSizeIllegal
	}

	ext := strings.ToLower(filepath.Ext(req.File.Filename))
	if ext == "" {
		return errno.ErrFileNameIllegal
	}
	for _, allowed := range allowedExtensions {
		if ext == allowed {
			if req.Title == "" {
				req.Title = strings.TrimSuffix(filepath.Base(req.File.Filename), ext)
			}
			return nil
		}
	}
	return errno.ErrMediaTypeIllegal
}

// CreateYoutubeVideoReq YouTube来源创建请求
type CreateYoutubeVideoReq struct {
	UserUUID  string // 从认证中间件注入
	Title     string `json:"title"`
	SourceURL string `json:"source_url" binding:"required"`
}

func (req *CreateYoutubeVideoReq) Validate() error {
	if req.UserUUID == "" {
		return errno.ErrUserUUIDRequired
	}
	if req.SourceURL == "" {
		return errno.ErrSourceRequired
	}
	return nil
}

// ListVideosReq 按属主分页查询请求
type ListVideosReq struct {
	UserUUID string
	Page     int `form:"page"`
	Size     int `form:"size"`
}

func (req *ListVideosReq) Validate() error {
	if req.UserUUID == "" {
		return errno.ErrUserUUIDRequired
	}
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.Size <= 0 || req.Size > 100 {
		req.Size = 10
	}
	return nil
}
