package gateway

import "context"

// StorageGateway 对象存储出站契约，保管原始上传媒体
type StorageGateway interface {
	// UploadSourceMedia 上传本地媒体文件，返回对象键
	UploadSourceMedia(ctx context.Context, localPath, objectKey, contentType string) (string, error)
	// DownloadFile 下载对象到本地路径
	DownloadFile(ctx context.Context, objectKey, localPath string) error
	// RemoveObject 删除对象
	RemoveObject(ctx context.Context, objectKey string) error
}
