package app

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"insight-service/ddd/application/cqe"
	"insight-service/ddd/application/dto"
	"insight-service/ddd/domain/entity"
	"insight-service/ddd/domain/gateway"
	"insight-service/ddd/domain/repo"
	"insight-service/ddd/domain/vo"
	"insight-service/ddd/infrastructure/database/persistence"
	"insight-service/ddd/infrastructure/media"
	"insight-service/ddd/infrastructure/storage"
	"insight-service/pkg/assert"
	"insight-service/pkg/config"
	"insight-service/pkg/errno"
	"insight-service/pkg/kafka"
	"insight-service/pkg/logger"
)

var (
	singleVideoApp VideoApp
	onceVideoApp   sync.Once
)

// ProcessMessage 发布到Kafka的处理事件，消费端据此入队
type ProcessMessage struct {
	VideoUUID string `json:"video_uuid"`
	UserUUID  string `json:"user_uuid"`
	FilePath  string `json:"file_path"`
}

type VideoApp interface {
	// CreateUploadedVideo 本地上传创建视频并触发异步处理
	CreateUploadedVideo(ctx context.Context, req *cqe.UploadVideoReq) (*dto.VideoDto, error)
	// CreateYoutubeVideo YouTube来源创建视频并触发异步处理
	CreateYoutubeVideo(ctx context.Context, req *cqe.CreateYoutubeVideoReq) (*dto.VideoDto, error)
	// GetVideo 获取视频详情（含派生产物）
	GetVideo(ctx context.Context, videoUUID, userUUID string) (*dto.VideoDto, error)
	// ListVideos 按属主分页查询
	ListVideos(ctx context.Context, req *cqe.ListVideosReq) (*dto.VideoListDto, error)
	// RetryVideo 终态失败的视频重新入队
	RetryVideo(ctx context.Context, videoUUID, userUUID string) (*dto.VideoDto, error)
	// DeleteVideo 删除视频及其原始媒体
	DeleteVideo(ctx context.Context, videoUUID, userUUID string) error
}

type videoAppImpl struct {
	videoRepo repo.VideoRepository
	storage   gateway.StorageGateway
	fetcher   *media.YoutubeFetcher
	producer  *kafka.Client
	cfg       *config.Config
}

func DefaultVideoApp() VideoApp {
	assert.NotCircular()
	onceVideoApp.Do(func() {
		singleVideoApp = NewVideoAppWith(
			persistence.DefaultVideoRepository(),
			storage.DefaultStorageGateway(),
			media.DefaultYoutubeFetcher(),
			kafka.DefaultClient(),
			config.GetGlobalConfig(),
		)
	})
	assert.NotNil(singleVideoApp)
	return singleVideoApp
}

func NewVideoAppWith(
	videoRepo repo.VideoRepository,
	storageGateway gateway.StorageGateway,
	fetcher *media.YoutubeFetcher,
	producer *kafka.Client,
	cfg *config.Config,
) VideoApp {
	return &videoAppImpl{
		videoRepo: videoRepo,
		storage:   storageGateway,
		fetcher:   fetcher,
		producer:  producer,
		cfg:       cfg,
	}
}

func (a *videoAppImpl) CreateUploadedVideo(ctx context.Context, req *cqe.UploadVideoReq) (*dto.VideoDto, error) {
	if err := req.Validate(a.cfg.Ingest.MaxUploadSizeBytes(), a.cfg.Ingest.AllowedExtensions); err != nil {
		return nil, err
	}

	video := entity.NewUploadedVideoEntity(req.UserUUID, req.Title, "")
	ext := strings.ToLower(filepath.Ext(req.File.Filename))

	localPath, err := a.stageUpload(req.File, video.VideoUUID(), ext)
	if err != nil {
		return nil, errno.NewBizError(errno.ErrUploadError, err)
	}

	// 对象存储失败不阻断创建，流水线使用staging副本
	objectKey := sourceObjectKey(video.VideoUUID(), ext)
	if _, err := a.storage.UploadSourceMedia(ctx, localPath, objectKey, ""); err != nil {
		logger.Warnf("source media backup failed video_uuid=%s error=%v", video.VideoUUID(), err)
	}

	video.SetStagedSource("", localPath)
	return a.persistAndPublish(ctx, video, localPath)
}

func (a *videoAppImpl) CreateYoutubeVideo(ctx context.Context, req *cqe.CreateYoutubeVideoReq) (*dto.VideoDto, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !media.IsValidYoutubeURL(req.SourceURL) {
		return nil, errno.ErrYoutubeURLInvalid
	}

	video := entity.NewYoutubeVideoEntity(req.UserUUID, req.Title, req.SourceURL)
	localPath, title, err := a.fetcher.FetchAudio(ctx, req.SourceURL, video.VideoUUID())
	if err != nil {
		return nil, errno.NewBizError(errno.ErrYoutubeFetchFailed, err)
	}
	if req.Title == "" {
		req.Title = title
	}

	objectKey := sourceObjectKey(video.VideoUUID(), filepath.Ext(localPath))
	if _, err := a.storage.UploadSourceMedia(ctx, localPath, objectKey, ""); err != nil {
		logger.Warnf("source media backup failed video_uuid=%s error=%v", video.VideoUUID(), err)
	}

	video.SetStagedSource(req.Title, localPath)
	return a.persistAndPublish(ctx, video, localPath)
}

func (a *videoAppImpl) GetVideo(ctx context.Context, videoUUID, userUUID string) (*dto.VideoDto, error) {
	video, err := a.loadOwnedVideo(ctx, videoUUID, userUUID)
	if err != nil {
		return nil, err
	}
	return dto.NewVideoDto(video), nil
}

func (a *videoAppImpl) ListVideos(ctx context.Context, req *cqe.ListVideosReq) (*dto.VideoListDto, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	videos, total, err := a.videoRepo.ListVideosByUser(ctx, req.UserUUID, req.Page, req.Size)
	if err != nil {
		return nil, errno.NewBizError(errno.ErrDatabase, err)
	}
	return dto.NewVideoListDto(videos, total, req.Page, req.Size), nil
}

func (a *videoAppImpl) RetryVideo(ctx context.Context, videoUUID, userUUID string) (*dto.VideoDto, error) {
	video, err := a.loadOwnedVideo(ctx, videoUUID, userUUID)
	if err != nil {
		return nil, err
	}
	if video.Status() != vo.VideoStatusFailed {
		return nil, errno.ErrVideoNotTerminal
	}
	if err := video.ResetForRetry(); err != nil {
		return nil, errno.NewBizError(errno.ErrInvalidParam, err)
	}

	filePath := video.SourceFilePath()
	if filePath != "" {
		if _, statErr := os.Stat(filePath); statErr != nil {
			// staging副本丢失时从对象存储回源
			objectKey := sourceObjectKey(videoUUID, filepath.Ext(filePath))
			if dlErr := a.storage.DownloadFile(ctx, objectKey, filePath); dlErr != nil {
				logger.Warnf("restage from object storage failed video_uuid=%s error=%v", videoUUID, dlErr)
			}
		}
	}

	if err := a.videoRepo.UpdateRetryReset(ctx, video); err != nil {
		return nil, errno.NewBizError(errno.ErrDatabase, err)
	}
	if err := a.publishProcess(ctx, video, filePath); err != nil {
		return nil, err
	}
	logger.Infof("video retry submitted video_uuid=%s stage=%s", videoUUID, video.Stage())
	return dto.NewVideoDto(video), nil
}

func (a *videoAppImpl) DeleteVideo(ctx context.Context, videoUUID, userUUID string) error {
	video, err := a.loadOwnedVideo(ctx, videoUUID, userUUID)
	if err != nil {
		return err
	}

	if err := a.videoRepo.DeleteVideo(ctx, videoUUID); err != nil {
		return errno.NewBizError(errno.ErrDatabase, err)
	}

	// 媒体清理尽力而为
	if path := video.SourceFilePath(); path != "" {
		objectKey := sourceObjectKey(videoUUID, filepath.Ext(path))
		if err := a.storage.RemoveObject(ctx, objectKey); err != nil {
			logger.Warnf("remove source object failed video_uuid=%s error=%v", videoUUID, err)
		}
		if err := os.RemoveAll(filepath.Join(a.cfg.Ingest.UploadDir, videoUUID)); err != nil {
			logger.Warnf("remove staging dir failed video_uuid=%s error=%v", videoUUID, err)
		}
	}
	return nil
}

func (a *videoAppImpl) loadOwnedVideo(ctx context.Context, videoUUID, userUUID string) (*entity.VideoEntity, error) {
	if videoUUID == "" {
		return nil, errno.ErrVideoUUIDRequired
	}
	video, err := a.videoRepo.GetVideo(ctx, videoUUID)
	if err != nil {
		return nil, err
	}
	if userUUID != "" && video.UserUUID() != userUUID {
		return nil, errno.ErrForbidden
	}
	return video, nil
}

func (a *videoAppImpl) persistAndPublish(ctx context.Context, video *entity.VideoEntity, filePath string) (*dto.VideoDto, error) {
	if err := a.videoRepo.CreateVideo(ctx, video); err != nil {
		return nil, errno.NewBizError(errno.ErrDatabase, err)
	}
	if err := a.publishProcess(ctx, video, filePath); err != nil {
		return nil, err
	}
	logger.Infof("video created video_uuid=%s user_uuid=%s", video.VideoUUID(), video.UserUUID())
	return dto.NewVideoDto(video), nil
}

func (a *videoAppImpl) publishProcess(ctx context.Context, video *entity.VideoEntity, filePath string) error {
	msg := &ProcessMessage{
		VideoUUID: video.VideoUUID(),
		UserUUID:  video.UserUUID(),
		FilePath:  filePath,
	}
	topic := a.cfg.Kafka.Topics.VideoProcess
	if err := a.producer.ProduceJSON(ctx, topic, video.VideoUUID(), msg); err != nil {
		logger.Errorf("publish process message failed video_uuid=%s error=%v", video.VideoUUID(), err)
		// 发布失败直接落终态，避免悬挂在uploading
		if failErr := video.Fail("failed to publish processing job: " + err.Error()); failErr == nil {
			_ = a.videoRepo.UpdateFailure(ctx, video)
		}
		return errno.NewBizError(errno.ErrPublishFailed, err)
	}
	return nil
}

// stageUpload 落盘multipart文件到staging目录
func (a *videoAppImpl) stageUpload(file *multipart.FileHeader, videoUUID, ext string) (string, error) {
	destDir := filepath.Join(a.cfg.Ingest.UploadDir, videoUUID)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}

	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	destPath := filepath.Join(destDir, "source"+ext)
	dst, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("create staging file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("write staging file: %w", err)
	}
	return destPath, nil
}

func sourceObjectKey(videoUUID, ext string) string {
	return "videos/" + videoUUID + "/source" + ext
}
