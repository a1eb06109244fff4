package http

import (
	"github.com/gin-gonic/gin"

	"insight-service/ddd/application/app"
	"insight-service/ddd/application/cqe"
	"insight-service/pkg/middleware"
	"insight-service/pkg/restapi"
)

// VideoController 视频接口控制器
type VideoController struct {
	videoApp app.VideoApp
}

// NewVideoController 创建视频控制器
func NewVideoController(videoApp app.VideoApp) *VideoController {
	return &VideoController{videoApp: videoApp}
}

// UploadVideo 本地上传创建视频
func (c *VideoController) UploadVideo(ctx *gin.Context) {
	file, err := ctx.FormFile("file")
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	req := &cqe.UploadVideoReq{
		UserUUID: middleware.UserUUIDFromContext(ctx),
		Title:    ctx.PostForm("title"),
		File:     file,
	}

	resp, err := c.videoApp.CreateUploadedVideo(ctx.Request.Context(), req)
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, resp)
}

// CreateYoutubeVideo YouTube来源创建视频
func (c *VideoController) CreateYoutubeVideo(ctx *gin.Context) {
	var req cqe.CreateYoutubeVideoReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		restapi.Failed(ctx, err)
		return
	}
	req.UserUUID = middleware.UserUUIDFromContext(ctx)

	resp, err := c.videoApp.CreateYoutubeVideo(ctx.Request.Context(), &req)
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, resp)
}

// GetVideo 获取视频详情
func (c *VideoController) GetVideo(ctx *gin.Context) {
	resp, err := c.videoApp.GetVideo(ctx.Request.Context(), ctx.Param("video_uuid"), middleware.UserUUIDFromContext(ctx))
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, resp)
}

// ListVideos 按属主分页查询
func (c *VideoController) ListVideos(ctx *gin.Context) {
	var req cqe.ListVideosReq
	if err := ctx.ShouldBindQuery(&req); err != nil {
		restapi.Failed(ctx, err)
		return
	}
	req.UserUUID = middleware.UserUUIDFromContext(ctx)

	resp, err := c.videoApp.ListVideos(ctx.Request.Context(), &req)
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, resp)
}

// RetryVideo 失败视频重新入队
func (c *VideoController) RetryVideo(ctx *gin.Context) {
	resp, err := c.videoApp.RetryVideo(ctx.Request.Context(), ctx.Param("video_uuid"), middleware.UserUUIDFromContext(ctx))
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, resp)
}

// DeleteVideo 删除视频
func (c *VideoController) DeleteVideo(ctx *gin.Context) {
	if err := c.videoApp.DeleteVideo(ctx.Request.Context(), ctx.Param("video_uuid"), middleware.UserUUIDFromContext(ctx)); err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, nil)
}
