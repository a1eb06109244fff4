package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"insight-service/ddd/application/app"
	"insight-service/pkg/config"
	"insight-service/pkg/middleware"
)

// Router 路由配置
type Router struct {
	videoApp app.VideoApp
	cfg      *config.Config
}

// NewRouter 创建路由配置
func NewRouter(videoApp app.VideoApp, cfg *config.Config) *Router {
	return &Router{videoApp: videoApp, cfg: cfg}
}

// SetupMiddleware 设置全局中间件
func (r *Router) SetupMiddleware(engine *gin.Engine) {
	engine.Use(gin.Recovery())
	engine.Use(gin.Logger())
	engine.Use(middleware.RequestContextMiddleware())
}

// SetupRoutes 设置路由
func (r *Router) SetupRoutes(engine *gin.Engine) {
	videoController := NewVideoController(r.videoApp)

	v1 := engine.Group("/api/v1")
	v1.Use(middleware.JWTAuthMiddleware(&r.cfg.JWT))
	{
		videos := v1.Group("/videos")
		{
			videos.POST("/upload", videoController.UploadVideo)              // 本地上传创建
			videos.POST("/youtube", videoController.CreateYoutubeVideo)      // YouTube来源创建
			videos.GET("", videoController.ListVideos)                       // 列表
			videos.GET("/:video_uuid", videoController.GetVideo)             // 详情
			videos.POST("/:video_uuid/retry", videoController.RetryVideo)    // 失败重试
			videos.DELETE("/:video_uuid", videoController.DeleteVideo)       // 删除
		}
	}

	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "insight-service",
		})
	})
}
