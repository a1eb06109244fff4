package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"insight-service/ddd/adapter/component"
	"insight-service/ddd/domain/service"
	"insight-service/ddd/domain/vo"
	"insight-service/ddd/infrastructure/database/persistence"
	"insight-service/ddd/infrastructure/database/po"
	"insight-service/ddd/infrastructure/generation"
	"insight-service/ddd/infrastructure/queue"
	"insight-service/ddd/infrastructure/transcription"
	"insight-service/ddd/infrastructure/usage"
	"insight-service/ddd/infrastructure/worker"
	"insight-service/internal/resource"
	"insight-service/pkg/config"
	"insight-service/pkg/logger"
	"insight-service/pkg/observability"
	"insight-service/pkg/task"
)

// Worker独立部署入口：只消费与处理，不暴露业务API。
// 与API实例共用同一套配置，水平扩容时多起几个该进程即可。
func main() {
	observability.StartProfiling("insight-worker")

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/config.dev.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("[ERROR] Failed to load config (%s): %v\n", cfgPath, err)
		os.Exit(1)
	}
	config.SetGlobalConfig(cfg)

	logService := logger.NewLogger(cfg)
	logger.SetGlobalLogger(logService)
	logger.Infof("Insight worker starting worker_id=%s", cfg.Worker.WorkerID)

	resource.MustInitResources()
	defer resource.CloseResources()

	if err := resource.DefaultMysqlResource().MainDB().AutoMigrate(&po.Video{}); err != nil {
		logger.Fatal(fmt.Sprintf("Failed to migrate database error=%v", err))
	}

	videoRepo := persistence.DefaultVideoRepository()
	redisUsage := usage.DefaultRedisUsage()
	pipeline := service.NewPipelineService(
		videoRepo,
		transcription.DefaultTranscriptionGateway(),
		generation.DefaultPrimaryGateway(),
		generation.DefaultFallbackGateway(),
		redisUsage,
		cfg,
	)
	jobQueue := queue.DefaultJobQueue()
	pipelineWorker := worker.NewPipelineWorker(pipeline, jobQueue, redisUsage, cfg)

	task.Register(component.NewVideoProcessConsumer(jobQueue, cfg))
	task.Register(pipelineWorker)
	if err := task.StartAll(context.Background()); err != nil {
		logger.Fatal(fmt.Sprintf("Failed to start background tasks error=%v", err))
	}

	// 运维端口：健康检查、指标、Worker统计
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "service": "insight-worker", "running": pipelineWorker.IsRunning()})
	})
	engine.GET("/stats", func(c *gin.Context) {
		c.JSON(200, collectStats(c.Request.Context(), pipelineWorker, videoRepo))
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{Addr: addr, Handler: engine}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(fmt.Sprintf("Failed to start ops server error=%v", err))
		}
	}()
	logger.Infof("Insight worker started ops_addr=%s", addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Infof("Received shutdown signal, draining worker...")

	task.StopAll()
	jobQueue.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(ctx)

	logService.Close()
	fmt.Println("[SHUTDOWN] Insight worker exited safely")
}

type statsSource interface {
	GetStats() map[string]int64
}

type statusCounter interface {
	CountByStatus(ctx context.Context, status vo.VideoStatus) (int64, error)
}

// collectStats 汇总Worker运行统计与库内视频状态分布
func collectStats(ctx context.Context, w statsSource, counter statusCounter) map[string]int64 {
	stats := w.GetStats()
	for _, status := range []vo.VideoStatus{
		vo.VideoStatusUploading,
		vo.VideoStatusProcessing,
		vo.VideoStatusCompleted,
		vo.VideoStatusFailed,
	} {
		n, err := counter.CountByStatus(ctx, status)
		if err != nil {
			logger.Warnf("count videos by status failed status=%s error=%v", status, err)
			continue
		}
		stats["videos_"+status.String()] = n
	}
	return stats
}
