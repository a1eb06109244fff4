package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"insight-service/ddd/adapter/component"
	httpAdapter "insight-service/ddd/adapter/http"
	appsvc "insight-service/ddd/application/app"
	"insight-service/ddd/domain/service"
	"insight-service/ddd/infrastructure/database/persistence"
	"insight-service/ddd/infrastructure/database/po"
	"insight-service/ddd/infrastructure/generation"
	"insight-service/ddd/infrastructure/queue"
	"insight-service/ddd/infrastructure/transcription"
	"insight-service/ddd/infrastructure/usage"
	pipelineWorker "insight-service/ddd/infrastructure/worker"
	"insight-service/internal/resource"
	"insight-service/pkg/config"
	"insight-service/pkg/kafka"
	"insight-service/pkg/logger"
	"insight-service/pkg/registry"
	"insight-service/pkg/task"
)

func Run() {
	fmt.Println("[STARTUP] Starting insight service...")

	// 加载配置
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("[ERROR] Failed to load config (%s): %v\n", cfgPath, err)
		os.Exit(1)
	}
	config.SetGlobalConfig(cfg)
	fmt.Printf("[STARTUP] Config file loaded: %s\n", cfgPath)

	// 初始化日志（必须在所有组件之前）
	logService := logger.NewLogger(cfg)
	logger.SetGlobalLogger(logService)
	logger.Infof("Insight service starting version=%s", "1.0.0")

	// 启动阶段检查外部二进制，缺失时提前暴露问题
	checkBinary(cfg.Ingest.FFprobeBinary, "ingest.ffprobe_binary")
	checkBinary(cfg.Ingest.YoutubeBinary, "ingest.youtube_binary")

	// 资源初始化
	logger.Infof("Initializing resources...")
	resource.MustInitResources()
	defer resource.CloseResources()

	// 表结构迁移
	if err := resource.DefaultMysqlResource().MainDB().AutoMigrate(&po.Video{}); err != nil {
		logger.Fatal(fmt.Sprintf("Failed to migrate database error=%v", err))
	}

	// 确保处理主题存在
	if err := kafka.DefaultClient().EnsureTopic(cfg.Kafka.Topics.VideoProcess, 3, 1); err != nil {
		logger.Warnf("ensure kafka topic failed topic=%s error=%v", cfg.Kafka.Topics.VideoProcess, err)
	}

	// 装配流水线
	logger.Infof("Wiring pipeline components...")
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

	// 后台任务：Kafka消费 + 流水线Worker
	task.Register(component.NewVideoProcessConsumer(jobQueue, cfg))
	if cfg.Worker.Enabled {
		task.Register(pipelineWorker.NewPipelineWorker(pipeline, jobQueue, redisUsage, cfg))
	}
	if err := task.StartAll(context.Background()); err != nil {
		logger.Fatal(fmt.Sprintf("Failed to start background tasks error=%v", err))
	}
	logger.Infof("Background tasks started worker_enabled=%v", cfg.Worker.Enabled)

	// HTTP服务
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	engine := gin.New()
	router := httpAdapter.NewRouter(appsvc.DefaultVideoApp(), cfg)
	router.SetupMiddleware(engine)
	router.SetupRoutes(engine)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(fmt.Sprintf("Failed to start HTTP server error=%v", err))
		}
	}()
	logger.Infof("HTTP server started addr=%s health_url=http://%s/health", addr, addr)

	// 服务注册
	serviceRegistry := registerService(cfg, addr)

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Infof("Received shutdown signal, shutting down...")

	if serviceRegistry != nil {
		if err := serviceRegistry.Deregister(); err != nil {
			logger.Warnf("deregister failed error=%v", err)
		}
	}

	// 先停后台任务再关队列，避免Worker在关闭的队列上阻塞
	task.StopAll()
	jobQueue.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to close error=%v", err)
	}
	logger.Infof("Server exited safely")

	if logService != nil {
		logService.Close()
	}
	fmt.Println("[SHUTDOWN] Insight service exited safely")
}

// registerService 按配置把实例注册到etcd，未启用返回nil
func registerService(cfg *config.Config, addr string) *registry.ServiceRegistry {
	sr := cfg.ServiceRegistry
	if !sr.Enabled || len(sr.Endpoints) == 0 {
		return nil
	}

	serviceAddr := addr
	if sr.RegisterHost != "" {
		serviceAddr = fmt.Sprintf("%s:%d", sr.RegisterHost, cfg.Server.Port)
	}
	r, err := registry.NewServiceRegistry(
		registry.RegistryConfig{
			Endpoints:   sr.Endpoints,
			DialTimeout: sr.DialTimeout,
		},
		registry.ServiceConfig{
			ServiceName: sr.ServiceName,
			ServiceID:   sr.ServiceID,
			TTL:         sr.TTL,
		},
		serviceAddr,
	)
	if err != nil {
		logger.Warnf("service registry unavailable error=%v", err)
		return nil
	}
	if err := r.Register(); err != nil {
		logger.Warnf("service registration failed error=%v", err)
		return nil
	}
	logger.Infof("service registered name=%s addr=%s", sr.ServiceName, serviceAddr)
	return r
}

func checkBinary(binary, key string) {
	if strings.TrimSpace(binary) == "" {
		return
	}
	if _, err := exec.LookPath(binary); err != nil {
		logger.Warnf("binary not found in PATH, set %s or install it binary=%s", key, binary)
	}
}

// resolveConfigPath 根据环境选择配置文件，支持CONFIG_PATH覆盖、CONFIG_ENV区分环境
func resolveConfigPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}

	env := strings.ToLower(strings.TrimSpace(os.Getenv("CONFIG_ENV")))
	if env == "" {
		env = "dev"
	}

	switch env {
	case "prod", "production":
		return "configs/config_prod.yaml"
	case "dev", "development":
		return "configs/config.dev.yaml"
	default:
		return fmt.Sprintf("configs/config.%s.yaml", env)
	}
}
