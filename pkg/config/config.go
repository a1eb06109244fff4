package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Server          ServerConfig          `mapstructure:"server"`
	Database        DatabaseConfig        `mapstructure:"database"`
	Redis           RedisConfig           `mapstructure:"redis"`
	Kafka           KafkaConfig           `mapstructure:"kafka"`
	JWT             JWTConfig             `mapstructure:"jwt"`
	Log             LogConfig             `mapstructure:"log"`
	Minio           MinioConfig           `mapstructure:"minio"`
	Ingest          IngestConfig          `mapstructure:"ingest"`
	Transcription   TranscriptionConfig   `mapstructure:"transcription"`
	Generation      GenerationConfig      `mapstructure:"generation"`
	Pipeline        PipelineConfig        `mapstructure:"pipeline"`
	Worker          WorkerConfig          `mapstructure:"worker"`
	ServiceRegistry ServiceRegistryConfig `mapstructure:"service_registry"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	Charset         string        `mapstructure:"charset"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	EnableTLS    bool          `mapstructure:"enable_tls"`
}

// KafkaConfig Kafka配置
type KafkaConfig struct {
	BootstrapServers []string          `mapstructure:"bootstrap_servers"`
	ClientID         string            `mapstructure:"client_id"`
	GroupID          string            `mapstructure:"group_id"`
	Enabled          bool              `mapstructure:"enabled"`
	Topics           KafkaTopicsConfig `mapstructure:"topics"`
}

// KafkaTopicsConfig Kafka主题配置
type KafkaTopicsConfig struct {
	VideoProcess string `mapstructure:"video_process"`
}

// JWTConfig JWT配置
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Issuer     string        `mapstructure:"issuer"`
	ExpireTime time.Duration `mapstructure:"expire_time"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	Filename string `mapstructure:"filename"`
}

// MinioConfig MinIO配置
type MinioConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKey       string `mapstructure:"access_key"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	SecretKey       string `mapstructure:"secret_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// IngestConfig 上传入口配置
type IngestConfig struct {
	UploadDir         string   `mapstructure:"upload_dir"`
	MaxUploadSizeMB   int64    `mapstructure:"max_upload_size_mb"`
	AllowedExtensions []string `mapstructure:"allowed_extensions"`
	YoutubeBinary     string   `mapstructure:"youtube_binary"`
	FFprobeBinary     string   `mapstructure:"ffprobe_binary"`
}

// TranscriptionConfig 语音转写服务配置
type TranscriptionConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	MaxPollAttempts   int           `mapstructure:"max_poll_attempts"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	SpeakerLabels     bool          `mapstructure:"speaker_labels"`
	AutoChapters      bool          `mapstructure:"auto_chapters"`
	EntityDetection   bool          `mapstructure:"entity_detection"`
	SentimentAnalysis bool          `mapstructure:"sentiment_analysis"`
	AutoHighlights    bool          `mapstructure:"auto_highlights"`
	Punctuate         bool          `mapstructure:"punctuate"`
	LanguageDetect    bool          `mapstructure:"language_detection"`
}

// GenerationConfig 文本生成服务配置（主备两套）
type GenerationConfig struct {
	Primary  GenerationProviderConfig `mapstructure:"primary"`
	Fallback GenerationProviderConfig `mapstructure:"fallback"`
}

// GenerationProviderConfig 单个文本生成提供方配置
type GenerationProviderConfig struct {
	Provider       string        `mapstructure:"provider"`
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Temperature    float64       `mapstructure:"temperature"`
	MaxTokens      int           `mapstructure:"max_tokens"`
}

// PipelineConfig 流水线重试与退避配置
type PipelineConfig struct {
	StageMaxAttempts int           `mapstructure:"stage_max_attempts"`
	StageBaseDelay   time.Duration `mapstructure:"stage_base_delay"`
	QueueMaxAttempts int           `mapstructure:"queue_max_attempts"`
	QueueBaseDelay   time.Duration `mapstructure:"queue_base_delay"`
	QuestionCount    int           `mapstructure:"question_count"`
	InflightTTL      time.Duration `mapstructure:"inflight_ttl"`
}

// WorkerConfig Worker相关配置
type WorkerConfig struct {
	Enabled             bool          `mapstructure:"enabled"`
	WorkerID            string        `mapstructure:"worker_id"`
	MaxConcurrentJobs   int           `mapstructure:"max_concurrent_jobs"`
	QueueCapacity       int           `mapstructure:"queue_capacity"`
	ShutdownGracePeriod time.Duration `mapstructure:"shutdown_grace_period"`
}

// ServiceRegistryConfig 服务注册配置
type ServiceRegistryConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Endpoints       []string      `mapstructure:"endpoints"`
	ServiceName     string        `mapstructure:"service_name"`
	ServiceID       string        `mapstructure:"service_id"`
	RegisterHost    string        `mapstructure:"register_host"`
	DialTimeout     time.Duration `mapstructure:"dial_timeout"`
	TTL             time.Duration `mapstructure:"ttl"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

var (
	globalMu     sync.RWMutex
	globalConfig *Config
)

// SetGlobalConfig 设置全局配置
func SetGlobalConfig(cfg *Config) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalConfig = cfg
}

// GetGlobalConfig 获取全局配置
func GetGlobalConfig() *Config {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalConfig
}

// Load 加载配置
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	viper.SetDefault("kafka.enabled", true)
	viper.SetDefault("kafka.client_id", "insight-service")
	viper.SetDefault("kafka.group_id", "insight-service-group")
	viper.SetDefault("kafka.bootstrap_servers", []string{"localhost:29092"})
	viper.SetDefault("kafka.topics.video_process", "video.process")
	viper.SetDefault("service_registry.service_name", "insight-service")

	// 设置环境变量前缀
	viper.SetEnvPrefix("GO_INSIGHT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.normalize()

	return &config, nil
}

// normalize 补全配置的默认值
func (c *Config) normalize() {
	// 兼容不同的密钥字段
	if c.Minio.AccessKeyID == "" {
		c.Minio.AccessKeyID = c.Minio.AccessKey
	}
	if c.Minio.SecretAccessKey == "" {
		c.Minio.SecretAccessKey = c.Minio.SecretKey
	}

	if c.Ingest.UploadDir == "" {
		c.Ingest.UploadDir = "/tmp/insight/uploads"
	}
	if c.Ingest.MaxUploadSizeMB <= 0 {
		c.Ingest.MaxUploadSizeMB = 512
	}
	if len(c.Ingest.AllowedExtensions) == 0 {
		c.Ingest.AllowedExtensions = []string{".mp4", ".mov", ".mkv", ".webm", ".mp3", ".m4a", ".wav"}
	}
	if c.Ingest.YoutubeBinary == "" {
		c.Ingest.YoutubeBinary = "yt-dlp"
	}
	if c.Ingest.FFprobeBinary == "" {
		c.Ingest.FFprobeBinary = "ffprobe"
	}

	if c.Transcription.PollInterval <= 0 {
		c.Transcription.PollInterval = 5 * time.Second
	}
	if c.Transcription.MaxPollAttempts <= 0 {
		c.Transcription.MaxPollAttempts = 60
	}
	if c.Transcription.RequestTimeout <= 0 {
		c.Transcription.RequestTimeout = 30 * time.Second
	}

	if c.Generation.Primary.RequestTimeout <= 0 {
		c.Generation.Primary.RequestTimeout = 60 * time.Second
	}
	if c.Generation.Fallback.RequestTimeout <= 0 {
		c.Generation.Fallback.RequestTimeout = 60 * time.Second
	}

	if c.Pipeline.StageMaxAttempts <= 0 {
		c.Pipeline.StageMaxAttempts = 3
	}
	if c.Pipeline.StageBaseDelay <= 0 {
		c.Pipeline.StageBaseDelay = time.Second
	}
	if c.Pipeline.QueueMaxAttempts <= 0 {
		c.Pipeline.QueueMaxAttempts = 3
	}
	if c.Pipeline.QueueBaseDelay <= 0 {
		c.Pipeline.QueueBaseDelay = 5 * time.Second
	}
	if c.Pipeline.QuestionCount <= 0 {
		c.Pipeline.QuestionCount = 5
	}
	if c.Pipeline.InflightTTL <= 0 {
		c.Pipeline.InflightTTL = 30 * time.Minute
	}

	if c.Worker.MaxConcurrentJobs <= 0 {
		c.Worker.MaxConcurrentJobs = 2
	}
	if c.Worker.QueueCapacity <= 0 {
		c.Worker.QueueCapacity = c.Worker.MaxConcurrentJobs * 10
	}
	if c.Worker.ShutdownGracePeriod == 0 {
		c.Worker.ShutdownGracePeriod = 10 * time.Second
	}

	if c.ServiceRegistry.TTL == 0 {
		c.ServiceRegistry.TTL = 30 * time.Second
	}
	if c.ServiceRegistry.RefreshInterval == 0 {
		c.ServiceRegistry.RefreshInterval = 10 * time.Second
	}
	if c.ServiceRegistry.DialTimeout == 0 {
		c.ServiceRegistry.DialTimeout = 5 * time.Second
	}

	if len(c.Kafka.BootstrapServers) == 0 {
		c.Kafka.BootstrapServers = []string{"localhost:29092"}
	}
	if c.Kafka.ClientID == "" {
		c.Kafka.ClientID = "insight-service"
	}
	if c.Kafka.Topics.VideoProcess == "" {
		c.Kafka.Topics.VideoProcess = "video.process"
	}
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	charset := c.Charset
	if charset == "" {
		charset = "utf8mb4"
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		c.Username, c.Password, c.Host, c.Port, c.Database, charset)
}

// GetRedisAddr 获取Redis地址
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MaxUploadSizeBytes 上传大小上限（字节）
func (c *IngestConfig) MaxUploadSizeBytes() int64 {
	return c.MaxUploadSizeMB << 20
}
