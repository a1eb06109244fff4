package resource

import "insight-service/pkg/config"

// MustInitResources 按依赖顺序初始化所有基础资源，失败即panic。
func MustInitResources() {
	DefaultMysqlResource().MustOpen()
	DefaultRedisResource().MustOpen()
	DefaultMinioResource().MustOpen()
	if cfg := config.GetGlobalConfig(); cfg != nil && cfg.Kafka.Enabled {
		DefaultKafkaResource().MustOpen()
	}
}

// CloseResources 逆序释放所有基础资源
func CloseResources() {
	if cfg := config.GetGlobalConfig(); cfg != nil && cfg.Kafka.Enabled {
		DefaultKafkaResource().Close()
	}
	DefaultMinioResource().Close()
	DefaultRedisResource().Close()
	DefaultMysqlResource().Close()
}
