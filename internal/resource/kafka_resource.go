package resource

import (
	"insight-service/pkg/kafka"
)

// KafkaResource Kafka资源管理器
type KafkaResource struct{}

// DefaultKafkaResource 获取Kafka资源实例
func DefaultKafkaResource() *KafkaResource { return &KafkaResource{} }

// MustOpen 初始化Kafka客户端
func (r *KafkaResource) MustOpen() { kafka.DefaultClient().MustOpen() }

// Close 释放Kafka客户端
func (r *KafkaResource) Close() { kafka.DefaultClient().Close() }
