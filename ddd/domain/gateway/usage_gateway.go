package gateway

import (
	"context"
	"time"
)

// UsageGateway 用户用量计数
type UsageGateway interface {
	// IncrementUsageCounter 自增用户的某个用量字段，返回新值
	IncrementUsageCounter(ctx context.Context, userUUID, field string) (int64, error)
}

// InflightGuard 同一视频同一时刻只允许一个Worker处理的互斥保护
type InflightGuard interface {
	// TryAcquire 尝试占有视频的处理权，已被占用返回false
	TryAcquire(ctx context.Context, videoUUID string, ttl time.Duration) (bool, error)
	// Release 释放处理权
	Release(ctx context.Context, videoUUID string) error
}
