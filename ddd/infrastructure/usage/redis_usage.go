package usage

import (
	"context"
	"sync"
	"time"

	"insight-service/ddd/domain/gateway"
	"insight-service/internal/resource"
	"insight-service/pkg/assert"
	"insight-service/pkg/redisclient"
)

var (
	usageOnce      sync.Once
	singletonUsage *RedisUsage
)

// RedisUsage 基于Redis的用量计数与处理权互斥。
// 用量哈希按用户分key，互斥锁按视频分key并带TTL兜底，
// Worker崩溃后锁到期自动释放。
type RedisUsage struct {
	client *redisclient.Client
}

// DefaultRedisUsage 同时提供gateway.UsageGateway与gateway.InflightGuard
func DefaultRedisUsage() *RedisUsage {
	assert.NotCircular()
	usageOnce.Do(func() {
		singletonUsage = &RedisUsage{
			client: resource.DefaultRedisResource().GetClient(),
		}
	})
	assert.NotNil(singletonUsage)
	return singletonUsage
}

func NewRedisUsage(client *redisclient.Client) *RedisUsage {
	return &RedisUsage{client: client}
}

var _ gateway.UsageGateway = (*RedisUsage)(nil)
var _ gateway.InflightGuard = (*RedisUsage)(nil)

func (u *RedisUsage) IncrementUsageCounter(ctx context.Context, userUUID, field string) (int64, error) {
	return u.client.IncrementCounter(ctx, userUUID, field)
}

func (u *RedisUsage) TryAcquire(ctx context.Context, videoUUID string, ttl time.Duration) (bool, error) {
	return u.client.AcquireLock(ctx, inflightKey(videoUUID), ttl)
}

func (u *RedisUsage) Release(ctx context.Context, videoUUID string) error {
	return u.client.ReleaseLock(ctx, inflightKey(videoUUID))
}

func inflightKey(videoUUID string) string {
	return "inflight:video:" + videoUUID
}
