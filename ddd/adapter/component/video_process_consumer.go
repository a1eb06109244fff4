package component

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	appsvc "insight-service/ddd/application/app"
	"insight-service/ddd/infrastructure/queue"
	"insight-service/pkg/config"
	pkgkafka "insight-service/pkg/kafka"
	"insight-service/pkg/logger"
)

// VideoProcessConsumer 消费video.process事件并转入进程内任务队列。
// Kafka承担跨实例的摄取分发，投递次数语义由JobQueue管理。
type VideoProcessConsumer struct {
	jobQueue queue.JobQueue
	cfg      *config.Config
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewVideoProcessConsumer(jobQueue queue.JobQueue, cfg *config.Config) *VideoProcessConsumer {
	return &VideoProcessConsumer{jobQueue: jobQueue, cfg: cfg}
}

func (c *VideoProcessConsumer) Name() string { return "video-process-consumer" }

func (c *VideoProcessConsumer) Start(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)
	topic := c.cfg.Kafka.Topics.VideoProcess
	groupID := c.cfg.Kafka.GroupID
	reader := pkgkafka.DefaultClient().Reader(topic, groupID)

	go func() {
		defer reader.Close()
		logger.Infof("Kafka consumer started topic=%s group=%s", topic, groupID)
		for {
			msg, err := reader.ReadMessage(c.ctx)
			if err != nil {
				if c.ctx.Err() != nil {
					return
				}
				if errors.Is(err, io.EOF) || strings.Contains(err.Error(), "EOF") {
					logger.Debug("Kafka reader EOF")
				} else {
					logger.Warnf("Kafka read error error=%s", err.Error())
				}
				continue
			}

			var m appsvc.ProcessMessage
			if err := json.Unmarshal(msg.Value, &m); err != nil {
				logger.Warnf("Kafka message unmarshal error error=%s", err.Error())
				continue
			}
			if m.VideoUUID == "" {
				logger.Warn("Kafka message missing video_uuid, dropped")
				continue
			}

			job := &queue.Job{
				VideoUUID: m.VideoUUID,
				UserUUID:  m.UserUUID,
				FilePath:  m.FilePath,
				Attempt:   1,
			}
			if err := enqueueWithRetry(c.ctx, c.jobQueue, job); err != nil {
				logger.Errorf("job enqueue failed video_uuid=%s error=%v", m.VideoUUID, err)
				continue
			}
			logger.Infof("job enqueued video_uuid=%s user_uuid=%s", m.VideoUUID, m.UserUUID)
		}
	}()
	return nil
}

// enqueueWithRetry 队列满时指数退避重试直至入队成功。
// ReadMessage返回时offset已提交，此处不能丢消息：重试阻塞消费循环，
// 让Kafka侧形成自然背压。队列关闭或上下文取消时放弃。
func enqueueWithRetry(ctx context.Context, q queue.JobQueue, job *queue.Job) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxInterval = 5 * time.Second
	policy.MaxElapsedTime = 0

	return backoff.Retry(func() error {
		err := q.Enqueue(ctx, job)
		if errors.Is(err, queue.ErrQueueFull) {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, backoff.WithContext(policy, ctx))
}

func (c *VideoProcessConsumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}
