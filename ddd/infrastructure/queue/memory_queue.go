package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"insight-service/pkg/assert"
	"insight-service/pkg/config"
	"insight-service/pkg/logger"
	"insight-service/pkg/metrics"
)

var (
	ErrQueueClosed = errors.New("job queue closed")
	ErrQueueFull   = errors.New("job queue full")
)

var (
	queueOnce      sync.Once
	singletonQueue JobQueue
)

// MemoryJobQueue 进程内任务队列。
// 即时投递走带缓冲channel，Nack走定时器延迟重投；
// Close后定时器中的任务直接丢弃，依赖数据库状态在重启后重新入队。
type MemoryJobQueue struct {
	jobs     chan *Job
	mu       sync.Mutex
	timers   map[*time.Timer]struct{}
	closed   bool
	closedCh chan struct{}
}

func DefaultJobQueue() JobQueue {
	assert.NotCircular()
	queueOnce.Do(func() {
		capacity := config.GetGlobalConfig().Worker.QueueCapacity
		singletonQueue = NewMemoryJobQueue(capacity)
	})
	assert.NotNil(singletonQueue)
	return singletonQueue
}

func NewMemoryJobQueue(capacity int) *MemoryJobQueue {
	if capacity <= 0 {
		capacity = 100
	}
	return &MemoryJobQueue{
		jobs:     make(chan *Job, capacity),
		timers:   make(map[*time.Timer]struct{}),
		closedCh: make(chan struct{}),
	}
}

func (q *MemoryJobQueue) Enqueue(ctx context.Context, job *Job) error {
	if job.Attempt < 1 {
		job.Attempt = 1
	}
	job.EnqueuedAt = time.Now()

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.mu.Unlock()

	select {
	case q.jobs <- job:
		return nil
	case <-q.closedCh:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

func (q *MemoryJobQueue) Dequeue(ctx context.Context) (*Job, error) {
	select {
	case job, ok := <-q.jobs:
		if !ok {
			return nil, ErrQueueClosed
		}
		return job, nil
	case <-q.closedCh:
		return nil, ErrQueueClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *MemoryJobQueue) Ack(job *Job) {
	// 进程内队列无未确认簿记，Ack只是消费协议的收尾
}

// Nack 延迟重投，投递次数加1
func (q *MemoryJobQueue) Nack(job *Job, retryAfter time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}

	redelivered := &Job{
		VideoUUID: job.VideoUUID,
		UserUUID:  job.UserUUID,
		FilePath:  job.FilePath,
		Attempt:   job.Attempt + 1,
	}

	var timer *time.Timer
	timer = time.AfterFunc(retryAfter, func() {
		q.mu.Lock()
		delete(q.timers, timer)
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return
		}

		redelivered.EnqueuedAt = time.Now()
		select {
		case q.jobs <- redelivered:
			metrics.JobRedeliveries.Inc()
			logger.Info("job redelivered", map[string]interface{}{
				"video_uuid": redelivered.VideoUUID,
				"attempt":    redelivered.Attempt,
			})
		case <-q.closedCh:
		}
	})
	q.timers[timer] = struct{}{}
}

func (q *MemoryJobQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.closedCh)
	for timer := range q.timers {
		timer.Stop()
	}
	q.timers = nil
}
