package queue

import (
	"context"
	"time"
)

// Job 流水线处理任务。
// Attempt 从1开始计数，表示当前是第几次投递。
type Job struct {
	VideoUUID  string    `json:"video_uuid"`
	UserUUID   string    `json:"user_uuid"`
	FilePath   string    `json:"file_path"`
	Attempt    int       `json:"attempt"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// JobQueue 任务队列契约。
// 约定：Dequeue出的任务必须以Ack或Nack收尾；
// Nack重新投递并递增Attempt，投递上限由消费方控制。
type JobQueue interface {
	// Enqueue 新任务入队，Attempt置1
	Enqueue(ctx context.Context, job *Job) error
	// Dequeue 阻塞取任务，队列关闭或ctx取消时返回错误
	Dequeue(ctx context.Context) (*Job, error)
	// Ack 任务处理完结（成功或终态失败），不再投递
	Ack(job *Job)
	// Nack 延迟retryAfter后重新投递，Attempt加1
	Nack(job *Job, retryAfter time.Duration)
	// Close 关闭队列，唤醒所有阻塞的Dequeue
	Close()
}
