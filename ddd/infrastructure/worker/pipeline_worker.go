package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"insight-service/ddd/domain/gateway"
	"insight-service/ddd/domain/service"
	"insight-service/ddd/domain/vo"
	"insight-service/ddd/infrastructure/queue"
	"insight-service/pkg/config"
	"insight-service/pkg/logger"
)

// PipelineWorker 流水线消费者。
// 从任务队列取任务驱动编排服务，按错误分类决定Ack还是延迟重投：
//   - 前置失败/提供方拒绝：不可重试，落终态失败后Ack
//   - 瞬时失败：未达投递上限则指数退避Nack，达上限落终态失败
//   - 同一视频的并发投递由InflightGuard去重，后到者直接Ack
type PipelineWorker struct {
	pipeline service.PipelineService
	jobQueue queue.JobQueue
	inflight gateway.InflightGuard
	cfg      *config.Config

	running atomic.Bool
	wg      sync.WaitGroup
	cancel  context.CancelFunc

	stats WorkerStats
}

// WorkerStats 运行统计，GetStats返回快照
type WorkerStats struct {
	JobsProcessed   atomic.Int64
	JobsSucceeded   atomic.Int64
	JobsFailed      atomic.Int64
	JobsRedelivered atomic.Int64
	JobsSuppressed  atomic.Int64
}

func NewPipelineWorker(
	pipeline service.PipelineService,
	jobQueue queue.JobQueue,
	inflight gateway.InflightGuard,
	cfg *config.Config,
) *PipelineWorker {
	return &PipelineWorker{
		pipeline: pipeline,
		jobQueue: jobQueue,
		inflight: inflight,
		cfg:      cfg,
	}
}

func (w *PipelineWorker) Name() string {
	return "pipeline-worker"
}

func (w *PipelineWorker) Start(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		return errors.New("pipeline worker already running")
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	concurrency := w.cfg.Worker.MaxConcurrentJobs
	if concurrency <= 0 {
		concurrency = 1
	}
	for i := 0; i < concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(workerCtx, i)
	}

	logger.Info("pipeline worker started", map[string]interface{}{
		"concurrency": concurrency,
	})
	return nil
}

func (w *PipelineWorker) Stop() error {
	if !w.running.CompareAndSwap(true, false) {
		return nil
	}
	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	grace := w.cfg.Worker.ShutdownGracePeriod
	if grace <= 0 {
		grace = 30 * time.Second
	}
	select {
	case <-done:
		logger.Info("pipeline worker stopped")
	case <-time.After(grace):
		logger.Warn("pipeline worker stop timed out, abandoning in-flight jobs")
	}
	return nil
}

func (w *PipelineWorker) IsRunning() bool {
	return w.running.Load()
}

// GetStats 返回运行统计快照
func (w *PipelineWorker) GetStats() map[string]int64 {
	return map[string]int64{
		"jobs_processed":   w.stats.JobsProcessed.Load(),
		"jobs_succeeded":   w.stats.JobsSucceeded.Load(),
		"jobs_failed":      w.stats.JobsFailed.Load(),
		"jobs_redelivered": w.stats.JobsRedelivered.Load(),
		"jobs_suppressed":  w.stats.JobsSuppressed.Load(),
	}
}

func (w *PipelineWorker) workerLoop(ctx context.Context, workerIndex int) {
	defer w.wg.Done()
	logger.Debugf("worker loop %d started", workerIndex)

	for {
		job, err := w.jobQueue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrQueueClosed) || errors.Is(err, context.Canceled) {
				logger.Debugf("worker loop %d exiting: %v", workerIndex, err)
				return
			}
			logger.Errorf("worker loop %d dequeue failed: %v", workerIndex, err)
			continue
		}
		w.processJob(ctx, job)
	}
}

func (w *PipelineWorker) processJob(ctx context.Context, job *queue.Job) {
	w.stats.JobsProcessed.Add(1)

	acquired, err := w.inflight.TryAcquire(ctx, job.VideoUUID, w.cfg.Pipeline.InflightTTL)
	if err != nil {
		logger.Warnf("inflight guard unavailable video_uuid=%s error=%v", job.VideoUUID, err)
		// 互斥保护不可用时不放大故障，按瞬时问题延迟重投
		w.redeliverOrFail(ctx, job, vo.NewTransientError(vo.StageTranscription, err))
		return
	}
	if !acquired {
		// 同一视频已有Worker在处理，本次投递是重复的，直接收尾
		w.stats.JobsSuppressed.Add(1)
		logger.Infof("duplicate delivery suppressed video_uuid=%s attempt=%d", job.VideoUUID, job.Attempt)
		w.jobQueue.Ack(job)
		return
	}
	defer func() {
		if releaseErr := w.inflight.Release(context.Background(), job.VideoUUID); releaseErr != nil {
			logger.Warnf("inflight release failed video_uuid=%s error=%v", job.VideoUUID, releaseErr)
		}
	}()

	procErr := w.pipeline.ProcessVideo(ctx, job.VideoUUID, job.FilePath)
	if procErr == nil {
		w.stats.JobsSucceeded.Add(1)
		w.jobQueue.Ack(job)
		return
	}

	switch vo.KindOf(procErr) {
	case vo.FailurePrecondition, vo.FailureRejected, vo.FailureExhausted:
		// 重试不可能改变结果，立即落终态
		w.markFailedAndAck(ctx, job, procErr)
	default:
		w.redeliverOrFail(ctx, job, procErr)
	}
}

// redeliverOrFail 瞬时失败：队列投递预算内指数退避重投，超预算落终态
func (w *PipelineWorker) redeliverOrFail(ctx context.Context, job *queue.Job, cause error) {
	maxAttempts := w.cfg.Pipeline.QueueMaxAttempts
	if job.Attempt >= maxAttempts {
		exhausted := vo.NewExhaustedError(vo.StageFailed,
			fmt.Errorf("retry budget exhausted after %d deliveries: %w", job.Attempt, cause))
		w.markFailedAndAck(ctx, job, exhausted)
		return
	}

	delay := w.cfg.Pipeline.QueueBaseDelay * time.Duration(1<<(job.Attempt-1))
	logger.Warnf("job transient failure, redelivering video_uuid=%s attempt=%d delay=%s error=%v",
		job.VideoUUID, job.Attempt, delay, cause)
	w.stats.JobsRedelivered.Add(1)
	w.jobQueue.Nack(job, delay)
}

func (w *PipelineWorker) markFailedAndAck(ctx context.Context, job *queue.Job, cause error) {
	w.stats.JobsFailed.Add(1)
	if err := w.pipeline.MarkFailed(ctx, job.VideoUUID, cause.Error()); err != nil {
		logger.Errorf("mark failed error video_uuid=%s error=%v", job.VideoUUID, err)
	}
	w.jobQueue.Ack(job)
}
