package worker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"insight-service/ddd/domain/vo"
	"insight-service/ddd/infrastructure/queue"
	"insight-service/pkg/config"
)

type fakePipeline struct {
	mu           sync.Mutex
	processCalls int
	failedCalls  int
	lastFailMsg  string
	processFn    func(attempt int) error
}

func (f *fakePipeline) ProcessVideo(ctx context.Context, videoUUID, filePath string) error {
	f.mu.Lock()
	f.processCalls++
	n := f.processCalls
	f.mu.Unlock()
	if f.processFn != nil {
		return f.processFn(n)
	}
	return nil
}

func (f *fakePipeline) MarkFailed(ctx context.Context, videoUUID, errorMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failedCalls++
	f.lastFailMsg = errorMessage
	return nil
}

func (f *fakePipeline) snapshot() (int, int, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.processCalls, f.failedCalls, f.lastFailMsg
}

type fakeGuard struct {
	mu       sync.Mutex
	held     map[string]bool
	denyAll  bool
	acquires int
}

func (g *fakeGuard) TryAcquire(ctx context.Context, videoUUID string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.acquires++
	if g.denyAll {
		return false, nil
	}
	if g.held == nil {
		g.held = make(map[string]bool)
	}
	if g.held[videoUUID] {
		return false, nil
	}
	g.held[videoUUID] = true
	return true, nil
}

func (g *fakeGuard) Release(ctx context.Context, videoUUID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.held, videoUUID)
	return nil
}

func workerConfig() *config.Config {
	return &config.Config{
		Pipeline: config.PipelineConfig{
			StageMaxAttempts: 3,
			StageBaseDelay:   time.Millisecond,
			QueueMaxAttempts: 3,
			QueueBaseDelay:   time.Millisecond,
			InflightTTL:      time.Minute,
		},
		Worker: config.WorkerConfig{
			MaxConcurrentJobs:   1,
			QueueCapacity:       10,
			ShutdownGracePeriod: time.Second,
		},
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestWorkerProcessesJobSuccessfully(t *testing.T) {
	q := NewTestQueueWithJob(t, "vid-ok")
	defer q.Close()
	pipeline := &fakePipeline{}
	w := NewPipelineWorker(pipeline, q, &fakeGuard{}, workerConfig())

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	waitFor(t, func() bool {
		calls, _, _ := pipeline.snapshot()
		return calls == 1
	})
	waitFor(t, func() bool { return w.GetStats()["jobs_succeeded"] == 1 })
}

func TestWorkerMarksFailedOnPrecondition(t *testing.T) {
	q := NewTestQueueWithJob(t, "vid-pre")
	defer q.Close()
	pipeline := &fakePipeline{processFn: func(int) error {
		return vo.NewPreconditionError(vo.StageTranscription, errors.New("file missing"))
	}}
	w := NewPipelineWorker(pipeline, q, &fakeGuard{}, workerConfig())

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	waitFor(t, func() bool {
		_, failed, _ := pipeline.snapshot()
		return failed == 1
	})
	// 前置失败恰好一次尝试，不重投
	time.Sleep(50 * time.Millisecond)
	calls, failed, msg := pipeline.snapshot()
	if calls != 1 || failed != 1 {
		t.Fatalf("calls=%d failed=%d, want 1/1", calls, failed)
	}
	if msg == "" {
		t.Error("failure message not persisted")
	}
}

func TestWorkerRedeliversTransientUntilBudget(t *testing.T) {
	q := NewTestQueueWithJob(t, "vid-transient")
	defer q.Close()
	pipeline := &fakePipeline{processFn: func(int) error {
		return vo.NewTransientError(vo.StageTranscription, errors.New("upstream 503"))
	}}
	w := NewPipelineWorker(pipeline, q, &fakeGuard{}, workerConfig())

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	// 队列投递预算：3次交付后落终态
	waitFor(t, func() bool {
		_, failed, _ := pipeline.snapshot()
		return failed == 1
	})
	calls, _, msg := pipeline.snapshot()
	if calls != 3 {
		t.Fatalf("process calls = %d, want 3", calls)
	}
	if msg == "" || !strings.Contains(msg, "exhausted") {
		t.Errorf("terminal message = %q, want retry budget note", msg)
	}
	if w.GetStats()["jobs_redelivered"] != 2 {
		t.Errorf("redeliveries = %d, want 2", w.GetStats()["jobs_redelivered"])
	}
}

func TestWorkerSuppressesDuplicateDelivery(t *testing.T) {
	q := NewTestQueueWithJob(t, "vid-dup")
	defer q.Close()
	pipeline := &fakePipeline{}
	guard := &fakeGuard{denyAll: true}
	w := NewPipelineWorker(pipeline, q, guard, workerConfig())

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	waitFor(t, func() bool { return w.GetStats()["jobs_suppressed"] == 1 })
	calls, failed, _ := pipeline.snapshot()
	if calls != 0 || failed != 0 {
		t.Fatalf("suppressed delivery reached pipeline: calls=%d failed=%d", calls, failed)
	}
}

func TestWorkerStartStop(t *testing.T) {
	q := queue.NewMemoryJobQueue(10)
	defer q.Close()
	w := NewPipelineWorker(&fakePipeline{}, q, &fakeGuard{}, workerConfig())

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !w.IsRunning() {
		t.Error("worker not running after start")
	}
	if err := w.Start(context.Background()); err == nil {
		t.Error("double start accepted")
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if w.IsRunning() {
		t.Error("worker still running after stop")
	}
}

// NewTestQueueWithJob 预置单个任务的真实内存队列
func NewTestQueueWithJob(t *testing.T, videoUUID string) queue.JobQueue {
	t.Helper()
	q := queue.NewMemoryJobQueue(10)
	if err := q.Enqueue(context.Background(), &queue.Job{VideoUUID: videoUUID, FilePath: "/tmp/x.mp4"}); err != nil {
		t.Fatal(err)
	}
	return q
}

