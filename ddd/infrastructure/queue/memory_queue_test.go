package queue

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestEnqueueDequeue(t *testing.T) {
	q := NewMemoryJobQueue(10)
	defer q.Close()

	job := &Job{VideoUUID: "vid-1", FilePath: "/tmp/a.mp4"}
	if err := q.Enqueue(context.Background(), job); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if job.Attempt != 1 {
		t.Errorf("attempt = %d, want 1", job.Attempt)
	}

	got, err := q.Dequeue(context.Background())
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if got.VideoUUID != "vid-1" {
		t.Errorf("video_uuid = %s", got.VideoUUID)
	}
	q.Ack(got)
}

func TestEnqueueFull(t *testing.T) {
	q := NewMemoryJobQueue(1)
	defer q.Close()

	if err := q.Enqueue(context.Background(), &Job{VideoUUID: "a"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.Enqueue(context.Background(), &Job{VideoUUID: "b"}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}
}

func TestNackRedeliversWithIncrementedAttempt(t *testing.T) {
	q := NewMemoryJobQueue(10)
	defer q.Close()

	_ = q.Enqueue(context.Background(), &Job{VideoUUID: "vid-1"})
	job, _ := q.Dequeue(context.Background())

	q.Nack(job, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	redelivered, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue redelivered: %v", err)
	}
	if redelivered.Attempt != 2 {
		t.Errorf("attempt = %d, want 2", redelivered.Attempt)
	}
	if redelivered.VideoUUID != "vid-1" {
		t.Errorf("video_uuid = %s", redelivered.VideoUUID)
	}
}

func TestNackDelay(t *testing.T) {
	q := NewMemoryJobQueue(10)
	defer q.Close()

	_ = q.Enqueue(context.Background(), &Job{VideoUUID: "vid-1"})
	job, _ := q.Dequeue(context.Background())
	q.Nack(job, 50*time.Millisecond)

	// 延迟窗口内不可见
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := q.Dequeue(ctx); err == nil {
		t.Fatal("job visible before redelivery delay elapsed")
	}

	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	if _, err := q.Dequeue(ctx2); err != nil {
		t.Fatalf("job not redelivered after delay: %v", err)
	}
}

func TestCloseWakesDequeue(t *testing.T) {
	q := NewMemoryJobQueue(10)

	errCh := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(context.Background())
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrQueueClosed) {
			t.Fatalf("err = %v, want ErrQueueClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("dequeue not woken by close")
	}

	if err := q.Enqueue(context.Background(), &Job{VideoUUID: "x"}); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("enqueue after close = %v, want ErrQueueClosed", err)
	}
}

func TestNackAfterCloseDropped(t *testing.T) {
	q := NewMemoryJobQueue(10)
	_ = q.Enqueue(context.Background(), &Job{VideoUUID: "vid-1"})
	job, _ := q.Dequeue(context.Background())

	q.Close()
	// 关闭后的Nack静默丢弃，重启后由数据库状态驱动重新入队
	q.Nack(job, time.Millisecond)
}
