package component

import (
	"context"
	"errors"
	"testing"
	"time"

	"insight-service/ddd/infrastructure/queue"
)

func TestEnqueueWithRetryWaitsForCapacity(t *testing.T) {
	// 队列满时不得丢任务：等消费端腾出空间后完成入队
	q := queue.NewMemoryJobQueue(1)
	defer q.Close()
	if err := q.Enqueue(context.Background(), &queue.Job{VideoUUID: "vid-1"}); err != nil {
		t.Fatal(err)
	}

	go func() {
		time.Sleep(150 * time.Millisecond)
		if _, err := q.Dequeue(context.Background()); err != nil {
			t.Errorf("dequeue: %v", err)
		}
	}()

	done := make(chan error, 1)
	go func() {
		done <- enqueueWithRetry(context.Background(), q, &queue.Job{VideoUUID: "vid-2"})
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("enqueue with retry: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("enqueue with retry did not complete after capacity freed")
	}

	job, err := q.Dequeue(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if job.VideoUUID != "vid-2" {
		t.Fatalf("dequeued %s, want vid-2", job.VideoUUID)
	}
}

func TestEnqueueWithRetryStopsOnClosedQueue(t *testing.T) {
	q := queue.NewMemoryJobQueue(1)
	q.Close()

	err := enqueueWithRetry(context.Background(), q, &queue.Job{VideoUUID: "vid-1"})
	if !errors.Is(err, queue.ErrQueueClosed) {
		t.Fatalf("err = %v, want ErrQueueClosed", err)
	}
}

func TestEnqueueWithRetryStopsOnContextCancel(t *testing.T) {
	q := queue.NewMemoryJobQueue(1)
	defer q.Close()
	if err := q.Enqueue(context.Background(), &queue.Job{VideoUUID: "vid-1"}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	done := make(chan error, 1)
	go func() {
		done <- enqueueWithRetry(ctx, q, &queue.Job{VideoUUID: "vid-2"})
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected error after context cancel on full queue")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("enqueue with retry did not stop after context cancel")
	}
}
