package main

import (
	"context"
	"errors"
	"testing"

	"insight-service/ddd/domain/vo"
)

type fakeStatsSource struct{}

func (f *fakeStatsSource) GetStats() map[string]int64 {
	return map[string]int64{"jobs_processed": 7}
}

type fakeStatusCounter struct {
	counts map[vo.VideoStatus]int64
	errOn  vo.VideoStatus
}

func (f *fakeStatusCounter) CountByStatus(ctx context.Context, status vo.VideoStatus) (int64, error) {
	if status == f.errOn {
		return 0, errors.New("db down")
	}
	return f.counts[status], nil
}

func TestCollectStatsMergesStatusCounts(t *testing.T) {
	counter := &fakeStatusCounter{counts: map[vo.VideoStatus]int64{
		vo.VideoStatusProcessing: 2,
		vo.VideoStatusCompleted:  40,
		vo.VideoStatusFailed:     3,
	}}

	stats := collectStats(context.Background(), &fakeStatsSource{}, counter)

	if stats["jobs_processed"] != 7 {
		t.Errorf("jobs_processed = %d, want 7", stats["jobs_processed"])
	}
	if stats["videos_completed"] != 40 {
		t.Errorf("videos_completed = %d, want 40", stats["videos_completed"])
	}
	if stats["videos_failed"] != 3 {
		t.Errorf("videos_failed = %d, want 3", stats["videos_failed"])
	}
	if stats["videos_uploading"] != 0 {
		t.Errorf("videos_uploading = %d, want 0", stats["videos_uploading"])
	}
}

func TestCollectStatsSkipsFailedCounts(t *testing.T) {
	// 统计查询失败不影响其余字段
	counter := &fakeStatusCounter{
		counts: map[vo.VideoStatus]int64{vo.VideoStatusCompleted: 5},
		errOn:  vo.VideoStatusFailed,
	}

	stats := collectStats(context.Background(), &fakeStatsSource{}, counter)

	if _, ok := stats["videos_failed"]; ok {
		t.Error("videos_failed present despite count error")
	}
	if stats["videos_completed"] != 5 {
		t.Errorf("videos_completed = %d, want 5", stats["videos_completed"])
	}
}
