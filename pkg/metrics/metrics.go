package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 流水线运行指标，经 /metrics 路由暴露。

var (
	// VideosProcessed 按终态统计处理完的视频数
	VideosProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "insight",
		Name:      "videos_processed_total",
		Help:      "Videos that reached a terminal pipeline state.",
	}, []string{"status"})

	// StageAttempts 各阶段调用次数（含重试）
	StageAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "insight",
		Name:      "stage_attempts_total",
		Help:      "Remote stage invocations including in-process retries.",
	}, []string{"stage", "outcome"})

	// StageDuration 各阶段耗时分布
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "insight",
		Name:      "stage_duration_seconds",
		Help:      "Wall clock duration of each pipeline stage.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
	}, []string{"stage"})

	// JobRedeliveries 队列层重投递次数
	JobRedeliveries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "insight",
		Name:      "job_redeliveries_total",
		Help:      "Jobs redelivered by the queue after a nack.",
	})
)
