package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"insight-service/ddd/domain/entity"
	"insight-service/ddd/domain/gateway"
	"insight-service/ddd/domain/vo"
	"insight-service/pkg/config"
)

// ---- fakes ----

type fakeVideoRepo struct {
	mu     sync.Mutex
	videos map[string]*entity.VideoEntity

	claimCalls      int
	transcriptSaves int
	summarySaves    int
	questionSaves   int
	failureSaves    int
}

func newFakeVideoRepo(videos ...*entity.VideoEntity) *fakeVideoRepo {
	r := &fakeVideoRepo{videos: make(map[string]*entity.VideoEntity)}
	for _, v := range videos {
		r.videos[v.VideoUUID()] = v
	}
	return r
}

func (r *fakeVideoRepo) CreateVideo(ctx context.Context, v *entity.VideoEntity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.videos[v.VideoUUID()] = v
	return nil
}

func (r *fakeVideoRepo) GetVideo(ctx context.Context, videoUUID string) (*entity.VideoEntity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.videos[videoUUID]
	if !ok {
		return nil, fmt.Errorf("video %s not found", videoUUID)
	}
	return v, nil
}

func (r *fakeVideoRepo) ListVideosByUser(ctx context.Context, userUUID string, page, size int) ([]*entity.VideoEntity, int64, error) {
	return nil, 0, nil
}

func (r *fakeVideoRepo) UpdateClaim(ctx context.Context, v *entity.VideoEntity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.claimCalls++
	return nil
}

func (r *fakeVideoRepo) UpdateTranscript(ctx context.Context, v *entity.VideoEntity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcriptSaves++
	return nil
}

func (r *fakeVideoRepo) UpdateSummary(ctx context.Context, v *entity.VideoEntity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summarySaves++
	return nil
}

func (r *fakeVideoRepo) UpdateQuestions(ctx context.Context, v *entity.VideoEntity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.questionSaves++
	return nil
}

func (r *fakeVideoRepo) UpdateFailure(ctx context.Context, v *entity.VideoEntity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failureSaves++
	return nil
}

func (r *fakeVideoRepo) UpdateRetryReset(ctx context.Context, v *entity.VideoEntity) error { return nil }
func (r *fakeVideoRepo) DeleteVideo(ctx context.Context, videoUUID string) error           { return nil }
func (r *fakeVideoRepo) CountByStatus(ctx context.Context, status vo.VideoStatus) (int64, error) {
	return 0, nil
}

type fakeTranscription struct {
	mu    sync.Mutex
	calls int
	fn    func() (*vo.Transcript, error)
}

func (f *fakeTranscription) Transcribe(ctx context.Context, filePath string, opts *gateway.TranscribeOptions) (*vo.Transcript, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.fn()
}

func (f *fakeTranscription) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeGeneration struct {
	mu    sync.Mutex
	calls int
	model string
	fn    func(prompt string) (string, error)
}

func (f *fakeGeneration) Generate(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.fn(prompt)
}

func (f *fakeGeneration) Model() string { return f.model }

func (f *fakeGeneration) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeUsage struct {
	mu     sync.Mutex
	counts map[string]int64
}

func (f *fakeUsage) IncrementUsageCounter(ctx context.Context, userUUID, field string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.counts == nil {
		f.counts = make(map[string]int64)
	}
	key := userUUID + ":" + field
	f.counts[key]++
	return f.counts[key], nil
}

// ---- helpers ----

const goodQuestionsJSON = `[
  {"question": "Q1", "type": "open_ended", "answer": "a1"},
  {"question": "Q2", "type": "open_ended", "answer": "a2"},
  {"question": "Q3", "type": "multiple_choice", "options": [{"text": "A", "correct": true}, {"text": "B"}]},
  {"question": "Q4", "type": "open_ended", "answer": "a4"},
  {"question": "Q5", "type": "multiple_choice", "options": [{"text": "A", "correct": true}, {"text": "B"}]}
]`

const goodSummaryText = "The talk covers testing in Go.\n\n- table tests\n- fakes over mocks"

func testConfig() *config.Config {
	return &config.Config{
		Pipeline: config.PipelineConfig{
			StageMaxAttempts: 3,
			StageBaseDelay:   time.Millisecond,
			QueueMaxAttempts: 3,
			QueueBaseDelay:   time.Millisecond,
			QuestionCount:    5,
			InflightTTL:      time.Minute,
		},
	}
}

func stageSourceFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.mp4")
	if err := os.WriteFile(path, []byte("fake media"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func okTranscription() *fakeTranscription {
	return &fakeTranscription{fn: func() (*vo.Transcript, error) {
		return &vo.Transcript{Text: "full transcript text", Language: "en", Confidence: 0.9}, nil
	}}
}

func okGeneration(model string) *fakeGeneration {
	return &fakeGeneration{model: model, fn: func(prompt string) (string, error) {
		if strings.Contains(prompt, "JSON array") {
			return goodQuestionsJSON, nil
		}
		return goodSummaryText, nil
	}}
}

// ---- tests ----

func TestProcessVideoEndToEnd(t *testing.T) {
	filePath := stageSourceFile(t)
	video := entity.NewUploadedVideoEntity("user-1", "talk", filePath)
	repo := newFakeVideoRepo(video)
	trans := okTranscription()
	gen := okGeneration("primary-model")
	usage := &fakeUsage{}

	svc := NewPipelineService(repo, trans, gen, nil, usage, testConfig())
	if err := svc.ProcessVideo(context.Background(), video.VideoUUID(), filePath); err != nil {
		t.Fatalf("process: %v", err)
	}

	if video.Status() != vo.VideoStatusCompleted || video.Stage() != vo.StageCompleted {
		t.Fatalf("final state %s/%s", video.Status(), video.Stage())
	}
	if video.Transcript().IsEmpty() {
		t.Error("transcript missing")
	}
	if video.Summary() == nil || video.Summary().Model != "primary-model" {
		t.Errorf("summary = %+v", video.Summary())
	}
	if len(video.Summary().KeyPoints) != 2 {
		t.Errorf("key points = %d", len(video.Summary().KeyPoints))
	}
	if len(video.Questions()) != 5 {
		t.Errorf("questions = %d, want 5", len(video.Questions()))
	}
	if repo.transcriptSaves != 1 || repo.summarySaves != 1 || repo.questionSaves != 1 {
		t.Errorf("saves = %d/%d/%d, want 1/1/1", repo.transcriptSaves, repo.summarySaves, repo.questionSaves)
	}
	if usage.counts["user-1:videos_processed"] != 1 {
		t.Error("usage counter not incremented")
	}
}

func TestProcessVideoResumesWithoutRerunningTranscription(t *testing.T) {
	// 转写已持久化，阶段指针在摘要：重投递后不得重跑转写
	now := time.Now()
	video := entity.RestoreVideoEntity(
		"vid-resume", "user-1", "talk", "/tmp/gone.mp4", "",
		vo.VideoStatusUploading, vo.StageSummarization,
		&vo.Transcript{Text: "persisted transcript", Language: "en"},
		nil, nil, "", now, now, nil,
	)
	repo := newFakeVideoRepo(video)
	trans := okTranscription()
	gen := okGeneration("m")

	svc := NewPipelineService(repo, trans, gen, nil, &fakeUsage{}, testConfig())
	if err := svc.ProcessVideo(context.Background(), "vid-resume", "/tmp/gone.mp4"); err != nil {
		t.Fatalf("process: %v", err)
	}

	if got := trans.callCount(); got != 0 {
		t.Fatalf("transcription re-called %d times on resume", got)
	}
	if video.Status() != vo.VideoStatusCompleted {
		t.Fatalf("status = %s", video.Status())
	}
	if video.Transcript().Text != "persisted transcript" {
		t.Error("persisted transcript replaced")
	}
}

func TestProcessVideoMissingFileNoRemoteCalls(t *testing.T) {
	video := entity.NewUploadedVideoEntity("user-1", "talk", "/nonexistent/file.mp4")
	repo := newFakeVideoRepo(video)
	trans := okTranscription()

	svc := NewPipelineService(repo, trans, okGeneration("m"), nil, &fakeUsage{}, testConfig())
	err := svc.ProcessVideo(context.Background(), video.VideoUUID(), "/nonexistent/file.mp4")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if vo.KindOf(err) != vo.FailurePrecondition {
		t.Fatalf("kind = %s, want precondition", vo.KindOf(err))
	}
	if trans.callCount() != 0 {
		t.Fatalf("remote called %d times for missing file", trans.callCount())
	}
}

func TestProcessVideoTransientRetryBudget(t *testing.T) {
	filePath := stageSourceFile(t)
	video := entity.NewUploadedVideoEntity("user-1", "talk", filePath)
	repo := newFakeVideoRepo(video)
	trans := &fakeTranscription{fn: func() (*vo.Transcript, error) {
		return nil, vo.NewTransientError(vo.StageTranscription, errors.New("upstream 503"))
	}}

	svc := NewPipelineService(repo, trans, okGeneration("m"), nil, &fakeUsage{}, testConfig())
	err := svc.ProcessVideo(context.Background(), video.VideoUUID(), filePath)
	if err == nil {
		t.Fatal("expected error")
	}
	if vo.KindOf(err) != vo.FailureTransient {
		t.Fatalf("kind = %s, want transient", vo.KindOf(err))
	}
	// 进程内预算：恰好StageMaxAttempts次
	if got := trans.callCount(); got != 3 {
		t.Fatalf("transcription attempts = %d, want 3", got)
	}
}

func TestProcessVideoRejectedSkipsRetry(t *testing.T) {
	filePath := stageSourceFile(t)
	video := entity.NewUploadedVideoEntity("user-1", "talk", filePath)
	repo := newFakeVideoRepo(video)
	trans := &fakeTranscription{fn: func() (*vo.Transcript, error) {
		return nil, vo.NewRejectedError(vo.StageTranscription, errors.New("unsupported audio"))
	}}

	svc := NewPipelineService(repo, trans, okGeneration("m"), nil, &fakeUsage{}, testConfig())
	err := svc.ProcessVideo(context.Background(), video.VideoUUID(), filePath)
	if vo.KindOf(err) != vo.FailureRejected {
		t.Fatalf("kind = %v", vo.KindOf(err))
	}
	// 拒绝类错误不消耗重试预算
	if got := trans.callCount(); got != 1 {
		t.Fatalf("transcription attempts = %d, want 1", got)
	}
}

func TestProcessVideoFallbackOnRejected(t *testing.T) {
	filePath := stageSourceFile(t)
	video := entity.NewUploadedVideoEntity("user-1", "talk", filePath)
	repo := newFakeVideoRepo(video)
	primary := &fakeGeneration{model: "primary-model", fn: func(prompt string) (string, error) {
		return "", vo.NewRejectedError(vo.StageSummarization, errors.New("content filter"))
	}}
	fallback := okGeneration("fallback-model")

	svc := NewPipelineService(repo, okTranscription(), primary, fallback, &fakeUsage{}, testConfig())
	if err := svc.ProcessVideo(context.Background(), video.VideoUUID(), filePath); err != nil {
		t.Fatalf("process: %v", err)
	}

	if video.Summary() == nil || video.Summary().Model != "fallback-model" {
		t.Fatalf("summary model = %+v, want fallback", video.Summary())
	}
	if video.Status() != vo.VideoStatusCompleted {
		t.Fatalf("status = %s", video.Status())
	}
	// 主提供方每个生成阶段各被拒一次
	if primary.callCount() != 2 {
		t.Errorf("primary calls = %d, want 2", primary.callCount())
	}
}

func TestProcessVideoNoFallbackOnTransient(t *testing.T) {
	filePath := stageSourceFile(t)
	video := entity.NewUploadedVideoEntity("user-1", "talk", filePath)
	repo := newFakeVideoRepo(video)
	primary := &fakeGeneration{model: "primary-model", fn: func(prompt string) (string, error) {
		return "", vo.NewTransientError(vo.StageSummarization, errors.New("timeout"))
	}}
	fallback := okGeneration("fallback-model")

	svc := NewPipelineService(repo, okTranscription(), primary, fallback, &fakeUsage{}, testConfig())
	err := svc.ProcessVideo(context.Background(), video.VideoUUID(), filePath)
	if vo.KindOf(err) != vo.FailureTransient {
		t.Fatalf("kind = %v", vo.KindOf(err))
	}
	// 备用提供方只响应拒绝类失败
	if fallback.callCount() != 0 {
		t.Errorf("fallback called %d times on transient failure", fallback.callCount())
	}
}

func TestProcessVideoMalformedQuestionsDropped(t *testing.T) {
	filePath := stageSourceFile(t)
	video := entity.NewUploadedVideoEntity("user-1", "talk", filePath)
	repo := newFakeVideoRepo(video)
	gen := &fakeGeneration{model: "m", fn: func(prompt string) (string, error) {
		if strings.Contains(prompt, "JSON array") {
			// 5条合格 + 2条不合格
			return `[
			  {"question": "Q1", "answer": "a"},
			  {"question": "Q2", "answer": "a"},
			  {"question": "Q3", "answer": "a"},
			  {"question": "Q4", "answer": "a"},
			  {"question": "Q5", "answer": "a"},
			  {"question": "", "answer": "a"},
			  {"question": "bad", "type": "multiple_choice", "options": [{"text": "A"}]}
			]`, nil
		}
		return goodSummaryText, nil
	}}

	svc := NewPipelineService(repo, okTranscription(), gen, nil, &fakeUsage{}, testConfig())
	if err := svc.ProcessVideo(context.Background(), video.VideoUUID(), filePath); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(video.Questions()) != 5 {
		t.Fatalf("questions = %d, want 5", len(video.Questions()))
	}
	if video.Status() != vo.VideoStatusCompleted {
		t.Fatalf("status = %s", video.Status())
	}
}

const allMalformedQuestionsJSON = `[
  {"question": "", "answer": "a"},
  {"question": "bad", "type": "multiple_choice", "options": [{"text": "A"}]}
]`

func TestProcessVideoAllMalformedQuestionsRejected(t *testing.T) {
	// 条目全部不合格：不得带零题完成，按拒绝处理
	filePath := stageSourceFile(t)
	video := entity.NewUploadedVideoEntity("user-1", "talk", filePath)
	repo := newFakeVideoRepo(video)
	gen := &fakeGeneration{model: "m", fn: func(prompt string) (string, error) {
		if strings.Contains(prompt, "JSON array") {
			return allMalformedQuestionsJSON, nil
		}
		return goodSummaryText, nil
	}}

	svc := NewPipelineService(repo, okTranscription(), gen, nil, &fakeUsage{}, testConfig())
	err := svc.ProcessVideo(context.Background(), video.VideoUUID(), filePath)
	if err == nil {
		t.Fatal("expected error for all-malformed question response")
	}
	if vo.KindOf(err) != vo.FailureRejected {
		t.Fatalf("kind = %s, want rejected", vo.KindOf(err))
	}
	if video.Status() == vo.VideoStatusCompleted {
		t.Fatal("video completed with zero questions")
	}
	if repo.questionSaves != 0 {
		t.Errorf("question saves = %d, want 0", repo.questionSaves)
	}
}

func TestProcessVideoAllMalformedQuestionsTriggersFallback(t *testing.T) {
	filePath := stageSourceFile(t)
	video := entity.NewUploadedVideoEntity("user-1", "talk", filePath)
	repo := newFakeVideoRepo(video)
	primary := &fakeGeneration{model: "primary-model", fn: func(prompt string) (string, error) {
		if strings.Contains(prompt, "JSON array") {
			return allMalformedQuestionsJSON, nil
		}
		return goodSummaryText, nil
	}}
	fallback := okGeneration("fallback-model")

	svc := NewPipelineService(repo, okTranscription(), primary, fallback, &fakeUsage{}, testConfig())
	if err := svc.ProcessVideo(context.Background(), video.VideoUUID(), filePath); err != nil {
		t.Fatalf("process: %v", err)
	}
	if video.Status() != vo.VideoStatusCompleted {
		t.Fatalf("status = %s", video.Status())
	}
	if len(video.Questions()) != 5 {
		t.Fatalf("questions = %d, want 5 from fallback", len(video.Questions()))
	}
}

func TestProcessVideoSkipsTerminal(t *testing.T) {
	now := time.Now()
	video := entity.RestoreVideoEntity(
		"vid-done", "user-1", "talk", "/tmp/a.mp4", "",
		vo.VideoStatusCompleted, vo.StageCompleted,
		&vo.Transcript{Text: "t"}, &vo.Summary{Text: "s"}, nil, "", now, now, &now,
	)
	repo := newFakeVideoRepo(video)
	trans := okTranscription()

	svc := NewPipelineService(repo, trans, okGeneration("m"), nil, &fakeUsage{}, testConfig())
	if err := svc.ProcessVideo(context.Background(), "vid-done", "/tmp/a.mp4"); err != nil {
		t.Fatalf("process: %v", err)
	}
	if trans.callCount() != 0 || repo.claimCalls != 0 {
		t.Error("terminal video must be skipped without side effects")
	}
}

func TestMarkFailed(t *testing.T) {
	video := entity.NewUploadedVideoEntity("user-1", "talk", "/tmp/a.mp4")
	repo := newFakeVideoRepo(video)
	svc := NewPipelineService(repo, okTranscription(), okGeneration("m"), nil, &fakeUsage{}, testConfig())

	if err := svc.MarkFailed(context.Background(), video.VideoUUID(), "retry budget exhausted"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if video.Status() != vo.VideoStatusFailed || video.Stage() != vo.StageFailed {
		t.Fatalf("state %s/%s", video.Status(), video.Stage())
	}
	if video.ErrorMessage() != "retry budget exhausted" {
		t.Errorf("error message = %q", video.ErrorMessage())
	}
	if repo.failureSaves != 1 {
		t.Errorf("failure saves = %d", repo.failureSaves)
	}

	// 已是终态时幂等返回
	if err := svc.MarkFailed(context.Background(), video.VideoUUID(), "again"); err != nil {
		t.Fatalf("mark failed on terminal: %v", err)
	}
	if repo.failureSaves != 1 {
		t.Error("terminal video failure persisted twice")
	}
}
