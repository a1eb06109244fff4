package entity

import (
	"testing"

	"insight-service/ddd/domain/vo"
)

func sampleTranscript() *vo.Transcript {
	return &vo.Transcript{Text: "hello world", Language: "en", Confidence: 0.95}
}

func sampleSummary() *vo.Summary {
	return &vo.Summary{Text: "a summary", Model: "test-model"}
}

func sampleQuestions() []vo.Question {
	return []vo.Question{{Text: "why?", Type: vo.QuestionTypeOpenEnded, Answer: "because"}}
}

func TestVideoEntityHappyPath(t *testing.T) {
	v := NewUploadedVideoEntity("user-1", "title", "/tmp/a.mp4")
	if v.Status() != vo.VideoStatusUploading || v.Stage() != vo.StageTranscription {
		t.Fatalf("new video in %s/%s, want uploading/transcription", v.Status(), v.Stage())
	}

	if err := v.Claim(); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if v.Status() != vo.VideoStatusProcessing {
		t.Fatalf("status after claim = %s", v.Status())
	}
	// 重复认领是幂等的（队列重投递场景）
	if err := v.Claim(); err != nil {
		t.Fatalf("re-claim should be idempotent: %v", err)
	}

	if err := v.AttachTranscript(sampleTranscript()); err != nil {
		t.Fatalf("attach transcript: %v", err)
	}
	if v.Stage() != vo.StageSummarization {
		t.Fatalf("stage after transcript = %s", v.Stage())
	}

	if err := v.AttachSummary(sampleSummary()); err != nil {
		t.Fatalf("attach summary: %v", err)
	}
	if v.Stage() != vo.StageQuestionGeneration {
		t.Fatalf("stage after summary = %s", v.Stage())
	}

	if err := v.AttachQuestions(sampleQuestions()); err != nil {
		t.Fatalf("attach questions: %v", err)
	}
	if v.Status() != vo.VideoStatusCompleted || v.Stage() != vo.StageCompleted {
		t.Fatalf("final state %s/%s", v.Status(), v.Stage())
	}
	if v.CompletedAt() == nil {
		t.Fatal("completed_at not set")
	}
}

func TestVideoEntityStageGuards(t *testing.T) {
	v := NewUploadedVideoEntity("user-1", "title", "/tmp/a.mp4")
	_ = v.Claim()

	// 空转写不接受
	if err := v.AttachTranscript(&vo.Transcript{}); err == nil {
		t.Error("empty transcript accepted")
	}
	// 阶段不对时产物不接受
	if err := v.AttachSummary(sampleSummary()); err == nil {
		t.Error("summary attached at transcription stage")
	}
	if err := v.AttachQuestions(sampleQuestions()); err == nil {
		t.Error("questions attached at transcription stage")
	}

	_ = v.AttachTranscript(sampleTranscript())
	// 转写阶段已过去，不能再次写入
	if err := v.AttachTranscript(sampleTranscript()); err == nil {
		t.Error("transcript attached twice")
	}
}

func TestVideoEntityFailAndRetry(t *testing.T) {
	v := NewUploadedVideoEntity("user-1", "title", "/tmp/a.mp4")
	_ = v.Claim()
	_ = v.AttachTranscript(sampleTranscript())

	if err := v.Fail("provider rejected"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if v.Status() != vo.VideoStatusFailed || v.Stage() != vo.StageFailed {
		t.Fatalf("state after fail %s/%s", v.Status(), v.Stage())
	}
	if v.ErrorMessage() != "provider rejected" {
		t.Fatalf("error message = %q", v.ErrorMessage())
	}
	// 终态不可再失败
	if err := v.Fail("again"); err == nil {
		t.Error("fail on terminal video accepted")
	}

	// 重试回到首个缺失产物的阶段：转写已有，应从摘要续跑
	if err := v.ResetForRetry(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if v.Stage() != vo.StageSummarization {
		t.Fatalf("retry stage = %s, want summarization", v.Stage())
	}
	if v.Status() != vo.VideoStatusUploading {
		t.Fatalf("retry status = %s, want uploading", v.Status())
	}
	if v.ErrorMessage() != "" {
		t.Error("error message not cleared on retry")
	}
	if v.Transcript().IsEmpty() {
		t.Error("retry must keep existing transcript")
	}

	// 未失败的视频不能重试
	fresh := NewUploadedVideoEntity("user-1", "t", "/tmp/b.mp4")
	if err := fresh.ResetForRetry(); err == nil {
		t.Error("retry on non-failed video accepted")
	}
}
