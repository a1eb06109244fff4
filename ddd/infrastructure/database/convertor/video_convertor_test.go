package convertor

import (
	"testing"
	"time"

	"insight-service/ddd/domain/entity"
	"insight-service/ddd/domain/vo"
)

func TestVideoConvertorRoundTrip(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	completed := now.Add(time.Minute)
	src := entity.RestoreVideoEntity(
		"vid-1", "user-1", "title", "/tmp/source.mp4", "https://youtu.be/abc",
		vo.VideoStatusCompleted, vo.StageCompleted,
		&vo.Transcript{Text: "hello", Language: "en", Confidence: 0.9,
			Words: []vo.Word{{Text: "hello", Start: 0.5, End: 0.9, Confidence: 0.95}}},
		&vo.Summary{Text: "summary", KeyPoints: []string{"p1"}, Model: "m"},
		[]vo.Question{{Text: "q", Type: vo.QuestionTypeOpenEnded, Answer: "a"}},
		"", now, now, &completed,
	)

	c := NewVideoConvertor()
	p := c.ToPO(src)
	if p.VideoUUID != "vid-1" || p.Status != "completed" || p.Stage != "completed" {
		t.Fatalf("po = %+v", p)
	}
	if p.Transcript == nil || p.Summary == nil || p.Questions == nil {
		t.Fatal("JSON columns not populated")
	}

	p.CreatedAt = now
	p.UpdatedAt = now
	back := c.ToEntity(p)
	if back.VideoUUID() != "vid-1" || back.UserUUID() != "user-1" {
		t.Fatalf("entity identity lost: %s/%s", back.VideoUUID(), back.UserUUID())
	}
	if back.Transcript().Text != "hello" || len(back.Transcript().Words) != 1 {
		t.Errorf("transcript round trip: %+v", back.Transcript())
	}
	if back.Summary().Model != "m" || len(back.Summary().KeyPoints) != 1 {
		t.Errorf("summary round trip: %+v", back.Summary())
	}
	if len(back.Questions()) != 1 || back.Questions()[0].Text != "q" {
		t.Errorf("questions round trip: %+v", back.Questions())
	}
	if back.CompletedAt() == nil {
		t.Error("completed_at lost")
	}
}

func TestVideoConvertorNilArtifacts(t *testing.T) {
	v := entity.NewUploadedVideoEntity("user-1", "t", "/tmp/a.mp4")
	c := NewVideoConvertor()
	p := c.ToPO(v)
	if p.Transcript != nil || p.Summary != nil || p.Questions != nil {
		t.Fatal("empty artifacts must map to NULL columns")
	}

	back := c.ToEntity(p)
	if !back.Transcript().IsEmpty() || back.Summary() != nil || back.Questions() != nil {
		t.Fatal("nil columns must map back to absent artifacts")
	}
}

func TestVideoConvertorCorruptColumnTolerated(t *testing.T) {
	v := entity.NewUploadedVideoEntity("user-1", "t", "/tmp/a.mp4")
	c := NewVideoConvertor()
	p := c.ToPO(v)

	bad := "{not json"
	p.Transcript = &bad
	back := c.ToEntity(p)
	// 损坏的列降级为空产物，不拖垮读取路径
	if !back.Transcript().IsEmpty() {
		t.Fatal("corrupt column must degrade to empty transcript")
	}
}
