package service

import (
	"strings"
	"testing"

	"insight-service/ddd/domain/vo"
)

func TestParseSummary(t *testing.T) {
	raw := `This video explains goroutine scheduling.

- GMP model basics
- Work stealing
- Preemption since Go 1.14`

	body, points, err := ParseSummary(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !strings.Contains(body, "goroutine scheduling") {
		t.Errorf("body = %q", body)
	}
	if len(points) != 3 {
		t.Fatalf("key points = %d, want 3", len(points))
	}
	if points[0] != "GMP model basics" {
		t.Errorf("first point = %q", points[0])
	}
}

func TestParseSummaryOnlyKeyPoints(t *testing.T) {
	raw := "- only point one\n- only point two"
	body, points, err := ParseSummary(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("key points = %d", len(points))
	}
	// 无正文段落时整段输出兜底为正文
	if body == "" {
		t.Error("body must not be empty")
	}
}

func TestParseSummaryEmpty(t *testing.T) {
	if _, _, err := ParseSummary("   \n  "); err == nil {
		t.Error("empty response accepted")
	}
}

func TestParseQuestionsFiltersMalformed(t *testing.T) {
	// 5条合格 + 2条不合格，保留5条
	raw := "```json\n" + `[
	  {"question": "Q1", "type": "open_ended", "answer": "a1"},
	  {"question": "Q2", "type": "multiple_choice", "options": [{"text": "A", "correct": true}, {"text": "B"}]},
	  {"question": "Q3", "type": "open_ended", "answer": "a3"},
	  {"question": "Q4", "type": "multiple_choice", "options": [{"text": "A", "correct": true}, {"text": "B"}, {"text": "C"}]},
	  {"question": "Q5", "type": "open_ended", "answer": "a5"},
	  {"question": "", "type": "open_ended"},
	  {"question": "bad mc", "type": "multiple_choice", "options": [{"text": "A"}, {"text": "B"}]}
	]` + "\n```"

	questions, err := ParseQuestions(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(questions) != 5 {
		t.Fatalf("questions = %d, want 5", len(questions))
	}
	for _, q := range questions {
		if !q.IsWellFormed() {
			t.Errorf("malformed question kept: %+v", q)
		}
	}
}

func TestParseQuestionsInfersType(t *testing.T) {
	raw := `[
	  {"question": "has options", "options": [{"text": "A", "correct": true}, {"text": "B"}]},
	  {"question": "no options", "answer": "x"}
	]`
	questions, err := ParseQuestions(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("questions = %d", len(questions))
	}
	if questions[0].Type != vo.QuestionTypeMultipleChoice {
		t.Errorf("type with options = %s", questions[0].Type)
	}
	if questions[1].Type != vo.QuestionTypeOpenEnded {
		t.Errorf("type without options = %s", questions[1].Type)
	}
}

func TestParseQuestionsUnparsable(t *testing.T) {
	if _, err := ParseQuestions("I cannot help with that."); err == nil {
		t.Error("non-JSON response accepted")
	}
	if _, err := ParseQuestions(`[{"question": broken]`); err == nil {
		t.Error("broken JSON accepted")
	}
}

func TestBuildPrompts(t *testing.T) {
	p := BuildSummaryPrompt("some transcript", "en")
	if !strings.Contains(p, "some transcript") || !strings.Contains(p, "en") {
		t.Error("summary prompt missing inputs")
	}
	q := BuildQuestionsPrompt("some transcript", 7)
	if !strings.Contains(q, "exactly 7 questions") {
		t.Error("questions prompt missing count")
	}
	// 非法数量回落默认值
	q = BuildQuestionsPrompt("x", 0)
	if !strings.Contains(q, "exactly 5 questions") {
		t.Error("questions prompt default count not applied")
	}
}
