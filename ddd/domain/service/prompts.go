package service

import (
	"encoding/json"
	"fmt"
	"strings"

	"insight-service/ddd/domain/vo"
)

// 提示词模板与响应解析。生成提供方只负责一来一回，
// 结构化输出的形状约束在这里兜底。

const summaryPromptTemplate = `You are an assistant that summarizes video transcripts.
Write a concise summary of the following transcript in the same language as the transcript (detected language: %s).
Start with a short paragraph, then list the key points, one per line, each prefixed with "- ".
Do not add any preamble or closing remarks.

Transcript:
%s`

const questionsPromptTemplate = `You are an assistant that writes quiz questions to test comprehension of a video.
Based on the transcript below, produce exactly %d questions as a JSON array and nothing else.
Each element must be an object with the fields:
  "question": the question text (required, non-empty),
  "type": "multiple_choice" or "open_ended",
  "options": for multiple_choice, an array of {"text": string, "correct": boolean} with at least 2 options and at least 1 correct,
  "answer": for open_ended, the expected answer,
  "explanation": a short explanation of the answer.
Respond with the raw JSON array only, no markdown fences.

Transcript:
%s`

// BuildSummaryPrompt 构造摘要提示词
func BuildSummaryPrompt(transcriptText, language string) string {
	if language == "" {
		language = "unknown"
	}
	return fmt.Sprintf(summaryPromptTemplate, language, transcriptText)
}

// BuildQuestionsPrompt 构造出题提示词
func BuildQuestionsPrompt(transcriptText string, count int) string {
	if count <= 0 {
		count = 5
	}
	return fmt.Sprintf(questionsPromptTemplate, count, transcriptText)
}

// ParseSummary 从模型输出提取摘要正文与要点列表
func ParseSummary(raw string) (string, []string, error) {
	text := stripCodeFence(strings.TrimSpace(raw))
	if text == "" {
		return "", nil, fmt.Errorf("empty summary response")
	}

	var keyPoints []string
	var bodyLines []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "- ") {
			if point := strings.TrimSpace(strings.TrimPrefix(trimmed, "- ")); point != "" {
				keyPoints = append(keyPoints, point)
			}
			continue
		}
		bodyLines = append(bodyLines, line)
	}

	body := strings.TrimSpace(strings.Join(bodyLines, "\n"))
	if body == "" {
		// 模型偶尔只回要点列表，没有正文段落
		body = text
	}
	return body, keyPoints, nil
}

// ParseQuestions 从模型输出解析题目列表。
// 整体不可解析返回错误；个别不合格条目丢弃，不拖垮整个阶段。
func ParseQuestions(raw string) ([]vo.Question, error) {
	payload := extractJSONArray(stripCodeFence(raw))
	if payload == "" {
		return nil, fmt.Errorf("no JSON array found in response")
	}

	var parsed []vo.Question
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal questions: %w", err)
	}

	questions := make([]vo.Question, 0, len(parsed))
	for i := range parsed {
		q := parsed[i]
		if q.Type == "" {
			if len(q.Options) > 0 {
				q.Type = vo.QuestionTypeMultipleChoice
			} else {
				q.Type = vo.QuestionTypeOpenEnded
			}
		}
		if !q.IsWellFormed() {
			continue
		}
		questions = append(questions, q)
	}
	return questions, nil
}

// extractJSONArray 截取首个完整的JSON数组子串
func extractJSONArray(s string) string {
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

// stripCodeFence 去掉markdown代码围栏
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
