package vo

import "time"

// Summary 摘要产物
type Summary struct {
	Text        string    `json:"text"`
	KeyPoints   []string  `json:"key_points,omitempty"`
	Model       string    `json:"model"`
	GeneratedAt time.Time `json:"generated_at"`
}

// 题目类型
const (
	QuestionTypeMultipleChoice = "multiple_choice"
	QuestionTypeOpenEnded      = "open_ended"
)

// Question 测验题目
type Question struct {
	Text        string           `json:"question"`
	Type        string           `json:"type"`
	Options     []QuestionOption `json:"options,omitempty"`
	Answer      string           `json:"answer,omitempty"`
	Explanation string           `json:"explanation,omitempty"`
}

// QuestionOption 选择题选项
type QuestionOption struct {
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// IsWellFormed 校验题目最小形状：题干非空；选择题至少2个选项且至少1个正确答案。
// 不满足的条目直接丢弃，不导致整个阶段失败。
func (q *Question) IsWellFormed() bool {
	if q == nil || q.Text == "" {
		return false
	}
	if q.Type == QuestionTypeMultipleChoice {
		if len(q.Options) < 2 {
			return false
		}
		correct := 0
		for _, opt := range q.Options {
			if opt.Text == "" {
				return false
			}
			if opt.Correct {
				correct++
			}
		}
		if correct < 1 {
			return false
		}
	}
	return true
}
