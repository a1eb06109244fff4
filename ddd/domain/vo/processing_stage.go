package vo

// ProcessingStage 流水线细粒度阶段指针，只允许前进或跳转failed
type ProcessingStage string

const (
	// StageTranscription 语音转写
	StageTranscription ProcessingStage = "transcription"
	// StageSummarization 摘要生成
	StageSummarization ProcessingStage = "summarization"
	// StageQuestionGeneration 题目生成
	StageQuestionGeneration ProcessingStage = "question_generation"
	// StageCompleted 全部阶段完成
	StageCompleted ProcessingStage = "completed"
	// StageFailed 终态失败
	StageFailed ProcessingStage = "failed"
)

// stageOrder 阶段前进顺序
var stageOrder = map[ProcessingStage]int{
	StageTranscription:      0,
	StageSummarization:      1,
	StageQuestionGeneration: 2,
	StageCompleted:          3,
}

// IsValid 检查阶段是否有效
func (s ProcessingStage) IsValid() bool {
	switch s {
	case StageTranscription, StageSummarization, StageQuestionGeneration, StageCompleted, StageFailed:
		return true
	default:
		return false
	}
}

// String 返回阶段字符串
func (s ProcessingStage) String() string {
	return string(s)
}

// IsTerminal 检查是否为终态阶段
func (s ProcessingStage) IsTerminal() bool {
	return s == StageCompleted || s == StageFailed
}

// Next 返回下一个阶段，终态返回自身
func (s ProcessingStage) Next() ProcessingStage {
	switch s {
	case StageTranscription:
		return StageSummarization
	case StageSummarization:
		return StageQuestionGeneration
	case StageQuestionGeneration:
		return StageCompleted
	default:
		return s
	}
}

// CanTransitionTo 检查阶段跳转是否合法：只能单步前进，或从非终态跳failed
func (s ProcessingStage) CanTransitionTo(target ProcessingStage) bool {
	if s == target {
		return false
	}
	if target == StageFailed {
		return !s.IsTerminal()
	}
	from, okFrom := stageOrder[s]
	to, okTo := stageOrder[target]
	if !okFrom || !okTo {
		return false
	}
	return to == from+1
}
