package vo

// VideoStatus 视频粗粒度生命周期状态
type VideoStatus string

const (
	// VideoStatusUploading 已创建，等待首次被Worker认领
	VideoStatusUploading VideoStatus = "uploading"
	// VideoStatusProcessing 流水线处理中
	VideoStatusProcessing VideoStatus = "processing"
	// VideoStatusCompleted 全部产物生成完毕
	VideoStatusCompleted VideoStatus = "completed"
	// VideoStatusFailed 终态失败
	VideoStatusFailed VideoStatus = "failed"
)

// IsValid 检查状态是否有效
func (s VideoStatus) IsValid() bool {
	switch s {
	case VideoStatusUploading, VideoStatusProcessing, VideoStatusCompleted, VideoStatusFailed:
		return true
	default:
		return false
	}
}

// String 返回状态字符串
func (s VideoStatus) String() string {
	return string(s)
}

// IsTerminal 检查是否为终态
func (s VideoStatus) IsTerminal() bool {
	return s == VideoStatusCompleted || s == VideoStatusFailed
}

// CanTransitionTo 检查是否可以转换到目标状态
func (s VideoStatus) CanTransitionTo(target VideoStatus) bool {
	switch s {
	case VideoStatusUploading:
		return target == VideoStatusProcessing || target == VideoStatusFailed
	case VideoStatusProcessing:
		return target == VideoStatusCompleted || target == VideoStatusFailed
	case VideoStatusCompleted, VideoStatusFailed:
		// 终态只能由外部重试入口重置，不走状态机
		return false
	default:
		return false
	}
}
