package vo

import (
	"errors"
	"fmt"
)

// FailureKind 阶段错误分类，决定重试策略
type FailureKind string

const (
	// FailurePrecondition 远程调用前发现的输入问题，不重试
	FailurePrecondition FailureKind = "precondition_failed"
	// FailureTransient 网络/超时/5xx/限流，可重试
	FailureTransient FailureKind = "remote_transient"
	// FailureRejected 提供方明确拒绝或响应不可解析，不重试，可能触发备用提供方
	FailureRejected FailureKind = "remote_rejected"
	// FailureExhausted 重试预算耗尽后的终态错误
	FailureExhausted FailureKind = "exhausted"
)

// StageError 携带阶段与分类的流水线错误
type StageError struct {
	Stage ProcessingStage
	Kind  FailureKind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewPreconditionError 输入前置条件失败
func NewPreconditionError(stage ProcessingStage, err error) *StageError {
	return &StageError{Stage: stage, Kind: FailurePrecondition, Err: err}
}

// NewTransientError 可重试的远程故障
func NewTransientError(stage ProcessingStage, err error) *StageError {
	return &StageError{Stage: stage, Kind: FailureTransient, Err: err}
}

// NewRejectedError 提供方拒绝或响应无效
func NewRejectedError(stage ProcessingStage, err error) *StageError {
	return &StageError{Stage: stage, Kind: FailureRejected, Err: err}
}

// NewExhaustedError 重试预算耗尽
func NewExhaustedError(stage ProcessingStage, err error) *StageError {
	return &StageError{Stage: stage, Kind: FailureExhausted, Err: err}
}

// KindOf 提取错误的分类，非StageError按transient处理（未知远程故障按可重试兜底）
func KindOf(err error) FailureKind {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	return FailureTransient
}

// IsTransient 错误是否可重试
func IsTransient(err error) bool {
	return KindOf(err) == FailureTransient
}
