// Package task 承载会话任务的生命周期：入库、排队、单 worker 串行执行与状态回写。
// 存储只保留存活中的会话，不承诺任何跨进程的历史持久化。
package task

import (
	xerrors "github.com/TermiX-official/BscA2A-agent/internal/errors"

	"github.com/TermiX-official/BscA2A-agent/internal/a2a"
)

// Record 是任务在存储层的形态：会话本身加上调度所需的簿记字段。
type Record struct {
	Task      a2a.Task `json:"task"`
	Claimed   bool     `json:"claimed"`
	LastError string   `json:"last_error,omitempty"`
	CreatedAt int64    `json:"created_at"`
	UpdatedAt int64    `json:"updated_at"`
}

// Terminal 判断记录当前是否处于不再被 worker 持有的终态。
func (r *Record) Terminal() bool {
	return r != nil && !r.Claimed && r.Task.State.Terminal()
}

var (
	// ErrTaskNotFound 表示指定的任务不存在。
	ErrTaskNotFound = xerrors.New(CodeTaskNotFound, "task not found")
	// ErrTaskBusy 表示任务正在被 worker 处理，当前操作需要等待本轮结束。
	ErrTaskBusy = xerrors.New(CodeTaskBusy, "task busy", xerrors.WithSeverity(xerrors.SeverityWarning))
	// ErrTaskExists 表示任务 ID 已被占用。
	ErrTaskExists = xerrors.New(CodeTaskExists, "task already exists", xerrors.WithSeverity(xerrors.SeverityWarning))
)

const (
	CodeTaskNotFound   xerrors.Code = "TASK_NOT_FOUND"
	CodeTaskBusy       xerrors.Code = "TASK_BUSY"
	CodeTaskExists     xerrors.Code = "TASK_EXISTS"
	CodeTaskValidation xerrors.Code = "TASK_VALIDATION_FAILED"
	CodeTaskPublish    xerrors.Code = "TASK_PUBLISH_FAILED"
	CodeTaskProcessing xerrors.Code = "TASK_PROCESSING_FAILED"
)

func init() {
	xerrors.Register(CodeTaskNotFound, xerrors.Attributes{
		Message:   "task not found",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeTaskBusy, xerrors.Attributes{
		Message:   "task busy",
		Severity:  xerrors.SeverityWarning,
		Retryable: true,
		Alert:     false,
	})
	xerrors.Register(CodeTaskExists, xerrors.Attributes{
		Message:   "task already exists",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeTaskValidation, xerrors.Attributes{
		Message:   "task validation failed",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeTaskPublish, xerrors.Attributes{
		Message:   "failed to publish task",
		Severity:  xerrors.SeverityCritical,
		Retryable: true,
		Alert:     true,
	})
	xerrors.Register(CodeTaskProcessing, xerrors.Attributes{
		Message:   "task turn execution failed",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     true,
	})
}

func cloneRecord(record *Record) *Record {
	if record == nil {
		return nil
	}
	clone := *record
	clone.Task.Messages = record.Task.History()
	return &clone
}
