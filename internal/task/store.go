package task

import (
	"context"

	"github.com/TermiX-official/BscA2A-agent/internal/a2a"
)

// Store 抽象了存活会话任务的状态管理接口。
type Store interface {
	// Create 新建会话记录，ID 冲突时返回 ErrTaskExists。
	Create(ctx context.Context, record *Record) error
	// Get 返回任务快照。
	Get(ctx context.Context, id string) (*Record, error)
	// AppendUserMessage 追加一条用户消息并把任务置回 working。
	// 任务正在被 worker 处理时返回 ErrTaskBusy。
	AppendUserMessage(ctx context.Context, id, text string) (*Record, error)
	// Claim 为本轮执行占有任务，已被占有时返回 ErrTaskBusy。
	Claim(ctx context.Context, id string) (*Record, error)
	// ApplyUpdate 回写编排器产出的状态增量，终态会释放占有。
	ApplyUpdate(ctx context.Context, id string, update a2a.StatusUpdate) error
	// MarkInternalFailure 在编排器之外的环节出错时把任务置为 failed。
	MarkInternalFailure(ctx context.Context, id, reason string) error
	// List 返回符合过滤条件的任务快照。
	List(ctx context.Context, opts ListOptions) ([]*Record, error)
	// Stats 统计符合过滤条件的任务数量与更新时间范围。
	Stats(ctx context.Context, opts ListOptions) (TaskStats, error)
	Close() error
}
