package task

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/TermiX-official/BscA2A-agent/internal/a2a"
	xerrors "github.com/TermiX-official/BscA2A-agent/internal/errors"
	"github.com/TermiX-official/BscA2A-agent/pkg/logger"
)

// SubmitRequest 描述一次消息提交：TaskID 为空时开启新会话，
// 否则在既有会话上追加一条用户消息并触发新一轮处理。
type SubmitRequest struct {
	TaskID string
	Text   string
}

// Service 负责会话任务的创建、续写与查询。
type Service struct {
	store    Store
	producer Producer
}

// NewService 构造任务服务。
func NewService(store Store, producer Producer) *Service {
	return &Service{store: store, producer: producer}
}

// Submit 接收一条用户消息：新会话入库并排队，旧会话追加消息后重新排队。
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*Record, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, xerrors.New(CodeTaskValidation, "消息内容不能为空")
	}
	if s.store == nil || s.producer == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "任务服务未初始化")
	}

	taskID := strings.TrimSpace(req.TaskID)
	var record *Record
	if taskID == "" {
		taskID = uuid.NewString()
		record = &Record{
			Task: a2a.Task{
				ID:       taskID,
				State:    a2a.StateWorking,
				Messages: []a2a.Message{a2a.NewTextMessage(a2a.RoleUser, text)},
			},
		}
		if err := s.store.Create(ctx, record); err != nil {
			return nil, err
		}
	} else {
		updated, err := s.store.AppendUserMessage(ctx, taskID, text)
		if err != nil {
			return nil, err
		}
		record = updated
	}

	if err := s.producer.Publish(ctx, taskID); err != nil {
		logger.L().Error("任务入队失败", slog.Any("error", err), slog.String("task_id", taskID))
		wrapped := xerrors.Wrap(CodeTaskPublish, err, "发布任务到队列失败")
		_ = s.store.MarkInternalFailure(ctx, taskID, wrapped.Error())
		return nil, wrapped
	}
	logger.Audit().Info("任务入队成功",
		slog.String("task_id", taskID),
		slog.Int("messages", len(record.Task.Messages)),
	)
	return record, nil
}

// Get 返回指定任务的快照。
func (s *Service) Get(ctx context.Context, id string) (*Record, error) {
	if s.store == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "任务存储未初始化")
	}
	return s.store.Get(ctx, id)
}

// List 返回符合过滤条件的任务列表。
func (s *Service) List(ctx context.Context, opts ...ListOption) ([]*Record, error) {
	if s.store == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "任务存储未初始化")
	}
	options := buildListOptions(opts)
	return s.store.List(ctx, options)
}

// Stats 返回符合过滤条件的任务统计信息。
func (s *Service) Stats(ctx context.Context, opts ...ListOption) (TaskStats, error) {
	if s.store == nil {
		return TaskStats{}, xerrors.New(xerrors.CodeInitializationFailure, "任务存储未初始化")
	}
	options := buildListOptions(opts)
	return s.store.Stats(ctx, options)
}

// Close 释放资源。
func (s *Service) Close() error {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			return err
		}
	}
	if s.producer != nil {
		return s.producer.Close()
	}
	return nil
}

// WaitUntilTerminal 在指定超时时间内轮询任务，直到本轮进入终态。
func (s *Service) WaitUntilTerminal(ctx context.Context, id string, interval time.Duration) (*Record, error) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		record, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if record.Terminal() {
			return record, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
