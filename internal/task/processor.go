package task

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"time"

	"github.com/TermiX-official/BscA2A-agent/internal/a2a"
	xerrors "github.com/TermiX-official/BscA2A-agent/internal/errors"
	"github.com/TermiX-official/BscA2A-agent/internal/observability/alerting"
	"github.com/TermiX-official/BscA2A-agent/pkg/logger"
)

// Orchestrator 定义了处理器所需的会话编排能力。
type Orchestrator interface {
	Run(ctx context.Context, task *a2a.Task) <-chan a2a.StatusUpdate
}

// Processor 负责从队列消费任务并交给编排器执行一轮会话。
// 默认单 worker：签名账户只有一个，串行执行避免 nonce 竞争。
type Processor struct {
	orchestrator Orchestrator
	store        Store
	consumer     Consumer
	workerCount  int
	logger       *slog.Logger
	alerter      alerting.Dispatcher
}

// ProcessorOption 定义可选配置。
type ProcessorOption func(*Processor)

// WithProcessorLogger 指定日志输出。
func WithProcessorLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithWorkerCount 设置消费协程数量。多账户签名前不要调大。
func WithWorkerCount(workers int) ProcessorOption {
	return func(p *Processor) {
		if workers > 0 {
			p.workerCount = workers
		}
	}
}

// WithAlertDispatcher 配置告警派发器。
func WithAlertDispatcher(dispatcher alerting.Dispatcher) ProcessorOption {
	return func(p *Processor) {
		p.alerter = dispatcher
	}
}

// NewProcessor 构造 Processor。
func NewProcessor(orchestrator Orchestrator, store Store, consumer Consumer, opts ...ProcessorOption) *Processor {
	p := &Processor{
		orchestrator: orchestrator,
		store:        store,
		consumer:     consumer,
		workerCount:  1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.workerCount <= 0 {
		p.workerCount = 1
	}
	return p
}

// Start 启动任务处理循环。
func (p *Processor) Start(ctx context.Context) error {
	if p.consumer == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "未配置任务消费者")
	}
	return p.consumer.Consume(ctx, p.workerCount, p.handle)
}

func (p *Processor) handle(ctx context.Context, taskID string) error {
	if p.store == nil || p.orchestrator == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "处理器未初始化")
	}
	record, err := p.store.Claim(ctx, taskID)
	if err != nil {
		if stdErrors.Is(err, ErrTaskNotFound) || stdErrors.Is(err, ErrTaskBusy) {
			p.logDebug("跳过任务", slog.String("task_id", taskID), slog.String("reason", err.Error()))
			return nil
		}
		logger.L().Error("领取任务失败", slog.Any("error", err), slog.String("task_id", taskID))
		return err
	}

	// 队列重复投递时任务可能已处于终态，释放占有即可。
	if record.Task.State.Terminal() {
		if err := p.store.ApplyUpdate(ctx, taskID, a2a.StatusUpdate{State: record.Task.State}); err != nil {
			logger.L().Error("释放任务占有失败", slog.Any("error", err), slog.String("task_id", taskID))
			return err
		}
		return nil
	}

	var final a2a.StatusUpdate
	for update := range p.orchestrator.Run(ctx, &record.Task) {
		if err := p.store.ApplyUpdate(ctx, taskID, update); err != nil {
			logger.L().Error("回写任务状态失败", slog.Any("error", err), slog.String("task_id", taskID))
			_ = p.store.MarkInternalFailure(ctx, taskID, err.Error())
			return err
		}
		final = update
	}

	if !final.State.Terminal() {
		// 编排器承诺以终态收尾，走到这里说明上下文被取消。
		reason := "orchestrator stream ended without a terminal state"
		if ctx.Err() != nil {
			reason = ctx.Err().Error()
		}
		if err := p.store.MarkInternalFailure(ctx, taskID, reason); err != nil {
			logger.L().Error("标记任务失败状态出错", slog.Any("error", err), slog.String("task_id", taskID))
		}
		return ctx.Err()
	}

	if final.State == a2a.StateFailed {
		logger.Audit().Warn("任务执行失败",
			slog.String("task_id", taskID),
			slog.String("reply", final.Message.Text()),
		)
		p.emitAlert(ctx, taskID, final)
		return nil
	}
	logger.Audit().Info("任务本轮处理完成",
		slog.String("task_id", taskID),
		slog.String("state", string(final.State)),
	)
	return nil
}

func (p *Processor) logDebug(msg string, attrs ...slog.Attr) {
	if p.logger != nil {
		args := make([]any, len(attrs))
		for i, attr := range attrs {
			args[i] = attr
		}
		p.logger.Debug(msg, args...)
	}
}

func (p *Processor) emitAlert(ctx context.Context, taskID string, final a2a.StatusUpdate) {
	if p == nil || p.alerter == nil {
		return
	}
	attrs := xerrors.AttributesOf(CodeTaskProcessing)
	message := final.Message.Text()
	if message == "" {
		message = attrs.Message
	}
	event := alerting.Event{
		Code:     CodeTaskProcessing,
		Message:  message,
		Severity: attrs.Severity,
		TaskID:   taskID,
		State:    string(final.State),
		Metadata: map[string]string{
			"reply": final.Message.Text(),
		},
		OccurredAt: time.Now(),
	}
	if err := p.alerter.Notify(ctx, event); err != nil {
		logger.L().Error("告警通知失败",
			slog.Any("error", err),
			slog.String("task_id", taskID),
		)
	}
}
