package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/TermiX-official/BscA2A-agent/internal/a2a"
	"github.com/TermiX-official/BscA2A-agent/internal/observability/alerting"
)

type fakeOrchestrator struct {
	processed atomic.Int32
	latency   time.Duration
	failAll   bool
}

func (f *fakeOrchestrator) Run(ctx context.Context, task *a2a.Task) <-chan a2a.StatusUpdate {
	updates := make(chan a2a.StatusUpdate, 2)
	go func() {
		defer close(updates)
		updates <- a2a.StatusUpdate{State: a2a.StateWorking, Message: a2a.NewTextMessage(a2a.RoleAgent, "Working on your DeFi request...")}
		if f.latency > 0 {
			select {
			case <-time.After(f.latency):
			case <-ctx.Done():
				return
			}
		}
		f.processed.Add(1)
		if f.failAll {
			updates <- a2a.StatusUpdate{State: a2a.StateFailed, Message: a2a.NewTextMessage(a2a.RoleAgent, "Error: boom")}
			return
		}
		updates <- a2a.StatusUpdate{State: a2a.StateCompleted, Message: a2a.NewTextMessage(a2a.RoleAgent, "done")}
	}()
	return updates
}

type recordingAlerter struct {
	mu     sync.Mutex
	events []alerting.Event
}

func (r *recordingAlerter) Notify(_ context.Context, event alerting.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingAlerter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestProcessorHandlesQueuedTasks(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store := NewMemoryStore()
	queue := NewMemoryQueue(1024)
	orch := &fakeOrchestrator{latency: 2 * time.Millisecond}

	service := NewService(store, queue)
	processor := NewProcessor(orch, store, queue, WithProcessorLogger(slog.Default()))

	go func() {
		if err := processor.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("processor exited: %v", err)
		}
	}()

	total := 50
	ids := make([]string, 0, total)
	for i := 0; i < total; i++ {
		record, err := service.Submit(ctx, SubmitRequest{Text: fmt.Sprintf("check balance %d", i)})
		if err != nil {
			t.Fatalf("提交任务失败: %v", err)
		}
		ids = append(ids, record.Task.ID)
	}

	deadline := time.After(5 * time.Second)
	for {
		if int(orch.processed.Load()) >= total {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("任务未能及时处理，已完成 %d", orch.processed.Load())
		case <-time.After(20 * time.Millisecond):
		}
	}

	record, err := service.WaitUntilTerminal(ctx, ids[0], 10*time.Millisecond)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if record.Task.State != a2a.StateCompleted {
		t.Fatalf("unexpected state: %s", record.Task.State)
	}
	// working + completed 两条 agent 消息都应回写到历史。
	if len(record.Task.Messages) != 3 {
		t.Fatalf("消息数不符: %d", len(record.Task.Messages))
	}
	cancel()
}

func TestProcessorAlertsOnFailedTurn(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store := NewMemoryStore()
	queue := NewMemoryQueue(16)
	orch := &fakeOrchestrator{failAll: true}
	alerter := &recordingAlerter{}

	service := NewService(store, queue)
	processor := NewProcessor(orch, store, queue, WithAlertDispatcher(alerter))

	go func() {
		_ = processor.Start(ctx)
	}()

	record, err := service.Submit(ctx, SubmitRequest{Text: "sell everything"})
	if err != nil {
		t.Fatalf("提交任务失败: %v", err)
	}
	final, err := service.WaitUntilTerminal(ctx, record.Task.ID, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if final.Task.State != a2a.StateFailed {
		t.Fatalf("unexpected state: %s", final.Task.State)
	}
	if final.LastError != "Error: boom" {
		t.Fatalf("LastError 未记录: %q", final.LastError)
	}

	deadline := time.After(2 * time.Second)
	for alerter.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("失败终态未触发告警")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestProcessorSkipsTerminalRedelivery(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	orch := &fakeOrchestrator{}
	processor := NewProcessor(orch, store, NewMemoryQueue(1))

	record := newRecord("dup", "hello")
	record.Task.State = a2a.StateCompleted
	if err := store.Create(ctx, record); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := processor.handle(ctx, "dup"); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if orch.processed.Load() != 0 {
		t.Fatal("终态任务不应再次进入编排器")
	}
	got, err := store.Get(ctx, "dup")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Claimed {
		t.Fatal("重复投递后占有应被释放")
	}
}

func TestServiceContinueConversation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	queue := NewMemoryQueue(8)
	service := NewService(store, queue)

	record, err := service.Submit(ctx, SubmitRequest{Text: "hi"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := store.ApplyUpdate(ctx, record.Task.ID, a2a.StatusUpdate{State: a2a.StateInputRequired, Message: a2a.NewTextMessage(a2a.RoleAgent, "Please provide the address.")}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	continued, err := service.Submit(ctx, SubmitRequest{TaskID: record.Task.ID, Text: "0x1234567890abcdef1234567890abcdef12345678"})
	if err != nil {
		t.Fatalf("continue: %v", err)
	}
	if continued.Task.State != a2a.StateWorking {
		t.Fatalf("续写后应回到 working, got %s", continued.Task.State)
	}
	if len(continued.Task.Messages) != 3 {
		t.Fatalf("消息数不符: %d", len(continued.Task.Messages))
	}

	if _, err := service.Submit(ctx, SubmitRequest{TaskID: "missing", Text: "hello"}); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := service.Submit(ctx, SubmitRequest{Text: "   "}); err == nil {
		t.Fatal("空消息应被拒绝")
	}
}
