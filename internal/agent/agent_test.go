package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/TermiX-official/BscA2A-agent/internal/a2a"
	"github.com/TermiX-official/BscA2A-agent/internal/actions"
	xerrors "github.com/TermiX-official/BscA2A-agent/internal/errors"
	"github.com/TermiX-official/BscA2A-agent/internal/intent"
)

const walletAddr = "0x1234567890abcdef1234567890abcdef12345678"

// stubHandler 记录调用并返回预设结果。
type stubHandler struct {
	name   string
	result actions.Result
	called []map[string]string
}

func (s *stubHandler) Name() string                  { return s.name }
func (s *stubHandler) Description() string           { return s.name }
func (s *stubHandler) Parameters() map[string]string { return nil }

func (s *stubHandler) Execute(_ context.Context, args map[string]string) actions.Result {
	s.called = append(s.called, args)
	return s.result
}

type stubClassifier struct {
	intent *intent.Intent
	err    error
}

func (s *stubClassifier) Classify(context.Context, intent.Request) (*intent.Intent, error) {
	return s.intent, s.err
}

func collect(t *testing.T, updates <-chan a2a.StatusUpdate) []a2a.StatusUpdate {
	t.Helper()
	var out []a2a.StatusUpdate
	for update := range updates {
		out = append(out, update)
	}
	if len(out) == 0 {
		t.Fatal("编排器必须至少产出一个状态")
	}
	if out[0].State != a2a.StateWorking {
		t.Fatalf("首个状态必须是 working, got %s", out[0].State)
	}
	last := out[len(out)-1]
	if !last.State.Terminal() {
		t.Fatalf("末状态必须是终态, got %s", last.State)
	}
	return out
}

func newTask(texts ...string) *a2a.Task {
	task := &a2a.Task{ID: "task-1", State: a2a.StateWorking}
	for _, text := range texts {
		task.Messages = append(task.Messages, a2a.NewTextMessage(a2a.RoleUser, text))
	}
	return task
}

func TestRunEmptyHistoryAsksForInput(t *testing.T) {
	ag := New(&stubClassifier{intent: &intent.Intent{}}, actions.NewRegistry())

	updates := collect(t, ag.Run(context.Background(), newTask()))
	last := updates[len(updates)-1]
	if last.State != a2a.StateInputRequired {
		t.Fatalf("空会话应等待输入, got %s", last.State)
	}
	if last.Message.Text() != emptyGreeting {
		t.Fatalf("unexpected greeting: %s", last.Message.Text())
	}
}

func TestRunAnotherAddressShortCircuits(t *testing.T) {
	handler := &stubHandler{name: "getWalletInfo", result: actions.Result{Text: "ok"}}
	registry := actions.NewRegistry()
	registry.Register(handler)
	ag := New(&stubClassifier{intent: &intent.Intent{}}, registry)

	updates := collect(t, ag.Run(context.Background(), newTask("please check another address")))
	last := updates[len(updates)-1]
	if last.State != a2a.StateInputRequired {
		t.Fatalf("追问地址应等待输入, got %s", last.State)
	}
	if last.Message.Text() != askNextAddress {
		t.Fatalf("unexpected prompt: %s", last.Message.Text())
	}
	if len(handler.called) != 0 {
		t.Fatal("追问回合不应执行动作")
	}
}

func TestRunDirectAddressTriggersBalance(t *testing.T) {
	handler := &stubHandler{name: "getWalletInfo", result: actions.Result{Text: "Native Balance (BNB): 1"}}
	registry := actions.NewRegistry()
	registry.Register(handler)
	ag := New(&stubClassifier{intent: &intent.Intent{}}, registry)

	updates := collect(t, ag.Run(context.Background(), newTask(walletAddr)))
	last := updates[len(updates)-1]
	if last.State != a2a.StateCompleted {
		t.Fatalf("直接地址应完成, got %s: %s", last.State, last.Message.Text())
	}
	if len(handler.called) != 1 || handler.called[0]["address"] != walletAddr {
		t.Fatalf("应按余额查询分发: %v", handler.called)
	}
}

func TestRunDispatchesClassifiedAction(t *testing.T) {
	handler := &stubHandler{name: "sellMemeToken", result: actions.Result{Text: "Sell meme token successful. url"}}
	registry := actions.NewRegistry()
	registry.Register(handler)
	ag := New(&stubClassifier{intent: &intent.Intent{
		Action: "sellMemeToken",
		Args:   map[string]string{"token": walletAddr, "tokenValue": "300"},
	}}, registry)

	updates := collect(t, ag.Run(context.Background(), newTask("sell 300 tokens")))
	last := updates[len(updates)-1]
	if last.State != a2a.StateCompleted {
		t.Fatalf("动作成功应完成, got %s", last.State)
	}
	if handler.called[0]["taskId"] != "task-1" {
		t.Fatalf("分发时应携带任务号: %v", handler.called[0])
	}
}

func TestRunActionFailureEndsFailed(t *testing.T) {
	handler := &stubHandler{name: "sellMemeToken", result: actions.Result{
		Text:    "Transaction failed: boom",
		IsError: true,
	}}
	registry := actions.NewRegistry()
	registry.Register(handler)
	ag := New(&stubClassifier{intent: &intent.Intent{Action: "sellMemeToken"}}, registry)

	updates := collect(t, ag.Run(context.Background(), newTask("sell tokens")))
	last := updates[len(updates)-1]
	if last.State != a2a.StateFailed {
		t.Fatalf("动作失败应映射为 failed, got %s", last.State)
	}
}

func TestRunStripsCompletedMarkers(t *testing.T) {
	ag := New(&stubClassifier{intent: &intent.Intent{
		Reply: "Here is your answer. COMPLETED COMPLETED",
	}}, actions.NewRegistry())

	updates := collect(t, ag.Run(context.Background(), newTask("hello")))
	last := updates[len(updates)-1]
	if last.State != a2a.StateCompleted {
		t.Fatalf("unexpected state: %s", last.State)
	}
	if last.Message.Text() != "Here is your answer." {
		t.Fatalf("状态标记未剔除: %q", last.Message.Text())
	}
}

func TestRunNeedsAddressDetection(t *testing.T) {
	ag := New(&stubClassifier{intent: &intent.Intent{
		Reply: "Please provide the wallet address you want to inspect.",
	}}, actions.NewRegistry())

	updates := collect(t, ag.Run(context.Background(), newTask("check my balance please, no address yet")))
	last := updates[len(updates)-1]
	if last.State != a2a.StateInputRequired {
		t.Fatalf("索要地址的回复应等待输入, got %s", last.State)
	}
}

func TestRunClassifierErrorClassification(t *testing.T) {
	ag := New(&stubClassifier{
		err: xerrors.New(xerrors.CodeInvalidAddress, "地址不合法"),
	}, actions.NewRegistry())

	updates := collect(t, ag.Run(context.Background(), newTask("do something")))
	last := updates[len(updates)-1]
	if last.State != a2a.StateFailed {
		t.Fatalf("unexpected state: %s", last.State)
	}
	if last.Message.Text() != invalidAddrReply {
		t.Fatalf("非法地址应使用固定话术: %s", last.Message.Text())
	}
}

func TestRunGenericErrorText(t *testing.T) {
	ag := New(&stubClassifier{err: errors.New("upstream down")}, actions.NewRegistry())

	updates := collect(t, ag.Run(context.Background(), newTask("do something")))
	last := updates[len(updates)-1]
	if last.State != a2a.StateFailed {
		t.Fatalf("unexpected state: %s", last.State)
	}
	if last.Message.Text() != "Error: upstream down" {
		t.Fatalf("unexpected failure text: %s", last.Message.Text())
	}
}

func TestRunUnknownActionFails(t *testing.T) {
	ag := New(&stubClassifier{intent: &intent.Intent{Action: "doesNotExist"}}, actions.NewRegistry())

	updates := collect(t, ag.Run(context.Background(), newTask("mystery request")))
	last := updates[len(updates)-1]
	if last.State != a2a.StateFailed {
		t.Fatalf("未知动作应失败, got %s", last.State)
	}
}
