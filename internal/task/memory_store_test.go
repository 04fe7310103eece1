package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/TermiX-official/BscA2A-agent/internal/a2a"
)

func newRecord(id, text string) *Record {
	return &Record{
		Task: a2a.Task{
			ID:       id,
			State:    a2a.StateWorking,
			Messages: []a2a.Message{a2a.NewTextMessage(a2a.RoleUser, text)},
		},
	}
}

func TestMemoryStoreLifecycle(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Create(ctx, newRecord("t1", "check my balance")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, newRecord("t1", "again")); !errors.Is(err, ErrTaskExists) {
		t.Fatalf("重复创建应返回 ErrTaskExists, got %v", err)
	}

	claimed, err := store.Claim(ctx, "t1")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !claimed.Claimed {
		t.Fatal("claim 后记录应标记为占有")
	}
	if _, err := store.Claim(ctx, "t1"); !errors.Is(err, ErrTaskBusy) {
		t.Fatalf("重复 claim 应返回 ErrTaskBusy, got %v", err)
	}
	if _, err := store.AppendUserMessage(ctx, "t1", "more"); !errors.Is(err, ErrTaskBusy) {
		t.Fatalf("处理中追加消息应返回 ErrTaskBusy, got %v", err)
	}

	working := a2a.StatusUpdate{State: a2a.StateWorking, Message: a2a.NewTextMessage(a2a.RoleAgent, "Working on your DeFi request...")}
	if err := store.ApplyUpdate(ctx, "t1", working); err != nil {
		t.Fatalf("apply working: %v", err)
	}
	got, err := store.Get(ctx, "t1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Claimed {
		t.Fatal("非终态更新不应释放占有")
	}

	done := a2a.StatusUpdate{State: a2a.StateCompleted, Message: a2a.NewTextMessage(a2a.RoleAgent, "Native Balance (BNB): 1")}
	if err := store.ApplyUpdate(ctx, "t1", done); err != nil {
		t.Fatalf("apply completed: %v", err)
	}
	got, err = store.Get(ctx, "t1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Claimed {
		t.Fatal("终态更新应释放占有")
	}
	if !got.Terminal() {
		t.Fatal("终态记录 Terminal() 应为 true")
	}
	if len(got.Task.Messages) != 3 {
		t.Fatalf("消息数不符: %d", len(got.Task.Messages))
	}

	appended, err := store.AppendUserMessage(ctx, "t1", "what about 0x1?")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if appended.Task.State != a2a.StateWorking {
		t.Fatalf("续写后应回到 working, got %s", appended.Task.State)
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMemoryStoreFailureBookkeeping(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Create(ctx, newRecord("t1", "sell tokens")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.Claim(ctx, "t1"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	failed := a2a.StatusUpdate{State: a2a.StateFailed, Message: a2a.NewTextMessage(a2a.RoleAgent, "Transaction failed: boom")}
	if err := store.ApplyUpdate(ctx, "t1", failed); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	got, err := store.Get(ctx, "t1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.LastError != "Transaction failed: boom" {
		t.Fatalf("LastError 未记录: %q", got.LastError)
	}

	if err := store.MarkInternalFailure(ctx, "t1", "queue write lost"); err != nil {
		t.Fatalf("mark internal failure: %v", err)
	}
	got, _ = store.Get(ctx, "t1")
	if got.Task.State != a2a.StateFailed || got.LastError != "queue write lost" {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestMemoryStoreListWithFilters(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	base := time.Now().Add(-2 * time.Minute)

	for _, id := range []string{"t1", "t2", "t3"} {
		if err := store.Create(ctx, newRecord(id, "goal for "+id)); err != nil {
			t.Fatalf("create task %s: %v", id, err)
		}
	}
	if err := store.ApplyUpdate(ctx, "t2", a2a.StatusUpdate{State: a2a.StateFailed, Message: a2a.NewTextMessage(a2a.RoleAgent, "Error: boom")}); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := store.ApplyUpdate(ctx, "t3", a2a.StatusUpdate{State: a2a.StateCompleted, Message: a2a.NewTextMessage(a2a.RoleAgent, "ok")}); err != nil {
		t.Fatalf("mark completed: %v", err)
	}

	store.mu.Lock()
	store.records["t1"].UpdatedAt = base.Unix()
	store.records["t2"].UpdatedAt = base.Add(30 * time.Second).Unix()
	store.records["t3"].UpdatedAt = base.Add(60 * time.Second).Unix()
	store.mu.Unlock()

	all, err := store.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(all))
	}
	if all[0].Task.ID != "t3" {
		t.Fatalf("expected newest task first, got %s", all[0].Task.ID)
	}

	failed, err := store.List(ctx, buildListOptions([]ListOption{WithStates(a2a.StateFailed)}))
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(failed) != 1 || failed[0].Task.ID != "t2" {
		t.Fatalf("unexpected failed list: %+v", failed)
	}

	since := base.Add(15 * time.Second)
	recent, err := store.List(ctx, buildListOptions([]ListOption{WithUpdatedSince(since)}))
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 tasks to match since filter, got %d", len(recent))
	}

	matched, err := store.List(ctx, buildListOptions([]ListOption{WithQuery("goal for t1")}))
	if err != nil {
		t.Fatalf("list by query: %v", err)
	}
	if len(matched) != 1 || matched[0].Task.ID != "t1" {
		t.Fatalf("unexpected query result: %+v", matched)
	}

	paged, err := store.List(ctx, buildListOptions([]ListOption{WithOffset(1), WithLimit(1)}))
	if err != nil {
		t.Fatalf("list paged: %v", err)
	}
	if len(paged) != 1 || paged[0].Task.ID != "t2" {
		t.Fatalf("unexpected page: %+v", paged)
	}
}

func TestMemoryStoreStats(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	base := time.Now().Add(-3 * time.Minute)
	for _, id := range []string{"a", "b", "c"} {
		if err := store.Create(ctx, newRecord(id, "goal "+id)); err != nil {
			t.Fatalf("create task %s: %v", id, err)
		}
	}
	if err := store.ApplyUpdate(ctx, "b", a2a.StatusUpdate{State: a2a.StateFailed, Message: a2a.NewTextMessage(a2a.RoleAgent, "Error: boom")}); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := store.ApplyUpdate(ctx, "c", a2a.StatusUpdate{State: a2a.StateInputRequired, Message: a2a.NewTextMessage(a2a.RoleAgent, "Please provide the address.")}); err != nil {
		t.Fatalf("mark input-required: %v", err)
	}

	store.mu.Lock()
	store.records["a"].UpdatedAt = base.Unix()
	store.records["b"].UpdatedAt = base.Add(30 * time.Second).Unix()
	store.records["c"].UpdatedAt = base.Add(2 * time.Minute).Unix()
	store.mu.Unlock()

	stats, err := store.Stats(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 3 || stats.Working != 1 || stats.Failed != 1 || stats.InputRequired != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.NewestUpdatedAt != base.Add(2*time.Minute).Unix() {
		t.Fatalf("unexpected newest timestamp: %d", stats.NewestUpdatedAt)
	}
	if stats.OldestUpdatedAt != base.Unix() {
		t.Fatalf("unexpected oldest timestamp: %d", stats.OldestUpdatedAt)
	}

	failedOnly, err := store.Stats(ctx, buildListOptions([]ListOption{WithStates(a2a.StateFailed)}))
	if err != nil {
		t.Fatalf("stats failed only: %v", err)
	}
	if failedOnly.Total != 1 || failedOnly.Failed != 1 {
		t.Fatalf("unexpected failed stats: %+v", failedOnly)
	}
}
