package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/TermiX-official/BscA2A-agent/internal/a2a"
	"github.com/TermiX-official/BscA2A-agent/internal/task"
)

func newTestServer(t *testing.T) (*Server, *task.MemoryStore) {
	t.Helper()
	store := task.NewMemoryStore()
	svc := task.NewService(store, task.NewMemoryQueue(16))
	return NewServer(":0", svc), store
}

func TestHandleSubmitMessageCreatesTask(t *testing.T) {
	server, _ := newTestServer(t)

	body := strings.NewReader(`{"message":"check my balance"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", body)
	rec := httptest.NewRecorder()

	server.handleTasks(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("unexpected status code: got %d want %d", rec.Code, http.StatusAccepted)
	}
	var got task.Record
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Task.ID == "" {
		t.Fatal("新任务应分配 ID")
	}
	if got.Task.State != a2a.StateWorking {
		t.Fatalf("unexpected state: %s", got.Task.State)
	}
	if len(got.Task.Messages) != 1 || got.Task.Messages[0].Text() != "check my balance" {
		t.Fatalf("unexpected messages: %+v", got.Task.Messages)
	}
}

func TestHandleSubmitMessageContinuesTask(t *testing.T) {
	server, store := newTestServer(t)

	seed := &task.Record{
		Task: a2a.Task{
			ID:    "task-1",
			State: a2a.StateInputRequired,
			Messages: []a2a.Message{
				a2a.NewTextMessage(a2a.RoleUser, "hi"),
				a2a.NewTextMessage(a2a.RoleAgent, "Please provide the next wallet address you'd like me to check."),
			},
		},
	}
	if err := store.Create(context.Background(), seed); err != nil {
		t.Fatalf("create seed task: %v", err)
	}

	body := strings.NewReader(`{"task_id":"task-1","message":"0x1234567890abcdef1234567890abcdef12345678"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", body)
	rec := httptest.NewRecorder()

	server.handleTasks(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("unexpected status code: %d (%s)", rec.Code, rec.Body.String())
	}
	var got task.Record
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Task.State != a2a.StateWorking {
		t.Fatalf("续写后应回到 working, got %s", got.Task.State)
	}
	if len(got.Task.Messages) != 3 {
		t.Fatalf("unexpected message count: %d", len(got.Task.Messages))
	}
}

func TestHandleSubmitMessageValidation(t *testing.T) {
	server, _ := newTestServer(t)

	t.Run("empty message", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", strings.NewReader(`{"message":"  "}`))
		rec := httptest.NewRecorder()
		server.handleTasks(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
		}
	})

	t.Run("bad json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", strings.NewReader(`{`))
		rec := httptest.NewRecorder()
		server.handleTasks(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
		}
	})

	t.Run("unknown task", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", strings.NewReader(`{"task_id":"missing","message":"hi"}`))
		rec := httptest.NewRecorder()
		server.handleTasks(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	})
}

func TestHandleTaskDetailSuccess(t *testing.T) {
	server, store := newTestServer(t)

	sample := &task.Record{
		Task: a2a.Task{
			ID:    "task-success",
			State: a2a.StateCompleted,
			Messages: []a2a.Message{
				a2a.NewTextMessage(a2a.RoleUser, "check balance"),
				a2a.NewTextMessage(a2a.RoleAgent, "Native Balance (BNB): 1"),
			},
		},
	}
	if err := store.Create(context.Background(), sample); err != nil {
		t.Fatalf("create sample task: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/task-success", nil)
	rec := httptest.NewRecorder()

	server.handleTaskDetail(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status code: got %d want %d", rec.Code, http.StatusOK)
	}

	var got task.Record
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Task.ID != sample.Task.ID {
		t.Fatalf("unexpected task id: got %q want %q", got.Task.ID, sample.Task.ID)
	}
	if got.Task.State != a2a.StateCompleted {
		t.Fatalf("unexpected state: %s", got.Task.State)
	}
}

func TestHandleTaskDetailErrors(t *testing.T) {
	server, _ := newTestServer(t)

	t.Run("invalid method", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks/task-1", nil)
		rec := httptest.NewRecorder()

		server.handleTaskDetail(rec, req)

		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
		}
	})

	t.Run("missing id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/", nil)
		rec := httptest.NewRecorder()

		server.handleTaskDetail(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
		}
	})

	t.Run("not found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/missing", nil)
		rec := httptest.NewRecorder()

		server.handleTaskDetail(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	})
}

func TestHandleListTasksFilters(t *testing.T) {
	server, store := newTestServer(t)
	ctx := context.Background()

	for _, id := range []string{"t1", "t2"} {
		record := &task.Record{Task: a2a.Task{
			ID:       id,
			State:    a2a.StateWorking,
			Messages: []a2a.Message{a2a.NewTextMessage(a2a.RoleUser, "goal "+id)},
		}}
		if err := store.Create(ctx, record); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	if err := store.ApplyUpdate(ctx, "t2", a2a.StatusUpdate{State: a2a.StateFailed, Message: a2a.NewTextMessage(a2a.RoleAgent, "Error: boom")}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks?state=failed", nil)
	rec := httptest.NewRecorder()
	server.handleTasks(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status code: %d", rec.Code)
	}
	var got []*task.Record
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) != 1 || got[0].Task.ID != "t2" {
		t.Fatalf("unexpected list: %+v", got)
	}
}

func TestHandleStats(t *testing.T) {
	server, store := newTestServer(t)
	ctx := context.Background()

	record := &task.Record{Task: a2a.Task{
		ID:       "t1",
		State:    a2a.StateWorking,
		Messages: []a2a.Message{a2a.NewTextMessage(a2a.RoleUser, "hello")},
	}}
	if err := store.Create(ctx, record); err != nil {
		t.Fatalf("create: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	rec := httptest.NewRecorder()
	server.handleStats(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status code: %d", rec.Code)
	}
	var stats task.TaskStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if stats.Total != 1 || stats.Working != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
