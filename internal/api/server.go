package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/TermiX-official/BscA2A-agent/internal/a2a"
	xerrors "github.com/TermiX-official/BscA2A-agent/internal/errors"
	"github.com/TermiX-official/BscA2A-agent/internal/observability/metrics"
	"github.com/TermiX-official/BscA2A-agent/internal/task"
)

// Server 负责暴露 REST 接口，供外部向会话任务投递消息并查询状态。
type Server struct {
	addr    string
	service *task.Service
	waitMax time.Duration
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, service *task.Service) *Server {
	return &Server{addr: addr, service: service, waitMax: 60 * time.Second}
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/api/v1/tasks", instrument("tasks", http.HandlerFunc(s.handleTasks)))
	mux.Handle("/api/v1/tasks/", instrument("task_detail", http.HandlerFunc(s.handleTaskDetail)))
	mux.Handle("/api/v1/stats", instrument("stats", http.HandlerFunc(s.handleStats)))
	mux.Handle("/metrics", metrics.Handler())

	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleSubmitMessage(w, r)
	case http.MethodGet:
		s.handleListTasks(w, r)
	default:
		http.Error(w, "仅支持 GET/POST", http.StatusMethodNotAllowed)
	}
}

// submitRequest 是消息提交接口的请求体。
type submitRequest struct {
	TaskID  string `json:"task_id,omitempty"`
	Message string `json:"message"`
	Wait    bool   `json:"wait,omitempty"`
}

// handleSubmitMessage 接收一条用户消息：无 task_id 开启新会话，
// 有 task_id 续写既有会话。wait=true 时阻塞到本轮进入终态。
func (s *Server) handleSubmitMessage(w http.ResponseWriter, r *http.Request) {
	if s.service == nil {
		http.Error(w, "任务服务未初始化", http.StatusServiceUnavailable)
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "请求体解析失败", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	record, err := s.service.Submit(ctx, task.SubmitRequest{TaskID: req.TaskID, Text: req.Message})
	if err != nil {
		writeTaskError(w, err)
		return
	}

	if req.Wait {
		waitCtx, cancel := context.WithTimeout(ctx, s.waitMax)
		defer cancel()
		final, waitErr := s.service.WaitUntilTerminal(waitCtx, record.Task.ID, 200*time.Millisecond)
		if waitErr == nil {
			writeJSON(w, http.StatusOK, final)
			return
		}
		// 超时或取消时退回当前快照，客户端可继续轮询。
		if snapshot, getErr := s.service.Get(ctx, record.Task.ID); getErr == nil {
			record = snapshot
		}
	}
	writeJSON(w, http.StatusAccepted, record)
}

// handleTaskDetail 返回单个任务的完整会话状态。
func (s *Server) handleTaskDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	if s.service == nil {
		http.Error(w, "任务服务未初始化", http.StatusServiceUnavailable)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/tasks/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "任务 ID 不合法", http.StatusBadRequest)
		return
	}
	record, err := s.service.Get(r.Context(), id)
	if err != nil {
		writeTaskError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	if s.service == nil {
		http.Error(w, "任务服务未初始化", http.StatusServiceUnavailable)
		return
	}

	opts := make([]task.ListOption, 0, 4)
	query := r.URL.Query()
	if raw := query.Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			opts = append(opts, task.WithLimit(parsed))
		}
	}
	if raw := query.Get("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			opts = append(opts, task.WithOffset(parsed))
		}
	}
	if raw := query.Get("state"); raw != "" {
		states := make([]a2a.TaskState, 0, 2)
		for _, item := range strings.Split(raw, ",") {
			states = append(states, a2a.TaskState(strings.TrimSpace(item)))
		}
		opts = append(opts, task.WithStates(states...))
	}
	if raw := query.Get("q"); raw != "" {
		opts = append(opts, task.WithQuery(raw))
	}

	records, err := s.service.List(r.Context(), opts...)
	if err != nil {
		writeTaskError(w, err)
		return
	}
	if records == nil {
		records = []*task.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

// handleStats 返回存活任务的状态统计。
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	if s.service == nil {
		http.Error(w, "任务服务未初始化", http.StatusServiceUnavailable)
		return
	}
	stats, err := s.service.Stats(r.Context())
	if err != nil {
		writeTaskError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeTaskError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, task.ErrTaskNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, task.ErrTaskBusy):
		http.Error(w, err.Error(), http.StatusConflict)
	case xerrors.HasCode(err, task.CodeTaskValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// instrument 记录每个接口的请求量与时延。
func instrument(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		metrics.ObserveHTTPRequest(name, r.Method, recorder.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
