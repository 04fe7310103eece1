package task

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/TermiX-official/BscA2A-agent/internal/a2a"
	xerrors "github.com/TermiX-official/BscA2A-agent/internal/errors"
)

// MemoryStore 以内存方式保存存活的会话任务。对话历史只活在进程内，
// 这是刻意的：任务存储不替代审计日志。
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
	nowFn   func() time.Time
}

// NewMemoryStore 创建 MemoryStore。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*Record),
		nowFn:   time.Now,
	}
}

// Create 实现 Store 接口。
func (m *MemoryStore) Create(_ context.Context, record *Record) error {
	if record == nil {
		return xerrors.New(xerrors.CodeInvalidInput, "record 不能为空")
	}
	if record.Task.ID == "" {
		return xerrors.New(xerrors.CodeInvalidInput, "任务 ID 不能为空")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[record.Task.ID]; ok {
		return ErrTaskExists
	}
	now := m.nowFn().Unix()
	if record.CreatedAt == 0 {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	m.records[record.Task.ID] = cloneRecord(record)
	return nil
}

// Get 返回任务快照。
func (m *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.records[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return cloneRecord(record), nil
}

// AppendUserMessage 追加一条用户消息并把任务置回 working。
func (m *MemoryStore) AppendUserMessage(_ context.Context, id, text string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	if record.Claimed {
		return cloneRecord(record), ErrTaskBusy
	}
	record.Task.Messages = append(record.Task.Messages, a2a.NewTextMessage(a2a.RoleUser, text))
	record.Task.State = a2a.StateWorking
	record.LastError = ""
	record.UpdatedAt = m.nowFn().Unix()
	return cloneRecord(record), nil
}

// Claim 为本轮执行占有任务。
func (m *MemoryStore) Claim(_ context.Context, id string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	if record.Claimed {
		return cloneRecord(record), ErrTaskBusy
	}
	record.Claimed = true
	record.UpdatedAt = m.nowFn().Unix()
	return cloneRecord(record), nil
}

// ApplyUpdate 回写编排器产出的状态增量，终态会释放占有。
func (m *MemoryStore) ApplyUpdate(_ context.Context, id string, update a2a.StatusUpdate) error {
	if !a2a.IsValidState(update.State) {
		return xerrors.New(xerrors.CodeInvalidInput, "不支持的任务状态")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[id]
	if !ok {
		return ErrTaskNotFound
	}
	record.Task.State = update.State
	if update.Message.Text() != "" {
		record.Task.Messages = append(record.Task.Messages, update.Message)
	}
	if update.State.Terminal() {
		record.Claimed = false
	}
	if update.State == a2a.StateFailed {
		record.LastError = update.Message.Text()
	}
	record.UpdatedAt = m.nowFn().Unix()
	return nil
}

// MarkInternalFailure 在编排器之外的环节出错时把任务置为 failed。
func (m *MemoryStore) MarkInternalFailure(_ context.Context, id, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[id]
	if !ok {
		return ErrTaskNotFound
	}
	record.Task.State = a2a.StateFailed
	record.Claimed = false
	record.LastError = reason
	record.UpdatedAt = m.nowFn().Unix()
	return nil
}

// List 返回符合过滤条件的任务快照。
func (m *MemoryStore) List(_ context.Context, opts ListOptions) ([]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	opts.applyDefaults()

	results := make([]*Record, 0, len(m.records))
	for _, record := range m.records {
		if !matchesListFilters(record, opts) {
			continue
		}
		results = append(results, cloneRecord(record))
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if opts.Order == SortByUpdatedAsc {
			a, b = b, a
		}
		if a.UpdatedAt != b.UpdatedAt {
			return a.UpdatedAt > b.UpdatedAt
		}
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt > b.CreatedAt
		}
		return a.Task.ID > b.Task.ID
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(results) {
			return nil, nil
		}
		results = results[opts.Offset:]
	}
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// Stats 统计符合过滤条件的任务数量与更新时间范围。
func (m *MemoryStore) Stats(_ context.Context, opts ListOptions) (TaskStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	opts.applyDefaults()

	stats := TaskStats{}
	for _, record := range m.records {
		if !matchesListFilters(record, opts) {
			continue
		}
		stats.Total++
		switch record.Task.State {
		case a2a.StateWorking:
			stats.Working++
		case a2a.StateInputRequired:
			stats.InputRequired++
		case a2a.StateCompleted:
			stats.Completed++
		case a2a.StateFailed:
			stats.Failed++
		}
		if record.UpdatedAt > stats.NewestUpdatedAt {
			stats.NewestUpdatedAt = record.UpdatedAt
		}
		if stats.OldestUpdatedAt == 0 || (record.UpdatedAt != 0 && record.UpdatedAt < stats.OldestUpdatedAt) {
			stats.OldestUpdatedAt = record.UpdatedAt
		}
	}
	return stats, nil
}

// Close 对内存存储无需操作。
func (m *MemoryStore) Close() error {
	return nil
}

func matchesListFilters(record *Record, opts ListOptions) bool {
	if len(opts.States) > 0 {
		matched := false
		for _, state := range opts.States {
			if record.Task.State == state {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if opts.UpdatedGTE > 0 && record.UpdatedAt < opts.UpdatedGTE {
		return false
	}
	if opts.UpdatedLTE > 0 && record.UpdatedAt > opts.UpdatedLTE {
		return false
	}
	if opts.Query != "" && !matchesQuery(record, opts.Query) {
		return false
	}
	return true
}

func matchesQuery(record *Record, query string) bool {
	needle := strings.ToLower(query)
	if strings.Contains(strings.ToLower(record.Task.ID), needle) {
		return true
	}
	for _, msg := range record.Task.Messages {
		if strings.Contains(strings.ToLower(msg.Text()), needle) {
			return true
		}
	}
	return false
}

var _ Store = (*MemoryStore)(nil)
