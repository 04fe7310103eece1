package mysql

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// TxOutcome 表示一笔链上交易的最终结局。
type TxOutcome string

const (
	OutcomeSubmitted TxOutcome = "submitted"
	OutcomeSuccess   TxOutcome = "success"
	OutcomeReverted  TxOutcome = "reverted"
	OutcomeTimedOut  TxOutcome = "timed_out"
	OutcomeFailed    TxOutcome = "failed"
)

// TxRecord 表示一次链上提交的落库结构。
type TxRecord struct {
	TaskID    string    `json:"task_id"`
	Action    string    `json:"action"`
	TxHash    string    `json:"tx_hash"`
	Outcome   TxOutcome `json:"outcome"`
	ErrorCode string    `json:"error_code,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt int64     `json:"created_at"`
}

// TxJournal 抽象交易流水的持久化接口。流水只追加，不修改历史。
type TxJournal interface {
	Record(ctx context.Context, record TxRecord) error
	ListLatest(ctx context.Context, limit int) ([]TxRecord, error)
}

// ErrUnsupportedDriver 表示配置了未知的存储驱动。
var ErrUnsupportedDriver = errors.New("暂不支持的存储驱动")

// MemoryTxJournal 使用本地 JSON 文件保存交易流水，方便迭代开发。
type MemoryTxJournal struct {
	mu       sync.RWMutex
	dataFile string
	records  []TxRecord
}

// NewMemoryTxJournal 创建一个文件回放的内存流水仓库。
func NewMemoryTxJournal(dataDir string) (*MemoryTxJournal, error) {
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}
	path := filepath.Join(dataDir, "tx_journal.log")
	journal := &MemoryTxJournal{dataFile: path}
	if err := journal.loadFromDisk(); err != nil {
		return nil, err
	}
	return journal, nil
}

// Record 以追加写的方式记录交易流水。
func (m *MemoryTxJournal) Record(_ context.Context, record TxRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	file, err := os.OpenFile(m.dataFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("打开交易流水失败: %w", err)
	}
	defer file.Close()

	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("序列化交易流水失败: %w", err)
	}
	if _, err := file.Write(append(encoded, '\n')); err != nil {
		return fmt.Errorf("写入交易流水失败: %w", err)
	}

	m.records = append([]TxRecord{record}, m.records...)
	if len(m.records) > 512 {
		m.records = m.records[:512]
	}
	return nil
}

// ListLatest 返回最近的交易流水，按时间倒序排列。
func (m *MemoryTxJournal) ListLatest(_ context.Context, limit int) ([]TxRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.records) {
		limit = len(m.records)
	}
	results := make([]TxRecord, limit)
	copy(results, m.records[:limit])
	return results, nil
}

func (m *MemoryTxJournal) loadFromDisk() error {
	file, err := os.OpenFile(m.dataFile, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("读取交易流水失败: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var restored []TxRecord
	for scanner.Scan() {
		var record TxRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			continue
		}
		restored = append([]TxRecord{record}, restored...)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("解析交易流水失败: %w", err)
	}
	if len(restored) > 512 {
		restored = restored[:512]
	}
	if len(restored) > 0 {
		m.records = restored
	}
	return nil
}

// SQLTxJournal 使用真实的 MySQL 数据库存储交易流水。
type SQLTxJournal struct {
	db *sql.DB
}

// NewSQLTxJournal 创建连接池并执行 schema 迁移。
func NewSQLTxJournal(ctx context.Context, cfg Config) (*SQLTxJournal, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	journal := &SQLTxJournal{db: db}
	if err := journal.runMigrations(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return journal, nil
}

// Record 将交易流水写入 MySQL。
func (s *SQLTxJournal) Record(ctx context.Context, record TxRecord) error {
	const stmt = `INSERT INTO tx_journal
        (task_id, action, tx_hash, outcome, error_code, detail, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`

	if _, err := s.db.ExecContext(ctx, stmt,
		record.TaskID,
		record.Action,
		record.TxHash,
		string(record.Outcome),
		record.ErrorCode,
		record.Detail,
		record.CreatedAt,
	); err != nil {
		return fmt.Errorf("写入交易流水失败: %w", err)
	}
	return nil
}

// ListLatest 查询最近的若干条交易流水。
func (s *SQLTxJournal) ListLatest(ctx context.Context, limit int) ([]TxRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `SELECT task_id, action, tx_hash, outcome, error_code, detail, created_at
        FROM tx_journal ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("查询交易流水失败: %w", err)
	}
	defer rows.Close()

	var records []TxRecord
	for rows.Next() {
		var record TxRecord
		var outcome string
		if err := rows.Scan(&record.TaskID, &record.Action, &record.TxHash, &outcome, &record.ErrorCode, &record.Detail, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("解析交易流水失败: %w", err)
		}
		record.Outcome = TxOutcome(outcome)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历交易流水失败: %w", err)
	}
	return records, nil
}

// Close 关闭底层数据库连接。
func (s *SQLTxJournal) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
