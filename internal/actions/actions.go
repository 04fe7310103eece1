// Package actions 实现代理可调度的链上动作：余额查询、转账、PancakeSwap
// 交易与流动性管理、four.meme 发行与买卖、GoPlus 安全检测。
// 每个动作把执行结果归一为 Result，绝不向上抛 panic。
package actions

import (
	"context"
	"fmt"
	"sort"
	"strings"

	xerrors "github.com/TermiX-official/BscA2A-agent/internal/errors"
)

// Result 是动作执行的统一产出。URL 指向区块浏览器的交易页，
// 没有哈希的失败结局 URL 为空。
type Result struct {
	Text    string
	URL     string
	IsError bool
}

// Handler 是单个链上动作。Execute 的参数一律是字符串键值，
// 由意图解析或大模型抽取得到。
type Handler interface {
	Name() string
	Description() string
	Parameters() map[string]string
	Execute(ctx context.Context, args map[string]string) Result
}

// Registry 维护动作注册表，按名字分发。
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry 创建空的注册表。
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register 登记一个动作，重名直接覆盖。
func (r *Registry) Register(h Handler) {
	r.handlers[h.Name()] = h
}

// Get 按名字取动作。
func (r *Registry) Get(name string) (Handler, bool) {
	h, ok := r.handlers[strings.TrimSpace(name)]
	return h, ok
}

// Names 返回已注册的动作名，按字典序。
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Handlers 返回全部动作，顺序与 Names 一致。
func (r *Registry) Handlers() []Handler {
	handlers := make([]Handler, 0, len(r.handlers))
	for _, name := range r.Names() {
		handlers = append(handlers, r.handlers[name])
	}
	return handlers
}

// failure 把错误折叠成用户可见的失败结果。txURL 有值时附在结果上，
// 让用户能追踪已上链但失败的交易。
func failure(err error, txURL string) Result {
	return Result{
		Text:    fmt.Sprintf("Transaction failed: %s", userMessage(err)),
		URL:     txURL,
		IsError: true,
	}
}

func userMessage(err error) string {
	if e, ok := xerrors.From(err); ok {
		return e.Message()
	}
	return err.Error()
}

// requireArg 取必填参数，缺失时返回统一错误。
func requireArg(args map[string]string, key string) (string, error) {
	value := strings.TrimSpace(args[key])
	if value == "" {
		return "", xerrors.New(xerrors.CodeInvalidInput, fmt.Sprintf("缺少参数 %s", key))
	}
	return value, nil
}
