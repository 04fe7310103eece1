package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/TermiX-official/BscA2A-agent/internal/a2a"
	"github.com/TermiX-official/BscA2A-agent/internal/actions"
	xerrors "github.com/TermiX-official/BscA2A-agent/internal/errors"
	"github.com/TermiX-official/BscA2A-agent/internal/intent"
	"github.com/TermiX-official/BscA2A-agent/internal/llm"
)

// 用户追问下一个地址的句式。
var anotherAddressPattern = regexp.MustCompile(`(?i)another|next|other address`)

// 消息里直接给出的链上地址。
var addressPattern = regexp.MustCompile(`0x[a-fA-F0-9]{40}`)

// 大模型偶尔在回复尾部重复状态标记，展示前剔除。
var completedMarkerPattern = regexp.MustCompile(`(?i)(COMPLETED\s*)+`)

// 回复在向用户索要地址时，任务停在等待输入状态。
var needsAddressPattern = regexp.MustCompile(`(?i)what is the address|please provide`)

// 固定话术，与外部客户端的预期保持一致。
const (
	workingText      = "Working on your DeFi request..."
	emptyGreeting    = "How can I assist you with Binance Smart Chain today?"
	askNextAddress   = "Please provide the next wallet address you'd like me to check."
	invalidAddrReply = "Error: The wallet address provided is invalid. Please check and try again."
)

// Agent 是会话编排器：把任务的消息历史解析为意图，分发给动作处理器，
// 并按固定次序发出状态更新。一次 Run 处理一个回合。
type Agent struct {
	classifier      intent.Classifier
	registry        *actions.Registry
	classifyTimeout time.Duration
}

// Option 定义可选的 Agent 配置。
type Option func(*Agent)

// WithClassifyTimeout 设置意图解析的超时时间。
func WithClassifyTimeout(timeout time.Duration) Option {
	return func(a *Agent) {
		if timeout > 0 {
			a.classifyTimeout = timeout
		}
	}
}

// New 创建会话编排器。
func New(classifier intent.Classifier, registry *actions.Registry, opts ...Option) *Agent {
	ag := &Agent{
		classifier: classifier,
		registry:   registry,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ag)
		}
	}
	return ag
}

// Run 处理任务的当前回合，状态更新按产生顺序写入返回的通道，
// 回合结束后通道关闭。首个更新一定是 working，最后一个一定是
// input-required、completed 或 failed 之一。
func (a *Agent) Run(ctx context.Context, task *a2a.Task) <-chan a2a.StatusUpdate {
	updates := make(chan a2a.StatusUpdate, 4)
	go func() {
		defer close(updates)
		a.run(ctx, task, updates)
	}()
	return updates
}

func (a *Agent) run(ctx context.Context, task *a2a.Task, updates chan<- a2a.StatusUpdate) {
	emit := func(state a2a.TaskState, text string) {
		updates <- a2a.StatusUpdate{
			State:   state,
			Message: a2a.NewTextMessage(a2a.RoleAgent, text),
		}
	}

	emit(a2a.StateWorking, workingText)

	history := conversationTurns(task)
	if len(history) == 0 {
		emit(a2a.StateInputRequired, emptyGreeting)
		return
	}

	lastUser := strings.ToLower(lastUserTurn(history))

	// 追问下一个地址的回合不走解析，直接要输入。
	if anotherAddressPattern.MatchString(lastUser) {
		emit(a2a.StateInputRequired, askNextAddress)
		return
	}

	// 消息里直接带地址时默认按余额查询处理。
	if address := addressPattern.FindString(lastUser); address != "" {
		a.dispatch(ctx, task, "getWalletInfo", map[string]string{"address": address}, emit)
		return
	}

	classifyCtx := ctx
	if a.classifyTimeout > 0 {
		var cancel context.CancelFunc
		classifyCtx, cancel = context.WithTimeout(ctx, a.classifyTimeout)
		defer cancel()
	}

	parsed, err := a.classifier.Classify(classifyCtx, intent.Request{Messages: history})
	if err != nil {
		emit(a2a.StateFailed, failureText(err))
		return
	}

	if parsed.Action != "" {
		a.dispatch(ctx, task, parsed.Action, parsed.Args, emit)
		return
	}

	reply := strings.TrimSpace(completedMarkerPattern.ReplaceAllString(parsed.Reply, ""))
	if reply == "" {
		emit(a2a.StateInputRequired, emptyGreeting)
		return
	}
	if needsAddressPattern.MatchString(reply) {
		emit(a2a.StateInputRequired, reply)
		return
	}
	emit(a2a.StateCompleted, reply)
}

// dispatch 执行动作并把结果折叠为终态。
func (a *Agent) dispatch(ctx context.Context, task *a2a.Task, action string, args map[string]string, emit func(a2a.TaskState, string)) {
	handler, ok := a.registry.Get(action)
	if !ok {
		emit(a2a.StateFailed, fmt.Sprintf("Error: unknown action %q", action))
		return
	}
	if args == nil {
		args = map[string]string{}
	}
	args["taskId"] = task.ID

	result := handler.Execute(ctx, args)
	text := strings.TrimSpace(completedMarkerPattern.ReplaceAllString(result.Text, ""))
	if result.IsError {
		emit(a2a.StateFailed, text)
		return
	}
	if needsAddressPattern.MatchString(text) {
		emit(a2a.StateInputRequired, text)
		return
	}
	emit(a2a.StateCompleted, text)
}

// failureText 把内部错误翻译成用户可读的失败话术。
func failureText(err error) string {
	if xerrors.HasCode(err, xerrors.CodeInvalidAddress) {
		return invalidAddrReply
	}
	if e, ok := xerrors.From(err); ok {
		return fmt.Sprintf("Error: %s", e.Message())
	}
	return fmt.Sprintf("Error: %s", err)
}

// conversationTurns 把任务消息转成分类器的输入，剔除空白消息。
func conversationTurns(task *a2a.Task) []llm.Turn {
	var turns []llm.Turn
	for _, msg := range task.History() {
		text := strings.TrimSpace(msg.Text())
		if text == "" {
			continue
		}
		turns = append(turns, llm.Turn{Role: string(msg.Role), Text: text})
	}
	return turns
}

func lastUserTurn(turns []llm.Turn) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == string(a2a.RoleUser) {
			return turns[i].Text
		}
	}
	return ""
}
