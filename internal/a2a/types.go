// Package a2a 定义了对话式任务协议的基础类型：任务、消息、状态与增量更新。
// 该协议只描述一轮对话的生命周期，不承诺任何跨轮次的持久化语义。
package a2a

// TaskState 枚举了任务在一轮对话中可能处于的状态。
type TaskState string

const (
	// StateWorking 表示任务已受理并正在执行，永远是每一轮的首个状态。
	StateWorking TaskState = "working"
	// StateInputRequired 表示需要用户补充信息后才能继续。
	StateInputRequired TaskState = "input-required"
	// StateCompleted 表示本轮请求已成功完成。
	StateCompleted TaskState = "completed"
	// StateFailed 表示本轮请求以失败告终。
	StateFailed TaskState = "failed"
)

// Terminal 判断状态是否会结束当前轮次。
func (s TaskState) Terminal() bool {
	switch s {
	case StateInputRequired, StateCompleted, StateFailed:
		return true
	default:
		return false
	}
}

// IsValidState 检查给定的任务状态是否为支持的枚举值。
func IsValidState(s TaskState) bool {
	switch s {
	case StateWorking, StateInputRequired, StateCompleted, StateFailed:
		return true
	default:
		return false
	}
}

// Role 标识消息的发送方。
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Part 是消息的组成单元，目前仅支持文本。
type Part struct {
	Text string `json:"text"`
}

// Message 表示对话中的一条消息，追加后不可变。
type Message struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// NewTextMessage 构造一条只含单个文本片段的消息。
func NewTextMessage(role Role, text string) Message {
	return Message{Role: role, Parts: []Part{{Text: text}}}
}

// Text 拼接消息中所有非空文本片段。
func (m Message) Text() string {
	out := ""
	for _, part := range m.Parts {
		if part.Text == "" {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += part.Text
	}
	return out
}

// Task 表示一个会话任务：标识、当前状态以及到目前为止的完整消息历史。
type Task struct {
	ID       string    `json:"id"`
	State    TaskState `json:"state"`
	Messages []Message `json:"messages"`
}

// History 返回历史消息的浅拷贝，调用方不得修改其中的消息。
func (t *Task) History() []Message {
	if t == nil || len(t.Messages) == 0 {
		return nil
	}
	out := make([]Message, len(t.Messages))
	copy(out, t.Messages)
	return out
}

// StatusUpdate 是编排器产出的一次状态增量。
type StatusUpdate struct {
	State   TaskState `json:"state"`
	Message Message   `json:"message"`
}
