// Package intent 负责把用户的自然语言消息解析为可执行意图：
// 规则分类器覆盖常见句式，大模型分类器处理其余场景。
package intent

import (
	"context"

	"github.com/TermiX-official/BscA2A-agent/internal/llm"
)

// Intent 是一次解析的产出。Action 非空表示命中了某个链上动作，
// Args 是抽取到的参数；Action 为空时 Reply 作为直接回复。
type Intent struct {
	Action string
	Args   map[string]string
	Reply  string
}

// Request 携带分类所需的会话上下文。
type Request struct {
	Goal     string
	Messages []llm.Turn
}

// Classifier 把会话解析为意图。
type Classifier interface {
	Classify(ctx context.Context, req Request) (*Intent, error)
}

// lastUserText 取最近一条用户发言。
func lastUserText(messages []llm.Turn) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Text
		}
	}
	return ""
}
