package llm

import "context"

// Turn 是会话中的一轮发言。Role 取 user / agent。
type Turn struct {
	Role string
	Text string
}

// ToolSpec 把一个可调用的链上动作描述给大模型。
type ToolSpec struct {
	Name        string
	Description string
	// Parameters 列出参数名与说明，全部按字符串传递。
	Parameters map[string]string
}

// Request 描述发送给大模型的会话上下文与可用工具。
type Request struct {
	Goal      string
	Messages  []Turn
	Tools     []ToolSpec
	Knowledge []KnowledgeCard
}

// Response 是大模型推理得到的结构化输出。
// Tool 非空表示模型选择了一个动作，Arguments 是它抽取的参数；
// Tool 为空表示模型直接用 Reply 回答。
type Response struct {
	Thought   string
	Reply     string
	Tool      string
	Arguments map[string]string
}

// KnowledgeCard 表示提供给大模型的知识切片，帮助生成更加准确的回复。
type KnowledgeCard struct {
	Title   string
	Content string
}

// Client 定义了调用大模型的统一接口。
type Client interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}
