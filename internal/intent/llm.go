package intent

import (
	"context"
	"fmt"

	"github.com/TermiX-official/BscA2A-agent/internal/knowledge"
	"github.com/TermiX-official/BscA2A-agent/internal/llm"
)

// LLMClassifier 把完整会话交给大模型做工具选择与参数抽取。
// 规则分类器解析不出来的消息都走这里。
type LLMClassifier struct {
	client    llm.Client
	tools     []llm.ToolSpec
	knowledge knowledge.Provider
}

// NewLLMClassifier 创建大模型分类器。knowledge 允许为 nil。
func NewLLMClassifier(client llm.Client, tools []llm.ToolSpec, provider knowledge.Provider) (*LLMClassifier, error) {
	if client == nil {
		return nil, fmt.Errorf("未提供大模型客户端")
	}
	return &LLMClassifier{client: client, tools: tools, knowledge: provider}, nil
}

// Classify 调用大模型解析意图。
func (c *LLMClassifier) Classify(ctx context.Context, req Request) (*Intent, error) {
	llmReq := llm.Request{
		Goal:     req.Goal,
		Messages: req.Messages,
		Tools:    c.tools,
	}
	if c.knowledge != nil {
		for _, snippet := range c.knowledge.Query(lastUserText(req.Messages), "") {
			llmReq.Knowledge = append(llmReq.Knowledge, llm.KnowledgeCard{
				Title:   snippet.Title,
				Content: snippet.Content,
			})
		}
	}

	resp, err := c.client.Generate(ctx, llmReq)
	if err != nil {
		return nil, fmt.Errorf("大模型意图解析失败: %w", err)
	}

	args := resp.Arguments
	if args == nil {
		args = map[string]string{}
	}
	return &Intent{
		Action: resp.Tool,
		Args:   args,
		Reply:  resp.Reply,
	}, nil
}

// Chain 依次尝试多个分类器，取第一个给出动作或回复的结果。
type Chain struct {
	classifiers []Classifier
}

// NewChain 创建级联分类器。
func NewChain(classifiers ...Classifier) *Chain {
	return &Chain{classifiers: classifiers}
}

// Classify 逐个分类器尝试。全部落空时返回空意图。
func (c *Chain) Classify(ctx context.Context, req Request) (*Intent, error) {
	var lastErr error
	for _, classifier := range c.classifiers {
		parsed, err := classifier.Classify(ctx, req)
		if err != nil {
			lastErr = err
			continue
		}
		if parsed != nil && (parsed.Action != "" || parsed.Reply != "") {
			return parsed, nil
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return &Intent{}, nil
}
