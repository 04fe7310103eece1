package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/TermiX-official/BscA2A-agent/internal/llm"
)

const (
	defaultBaseURL   = "https://api.openai.com/v1"
	defaultModelName = "gpt-4o-mini"
	defaultTimeout   = 60 * time.Second
)

// Config 描述了调用 OpenAI Chat Completions API 所需的信息。
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client 通过 HTTP 调用 OpenAI 提供的大模型能力。
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewClient 根据配置创建 OpenAI 客户端。
func NewClient(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("未提供 OpenAI API Key")
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModelName
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Generate 调用 OpenAI，让模型在可用工具中选择动作或直接回复。
func (c *Client) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	payload, err := c.buildPayload(req)
	if err != nil {
		return nil, err
	}

	endpoint := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("构建 OpenAI 请求失败: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("请求 OpenAI 失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("OpenAI 返回错误状态 %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("解析 OpenAI 响应失败: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return nil, errors.New("OpenAI 响应中没有有效的 choices")
	}

	content := strings.TrimSpace(decoded.Choices[0].Message.Content)
	if content == "" {
		return nil, errors.New("OpenAI 响应内容为空")
	}

	var structured struct {
		Thought   string            `json:"thought"`
		Reply     string            `json:"reply"`
		Tool      string            `json:"tool"`
		Arguments map[string]string `json:"arguments"`
	}
	if err := json.Unmarshal([]byte(content), &structured); err != nil {
		// 模型偶尔直接回纯文本，降级为直接回复。
		structured.Reply = content
	}
	if structured.Tool == "" && strings.TrimSpace(structured.Reply) == "" {
		structured.Reply = content
	}

	return &llm.Response{
		Thought:   structured.Thought,
		Reply:     structured.Reply,
		Tool:      structured.Tool,
		Arguments: structured.Arguments,
	}, nil
}

func (c *Client) buildPayload(req llm.Request) ([]byte, error) {
	type message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}

	messages := []message{
		{
			Role:    "system",
			Content: buildSystemPrompt(req.Tools),
		},
	}
	for _, turn := range req.Messages {
		role := "user"
		if turn.Role == "agent" {
			role = "assistant"
		}
		messages = append(messages, message{Role: role, Content: turn.Text})
	}
	if extra := buildContextPrompt(req); extra != "" {
		messages = append(messages, message{Role: "system", Content: extra})
	}

	body := map[string]any{
		"model":       c.model,
		"messages":    messages,
		"temperature": 0.2,
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("序列化 OpenAI 请求失败: %w", err)
	}
	return encoded, nil
}

func buildSystemPrompt(tools []llm.ToolSpec) string {
	var builder strings.Builder
	builder.WriteString("You are a DeFi assistant for Binance Smart Chain. ")
	builder.WriteString("Always respond with a compact JSON object: ")
	builder.WriteString(`{"thought": string, "reply": string, "tool": string, "arguments": object}. `)
	builder.WriteString("Pick exactly one tool when the user asks for an on-chain action, ")
	builder.WriteString("otherwise leave tool empty and answer in reply.\n\n")
	builder.WriteString("Available tools:\n")
	for _, tool := range tools {
		builder.WriteString(fmt.Sprintf("- %s: %s\n", tool.Name, tool.Description))
		for name, desc := range tool.Parameters {
			builder.WriteString(fmt.Sprintf("    %s: %s\n", name, desc))
		}
	}
	return builder.String()
}

func buildContextPrompt(req llm.Request) string {
	var builder strings.Builder
	if goal := strings.TrimSpace(req.Goal); goal != "" {
		builder.WriteString("## 会话目标\n")
		builder.WriteString(goal)
		builder.WriteString("\n")
	}
	if len(req.Knowledge) > 0 {
		builder.WriteString("\n## 知识库\n")
		for idx, card := range req.Knowledge {
			builder.WriteString(fmt.Sprintf("[%d] %s: %s\n",
				idx+1,
				strings.TrimSpace(card.Title),
				truncate(card.Content),
			))
			if idx >= 4 {
				break
			}
		}
	}
	return strings.TrimSpace(builder.String())
}

func truncate(text string) string {
	text = strings.TrimSpace(text)
	if len([]rune(text)) > 80 {
		return string([]rune(text)[:80]) + "..."
	}
	return text
}
