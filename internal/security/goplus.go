// Package security 对接 GoPlus 的代币风险检测接口。
// 业务失败（接口明确说检测不通过）与传输失败是两类错误，调用方需要区分。
package security

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.gopluslabs.io"
	defaultTimeout = 30 * time.Second

	// BSC 主网在 GoPlus 的链标识。
	chainIDBSC = "56"

	codeSuccess = 1
)

// Config 描述 GoPlus 客户端的连接参数。
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client 调用 GoPlus 的开放接口。
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient 创建 GoPlus 客户端。
func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// CheckFailedError 表示 GoPlus 明确返回了业务失败。
type CheckFailedError struct {
	APICode int
	Message string
}

func (e *CheckFailedError) Error() string {
	return fmt.Sprintf("GoPlus 检测失败(code=%d): %s", e.APICode, e.Message)
}

// TokenSecurity 查询代币在 BSC 上的安全画像，返回该地址的原始检测结果。
// 地址在响应里以小写形式出现。
func (c *Client) TokenSecurity(ctx context.Context, tokenAddress string) (json.RawMessage, error) {
	endpoint := fmt.Sprintf("%s/api/v1/token_security/%s?contract_addresses=%s",
		c.baseURL, chainIDBSC, strings.ToLower(tokenAddress))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("构建检测请求失败: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求 GoPlus 失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("GoPlus 返回错误状态 %d", resp.StatusCode)
	}

	var decoded struct {
		Code    int                        `json:"code"`
		Message string                     `json:"message"`
		Result  map[string]json.RawMessage `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("解析 GoPlus 响应失败: %w", err)
	}
	if decoded.Code != codeSuccess {
		return nil, &CheckFailedError{APICode: decoded.Code, Message: decoded.Message}
	}

	result, ok := decoded.Result[strings.ToLower(tokenAddress)]
	if !ok {
		// 接口成功但没有该地址的画像，按空结果返回。
		return json.RawMessage("{}"), nil
	}
	return result, nil
}
