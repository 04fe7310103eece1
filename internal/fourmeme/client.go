// Package fourmeme 封装 four.meme 平台的私有接口：钱包签名登录、
// 发币参数获取与代币详情查询。登录令牌带两级缓存，避免每次请求都重新签名。
package fourmeme

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	defaultBaseURL = "https://four.meme"
	defaultTimeout = 30 * time.Second

	// 令牌视为新鲜的窗口，窗口内直接复用。
	tokenFreshWindow = 10 * time.Minute
	// 新鲜窗口之外、该窗口之内先探活再复用，超过则重新登录。
	tokenRevalidateWindow = 15 * time.Minute

	accessHeader = "meme-web-access"
)

// Signer 是登录签名所需的最小能力，由链客户端提供。
type Signer interface {
	Account() common.Address
	SignText(message []byte) (string, error)
}

// Config 描述 four.meme 客户端的连接参数。
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client 持有 HTTP 连接与登录令牌缓存。同一进程内并发安全。
type Client struct {
	baseURL    string
	httpClient *http.Client
	signer     Signer

	mu      sync.Mutex
	token   string
	tokenAt time.Time
	nowFn   func() time.Time
}

// NewClient 创建 four.meme 客户端。
func NewClient(cfg Config, signer Signer) (*Client, error) {
	if signer == nil {
		return nil, errors.New("未提供签名器")
	}
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
		signer:     signer,
		nowFn:      time.Now,
	}, nil
}

// envelope 是 four.meme 接口的统一响应外壳。
type envelope struct {
	Code json.RawMessage `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// Login 返回一个可用的访问令牌。
// 距上次登录不足十分钟直接复用；不足十五分钟先探活用户信息接口，
// 探活成功则续期；否则走完整的 nonce 签名登录。
func (c *Client) Login(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	age := c.nowFn().Sub(c.tokenAt)
	if c.token != "" && age < tokenFreshWindow {
		return c.token, nil
	}
	if c.token != "" && age < tokenRevalidateWindow {
		if c.probeSession(ctx) {
			c.tokenAt = c.nowFn()
			return c.token, nil
		}
	}
	return c.login(ctx)
}

func (c *Client) probeSession(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/meme-api/v1/private/user/info", nil)
	if err != nil {
		return false
	}
	req.Header.Set(accessHeader, c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return false
	}
	return env.Msg == "success"
}

func (c *Client) login(ctx context.Context) (string, error) {
	account := c.signer.Account().Hex()

	var nonce string
	err := c.post(ctx, "/meme-api/v1/private/user/nonce/generate", "", map[string]any{
		"accountAddress": account,
		"verifyType":     "LOGIN",
		"networkCode":    "BSC",
	}, &nonce)
	if err != nil {
		return "", fmt.Errorf("获取登录随机数失败: %w", err)
	}

	signature, err := c.signer.SignText([]byte("You are sign in Meme " + nonce))
	if err != nil {
		return "", fmt.Errorf("登录消息签名失败: %w", err)
	}

	var token string
	err = c.post(ctx, "/meme-api/v1/private/user/login/dex", "", map[string]any{
		"region":     "WEB",
		"langType":   "EN",
		"loginIp":    "",
		"inviteCode": "",
		"verifyInfo": map[string]any{
			"address":     account,
			"networkCode": "BSC",
			"signature":   signature,
			"verifyType":  "LOGIN",
		},
		"walletName": "MetaMask",
	}, &token)
	if err != nil {
		return "", fmt.Errorf("登录 four.meme 失败: %w", err)
	}

	c.token = token
	c.tokenAt = c.nowFn()
	return token, nil
}

// CreateTokenRequest 描述一次发币请求中由用户决定的字段。
// PreSale 是以 BNB 计的预购金额，十进制字符串。
type CreateTokenRequest struct {
	Name        string
	ShortName   string
	ImgURL      string
	PreSale     string
	Desc        string
	TwitterURL  string
	TelegramURL string
	WebURL      string
}

// CreateTokenData 是平台返回的上链参数，原样透传给发币合约。
type CreateTokenData struct {
	CreateArg string `json:"createArg"`
	Signature string `json:"signature"`
}

// CreateToken 向平台注册代币元数据并取回 createToken 的调用参数。
// 总量、募集额与出售比例是平台固定档位，不由用户控制。
func (c *Client) CreateToken(ctx context.Context, req CreateTokenRequest) (*CreateTokenData, error) {
	token, err := c.Login(ctx)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"name":         req.Name,
		"shortName":    req.ShortName,
		"imgUrl":       req.ImgURL,
		"preSale":      req.PreSale,
		"desc":         req.Desc,
		"totalSupply":  1000000000,
		"raisedAmount": 24,
		"saleRate":     0.8,
		"reserveRate":  0,
		"raisedToken": map[string]any{
			"symbol":         "BNB",
			"nativeSymbol":   "BNB",
			"symbolAddress":  "0xbb4cdb9cbd36b01bd1cbaebf2de08d9173bc095c",
			"deployCost":     "0",
			"buyFee":         "0.01",
			"sellFee":        "0.01",
			"minTradeFee":    "0",
			"b0Amount":       "8",
			"totalBAmount":   "24",
			"totalAmount":    "1000000000",
			"logoUrl":        "https://static.four.meme/market/68b871b6-96f7-408c-b8d0-388d804b34275092658264263839640.png",
			"tradeLevel":     []string{"0.1", "0.5", "1"},
			"status":         "PUBLISH",
			"buyTokenLink":   "https://pancakeswap.finance/swap",
			"reservedNumber": 10,
			"saleRate":       "0.8",
			"networkCode":    "BSC",
			"platform":       "MEME",
		},
		"launchTime":   c.nowFn().UnixMilli(),
		"funGroup":     false,
		"clickFun":     false,
		"symbol":       "BNB",
		"label":        "Meme",
		"lpTradingFee": 0.0025,
	}
	if req.TwitterURL != "" {
		payload["twitterUrl"] = req.TwitterURL
	}
	if req.TelegramURL != "" {
		payload["telegramUrl"] = req.TelegramURL
	}
	if req.WebURL != "" {
		payload["webUrl"] = req.WebURL
	}

	var data CreateTokenData
	if err := c.post(ctx, "/meme-api/v1/private/token/create", token, payload, &data); err != nil {
		return nil, fmt.Errorf("获取发币参数失败: %w", err)
	}
	if data.CreateArg == "" || data.Signature == "" {
		return nil, errors.New("平台返回的发币参数不完整")
	}
	return &data, nil
}

// TokenDetail 按名称查询代币详情，返回平台原始数据。
func (c *Client) TokenDetail(ctx context.Context, name string) (json.RawMessage, error) {
	token, err := c.Login(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := c.baseURL + "/meme-api/v1/private/token/query?tokenName=" + name
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("构建详情请求失败: %w", err)
	}
	req.Header.Set(accessHeader, token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求代币详情失败: %w", err)
	}
	defer resp.Body.Close()

	env, err := decodeEnvelope(resp)
	if err != nil {
		return nil, fmt.Errorf("查询代币详情失败: %w", err)
	}
	return env.Data, nil
}

// post 发送 JSON 请求并把 data 解码进 out。token 为空时不带访问头。
func (c *Client) post(ctx context.Context, path, token string, body any, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("序列化请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("构建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(accessHeader, token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("请求 four.meme 失败: %w", err)
	}
	defer resp.Body.Close()

	env, err := decodeEnvelope(resp)
	if err != nil {
		return err
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("解析响应数据失败: %w", err)
		}
	}
	return nil
}

func decodeEnvelope(resp *http.Response) (*envelope, error) {
	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("four.meme 返回错误状态 %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}
	if env.Msg != "success" {
		return nil, fmt.Errorf("four.meme 返回业务错误: %s", env.Msg)
	}
	return &env, nil
}
