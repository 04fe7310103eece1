package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Config 描述了 BSC 智能体守护进程在启动阶段需要加载的核心配置。
// 签名私钥永远不出现在配置文件中，只通过环境变量注入。
type Config struct {
	Server    ServerConfig    `json:"server"`
	Logging   LoggingConfig   `json:"logging"`
	LLM       LLMConfig       `json:"llm"`
	Web3      Web3Config      `json:"web3"`
	Executor  ExecutorConfig  `json:"executor"`
	FourMeme  FourMemeConfig  `json:"four_meme"`
	Security  SecurityConfig  `json:"security"`
	TaskQueue TaskQueueConfig `json:"task_queue"`
	Journal   JournalConfig   `json:"journal"`
	Knowledge KnowledgeConfig `json:"knowledge"`
}

// ServerConfig 控制 API 服务的监听地址等参数。
type ServerConfig struct {
	Address string `json:"address"`
}

// LoggingConfig 控制结构化日志与审计日志输出。
type LoggingConfig struct {
	Level       string   `json:"level"`
	Format      string   `json:"format"`
	OutputPaths []string `json:"output_paths"`
	AuditPath   string   `json:"audit_path"`
}

// LLMConfig 用于配置意图分类所依赖的大模型调用方式。
type LLMConfig struct {
	Provider string             `json:"provider"`
	OpenAI   OpenAIConfig       `json:"openai"`
	Python   PythonBridgeConfig `json:"python_bridge"`
}

// OpenAIConfig 描述 OpenAI 兼容服务的调用参数。
type OpenAIConfig struct {
	APIKey         string `json:"api_key"`
	APIKeyEnv      string `json:"api_key_env"`
	BaseURL        string `json:"base_url"`
	Model          string `json:"model"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// Timeout 返回调用超时时间。
func (c OpenAIConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// PythonBridgeConfig 描述通过 Python 脚本完成推理时所需的信息。
type PythonBridgeConfig struct {
	Enabled          bool   `json:"enabled"`
	PythonExecutable string `json:"python_executable"`
	ScriptPath       string `json:"script_path"`
	WorkingDir       string `json:"working_dir"`
}

// Web3Config 包含访问区块链节点与签名账户所需的信息。
type Web3Config struct {
	ChainConfig   string `json:"chain_config"`
	DefaultChain  string `json:"default_chain"`
	RPCURL        string `json:"rpc_url"`
	ExplorerURL   string `json:"explorer_url"`
	PrivateKeyEnv string `json:"private_key_env"`
}

// ExecutorConfig 控制交易确认轮询与滑点参数。
type ExecutorConfig struct {
	ConfirmAttempts int            `json:"confirm_attempts"`
	ConfirmDelayMS  int            `json:"confirm_delay_ms"`
	Slippage        SlippageConfig `json:"slippage"`
}

// ConfirmDelay 返回两次回执轮询之间的间隔。
func (c ExecutorConfig) ConfirmDelay() time.Duration {
	if c.ConfirmDelayMS <= 0 {
		return 100 * time.Millisecond
	}
	return time.Duration(c.ConfirmDelayMS) * time.Millisecond
}

// SlippageConfig 保存各类数量调整的百分比。这些数值是风险偏好的选择，
// 不是协议要求，因此允许按部署环境覆盖。
type SlippageConfig struct {
	// BuyMinOutPercent 在以 BNB 金额驱动买入时收紧期望产出（默认 80）。
	BuyMinOutPercent int64 `json:"buy_min_out_percent"`
	// BuyFundsHeadroomPercent 在以代币数量驱动买入时放宽投入上限（默认 105）。
	BuyFundsHeadroomPercent int64 `json:"buy_funds_headroom_percent"`
	// PresaleHeadroomPercent 为代币发行预售金额预留的空间（默认 101）。
	PresaleHeadroomPercent int64 `json:"presale_headroom_percent"`
}

// FourMemeConfig 描述 four.meme 平台 API 的访问方式。
type FourMemeConfig struct {
	BaseURL        string `json:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// SecurityConfig 描述 GoPlus 安全扫描服务的访问方式。
type SecurityConfig struct {
	BaseURL        string `json:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// TaskQueueConfig 控制任务队列驱动。单账户场景下 worker 固定为 1，
// 以保证同账户交易的提交顺序。
type TaskQueueConfig struct {
	Driver   string         `json:"driver"`
	Worker   int            `json:"worker"`
	Redis    RedisConfig    `json:"redis"`
	RabbitMQ RabbitMQConfig `json:"rabbitmq"`
}

// RedisConfig 描述 Redis 队列连接参数。
type RedisConfig struct {
	Address   string `json:"address"`
	Password  string `json:"password"`
	DB        int    `json:"db"`
	Queue     string `json:"queue"`
	BlockWait int    `json:"block_wait_seconds"`
}

// RabbitMQConfig 描述 RabbitMQ 队列连接参数。
type RabbitMQConfig struct {
	URL        string `json:"url"`
	Queue      string `json:"queue"`
	Prefetch   int    `json:"prefetch"`
	Durable    bool   `json:"durable"`
	AutoDelete bool   `json:"auto_delete"`
}

// JournalConfig 控制链上交易流水的落盘方式。
type JournalConfig struct {
	Driver                 string `json:"driver"`
	DataDir                string `json:"data_dir"`
	DSN                    string `json:"dsn"`
	MaxOpenConns           int    `json:"max_open_conns"`
	MaxIdleConns           int    `json:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `json:"conn_max_lifetime_seconds"`
}

// KnowledgeConfig 指向静态知识库文件。
type KnowledgeConfig struct {
	Source     string `json:"source"`
	MaxResults int    `json:"max_results"`
}

// Load 负责解析指定路径的 JSON 配置文件。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开配置文件失败: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyDefaults(filepath.Dir(path))

	return &cfg, nil
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":41241"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.Python.PythonExecutable == "" {
		c.LLM.Python.PythonExecutable = "python3"
	}
	if c.LLM.Python.WorkingDir == "" {
		c.LLM.Python.WorkingDir = baseDir
	} else if !filepath.IsAbs(c.LLM.Python.WorkingDir) {
		c.LLM.Python.WorkingDir = filepath.Join(baseDir, c.LLM.Python.WorkingDir)
	}

	if c.Web3.ChainConfig != "" && !filepath.IsAbs(c.Web3.ChainConfig) {
		c.Web3.ChainConfig = filepath.Join(baseDir, c.Web3.ChainConfig)
	}
	if c.Web3.DefaultChain == "" {
		c.Web3.DefaultChain = "bsc"
	}
	if c.Web3.ExplorerURL == "" {
		c.Web3.ExplorerURL = "https://bscscan.com"
	}
	if c.Web3.PrivateKeyEnv == "" {
		c.Web3.PrivateKeyEnv = "WALLET_PRIVATE_KEY"
	}

	if c.Executor.ConfirmAttempts <= 0 {
		c.Executor.ConfirmAttempts = 300
	}
	if c.Executor.ConfirmDelayMS <= 0 {
		c.Executor.ConfirmDelayMS = 100
	}
	if c.Executor.Slippage.BuyMinOutPercent <= 0 {
		c.Executor.Slippage.BuyMinOutPercent = 80
	}
	if c.Executor.Slippage.BuyFundsHeadroomPercent <= 0 {
		c.Executor.Slippage.BuyFundsHeadroomPercent = 105
	}
	if c.Executor.Slippage.PresaleHeadroomPercent <= 0 {
		c.Executor.Slippage.PresaleHeadroomPercent = 101
	}

	if c.FourMeme.BaseURL == "" {
		c.FourMeme.BaseURL = "https://four.meme"
	}
	if c.Security.BaseURL == "" {
		c.Security.BaseURL = "https://api.gopluslabs.io"
	}

	if c.TaskQueue.Driver == "" {
		c.TaskQueue.Driver = "memory"
	}
	if c.TaskQueue.Worker <= 0 {
		c.TaskQueue.Worker = 1
	}

	if c.Journal.Driver == "" {
		c.Journal.Driver = "memory"
	}
	if c.Journal.DataDir == "" {
		c.Journal.DataDir = filepath.Join(baseDir, "data")
	} else if !filepath.IsAbs(c.Journal.DataDir) {
		c.Journal.DataDir = filepath.Join(baseDir, c.Journal.DataDir)
	}

	if c.Knowledge.Source != "" && !filepath.IsAbs(c.Knowledge.Source) {
		c.Knowledge.Source = filepath.Join(baseDir, c.Knowledge.Source)
	}
	if c.Knowledge.MaxResults <= 0 {
		c.Knowledge.MaxResults = 3
	}
}
