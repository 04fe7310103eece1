package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/TermiX-official/BscA2A-agent/internal/actions"
	"github.com/TermiX-official/BscA2A-agent/internal/agent"
	"github.com/TermiX-official/BscA2A-agent/internal/api"
	"github.com/TermiX-official/BscA2A-agent/internal/config"
	"github.com/TermiX-official/BscA2A-agent/internal/executor"
	"github.com/TermiX-official/BscA2A-agent/internal/fourmeme"
	"github.com/TermiX-official/BscA2A-agent/internal/intent"
	"github.com/TermiX-official/BscA2A-agent/internal/knowledge"
	"github.com/TermiX-official/BscA2A-agent/internal/llm"
	"github.com/TermiX-official/BscA2A-agent/internal/llm/openai"
	"github.com/TermiX-official/BscA2A-agent/internal/llm/pythonbridge"
	"github.com/TermiX-official/BscA2A-agent/internal/security"
	"github.com/TermiX-official/BscA2A-agent/internal/storage/mysql"
	"github.com/TermiX-official/BscA2A-agent/internal/task"
	"github.com/TermiX-official/BscA2A-agent/internal/web3/provider"
	"github.com/TermiX-official/BscA2A-agent/pkg/logger"
)

// main 是 BSC 会话智能体守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("bscagentd 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	configPath := os.Getenv("BSCAGENT_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("configs", "bscagent.json")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: cfg.Logging.OutputPaths,
		Audit: logger.AuditConfig{
			Enabled: cfg.Logging.AuditPath != "",
			Path:    cfg.Logging.AuditPath,
		},
	}); err != nil {
		return err
	}

	// 私钥只通过环境变量注入，配置文件只记录变量名。
	privateKey := strings.TrimSpace(os.Getenv(cfg.Web3.PrivateKeyEnv))
	if privateKey == "" {
		return fmt.Errorf("环境变量 %s 未设置签名私钥", cfg.Web3.PrivateKeyEnv)
	}

	chainRegistry, err := provider.NewRegistry(ctx, cfg.Web3, privateKey)
	if err != nil {
		return err
	}
	defer chainRegistry.Close()

	web3Client, err := chainRegistry.DefaultClient()
	if err != nil {
		return err
	}

	var journal mysql.TxJournal
	switch cfg.Journal.Driver {
	case "", "memory":
		if err := os.MkdirAll(cfg.Journal.DataDir, 0o755); err != nil {
			return err
		}
		j, err := mysql.NewMemoryTxJournal(cfg.Journal.DataDir)
		if err != nil {
			return err
		}
		journal = j
	case "mysql":
		j, err := mysql.NewSQLTxJournal(ctx, mysql.Config{
			DSN:             cfg.Journal.DSN,
			MaxOpenConns:    cfg.Journal.MaxOpenConns,
			MaxIdleConns:    cfg.Journal.MaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.Journal.ConnMaxLifetimeSeconds) * time.Second,
		})
		if err != nil {
			return err
		}
		journal = j
	default:
		return fmt.Errorf("未知的流水驱动: %s", cfg.Journal.Driver)
	}
	if closer, ok := journal.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	exec := executor.New(web3Client, journal, executor.Config{
		ConfirmAttempts: cfg.Executor.ConfirmAttempts,
		ConfirmDelay:    cfg.Executor.ConfirmDelay(),
		Slippage: executor.Slippage{
			BuyMinOutPercent:        cfg.Executor.Slippage.BuyMinOutPercent,
			BuyFundsHeadroomPercent: cfg.Executor.Slippage.BuyFundsHeadroomPercent,
			PresaleHeadroomPercent:  cfg.Executor.Slippage.PresaleHeadroomPercent,
		},
	})

	memeClient, err := fourmeme.NewClient(fourmeme.Config{
		BaseURL: cfg.FourMeme.BaseURL,
		Timeout: time.Duration(cfg.FourMeme.TimeoutSeconds) * time.Second,
	}, web3Client)
	if err != nil {
		return err
	}
	securityClient := security.NewClient(security.Config{
		BaseURL: cfg.Security.BaseURL,
		Timeout: time.Duration(cfg.Security.TimeoutSeconds) * time.Second,
	})

	registry := actions.NewRegistry()
	registry.Register(actions.NewWalletInfo(web3Client))
	registry.Register(actions.NewSendNative(exec))
	registry.Register(actions.NewSendBEP20(web3Client, exec))
	registry.Register(actions.NewPancakeSwap(web3Client, exec))
	registry.Register(actions.NewAddLiquidity(web3Client, exec))
	registry.Register(actions.NewMyPositions(web3Client))
	registry.Register(actions.NewRemoveLiquidity(web3Client, exec))
	registry.Register(actions.NewCreateMemeToken(exec, memeClient))
	registry.Register(actions.NewBuyMemeToken(web3Client, exec))
	registry.Register(actions.NewSellMemeToken(exec))
	registry.Register(actions.NewMemeTokenDetails(memeClient))
	registry.Register(actions.NewTokenSecurityCheck(securityClient))

	var knowledgeProvider knowledge.Provider
	if cfg.Knowledge.Source != "" {
		provider, err := knowledge.LoadStaticProvider(cfg.Knowledge.Source, cfg.Knowledge.MaxResults)
		if err != nil {
			return err
		}
		knowledgeProvider = provider
	}

	llmClient, err := createLLMClient(cfg)
	if err != nil {
		return err
	}
	llmClassifier, err := intent.NewLLMClassifier(llmClient, toolSpecs(registry), knowledgeProvider)
	if err != nil {
		return err
	}
	classifier := intent.NewChain(intent.NewRuleClassifier(), llmClassifier)

	agentOpts := []agent.Option{}
	if cfg.LLM.Provider == "openai" && cfg.LLM.OpenAI.Timeout() > 0 {
		agentOpts = append(agentOpts, agent.WithClassifyTimeout(cfg.LLM.OpenAI.Timeout()))
	}
	orchestrator := agent.New(classifier, registry, agentOpts...)

	var taskQueue task.Queue
	switch cfg.TaskQueue.Driver {
	case "", "memory":
		taskQueue = task.NewMemoryQueue(1024)
	case "redis":
		queue, err := task.NewRedisQueue(task.RedisQueueConfig{
			Address:   cfg.TaskQueue.Redis.Address,
			Password:  cfg.TaskQueue.Redis.Password,
			DB:        cfg.TaskQueue.Redis.DB,
			Queue:     cfg.TaskQueue.Redis.Queue,
			BlockWait: time.Duration(cfg.TaskQueue.Redis.BlockWait) * time.Second,
		})
		if err != nil {
			return err
		}
		taskQueue = queue
	case "rabbitmq":
		queue, err := task.NewRabbitMQQueue(task.RabbitMQConfig{
			URL:        cfg.TaskQueue.RabbitMQ.URL,
			Queue:      cfg.TaskQueue.RabbitMQ.Queue,
			Prefetch:   cfg.TaskQueue.RabbitMQ.Prefetch,
			Durable:    cfg.TaskQueue.RabbitMQ.Durable,
			AutoDelete: cfg.TaskQueue.RabbitMQ.AutoDelete,
		})
		if err != nil {
			return err
		}
		taskQueue = queue
	default:
		return fmt.Errorf("未知的队列驱动: %s", cfg.TaskQueue.Driver)
	}
	defer func() {
		if err := taskQueue.Close(); err != nil {
			log.Printf("关闭任务队列失败: %v", err)
		}
	}()

	taskStore := task.NewMemoryStore()
	taskService := task.NewService(taskStore, taskQueue)
	processor := task.NewProcessor(orchestrator, taskStore, taskQueue,
		task.WithWorkerCount(cfg.TaskQueue.Worker),
		task.WithProcessorLogger(slog.Default()),
	)

	processorCtx, processorCancel := context.WithCancel(ctx)
	defer processorCancel()

	go func() {
		if err := processor.Start(processorCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("任务处理器异常退出: %v", err)
		}
	}()

	server := api.NewServer(cfg.Server.Address, taskService)

	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// toolSpecs 把动作注册表转成大模型可选择的工具描述。
func toolSpecs(registry *actions.Registry) []llm.ToolSpec {
	names := registry.Names()
	specs := make([]llm.ToolSpec, 0, len(names))
	for _, name := range names {
		handler, ok := registry.Get(name)
		if !ok {
			continue
		}
		specs = append(specs, llm.ToolSpec{
			Name:        handler.Name(),
			Description: handler.Description(),
			Parameters:  handler.Parameters(),
		})
	}
	return specs
}

func createLLMClient(cfg *config.Config) (llm.Client, error) {
	switch cfg.LLM.Provider {
	case "", "python_bridge":
		scriptPath := pythonbridge.ResolveScriptPath(cfg.LLM.Python.WorkingDir, cfg.LLM.Python.ScriptPath)
		return pythonbridge.NewClient(cfg.LLM.Python.PythonExecutable, scriptPath, cfg.LLM.Python.WorkingDir)
	case "openai":
		apiKey := strings.TrimSpace(cfg.LLM.OpenAI.APIKey)
		if apiKey == "" && cfg.LLM.OpenAI.APIKeyEnv != "" {
			apiKey = strings.TrimSpace(os.Getenv(cfg.LLM.OpenAI.APIKeyEnv))
		}
		if apiKey == "" {
			return nil, errors.New("OpenAI provider 需要配置 api_key 或 api_key_env")
		}
		return openai.NewClient(openai.Config{
			APIKey:  apiKey,
			BaseURL: cfg.LLM.OpenAI.BaseURL,
			Model:   cfg.LLM.OpenAI.Model,
			Timeout: cfg.LLM.OpenAI.Timeout(),
		})
	default:
		return nil, fmt.Errorf("未知的大模型 provider: %s", cfg.LLM.Provider)
	}
}
