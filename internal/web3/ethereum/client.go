package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/TermiX-official/BscA2A-agent/internal/web3"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

// Config describes how to construct an EVM compatible client.
type Config struct {
	Name        string
	RPCURL      string
	ExplorerURL string
	PrivateKey  string
	Notes       string
}

// Backend mirrors the subset of ethclient methods the client depends on,
// so tests can substitute a deterministic fake.
type Backend interface {
	CallContract(ctx context.Context, msg gethcore.CallMsg, blockNumber *big.Int) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg gethcore.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *coretypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*coretypes.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// Client implements the web3.Client interface for EVM compatible chains,
// bound to a single signing account.
type Client struct {
	name      string
	notes     string
	explorer  string
	rpcClient *gethrpc.Client
	backend   Backend
	key       *ecdsa.PrivateKey
	account   common.Address
	chainID   *big.Int

	// mu serializes transaction submission so the account nonce is
	// observed and consumed in order.
	mu sync.Mutex
}

// NewClient dials the configured RPC endpoint and returns a ready-to-use client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	rpcURL := strings.TrimSpace(cfg.RPCURL)
	if rpcURL == "" {
		return nil, errors.New("未配置链 RPC 地址")
	}

	key, account, err := parseKey(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}

	rpcClient, err := gethrpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("连接链节点失败: %w", err)
	}
	eth := ethclient.NewClient(rpcClient)

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		rpcClient.Close()
		return nil, fmt.Errorf("获取链 ID 失败: %w", err)
	}

	return &Client{
		name:      cfg.Name,
		notes:     cfg.Notes,
		explorer:  strings.TrimSpace(cfg.ExplorerURL),
		rpcClient: rpcClient,
		backend:   eth,
		key:       key,
		account:   account,
		chainID:   chainID,
	}, nil
}

// NewBackendClient wraps an arbitrary backend for testing purposes.
func NewBackendClient(name string, chainID *big.Int, backend Backend, privateKey, explorerURL string) (*Client, error) {
	key, account, err := parseKey(privateKey)
	if err != nil {
		return nil, err
	}
	return &Client{
		name:     name,
		notes:    "test backend",
		explorer: explorerURL,
		backend:  backend,
		key:      key,
		account:  account,
		chainID:  new(big.Int).Set(chainID),
	}, nil
}

func parseKey(raw string) (*ecdsa.PrivateKey, common.Address, error) {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	if raw == "" {
		return nil, common.Address{}, errors.New("未配置签名私钥")
	}
	key, err := crypto.HexToECDSA(raw)
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("解析签名私钥失败: %w", err)
	}
	return key, crypto.PubkeyToAddress(key.PublicKey), nil
}

// Close releases network connections held by the client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
		c.rpcClient = nil
	}
}

// Account returns the bound signer address.
func (c *Client) Account() common.Address {
	return c.account
}

// ChainID returns the connected chain identifier.
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// ExplorerURL returns the configured explorer base URL.
func (c *Client) ExplorerURL() string {
	return c.explorer
}

// ReadCall executes a constant contract call and decodes the outputs.
func (c *Client) ReadCall(ctx context.Context, to common.Address, abiJSON, method string, args ...any) ([]any, error) {
	if c == nil || c.backend == nil {
		return nil, errors.New("未初始化的链客户端")
	}
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("解析 ABI 失败: %w", err)
	}
	input, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("编码调用 %s 失败: %w", method, err)
	}
	output, err := c.backend.CallContract(ctx, gethcore.CallMsg{
		From: c.account,
		To:   &to,
		Data: input,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("合约调用 %s 失败: %w", method, err)
	}
	values, err := parsed.Unpack(method, output)
	if err != nil {
		return nil, fmt.Errorf("解码调用 %s 返回值失败: %w", method, err)
	}
	return values, nil
}

// BalanceAt returns the latest native balance of addr.
func (c *Client) BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error) {
	if c == nil || c.backend == nil {
		return nil, errors.New("未初始化的链客户端")
	}
	balance, err := c.backend.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("查询余额失败: %w", err)
	}
	return balance, nil
}

// SubmitTransaction signs and broadcasts a transaction from the bound account.
// Submission is serialized: a second caller blocks until the first broadcast
// finishes, which keeps nonce acquisition ordered.
func (c *Client) SubmitTransaction(ctx context.Context, req web3.TxRequest) (common.Hash, error) {
	if c == nil || c.backend == nil {
		return common.Hash{}, errors.New("未初始化的链客户端")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var data []byte
	if req.ABI != "" {
		parsed, err := abi.JSON(strings.NewReader(req.ABI))
		if err != nil {
			return common.Hash{}, fmt.Errorf("解析 ABI 失败: %w", err)
		}
		data, err = parsed.Pack(req.Method, req.Args...)
		if err != nil {
			return common.Hash{}, fmt.Errorf("编码交易 %s 失败: %w", req.Method, err)
		}
	}

	nonce, err := c.backend.PendingNonceAt(ctx, c.account)
	if err != nil {
		return common.Hash{}, fmt.Errorf("查询账户 nonce 失败: %w", err)
	}
	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("查询 gas 价格失败: %w", err)
	}

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}

	gasLimit := req.GasLimit
	if gasLimit == 0 {
		gasLimit, err = c.backend.EstimateGas(ctx, gethcore.CallMsg{
			From:     c.account,
			To:       &req.To,
			Value:    value,
			GasPrice: gasPrice,
			Data:     data,
		})
		if err != nil {
			return common.Hash{}, fmt.Errorf("预估 gas 失败: %w", err)
		}
	}

	tx := coretypes.NewTx(&coretypes.LegacyTx{
		Nonce:    nonce,
		To:       &req.To,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := coretypes.SignTx(tx, coretypes.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("签名交易失败: %w", err)
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("广播交易失败: %w", err)
	}
	return signed.Hash(), nil
}

// WaitForReceipt polls the receipt up to maxAttempts times with a fixed delay.
func (c *Client) WaitForReceipt(ctx context.Context, hash common.Hash, maxAttempts int, delay time.Duration) (*coretypes.Receipt, error) {
	if c == nil || c.backend == nil {
		return nil, errors.New("未初始化的链客户端")
	}
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	for attempt := 0; attempt < maxAttempts; attempt++ {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, gethcore.NotFound) {
			return nil, fmt.Errorf("查询交易回执失败: %w", err)
		}
		if attempt == maxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, web3.ErrReceiptTimeout
}

// SignText produces an EIP-191 personal-message signature.
func (c *Client) SignText(message []byte) (string, error) {
	if c == nil || c.key == nil {
		return "", errors.New("未配置签名私钥")
	}
	sig, err := crypto.Sign(accounts.TextHash(message), c.key)
	if err != nil {
		return "", fmt.Errorf("签名消息失败: %w", err)
	}
	// 恢复标识符转换为以太坊惯用的 27/28。
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}

// FetchChainSnapshot gathers lightweight metadata from the chain.
func (c *Client) FetchChainSnapshot(ctx context.Context) (web3.ChainSnapshot, error) {
	if c == nil || c.backend == nil {
		return web3.ChainSnapshot{}, errors.New("未初始化的链客户端")
	}
	blockNumber, err := c.backend.BlockNumber(ctx)
	if err != nil {
		return web3.ChainSnapshot{}, fmt.Errorf("获取最新区块高度失败: %w", err)
	}
	return web3.ChainSnapshot{
		ChainID:     "0x" + c.chainID.Text(16),
		BlockNumber: fmt.Sprintf("0x%x", blockNumber),
		Notes:       c.notes,
	}, nil
}
