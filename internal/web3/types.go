// Package web3 houses blockchain connectivity utilities: the chain client
// abstraction, signer helpers and multi-chain configuration. It gives the
// agent a uniform surface for contract reads, signed submissions and receipt
// polls against BSC and other EVM networks.
package web3

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrReceiptTimeout 表示在允许的轮询次数内没有获取到交易回执。
// 这与交易回滚是两种不同的结局，调用方必须区别上报。
var ErrReceiptTimeout = errors.New("等待交易回执超时")

// TxRequest describes a signed contract invocation or a plain value transfer.
// When ABI is empty the request is treated as a native transfer to To.
type TxRequest struct {
	To       common.Address
	ABI      string
	Method   string
	Args     []any
	Value    *big.Int
	GasLimit uint64
}

// ChainSnapshot represents summarized network metadata for reporting.
type ChainSnapshot struct {
	ChainID     string
	BlockNumber string
	Notes       string
}

// Client defines the common interface any chain implementation must provide
// so higher layers can interact with different networks uniformly. A Client
// is bound to exactly one account; submissions are serialized internally so
// the account nonce is never raced.
type Client interface {
	// ReadCall executes a constant contract call and returns the decoded
	// output values in declaration order.
	ReadCall(ctx context.Context, to common.Address, abiJSON, method string, args ...any) ([]any, error)
	// BalanceAt returns the native balance of the given address.
	BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error)
	// SubmitTransaction signs and broadcasts a transaction from the bound
	// account and returns its hash.
	SubmitTransaction(ctx context.Context, req TxRequest) (common.Hash, error)
	// WaitForReceipt polls for the receipt of hash up to maxAttempts times
	// with a fixed delay between polls. Returns ErrReceiptTimeout when the
	// budget is exhausted without a receipt.
	WaitForReceipt(ctx context.Context, hash common.Hash, maxAttempts int, delay time.Duration) (*types.Receipt, error)
	// SignText produces an EIP-191 personal-message signature with the bound
	// account key, hex encoded with 0x prefix.
	SignText(message []byte) (string, error)
	// FetchChainSnapshot gathers lightweight metadata from the chain.
	FetchChainSnapshot(ctx context.Context) (ChainSnapshot, error)
	// Account returns the address of the bound signer.
	Account() common.Address
	// ChainID returns the chain identifier the client is connected to.
	ChainID() *big.Int
	// ExplorerURL returns the base URL of the chain's canonical explorer.
	ExplorerURL() string
	Close()
}

// TxURL derives the canonical explorer link for a transaction hash.
// An empty string is returned when no hash exists yet.
func TxURL(explorerBase string, hash common.Hash) string {
	if hash == (common.Hash{}) {
		return ""
	}
	base := strings.TrimRight(strings.TrimSpace(explorerBase), "/")
	if base == "" {
		return ""
	}
	return base + "/tx/" + hash.Hex()
}

// IsHexAddress reports whether s is a syntactically valid 0x-prefixed
// 40-hex-character chain address.
func IsHexAddress(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "0x") && common.IsHexAddress(s)
}
