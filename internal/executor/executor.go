// Package executor 实现所有链上变更动作共用的交易执行契约：
// 先读后批、按需授权、提交后有界轮询确认，并把结局映射为闭合错误码。
// 任何 Action Handler 不得绕过本包直接调用写端点。
package executor

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"math/big"
	"time"

	xerrors "github.com/TermiX-official/BscA2A-agent/internal/errors"
	"github.com/TermiX-official/BscA2A-agent/internal/storage/mysql"
	"github.com/TermiX-official/BscA2A-agent/internal/web3"
	"github.com/TermiX-official/BscA2A-agent/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
)

// erc20ABI 只包含授权检查与授权两个方法，转账等完整 ABI 由各 handler 自带。
const erc20ABI = `[
  {"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
  {"constant":false,"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}
]`

// Slippage 保存数量调整的百分比参数，数值来源见配置说明。
type Slippage struct {
	BuyMinOutPercent        int64
	BuyFundsHeadroomPercent int64
	PresaleHeadroomPercent  int64
}

// Config 控制确认轮询与滑点参数。
type Config struct {
	ConfirmAttempts int
	ConfirmDelay    time.Duration
	Slippage        Slippage
}

func (c *Config) applyDefaults() {
	if c.ConfirmAttempts <= 0 {
		c.ConfirmAttempts = 300
	}
	if c.ConfirmDelay <= 0 {
		c.ConfirmDelay = 100 * time.Millisecond
	}
	if c.Slippage.BuyMinOutPercent <= 0 {
		c.Slippage.BuyMinOutPercent = 80
	}
	if c.Slippage.BuyFundsHeadroomPercent <= 0 {
		c.Slippage.BuyFundsHeadroomPercent = 105
	}
	if c.Slippage.PresaleHeadroomPercent <= 0 {
		c.Slippage.PresaleHeadroomPercent = 101
	}
}

// CallSpec 描述一笔待提交的主交易。
type CallSpec struct {
	TaskID  string
	Action  string
	Request web3.TxRequest
}

// ApprovalSpec 描述花费类动作的前置授权要求。
type ApprovalSpec struct {
	Token   common.Address
	Spender common.Address
	Amount  *big.Int
}

// Outcome 记录一次提交的哈希、回执与浏览器链接。
// 提交本身失败时 Outcome 为 nil；拿到哈希之后无论成败都会返回 Outcome。
type Outcome struct {
	Hash    common.Hash
	Receipt *coretypes.Receipt
	TxURL   string
}

// Executor 是交易执行器。同一账户的交易串行通过这里提交，
// 每笔交易在确认（或明确超时/回滚）之前不会提交下一笔。
type Executor struct {
	client  web3.Client
	journal mysql.TxJournal
	cfg     Config
}

// New 构造交易执行器。journal 允许为 nil，此时不落流水。
func New(client web3.Client, journal mysql.TxJournal, cfg Config) *Executor {
	cfg.applyDefaults()
	return &Executor{client: client, journal: journal, cfg: cfg}
}

// Slippage 返回生效的滑点参数。
func (e *Executor) Slippage() Slippage {
	return e.cfg.Slippage
}

// Execute 提交主交易并等待确认。
func (e *Executor) Execute(ctx context.Context, spec CallSpec) (*Outcome, error) {
	if e == nil || e.client == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "交易执行器未初始化")
	}
	return e.submitAndConfirm(ctx, spec)
}

// ExecuteWithApproval 先检查授权额度，不足时先提交授权交易并等待其确认，
// 然后再提交主交易。授权额度足够时直接进入主交易。
func (e *Executor) ExecuteWithApproval(ctx context.Context, approval ApprovalSpec, spec CallSpec) (*Outcome, error) {
	if e == nil || e.client == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "交易执行器未初始化")
	}
	if approval.Amount == nil || approval.Amount.Sign() <= 0 {
		return nil, xerrors.New(xerrors.CodeInvalidInput, "授权数量必须为正数")
	}

	if err := e.EnsureAllowance(ctx, approval, spec.TaskID, spec.Action); err != nil {
		return nil, err
	}
	return e.submitAndConfirm(ctx, spec)
}

// EnsureAllowance 保证 spender 拿到至少 amount 的额度。
// 额度不足时提交授权交易并等待确认，额度充足时什么都不做。
func (e *Executor) EnsureAllowance(ctx context.Context, approval ApprovalSpec, taskID, action string) error {
	allowance, err := e.Allowance(ctx, approval.Token, e.client.Account(), approval.Spender)
	if err != nil {
		return err
	}
	if allowance.Cmp(approval.Amount) >= 0 {
		return nil
	}

	approveSpec := CallSpec{
		TaskID: taskID,
		Action: action + ".approve",
		Request: web3.TxRequest{
			To:     approval.Token,
			ABI:    erc20ABI,
			Method: "approve",
			Args:   []any{approval.Spender, approval.Amount},
		},
	}
	if _, err := e.submitAndConfirm(ctx, approveSpec); err != nil {
		return xerrors.Wrap(xerrors.CodeInsufficientAllowance, err, "授权交易未能完成")
	}
	return nil
}

// Allowance 查询 owner 授权给 spender 的当前额度。
func (e *Executor) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	values, err := e.client.ReadCall(ctx, token, erc20ABI, "allowance", owner, spender)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeUnknown, err, "查询授权额度失败")
	}
	allowance, ok := values[0].(*big.Int)
	if !ok {
		return nil, xerrors.New(xerrors.CodeUnknown, "授权额度返回值类型异常")
	}
	return allowance, nil
}

func (e *Executor) submitAndConfirm(ctx context.Context, spec CallSpec) (*Outcome, error) {
	hash, err := e.client.SubmitTransaction(ctx, spec.Request)
	if err != nil {
		e.record(ctx, spec, common.Hash{}, mysql.OutcomeFailed, xerrors.CodeUnknown, err.Error())
		return nil, xerrors.Wrap(xerrors.CodeUnknown, err, "交易提交失败")
	}

	outcome := &Outcome{
		Hash:  hash,
		TxURL: web3.TxURL(e.client.ExplorerURL(), hash),
	}
	e.record(ctx, spec, hash, mysql.OutcomeSubmitted, "", "")
	logger.Audit().Info("交易已提交",
		slog.String("task_id", spec.TaskID),
		slog.String("action", spec.Action),
		slog.String("tx_hash", hash.Hex()),
	)

	receipt, err := e.client.WaitForReceipt(ctx, hash, e.cfg.ConfirmAttempts, e.cfg.ConfirmDelay)
	if err != nil {
		if stdErrors.Is(err, web3.ErrReceiptTimeout) {
			e.record(ctx, spec, hash, mysql.OutcomeTimedOut, xerrors.CodeConfirmationTimeout, "")
			return outcome, xerrors.Wrap(xerrors.CodeConfirmationTimeout, err, "交易确认超时",
				xerrors.WithMetadata("tx_hash", hash.Hex()))
		}
		e.record(ctx, spec, hash, mysql.OutcomeFailed, xerrors.CodeUnknown, err.Error())
		return outcome, xerrors.Wrap(xerrors.CodeUnknown, err, "查询交易回执失败",
			xerrors.WithMetadata("tx_hash", hash.Hex()))
	}

	outcome.Receipt = receipt
	if receipt.Status != coretypes.ReceiptStatusSuccessful {
		e.record(ctx, spec, hash, mysql.OutcomeReverted, xerrors.CodeTxReverted, "")
		return outcome, xerrors.New(xerrors.CodeTxReverted, "交易已上链但被回滚",
			xerrors.WithMetadata("tx_hash", hash.Hex()))
	}

	e.record(ctx, spec, hash, mysql.OutcomeSuccess, "", "")
	return outcome, nil
}

func (e *Executor) record(ctx context.Context, spec CallSpec, hash common.Hash, outcome mysql.TxOutcome, code xerrors.Code, detail string) {
	if e.journal == nil {
		return
	}
	txHash := ""
	if hash != (common.Hash{}) {
		txHash = hash.Hex()
	}
	record := mysql.TxRecord{
		TaskID:    spec.TaskID,
		Action:    spec.Action,
		TxHash:    txHash,
		Outcome:   outcome,
		ErrorCode: string(code),
		Detail:    detail,
		CreatedAt: time.Now().Unix(),
	}
	if err := e.journal.Record(ctx, record); err != nil {
		logger.L().Error("写入交易流水失败", slog.Any("error", err), slog.String("action", spec.Action))
	}
}

// BuyQuote 携带 tryBuy 预估结果，买入路径基于它做滑点调整。
type BuyQuote struct {
	EstimatedAmount *big.Int
	FundsRequired   *big.Int
}

// AdjustBuyAmounts 按配置的滑点策略调整买入参数。
// outputDriven 为真表示调用方指定了期望买到的代币数量：此时投入金额
// 按比例放宽以容忍预估漂移；否则调用方以 BNB 金额驱动，期望产出按
// 比例收紧以避免成交失败。
func (e *Executor) AdjustBuyAmounts(quote BuyQuote, outputDriven bool) (minOut, funds *big.Int) {
	if outputDriven {
		minOut = new(big.Int).Set(quote.EstimatedAmount)
		funds = web3.ApplyPercent(quote.FundsRequired, e.cfg.Slippage.BuyFundsHeadroomPercent)
		return minOut, funds
	}
	minOut = web3.ApplyPercent(quote.EstimatedAmount, e.cfg.Slippage.BuyMinOutPercent)
	funds = new(big.Int).Set(quote.FundsRequired)
	return minOut, funds
}

// PresaleValue 为代币发行的预售金额增加预留空间。
func (e *Executor) PresaleValue(preSale *big.Int) *big.Int {
	return web3.ApplyPercent(preSale, e.cfg.Slippage.PresaleHeadroomPercent)
}
