package actions

import (
	"context"
	"fmt"

	xerrors "github.com/TermiX-official/BscA2A-agent/internal/errors"
	"github.com/TermiX-official/BscA2A-agent/internal/executor"
	"github.com/TermiX-official/BscA2A-agent/internal/web3"

	"github.com/ethereum/go-ethereum/common"
)

// BEP-20 转账统一使用的 gas 上限。
const bep20TransferGasLimit = 100_000

// SendNative 转出原生 BNB。
type SendNative struct {
	exec *executor.Executor
}

// NewSendNative 创建 BNB 转账动作。
func NewSendNative(exec *executor.Executor) *SendNative {
	return &SendNative{exec: exec}
}

func (s *SendNative) Name() string { return "sendBNB" }

func (s *SendNative) Description() string {
	return "Transfer native token (BNB) to another wallet"
}

func (s *SendNative) Parameters() map[string]string {
	return map[string]string{
		"recipientAddress": "The recipient's wallet address",
		"amount":           "The amount of BNB to send, e.g. '0.1'",
	}
}

func (s *SendNative) Execute(ctx context.Context, args map[string]string) Result {
	recipient, err := requireArg(args, "recipientAddress")
	if err != nil {
		return failure(err, "")
	}
	amount, err := requireArg(args, "amount")
	if err != nil {
		return failure(err, "")
	}
	if !web3.IsHexAddress(recipient) {
		return failure(xerrors.New(xerrors.CodeInvalidAddress, "收款地址格式不合法: "+recipient), "")
	}
	value, err := web3.ParseUnits(amount, 18)
	if err != nil {
		return failure(xerrors.Wrap(xerrors.CodeInvalidInput, err, "转账金额不合法"), "")
	}

	outcome, err := s.exec.Execute(ctx, executor.CallSpec{
		TaskID: args["taskId"],
		Action: "sendBNB",
		Request: web3.TxRequest{
			To:    common.HexToAddress(recipient),
			Value: value,
		},
	})
	if err != nil {
		return failure(err, outcomeURL(outcome))
	}
	return Result{
		Text: fmt.Sprintf("Transaction sent successfully.\n\n[View on Explorer](%s)", outcome.TxURL),
		URL:  outcome.TxURL,
	}
}

// SendBEP20 转出任意 BEP-20 代币，金额按链上 decimals 换算。
type SendBEP20 struct {
	client web3.Client
	exec   *executor.Executor
}

// NewSendBEP20 创建 BEP-20 转账动作。
func NewSendBEP20(client web3.Client, exec *executor.Executor) *SendBEP20 {
	return &SendBEP20{client: client, exec: exec}
}

func (s *SendBEP20) Name() string { return "sendBEP20Token" }

func (s *SendBEP20) Description() string {
	return "Send any BEP-20 token to another wallet"
}

func (s *SendBEP20) Parameters() map[string]string {
	return map[string]string{
		"recipientAddress": "The recipient wallet address",
		"amount":           "The amount of tokens to send",
		"address":          "The BEP-20 token contract address",
	}
}

func (s *SendBEP20) Execute(ctx context.Context, args map[string]string) Result {
	recipient, err := requireArg(args, "recipientAddress")
	if err != nil {
		return failure(err, "")
	}
	amount, err := requireArg(args, "amount")
	if err != nil {
		return failure(err, "")
	}
	tokenAddr, err := requireArg(args, "address")
	if err != nil {
		return failure(err, "")
	}
	if !web3.IsHexAddress(recipient) {
		return failure(xerrors.New(xerrors.CodeInvalidAddress, "收款地址格式不合法: "+recipient), "")
	}
	if !web3.IsHexAddress(tokenAddr) {
		return failure(xerrors.New(xerrors.CodeInvalidAddress, "代币合约地址格式不合法: "+tokenAddr), "")
	}
	token := common.HexToAddress(tokenAddr)

	decValues, err := s.client.ReadCall(ctx, token, bep20ABI, "decimals")
	if err != nil {
		return failure(xerrors.Wrap(xerrors.CodeUnknown, err, "读取代币精度失败"), "")
	}
	decimals, ok := decValues[0].(uint8)
	if !ok {
		return failure(xerrors.New(xerrors.CodeUnknown, "代币精度返回值类型异常"), "")
	}

	parsed, err := web3.ParseUnits(amount, decimals)
	if err != nil {
		return failure(xerrors.Wrap(xerrors.CodeInvalidInput, err, "转账金额不合法"), "")
	}

	outcome, err := s.exec.Execute(ctx, executor.CallSpec{
		TaskID: args["taskId"],
		Action: "sendBEP20Token",
		Request: web3.TxRequest{
			To:       token,
			ABI:      bep20ABI,
			Method:   "transfer",
			Args:     []any{common.HexToAddress(recipient), parsed},
			GasLimit: bep20TransferGasLimit,
		},
	})
	if err != nil {
		return failure(err, outcomeURL(outcome))
	}
	return Result{
		Text: fmt.Sprintf("BEP-20 token transfer sent successfully.\n\n[View on Explorer](%s)", outcome.TxURL),
		URL:  outcome.TxURL,
	}
}

// outcomeURL 在部分完成的失败结局里仍给出浏览器链接。
func outcomeURL(outcome *executor.Outcome) string {
	if outcome == nil {
		return ""
	}
	return outcome.TxURL
}
