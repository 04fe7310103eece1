package actions

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	xerrors "github.com/TermiX-official/BscA2A-agent/internal/errors"
	"github.com/TermiX-official/BscA2A-agent/internal/web3"

	"github.com/ethereum/go-ethereum/common"
)

// WalletInfo 查询任意地址的 BNB 余额与主流代币持仓。
// 未提供地址时回落到代理自己的钱包。
type WalletInfo struct {
	client web3.Client
}

// NewWalletInfo 创建余额查询动作。
func NewWalletInfo(client web3.Client) *WalletInfo {
	return &WalletInfo{client: client}
}

func (w *WalletInfo) Name() string { return "getWalletInfo" }

func (w *WalletInfo) Description() string {
	return "View detailed balance and holdings for any wallet address"
}

func (w *WalletInfo) Parameters() map[string]string {
	return map[string]string{
		"address": "Wallet address to inspect, leave empty to use your own wallet",
	}
}

func (w *WalletInfo) Execute(ctx context.Context, args map[string]string) Result {
	address := strings.TrimSpace(args["address"])
	if address == "" || address == "null" {
		address = w.client.Account().Hex()
	}
	if !web3.IsHexAddress(address) {
		return failure(xerrors.New(xerrors.CodeInvalidAddress, "钱包地址格式不合法: "+address), "")
	}
	owner := common.HexToAddress(address)

	native, err := w.client.BalanceAt(ctx, owner)
	if err != nil {
		return failure(xerrors.Wrap(xerrors.CodeUnknown, err, "查询余额失败"), "")
	}

	var lines []string
	for _, token := range wellKnownTokens {
		balance, decimals, err := w.tokenBalance(ctx, token.Address, owner)
		if err != nil {
			continue
		}
		if balance.Sign() == 0 {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", token.Symbol, web3.FormatUnits(balance, decimals)))
	}

	text := fmt.Sprintf("Native Balance (BNB): %s\n\nToken Balances:\n%s\n\nWallet Address: %s",
		web3.FormatUnits(native, 18), strings.Join(lines, "\n"), address)
	return Result{Text: text}
}

func (w *WalletInfo) tokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, uint8, error) {
	decValues, err := w.client.ReadCall(ctx, token, bep20ABI, "decimals")
	if err != nil {
		return nil, 0, err
	}
	decimals, ok := decValues[0].(uint8)
	if !ok {
		return nil, 0, fmt.Errorf("decimals 返回值类型异常")
	}

	balValues, err := w.client.ReadCall(ctx, token, bep20ABI, "balanceOf", owner)
	if err != nil {
		return nil, 0, err
	}
	balance, ok := balValues[0].(*big.Int)
	if !ok {
		return nil, 0, fmt.Errorf("balanceOf 返回值类型异常")
	}
	return balance, decimals, nil
}
