package actions

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	xerrors "github.com/TermiX-official/BscA2A-agent/internal/errors"
	"github.com/TermiX-official/BscA2A-agent/internal/executor"
	"github.com/TermiX-official/BscA2A-agent/internal/web3"

	"github.com/ethereum/go-ethereum/common"
)

// 全量程 V3 头寸使用的费率档与 tick 边界（0.25% 档的 tickSpacing 为 50）。
const (
	v3FeeMedium      = 2500
	v3FullRangeTick  = 887250
	deadlineInterval = 20 * time.Minute
)

// PancakeSwap 在 V2 路由上做代币兑换：先询价，再授权，最后成交。
type PancakeSwap struct {
	client web3.Client
	exec   *executor.Executor
}

// NewPancakeSwap 创建兑换动作。
func NewPancakeSwap(client web3.Client, exec *executor.Executor) *PancakeSwap {
	return &PancakeSwap{client: client, exec: exec}
}

func (p *PancakeSwap) Name() string { return "pancakeSwapTokenExchange" }

func (p *PancakeSwap) Description() string {
	return "Exchange tokens on BNBChain using PancakeSwap DEX"
}

func (p *PancakeSwap) Parameters() map[string]string {
	return map[string]string{
		"inputToken":  "The address of the input token",
		"outputToken": "The address of the output token",
		"amount":      "Amount of input token to swap, human readable",
	}
}

func (p *PancakeSwap) Execute(ctx context.Context, args map[string]string) Result {
	inputToken, err := requireArg(args, "inputToken")
	if err != nil {
		return failure(err, "")
	}
	outputToken, err := requireArg(args, "outputToken")
	if err != nil {
		return failure(err, "")
	}
	amount, err := requireArg(args, "amount")
	if err != nil {
		return failure(err, "")
	}
	if !web3.IsHexAddress(inputToken) || !web3.IsHexAddress(outputToken) {
		return failure(xerrors.New(xerrors.CodeInvalidAddress, "代币地址格式不合法"), "")
	}
	tokenIn := common.HexToAddress(inputToken)
	tokenOut := common.HexToAddress(outputToken)

	decimals, err := p.tokenDecimals(ctx, tokenIn)
	if err != nil {
		return failure(err, "")
	}
	amountIn, err := web3.ParseUnits(amount, decimals)
	if err != nil {
		return failure(xerrors.Wrap(xerrors.CodeInvalidInput, err, "兑换金额不合法"), "")
	}

	path := swapPath(tokenIn, tokenOut)
	values, err := p.client.ReadCall(ctx, PancakeV2Router, pancakeRouterABI, "getAmountsOut", amountIn, path)
	if err != nil {
		return failure(xerrors.Wrap(xerrors.CodeUnknown, err, "兑换询价失败"), "")
	}
	amounts, ok := values[0].([]*big.Int)
	if !ok || len(amounts) < 2 {
		return failure(xerrors.New(xerrors.CodeUnknown, "询价返回值类型异常"), "")
	}
	quoted := amounts[len(amounts)-1]
	minOut, _ := p.exec.AdjustBuyAmounts(executor.BuyQuote{
		EstimatedAmount: quoted,
		FundsRequired:   amountIn,
	}, false)

	outcome, err := p.exec.ExecuteWithApproval(ctx,
		executor.ApprovalSpec{Token: tokenIn, Spender: PancakeV2Router, Amount: amountIn},
		executor.CallSpec{
			TaskID: args["taskId"],
			Action: "pancakeSwap",
			Request: web3.TxRequest{
				To:     PancakeV2Router,
				ABI:    pancakeRouterABI,
				Method: "swapExactTokensForTokens",
				Args:   []any{amountIn, minOut, path, p.client.Account(), deadline()},
			},
		})
	if err != nil {
		return failure(err, outcomeURL(outcome))
	}
	return Result{
		Text: fmt.Sprintf("PancakeSwap transaction sent successfully.\n\n%s", outcome.TxURL),
		URL:  outcome.TxURL,
	}
}

func (p *PancakeSwap) tokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	values, err := p.client.ReadCall(ctx, token, bep20ABI, "decimals")
	if err != nil {
		return 0, xerrors.Wrap(xerrors.CodeUnknown, err, "读取代币精度失败")
	}
	decimals, ok := values[0].(uint8)
	if !ok {
		return 0, xerrors.New(xerrors.CodeUnknown, "代币精度返回值类型异常")
	}
	return decimals, nil
}

// swapPath 在两个代币之间直接成路径，任一侧不是 WBNB 时经 WBNB 中转。
func swapPath(tokenIn, tokenOut common.Address) []common.Address {
	if tokenIn == WBNB || tokenOut == WBNB {
		return []common.Address{tokenIn, tokenOut}
	}
	return []common.Address{tokenIn, WBNB, tokenOut}
}

func deadline() *big.Int {
	return big.NewInt(time.Now().Add(deadlineInterval).Unix())
}

// AddLiquidity 在 PancakeSwap V3 上铸造一个全量程头寸。
type AddLiquidity struct {
	client web3.Client
	exec   *executor.Executor
}

// NewAddLiquidity 创建添加流动性动作。
func NewAddLiquidity(client web3.Client, exec *executor.Executor) *AddLiquidity {
	return &AddLiquidity{client: client, exec: exec}
}

func (a *AddLiquidity) Name() string { return "addPancakeSwapLiquidity" }

func (a *AddLiquidity) Description() string {
	return "Provide liquidity to PancakeSwap trading pairs"
}

func (a *AddLiquidity) Parameters() map[string]string {
	return map[string]string{
		"token0":       "First token contract address",
		"token1":       "Second token contract address",
		"token0Amount": "Amount of token0 to add",
		"token1Amount": "Amount of token1 to add",
	}
}

func (a *AddLiquidity) Execute(ctx context.Context, args map[string]string) Result {
	token0Arg, err := requireArg(args, "token0")
	if err != nil {
		return failure(err, "")
	}
	token1Arg, err := requireArg(args, "token1")
	if err != nil {
		return failure(err, "")
	}
	amount0Arg, err := requireArg(args, "token0Amount")
	if err != nil {
		return failure(err, "")
	}
	amount1Arg, err := requireArg(args, "token1Amount")
	if err != nil {
		return failure(err, "")
	}
	if !web3.IsHexAddress(token0Arg) || !web3.IsHexAddress(token1Arg) {
		return failure(xerrors.New(xerrors.CodeInvalidAddress, "代币地址格式不合法"), "")
	}

	token0 := common.HexToAddress(token0Arg)
	token1 := common.HexToAddress(token1Arg)

	amount0, err := a.parseAmount(ctx, token0, amount0Arg)
	if err != nil {
		return failure(err, "")
	}
	amount1, err := a.parseAmount(ctx, token1, amount1Arg)
	if err != nil {
		return failure(err, "")
	}

	// 头寸管理合约要求 token0 < token1。
	if bytes.Compare(token0.Bytes(), token1.Bytes()) > 0 {
		token0, token1 = token1, token0
		amount0, amount1 = amount1, amount0
	}

	// 两侧都要授权给头寸管理合约。
	if err := a.exec.EnsureAllowance(ctx,
		executor.ApprovalSpec{Token: token1, Spender: PancakeV3PositionManager, Amount: amount1},
		args["taskId"], "addLiquidity"); err != nil {
		return failure(err, "")
	}

	mintParams := struct {
		Token0         common.Address
		Token1         common.Address
		Fee            *big.Int
		TickLower      *big.Int
		TickUpper      *big.Int
		Amount0Desired *big.Int
		Amount1Desired *big.Int
		Amount0Min     *big.Int
		Amount1Min     *big.Int
		Recipient      common.Address
		Deadline       *big.Int
	}{
		Token0:         token0,
		Token1:         token1,
		Fee:            big.NewInt(v3FeeMedium),
		TickLower:      big.NewInt(-v3FullRangeTick),
		TickUpper:      big.NewInt(v3FullRangeTick),
		Amount0Desired: amount0,
		Amount1Desired: amount1,
		Amount0Min:     big.NewInt(0),
		Amount1Min:     big.NewInt(0),
		Recipient:      a.client.Account(),
		Deadline:       deadline(),
	}

	outcome, err := a.exec.ExecuteWithApproval(ctx,
		executor.ApprovalSpec{Token: token0, Spender: PancakeV3PositionManager, Amount: amount0},
		executor.CallSpec{
			TaskID: args["taskId"],
			Action: "addLiquidity",
			Request: web3.TxRequest{
				To:     PancakeV3PositionManager,
				ABI:    positionManagerABI,
				Method: "mint",
				Args:   []any{mintParams},
			},
		})
	if err != nil {
		return failure(err, outcomeURL(outcome))
	}
	return Result{
		Text: fmt.Sprintf("Added liquidity to PancakeSwap successfully. %s", outcome.TxURL),
		URL:  outcome.TxURL,
	}
}

func (a *AddLiquidity) parseAmount(ctx context.Context, token common.Address, amount string) (*big.Int, error) {
	values, err := a.client.ReadCall(ctx, token, bep20ABI, "decimals")
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeUnknown, err, "读取代币精度失败")
	}
	decimals, ok := values[0].(uint8)
	if !ok {
		return nil, xerrors.New(xerrors.CodeUnknown, "代币精度返回值类型异常")
	}
	parsed, err := web3.ParseUnits(amount, decimals)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidInput, err, "流动性数量不合法")
	}
	return parsed, nil
}

// MyPositions 列出代理钱包在 V3 上的活跃头寸。
type MyPositions struct {
	client web3.Client
}

// NewMyPositions 创建头寸查询动作。
func NewMyPositions(client web3.Client) *MyPositions {
	return &MyPositions{client: client}
}

func (m *MyPositions) Name() string { return "viewPancakeSwapPositions" }

func (m *MyPositions) Description() string {
	return "View your active liquidity positions on PancakeSwap"
}

func (m *MyPositions) Parameters() map[string]string { return map[string]string{} }

func (m *MyPositions) Execute(ctx context.Context, _ map[string]string) Result {
	owner := m.client.Account()

	values, err := m.client.ReadCall(ctx, PancakeV3PositionManager, positionManagerABI, "balanceOf", owner)
	if err != nil {
		return failure(xerrors.Wrap(xerrors.CodeUnknown, err, "查询头寸数量失败"), "")
	}
	count, ok := values[0].(*big.Int)
	if !ok {
		return failure(xerrors.New(xerrors.CodeUnknown, "头寸数量返回值类型异常"), "")
	}

	var lines []string
	for i := int64(0); i < count.Int64(); i++ {
		idValues, err := m.client.ReadCall(ctx, PancakeV3PositionManager, positionManagerABI,
			"tokenOfOwnerByIndex", owner, big.NewInt(i))
		if err != nil {
			return failure(xerrors.Wrap(xerrors.CodeUnknown, err, "枚举头寸失败"), "")
		}
		tokenID, ok := idValues[0].(*big.Int)
		if !ok {
			continue
		}

		position, err := m.client.ReadCall(ctx, PancakeV3PositionManager, positionManagerABI,
			"positions", tokenID)
		if err != nil || len(position) < 8 {
			continue
		}
		token0, _ := position[2].(common.Address)
		token1, _ := position[3].(common.Address)
		liquidity, _ := position[7].(*big.Int)
		if liquidity == nil || liquidity.Sign() == 0 {
			continue
		}
		lines = append(lines, fmt.Sprintf("#%s %s / %s liquidity=%s",
			tokenID, token0.Hex(), token1.Hex(), liquidity))
	}

	if len(lines) == 0 {
		return Result{Text: "Active PancakeSwap positions:\n\nnone"}
	}
	return Result{Text: "Active PancakeSwap positions:\n\n" + strings.Join(lines, "\n")}
}

// RemoveLiquidity 按百分比缩减一个 V3 头寸。
type RemoveLiquidity struct {
	client web3.Client
	exec   *executor.Executor
}

// NewRemoveLiquidity 创建移除流动性动作。
func NewRemoveLiquidity(client web3.Client, exec *executor.Executor) *RemoveLiquidity {
	return &RemoveLiquidity{client: client, exec: exec}
}

func (r *RemoveLiquidity) Name() string { return "removePancakeSwapLiquidity" }

func (r *RemoveLiquidity) Description() string {
	return "Withdraw your liquidity from PancakeSwap V3 pools"
}

func (r *RemoveLiquidity) Parameters() map[string]string {
	return map[string]string{
		"positionId": "Position ID to withdraw liquidity from",
		"percent":    "Percentage of liquidity to withdraw, 1-100",
	}
}

func (r *RemoveLiquidity) Execute(ctx context.Context, args map[string]string) Result {
	positionArg, err := requireArg(args, "positionId")
	if err != nil {
		return failure(err, "")
	}
	percentArg, err := requireArg(args, "percent")
	if err != nil {
		return failure(err, "")
	}

	tokenID, ok := new(big.Int).SetString(positionArg, 10)
	if !ok {
		return failure(xerrors.New(xerrors.CodeInvalidInput, "头寸编号不合法: "+positionArg), "")
	}
	percent, err := strconv.ParseInt(percentArg, 10, 64)
	if err != nil || percent < 1 || percent > 100 {
		return failure(xerrors.New(xerrors.CodeInvalidInput, "提取比例必须在 1 到 100 之间"), "")
	}

	position, err := r.client.ReadCall(ctx, PancakeV3PositionManager, positionManagerABI, "positions", tokenID)
	if err != nil {
		return failure(xerrors.Wrap(xerrors.CodeUnknown, err, "查询头寸失败"), "")
	}
	if len(position) < 8 {
		return failure(xerrors.New(xerrors.CodeUnknown, "头寸返回值类型异常"), "")
	}
	liquidity, ok := position[7].(*big.Int)
	if !ok || liquidity.Sign() == 0 {
		return failure(xerrors.New(xerrors.CodeInvalidInput, "头寸没有可提取的流动性"), "")
	}

	share := web3.ApplyPercent(liquidity, percent)
	decreaseParams := struct {
		TokenId    *big.Int
		Liquidity  *big.Int
		Amount0Min *big.Int
		Amount1Min *big.Int
		Deadline   *big.Int
	}{
		TokenId:    tokenID,
		Liquidity:  share,
		Amount0Min: big.NewInt(0),
		Amount1Min: big.NewInt(0),
		Deadline:   deadline(),
	}

	outcome, err := r.exec.Execute(ctx, executor.CallSpec{
		TaskID: args["taskId"],
		Action: "removeLiquidity",
		Request: web3.TxRequest{
			To:     PancakeV3PositionManager,
			ABI:    positionManagerABI,
			Method: "decreaseLiquidity",
			Args:   []any{decreaseParams},
		},
	})
	if err != nil {
		return failure(err, outcomeURL(outcome))
	}
	return Result{
		Text: fmt.Sprintf("Successfully removed liquidity from PancakeSwap.\n\n%s", outcome.TxURL),
		URL:  outcome.TxURL,
	}
}
