package actions

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/TermiX-official/BscA2A-agent/internal/executor"
	"github.com/TermiX-official/BscA2A-agent/internal/security"
	"github.com/TermiX-official/BscA2A-agent/internal/storage/mysql"
	"github.com/TermiX-official/BscA2A-agent/internal/web3/web3test"

	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
)

var (
	recipient = "0x9999999999999999999999999999999999999999"
	memeToken = common.HexToAddress("0x8888888888888888888888888888888888888888")
)

func newTestExecutor(client *web3test.FakeClient) *executor.Executor {
	return executor.New(client, nil, executor.Config{
		ConfirmAttempts: 5,
		ConfirmDelay:    time.Millisecond,
	})
}

func TestWalletInfoDefaultsToOwnAccount(t *testing.T) {
	client := web3test.NewFakeClient()
	client.Balances[client.AccountAddr.Hex()] = big.NewInt(2e18)
	for _, token := range wellKnownTokens {
		client.Reads[web3test.ReadKey(token.Address, "decimals")] = []any{uint8(18)}
		client.Reads[web3test.ReadKey(token.Address, "balanceOf")] = []any{big.NewInt(0)}
	}
	client.Reads[web3test.ReadKey(wellKnownTokens[0].Address, "balanceOf")] = []any{big.NewInt(5e18)}

	result := NewWalletInfo(client).Execute(context.Background(), map[string]string{})
	if result.IsError {
		t.Fatalf("余额查询不应失败: %s", result.Text)
	}
	if !strings.Contains(result.Text, "Native Balance (BNB): 2") {
		t.Fatalf("缺少原生余额: %s", result.Text)
	}
	if !strings.Contains(result.Text, "USDT: 5") {
		t.Fatalf("缺少代币余额: %s", result.Text)
	}
	if strings.Contains(result.Text, "CAKE") {
		t.Fatalf("零余额代币不应出现: %s", result.Text)
	}
	if !strings.Contains(result.Text, client.AccountAddr.Hex()) {
		t.Fatalf("缺少钱包地址: %s", result.Text)
	}
}

func TestWalletInfoRejectsBadAddress(t *testing.T) {
	client := web3test.NewFakeClient()
	result := NewWalletInfo(client).Execute(context.Background(), map[string]string{"address": "0x123"})
	if !result.IsError {
		t.Fatal("非法地址必须失败")
	}
}

func TestSendNative(t *testing.T) {
	client := web3test.NewFakeClient()
	handler := NewSendNative(newTestExecutor(client))

	result := handler.Execute(context.Background(), map[string]string{
		"recipientAddress": recipient,
		"amount":           "0.5",
	})
	if result.IsError {
		t.Fatalf("转账不应失败: %s", result.Text)
	}
	req := client.LastSubmitted()
	if req.To != common.HexToAddress(recipient) {
		t.Fatalf("收款人错误: %s", req.To)
	}
	if req.Value.Cmp(big.NewInt(5e17)) != 0 {
		t.Fatalf("金额换算错误: %s", req.Value)
	}
	if req.ABI != "" {
		t.Fatal("原生转账不应携带 ABI")
	}
	if result.URL == "" {
		t.Fatal("成功结局必须携带浏览器链接")
	}
}

func TestSendNativeInvalidAddress(t *testing.T) {
	client := web3test.NewFakeClient()
	handler := NewSendNative(newTestExecutor(client))

	result := handler.Execute(context.Background(), map[string]string{
		"recipientAddress": "not-an-address",
		"amount":           "0.5",
	})
	if !result.IsError {
		t.Fatal("非法地址必须失败")
	}
	if len(client.Submitted) != 0 {
		t.Fatal("校验失败不应提交交易")
	}
}

func TestSendBEP20ReadsDecimals(t *testing.T) {
	client := web3test.NewFakeClient()
	token := common.HexToAddress("0x7777777777777777777777777777777777777777")
	client.Reads[web3test.ReadKey(token, "decimals")] = []any{uint8(6)}
	handler := NewSendBEP20(client, newTestExecutor(client))

	result := handler.Execute(context.Background(), map[string]string{
		"recipientAddress": recipient,
		"amount":           "12.5",
		"address":          token.Hex(),
	})
	if result.IsError {
		t.Fatalf("转账不应失败: %s", result.Text)
	}
	req := client.LastSubmitted()
	if req.Method != "transfer" || req.To != token {
		t.Fatalf("unexpected request: %+v", req)
	}
	parsed, _ := req.Args[1].(*big.Int)
	if parsed.Cmp(big.NewInt(12_500_000)) != 0 {
		t.Fatalf("金额应按 6 位精度换算, got %s", parsed)
	}
	if req.GasLimit != bep20TransferGasLimit {
		t.Fatalf("gas 上限应固定, got %d", req.GasLimit)
	}
}

func TestBuyMemeTokenByBNBAmount(t *testing.T) {
	client := web3test.NewFakeClient()
	client.Reads[web3test.ReadKey(FourMemeTryBuyHelper, "tryBuy")] = []any{
		common.Address{}, common.Address{},
		big.NewInt(1000), big.NewInt(0), big.NewInt(0),
		big.NewInt(200), big.NewInt(0), big.NewInt(0),
	}
	handler := NewBuyMemeToken(client, newTestExecutor(client))

	result := handler.Execute(context.Background(), map[string]string{
		"token":    memeToken.Hex(),
		"bnbValue": "0.000000000000000200",
	})
	if result.IsError {
		t.Fatalf("买入不应失败: %s", result.Text)
	}
	req := client.LastSubmitted()
	funds, _ := req.Args[1].(*big.Int)
	minOut, _ := req.Args[2].(*big.Int)
	if funds.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("金额驱动买入投入不应调整, got %s", funds)
	}
	if minOut.Cmp(big.NewInt(800)) != 0 {
		t.Fatalf("金额驱动买入最小产出应为 80%%, got %s", minOut)
	}
	if req.Value.Cmp(funds) != 0 {
		t.Fatalf("附带金额应等于投入, got %s", req.Value)
	}
}

func TestBuyMemeTokenByTokenAmount(t *testing.T) {
	client := web3test.NewFakeClient()
	client.Reads[web3test.ReadKey(FourMemeTryBuyHelper, "tryBuy")] = []any{
		common.Address{}, common.Address{},
		big.NewInt(1000), big.NewInt(0), big.NewInt(0),
		big.NewInt(200), big.NewInt(0), big.NewInt(0),
	}
	handler := NewBuyMemeToken(client, newTestExecutor(client))

	result := handler.Execute(context.Background(), map[string]string{
		"token":      memeToken.Hex(),
		"tokenValue": "0.000000000000001000",
	})
	if result.IsError {
		t.Fatalf("买入不应失败: %s", result.Text)
	}
	req := client.LastSubmitted()
	funds, _ := req.Args[1].(*big.Int)
	minOut, _ := req.Args[2].(*big.Int)
	if minOut.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("数量驱动买入产出不应调整, got %s", minOut)
	}
	if funds.Cmp(big.NewInt(210)) != 0 {
		t.Fatalf("数量驱动买入投入应为 105%%, got %s", funds)
	}
}

func TestBuyMemeTokenRequiresAmount(t *testing.T) {
	client := web3test.NewFakeClient()
	handler := NewBuyMemeToken(client, newTestExecutor(client))

	result := handler.Execute(context.Background(), map[string]string{"token": memeToken.Hex()})
	if !result.IsError {
		t.Fatal("两个金额都为零必须失败")
	}
}

func TestSellMemeTokenApprovesWhenNeeded(t *testing.T) {
	client := web3test.NewFakeClient()
	client.Reads[web3test.ReadKey(memeToken, "allowance")] = []any{big.NewInt(0)}
	handler := NewSellMemeToken(newTestExecutor(client))

	result := handler.Execute(context.Background(), map[string]string{
		"token":      memeToken.Hex(),
		"tokenValue": "1",
	})
	if result.IsError {
		t.Fatalf("卖出不应失败: %s", result.Text)
	}
	if len(client.Submitted) != 2 {
		t.Fatalf("期望先授权后卖出, submitted=%d", len(client.Submitted))
	}
	if client.Submitted[0].Method != "approve" || client.Submitted[1].Method != "sellToken" {
		t.Fatalf("交易顺序错误: %s, %s", client.Submitted[0].Method, client.Submitted[1].Method)
	}
}

func TestSellMemeTokenSkipsApproveWithAllowance(t *testing.T) {
	client := web3test.NewFakeClient()
	client.Reads[web3test.ReadKey(memeToken, "allowance")] = []any{web3test.Wei("10", 18)}
	handler := NewSellMemeToken(newTestExecutor(client))

	result := handler.Execute(context.Background(), map[string]string{
		"token":      memeToken.Hex(),
		"tokenValue": "1",
	})
	if result.IsError {
		t.Fatalf("卖出不应失败: %s", result.Text)
	}
	if len(client.Submitted) != 1 {
		t.Fatalf("额度充足不应再授权, submitted=%d", len(client.Submitted))
	}
}

func TestSellMemeTokenRevertKeepsTxURL(t *testing.T) {
	client := web3test.NewFakeClient()
	client.Reads[web3test.ReadKey(memeToken, "allowance")] = []any{web3test.Wei("10", 18)}
	client.ReceiptStatus = coretypes.ReceiptStatusFailed
	handler := NewSellMemeToken(newTestExecutor(client))

	result := handler.Execute(context.Background(), map[string]string{
		"token":      memeToken.Hex(),
		"tokenValue": "1",
	})
	if !result.IsError {
		t.Fatal("回滚必须失败")
	}
	if result.URL == "" {
		t.Fatal("已上链的失败结局应保留浏览器链接")
	}
}

func TestRemoveLiquidityValidatesPercent(t *testing.T) {
	client := web3test.NewFakeClient()
	handler := NewRemoveLiquidity(client, newTestExecutor(client))

	for _, percent := range []string{"0", "101", "abc", "-5"} {
		result := handler.Execute(context.Background(), map[string]string{
			"positionId": "42",
			"percent":    percent,
		})
		if !result.IsError {
			t.Fatalf("比例 %s 必须被拒绝", percent)
		}
	}
	if len(client.Submitted) != 0 {
		t.Fatal("校验失败不应提交交易")
	}
}

func TestRemoveLiquidityScalesByPercent(t *testing.T) {
	client := web3test.NewFakeClient()
	client.Reads[web3test.ReadKey(PancakeV3PositionManager, "positions")] = []any{
		big.NewInt(0), common.Address{}, common.Address{}, common.Address{},
		big.NewInt(2500), big.NewInt(0), big.NewInt(0),
		big.NewInt(1000), big.NewInt(0), big.NewInt(0), big.NewInt(0), big.NewInt(0),
	}
	handler := NewRemoveLiquidity(client, newTestExecutor(client))

	result := handler.Execute(context.Background(), map[string]string{
		"positionId": "42",
		"percent":    "25",
	})
	if result.IsError {
		t.Fatalf("移除不应失败: %s", result.Text)
	}
	req := client.LastSubmitted()
	if req.Method != "decreaseLiquidity" {
		t.Fatalf("unexpected method: %s", req.Method)
	}
}

func TestSwapQuotesBeforeSubmitting(t *testing.T) {
	client := web3test.NewFakeClient()
	tokenIn := wellKnownTokens[0].Address
	client.Reads[web3test.ReadKey(tokenIn, "decimals")] = []any{uint8(18)}
	client.Reads[web3test.ReadKey(tokenIn, "allowance")] = []any{web3test.Wei("100", 18)}
	client.Reads[web3test.ReadKey(PancakeV2Router, "getAmountsOut")] = []any{
		[]*big.Int{web3test.Wei("1", 18), big.NewInt(5000)},
	}
	handler := NewPancakeSwap(client, newTestExecutor(client))

	result := handler.Execute(context.Background(), map[string]string{
		"inputToken":  tokenIn.Hex(),
		"outputToken": WBNB.Hex(),
		"amount":      "1",
	})
	if result.IsError {
		t.Fatalf("兑换不应失败: %s", result.Text)
	}
	req := client.LastSubmitted()
	if req.Method != "swapExactTokensForTokens" {
		t.Fatalf("unexpected method: %s", req.Method)
	}
	minOut, _ := req.Args[1].(*big.Int)
	if minOut.Cmp(big.NewInt(4000)) != 0 {
		t.Fatalf("最小产出应收紧到 80%%, got %s", minOut)
	}
	path, _ := req.Args[2].([]common.Address)
	if len(path) != 2 {
		t.Fatalf("与 WBNB 直接成路径, got %v", path)
	}
}

func TestSwapRoutesThroughWBNB(t *testing.T) {
	tokenIn := wellKnownTokens[0].Address
	tokenOut := wellKnownTokens[3].Address
	path := swapPath(tokenIn, tokenOut)
	if len(path) != 3 || path[1] != WBNB {
		t.Fatalf("非 WBNB 对手必须经 WBNB 中转, got %v", path)
	}
}

func TestRegistryDispatch(t *testing.T) {
	client := web3test.NewFakeClient()
	registry := NewRegistry()
	registry.Register(NewWalletInfo(client))
	registry.Register(NewSendNative(newTestExecutor(client)))

	if _, ok := registry.Get("getWalletInfo"); !ok {
		t.Fatal("注册后应能取到动作")
	}
	if _, ok := registry.Get("unknown"); ok {
		t.Fatal("未注册的动作不应命中")
	}
	names := registry.Names()
	if len(names) != 2 || names[0] != "getWalletInfo" {
		t.Fatalf("动作名应按字典序: %v", names)
	}
}

func TestAddLiquidityJournalsBothApprovals(t *testing.T) {
	client := web3test.NewFakeClient()
	token0 := common.HexToAddress("0x7777777777777777777777777777777777777777")
	token1 := common.HexToAddress("0x8888888888888888888888888888888888888888")
	for _, token := range []common.Address{token0, token1} {
		client.Reads[web3test.ReadKey(token, "decimals")] = []any{uint8(18)}
		client.Reads[web3test.ReadKey(token, "allowance")] = []any{big.NewInt(0)}
	}
	journal, err := mysql.NewMemoryTxJournal(t.TempDir())
	if err != nil {
		t.Fatalf("创建流水失败: %v", err)
	}
	exec := executor.New(client, journal, executor.Config{
		ConfirmAttempts: 5,
		ConfirmDelay:    time.Millisecond,
	})

	result := NewAddLiquidity(client, exec).Execute(context.Background(), map[string]string{
		"taskId":       "task-9",
		"token0":       token0.Hex(),
		"token1":       token1.Hex(),
		"token0Amount": "1",
		"token1Amount": "2",
	})
	if result.IsError {
		t.Fatalf("添加流动性不应失败: %s", result.Text)
	}
	if len(client.Submitted) != 3 {
		t.Fatalf("应提交两笔授权加一笔主交易, submitted=%d", len(client.Submitted))
	}

	records, err := journal.ListLatest(context.Background(), 10)
	if err != nil {
		t.Fatalf("读取流水失败: %v", err)
	}
	actions := map[string]bool{}
	for _, record := range records {
		if record.TaskID != "task-9" {
			t.Fatalf("流水必须携带任务 ID, got %+v", record)
		}
		actions[record.Action] = true
	}
	if !actions["addLiquidity.approve"] || !actions["addLiquidity"] {
		t.Fatalf("流水缺少授权或主交易: %v", actions)
	}
}

func TestTokenSecurityCheckFormatsProfile(t *testing.T) {
	token := "0xAbCd000000000000000000000000000000000001"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"code": 1, "message": "OK",
			"result": map[string]any{
				strings.ToLower(token): map[string]string{"is_honeypot": "0"},
			},
		})
	}))
	defer server.Close()

	handler := NewTokenSecurityCheck(security.NewClient(security.Config{BaseURL: server.URL}))
	result := handler.Execute(context.Background(), map[string]string{"tokenAddress": token})
	if result.IsError {
		t.Fatalf("检测不应失败: %s", result.Text)
	}
	if !strings.Contains(result.Text, "Security check successful for "+token) {
		t.Fatalf("缺少结果前缀: %s", result.Text)
	}
	if !strings.Contains(result.Text, "\n  \"is_honeypot\": \"0\"") {
		t.Fatalf("画像应缩进展示: %s", result.Text)
	}
}

func TestTokenSecurityCheckRejectsBadAddress(t *testing.T) {
	handler := NewTokenSecurityCheck(security.NewClient(security.Config{}))
	result := handler.Execute(context.Background(), map[string]string{"tokenAddress": "0x123"})
	if !result.IsError {
		t.Fatal("非法地址必须失败")
	}
}
