package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	xerrors "github.com/TermiX-official/BscA2A-agent/internal/errors"
	"github.com/TermiX-official/BscA2A-agent/internal/executor"
	"github.com/TermiX-official/BscA2A-agent/internal/fourmeme"
	"github.com/TermiX-official/BscA2A-agent/internal/web3"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// CreateMemeToken 在 four.meme 上发行新代币：平台注册元数据拿到
// 上链参数，预售金额追加预留空间后调用发币合约，最后从回执事件里
// 解析新代币地址。
type CreateMemeToken struct {
	exec *executor.Executor
	meme *fourmeme.Client
}

// NewCreateMemeToken 创建发币动作。
func NewCreateMemeToken(exec *executor.Executor, meme *fourmeme.Client) *CreateMemeToken {
	return &CreateMemeToken{exec: exec, meme: meme}
}

func (c *CreateMemeToken) Name() string { return "createFourMemeToken" }

func (c *CreateMemeToken) Description() string {
	return "Launch a new meme token on four.meme platform"
}

func (c *CreateMemeToken) Parameters() map[string]string {
	return map[string]string{
		"name":        "Token name",
		"shortName":   "Short name",
		"imgUrl":      "Image URL",
		"preSale":     "Presale amount in BNB",
		"desc":        "Description",
		"twitterUrl":  "Twitter link, optional",
		"telegramUrl": "Telegram link, optional",
		"webUrl":      "Website link, optional",
	}
}

func (c *CreateMemeToken) Execute(ctx context.Context, args map[string]string) Result {
	name, err := requireArg(args, "name")
	if err != nil {
		return failure(err, "")
	}
	shortName, err := requireArg(args, "shortName")
	if err != nil {
		return failure(err, "")
	}
	preSale, err := requireArg(args, "preSale")
	if err != nil {
		return failure(err, "")
	}

	preSaleWei, err := web3.ParseUnits(preSale, 18)
	if err != nil {
		return failure(xerrors.Wrap(xerrors.CodeInvalidInput, err, "预售金额不合法"), "")
	}

	data, err := c.meme.CreateToken(ctx, fourmeme.CreateTokenRequest{
		Name:        name,
		ShortName:   shortName,
		ImgURL:      args["imgUrl"],
		PreSale:     preSale,
		Desc:        args["desc"],
		TwitterURL:  args["twitterUrl"],
		TelegramURL: args["telegramUrl"],
		WebURL:      args["webUrl"],
	})
	if err != nil {
		return failure(xerrors.Wrap(xerrors.CodeExternalService, err, "four.meme 平台调用失败"), "")
	}

	createArg, err := hexutil.Decode(data.CreateArg)
	if err != nil {
		return failure(xerrors.Wrap(xerrors.CodeExternalService, err, "发币参数格式异常"), "")
	}
	signature, err := hexutil.Decode(data.Signature)
	if err != nil {
		return failure(xerrors.Wrap(xerrors.CodeExternalService, err, "发币签名格式异常"), "")
	}

	outcome, err := c.exec.Execute(ctx, executor.CallSpec{
		TaskID: args["taskId"],
		Action: "createFourMemeToken",
		Request: web3.TxRequest{
			To:     FourMemeTokenManager,
			ABI:    fourMemeManagerABI,
			Method: "createToken",
			Args:   []any{createArg, signature},
			Value:  c.exec.PresaleValue(preSaleWei),
		},
	})
	if err != nil {
		return failure(err, outcomeURL(outcome))
	}

	tokenAddr, err := tokenFromReceipt(outcome)
	if err != nil {
		return failure(xerrors.Wrap(xerrors.CodeUnknown, err, "回执中找不到发币事件"), outcome.TxURL)
	}

	tokenURL := "https://four.meme/token/" + strings.ToLower(tokenAddr.Hex())
	return Result{
		Text: fmt.Sprintf("Token created successfully!\n%s", tokenURL),
		URL:  tokenURL,
	}
}

// tokenFromReceipt 从发币回执里解析 TokenCreate 事件携带的代币地址。
func tokenFromReceipt(outcome *executor.Outcome) (common.Address, error) {
	parsed, err := abi.JSON(strings.NewReader(tokenCreateEventABI))
	if err != nil {
		return common.Address{}, err
	}
	topic := common.HexToHash(tokenCreateTopic)

	for _, entry := range outcome.Receipt.Logs {
		if len(entry.Topics) == 0 || entry.Topics[0] != topic {
			continue
		}
		values, err := parsed.Unpack("TokenCreate", entry.Data)
		if err != nil || len(values) < 2 {
			continue
		}
		token, ok := values[1].(common.Address)
		if !ok {
			continue
		}
		return token, nil
	}
	return common.Address{}, fmt.Errorf("token creation event not found")
}

// BuyMemeToken 买入 four.meme 上的代币。先用 tryBuy 预估，再按滑点
// 策略调整后调用 buyTokenAMAP。
type BuyMemeToken struct {
	client web3.Client
	exec   *executor.Executor
}

// NewBuyMemeToken 创建买入动作。
func NewBuyMemeToken(client web3.Client, exec *executor.Executor) *BuyMemeToken {
	return &BuyMemeToken{client: client, exec: exec}
}

func (b *BuyMemeToken) Name() string { return "buyMemeToken" }

func (b *BuyMemeToken) Description() string {
	return "Purchase meme tokens on BNBChain"
}

func (b *BuyMemeToken) Parameters() map[string]string {
	return map[string]string{
		"token":      "The address of the meme token",
		"tokenValue": "The amount of tokens you want to buy, 0 when buying by BNB amount",
		"bnbValue":   "The amount of BNB you're using to buy, 0 when buying by token amount",
	}
}

func (b *BuyMemeToken) Execute(ctx context.Context, args map[string]string) Result {
	tokenArg, err := requireArg(args, "token")
	if err != nil {
		return failure(err, "")
	}
	if !web3.IsHexAddress(tokenArg) {
		return failure(xerrors.New(xerrors.CodeInvalidAddress, "代币地址格式不合法: "+tokenArg), "")
	}
	token := common.HexToAddress(tokenArg)

	tokenValue := strings.TrimSpace(args["tokenValue"])
	if tokenValue == "" {
		tokenValue = "0"
	}
	bnbValue := strings.TrimSpace(args["bnbValue"])
	if bnbValue == "" {
		bnbValue = "0"
	}

	tokenAmount, err := web3.ParseUnits(tokenValue, 18)
	if err != nil {
		return failure(xerrors.Wrap(xerrors.CodeInvalidInput, err, "代币数量不合法"), "")
	}
	bnbAmount, err := web3.ParseUnits(bnbValue, 18)
	if err != nil {
		return failure(xerrors.Wrap(xerrors.CodeInvalidInput, err, "BNB 金额不合法"), "")
	}
	if tokenAmount.Sign() == 0 && bnbAmount.Sign() == 0 {
		return failure(xerrors.New(xerrors.CodeInvalidInput, "代币数量与 BNB 金额至少填一个"), "")
	}

	values, err := b.client.ReadCall(ctx, FourMemeTryBuyHelper, fourMemeTryBuyABI, "tryBuy",
		token, tokenAmount, bnbAmount)
	if err != nil {
		return failure(xerrors.Wrap(xerrors.CodeUnknown, err, "买入预估失败"), "")
	}
	if len(values) < 6 {
		return failure(xerrors.New(xerrors.CodeUnknown, "买入预估返回值类型异常"), "")
	}
	estimated, okEst := values[2].(*big.Int)
	msgValue, okVal := values[5].(*big.Int)
	if !okEst || !okVal {
		return failure(xerrors.New(xerrors.CodeUnknown, "买入预估返回值类型异常"), "")
	}

	// tokenValue 为零表示按 BNB 金额买，否则按期望数量买。
	outputDriven := tokenAmount.Sign() != 0
	minOut, funds := b.exec.AdjustBuyAmounts(executor.BuyQuote{
		EstimatedAmount: estimated,
		FundsRequired:   msgValue,
	}, outputDriven)

	outcome, err := b.exec.Execute(ctx, executor.CallSpec{
		TaskID: args["taskId"],
		Action: "buyMemeToken",
		Request: web3.TxRequest{
			To:     FourMemeTokenManager,
			ABI:    fourMemeManagerABI,
			Method: "buyTokenAMAP",
			Args:   []any{token, funds, minOut},
			Value:  funds,
		},
	})
	if err != nil {
		return failure(err, outcomeURL(outcome))
	}
	return Result{
		Text: fmt.Sprintf("Meme token purchase successful!\n\n[View on BscScan](%s)", outcome.TxURL),
		URL:  outcome.TxURL,
	}
}

// SellMemeToken 卖出 four.meme 上的代币，额度不足时先授权。
type SellMemeToken struct {
	exec *executor.Executor
}

// NewSellMemeToken 创建卖出动作。
func NewSellMemeToken(exec *executor.Executor) *SellMemeToken {
	return &SellMemeToken{exec: exec}
}

func (s *SellMemeToken) Name() string { return "sellMemeToken" }

func (s *SellMemeToken) Description() string {
	return "Sell meme tokens for other currencies on BNBChain"
}

func (s *SellMemeToken) Parameters() map[string]string {
	return map[string]string{
		"token":      "The address of the meme token",
		"tokenValue": "The amount of tokens to sell",
	}
}

func (s *SellMemeToken) Execute(ctx context.Context, args map[string]string) Result {
	tokenArg, err := requireArg(args, "token")
	if err != nil {
		return failure(err, "")
	}
	tokenValue, err := requireArg(args, "tokenValue")
	if err != nil {
		return failure(err, "")
	}
	if !web3.IsHexAddress(tokenArg) {
		return failure(xerrors.New(xerrors.CodeInvalidAddress, "代币地址格式不合法: "+tokenArg), "")
	}
	token := common.HexToAddress(tokenArg)

	amount, err := web3.ParseUnits(tokenValue, 18)
	if err != nil {
		return failure(xerrors.Wrap(xerrors.CodeInvalidInput, err, "卖出数量不合法"), "")
	}

	outcome, err := s.exec.ExecuteWithApproval(ctx,
		executor.ApprovalSpec{Token: token, Spender: FourMemeTokenManager, Amount: amount},
		executor.CallSpec{
			TaskID: args["taskId"],
			Action: "sellMemeToken",
			Request: web3.TxRequest{
				To:     FourMemeTokenManager,
				ABI:    fourMemeManagerABI,
				Method: "sellToken",
				Args:   []any{token, amount},
			},
		})
	if err != nil {
		return failure(err, outcomeURL(outcome))
	}
	return Result{
		Text: fmt.Sprintf("Sell meme token successful. %s", outcome.TxURL),
		URL:  outcome.TxURL,
	}
}

// MemeTokenDetails 按名称查询 four.meme 代币详情。
type MemeTokenDetails struct {
	meme *fourmeme.Client
}

// NewMemeTokenDetails 创建详情查询动作。
func NewMemeTokenDetails(meme *fourmeme.Client) *MemeTokenDetails {
	return &MemeTokenDetails{meme: meme}
}

func (m *MemeTokenDetails) Name() string { return "queryMemeTokenDetails" }

func (m *MemeTokenDetails) Description() string {
	return "Fetch token details for a given meme token using the four.meme API"
}

func (m *MemeTokenDetails) Parameters() map[string]string {
	return map[string]string{
		"tokenName": "The name of the token to query, e.g. HGBNB",
	}
}

func (m *MemeTokenDetails) Execute(ctx context.Context, args map[string]string) Result {
	name, err := requireArg(args, "tokenName")
	if err != nil {
		return failure(err, "")
	}

	raw, err := m.meme.TokenDetail(ctx, name)
	if err != nil {
		return Result{
			Text:    fmt.Sprintf("Failed to fetch token details: %s", err),
			IsError: true,
		}
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		pretty.Reset()
		pretty.Write(raw)
	}
	return Result{Text: fmt.Sprintf("Token details for %q:\n\n%s", name, pretty.String())}
}
