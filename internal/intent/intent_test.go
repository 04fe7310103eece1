package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/TermiX-official/BscA2A-agent/internal/llm"
)

const addr1 = "0x1234567890abcdef1234567890abcdef12345678"
const addr2 = "0xabcdefabcdefabcdefabcdefabcdefabcdefabcd"

func classify(t *testing.T, text string) *Intent {
	t.Helper()
	parsed, err := NewRuleClassifier().Classify(context.Background(), Request{
		Messages: []llm.Turn{{Role: "user", Text: text}},
	})
	if err != nil {
		t.Fatalf("规则分类不应失败: %v", err)
	}
	return parsed
}

func TestRuleClassifierBalance(t *testing.T) {
	parsed := classify(t, "Check balance for "+addr1)
	if parsed.Action != "getWalletInfo" {
		t.Fatalf("unexpected action: %s", parsed.Action)
	}
	if parsed.Args["address"] != addr1 {
		t.Fatalf("地址抽取失败: %v", parsed.Args)
	}
}

func TestRuleClassifierTransferNative(t *testing.T) {
	parsed := classify(t, "Transfer 0.5 BNB to "+addr1)
	if parsed.Action != "sendBNB" {
		t.Fatalf("unexpected action: %s", parsed.Action)
	}
	if parsed.Args["amount"] != "0.5" || parsed.Args["recipientAddress"] != addr1 {
		t.Fatalf("参数抽取失败: %v", parsed.Args)
	}
}

func TestRuleClassifierTransferBEP20(t *testing.T) {
	parsed := classify(t, "Send 200 of token "+addr1+" to "+addr2)
	if parsed.Action != "sendBEP20Token" {
		t.Fatalf("unexpected action: %s", parsed.Action)
	}
	if parsed.Args["address"] != addr1 || parsed.Args["recipientAddress"] != addr2 {
		t.Fatalf("参数抽取失败: %v", parsed.Args)
	}
}

func TestRuleClassifierSwap(t *testing.T) {
	parsed := classify(t, "Swap 100 from "+addr1+" to "+addr2)
	if parsed.Action != "pancakeSwapTokenExchange" {
		t.Fatalf("unexpected action: %s", parsed.Action)
	}
	if parsed.Args["inputToken"] != addr1 || parsed.Args["outputToken"] != addr2 || parsed.Args["amount"] != "100" {
		t.Fatalf("参数抽取失败: %v", parsed.Args)
	}
}

func TestRuleClassifierSecurity(t *testing.T) {
	parsed := classify(t, "Is this token safe to interact with? "+addr1)
	if parsed.Action != "checkTokenSecurity" {
		t.Fatalf("unexpected action: %s", parsed.Action)
	}
	if parsed.Args["tokenAddress"] != addr1 {
		t.Fatalf("参数抽取失败: %v", parsed.Args)
	}
}

func TestRuleClassifierRemoveLiquidity(t *testing.T) {
	parsed := classify(t, "Remove liquidity from position 42, withdraw 50%")
	if parsed.Action != "removePancakeSwapLiquidity" {
		t.Fatalf("unexpected action: %s", parsed.Action)
	}
	if parsed.Args["positionId"] != "42" || parsed.Args["percent"] != "50" {
		t.Fatalf("参数抽取失败: %v", parsed.Args)
	}
}

func TestRuleClassifierBuyByBNB(t *testing.T) {
	parsed := classify(t, "Buy meme token "+addr1+" with 0.1 BNB")
	if parsed.Action != "buyMemeToken" {
		t.Fatalf("unexpected action: %s", parsed.Action)
	}
	if parsed.Args["bnbValue"] != "0.1" || parsed.Args["token"] != addr1 {
		t.Fatalf("参数抽取失败: %v", parsed.Args)
	}
}

func TestRuleClassifierSell(t *testing.T) {
	parsed := classify(t, "Sell 300 of "+addr1)
	if parsed.Action != "sellMemeToken" {
		t.Fatalf("unexpected action: %s", parsed.Action)
	}
	if parsed.Args["tokenValue"] != "300" {
		t.Fatalf("参数抽取失败: %v", parsed.Args)
	}
}

func TestRuleClassifierUnknownFallsThrough(t *testing.T) {
	parsed := classify(t, "Tell me a joke")
	if parsed.Action != "" || parsed.Reply != "" {
		t.Fatalf("未知句式应落空: %+v", parsed)
	}
}

type stubLLM struct {
	resp *llm.Response
	err  error
}

func (s *stubLLM) Generate(context.Context, llm.Request) (*llm.Response, error) {
	return s.resp, s.err
}

func TestLLMClassifier(t *testing.T) {
	classifier, err := NewLLMClassifier(&stubLLM{
		resp: &llm.Response{Tool: "getWalletInfo", Arguments: map[string]string{"address": addr1}},
	}, nil, nil)
	if err != nil {
		t.Fatalf("创建分类器失败: %v", err)
	}

	parsed, err := classifier.Classify(context.Background(), Request{
		Messages: []llm.Turn{{Role: "user", Text: "how rich am I"}},
	})
	if err != nil {
		t.Fatalf("分类失败: %v", err)
	}
	if parsed.Action != "getWalletInfo" || parsed.Args["address"] != addr1 {
		t.Fatalf("unexpected intent: %+v", parsed)
	}
}

func TestChainFallsBack(t *testing.T) {
	llmClassifier, _ := NewLLMClassifier(&stubLLM{
		resp: &llm.Response{Reply: "I can help with BSC DeFi."},
	}, nil, nil)
	chain := NewChain(NewRuleClassifier(), llmClassifier)

	parsed, err := chain.Classify(context.Background(), Request{
		Messages: []llm.Turn{{Role: "user", Text: "what can you do"}},
	})
	if err != nil {
		t.Fatalf("级联分类失败: %v", err)
	}
	if parsed.Reply == "" {
		t.Fatalf("规则落空后应回落到大模型: %+v", parsed)
	}
}

func TestChainSurfacesError(t *testing.T) {
	llmClassifier, _ := NewLLMClassifier(&stubLLM{err: errors.New("boom")}, nil, nil)
	chain := NewChain(NewRuleClassifier(), llmClassifier)

	_, err := chain.Classify(context.Background(), Request{
		Messages: []llm.Turn{{Role: "user", Text: "what can you do"}},
	})
	if err == nil {
		t.Fatal("全部失败时应报错")
	}
}
