package intent

import (
	"context"
	"regexp"
	"strings"
)

// 会话里出现的链上地址。
var addressPattern = regexp.MustCompile(`0x[a-fA-F0-9]{40}`)

// 人类可读的数量，如 0.5、100。
var amountPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// 提取百分比，如 "50%"。
var percentPattern = regexp.MustCompile(`(\d{1,3})\s*%`)

// RuleClassifier 用关键词与正则覆盖常见句式，不依赖外部服务。
// 解析不出动作时返回空意图，交由上层回落到大模型。
type RuleClassifier struct{}

// NewRuleClassifier 创建规则分类器。
func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{}
}

// Classify 解析最近一条用户发言。
func (r *RuleClassifier) Classify(_ context.Context, req Request) (*Intent, error) {
	text := strings.ToLower(strings.TrimSpace(lastUserText(req.Messages)))
	if text == "" {
		return &Intent{}, nil
	}

	addresses := addressPattern.FindAllString(text, -1)
	// 地址整体剔除后再取数量，避免把地址里的数字当成金额。
	stripped := addressPattern.ReplaceAllString(text, " ")
	amounts := amountPattern.FindAllString(stripped, -1)

	switch {
	case containsAny(text, "balance", "wallet info", "holdings"):
		args := map[string]string{}
		if len(addresses) > 0 {
			args["address"] = addresses[0]
		}
		return &Intent{Action: "getWalletInfo", Args: args}, nil

	case containsAny(text, "security", "is it safe", "safe to interact", "risk", "honeypot"):
		args := map[string]string{}
		if len(addresses) > 0 {
			args["tokenAddress"] = addresses[0]
		}
		return &Intent{Action: "checkTokenSecurity", Args: args}, nil

	case containsAny(text, "swap", "exchange"):
		args := map[string]string{}
		if len(addresses) >= 2 {
			args["inputToken"] = addresses[0]
			args["outputToken"] = addresses[1]
		}
		if len(amounts) > 0 {
			args["amount"] = amounts[0]
		}
		return &Intent{Action: "pancakeSwapTokenExchange", Args: args}, nil

	case containsAny(text, "add liquidity", "provide liquidity"):
		args := map[string]string{}
		if len(addresses) >= 2 {
			args["token0"] = addresses[0]
			args["token1"] = addresses[1]
		}
		if len(amounts) >= 2 {
			args["token0Amount"] = amounts[0]
			args["token1Amount"] = amounts[1]
		}
		return &Intent{Action: "addPancakeSwapLiquidity", Args: args}, nil

	case containsAny(text, "remove liquidity", "withdraw liquidity"):
		args := map[string]string{}
		if match := percentPattern.FindStringSubmatch(text); match != nil {
			args["percent"] = match[1]
		}
		remainder := percentPattern.ReplaceAllString(stripped, " ")
		if nums := amountPattern.FindAllString(remainder, -1); len(nums) > 0 {
			args["positionId"] = nums[0]
		}
		return &Intent{Action: "removePancakeSwapLiquidity", Args: args}, nil

	case containsAny(text, "position", "my liquidity"):
		return &Intent{Action: "viewPancakeSwapPositions", Args: map[string]string{}}, nil

	case containsAny(text, "create", "launch") && containsAny(text, "meme", "token"):
		return &Intent{Action: "createFourMemeToken", Args: map[string]string{}}, nil

	case strings.Contains(text, "buy"):
		args := map[string]string{}
		if len(addresses) > 0 {
			args["token"] = addresses[0]
		}
		if len(amounts) > 0 {
			if containsAny(text, "bnb") {
				args["bnbValue"] = amounts[0]
			} else {
				args["tokenValue"] = amounts[0]
			}
		}
		return &Intent{Action: "buyMemeToken", Args: args}, nil

	case strings.Contains(text, "sell"):
		args := map[string]string{}
		if len(addresses) > 0 {
			args["token"] = addresses[0]
		}
		if len(amounts) > 0 {
			args["tokenValue"] = amounts[0]
		}
		return &Intent{Action: "sellMemeToken", Args: args}, nil

	case containsAny(text, "token details", "details for"):
		return &Intent{Action: "queryMemeTokenDetails", Args: map[string]string{}}, nil

	case containsAny(text, "send", "transfer"):
		args := map[string]string{}
		if len(amounts) > 0 {
			args["amount"] = amounts[0]
		}
		if containsAny(text, "bnb") && len(addresses) > 0 {
			args["recipientAddress"] = addresses[0]
			return &Intent{Action: "sendBNB", Args: args}, nil
		}
		if len(addresses) >= 2 {
			// 第一个地址当作代币合约，第二个当作收款人。
			args["address"] = addresses[0]
			args["recipientAddress"] = addresses[1]
			return &Intent{Action: "sendBEP20Token", Args: args}, nil
		}
		if len(addresses) == 1 {
			args["recipientAddress"] = addresses[0]
			return &Intent{Action: "sendBNB", Args: args}, nil
		}
		return &Intent{Action: "sendBNB", Args: args}, nil
	}

	return &Intent{}, nil
}

func containsAny(text string, keywords ...string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}
