package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	xerrors "github.com/TermiX-official/BscA2A-agent/internal/errors"
	"github.com/TermiX-official/BscA2A-agent/internal/security"
	"github.com/TermiX-official/BscA2A-agent/internal/web3"
)

// TokenSecurityCheck 用 GoPlus 给代币做风险画像。
type TokenSecurityCheck struct {
	checker *security.Client
}

// NewTokenSecurityCheck 创建安全检测动作。
func NewTokenSecurityCheck(checker *security.Client) *TokenSecurityCheck {
	return &TokenSecurityCheck{checker: checker}
}

func (t *TokenSecurityCheck) Name() string { return "checkTokenSecurity" }

func (t *TokenSecurityCheck) Description() string {
	return "Analyze BNBChain tokens for potential security risks powered by GoPlus"
}

func (t *TokenSecurityCheck) Parameters() map[string]string {
	return map[string]string{
		"tokenAddress": "Token address on BNBChain to check for security risks",
	}
}

func (t *TokenSecurityCheck) Execute(ctx context.Context, args map[string]string) Result {
	address, err := requireArg(args, "tokenAddress")
	if err != nil {
		return failure(err, "")
	}
	if !web3.IsHexAddress(address) {
		return failure(xerrors.New(xerrors.CodeInvalidAddress, "代币地址格式不合法: "+address), "")
	}

	profile, err := t.checker.TokenSecurity(ctx, address)
	if err != nil {
		return Result{
			Text:    fmt.Sprintf("Security check failed: %s", err),
			IsError: true,
		}
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, profile, "", "  "); err != nil {
		pretty.Reset()
		pretty.Write(profile)
	}
	return Result{Text: fmt.Sprintf("Security check successful for %s:\n\n%s", address, pretty.String())}
}
