package web3

import (
	"fmt"
	"math/big"
	"strings"
)

// ParseUnits 将人类可读的十进制数量转换为链上整数表示。
// 精度全程使用 big.Int，绝不经过浮点数。
func ParseUnits(value string, decimals uint8) (*big.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("数量不能为空")
	}
	neg := false
	if strings.HasPrefix(value, "-") {
		neg = true
		value = value[1:]
	}

	intPart := value
	fracPart := ""
	if idx := strings.IndexByte(value, '.'); idx >= 0 {
		intPart = value[:idx]
		fracPart = value[idx+1:]
	}
	if intPart == "" {
		intPart = "0"
	}
	if len(fracPart) > int(decimals) {
		return nil, fmt.Errorf("数量 %s 的小数位超过代币精度 %d", value, decimals)
	}
	// 补齐小数位到 decimals 长度。
	fracPart += strings.Repeat("0", int(decimals)-len(fracPart))

	digits := intPart + fracPart
	result, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("无法解析数量: %s", value)
	}
	if neg {
		result.Neg(result)
	}
	return result, nil
}

// MustParseUnits 与 ParseUnits 相同，但在解析失败时 panic，仅用于常量。
func MustParseUnits(value string, decimals uint8) *big.Int {
	amount, err := ParseUnits(value, decimals)
	if err != nil {
		panic(err)
	}
	return amount
}

// FormatUnits 将链上整数数量格式化为人类可读的十进制字符串。
func FormatUnits(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	sign := ""
	abs := new(big.Int).Abs(amount)
	if amount.Sign() < 0 {
		sign = "-"
	}

	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	quo, rem := new(big.Int).QuoRem(abs, divisor, new(big.Int))
	if rem.Sign() == 0 {
		return sign + quo.String()
	}
	frac := strings.TrimRight(fmt.Sprintf("%0*s", decimals, rem.String()), "0")
	return sign + quo.String() + "." + frac
}

// ApplyPercent 返回 amount×percent/100，用于滑点与预留空间的调整。
func ApplyPercent(amount *big.Int, percent int64) *big.Int {
	if amount == nil {
		return big.NewInt(0)
	}
	scaled := new(big.Int).Mul(amount, big.NewInt(percent))
	return scaled.Div(scaled, big.NewInt(100))
}
