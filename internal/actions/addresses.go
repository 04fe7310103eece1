package actions

import "github.com/ethereum/go-ethereum/common"

// BSC 主网合约地址。动作处理器统一从这里取址，避免散落的魔法常量。
var (
	// PancakeSwap V2 路由。
	PancakeV2Router = common.HexToAddress("0x10ED43C718714eb63d5aA57B78B54704E256024E")
	// PancakeSwap V3 头寸管理合约。
	PancakeV3PositionManager = common.HexToAddress("0x46A15B0b27311cedF172AB29E4f4766fbE7F4364")
	// WBNB 合约。
	WBNB = common.HexToAddress("0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c")

	// four.meme 的 TokenManager，发币、买入、卖出都走它。
	FourMemeTokenManager = common.HexToAddress("0x5c952063c7fc8610FFDB798152D69F0B9550762b")
	// four.meme 的报价辅助合约，tryBuy 预估走它。
	FourMemeTryBuyHelper = common.HexToAddress("0xF251F83e40a78868FcfA3FA4599Dad6494E46034")
)

// wellKnownToken 是钱包余额查询覆盖的主流资产。
type wellKnownToken struct {
	Symbol  string
	Address common.Address
}

var wellKnownTokens = []wellKnownToken{
	{"USDT", common.HexToAddress("0x55d398326f99059fF775485246999027B3197955")},
	{"USDC", common.HexToAddress("0x8AC76a51cc950d9822D68b83fE1Ad97B32Cd580d")},
	{"BUSD", common.HexToAddress("0xe9e7CEA3DedcA5984780Bafc599bD69ADd087D56")},
	{"CAKE", common.HexToAddress("0x0E09FaBB73Bd3Ade0a17ECC321fD13a19e81cE82")},
	{"WBNB", WBNB},
}
