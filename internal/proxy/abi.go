package proxy

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Contract ABIs
// ---------------------------------------------------------------------------

// FactoryABI covers the single factory call we make: deploying a proxy
// wallet for a user with its spending limits baked in at construction.
const FactoryABI = `[
	{
		"type": "function",
		"name": "deployProxy",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "user", "type": "address"},
			{"name": "maxTradeAmount", "type": "uint256"},
			{"name": "maxSlippageBps", "type": "uint256"},
			{"name": "dailyLimit", "type": "uint256"}
		],
		"outputs": [
			{"name": "proxy", "type": "address"}
		]
	}
]`

// WalletABI covers the per-proxy calls: trade execution and token approvals.
const WalletABI = `[
	{
		"type": "function",
		"name": "executeTrade",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "tokenIn", "type": "address"},
			{"name": "tokenOut", "type": "address"},
			{"name": "amountIn", "type": "uint256"},
			{"name": "minAmountOut", "type": "uint256"},
			{"name": "deadline", "type": "uint256"}
		],
		"outputs": []
	},
	{
		"type": "function",
		"name": "setApproval",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "token", "type": "address"},
			{"name": "amount", "type": "uint256"}
		],
		"outputs": []
	},
	{
		"type": "function",
		"name": "isActive",
		"stateMutability": "view",
		"inputs": [],
		"outputs": [
			{"name": "", "type": "bool"}
		]
	}
]`

var (
	factoryABI = mustParseABI(FactoryABI)
	walletABI  = mustParseABI(WalletABI)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("proxy: bad contract ABI: %v", err))
	}
	return parsed
}

// ---------------------------------------------------------------------------
// Encoding helpers
// ---------------------------------------------------------------------------

// toWei converts a whole-token decimal amount to an 18-decimal integer.
func toWei(amount decimal.Decimal) *big.Int {
	return amount.Shift(18).Truncate(0).BigInt()
}

// pctToBps converts a percentage (e.g. 1.5) to basis points (150).
func pctToBps(pct decimal.Decimal) *big.Int {
	return pct.Shift(2).Truncate(0).BigInt()
}

func packDeployProxy(user common.Address, maxTrade, maxSlippagePct, dailyLimit decimal.Decimal) ([]byte, error) {
	return factoryABI.Pack("deployProxy", user, toWei(maxTrade), pctToBps(maxSlippagePct), toWei(dailyLimit))
}

func unpackDeployedAddress(returnData []byte) (common.Address, error) {
	out, err := factoryABI.Unpack("deployProxy", returnData)
	if err != nil {
		return common.Address{}, fmt.Errorf("decode deployProxy return: %w", err)
	}
	addr, ok := out[0].(common.Address)
	if !ok || addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("deployProxy returned no address")
	}
	return addr, nil
}

func packExecuteTrade(tokenIn, tokenOut common.Address, amountIn, minAmountOut decimal.Decimal, deadline int64) ([]byte, error) {
	return walletABI.Pack("executeTrade", tokenIn, tokenOut, toWei(amountIn), toWei(minAmountOut), big.NewInt(deadline))
}

func packSetApproval(token common.Address, amount decimal.Decimal) ([]byte, error) {
	return walletABI.Pack("setApproval", token, toWei(amount))
}
