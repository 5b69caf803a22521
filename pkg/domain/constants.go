package domain

import (
	"math/big"
	"strings"
)

// ChainID is the Base mainnet chain id.
const ChainID = 8453

// NativeToken is the aggregator convention for the chain's native asset.
const NativeToken = "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE"

// NativeSymbol and NativeDecimals describe the native asset.
const (
	NativeSymbol   = "ETH"
	NativeDecimals = 18
)

// MaxUint256 is the largest ERC-20 allowance.
var MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// CommonTokens are the buy targets offered without an address.
var CommonTokens = []TokenInfo{
	{Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", Symbol: "USDC", Name: "USD Coin", Decimals: 6},
	{Address: "0x50c5725949A6F0c72E6C4a641F24049A917DB0Cb", Symbol: "DAI", Name: "Dai Stablecoin", Decimals: 18},
	{Address: "0x4200000000000000000000000000000000000006", Symbol: "WETH", Name: "Wrapped Ether", Decimals: 18},
	{Address: "0x0555E30da8f98308EdB960aa94C0Db47230d2B9c", Symbol: "WBTC", Name: "Wrapped BTC", Decimals: 8},
}

// NativeTokenInfo describes the native asset as a token.
func NativeTokenInfo() TokenInfo {
	return TokenInfo{Address: NativeToken, Symbol: NativeSymbol, Name: "Ether", Decimals: NativeDecimals}
}

// IsNative reports whether address designates the native asset.
func IsNative(address string) bool {
	return strings.EqualFold(strings.TrimSpace(address), NativeToken)
}

// LookupToken finds a common token by symbol or address.
func LookupToken(ref string) (TokenInfo, bool) {
	ref = strings.TrimSpace(ref)
	if IsNative(ref) || strings.EqualFold(ref, NativeSymbol) {
		return NativeTokenInfo(), true
	}
	for _, t := range CommonTokens {
		if strings.EqualFold(t.Symbol, ref) || strings.EqualFold(t.Address, ref) {
			return t, true
		}
	}
	return TokenInfo{}, false
}
