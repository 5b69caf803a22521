package pipeline

import (
	"math/big"

	"github.com/aretw0/swapflow/pkg/domain"
)

var gwei = big.NewInt(1_000_000_000)

// gasTable holds price and tip per priority in milli-gwei.
var gasTable = map[domain.GasPriority]struct{ price, tip int64 }{
	domain.GasLow:    {price: 1_000, tip: 10},
	domain.GasMedium: {price: 5_000, tip: 100},
	domain.GasHigh:   {price: 10_000, tip: 1_000},
}

// ResolveGas maps a priority to wei-denominated pricing. Unknown priorities
// resolve as medium. MaxFeePerGas is twice the price plus the tip.
func ResolveGas(priority domain.GasPriority) domain.GasParams {
	row, ok := gasTable[priority]
	if !ok {
		row = gasTable[domain.GasMedium]
	}
	price := milliGwei(row.price)
	tip := milliGwei(row.tip)
	maxFee := new(big.Int).Mul(price, big.NewInt(2))
	maxFee.Add(maxFee, tip)
	return domain.GasParams{
		Price:                price,
		MaxFeePerGas:         maxFee,
		MaxPriorityFeePerGas: tip,
	}
}

// GasPriceGwei is the price handed to the aggregator, which expects gwei.
func GasPriceGwei(priority domain.GasPriority) string {
	return FormatUnits(ResolveGas(priority).Price.String(), 9)
}

func milliGwei(v int64) *big.Int {
	out := new(big.Int).Mul(big.NewInt(v), gwei)
	return out.Div(out, big.NewInt(1_000))
}
