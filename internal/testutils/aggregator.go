package testutils

import (
	"context"
	"sync"

	"github.com/aretw0/swapflow/pkg/domain"
	"github.com/aretw0/swapflow/pkg/ports"
)

// Router is the spender address the fake aggregator builds swaps against.
const Router = "0x6352a56caadC4F1E25CD6c75970Fa768A3304e64"

// Aggregator is a scripted ports.SwapAggregator.
type Aggregator struct {
	mu sync.Mutex

	QuoteResult domain.QuoteResult
	QuoteErr    error
	SwapTx      domain.SwapTx
	SwapErr     error

	Quotes []domain.QuoteRequest
	Swaps  []domain.SwapRequest
}

var _ ports.SwapAggregator = (*Aggregator)(nil)

func NewAggregator() *Aggregator {
	return &Aggregator{
		QuoteResult: domain.QuoteResult{OutAmount: "150000000", EstimatedGas: "180000"},
		SwapTx:      domain.SwapTx{To: Router, Data: "0xdeadbeef", Value: "0", OutAmount: "150000000"},
	}
}

func (a *Aggregator) Quote(ctx context.Context, req domain.QuoteRequest) (domain.QuoteResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Quotes = append(a.Quotes, req)
	if a.QuoteErr != nil {
		return domain.QuoteResult{}, a.QuoteErr
	}
	return a.QuoteResult, nil
}

func (a *Aggregator) Swap(ctx context.Context, req domain.SwapRequest) (domain.SwapTx, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Swaps = append(a.Swaps, req)
	if a.SwapErr != nil {
		return domain.SwapTx{}, a.SwapErr
	}
	return a.SwapTx, nil
}

func (a *Aggregator) QuoteCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.Quotes)
}
