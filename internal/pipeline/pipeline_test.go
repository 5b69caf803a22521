package pipeline_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/aretw0/swapflow/internal/pipeline"
	"github.com/aretw0/swapflow/internal/testutils"
	"github.com/aretw0/swapflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var usdc = domain.CommonTokens[0]

type fixture struct {
	chain  *testutils.Chain
	agg    *testutils.Aggregator
	repo   *testutils.Repository
	p      *pipeline.Pipeline
	now    time.Time
	wallet *domain.Wallet
}

func newFixture(t *testing.T, opts ...pipeline.Option) *fixture {
	t.Helper()
	f := &fixture{
		chain: testutils.NewChain(),
		agg:   testutils.NewAggregator(),
		repo:  testutils.NewRepository(),
		now:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		wallet: &domain.Wallet{
			UserID:  "1001",
			Address: "0x00000000000000000000000000000000000000a1",
		},
	}
	opts = append([]pipeline.Option{
		pipeline.WithClock(func() time.Time { return f.now }),
		pipeline.WithRecordRetries(3, 0),
	}, opts...)
	f.p = pipeline.New(f.chain, f.agg, f.repo, opts...)
	return f
}

func (f *fixture) buyOrder() pipeline.SwapOrder {
	return pipeline.SwapOrder{
		SessionID:  "s1",
		UserID:     "1001",
		Wallet:     f.wallet,
		FromToken:  domain.NativeToken,
		ToToken:    usdc.Address,
		Amount:     "0.05",
		AmountBase: "50000000000000000",
		Quote: domain.Quote{
			OutAmount:    "150000000",
			FromDecimals: 18,
			ToDecimals:   6,
			QuotedAt:     f.now.Add(-10 * time.Second),
		},
		Settings: domain.DefaultSettings(),
	}
}

func (f *fixture) sellOrder() pipeline.SwapOrder {
	o := f.buyOrder()
	o.FromToken, o.ToToken = usdc.Address, domain.NativeToken
	o.Amount, o.AmountBase = "25", "25000000"
	o.Quote.FromDecimals, o.Quote.ToDecimals = 6, 18
	return o
}

func TestResolveGas(t *testing.T) {
	tests := []struct {
		priority domain.GasPriority
		price    string
		tip      string
		maxFee   string
	}{
		{domain.GasLow, "1000000000", "10000000", "2010000000"},
		{domain.GasMedium, "5000000000", "100000000", "10100000000"},
		{domain.GasHigh, "10000000000", "1000000000", "21000000000"},
		{"bogus", "5000000000", "100000000", "10100000000"},
	}
	for _, tt := range tests {
		t.Run(string(tt.priority), func(t *testing.T) {
			g := pipeline.ResolveGas(tt.priority)
			assert.Equal(t, tt.price, g.Price.String())
			assert.Equal(t, tt.tip, g.MaxPriorityFeePerGas.String())
			assert.Equal(t, tt.maxFee, g.MaxFeePerGas.String())
		})
	}
	assert.Equal(t, "10", pipeline.GasPriceGwei(domain.GasHigh))
}

func TestParseAmount(t *testing.T) {
	a, err := pipeline.ParseAmount(".5", 18)
	require.NoError(t, err)
	assert.Equal(t, "0.5", a.Decimal)
	assert.Equal(t, "500000000000000000", a.Base.String())

	a, err = pipeline.ParseAmount(" 0.05 ", 18)
	require.NoError(t, err)
	assert.Equal(t, "50000000000000000", a.Base.String())

	a, err = pipeline.ParseAmount("12.50", 6)
	require.NoError(t, err)
	assert.Equal(t, "12.5", a.Decimal)
	assert.Equal(t, "12500000", a.Base.String())

	for _, bad := range []string{"", "abc", "-1", "1e5", "0", "0.000", "1.2.3", "max"} {
		_, err := pipeline.ParseAmount(bad, 18)
		de, ok := domain.AsError(err)
		require.True(t, ok, bad)
		assert.Equal(t, domain.KindUserInput, de.Kind, bad)
	}

	_, err = pipeline.ParseAmount("0.0000001", 6)
	assert.Error(t, err, "precision beyond decimals is rejected")
}

func TestCheckBalance(t *testing.T) {
	a, _ := pipeline.ParseAmount("0.05", 18)
	assert.NoError(t, pipeline.CheckBalance(a, "100000000000000000", 18, "ETH"))

	a, _ = pipeline.ParseAmount("0.2", 18)
	err := pipeline.CheckBalance(a, "100000000000000000", 18, "ETH")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0.1 ETH")
}

func TestFormatUnits(t *testing.T) {
	assert.Equal(t, "0.1", pipeline.FormatUnits("100000000000000000", 18))
	assert.Equal(t, "150", pipeline.FormatUnits("150000000", 6))
	assert.Equal(t, "0.000001", pipeline.FormatUnits("1", 6))
	assert.Equal(t, "0", pipeline.FormatUnits("garbage", 6))
}

func TestAmountFromBase(t *testing.T) {
	a, err := pipeline.AmountFromBase("25000000", 6)
	require.NoError(t, err)
	assert.Equal(t, "25", a.Decimal)

	_, err = pipeline.AmountFromBase("0", 6)
	assert.Error(t, err)
}

func TestQuote(t *testing.T) {
	f := newFixture(t)
	q, err := f.p.Quote(context.Background(), pipeline.QuoteInput{
		FromToken: domain.NativeToken, ToToken: usdc.Address,
		FromDecimals: 18, ToDecimals: 6, Amount: "0.05", Priority: domain.GasLow,
	})
	require.NoError(t, err)
	assert.Equal(t, "150000000", q.OutAmount)
	assert.Equal(t, 6, q.ToDecimals)
	assert.Equal(t, f.now, q.QuotedAt)
	require.Len(t, f.agg.Quotes, 1)
	assert.Equal(t, "0.05", f.agg.Quotes[0].Amount)
	assert.Equal(t, "1", f.agg.Quotes[0].GasPrice)
}

func TestQuote_FailureIsRetryable(t *testing.T) {
	f := newFixture(t)
	f.agg.QuoteErr = errors.New("503")
	_, err := f.p.Quote(context.Background(), pipeline.QuoteInput{Amount: "1"})
	de, ok := domain.AsError(err)
	require.True(t, ok)
	assert.True(t, de.Retryable)

	f.agg.QuoteErr = nil
	f.agg.QuoteResult = domain.QuoteResult{OutAmount: "0"}
	_, err = f.p.Quote(context.Background(), pipeline.QuoteInput{Amount: "1"})
	de, ok = domain.AsError(err)
	require.True(t, ok)
	assert.True(t, de.Retryable)
}

func TestSwap_BuyExecutesAndRecords(t *testing.T) {
	f := newFixture(t)
	out, err := f.p.Swap(context.Background(), f.buyOrder())
	require.NoError(t, err)

	assert.False(t, out.Requoted)
	assert.True(t, out.Recorded)
	assert.Equal(t, domain.TxSuccess, out.Receipt.Status)
	assert.Empty(t, f.chain.Calls, "native source needs no approval")
	require.Equal(t, 1, f.chain.ExecutedCount())
	assert.Equal(t, testutils.Router, f.chain.Executed[0].To)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, f.chain.Executed[0].Data)

	require.Len(t, f.agg.Swaps, 1)
	assert.Equal(t, 1.0, f.agg.Swaps[0].Slippage)
	assert.Equal(t, f.wallet.Address, f.agg.Swaps[0].Account)

	txs := f.repo.AllTransactions()
	require.Len(t, txs, 1)
	assert.Equal(t, "50000000000000000", txs[0].FromAmount)
	assert.Equal(t, domain.TxSwap, txs[0].Kind)

	intents := f.repo.Intents()
	require.Len(t, intents, 1)
	assert.Equal(t, domain.IntentRecorded, intents[0].State)
	assert.Equal(t, out.Receipt.Hash, intents[0].TxHash)
}

func TestSwap_StaleQuoteIsRequoted(t *testing.T) {
	f := newFixture(t)
	order := f.buyOrder()
	order.Quote.QuotedAt = f.now.Add(-2 * time.Minute)
	f.agg.QuoteResult = domain.QuoteResult{OutAmount: "149000000"}

	out, err := f.p.Swap(context.Background(), order)
	require.NoError(t, err)
	assert.True(t, out.Requoted)
	assert.Equal(t, "149000000", out.Quote.OutAmount)
	assert.Equal(t, 6, out.Quote.ToDecimals, "decimals carry over from the stored quote")
	assert.Zero(t, f.chain.ExecutedCount())
	assert.Empty(t, f.agg.Swaps)
}

func TestSwap_SellApprovesWhenAllowanceShort(t *testing.T) {
	f := newFixture(t)
	out, err := f.p.Swap(context.Background(), f.sellOrder())
	require.NoError(t, err)
	assert.True(t, out.Recorded)

	require.Len(t, f.chain.Calls, 1)
	call := f.chain.Calls[0]
	assert.Equal(t, "approve", call.Method)
	assert.Equal(t, usdc.Address, call.Contract)
	assert.Equal(t, testutils.Router, call.Args[0])
	assert.Equal(t, 0, call.Args[1].(*big.Int).Cmp(domain.MaxUint256))

	txs := f.repo.AllTransactions()
	require.Len(t, txs, 2)
	assert.Equal(t, domain.TxApprove, txs[0].Kind)
	assert.Equal(t, domain.TxSwap, txs[1].Kind)
}

func TestSwap_SellSkipsApprovalWhenAllowanceCovers(t *testing.T) {
	f := newFixture(t)
	f.chain.SetAllowance(usdc.Address, f.wallet.Address, testutils.Router, "25000000")
	_, err := f.p.Swap(context.Background(), f.sellOrder())
	require.NoError(t, err)
	assert.Empty(t, f.chain.Calls)
}

func TestSwap_ApprovalFailureAborts(t *testing.T) {
	f := newFixture(t)
	f.chain.ApproveGrants = false

	_, err := f.p.Swap(context.Background(), f.sellOrder())
	de, ok := domain.AsError(err)
	require.True(t, ok)
	assert.Equal(t, domain.KindUpstream, de.Kind)
	assert.False(t, de.Retryable)
	assert.Contains(t, de.Message, "approval failed")
	assert.Zero(t, f.chain.ExecutedCount(), "the swap is never submitted")
}

func TestSwap_SubmissionRejected(t *testing.T) {
	f := newFixture(t)
	f.chain.ExecuteErr = errors.New("insufficient funds for gas")

	_, err := f.p.Swap(context.Background(), f.buyOrder())
	de, ok := domain.AsError(err)
	require.True(t, ok)
	assert.Equal(t, domain.KindUpstream, de.Kind)
	assert.False(t, de.Retryable)
	assert.Empty(t, f.repo.AllTransactions())

	intents := f.repo.Intents()
	require.Len(t, intents, 1)
	assert.Equal(t, domain.IntentAbandoned, intents[0].State)
}

func TestSwap_UnknownOutcomeIsRecordedPending(t *testing.T) {
	f := newFixture(t)
	f.chain.ExecuteErr = errors.New("receipt polling: connection reset")
	f.chain.BroadcastFirst = true

	out, err := f.p.Swap(context.Background(), f.buyOrder())
	require.NoError(t, err)
	assert.Equal(t, domain.TxPending, out.Receipt.Status)

	txs := f.repo.AllTransactions()
	require.Len(t, txs, 1)
	assert.Equal(t, domain.TxPending, txs[0].Status)
	assert.NotEmpty(t, txs[0].Hash)
}

func TestSwap_RevertedIsRecordedAndReported(t *testing.T) {
	f := newFixture(t)
	f.chain.ExecuteStatus = domain.TxFailed

	out, err := f.p.Swap(context.Background(), f.buyOrder())
	require.Error(t, err)
	assert.True(t, out.Recorded)
	txs := f.repo.AllTransactions()
	require.Len(t, txs, 1)
	assert.Equal(t, domain.TxFailed, txs[0].Status)
}

func TestSwap_RecordWriteIsRetried(t *testing.T) {
	f := newFixture(t)
	f.repo.CompleteFailures = 2

	out, err := f.p.Swap(context.Background(), f.buyOrder())
	require.NoError(t, err)
	assert.True(t, out.Recorded)
	assert.Len(t, f.repo.AllTransactions(), 1)
}

func TestSwap_RecordWriteExhaustedLeavesIntent(t *testing.T) {
	f := newFixture(t)
	f.repo.CompleteFailures = 10

	out, err := f.p.Swap(context.Background(), f.buyOrder())
	require.NoError(t, err, "the swap happened; recording is deferred")
	assert.False(t, out.Recorded)
	assert.Empty(t, f.repo.AllTransactions())

	intents := f.repo.Intents()
	require.Len(t, intents, 1)
	assert.Equal(t, domain.IntentSubmitted, intents[0].State)
	assert.Equal(t, out.Receipt.Hash, intents[0].TxHash)
}

func TestSwap_SwapPayloadFailureIsRetryable(t *testing.T) {
	f := newFixture(t)
	f.agg.SwapErr = errors.New("timeout")
	_, err := f.p.Swap(context.Background(), f.buyOrder())
	de, ok := domain.AsError(err)
	require.True(t, ok)
	assert.True(t, de.Retryable)
	assert.Zero(t, f.chain.ExecutedCount())
}

func TestSwap_IncompleteOrder(t *testing.T) {
	f := newFixture(t)
	order := f.buyOrder()
	order.Quote = domain.Quote{}
	_, err := f.p.Swap(context.Background(), order)
	de, ok := domain.AsError(err)
	require.True(t, ok)
	assert.Equal(t, domain.KindSessionState, de.Kind)
}

func TestTransfer(t *testing.T) {
	f := newFixture(t)
	out, err := f.p.Transfer(context.Background(), pipeline.TransferOrder{
		SessionID:  "s1",
		UserID:     "1001",
		Wallet:     f.wallet,
		To:         "0x00000000000000000000000000000000000000b2",
		AmountBase: "10000000000000000",
		Settings:   domain.DefaultSettings(),
	})
	require.NoError(t, err)
	assert.True(t, out.Recorded)
	require.Equal(t, 1, f.chain.ExecutedCount())
	assert.Equal(t, "10000000000000000", f.chain.Executed[0].Value.String())
	assert.Empty(t, f.agg.Quotes)

	txs := f.repo.AllTransactions()
	require.Len(t, txs, 1)
	assert.Equal(t, domain.TxTransfer, txs[0].Kind)
}
