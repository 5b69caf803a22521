// Package pipeline turns a confirmed swap or transfer intent into a priced,
// submitted and recorded on-chain operation.
package pipeline

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/aretw0/swapflow/internal/logging"
	"github.com/aretw0/swapflow/pkg/domain"
	"github.com/aretw0/swapflow/pkg/observability"
	"github.com/aretw0/swapflow/pkg/ports"
	"github.com/google/uuid"
)

const (
	DefaultQuoteTTL      = 60 * time.Second
	DefaultRecordRetries = 5
)

// erc20ApproveABI is the minimal fragment needed to grant an allowance.
const erc20ApproveABI = `[{"constant":false,"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"type":"function"}]`

// Pipeline runs the quote, confirm and execute stages shared by every trade.
type Pipeline struct {
	chain      ports.Chain
	aggregator ports.SwapAggregator
	ledger     ports.Ledger

	logger        *slog.Logger
	metrics       *observability.Metrics
	quoteTTL      time.Duration
	recordRetries int
	retryDelay    time.Duration
	now           func() time.Time
	newID         func() string
}

// Option configures the Pipeline.
type Option func(*Pipeline)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithQuoteTTL sets how long a stored quote may be executed without re-quoting.
func WithQuoteTTL(ttl time.Duration) Option {
	return func(p *Pipeline) {
		if ttl > 0 {
			p.quoteTTL = ttl
		}
	}
}

// WithRecordRetries sets the attempts and the base backoff of the record write.
func WithRecordRetries(attempts int, delay time.Duration) Option {
	return func(p *Pipeline) {
		if attempts > 0 {
			p.recordRetries = attempts
		}
		p.retryDelay = delay
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a Pipeline over its collaborators.
func New(chain ports.Chain, aggregator ports.SwapAggregator, ledger ports.Ledger, opts ...Option) *Pipeline {
	p := &Pipeline{
		chain:         chain,
		aggregator:    aggregator,
		ledger:        ledger,
		logger:        logging.NewNop(),
		quoteTTL:      DefaultQuoteTTL,
		recordRetries: DefaultRecordRetries,
		retryDelay:    200 * time.Millisecond,
		now:           time.Now,
		newID:         uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// QuoteInput describes a prospective swap.
type QuoteInput struct {
	FromToken    string
	ToToken      string
	FromDecimals int
	ToDecimals   int
	// Amount is the decimal quantity of FromToken.
	Amount   string
	Priority domain.GasPriority
}

// Quote prices a swap. Failures are retryable: the caller keeps its state.
func (p *Pipeline) Quote(ctx context.Context, in QuoteInput) (domain.Quote, error) {
	gasPrice := GasPriceGwei(in.Priority)
	res, err := p.aggregator.Quote(ctx, domain.QuoteRequest{
		FromToken: in.FromToken,
		ToToken:   in.ToToken,
		Amount:    in.Amount,
		GasPrice:  gasPrice,
	})
	if err != nil {
		p.metrics.Quoted("error")
		return domain.Quote{}, domain.RetryableUpstream("Could not get a quote right now. Please enter the amount again.", err)
	}
	if out, ok := new(big.Int).SetString(res.OutAmount, 10); !ok || out.Sign() <= 0 {
		p.metrics.Quoted("no_route")
		return domain.Quote{}, domain.RetryableUpstream("No route found for this swap. Try another amount.", nil)
	}
	p.metrics.Quoted("ok")
	return domain.Quote{
		OutAmount:    res.OutAmount,
		EstimatedGas: res.EstimatedGas,
		FromDecimals: in.FromDecimals,
		ToDecimals:   in.ToDecimals,
		GasPrice:     gasPrice,
		QuotedAt:     p.now(),
	}, nil
}

// SwapOrder is a confirmed swap. Amounts and decimals come from the stored
// quote and are never re-derived.
type SwapOrder struct {
	SessionID string
	UserID    string
	Wallet    *domain.Wallet
	FromToken string
	ToToken   string
	// Amount is the decimal quantity of FromToken; AmountBase the same in base units.
	Amount     string
	AmountBase string
	Quote      domain.Quote
	Settings   domain.Settings
}

// Outcome reports what an execution attempt did.
type Outcome struct {
	// Requoted is set when the stored quote had expired. Nothing was submitted
	// and Quote holds the fresh estimate awaiting a new confirmation.
	Requoted    bool
	Quote       domain.Quote
	Receipt     domain.Receipt
	Transaction domain.Transaction
	// Recorded is false when the record write is left to the reconciler.
	Recorded bool
}

// Swap executes a confirmed swap.
func (p *Pipeline) Swap(ctx context.Context, order SwapOrder) (Outcome, error) {
	if order.Wallet == nil || order.AmountBase == "" || order.Quote.OutAmount == "" {
		return Outcome{}, domain.SessionState("swap order is incomplete")
	}

	if p.now().Sub(order.Quote.QuotedAt) > p.quoteTTL {
		q, err := p.Quote(ctx, QuoteInput{
			FromToken:    order.FromToken,
			ToToken:      order.ToToken,
			FromDecimals: order.Quote.FromDecimals,
			ToDecimals:   order.Quote.ToDecimals,
			Amount:       order.Amount,
			Priority:     order.Settings.GasPriority,
		})
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Requoted: true, Quote: q}, nil
	}

	gas := ResolveGas(order.Settings.GasPriority)
	swap, err := p.aggregator.Swap(ctx, domain.SwapRequest{
		FromToken: order.FromToken,
		ToToken:   order.ToToken,
		Amount:    order.Amount,
		GasPrice:  GasPriceGwei(order.Settings.GasPriority),
		Slippage:  order.Settings.Slippage,
		Account:   order.Wallet.Address,
	})
	if err != nil {
		return Outcome{}, domain.RetryableUpstream("Could not build the swap right now. Please confirm again.", err)
	}
	data, value, err := decodePayload(swap)
	if err != nil {
		return Outcome{}, domain.RetryableUpstream("The swap provider returned an invalid transaction.", err)
	}

	if !domain.IsNative(order.FromToken) {
		need, _ := new(big.Int).SetString(order.AmountBase, 10)
		if err := p.ensureAllowance(ctx, order, swap.To, need, gas); err != nil {
			return Outcome{}, err
		}
	}

	toAmount := swap.OutAmount
	if toAmount == "" {
		toAmount = order.Quote.OutAmount
	}
	intent := domain.ExecutionIntent{
		SessionID:     order.SessionID,
		UserID:        order.UserID,
		WalletAddress: order.Wallet.Address,
		Kind:          domain.TxSwap,
		FromToken:     order.FromToken,
		ToToken:       order.ToToken,
		FromAmount:    order.AmountBase,
		ToAmount:      toAmount,
	}
	return p.execute(ctx, order.Wallet, intent, domain.TxRequest{
		To:    swap.To,
		Data:  data,
		Value: value,
		Gas:   gas,
	})
}

// TransferOrder is a confirmed native withdrawal.
type TransferOrder struct {
	SessionID  string
	UserID     string
	Wallet     *domain.Wallet
	To         string
	AmountBase string
	Settings   domain.Settings
}

// Transfer sends native funds. There is no quote stage.
func (p *Pipeline) Transfer(ctx context.Context, order TransferOrder) (Outcome, error) {
	value, ok := new(big.Int).SetString(order.AmountBase, 10)
	if order.Wallet == nil || order.To == "" || !ok || value.Sign() <= 0 {
		return Outcome{}, domain.SessionState("transfer order is incomplete")
	}
	intent := domain.ExecutionIntent{
		SessionID:     order.SessionID,
		UserID:        order.UserID,
		WalletAddress: order.Wallet.Address,
		Kind:          domain.TxTransfer,
		FromToken:     domain.NativeToken,
		ToToken:       order.To,
		FromAmount:    order.AmountBase,
		ToAmount:      order.AmountBase,
	}
	return p.execute(ctx, order.Wallet, intent, domain.TxRequest{
		To:    order.To,
		Value: value,
		Gas:   ResolveGas(order.Settings.GasPriority),
	})
}

// execute opens an intent, submits, and records. Any failure from here on is
// terminal for the workflow because a submission may have happened.
func (p *Pipeline) execute(ctx context.Context, wallet *domain.Wallet, intent domain.ExecutionIntent, tx domain.TxRequest) (Outcome, error) {
	now := p.now()
	intent.ID = p.newID()
	intent.State = domain.IntentOpen
	intent.CreatedAt = now
	intent.UpdatedAt = now
	if err := p.ledger.BeginExecution(ctx, intent); err != nil {
		return Outcome{}, domain.RetryableUpstream("Could not start the transaction. Please confirm again.", err)
	}

	logger := p.logger.With("intent_id", intent.ID, "user_id", intent.UserID, "kind", intent.Kind)

	var broadcast string
	tx.OnBroadcast = func(hash string) {
		broadcast = hash
		// The hash must survive a cancelled request.
		if err := p.ledger.AttachHash(context.WithoutCancel(ctx), intent.ID, hash); err != nil {
			logger.Error("Failed to attach hash to intent", "tx_hash", hash, "err", err)
		}
	}

	receipt, execErr := p.chain.ExecuteTransaction(ctx, wallet, tx)
	if receipt.Hash == "" {
		receipt.Hash = broadcast
	}
	if execErr != nil {
		if receipt.Hash == "" {
			p.metrics.Executed(string(intent.Kind), "rejected")
			if err := p.ledger.CloseIntent(context.WithoutCancel(ctx), intent.ID, domain.IntentAbandoned); err != nil {
				logger.Error("Failed to abandon intent", "err", err)
			}
			return Outcome{}, domain.Upstream("Transaction failed. Please try again.", execErr)
		}
		// Submitted but the outcome is unknown; the reconciler settles it.
		logger.Warn("Transaction outcome unknown", "tx_hash", receipt.Hash, "err", execErr)
		receipt.Status = domain.TxPending
	}
	if receipt.Status == "" {
		receipt.Status = domain.TxPending
	}
	p.metrics.Executed(string(intent.Kind), string(receipt.Status))

	record := intent.Transaction(receipt, p.now())
	out := Outcome{Receipt: receipt, Transaction: record}
	if err := p.record(ctx, intent.ID, record); err != nil {
		logger.Error("Transaction record deferred to reconciliation", "tx_hash", receipt.Hash, "err", err)
	} else {
		out.Recorded = true
	}

	if receipt.Status == domain.TxFailed {
		return out, domain.Upstream("Transaction failed on-chain.", fmt.Errorf("transaction %s reverted", receipt.Hash))
	}
	return out, nil
}

// record writes the transaction and closes its intent, backing off between attempts.
func (p *Pipeline) record(ctx context.Context, intentID string, tx domain.Transaction) error {
	ctx = context.WithoutCancel(ctx)
	var lastErr error
	for attempt := 0; attempt < p.recordRetries; attempt++ {
		if attempt > 0 {
			p.metrics.RecordRetried()
			time.Sleep(backoff(p.retryDelay, attempt))
		}
		if lastErr = p.ledger.CompleteExecution(ctx, intentID, tx); lastErr == nil {
			return nil
		}
	}
	return lastErr
}

func (p *Pipeline) ensureAllowance(ctx context.Context, order SwapOrder, spender string, need *big.Int, gas domain.GasParams) error {
	owner := order.Wallet.Address
	allowance, err := p.chain.TokenAllowance(ctx, order.FromToken, owner, spender)
	if err != nil {
		return domain.RetryableUpstream("Could not check the token allowance. Please confirm again.", err)
	}
	if allowance.Cmp(need) >= 0 {
		return nil
	}

	p.logger.Info("Approving token spend", "user_id", order.UserID, "token", order.FromToken, "spender", spender)
	receipt, err := p.chain.ExecuteContractMethod(ctx, order.Wallet, domain.ContractCall{
		Contract: order.FromToken,
		ABI:      erc20ApproveABI,
		Method:   "approve",
		Args:     []any{spender, new(big.Int).Set(domain.MaxUint256)},
		Gas:      gas,
	})
	if receipt.Hash != "" {
		approval := domain.Transaction{
			Hash:          receipt.Hash,
			UserID:        order.UserID,
			WalletAddress: owner,
			Kind:          domain.TxApprove,
			FromToken:     order.FromToken,
			ToToken:       spender,
			Status:        receipt.Status,
			GasUsed:       receipt.GasUsed,
			CreatedAt:     p.now(),
		}
		if receipt.Status == "" {
			approval.Status = domain.TxPending
		}
		if serr := p.ledger.SaveTransaction(context.WithoutCancel(ctx), approval); serr != nil {
			p.logger.Error("Failed to record approval", "tx_hash", receipt.Hash, "err", serr)
		}
	}
	if err != nil {
		return domain.Upstream("Token approval failed. Please try again.", err)
	}
	if receipt.Status == domain.TxFailed {
		return domain.Upstream("Token approval failed. Please try again.", errors.New("approval reverted"))
	}

	allowance, err = p.chain.TokenAllowance(ctx, order.FromToken, owner, spender)
	if err != nil || allowance.Cmp(need) < 0 {
		return domain.Upstream("Token approval failed. Please try again.", err)
	}
	return nil
}

func decodePayload(swap domain.SwapTx) ([]byte, *big.Int, error) {
	if swap.To == "" {
		return nil, nil, errors.New("swap payload has no target")
	}
	data, err := hex.DecodeString(strings.TrimPrefix(swap.Data, "0x"))
	if err != nil {
		return nil, nil, fmt.Errorf("swap data is not hex: %w", err)
	}
	value := new(big.Int)
	if swap.Value != "" {
		if _, ok := value.SetString(swap.Value, 10); !ok {
			return nil, nil, fmt.Errorf("swap value %q is not an integer", swap.Value)
		}
	}
	return data, value, nil
}

func backoff(base time.Duration, attempt int) time.Duration {
	d := base * time.Duration(1<<uint(attempt-1))
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
