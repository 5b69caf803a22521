// Package reconcile closes the gap between submitting a transaction and
// recording it. It finishes execution intents left open by a crash or a
// failed record write, and settles records that were written as pending.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/swapflow/internal/logging"
	"github.com/aretw0/swapflow/pkg/domain"
	"github.com/aretw0/swapflow/pkg/observability"
	"github.com/aretw0/swapflow/pkg/ports"
)

const (
	DefaultGrace        = 5 * time.Minute
	DefaultAbandonAfter = time.Hour
)

// Result labels, also used as metric values.
const (
	ResultRecorded  = "recorded"
	ResultSettled   = "settled"
	ResultDropped   = "dropped"
	ResultAbandoned = "abandoned"
	ResultWaiting   = "waiting"
	ResultError     = "error"
)

// Config tunes the reconciler.
type Config struct {
	// Grace is how old an intent or pending record must be before it is inspected.
	Grace time.Duration
	// AbandonAfter is how long a transaction may stay unknown to the node
	// before it is considered dropped.
	AbandonAfter time.Duration
}

// Report counts what one pass did.
type Report struct {
	Recorded  int
	Settled   int
	Dropped   int
	Abandoned int
	Waiting   int
	Errors    int
}

func (r *Report) add(result string) {
	switch result {
	case ResultRecorded:
		r.Recorded++
	case ResultSettled:
		r.Settled++
	case ResultDropped:
		r.Dropped++
	case ResultAbandoned:
		r.Abandoned++
	case ResultWaiting:
		r.Waiting++
	default:
		r.Errors++
	}
}

// Reconciler inspects the ledger against the chain.
type Reconciler struct {
	ledger  ports.Ledger
	chain   ports.Chain
	cfg     Config
	logger  *slog.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// Option configures the Reconciler.
type Option func(*Reconciler)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) { r.logger = logger }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(r *Reconciler) { r.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

func New(ledger ports.Ledger, chain ports.Chain, cfg Config, opts ...Option) *Reconciler {
	if cfg.Grace <= 0 {
		cfg.Grace = DefaultGrace
	}
	if cfg.AbandonAfter <= cfg.Grace {
		cfg.AbandonAfter = max(DefaultAbandonAfter, 2*cfg.Grace)
	}
	r := &Reconciler{
		ledger: ledger,
		chain:  chain,
		cfg:    cfg,
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run performs one pass. Failures on single items are counted and logged;
// only a failure to list the work is returned.
func (r *Reconciler) Run(ctx context.Context) (Report, error) {
	var report Report
	now := r.now()
	cutoff := now.Add(-r.cfg.Grace)

	intents, err := r.ledger.OpenIntents(ctx, cutoff)
	if err != nil {
		return report, fmt.Errorf("list open intents: %w", err)
	}
	for _, in := range intents {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		result := r.intent(ctx, in, now)
		report.add(result)
		r.metrics.Reconciled(result)
	}

	pending, err := r.ledger.PendingTransactions(ctx, cutoff)
	if err != nil {
		return report, fmt.Errorf("list pending transactions: %w", err)
	}
	for _, tx := range pending {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		result := r.pending(ctx, tx, now)
		report.add(result)
		r.metrics.Reconciled(result)
	}

	if len(intents)+len(pending) > 0 {
		r.logger.Info("Reconciliation pass finished",
			"recorded", report.Recorded, "settled", report.Settled, "dropped", report.Dropped,
			"abandoned", report.Abandoned, "waiting", report.Waiting, "errors", report.Errors)
	}
	return report, nil
}

func (r *Reconciler) intent(ctx context.Context, in domain.ExecutionIntent, now time.Time) string {
	logger := r.logger.With("intent_id", in.ID, "user_id", in.UserID, "tx_hash", in.TxHash)
	expired := now.Sub(in.CreatedAt) > r.cfg.AbandonAfter

	if in.TxHash == "" {
		// Never broadcast as far as the ledger knows.
		if !expired {
			return ResultWaiting
		}
		if err := r.ledger.CloseIntent(ctx, in.ID, domain.IntentAbandoned); err != nil {
			logger.Error("Failed to abandon intent", "err", err)
			return ResultError
		}
		logger.Warn("Abandoned intent without a transaction")
		return ResultAbandoned
	}

	receipt, found, err := r.chain.Receipt(ctx, in.TxHash)
	if err != nil {
		logger.Warn("Receipt lookup failed", "err", err)
		return ResultError
	}
	result := ResultRecorded
	if !found {
		if !expired {
			return ResultWaiting
		}
		receipt = domain.Receipt{Hash: in.TxHash, Status: domain.TxFailed}
		result = ResultDropped
	}

	if err := r.ledger.CompleteExecution(ctx, in.ID, in.Transaction(receipt, in.CreatedAt)); err != nil {
		logger.Error("Failed to record transaction", "err", err)
		return ResultError
	}
	logger.Info("Recorded transaction from open intent", "status", receipt.Status)
	return result
}

func (r *Reconciler) pending(ctx context.Context, tx domain.Transaction, now time.Time) string {
	logger := r.logger.With("tx_hash", tx.Hash, "user_id", tx.UserID)

	receipt, found, err := r.chain.Receipt(ctx, tx.Hash)
	if err != nil {
		logger.Warn("Receipt lookup failed", "err", err)
		return ResultError
	}
	result := ResultSettled
	if !found || !receipt.Status.Final() {
		if now.Sub(tx.CreatedAt) <= r.cfg.AbandonAfter {
			return ResultWaiting
		}
		receipt = domain.Receipt{Status: domain.TxFailed}
		result = ResultDropped
	}

	err = r.ledger.UpdateTransactionStatus(ctx, tx.Hash, receipt.Status, receipt.GasUsed)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		logger.Error("Failed to settle transaction", "err", err)
		return ResultError
	}
	logger.Info("Settled pending transaction", "status", receipt.Status)
	return result
}
