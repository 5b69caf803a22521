package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/swapflow/internal/adapters/custody"
	"github.com/aretw0/swapflow/internal/adapters/evm"
	"github.com/aretw0/swapflow/internal/adapters/openocean"
	"github.com/aretw0/swapflow/internal/adapters/sqlstore"
	"github.com/aretw0/swapflow/internal/config"
	"github.com/aretw0/swapflow/internal/dispatch"
	"github.com/aretw0/swapflow/internal/pipeline"
	"github.com/aretw0/swapflow/internal/ratelimit"
	"github.com/aretw0/swapflow/internal/reconcile"
	"github.com/aretw0/swapflow/internal/workflow"
	swaphttp "github.com/aretw0/swapflow/pkg/adapters/http"
	"github.com/aretw0/swapflow/pkg/adapters/memory"
	"github.com/aretw0/swapflow/pkg/adapters/redis"
	"github.com/aretw0/swapflow/pkg/observability"
	"github.com/aretw0/swapflow/pkg/persistence/middleware"
	"github.com/aretw0/swapflow/pkg/ports"
	"github.com/aretw0/swapflow/pkg/session"
)

// ErrNoWalletKey is returned when custody is needed but no sealing key is configured.
var ErrNoWalletKey = errors.New("custody.wallet_key is required")

// App is the fully wired service.
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	Metrics    *observability.Metrics
	Sessions   *session.Manager
	Ledger     *sqlstore.Store
	Vault      *custody.Vault
	Chain      ports.Chain
	Reconciler *reconcile.Reconciler
	Handler    http.Handler

	closers []func() error
}

// Option replaces a wired dependency, mostly for tests.
type Option func(*buildOptions)

type buildOptions struct {
	chain      ports.Chain
	aggregator ports.SwapAggregator
}

// WithChain skips dialing the RPC endpoint.
func WithChain(chain ports.Chain) Option {
	return func(o *buildOptions) { o.chain = chain }
}

// WithAggregator skips building the OpenOcean client.
func WithAggregator(agg ports.SwapAggregator) Option {
	return func(o *buildOptions) { o.aggregator = agg }
}

// Build wires every component from configuration. On failure everything
// opened so far is closed again.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (_ *App, err error) {
	var bo buildOptions
	for _, opt := range opts {
		opt(&bo)
	}

	app := &App{Config: cfg, Logger: logger, Metrics: observability.NewMetrics()}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	store, locker, closeStore, err := NewSessionStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, closeStore)

	managerOpts := []session.Option{
		session.WithLogger(logger),
		session.WithLease(cfg.Session.LeaseTTL, cfg.Session.LeaseWait),
		session.WithBusyHook(app.Metrics.LeaseBusy),
	}
	if locker != nil {
		managerOpts = append(managerOpts, session.WithLocker(locker))
	}
	app.Sessions = session.NewManager(store, managerOpts...)

	app.Ledger, err = sqlstore.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	app.closers = append(app.closers, app.Ledger.Close)

	app.Vault, err = NewVault(cfg, app.Ledger)
	if err != nil {
		return nil, err
	}

	app.Chain = bo.chain
	if app.Chain == nil {
		client, err := evm.Dial(ctx, cfg.Chain.RPCURL, app.Vault, cfg.Chain.ChainID,
			evm.WithReceiptWait(cfg.Chain.ReceiptTimeout, cfg.Chain.PollInterval),
			evm.WithLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("connect to chain: %w", err)
		}
		app.closers = append(app.closers, func() error { client.Close(); return nil })
		app.Chain = client
	}

	aggregator := bo.aggregator
	if aggregator == nil {
		aggregator = openocean.New(openocean.Config{
			BaseURL: cfg.Aggregator.BaseURL,
			Chain:   cfg.Aggregator.Chain,
			APIKey:  cfg.Aggregator.APIKey,
			Timeout: cfg.Aggregator.Timeout,
			Retries: cfg.Aggregator.Retries,
		}, openocean.WithLogger(logger))
	}

	p := pipeline.New(app.Chain, aggregator, app.Ledger,
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(app.Metrics),
		pipeline.WithQuoteTTL(cfg.Pipeline.QuoteTTL),
		pipeline.WithRecordRetries(cfg.Pipeline.RecordRetries, 200*time.Millisecond),
	)
	flows := workflow.New(app.Ledger, app.Ledger, app.Vault, app.Chain, p, workflow.WithLogger(logger))
	dispatcher := dispatch.New(app.Sessions, flows,
		dispatch.WithLogger(logger),
		dispatch.WithMetrics(app.Metrics),
		dispatch.WithWorkflowTimeout(cfg.Session.WorkflowTimeout),
	)

	app.Reconciler = reconcile.New(app.Ledger, app.Chain, reconcile.Config{
		Grace:        cfg.Reconcile.Grace,
		AbandonAfter: cfg.Reconcile.AbandonAfter,
	}, reconcile.WithLogger(logger), reconcile.WithMetrics(app.Metrics))

	app.Handler = swaphttp.NewHandler(dispatcher,
		swaphttp.WithConfig(swaphttp.Config{
			CookieName:   cfg.Server.CookieName,
			SecureCookie: cfg.Server.SecureCookie,
			CookieTTL:    cfg.Session.TTL,
			CORSOrigin:   cfg.Server.CORSOrigin,
		}),
		swaphttp.WithLimiter(ratelimit.New(cfg.Server.RateLimitRPS, cfg.Server.RateBurst, 10*time.Minute)),
		swaphttp.WithMetrics(app.Metrics),
		swaphttp.WithLogger(logger),
	)
	return app, nil
}

// Close releases every opened resource in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// NewSessionStore builds the configured session backend, sealed when an
// encryption key is set. The locker is nil for the memory backend.
func NewSessionStore(ctx context.Context, cfg *config.Config) (ports.SessionStore, ports.DistributedLocker, func() error, error) {
	var (
		store  ports.SessionStore
		locker ports.DistributedLocker
		closer = func() error { return nil }
	)

	switch cfg.Session.Backend {
	case "redis":
		rs := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			redis.WithTTL(cfg.Session.TTL),
			redis.WithPrefix(cfg.Redis.Prefix),
		)
		if err := rs.Client().Ping(ctx).Err(); err != nil {
			_ = rs.Close()
			return nil, nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		store, locker, closer = rs, redis.NewLocker(rs.Client(), cfg.Redis.Prefix), rs.Close
	default:
		store = memory.NewStore(memory.WithTTL(cfg.Session.TTL))
	}

	if cfg.Session.EncryptionKey == "" {
		return store, locker, closer, nil
	}
	active, err := config.DecodeKey(cfg.Session.EncryptionKey)
	if err != nil {
		_ = closer()
		return nil, nil, nil, fmt.Errorf("session.encryption_key: %w", err)
	}
	enc := middleware.EncryptionConfig{ActiveKey: active}
	for _, k := range cfg.Session.FallbackKeys {
		key, err := config.DecodeKey(k)
		if err != nil {
			_ = closer()
			return nil, nil, nil, fmt.Errorf("session.fallback_keys: %w", err)
		}
		enc.FallbackKeys = append(enc.FallbackKeys, key)
	}
	mw, err := middleware.NewEncryptionMiddleware(enc)
	if err != nil {
		_ = closer()
		return nil, nil, nil, err
	}
	return middleware.Chain(store, mw), locker, closer, nil
}

// NewVault builds the key custody over the accounts store.
func NewVault(cfg *config.Config, accounts ports.Accounts) (*custody.Vault, error) {
	if cfg.Custody.WalletKey == "" {
		return nil, ErrNoWalletKey
	}
	key, err := config.DecodeKey(cfg.Custody.WalletKey)
	if err != nil {
		return nil, fmt.Errorf("custody.wallet_key: %w", err)
	}
	return custody.New(accounts, key)
}

// OpenCustody opens the ledger and the vault over it, for offline wallet
// administration. The caller closes the returned store.
func OpenCustody(cfg *config.Config) (*sqlstore.Store, *custody.Vault, error) {
	ledger, err := sqlstore.Open(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	vault, err := NewVault(cfg, ledger)
	if err != nil {
		_ = ledger.Close()
		return nil, nil, err
	}
	return ledger, vault, nil
}
