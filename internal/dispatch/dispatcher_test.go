package dispatch_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/swapflow/internal/dispatch"
	"github.com/aretw0/swapflow/internal/pipeline"
	"github.com/aretw0/swapflow/internal/testutils"
	"github.com/aretw0/swapflow/internal/workflow"
	"github.com/aretw0/swapflow/pkg/adapters/memory"
	"github.com/aretw0/swapflow/pkg/domain"
	"github.com/aretw0/swapflow/pkg/observability"
	"github.com/aretw0/swapflow/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	sessionID   = "sess-1"
	destination = "0x00000000000000000000000000000000000000d5"
)

var trader = domain.Identity{FID: "1001", Username: "trader"}

type harness struct {
	mu      sync.Mutex
	now     time.Time
	store   *memory.Store
	manager *session.Manager
	repo    *testutils.Repository
	wallets *testutils.Wallets
	chain   *testutils.Chain
	agg     *testutils.Aggregator
	svc     *workflow.Service
	metrics *observability.Metrics
	d       *dispatch.Dispatcher
}

func newHarness(t *testing.T, wrap func(*workflow.Service) dispatch.Flows) *harness {
	t.Helper()
	h := &harness{
		now:     time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		store:   memory.NewStore(),
		repo:    testutils.NewRepository(),
		chain:   testutils.NewChain(),
		agg:     testutils.NewAggregator(),
		metrics: observability.NewMetrics(),
	}
	h.wallets = testutils.NewWallets(h.repo)
	h.manager = session.NewManager(h.store, session.WithClock(h.clock))
	p := pipeline.New(h.chain, h.agg, h.repo, pipeline.WithClock(h.clock), pipeline.WithRecordRetries(2, 0))
	h.svc = workflow.New(h.repo, h.repo, h.wallets, h.chain, p)

	var flows dispatch.Flows = h.svc
	if wrap != nil {
		flows = wrap(h.svc)
	}
	h.d = dispatch.New(h.manager, flows,
		dispatch.WithClock(h.clock),
		dispatch.WithMetrics(h.metrics),
		dispatch.WithWorkflowTimeout(15*time.Minute),
	)
	return h
}

func (h *harness) clock() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.now
}

func (h *harness) advance(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.now = h.now.Add(d)
}

// fund gives the trader a wallet holding 0.1 ETH.
func (h *harness) fund(t *testing.T) *domain.Wallet {
	t.Helper()
	w, err := h.wallets.GenerateWallet(context.Background(), trader.UserID())
	require.NoError(t, err)
	h.chain.SetNative(w.Address, "100000000000000000")
	return w
}

func (h *harness) send(t *testing.T, ev domain.Event) domain.Reply {
	t.Helper()
	reply, err := h.d.Dispatch(context.Background(), sessionID, trader, ev)
	require.NoError(t, err)
	return reply
}

func (h *harness) session(t *testing.T) *domain.Session {
	t.Helper()
	s, err := h.store.Load(context.Background(), sessionID)
	require.NoError(t, err)
	return s
}

func (h *harness) toConfirm(t *testing.T) {
	t.Helper()
	h.send(t, domain.Callback("token_USDC", ""))
	h.send(t, domain.Text("0.05"))
	require.Equal(t, domain.ActionBuyConfirm, h.session(t).CurrentAction)
}

func TestDispatch_BindsAndPersists(t *testing.T) {
	h := newHarness(t, nil)

	reply := h.send(t, domain.Command("/start", ""))
	assert.Contains(t, reply.Text, "Welcome to swapflow")

	s := h.session(t)
	assert.Equal(t, "1001", s.UserID)
	assert.Equal(t, "trader", s.Username)
	assert.Equal(t, domain.DefaultSettings(), s.Settings)
	assert.Contains(t, h.repo.Users, "1001")

	reply = h.send(t, domain.Command("start", ""))
	assert.Contains(t, reply.Text, "Welcome back, trader!")
}

func TestDispatch_BuyToCompletion(t *testing.T) {
	h := newHarness(t, nil)
	h.fund(t)

	h.toConfirm(t)
	reply := h.send(t, domain.Callback("confirm_yes", ""))

	assert.Contains(t, reply.Text, "Transaction Successful")
	s := h.session(t)
	assert.True(t, s.Idle())
	assert.True(t, s.Flow.Empty())
	assert.Len(t, h.repo.AllTransactions(), 1)
}

func TestDispatch_UserInputKeepsStep(t *testing.T) {
	h := newHarness(t, nil)
	h.fund(t)
	h.send(t, domain.Callback("token_USDC", ""))

	reply := h.send(t, domain.Text("5"))
	assert.Contains(t, reply.Text, "Insufficient balance")
	assert.True(t, strings.HasSuffix(reply.Text, "Try again or type /cancel to abort."))

	s := h.session(t)
	assert.Equal(t, domain.ActionBuyAmount, s.CurrentAction)
	assert.Equal(t, "USDC", s.Flow.Buy.ToSymbol)
}

func TestDispatch_CancelFromAnyStep(t *testing.T) {
	h := newHarness(t, nil)
	h.fund(t)

	h.send(t, domain.Command("withdraw", ""))
	h.send(t, domain.Text(destination))
	require.Equal(t, domain.ActionWithdrawAmount, h.session(t).CurrentAction)

	reply := h.send(t, domain.Command("cancel", ""))
	assert.Equal(t, "Operation cancelled.", reply.Text)
	assert.True(t, h.session(t).Idle())

	reply = h.send(t, domain.Command("cancel", ""))
	assert.Equal(t, "Nothing to cancel.", reply.Text)
}

func TestDispatch_GlobalCallbackAbandonsWorkflow(t *testing.T) {
	h := newHarness(t, nil)
	h.fund(t)
	h.toConfirm(t)

	reply := h.send(t, domain.Callback("check_balance", ""))
	assert.Contains(t, reply.Text, "Your Balances")
	assert.True(t, h.session(t).Idle())
	assert.Zero(t, h.chain.ExecutedCount())
}

func TestDispatch_StepWinsOverGlobal(t *testing.T) {
	h := newHarness(t, nil)
	h.send(t, domain.Command("start", ""))
	h.send(t, domain.Callback("settings_slippage", ""))
	require.Equal(t, domain.ActionSettingsSlippage, h.session(t).CurrentAction)

	h.send(t, domain.Callback("slippage_0.5", ""))
	s := h.session(t)
	assert.True(t, s.Idle())
	assert.Equal(t, 0.5, s.Settings.Slippage)
}

func TestDispatch_StaleWorkflowIsReset(t *testing.T) {
	h := newHarness(t, nil)
	h.fund(t)
	h.send(t, domain.Callback("token_USDC", ""))

	h.advance(16 * time.Minute)
	reply := h.send(t, domain.Text("0.05"))

	assert.True(t, strings.HasPrefix(reply.Text, "⏱ Your previous operation expired and was cancelled."))
	assert.True(t, h.session(t).Idle())
	assert.Zero(t, h.agg.QuoteCount())
}

func TestDispatch_AddressShortcut(t *testing.T) {
	h := newHarness(t, nil)
	h.fund(t)

	h.send(t, domain.Text(domain.CommonTokens[1].Address))
	s := h.session(t)
	assert.Equal(t, domain.ActionBuyAmount, s.CurrentAction)
	assert.Equal(t, "DAI", s.Flow.Buy.ToSymbol)
}

func TestDispatch_RetryableFailureKeepsStep(t *testing.T) {
	h := newHarness(t, nil)
	h.fund(t)
	h.agg.QuoteErr = errors.New("503 from aggregator")
	h.send(t, domain.Callback("token_USDC", ""))

	reply := h.send(t, domain.Text("0.05"))
	assert.Contains(t, reply.Text, "Could not get a quote")
	assert.Equal(t, domain.ActionBuyAmount, h.session(t).CurrentAction)

	h.agg.QuoteErr = nil
	h.send(t, domain.Text("0.05"))
	assert.Equal(t, domain.ActionBuyConfirm, h.session(t).CurrentAction)
}

func TestDispatch_TerminalFailureResets(t *testing.T) {
	h := newHarness(t, nil)
	w := h.fund(t)
	h.chain.ExecuteErr = errors.New("insufficient funds for gas")

	h.send(t, domain.Command("withdraw", ""))
	h.send(t, domain.Text(destination))
	h.send(t, domain.Text("0.01"))
	reply := h.send(t, domain.Callback("withdraw_confirm_true", ""))

	assert.Contains(t, reply.Text, "Transaction failed")
	s := h.session(t)
	assert.True(t, s.Idle())
	assert.Equal(t, w.Address, s.WalletAddress)
}

func TestDispatch_SessionStateResets(t *testing.T) {
	h := newHarness(t, nil)
	h.send(t, domain.Command("start", ""))

	s := h.session(t)
	s.Begin("retired_step", domain.Flow{}, h.clock())
	require.NoError(t, h.store.Save(context.Background(), sessionID, s))

	reply := h.send(t, domain.Text("hello"))
	assert.Contains(t, reply.Text, "can no longer be resumed")
	assert.True(t, h.session(t).Idle())
}

func TestDispatch_GuestIsRejected(t *testing.T) {
	h := newHarness(t, nil)

	reply, err := h.d.Dispatch(context.Background(), sessionID, domain.Identity{}, domain.Command("buy", ""))
	require.NoError(t, err)
	assert.Equal(t, "Please start the bot first with /start.", reply.Text)

	s := h.session(t)
	assert.True(t, s.Guest)
	assert.True(t, strings.HasPrefix(s.UserID, "guest_"))
	assert.True(t, s.Idle())
}

func TestDispatch_BindFailureKeepsSession(t *testing.T) {
	h := newHarness(t, nil)
	h.repo.SettingsErr = errors.New("database is locked")

	reply := h.send(t, domain.Command("start", ""))
	assert.Equal(t, "❌ Something went wrong. Please try again.", reply.Text)
	assert.Empty(t, h.session(t).UserID)
}

type panicky struct {
	*workflow.Service
}

func (panicky) Fallback(ctx context.Context, req *workflow.Request) (domain.Reply, error) {
	panic("boom")
}

func TestDispatch_PanicResetsWorkflow(t *testing.T) {
	h := newHarness(t, func(s *workflow.Service) dispatch.Flows { return panicky{s} })
	h.fund(t)
	h.send(t, domain.Command("buy", ""))
	require.Equal(t, domain.ActionBuyToken, h.session(t).CurrentAction)

	reply := h.send(t, domain.Text("hello"))
	assert.Equal(t, "❌ Something went wrong. Please try again.", reply.Text)
	assert.True(t, h.session(t).Idle())
}

func TestDispatch_DuplicateConfirmExecutesOnce(t *testing.T) {
	h := newHarness(t, nil)
	h.fund(t)
	h.toConfirm(t)
	h.chain.ExecuteDelay = 50 * time.Millisecond

	var wg sync.WaitGroup
	replies := make([]domain.Reply, 2)
	errs := make([]error, 2)
	for i := range replies {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			replies[i], errs[i] = h.d.Dispatch(context.Background(), sessionID, trader, domain.Callback("confirm_yes", ""))
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, 1, h.chain.ExecutedCount())
	assert.Len(t, h.repo.AllTransactions(), 1)

	successes := 0
	for _, r := range replies {
		if strings.Contains(r.Text, "Transaction Successful") {
			successes++
		}
	}
	assert.Equal(t, 1, successes)
}

func TestDispatch_BusySession(t *testing.T) {
	h := newHarness(t, nil)
	h.manager = session.NewManager(h.store, session.WithLease(time.Minute, 20*time.Millisecond))
	d := dispatch.New(h.manager, h.svc)

	held := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = h.manager.Lease(context.Background(), sessionID, func(context.Context) error {
			close(held)
			<-done
			return nil
		})
	}()
	<-held
	defer close(done)

	_, err := d.Dispatch(context.Background(), sessionID, trader, domain.Command("help", ""))
	assert.ErrorIs(t, err, domain.ErrSessionBusy)
}

func TestDispatch_RecordsMetrics(t *testing.T) {
	h := newHarness(t, nil)
	h.send(t, domain.Command("help", ""))
	h.send(t, domain.Callback("nonsense", ""))

	families, err := h.metrics.Registry().Gather()
	require.NoError(t, err)

	seen := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "swapflow_dispatch_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			var rule string
			for _, l := range m.GetLabel() {
				if l.GetName() == "rule" {
					rule = l.GetValue()
				}
			}
			seen[rule] += m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, 1.0, seen[dispatch.RuleCommand])
	assert.Equal(t, 1.0, seen[dispatch.RuleFallback])
}
