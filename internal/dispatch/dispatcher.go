// Package dispatch routes inbound events to workflow steps under the session
// lease and decides what happens to the session when a handler fails.
//
// Every request follows the same path: bind the identity, expire a stale
// workflow, pick a rule, run the handler on a working copy and settle the
// result into the session that gets saved.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/aretw0/swapflow/internal/logging"
	"github.com/aretw0/swapflow/internal/workflow"
	"github.com/aretw0/swapflow/pkg/domain"
	"github.com/aretw0/swapflow/pkg/observability"
	"github.com/aretw0/swapflow/pkg/ports"
)

const (
	// DefaultWorkflowTimeout is how long a step may wait for the next answer.
	DefaultWorkflowTimeout = 15 * time.Minute

	genericFailure = "❌ Something went wrong. Please try again."
	expiredNotice  = "⏱ Your previous operation expired and was cancelled."
	retryHint      = "Try again or type /cancel to abort."
)

// Rule names, also used as metric labels.
const (
	RuleStep     = "step"
	RuleGlobal   = "global"
	RuleCommand  = "command"
	RuleAddress  = "address"
	RuleFallback = "fallback"
	ruleBind     = "bind"
)

// Sessions runs a read-modify-write cycle on one session under its lease.
type Sessions interface {
	Transact(ctx context.Context, sessionID string, fn func(context.Context, *domain.Session) (*domain.Session, error)) error
}

// Flows is the routing surface of the workflows.
type Flows interface {
	Bind(ctx context.Context, session *domain.Session, id domain.Identity, now time.Time) (bool, error)
	Step(action domain.Action) (workflow.Step, bool)
	Global(id string) (workflow.Handler, bool)
	Command(name string) (workflow.Handler, bool)
	AddressShortcut(ctx context.Context, req *workflow.Request) (domain.Reply, error)
	Fallback(ctx context.Context, req *workflow.Request) (domain.Reply, error)
}

// Dispatcher implements ports.ActionDispatcher.
type Dispatcher struct {
	sessions Sessions
	flows    Flows
	logger   *slog.Logger
	metrics  *observability.Metrics
	timeout  time.Duration
	now      func() time.Time
}

var _ ports.ActionDispatcher = (*Dispatcher)(nil)

// Option configures the Dispatcher.
type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithWorkflowTimeout sets the inactivity limit of a workflow step. Zero disables it.
func WithWorkflowTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) { d.timeout = timeout }
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// New creates a Dispatcher.
func New(sessions Sessions, flows Flows, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sessions: sessions,
		flows:    flows,
		logger:   logging.NewNop(),
		timeout:  DefaultWorkflowTimeout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type result struct {
	reply   domain.Reply
	rule    string
	outcome string
}

// Dispatch handles one event. Handler failures become replies; only
// infrastructure failures (a busy lease, a failed save) are returned.
func (d *Dispatcher) Dispatch(ctx context.Context, sessionID string, identity domain.Identity, event domain.Event) (domain.Reply, error) {
	started := d.now()
	var res result
	err := d.sessions.Transact(ctx, sessionID, func(ctx context.Context, current *domain.Session) (*domain.Session, error) {
		var next *domain.Session
		next, res = d.handle(ctx, sessionID, current, identity, event)
		return next, nil
	})
	if err != nil {
		d.metrics.Dispatched("none", "infrastructure", d.now().Sub(started))
		return domain.Reply{}, err
	}
	d.metrics.Dispatched(res.rule, res.outcome, d.now().Sub(started))
	return res.reply, nil
}

func (d *Dispatcher) handle(ctx context.Context, sessionID string, current *domain.Session, identity domain.Identity, event domain.Event) (*domain.Session, result) {
	now := d.now()
	logger := d.logger.With("session_id", sessionID, "event", event.Kind.String(), "name", event.Name)

	base := current.Clone()
	base.EnsureSettings()
	created, err := d.flows.Bind(ctx, base, identity, now)
	if err != nil {
		logger.Error("Failed to bind identity", "err", err)
		return current, result{reply: domain.Reply{Text: genericFailure}, rule: ruleBind, outcome: "error"}
	}
	logger = logger.With("user_id", base.UserID)

	var notice string
	if base.Stale(now, d.timeout) {
		logger.Info("Workflow expired", "action", base.CurrentAction, "step_at", base.StepAt)
		base.Reset()
		notice = expiredNotice
	}

	req := &workflow.Request{
		SessionID:    sessionID,
		Event:        event,
		Now:          now,
		FirstContact: created,
	}
	rule, handler := d.route(base, req)
	logger = logger.With("rule", rule, "action", base.CurrentAction)

	working := base.Clone()
	req.Session = working
	reply, herr := d.run(ctx, handler, req)

	next, reply, outcome := d.settle(logger, base, working, reply, herr)
	return next, result{reply: reply.Prefix(notice), rule: rule, outcome: outcome}
}

// route picks the first matching rule: the active step, a global callback,
// a command, an address typed while idle, then the fallback. Global
// callbacks and commands abandon the workflow in flight.
func (d *Dispatcher) route(base *domain.Session, req *workflow.Request) (string, workflow.Handler) {
	ev := req.Event
	if !base.Idle() {
		if st, ok := d.flows.Step(base.CurrentAction); ok && st.Accepts(ev) {
			return RuleStep, st.Handle
		}
	}
	switch ev.Kind {
	case domain.EventCallback:
		if h, ok := d.flows.Global(ev.Name); ok {
			interrupt(base, req)
			return RuleGlobal, h
		}
	case domain.EventCommand:
		if h, ok := d.flows.Command(ev.Name); ok {
			interrupt(base, req)
			return RuleCommand, h
		}
	case domain.EventText:
		if base.Idle() && workflow.IsAddress(ev.Args) {
			return RuleAddress, d.flows.AddressShortcut
		}
	}
	return RuleFallback, d.flows.Fallback
}

func interrupt(base *domain.Session, req *workflow.Request) {
	req.Interrupted = base.CurrentAction
	base.Reset()
}

// run executes the handler and turns a panic into an unclassified error.
func (d *Dispatcher) run(ctx context.Context, h workflow.Handler, req *workflow.Request) (reply domain.Reply, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Handler panicked", "session_id", req.SessionID, "panic", r, "stack", string(debug.Stack()))
			reply, err = domain.Reply{}, fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, req)
}

// settle chooses the session to persist and the reply to send.
func (d *Dispatcher) settle(logger *slog.Logger, base, working *domain.Session, reply domain.Reply, err error) (*domain.Session, domain.Reply, string) {
	if err == nil {
		return working, reply, "ok"
	}

	de, ok := domain.AsError(err)
	if !ok {
		logger.Error("Request failed", "err", err)
		base.Reset()
		return base, domain.Reply{Text: genericFailure}, "internal"
	}

	switch {
	case de.Kind == domain.KindUserInput:
		logger.Debug("Input rejected", "message", de.Message)
		text := de.Message
		if !base.Idle() {
			text += "\n\n" + retryHint
		}
		return base, domain.Reply{Text: text}, "user_input"

	case de.Kind == domain.KindSessionState:
		logger.Warn("Session state incoherent", "err", de)
		base.Reset()
		return base, domain.Reply{Text: de.Message}, "session_state"

	case de.Kind == domain.KindUpstream && de.Retryable:
		logger.Warn("Upstream failure", "err", de, "retryable", true)
		return base, domain.Reply{Text: de.Message}, "retryable"

	case de.Kind == domain.KindUpstream:
		logger.Error("Upstream failure", "err", de, "retryable", false)
		working.Reset()
		return working, domain.Reply{Text: de.Message}, "upstream"

	case de.Kind == domain.KindAuth:
		logger.Info("Unauthenticated request")
		return base, domain.Reply{Text: de.Message}, "auth"
	}

	logger.Error("Request failed", "err", err)
	base.Reset()
	return base, domain.Reply{Text: genericFailure}, "internal"
}
