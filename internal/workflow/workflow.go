// Package workflow implements the per-operation state machines of the chat
// service: buy, sell, withdraw, import, export, create and settings, plus the
// stateless commands around them.
//
// Handlers mutate the working copy of the session carried by the Request and
// return either a reply or a classified domain error. They never persist the
// session; the dispatcher does that once per request.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/swapflow/internal/logging"
	"github.com/aretw0/swapflow/internal/pipeline"
	"github.com/aretw0/swapflow/pkg/domain"
	"github.com/aretw0/swapflow/pkg/ports"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// IsAddress reports whether s looks like a 0x-prefixed EVM address.
func IsAddress(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "0x") && common.IsHexAddress(s)
}

// IsPrivateKey reports whether s is a usable secp256k1 private key in hex,
// with or without the 0x prefix.
func IsPrivateKey(s string) bool {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(s) != 64 {
		return false
	}
	_, err := crypto.HexToECDSA(s)
	return err == nil
}

// Request is one routed event together with the session it may mutate.
type Request struct {
	SessionID string
	Session   *domain.Session
	Event     domain.Event
	Now       time.Time
	// FirstContact is set when this request created the user record.
	FirstContact bool
	// Interrupted names the step a global callback or command reset.
	Interrupted domain.Action
}

// Text is the free-form input carried by the event.
func (r *Request) Text() string {
	return strings.TrimSpace(r.Event.Args)
}

// Handler runs one step or command.
type Handler func(ctx context.Context, req *Request) (domain.Reply, error)

// Step is the handler of an active workflow step and the event shapes it expects.
type Step struct {
	Accepts func(domain.Event) bool
	Handle  Handler
}

// Service wires the workflows to their collaborators.
type Service struct {
	accounts ports.Accounts
	ledger   ports.Ledger
	wallets  ports.WalletProvider
	chain    ports.Chain
	pipeline *pipeline.Pipeline
	logger   *slog.Logger

	steps    map[domain.Action]Step
	globals  map[string]Handler
	prefixes []prefixRoute
	commands map[string]Handler
}

type prefixRoute struct {
	prefix string
	handle func(ctx context.Context, req *Request, value string) (domain.Reply, error)
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// New builds the workflow service and its routing tables.
func New(accounts ports.Accounts, ledger ports.Ledger, wallets ports.WalletProvider, chain ports.Chain, p *pipeline.Pipeline, opts ...Option) *Service {
	s := &Service{
		accounts: accounts,
		ledger:   ledger,
		wallets:  wallets,
		chain:    chain,
		pipeline: p,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.register()
	return s
}

func (s *Service) register() {
	s.steps = map[domain.Action]Step{
		domain.ActionBuyToken:       {Accepts: isTokenChoice, Handle: s.buySelectToken},
		domain.ActionBuyCustomToken: {Accepts: isText, Handle: s.buyCustomToken},
		domain.ActionBuyAmount:      {Accepts: isText, Handle: s.buyAmount},
		domain.ActionBuyConfirm:     {Accepts: isYesNo("confirm_yes", "confirm_no"), Handle: s.buyConfirm},

		domain.ActionSellToken:       {Accepts: isSellChoice, Handle: s.sellSelectToken},
		domain.ActionSellCustomToken: {Accepts: isText, Handle: s.sellCustomToken},
		domain.ActionSellAmount:      {Accepts: isText, Handle: s.sellAmount},
		domain.ActionSellConfirm:     {Accepts: isYesNo("confirm_yes", "confirm_no"), Handle: s.sellConfirm},

		domain.ActionWithdrawAddress: {Accepts: isText, Handle: s.withdrawAddress},
		domain.ActionWithdrawAmount:  {Accepts: isText, Handle: s.withdrawAmount},
		domain.ActionWithdrawConfirm: {Accepts: isYesNo("withdraw_confirm_true", "withdraw_confirm_false"), Handle: s.withdrawConfirm},

		domain.ActionImportConfirm: {Accepts: isYesNo("confirm_import_wallet", "cancel_import_wallet"), Handle: s.importConfirm},
		domain.ActionImportWallet:  {Accepts: isText, Handle: s.importKey},
		domain.ActionExportWallet:  {Accepts: isYesNo("confirm_yes", "confirm_no"), Handle: s.exportConfirm},
		domain.ActionCreateConfirm: {Accepts: isYesNo("confirm_create_wallet", "cancel_create_wallet"), Handle: s.createConfirm},

		domain.ActionSettingsSlippage:    {Accepts: isOption("slippage_"), Handle: s.settingsChoice},
		domain.ActionSettingsGasPriority: {Accepts: isOption("gasPriority_", "gas_"), Handle: s.settingsChoice},
	}

	s.commands = map[string]Handler{
		"start":    s.start,
		"help":     s.help,
		"cancel":   s.cancel,
		"wallet":   s.walletInfo,
		"create":   s.create,
		"import":   s.importWallet,
		"export":   s.export,
		"deposit":  s.deposit,
		"balance":  s.balance,
		"history":  s.history,
		"buy":      s.buy,
		"sell":     s.sell,
		"withdraw": s.withdraw,
		"settings": s.settings,
	}

	s.globals = map[string]Handler{
		"check_balance":        s.balance,
		"check_history":        s.history,
		"buy_token":            s.buy,
		"sell_token":           s.sell,
		"open_settings":        s.settings,
		"help":                 s.help,
		"deposit":              s.deposit,
		"withdraw":             s.withdraw,
		"export_key":           s.export,
		"create_wallet":        s.create,
		"import_wallet":        s.importWallet,
		"cancel":               s.cancel,
		"back":                 s.mainMenu,
		"settings_slippage":    s.settingsOption(domain.ActionSettingsSlippage),
		"settings_gasPriority": s.settingsOption(domain.ActionSettingsGasPriority),
	}

	s.prefixes = []prefixRoute{
		{prefix: "slippage_", handle: s.setSlippage},
		{prefix: "gasPriority_", handle: s.setGasPriority},
		{prefix: "gas_", handle: s.setGasPriority},
		{prefix: "history_", handle: s.historyFor},
		{prefix: "token_", handle: s.buyToken},
	}
}

// Step returns the handler owning an active step.
func (s *Service) Step(action domain.Action) (Step, bool) {
	st, ok := s.steps[action]
	return st, ok
}

// Command returns the handler of a top-level command.
func (s *Service) Command(name string) (Handler, bool) {
	h, ok := s.commands[strings.ToLower(name)]
	return h, ok
}

// Global returns the handler of a callback that is valid from any state.
func (s *Service) Global(id string) (Handler, bool) {
	if h, ok := s.globals[id]; ok {
		return h, true
	}
	for _, p := range s.prefixes {
		if value, ok := strings.CutPrefix(id, p.prefix); ok && value != "" {
			handle := p.handle
			return func(ctx context.Context, req *Request) (domain.Reply, error) {
				return handle(ctx, req, value)
			}, true
		}
	}
	if _, ok := commonToken(id); ok {
		return func(ctx context.Context, req *Request) (domain.Reply, error) {
			return s.buyToken(ctx, req, id)
		}, true
	}
	return nil, false
}

// Bind attaches the request identity to the session. Sessions without an
// identity become guests. A different identity on a bound session drops the
// active workflow. It reports whether the user record was created.
// On error the session is left untouched.
func (s *Service) Bind(ctx context.Context, session *domain.Session, id domain.Identity, now time.Time) (bool, error) {
	if !id.Present() {
		if session.UserID == "" {
			session.UserID = domain.GuestUserID(now)
			session.Guest = true
		}
		return false, nil
	}

	uid := id.UserID()
	if session.UserID == uid && !session.Guest {
		return false, nil
	}

	created, err := s.accounts.UpsertUser(ctx, domain.User{
		ID:          uid,
		FID:         id.FID,
		Username:    id.Username,
		DisplayName: id.DisplayName,
		CreatedAt:   now,
	})
	if err != nil {
		return false, fmt.Errorf("failed to upsert user: %w", err)
	}

	settings, err := s.accounts.Settings(ctx, uid)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		settings = domain.DefaultSettings()
		if err := s.accounts.SaveSettings(ctx, uid, settings); err != nil {
			return false, fmt.Errorf("failed to save default settings: %w", err)
		}
	case err != nil:
		return false, fmt.Errorf("failed to load settings: %w", err)
	}

	address := ""
	w, err := s.wallets.Wallet(ctx, uid)
	switch {
	case err == nil:
		address = w.Address
	case !errors.Is(err, domain.ErrWalletNotFound):
		return false, fmt.Errorf("failed to load wallet: %w", err)
	}

	if session.UserID != "" && session.UserID != uid {
		session.Reset()
	}
	session.UserID = uid
	session.Guest = false
	session.FID = id.FID
	session.Username = id.Username
	session.DisplayName = id.DisplayName
	session.Settings = settings
	session.EnsureSettings()
	session.WalletAddress = address
	s.logger.Info("Session bound to user", "session_id", session.ID, "user_id", uid, "created", created)
	return created, nil
}

// requireUser rejects guests.
func requireUser(req *Request) error {
	if !req.Session.Bound() {
		return domain.Auth("Please start the bot first with /start.")
	}
	return nil
}

// requireWallet loads the user's wallet. When there is none it returns a nil
// wallet and the reply offering to create or import one.
func (s *Service) requireWallet(ctx context.Context, req *Request) (*domain.Wallet, domain.Reply, error) {
	if err := requireUser(req); err != nil {
		return nil, domain.Reply{}, err
	}
	w, err := s.wallets.Wallet(ctx, req.Session.UserID)
	if errors.Is(err, domain.ErrWalletNotFound) {
		req.Session.WalletAddress = ""
		return nil, noWalletReply(), nil
	}
	if err != nil {
		return nil, domain.Reply{}, domain.RetryableUpstream("Could not load your wallet. Please try again.", err)
	}
	req.Session.WalletAddress = w.Address
	return w, domain.Reply{}, nil
}

// Event shapes

func isText(ev domain.Event) bool {
	return ev.Kind == domain.EventText
}

func isYesNo(yes, no string) func(domain.Event) bool {
	return func(ev domain.Event) bool {
		switch ev.Kind {
		case domain.EventCallback:
			return ev.Name == yes || ev.Name == no
		case domain.EventText:
			_, ok := parseYesNo(ev.Args)
			return ok
		}
		return false
	}
}

// answer reads a confirmation from a callback or a typed yes/no.
func answer(ev domain.Event, yes string) bool {
	if ev.Kind == domain.EventCallback {
		return ev.Name == yes
	}
	v, _ := parseYesNo(ev.Args)
	return v
}

func parseYesNo(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "confirm":
		return true, true
	case "no", "n":
		return false, true
	}
	return false, false
}

func isOption(prefixes ...string) func(domain.Event) bool {
	return func(ev domain.Event) bool {
		if ev.Kind != domain.EventCallback {
			return false
		}
		if ev.Name == "back" {
			return true
		}
		for _, p := range prefixes {
			if strings.HasPrefix(ev.Name, p) {
				return true
			}
		}
		return false
	}
}

func isTokenChoice(ev domain.Event) bool {
	var v string
	switch ev.Kind {
	case domain.EventCallback:
		v = strings.TrimPrefix(ev.Name, "token_")
	case domain.EventText:
		v = ev.Args
	default:
		return false
	}
	if isCustom(v) {
		return true
	}
	_, ok := commonToken(v)
	return ok
}

func isSellChoice(ev domain.Event) bool {
	if ev.Kind != domain.EventCallback {
		return false
	}
	return ev.Name == "sell_custom" || strings.HasPrefix(ev.Name, "sell_token_")
}

func isCustom(v string) bool {
	return strings.EqualFold(strings.TrimSpace(v), "custom")
}

// commonToken resolves one of the preset buy targets by symbol.
func commonToken(symbol string) (domain.TokenInfo, bool) {
	symbol = strings.TrimSpace(symbol)
	for _, t := range domain.CommonTokens {
		if strings.EqualFold(t.Symbol, symbol) {
			return t, true
		}
	}
	return domain.TokenInfo{}, false
}
