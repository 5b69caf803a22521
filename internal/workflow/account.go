package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/swapflow/pkg/domain"
)

const historyLimit = 20

var timeframes = map[string]time.Duration{
	"day":   24 * time.Hour,
	"week":  7 * 24 * time.Hour,
	"month": 30 * 24 * time.Hour,
}

func (s *Service) start(ctx context.Context, req *Request) (domain.Reply, error) {
	if !req.Session.Bound() || req.FirstContact {
		return domain.Reply{Text: helpText, Buttons: mainMenuButtons()}, nil
	}
	name := req.Session.DisplayName
	if name == "" {
		name = req.Session.Username
	}
	text := "👋 Welcome back!"
	if name != "" {
		text = fmt.Sprintf("👋 Welcome back, %s!", name)
	}
	if req.Session.WalletAddress == "" {
		text += "\n\nYou don't have a wallet yet. Use /create or /import to get started."
	} else {
		text += "\n\nWallet: " + req.Session.WalletAddress
	}
	return domain.Reply{Text: text + "\n\nWhat would you like to do?", Buttons: mainMenuButtons()}, nil
}

func (s *Service) help(ctx context.Context, req *Request) (domain.Reply, error) {
	return domain.Reply{Text: helpText, Buttons: mainMenuButtons()}, nil
}

func (s *Service) mainMenu(ctx context.Context, req *Request) (domain.Reply, error) {
	return domain.Reply{Text: "What would you like to do?", Buttons: mainMenuButtons()}, nil
}

// cancel aborts the workflow that routing interrupted, if any.
func (s *Service) cancel(ctx context.Context, req *Request) (domain.Reply, error) {
	req.Session.Reset()
	if req.Interrupted == domain.ActionIdle {
		return domain.Reply{Text: "Nothing to cancel."}, nil
	}
	return domain.Reply{Text: "Operation cancelled.", Buttons: mainMenuButtons()}, nil
}

func (s *Service) balance(ctx context.Context, req *Request) (domain.Reply, error) {
	w, reply, err := s.requireWallet(ctx, req)
	if w == nil {
		return reply, err
	}
	native, err := s.chain.NativeBalance(ctx, w.Address)
	if err != nil {
		return domain.Reply{}, domain.RetryableUpstream("Could not read your balances. Please try again.", err)
	}
	held, err := s.holdings(ctx, req.Session.UserID, w.Address, 0)
	if err != nil {
		return domain.Reply{}, domain.RetryableUpstream("Could not load your tokens. Please try again.", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "💰 Your Balances\n\n%s: %s", domain.NativeSymbol, units(native.String(), domain.NativeDecimals))
	for _, h := range held {
		fmt.Fprintf(&b, "\n%s: %s", h.Symbol, units(h.Balance, h.Decimals))
	}
	return domain.Reply{
		Text: b.String(),
		Buttons: [][]domain.Button{
			{btn("💱 Buy Token", "buy_token"), btn("💱 Sell Token", "sell_token")},
			{btn("📥 Deposit", "deposit"), btn("📊 History", "check_history")},
		},
	}, nil
}

func (s *Service) history(ctx context.Context, req *Request) (domain.Reply, error) {
	tf := "month"
	if req.Event.Kind == domain.EventCommand && req.Event.Args != "" {
		tf = req.Event.Args
	}
	return s.historyFor(ctx, req, tf)
}

func (s *Service) historyFor(ctx context.Context, req *Request, timeframe string) (domain.Reply, error) {
	w, reply, err := s.requireWallet(ctx, req)
	if w == nil {
		return reply, err
	}
	timeframe = strings.ToLower(strings.TrimSpace(timeframe))
	window, ok := timeframes[timeframe]
	if !ok {
		return domain.Reply{}, domain.UserInput("Invalid timeframe. Choose day, week or month.")
	}
	txs, err := s.ledger.Transactions(ctx, req.Session.UserID, req.Now.Add(-window), historyLimit)
	if err != nil {
		return domain.Reply{}, domain.RetryableUpstream("Could not load your history. Please try again.", err)
	}

	buttons := [][]domain.Button{{
		btn("📆 Day", "history_day"), btn("📆 Week", "history_week"), btn("📆 Month", "history_month"),
	}}
	if len(txs) == 0 {
		return domain.Reply{Text: fmt.Sprintf("📊 No transactions in the last %s.", timeframe), Buttons: buttons}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 Transactions in the last %s\n", timeframe)
	for _, tx := range txs {
		b.WriteString("\n")
		b.WriteString(describeTx(tx))
	}
	return domain.Reply{Text: b.String(), Buttons: buttons}, nil
}

func describeTx(tx domain.Transaction) string {
	icon := map[domain.TxStatus]string{domain.TxSuccess: "✅", domain.TxFailed: "❌"}[tx.Status]
	if icon == "" {
		icon = "⏳"
	}
	when := tx.CreatedAt.UTC().Format("Jan 02 15:04")
	switch tx.Kind {
	case domain.TxTransfer:
		return fmt.Sprintf("%s %s Sent %s ETH to %s (%s)", icon, when,
			units(tx.FromAmount, domain.NativeDecimals), symbolFor(tx.ToToken), shortHash(tx.Hash))
	case domain.TxApprove:
		return fmt.Sprintf("%s %s Approved %s (%s)", icon, when, symbolFor(tx.FromToken), shortHash(tx.Hash))
	}
	return fmt.Sprintf("%s %s Swapped %s → %s (%s)", icon, when,
		symbolFor(tx.FromToken), symbolFor(tx.ToToken), shortHash(tx.Hash))
}

// AddressShortcut starts a custom-token Buy from an address typed while idle.
func (s *Service) AddressShortcut(ctx context.Context, req *Request) (domain.Reply, error) {
	return s.buyToken(ctx, req, req.Text())
}

// Fallback answers events no rule claimed.
func (s *Service) Fallback(ctx context.Context, req *Request) (domain.Reply, error) {
	if req.Session.Idle() {
		return domain.Reply{Text: "I didn't understand that.\n\n" + helpText, Buttons: mainMenuButtons()}, nil
	}
	if _, ok := s.steps[req.Session.CurrentAction]; !ok {
		return domain.Reply{}, domain.SessionState("Your previous operation can no longer be resumed. Please start again.")
	}
	return domain.Reply{Text: fmt.Sprintf("I'm still waiting for your answer to the current %s operation.\n\nReply to the last message or type /cancel to abort.",
		req.Session.CurrentAction.Workflow())}, nil
}
