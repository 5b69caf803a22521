package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/swapflow/internal/pipeline"
	"github.com/aretw0/swapflow/pkg/domain"
)

var errWithdrawState = domain.SessionState("Your withdrawal session is no longer valid. Please use /withdraw to start again.")

func (s *Service) withdraw(ctx context.Context, req *Request) (domain.Reply, error) {
	w, reply, err := s.requireWallet(ctx, req)
	if w == nil {
		return reply, err
	}
	balance, err := s.chain.NativeBalance(ctx, w.Address)
	if err != nil {
		return domain.Reply{}, domain.RetryableUpstream("Could not read your ETH balance. Please try again.", err)
	}
	if balance.Sign() <= 0 {
		return domain.Reply{Text: "You don't have any ETH to withdraw.\n\nUse /deposit to add funds to your wallet first."}, nil
	}

	req.Session.Begin(domain.ActionWithdrawAddress, domain.Flow{Withdraw: &domain.WithdrawState{Balance: balance.String()}}, req.Now)
	return domain.Reply{Text: fmt.Sprintf("📤 Withdraw ETH\n\nYour balance: %s ETH\n\nPlease send the destination address.\n\nYou can cancel this operation by typing /cancel",
		units(balance.String(), domain.NativeDecimals))}, nil
}

func (s *Service) withdrawAddress(ctx context.Context, req *Request) (domain.Reply, error) {
	st := req.Session.Flow.Withdraw
	if st == nil || st.Balance == "" {
		return domain.Reply{}, errWithdrawState
	}
	to := req.Text()
	if !IsAddress(to) {
		return domain.Reply{}, domain.UserInput("Invalid address format. Please provide a valid address like 0x1234...5678.")
	}
	if strings.EqualFold(to, req.Session.WalletAddress) {
		return domain.Reply{}, domain.UserInput("You cannot withdraw to your own wallet. Please send a different address.")
	}

	st.To = to
	req.Session.Advance(domain.ActionWithdrawAmount, req.Now)
	return domain.Reply{Text: fmt.Sprintf("📤 Withdraw to %s\n\nYour balance: %s ETH\n\nPlease enter the amount of ETH to withdraw.\n\nPlease leave a small amount of ETH in your wallet for gas fees.",
		to, units(st.Balance, domain.NativeDecimals))}, nil
}

func (s *Service) withdrawAmount(ctx context.Context, req *Request) (domain.Reply, error) {
	st := req.Session.Flow.Withdraw
	if st == nil || st.Balance == "" || st.To == "" {
		return domain.Reply{}, errWithdrawState
	}
	amount, err := pipeline.ParseAmount(req.Text(), domain.NativeDecimals)
	if err != nil {
		return domain.Reply{}, err
	}
	if err := pipeline.CheckBalance(amount, st.Balance, domain.NativeDecimals, domain.NativeSymbol); err != nil {
		return domain.Reply{}, err
	}

	st.Amount = amount.Decimal
	st.AmountBase = amount.Base.String()
	req.Session.Advance(domain.ActionWithdrawConfirm, req.Now)
	return domain.Reply{
		Text: fmt.Sprintf("📤 Confirm Withdrawal\n\nAmount: %s ETH\nTo: %s\nGas Priority: %s\n\nDo you want to proceed?",
			st.Amount, st.To, gasLabel(req.Session.Settings.GasPriority)),
		Buttons: [][]domain.Button{{btn("✅ Confirm", "withdraw_confirm_true"), btn("❌ Cancel", "withdraw_confirm_false")}},
	}, nil
}

func (s *Service) withdrawConfirm(ctx context.Context, req *Request) (domain.Reply, error) {
	if !answer(req.Event, "withdraw_confirm_true") {
		req.Session.Reset()
		return domain.Reply{Text: "Withdrawal cancelled."}, nil
	}
	st := req.Session.Flow.Withdraw
	if st == nil || st.To == "" || st.AmountBase == "" {
		return domain.Reply{}, errWithdrawState
	}
	w, reply, err := s.requireWallet(ctx, req)
	if w == nil {
		return reply, err
	}

	out, err := s.pipeline.Transfer(ctx, pipeline.TransferOrder{
		SessionID:  req.SessionID,
		UserID:     req.Session.UserID,
		Wallet:     w,
		To:         st.To,
		AmountBase: st.AmountBase,
		Settings:   req.Session.Settings,
	})
	if err != nil {
		return domain.Reply{}, executionError(out, err)
	}

	req.Session.Reset()
	return settledReply(out, fmt.Sprintf("You sent %s ETH to %s.", st.Amount, st.To)), nil
}
