package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/swapflow/internal/pipeline"
	"github.com/aretw0/swapflow/pkg/domain"
)

var errBuyState = domain.SessionState("Your buy session is no longer valid. Please use /buy to start again.")

// buy starts the Buy workflow. A command argument preselects the target.
func (s *Service) buy(ctx context.Context, req *Request) (domain.Reply, error) {
	if req.Event.Kind == domain.EventCommand && req.Event.Args != "" {
		return s.buyToken(ctx, req, req.Event.Args)
	}
	st, reply, err := s.freshBuyState(ctx, req)
	if st == nil {
		return reply, err
	}
	req.Session.Begin(domain.ActionBuyToken, domain.Flow{Buy: st}, req.Now)
	return domain.Reply{
		Text: fmt.Sprintf("💱 Buy Tokens with ETH\n\nYour ETH balance: %s ETH\n\nSelect a token to buy or choose \"Custom Token\" to enter a token address:",
			units(st.Balance, st.FromDecimals)),
		Buttons: buyTokenButtons(),
	}, nil
}

// freshBuyState checks the wallet and the native balance. It returns a nil
// state together with the reply to send when buying is not possible.
func (s *Service) freshBuyState(ctx context.Context, req *Request) (*domain.BuyState, domain.Reply, error) {
	w, reply, err := s.requireWallet(ctx, req)
	if w == nil {
		return nil, reply, err
	}
	balance, err := s.chain.NativeBalance(ctx, w.Address)
	if err != nil {
		return nil, domain.Reply{}, domain.RetryableUpstream("Could not read your ETH balance. Please try again.", err)
	}
	if balance.Sign() <= 0 {
		return nil, domain.Reply{Text: "Your wallet has no ETH balance to buy tokens.\n\nUse /deposit to get your deposit address and add ETH first."}, nil
	}
	native := domain.NativeTokenInfo()
	return &domain.BuyState{
		FromToken:    native.Address,
		FromSymbol:   native.Symbol,
		FromDecimals: native.Decimals,
		Balance:      balance.String(),
	}, domain.Reply{}, nil
}

// buyToken starts a Buy with the target already chosen, from a token_<SYM>
// callback, a bare symbol or a /buy argument.
func (s *Service) buyToken(ctx context.Context, req *Request, ref string) (domain.Reply, error) {
	st, reply, err := s.freshBuyState(ctx, req)
	if st == nil {
		return reply, err
	}
	req.Session.Begin(domain.ActionBuyToken, domain.Flow{Buy: st}, req.Now)
	if IsAddress(ref) {
		req.Session.Advance(domain.ActionBuyCustomToken, req.Now)
		return s.buyCustomTokenInput(ctx, req, ref)
	}
	return s.chooseBuyTarget(ctx, req, ref)
}

func (s *Service) buySelectToken(ctx context.Context, req *Request) (domain.Reply, error) {
	ref := req.Text()
	if req.Event.Kind == domain.EventCallback {
		ref = strings.TrimPrefix(req.Event.Name, "token_")
	}
	return s.chooseBuyTarget(ctx, req, ref)
}

func (s *Service) chooseBuyTarget(ctx context.Context, req *Request, ref string) (domain.Reply, error) {
	if isCustom(ref) {
		// Rebuilt from scratch so that any leftover scratch state is irrelevant.
		st, reply, err := s.freshBuyState(ctx, req)
		if st == nil {
			return reply, err
		}
		req.Session.Begin(domain.ActionBuyCustomToken, domain.Flow{Buy: st}, req.Now)
		return domain.Reply{Text: "💱 Buy Custom Token\n\nPlease send the ERC-20 token address you want to buy.\n\nThe address should look like: 0x1234...5678\n\nYou can cancel this operation by typing /cancel"}, nil
	}

	st := req.Session.Flow.Buy
	if st == nil || st.Balance == "" {
		return domain.Reply{}, errBuyState
	}
	info, ok := commonToken(ref)
	if !ok {
		return domain.Reply{}, domain.UserInput("Token symbol not recognized. Pick one of the buttons or choose Custom Token.")
	}
	return s.setBuyTarget(req, st, info), nil
}

func (s *Service) setBuyTarget(req *Request, st *domain.BuyState, info domain.TokenInfo) domain.Reply {
	st.ToToken = info.Address
	st.ToSymbol = info.Symbol
	st.ToDecimals = info.Decimals
	req.Session.Advance(domain.ActionBuyAmount, req.Now)
	return domain.Reply{Text: fmt.Sprintf("💱 Buy %s\n\nYou are buying %s with ETH.\n\nYour ETH balance: %s ETH\n\nPlease enter the amount of ETH you want to spend:",
		info.Symbol, info.Symbol, units(st.Balance, st.FromDecimals))}
}

func (s *Service) buyCustomToken(ctx context.Context, req *Request) (domain.Reply, error) {
	return s.buyCustomTokenInput(ctx, req, req.Text())
}

func (s *Service) buyCustomTokenInput(ctx context.Context, req *Request, input string) (domain.Reply, error) {
	st := req.Session.Flow.Buy
	if st == nil || st.Balance == "" {
		return domain.Reply{}, errBuyState
	}
	if !IsAddress(input) {
		return domain.Reply{}, domain.UserInput("Invalid token address format. Please provide a valid address like 0x1234...5678.")
	}
	if domain.IsNative(input) {
		return domain.Reply{}, domain.UserInput("That is the native token. Please send the address of the token you want to buy.")
	}
	info, err := s.chain.TokenInfo(ctx, input)
	if err != nil {
		s.logger.Warn("Token lookup failed", "user_id", req.Session.UserID, "token", input, "err", err)
		return domain.Reply{}, domain.UserInput("Unable to get information for this token. It might not be a valid ERC-20 token on Base.\n\nPlease check the address and try again.")
	}
	if balance, err := s.chain.NativeBalance(ctx, req.Session.WalletAddress); err == nil && balance.Sign() > 0 {
		st.Balance = balance.String()
	}
	return s.setBuyTarget(req, st, info), nil
}

func (s *Service) buyAmount(ctx context.Context, req *Request) (domain.Reply, error) {
	st := req.Session.Flow.Buy
	if st == nil || st.ToToken == "" || st.Balance == "" {
		return domain.Reply{}, errBuyState
	}
	amount, err := pipeline.ParseAmount(req.Text(), st.FromDecimals)
	if err != nil {
		return domain.Reply{}, err
	}
	if err := pipeline.CheckBalance(amount, st.Balance, st.FromDecimals, st.FromSymbol); err != nil {
		return domain.Reply{}, err
	}

	quote, err := s.pipeline.Quote(ctx, pipeline.QuoteInput{
		FromToken:    st.FromToken,
		ToToken:      st.ToToken,
		FromDecimals: st.FromDecimals,
		ToDecimals:   st.ToDecimals,
		Amount:       amount.Decimal,
		Priority:     req.Session.Settings.GasPriority,
	})
	if err != nil {
		return domain.Reply{}, err
	}

	st.Amount = amount.Decimal
	st.AmountBase = amount.Base.String()
	st.Quote = &quote
	req.Session.Advance(domain.ActionBuyConfirm, req.Now)
	return domain.Reply{
		Text:    tradeSummary(st.FromSymbol, st.ToSymbol, st.Amount, units(quote.OutAmount, quote.ToDecimals), req.Session.Settings),
		Buttons: confirmButtons(),
	}, nil
}

func (s *Service) buyConfirm(ctx context.Context, req *Request) (domain.Reply, error) {
	if !answer(req.Event, "confirm_yes") {
		req.Session.Reset()
		return domain.Reply{Text: "Trade cancelled."}, nil
	}
	st := req.Session.Flow.Buy
	if st == nil || st.Quote == nil || st.AmountBase == "" || st.ToToken == "" {
		return domain.Reply{}, errBuyState
	}
	w, reply, err := s.requireWallet(ctx, req)
	if w == nil {
		return reply, err
	}

	out, err := s.pipeline.Swap(ctx, pipeline.SwapOrder{
		SessionID:  req.SessionID,
		UserID:     req.Session.UserID,
		Wallet:     w,
		FromToken:  st.FromToken,
		ToToken:    st.ToToken,
		Amount:     st.Amount,
		AmountBase: st.AmountBase,
		Quote:      *st.Quote,
		Settings:   req.Session.Settings,
	})
	if err != nil {
		return domain.Reply{}, executionError(out, err)
	}
	if out.Requoted {
		return requoted(req, &st.Quote, out.Quote, st.FromSymbol, st.ToSymbol, st.Amount, domain.ActionBuyConfirm), nil
	}

	req.Session.Reset()
	received := units(out.Transaction.ToAmount, st.Quote.ToDecimals)
	return settledReply(out, fmt.Sprintf("You bought %s %s.", received, st.ToSymbol)), nil
}

// requoted stores a fresh quote and asks for a new confirmation.
func requoted(req *Request, slot **domain.Quote, q domain.Quote, fromSymbol, toSymbol, amount string, step domain.Action) domain.Reply {
	*slot = &q
	req.Session.Advance(step, req.Now)
	return domain.Reply{
		Text: "⏱ Your quote expired, so the price was refreshed.\n\n" +
			tradeSummary(fromSymbol, toSymbol, amount, units(q.OutAmount, q.ToDecimals), req.Session.Settings),
		Buttons: confirmButtons(),
	}
}

// settledReply renders the result of a submitted transaction.
func settledReply(out pipeline.Outcome, success string) domain.Reply {
	hash := out.Receipt.Hash
	switch out.Receipt.Status {
	case domain.TxSuccess:
		return domain.Reply{Text: fmt.Sprintf("✅ Transaction Successful\n\n%s\nView on Block Explorer: %s", success, txLink(hash))}
	default:
		return domain.Reply{Text: fmt.Sprintf("⏳ Transaction Submitted\n\nIt is waiting for confirmation.\nView on Block Explorer: %s", txLink(hash))}
	}
}

// executionError adds the explorer link when the failed transaction reached the chain.
func executionError(out pipeline.Outcome, err error) error {
	de, ok := domain.AsError(err)
	if !ok || out.Receipt.Hash == "" {
		return err
	}
	return &domain.Error{
		Kind:      de.Kind,
		Message:   fmt.Sprintf("❌ Transaction Failed\n\nView on Block Explorer: %s", txLink(out.Receipt.Hash)),
		Cause:     de.Cause,
		Retryable: de.Retryable,
	}
}
