package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/swapflow/internal/pipeline"
	"github.com/aretw0/swapflow/pkg/domain"
)

const maxSellChoices = 6

var errSellState = domain.SessionState("Your sell session is no longer valid. Please use /sell to start again.")

// holdings lists non-native tokens from the user's history that still have a balance.
func (s *Service) holdings(ctx context.Context, userID, owner string, limit int) ([]domain.Holding, error) {
	tokens, err := s.ledger.UniqueTokensByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []domain.Holding
	for _, t := range tokens {
		if limit > 0 && len(out) >= limit {
			break
		}
		key := strings.ToLower(t)
		if domain.IsNative(t) || seen[key] {
			continue
		}
		seen[key] = true
		h, err := s.holding(ctx, t, owner)
		if err != nil {
			s.logger.Warn("Skipping token", "user_id", userID, "token", t, "err", err)
			continue
		}
		if h.Balance != "0" {
			out = append(out, h)
		}
	}
	return out, nil
}

func (s *Service) holding(ctx context.Context, token, owner string) (domain.Holding, error) {
	info, err := s.chain.TokenInfo(ctx, token)
	if err != nil {
		return domain.Holding{}, err
	}
	balance, err := s.chain.TokenBalance(ctx, info.Address, owner)
	if err != nil {
		return domain.Holding{}, err
	}
	return domain.Holding{Address: info.Address, Symbol: info.Symbol, Decimals: info.Decimals, Balance: balance.String()}, nil
}

func (s *Service) sell(ctx context.Context, req *Request) (domain.Reply, error) {
	w, reply, err := s.requireWallet(ctx, req)
	if w == nil {
		return reply, err
	}
	held, err := s.holdings(ctx, req.Session.UserID, w.Address, maxSellChoices)
	if err != nil {
		return domain.Reply{}, domain.RetryableUpstream("Could not load your tokens. Please try again.", err)
	}

	req.Session.Begin(domain.ActionSellToken, domain.Flow{Sell: &domain.SellState{Holdings: held}}, req.Now)
	text := "💱 Sell Tokens for ETH\n\nSelect a token to sell:"
	if len(held) == 0 {
		text = "💱 Sell Tokens for ETH\n\nNo tokens with a balance were found in your trading history.\n\nChoose \"Custom Token\" to sell a token by address, or use /buy first."
	}
	return domain.Reply{Text: text, Buttons: sellTokenButtons(held)}, nil
}

func (s *Service) sellSelectToken(ctx context.Context, req *Request) (domain.Reply, error) {
	if req.Event.Name == "sell_custom" {
		var held []domain.Holding
		if prev := req.Session.Flow.Sell; prev != nil {
			held = prev.Holdings
		}
		req.Session.Begin(domain.ActionSellCustomToken, domain.Flow{Sell: &domain.SellState{Holdings: held}}, req.Now)
		return domain.Reply{Text: "💱 Sell Custom Token\n\nPlease send the ERC-20 token address you want to sell.\n\nYou can cancel this operation by typing /cancel"}, nil
	}

	st := req.Session.Flow.Sell
	if st == nil {
		return domain.Reply{}, errSellState
	}
	token := strings.TrimPrefix(req.Event.Name, "sell_token_")
	if !IsAddress(token) {
		return domain.Reply{}, domain.UserInput("That token is not available. Pick one of the buttons.")
	}
	return s.setSellToken(ctx, req, st, token)
}

func (s *Service) sellCustomToken(ctx context.Context, req *Request) (domain.Reply, error) {
	st := req.Session.Flow.Sell
	if st == nil {
		return domain.Reply{}, errSellState
	}
	input := req.Text()
	if !IsAddress(input) {
		return domain.Reply{}, domain.UserInput("Invalid token address format. Please provide a valid address like 0x1234...5678.")
	}
	if domain.IsNative(input) {
		return domain.Reply{}, domain.UserInput("ETH cannot be sold for ETH. Please send an ERC-20 token address.")
	}
	return s.setSellToken(ctx, req, st, input)
}

// setSellToken verifies the balance on chain before moving to the amount step.
func (s *Service) setSellToken(ctx context.Context, req *Request, st *domain.SellState, token string) (domain.Reply, error) {
	h, err := s.holding(ctx, token, req.Session.WalletAddress)
	if err != nil {
		s.logger.Warn("Token lookup failed", "user_id", req.Session.UserID, "token", token, "err", err)
		return domain.Reply{}, domain.UserInput("Unable to get information for this token. Please check the address and try again.")
	}
	if h.Balance == "0" {
		return domain.Reply{}, domain.UserInput(fmt.Sprintf("You don't have any %s balance to sell.\n\nUse /buy to buy this token first or /deposit to receive it.", h.Symbol))
	}
	st.Token = h.Address
	st.Symbol = h.Symbol
	st.Decimals = h.Decimals
	st.Balance = h.Balance
	req.Session.Advance(domain.ActionSellAmount, req.Now)
	return domain.Reply{Text: fmt.Sprintf("💱 Sell %s\n\nYou are selling %s for ETH.\n\nYour %s balance: %s\n\nPlease enter the amount of %s you want to sell (or type \"max\" for your full balance):",
		h.Symbol, h.Symbol, h.Symbol, units(h.Balance, h.Decimals), h.Symbol)}, nil
}

func (s *Service) sellAmount(ctx context.Context, req *Request) (domain.Reply, error) {
	st := req.Session.Flow.Sell
	if st == nil || st.Token == "" || st.Balance == "" {
		return domain.Reply{}, errSellState
	}

	var amount pipeline.Amount
	var err error
	if strings.EqualFold(req.Text(), "max") {
		amount, err = pipeline.AmountFromBase(st.Balance, st.Decimals)
		if err != nil {
			return domain.Reply{}, err
		}
	} else {
		amount, err = pipeline.ParseAmount(req.Text(), st.Decimals)
		if err != nil {
			return domain.Reply{}, err
		}
		if err := pipeline.CheckBalance(amount, st.Balance, st.Decimals, st.Symbol); err != nil {
			return domain.Reply{}, err
		}
	}

	native := domain.NativeTokenInfo()
	quote, err := s.pipeline.Quote(ctx, pipeline.QuoteInput{
		FromToken:    st.Token,
		ToToken:      native.Address,
		FromDecimals: st.Decimals,
		ToDecimals:   native.Decimals,
		Amount:       amount.Decimal,
		Priority:     req.Session.Settings.GasPriority,
	})
	if err != nil {
		return domain.Reply{}, err
	}

	st.Amount = amount.Decimal
	st.AmountBase = amount.Base.String()
	st.Quote = &quote
	req.Session.Advance(domain.ActionSellConfirm, req.Now)
	return domain.Reply{
		Text:    tradeSummary(st.Symbol, native.Symbol, st.Amount, units(quote.OutAmount, quote.ToDecimals), req.Session.Settings),
		Buttons: confirmButtons(),
	}, nil
}

func (s *Service) sellConfirm(ctx context.Context, req *Request) (domain.Reply, error) {
	if !answer(req.Event, "confirm_yes") {
		req.Session.Reset()
		return domain.Reply{Text: "Trade cancelled."}, nil
	}
	st := req.Session.Flow.Sell
	if st == nil || st.Quote == nil || st.AmountBase == "" || st.Token == "" {
		return domain.Reply{}, errSellState
	}
	w, reply, err := s.requireWallet(ctx, req)
	if w == nil {
		return reply, err
	}

	native := domain.NativeTokenInfo()
	out, err := s.pipeline.Swap(ctx, pipeline.SwapOrder{
		SessionID:  req.SessionID,
		UserID:     req.Session.UserID,
		Wallet:     w,
		FromToken:  st.Token,
		ToToken:    native.Address,
		Amount:     st.Amount,
		AmountBase: st.AmountBase,
		Quote:      *st.Quote,
		Settings:   req.Session.Settings,
	})
	if err != nil {
		return domain.Reply{}, executionError(out, err)
	}
	if out.Requoted {
		return requoted(req, &st.Quote, out.Quote, st.Symbol, native.Symbol, st.Amount, domain.ActionSellConfirm), nil
	}

	req.Session.Reset()
	return settledReply(out, fmt.Sprintf("You sold %s %s for %s ETH.",
		st.Amount, st.Symbol, units(out.Transaction.ToAmount, st.Quote.ToDecimals))), nil
}
