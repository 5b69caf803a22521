package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/swapflow/pkg/domain"
)

func (s *Service) walletInfo(ctx context.Context, req *Request) (domain.Reply, error) {
	w, reply, err := s.requireWallet(ctx, req)
	if w == nil {
		return reply, err
	}
	return domain.Reply{
		Text: fmt.Sprintf("👛 Your Wallet\n\nAddress: %s\nType: %s\nCreated: %s",
			w.Address, w.Type, w.CreatedAt.Format("2006-01-02")),
		Buttons: [][]domain.Button{
			{btn("💰 Balance", "check_balance"), btn("📥 Deposit", "deposit")},
			{btn("📤 Withdraw", "withdraw"), btn("🔑 Export Key", "export_key")},
		},
	}, nil
}

func (s *Service) deposit(ctx context.Context, req *Request) (domain.Reply, error) {
	w, reply, err := s.requireWallet(ctx, req)
	if w == nil {
		return reply, err
	}
	return domain.Reply{Text: fmt.Sprintf("📥 Deposit\n\nSend ETH or Base tokens to this address:\n\n%s\n\nOnly send assets on the Base network.", w.Address)}, nil
}

// existingWallet reports whether the user already has a wallet.
func (s *Service) existingWallet(ctx context.Context, userID string) (*domain.Wallet, error) {
	w, err := s.wallets.Wallet(ctx, userID)
	if errors.Is(err, domain.ErrWalletNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.RetryableUpstream("Could not load your wallet. Please try again.", err)
	}
	return w, nil
}

func (s *Service) create(ctx context.Context, req *Request) (domain.Reply, error) {
	if err := requireUser(req); err != nil {
		return domain.Reply{}, err
	}
	w, err := s.existingWallet(ctx, req.Session.UserID)
	if err != nil {
		return domain.Reply{}, err
	}
	if w != nil {
		req.Session.Begin(domain.ActionCreateConfirm, domain.Flow{Create: &domain.CreateState{}}, req.Now)
		return domain.Reply{
			Text: fmt.Sprintf("⚠️ You already have a wallet: %s\n\nCreating a new one replaces it. Make sure you exported its private key first.\n\nDo you want to continue?", w.Address),
			Buttons: [][]domain.Button{
				{btn("Yes, create new wallet", "confirm_create_wallet"), btn("Cancel", "cancel_create_wallet")},
			},
		}, nil
	}
	return s.generate(ctx, req)
}

func (s *Service) createConfirm(ctx context.Context, req *Request) (domain.Reply, error) {
	if !answer(req.Event, "confirm_create_wallet") {
		req.Session.Reset()
		return domain.Reply{Text: "Wallet creation cancelled."}, nil
	}
	if req.Session.Flow.Create == nil {
		return domain.Reply{}, domain.SessionState("Your wallet creation session is no longer valid. Please use /create to start again.")
	}
	return s.generate(ctx, req)
}

func (s *Service) generate(ctx context.Context, req *Request) (domain.Reply, error) {
	w, err := s.wallets.GenerateWallet(ctx, req.Session.UserID)
	if err != nil {
		return domain.Reply{}, domain.Upstream("Failed to create a wallet. Please try again later.", err)
	}
	req.Session.WalletAddress = w.Address
	req.Session.Reset()
	s.logger.Info("Wallet created", "user_id", req.Session.UserID, "address", w.Address)
	return domain.Reply{
		Text: fmt.Sprintf("✅ Wallet Created\n\nAddress: %s\n\nUse /deposit to fund it and /export to back up the private key.", w.Address),
		Buttons: mainMenuButtons(),
	}, nil
}

func (s *Service) importWallet(ctx context.Context, req *Request) (domain.Reply, error) {
	if err := requireUser(req); err != nil {
		return domain.Reply{}, err
	}
	w, err := s.existingWallet(ctx, req.Session.UserID)
	if err != nil {
		return domain.Reply{}, err
	}
	if w != nil {
		req.Session.Begin(domain.ActionImportConfirm, domain.Flow{Import: &domain.ImportState{}}, req.Now)
		return domain.Reply{
			Text: fmt.Sprintf("⚠️ You already have a wallet: %s\n\nImporting a key replaces it. Do you want to continue?", w.Address),
			Buttons: [][]domain.Button{
				{btn("Yes, import", "confirm_import_wallet"), btn("Cancel", "cancel_import_wallet")},
			},
		}, nil
	}
	req.Session.Begin(domain.ActionImportWallet, domain.Flow{Import: &domain.ImportState{}}, req.Now)
	return importPrompt(), nil
}

func importPrompt() domain.Reply {
	return domain.Reply{Text: "🔑 Import Wallet\n\nPlease send your private key (64 hex characters, optionally prefixed with 0x).\n\nNever share your private key with anyone else.\n\nYou can cancel this operation by typing /cancel"}
}

func (s *Service) importConfirm(ctx context.Context, req *Request) (domain.Reply, error) {
	if !answer(req.Event, "confirm_import_wallet") {
		req.Session.Reset()
		return domain.Reply{Text: "Wallet import cancelled."}, nil
	}
	st := req.Session.Flow.Import
	if st == nil {
		return domain.Reply{}, domain.SessionState("Your import session is no longer valid. Please use /import to start again.")
	}
	st.Overwrite = true
	req.Session.Advance(domain.ActionImportWallet, req.Now)
	return importPrompt(), nil
}

// importKey never logs or echoes the submitted key.
func (s *Service) importKey(ctx context.Context, req *Request) (domain.Reply, error) {
	if req.Session.Flow.Import == nil {
		return domain.Reply{}, domain.SessionState("Your import session is no longer valid. Please use /import to start again.")
	}
	st := req.Session.Flow.Import
	key := strings.TrimSpace(req.Event.Args)
	if !IsPrivateKey(key) {
		return domain.Reply{}, domain.UserInput("Invalid private key. It must be 64 hexadecimal characters, optionally prefixed with 0x.")
	}
	if !strings.HasPrefix(key, "0x") {
		key = "0x" + key
	}
	if !st.Overwrite {
		existing, err := s.existingWallet(ctx, req.Session.UserID)
		if err != nil {
			return domain.Reply{}, err
		}
		if existing != nil {
			req.Session.Reset()
			return domain.Reply{}, domain.SessionState("A wallet was added to your account in the meantime. Please use /import again to replace it.")
		}
	}

	w, err := s.wallets.ImportWallet(ctx, req.Session.UserID, key)
	if err != nil {
		return domain.Reply{}, domain.Upstream("Failed to import the wallet. Please check the key and try again.", err)
	}
	req.Session.WalletAddress = w.Address
	req.Session.Reset()
	s.logger.Info("Wallet imported", "user_id", req.Session.UserID, "address", w.Address)
	return domain.Reply{
		Text:    fmt.Sprintf("✅ Wallet Imported\n\nAddress: %s", w.Address),
		Buttons: mainMenuButtons(),
	}, nil
}

func (s *Service) export(ctx context.Context, req *Request) (domain.Reply, error) {
	w, reply, err := s.requireWallet(ctx, req)
	if w == nil {
		return reply, err
	}
	req.Session.Begin(domain.ActionExportWallet, domain.Flow{Export: &domain.ExportState{}}, req.Now)
	return domain.Reply{
		Text:    "⚠️ Export Private Key\n\nAnyone with your private key has full control of your funds. Only continue in a private place.\n\nDo you want to reveal your private key?",
		Buttons: confirmButtons(),
	}, nil
}

func (s *Service) exportConfirm(ctx context.Context, req *Request) (domain.Reply, error) {
	if !answer(req.Event, "confirm_yes") {
		req.Session.Reset()
		return domain.Reply{Text: "Export cancelled."}, nil
	}
	if req.Session.Flow.Export == nil {
		return domain.Reply{}, domain.SessionState("Your export session is no longer valid. Please use /export to start again.")
	}
	w, reply, err := s.requireWallet(ctx, req)
	if w == nil {
		return reply, err
	}
	key, err := s.wallets.PrivateKey(ctx, w)
	if err != nil {
		return domain.Reply{}, domain.Upstream("Failed to export the private key. Please try again later.", err)
	}
	req.Session.Reset()
	s.logger.Info("Private key exported", "user_id", req.Session.UserID, "address", w.Address)
	return domain.Reply{Text: fmt.Sprintf("🔑 Your Private Key\n\n%s\n\nStore it somewhere safe and delete this message.", key)}, nil
}
