package testutils

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/swapflow/pkg/domain"
	"github.com/aretw0/swapflow/pkg/ports"
)

// Wallets is an in-memory ports.WalletProvider backed by a Repository.
// Addresses are derived from the key so that tests can predict them.
type Wallets struct {
	mu   sync.Mutex
	repo *Repository
	keys map[string]string
	seq  int

	GenerateErr error
}

var _ ports.WalletProvider = (*Wallets)(nil)

func NewWallets(repo *Repository) *Wallets {
	return &Wallets{repo: repo, keys: make(map[string]string)}
}

// AddressForKey is the address the fake assigns to a private key.
func AddressForKey(privateKeyHex string) string {
	k := strings.TrimPrefix(privateKeyHex, "0x")
	return "0x" + k[len(k)-40:]
}

func (w *Wallets) Wallet(ctx context.Context, userID string) (*domain.Wallet, error) {
	return w.repo.WalletByUserID(ctx, userID)
}

func (w *Wallets) GenerateWallet(ctx context.Context, userID string) (*domain.Wallet, error) {
	w.mu.Lock()
	if w.GenerateErr != nil {
		w.mu.Unlock()
		return nil, w.GenerateErr
	}
	w.seq++
	key := fmt.Sprintf("%064x", 0xabc000+w.seq)
	w.mu.Unlock()
	return w.store(ctx, userID, key, domain.WalletGenerated)
}

func (w *Wallets) ImportWallet(ctx context.Context, userID, privateKeyHex string) (*domain.Wallet, error) {
	return w.store(ctx, userID, strings.TrimPrefix(privateKeyHex, "0x"), domain.WalletImported)
}

func (w *Wallets) store(ctx context.Context, userID, key string, kind domain.WalletType) (*domain.Wallet, error) {
	wallet := domain.Wallet{
		UserID:       userID,
		Address:      AddressForKey(key),
		Type:         kind,
		EncryptedKey: "sealed:" + key,
		CreatedAt:    time.Now(),
	}
	if err := w.repo.SaveWallet(ctx, wallet); err != nil {
		return nil, err
	}
	w.mu.Lock()
	w.keys[strings.ToLower(wallet.Address)] = key
	w.mu.Unlock()
	return &wallet, nil
}

func (w *Wallets) PrivateKey(ctx context.Context, wallet *domain.Wallet) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	k, ok := w.keys[strings.ToLower(wallet.Address)]
	if !ok {
		return "", domain.ErrWalletNotFound
	}
	return "0x" + k, nil
}
