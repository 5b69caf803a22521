// Package custody generates, imports and seals custodial wallet keys.
//
// Private keys are sealed with XChaCha20-Poly1305 under a service key before
// they reach the repository. The owning user id is bound as additional data,
// so a sealed key copied onto another user's row does not open.
package custody

import (
	"context"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/swapflow/pkg/domain"
	"github.com/aretw0/swapflow/pkg/ports"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/chacha20poly1305"
)

const sealedPrefix = "xc1:"

var (
	// ErrInvalidKey is returned for malformed private keys.
	ErrInvalidKey = errors.New("invalid private key")
	// ErrAuthFailed is returned when a sealed key does not open under the service key.
	ErrAuthFailed = errors.New("sealed key authentication failed")
)

// Vault implements ports.WalletProvider and ports.KeySource.
type Vault struct {
	accounts ports.Accounts
	aead     cipher.AEAD
	now      func() time.Time
}

var (
	_ ports.WalletProvider = (*Vault)(nil)
	_ ports.KeySource      = (*Vault)(nil)
)

// Option configures the Vault.
type Option func(*Vault)

func WithClock(now func() time.Time) Option {
	return func(v *Vault) { v.now = now }
}

// New creates a Vault sealing keys under the 32-byte sealingKey.
func New(accounts ports.Accounts, sealingKey []byte, opts ...Option) (*Vault, error) {
	aead, err := chacha20poly1305.NewX(sealingKey)
	if err != nil {
		return nil, fmt.Errorf("custody key: %w", err)
	}
	v := &Vault{accounts: accounts, aead: aead, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

func (v *Vault) Wallet(ctx context.Context, userID string) (*domain.Wallet, error) {
	return v.accounts.WalletByUserID(ctx, userID)
}

// GenerateWallet creates a fresh key and replaces any wallet the user had.
func (v *Vault) GenerateWallet(ctx context.Context, userID string) (*domain.Wallet, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return v.store(ctx, userID, key, domain.WalletGenerated)
}

// ImportWallet stores a user-supplied key, with or without the 0x prefix.
func (v *Vault) ImportWallet(ctx context.Context, userID, privateKeyHex string) (*domain.Wallet, error) {
	key, err := ParseKey(privateKeyHex)
	if err != nil {
		return nil, err
	}
	return v.store(ctx, userID, key, domain.WalletImported)
}

func (v *Vault) store(ctx context.Context, userID string, key *ecdsa.PrivateKey, kind domain.WalletType) (*domain.Wallet, error) {
	raw := crypto.FromECDSA(key)
	defer zero(raw)

	sealed, err := v.seal(userID, raw)
	if err != nil {
		return nil, err
	}
	wallet := domain.Wallet{
		UserID:       userID,
		Address:      crypto.PubkeyToAddress(key.PublicKey).Hex(),
		Type:         kind,
		EncryptedKey: sealed,
		CreatedAt:    v.now(),
	}
	if err := v.accounts.SaveWallet(ctx, wallet); err != nil {
		return nil, fmt.Errorf("save wallet: %w", err)
	}
	return &wallet, nil
}

// PrivateKey opens the sealed key and returns it 0x-prefixed.
func (v *Vault) PrivateKey(ctx context.Context, wallet *domain.Wallet) (string, error) {
	if wallet == nil || wallet.EncryptedKey == "" {
		stored, err := v.accounts.WalletByUserID(ctx, walletUser(wallet))
		if err != nil {
			return "", err
		}
		wallet = stored
	}
	raw, err := v.open(wallet.UserID, wallet.EncryptedKey)
	if err != nil {
		return "", err
	}
	defer zero(raw)

	key, err := crypto.ToECDSA(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if got := crypto.PubkeyToAddress(key.PublicKey).Hex(); !strings.EqualFold(got, wallet.Address) {
		return "", fmt.Errorf("sealed key does not match wallet %s", wallet.Address)
	}
	return "0x" + hex.EncodeToString(raw), nil
}

// ParseKey decodes a hex private key, with or without the 0x prefix.
func ParseKey(privateKeyHex string) (*ecdsa.PrivateKey, error) {
	s := strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	key, err := crypto.HexToECDSA(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return key, nil
}

// AddressOf returns the checksummed address of a hex private key.
func AddressOf(privateKeyHex string) (string, error) {
	key, err := ParseKey(privateKeyHex)
	if err != nil {
		return "", err
	}
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), nil
}

func (v *Vault) seal(userID string, plaintext []byte) (string, error) {
	nonce := make([]byte, chacha20poly1305.NonceSizeX, chacha20poly1305.NonceSizeX+len(plaintext)+v.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	out := v.aead.Seal(nonce, nonce, plaintext, []byte(userID))
	return sealedPrefix + base64.RawStdEncoding.EncodeToString(out), nil
}

func (v *Vault) open(userID, sealed string) ([]byte, error) {
	if !strings.HasPrefix(sealed, sealedPrefix) {
		return nil, fmt.Errorf("%w: unknown envelope", ErrAuthFailed)
	}
	data, err := base64.RawStdEncoding.DecodeString(strings.TrimPrefix(sealed, sealedPrefix))
	if err != nil || len(data) < chacha20poly1305.NonceSizeX+v.aead.Overhead() {
		return nil, fmt.Errorf("%w: malformed envelope", ErrAuthFailed)
	}
	nonce, ciphertext := data[:chacha20poly1305.NonceSizeX], data[chacha20poly1305.NonceSizeX:]
	plaintext, err := v.aead.Open(nil, nonce, ciphertext, []byte(userID))
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

func walletUser(w *domain.Wallet) string {
	if w == nil {
		return ""
	}
	return w.UserID
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
