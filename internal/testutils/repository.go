package testutils

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/swapflow/pkg/domain"
	"github.com/aretw0/swapflow/pkg/ports"
)

// Repository is an in-memory ports.Repository.
type Repository struct {
	mu sync.Mutex

	Users    map[string]domain.User
	settings map[string]domain.Settings
	wallets  map[string]domain.Wallet
	txs      map[string]domain.Transaction
	order    []string
	intents  map[string]domain.ExecutionIntent

	// CompleteFailures fails that many CompleteExecution calls before succeeding.
	CompleteFailures int
	BeginErr         error
	SettingsErr      error
}

var _ ports.Repository = (*Repository)(nil)

func NewRepository() *Repository {
	return &Repository{
		Users:    make(map[string]domain.User),
		settings: make(map[string]domain.Settings),
		wallets:  make(map[string]domain.Wallet),
		txs:      make(map[string]domain.Transaction),
		intents:  make(map[string]domain.ExecutionIntent),
	}
}

func (r *Repository) UpsertUser(ctx context.Context, user domain.User) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, exists := r.Users[user.ID]
	r.Users[user.ID] = user
	return !exists, nil
}

func (r *Repository) Settings(ctx context.Context, userID string) (domain.Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.SettingsErr != nil {
		return domain.Settings{}, r.SettingsErr
	}
	s, ok := r.settings[userID]
	if !ok {
		return domain.Settings{}, domain.ErrNotFound
	}
	return s, nil
}

func (r *Repository) SaveSettings(ctx context.Context, userID string, settings domain.Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings[userID] = settings
	return nil
}

func (r *Repository) WalletByUserID(ctx context.Context, userID string) (*domain.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[userID]
	if !ok {
		return nil, domain.ErrWalletNotFound
	}
	return &w, nil
}

func (r *Repository) SaveWallet(ctx context.Context, wallet domain.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wallets[wallet.UserID] = wallet
	return nil
}

func (r *Repository) SaveTransaction(ctx context.Context, tx domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertLocked(tx)
}

func (r *Repository) insertLocked(tx domain.Transaction) error {
	k := strings.ToLower(tx.Hash)
	if _, exists := r.txs[k]; exists {
		return fmt.Errorf("transaction %s already recorded", tx.Hash)
	}
	r.txs[k] = tx
	r.order = append(r.order, k)
	return nil
}

func (r *Repository) UpdateTransactionStatus(ctx context.Context, hash string, status domain.TxStatus, gasUsed uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := strings.ToLower(hash)
	tx, ok := r.txs[k]
	if !ok {
		return domain.ErrNotFound
	}
	if tx.Status != domain.TxPending {
		return errors.New("only pending records can change")
	}
	tx.Status = status
	tx.GasUsed = gasUsed
	r.txs[k] = tx
	return nil
}

func (r *Repository) UniqueTokensByUser(ctx context.Context, userID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, k := range r.order {
		tx := r.txs[k]
		if tx.UserID != userID || tx.Kind != domain.TxSwap {
			continue
		}
		for _, t := range []string{tx.FromToken, tx.ToToken} {
			lt := strings.ToLower(t)
			if t == "" || seen[lt] {
				continue
			}
			seen[lt] = true
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *Repository) Transactions(ctx context.Context, userID string, since time.Time, limit int) ([]domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Transaction
	for _, k := range r.order {
		tx := r.txs[k]
		if tx.UserID == userID && !tx.CreatedAt.Before(since) {
			out = append(out, tx)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *Repository) PendingTransactions(ctx context.Context, before time.Time) ([]domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Transaction
	for _, k := range r.order {
		tx := r.txs[k]
		if tx.Status == domain.TxPending && tx.CreatedAt.Before(before) {
			out = append(out, tx)
		}
	}
	return out, nil
}

// AllTransactions returns every record in insertion order.
func (r *Repository) AllTransactions() []domain.Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Transaction, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.txs[k])
	}
	return out
}

func (r *Repository) BeginExecution(ctx context.Context, intent domain.ExecutionIntent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.BeginErr != nil {
		return r.BeginErr
	}
	r.intents[intent.ID] = intent
	return nil
}

func (r *Repository) AttachHash(ctx context.Context, intentID, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	in, ok := r.intents[intentID]
	if !ok {
		return domain.ErrNotFound
	}
	in.TxHash = hash
	in.State = domain.IntentSubmitted
	r.intents[intentID] = in
	return nil
}

func (r *Repository) CompleteExecution(ctx context.Context, intentID string, tx domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CompleteFailures > 0 {
		r.CompleteFailures--
		return errors.New("database is locked")
	}
	in, ok := r.intents[intentID]
	if !ok {
		return domain.ErrNotFound
	}
	if err := r.insertLocked(tx); err != nil {
		return err
	}
	in.State = domain.IntentRecorded
	r.intents[intentID] = in
	return nil
}

func (r *Repository) OpenIntents(ctx context.Context, before time.Time) ([]domain.ExecutionIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ExecutionIntent
	for _, in := range r.intents {
		if (in.State == domain.IntentOpen || in.State == domain.IntentSubmitted) && in.CreatedAt.Before(before) {
			out = append(out, in)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *Repository) CloseIntent(ctx context.Context, intentID string, state domain.IntentState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	in, ok := r.intents[intentID]
	if !ok {
		return domain.ErrNotFound
	}
	in.State = state
	r.intents[intentID] = in
	return nil
}

// Intent returns a stored intent by id.
func (r *Repository) Intent(id string) (domain.ExecutionIntent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	in, ok := r.intents[id]
	return in, ok
}

// Intents returns every stored intent.
func (r *Repository) Intents() []domain.ExecutionIntent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.ExecutionIntent, 0, len(r.intents))
	for _, in := range r.intents {
		out = append(out, in)
	}
	return out
}
