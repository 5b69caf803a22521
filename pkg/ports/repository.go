package ports

import (
	"context"
	"time"

	"github.com/aretw0/swapflow/pkg/domain"
)

// Accounts persists users, their settings and their wallets.
type Accounts interface {
	// UpsertUser reports whether the user was created.
	UpsertUser(ctx context.Context, user domain.User) (bool, error)
	// Settings returns domain.ErrNotFound when nothing was saved yet.
	Settings(ctx context.Context, userID string) (domain.Settings, error)
	SaveSettings(ctx context.Context, userID string, settings domain.Settings) error
	// WalletByUserID returns domain.ErrWalletNotFound when absent.
	WalletByUserID(ctx context.Context, userID string) (*domain.Wallet, error)
	SaveWallet(ctx context.Context, wallet domain.Wallet) error
}

// Ledger persists transaction records and the execution intents that precede them.
type Ledger interface {
	SaveTransaction(ctx context.Context, tx domain.Transaction) error
	UpdateTransactionStatus(ctx context.Context, hash string, status domain.TxStatus, gasUsed uint64) error
	UniqueTokensByUser(ctx context.Context, userID string) ([]string, error)
	Transactions(ctx context.Context, userID string, since time.Time, limit int) ([]domain.Transaction, error)
	PendingTransactions(ctx context.Context, before time.Time) ([]domain.Transaction, error)

	BeginExecution(ctx context.Context, intent domain.ExecutionIntent) error
	AttachHash(ctx context.Context, intentID, hash string) error
	// CompleteExecution writes the record and closes the intent atomically.
	CompleteExecution(ctx context.Context, intentID string, tx domain.Transaction) error
	OpenIntents(ctx context.Context, before time.Time) ([]domain.ExecutionIntent, error)
	CloseIntent(ctx context.Context, intentID string, state domain.IntentState) error
}

// Repository is the full relational persistence surface.
type Repository interface {
	Accounts
	Ledger
}
