package sqlstore

import (
	"strings"
	"time"

	"github.com/aretw0/swapflow/pkg/domain"
	"gorm.io/gorm"
)

type userRecord struct {
	ID          string `gorm:"primaryKey;size:64"`
	FID         string `gorm:"index;size:64"`
	Username    string `gorm:"size:128"`
	DisplayName string `gorm:"size:256"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (userRecord) TableName() string { return "users" }

type settingsRecord struct {
	UserID      string  `gorm:"primaryKey;size:64"`
	Slippage    float64 `gorm:"not null"`
	GasPriority string  `gorm:"size:16;not null"`
	UpdatedAt   time.Time
}

func (settingsRecord) TableName() string { return "user_settings" }

type walletRecord struct {
	UserID       string `gorm:"primaryKey;size:64"`
	Address      string `gorm:"index;size:42;not null"`
	Type         string `gorm:"size:16"`
	EncryptedKey string `gorm:"not null"`
	CreatedAt    time.Time
}

func (walletRecord) TableName() string { return "wallets" }

// transactionRecord is append-only apart from the pending status transition.
type transactionRecord struct {
	Hash          string `gorm:"primaryKey;size:66"`
	UserID        string `gorm:"index;size:64;not null"`
	WalletAddress string `gorm:"size:42"`
	Kind          string `gorm:"size:16;index"`
	FromToken     string `gorm:"size:42"`
	ToToken       string `gorm:"size:42"`
	FromAmount    string
	ToAmount      string
	Status        string `gorm:"size:16;index"`
	GasUsed       uint64
	CreatedAt     time.Time `gorm:"index"`
}

func (transactionRecord) TableName() string { return "transactions" }

type intentRecord struct {
	ID            string `gorm:"primaryKey;size:64"`
	SessionID     string `gorm:"size:64"`
	UserID        string `gorm:"index;size:64"`
	WalletAddress string `gorm:"size:42"`
	Kind          string `gorm:"size:16"`
	FromToken     string `gorm:"size:42"`
	ToToken       string `gorm:"size:42"`
	FromAmount    string
	ToAmount      string
	TxHash        string    `gorm:"size:66;index"`
	State         string    `gorm:"size:16;index"`
	CreatedAt     time.Time `gorm:"index"`
	UpdatedAt     time.Time
}

func (intentRecord) TableName() string { return "execution_intents" }

// AutoMigrate creates or updates every table.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&userRecord{},
		&settingsRecord{},
		&walletRecord{},
		&transactionRecord{},
		&intentRecord{},
	)
}

func hashKey(hash string) string {
	return strings.ToLower(strings.TrimSpace(hash))
}

func toTransactionRecord(tx domain.Transaction) transactionRecord {
	return transactionRecord{
		Hash:          hashKey(tx.Hash),
		UserID:        tx.UserID,
		WalletAddress: tx.WalletAddress,
		Kind:          string(tx.Kind),
		FromToken:     tx.FromToken,
		ToToken:       tx.ToToken,
		FromAmount:    tx.FromAmount,
		ToAmount:      tx.ToAmount,
		Status:        string(tx.Status),
		GasUsed:       tx.GasUsed,
		CreatedAt:     tx.CreatedAt.UTC(),
	}
}

func (r transactionRecord) toDomain() domain.Transaction {
	return domain.Transaction{
		Hash:          r.Hash,
		UserID:        r.UserID,
		WalletAddress: r.WalletAddress,
		Kind:          domain.TxKind(r.Kind),
		FromToken:     r.FromToken,
		ToToken:       r.ToToken,
		FromAmount:    r.FromAmount,
		ToAmount:      r.ToAmount,
		Status:        domain.TxStatus(r.Status),
		GasUsed:       r.GasUsed,
		CreatedAt:     r.CreatedAt.UTC(),
	}
}

func toIntentRecord(in domain.ExecutionIntent) intentRecord {
	return intentRecord{
		ID:            in.ID,
		SessionID:     in.SessionID,
		UserID:        in.UserID,
		WalletAddress: in.WalletAddress,
		Kind:          string(in.Kind),
		FromToken:     in.FromToken,
		ToToken:       in.ToToken,
		FromAmount:    in.FromAmount,
		ToAmount:      in.ToAmount,
		TxHash:        hashKey(in.TxHash),
		State:         string(in.State),
		CreatedAt:     in.CreatedAt.UTC(),
		UpdatedAt:     in.UpdatedAt.UTC(),
	}
}

func (r intentRecord) toDomain() domain.ExecutionIntent {
	return domain.ExecutionIntent{
		ID:            r.ID,
		SessionID:     r.SessionID,
		UserID:        r.UserID,
		WalletAddress: r.WalletAddress,
		Kind:          domain.TxKind(r.Kind),
		FromToken:     r.FromToken,
		ToToken:       r.ToToken,
		FromAmount:    r.FromAmount,
		ToAmount:      r.ToAmount,
		TxHash:        r.TxHash,
		State:         domain.IntentState(r.State),
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}
