// Package sqlstore implements the relational repository on gorm.
//
// The default driver is the pure-Go SQLite driver, so the service runs
// without cgo. Every timestamp is stored in UTC so that range queries
// compare correctly.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/swapflow/pkg/domain"
	"github.com/aretw0/swapflow/pkg/ports"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// ErrNotPending is returned when a status update targets a settled record.
var ErrNotPending = errors.New("transaction is no longer pending")

// Store implements ports.Repository.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

var _ ports.Repository = (*Store)(nil)

// Option configures the Store.
type Option func(*Store)

// WithClock overrides the time source used for update timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open opens a SQLite database at path and migrates it.
func Open(path string, opts ...Option) (*Store, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return New(db, opts...)
}

// New wraps an existing connection and migrates it.
func New(db *gorm.DB, opts ...Option) (*Store, error) {
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) UpsertUser(ctx context.Context, user domain.User) (bool, error) {
	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing userRecord
		err := tx.First(&existing, "id = ?", user.ID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			created = true
			createdAt := user.CreatedAt
			if createdAt.IsZero() {
				createdAt = s.now()
			}
			return tx.Create(&userRecord{
				ID:          user.ID,
				FID:         user.FID,
				Username:    user.Username,
				DisplayName: user.DisplayName,
				CreatedAt:   createdAt.UTC(),
				UpdatedAt:   createdAt.UTC(),
			}).Error
		case err != nil:
			return err
		}
		return tx.Model(&existing).Updates(map[string]any{
			"username":     user.Username,
			"display_name": user.DisplayName,
			"updated_at":   s.now().UTC(),
		}).Error
	})
	if err != nil {
		return false, fmt.Errorf("upsert user %s: %w", user.ID, err)
	}
	return created, nil
}

func (s *Store) Settings(ctx context.Context, userID string) (domain.Settings, error) {
	var rec settingsRecord
	err := s.db.WithContext(ctx).First(&rec, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Settings{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Settings{}, err
	}
	return domain.Settings{Slippage: rec.Slippage, GasPriority: domain.GasPriority(rec.GasPriority)}, nil
}

func (s *Store) SaveSettings(ctx context.Context, userID string, settings domain.Settings) error {
	rec := settingsRecord{
		UserID:      userID,
		Slippage:    settings.Slippage,
		GasPriority: string(settings.GasPriority),
		UpdatedAt:   s.now().UTC(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"slippage", "gas_priority", "updated_at"}),
	}).Create(&rec).Error
}

func (s *Store) WalletByUserID(ctx context.Context, userID string) (*domain.Wallet, error) {
	var rec walletRecord
	err := s.db.WithContext(ctx).First(&rec, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &domain.Wallet{
		UserID:       rec.UserID,
		Address:      rec.Address,
		Type:         domain.WalletType(rec.Type),
		EncryptedKey: rec.EncryptedKey,
		CreatedAt:    rec.CreatedAt.UTC(),
	}, nil
}

// SaveWallet replaces the user's wallet.
func (s *Store) SaveWallet(ctx context.Context, wallet domain.Wallet) error {
	createdAt := wallet.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	rec := walletRecord{
		UserID:       wallet.UserID,
		Address:      wallet.Address,
		Type:         string(wallet.Type),
		EncryptedKey: wallet.EncryptedKey,
		CreatedAt:    createdAt.UTC(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"address", "type", "encrypted_key", "created_at"}),
	}).Create(&rec).Error
}

func (s *Store) SaveTransaction(ctx context.Context, tx domain.Transaction) error {
	rec := toTransactionRecord(tx)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("record transaction %s: %w", tx.Hash, err)
	}
	return nil
}

// UpdateTransactionStatus settles a pending record. Settled records never change.
func (s *Store) UpdateTransactionStatus(ctx context.Context, hash string, status domain.TxStatus, gasUsed uint64) error {
	res := s.db.WithContext(ctx).Model(&transactionRecord{}).
		Where("hash = ? AND status = ?", hashKey(hash), string(domain.TxPending)).
		Updates(map[string]any{"status": string(status), "gas_used": gasUsed})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&transactionRecord{}).Where("hash = ?", hashKey(hash)).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return domain.ErrNotFound
	}
	return ErrNotPending
}

// UniqueTokensByUser lists the tokens the user has swapped, oldest first.
func (s *Store) UniqueTokensByUser(ctx context.Context, userID string) ([]string, error) {
	var recs []transactionRecord
	err := s.db.WithContext(ctx).
		Select("from_token", "to_token").
		Where("user_id = ? AND kind = ?", userID, string(domain.TxSwap)).
		Order("created_at ASC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for _, r := range recs {
		for _, t := range []string{r.FromToken, r.ToToken} {
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

// Transactions returns the user's records since the given time, newest first.
func (s *Store) Transactions(ctx context.Context, userID string, since time.Time, limit int) ([]domain.Transaction, error) {
	q := s.db.WithContext(ctx).
		Where("user_id = ? AND created_at >= ?", userID, since.UTC()).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var recs []transactionRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	return toTransactions(recs), nil
}

func (s *Store) PendingTransactions(ctx context.Context, before time.Time) ([]domain.Transaction, error) {
	var recs []transactionRecord
	err := s.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", string(domain.TxPending), before.UTC()).
		Order("created_at ASC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return toTransactions(recs), nil
}

func toTransactions(recs []transactionRecord) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.toDomain())
	}
	return out
}

func (s *Store) BeginExecution(ctx context.Context, intent domain.ExecutionIntent) error {
	if intent.State == "" {
		intent.State = domain.IntentOpen
	}
	if intent.UpdatedAt.IsZero() {
		intent.UpdatedAt = intent.CreatedAt
	}
	rec := toIntentRecord(intent)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("begin execution %s: %w", intent.ID, err)
	}
	return nil
}

func (s *Store) AttachHash(ctx context.Context, intentID, hash string) error {
	return s.updateIntent(s.db.WithContext(ctx), intentID, map[string]any{
		"tx_hash": hashKey(hash),
		"state":   string(domain.IntentSubmitted),
	})
}

// CompleteExecution writes the record and closes the intent in one database
// transaction. Completing an already recorded intent is a no-op.
func (s *Store) CompleteExecution(ctx context.Context, intentID string, tx domain.Transaction) error {
	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		var in intentRecord
		err := db.First(&in, "id = ?", intentID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		if in.State == string(domain.IntentRecorded) {
			return nil
		}
		rec := toTransactionRecord(tx)
		if err := db.Create(&rec).Error; err != nil {
			return fmt.Errorf("record transaction %s: %w", tx.Hash, err)
		}
		return s.updateIntent(db, intentID, map[string]any{
			"tx_hash": rec.Hash,
			"state":   string(domain.IntentRecorded),
		})
	})
}

// OpenIntents returns unrecorded intents created before the given time, oldest first.
func (s *Store) OpenIntents(ctx context.Context, before time.Time) ([]domain.ExecutionIntent, error) {
	var recs []intentRecord
	err := s.db.WithContext(ctx).
		Where("state IN ? AND created_at < ?",
			[]string{string(domain.IntentOpen), string(domain.IntentSubmitted)}, before.UTC()).
		Order("created_at ASC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.ExecutionIntent, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) CloseIntent(ctx context.Context, intentID string, state domain.IntentState) error {
	return s.updateIntent(s.db.WithContext(ctx), intentID, map[string]any{"state": string(state)})
}

func (s *Store) updateIntent(db *gorm.DB, intentID string, fields map[string]any) error {
	fields["updated_at"] = s.now().UTC()
	res := db.Model(&intentRecord{}).Where("id = ?", intentID).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
