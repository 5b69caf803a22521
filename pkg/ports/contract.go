package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/swapflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore implementation
// adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		// 1. Create a session mid-workflow
		s := domain.NewSession(sessionID, time.Now())
		s.UserID = "42"
		s.WalletAddress = "0xabc"
		s.Settings.GasPriority = domain.GasHigh
		s.Begin(domain.ActionBuyConfirm, domain.Flow{Buy: &domain.BuyState{
			FromToken:    domain.NativeToken,
			FromDecimals: 18,
			Balance:      "100000000000000000",
			Amount:       "0.05",
			Quote:        &domain.Quote{OutAmount: "123", ToDecimals: 6},
		}}, time.Now())

		// 2. Save
		err := store.Save(ctx, sessionID, s)
		require.NoError(t, err, "Save should not return error")

		// 3. Load
		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, s.CurrentAction, loaded.CurrentAction)
		assert.Equal(t, "42", loaded.UserID)
		assert.Equal(t, domain.GasHigh, loaded.Settings.GasPriority)
		require.NotNil(t, loaded.Flow.Buy)
		require.NotNil(t, loaded.Flow.Buy.Quote)
		assert.Equal(t, 6, loaded.Flow.Buy.Quote.ToDecimals)
		assert.Equal(t, "0.05", loaded.Flow.Buy.Amount)
	})

	t.Run("Loaded copies are isolated", func(t *testing.T) {
		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		loaded.Reset()

		again, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, domain.ActionBuyConfirm, again.CurrentAction, "mutating a loaded session must not touch the store")
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, sessionID, domain.NewSession(sessionID, time.Now()))
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, id1, domain.NewSession(id1, time.Now()))
		_ = store.Save(ctx, id2, domain.NewSession(id2, time.Now()))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
