package middleware_test

import (
	"context"
	"crypto/rand"
	"io"
	"testing"
	"time"

	"github.com/aretw0/swapflow/pkg/adapters/memory"
	"github.com/aretw0/swapflow/pkg/domain"
	"github.com/aretw0/swapflow/pkg/persistence/middleware"
	"github.com/aretw0/swapflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		t.Fatal(err)
	}
	return k
}

func newSecureStore(t *testing.T, next ports.SessionStore, cfg middleware.EncryptionConfig) ports.SessionStore {
	mw, err := middleware.NewEncryptionMiddleware(cfg)
	require.NoError(t, err)
	return mw(next)
}

func midWithdraw(id string) *domain.Session {
	s := domain.NewSession(id, time.Now())
	s.UserID = "1001"
	s.WalletAddress = "0x00000000000000000000000000000000000000aa"
	s.Begin(domain.ActionWithdrawConfirm, domain.Flow{Withdraw: &domain.WithdrawState{
		Balance: "1000",
		To:      "0x00000000000000000000000000000000000000bb",
		Amount:  "0.1",
	}}, time.Now())
	return s
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlyingStore := NewMockStore()
	secureStore := newSecureStore(t, underlyingStore, middleware.EncryptionConfig{ActiveKey: generateKey(t)})

	ctx := context.Background()
	sessionID := "test-session"
	original := midWithdraw(sessionID)

	if err := secureStore.Save(ctx, sessionID, original); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// The underlying record is an opaque envelope.
	stored, err := underlyingStore.Load(ctx, sessionID)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.Sealed)
	assert.Empty(t, stored.WalletAddress)
	assert.Empty(t, stored.UserID)
	assert.True(t, stored.Idle())
	assert.True(t, stored.Flow.Empty())

	loaded, err := secureStore.Load(ctx, sessionID)
	if err != nil {
		t.Fatalf("Load via middleware failed: %v", err)
	}
	assert.Empty(t, loaded.Sealed)
	assert.Equal(t, domain.ActionWithdrawConfirm, loaded.CurrentAction)
	require.NotNil(t, loaded.Flow.Withdraw)
	assert.Equal(t, "0.1", loaded.Flow.Withdraw.Amount)
	assert.Equal(t, original.WalletAddress, loaded.WalletAddress)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlyingStore := NewMockStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)

	secureStoreOld := newSecureStore(t, underlyingStore, middleware.EncryptionConfig{ActiveKey: oldKey})

	ctx := context.Background()
	sessionID := "rotation-session"
	if err := secureStoreOld.Save(ctx, sessionID, midWithdraw(sessionID)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	secureStoreNew := newSecureStore(t, underlyingStore, middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})

	loaded, err := secureStoreNew.Load(ctx, sessionID)
	if err != nil {
		t.Fatalf("Load with rotated key failed: %v", err)
	}
	require.NotNil(t, loaded.Flow.Withdraw, "decryption with fallback key failed")

	// Saving again re-seals with the new key.
	loaded.Reset()
	if err := secureStoreNew.Save(ctx, sessionID, loaded); err != nil {
		t.Fatalf("Save with new key failed: %v", err)
	}

	_, err = secureStoreOld.Load(ctx, sessionID)
	if err == nil {
		t.Error("Expected failure when loading new-key encryption with old-key middleware")
	}
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	_, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	assert.ErrorIs(t, err, middleware.ErrKeySize)

	_, err = middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    generateKey(t),
		FallbackKeys: [][]byte{[]byte("short")},
	})
	assert.ErrorIs(t, err, middleware.ErrKeySize)
}

func TestEncryptionMiddleware_RejectsPlainRecords(t *testing.T) {
	underlyingStore := NewMockStore()
	ctx := context.Background()
	require.NoError(t, underlyingStore.Save(ctx, "plain", domain.NewSession("plain", time.Now())))

	secureStore := newSecureStore(t, underlyingStore, middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	_, err := secureStore.Load(ctx, "plain")
	assert.Error(t, err)
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)
	ports.RunSessionStoreContract(t, middleware.Chain(memory.NewStore(), mw))
}
