package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/swapflow/internal/config"
	"github.com/aretw0/swapflow/internal/logging"
	"github.com/aretw0/swapflow/internal/testutils"
	"github.com/aretw0/swapflow/pkg/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	walletKey  = "0101010101010101010101010101010101010101010101010101010101010101"
	sessionKey = "0202020202020202020202020202020202020202020202020202020202020202"
	devKey     = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	devAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Decode(config.Defaults())
	require.NoError(t, err)
	cfg.Database.Path = "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	cfg.Custody.WalletKey = walletKey
	cfg.Session.EncryptionKey = sessionKey
	return cfg
}

func buildTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	app, err := Build(context.Background(), cfg, logging.NewNop(),
		WithChain(testutils.NewChain()),
		WithAggregator(testutils.NewAggregator()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func post(t *testing.T, h http.Handler, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestBuild_ServesChat(t *testing.T) {
	app := buildTestApp(t, testConfig(t))

	rec := httptest.NewRecorder()
	app.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	first := post(t, app.Handler, "/api/start", `{"fid":1001,"username":"alice"}`)
	require.Equal(t, http.StatusOK, first.Code)
	cookies := first.Result().Cookies()
	require.NotEmpty(t, cookies)

	second := post(t, app.Handler, "/api/start", `{"fid":1001,"username":"alice"}`, cookies...)
	require.Equal(t, http.StatusOK, second.Code)
	var reply domain.Reply
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &reply))
	assert.Contains(t, reply.Text, "Welcome back")

	var out bytes.Buffer
	require.NoError(t, ListSessions(context.Background(), app.Sessions.Store(), &out))
	assert.Contains(t, out.String(), cookies[0].Value)

	out.Reset()
	require.NoError(t, InspectSession(context.Background(), app.Sessions.Store(), cookies[0].Value, &out))
	assert.Contains(t, out.String(), "alice")
}

func TestBuild_RequiresWalletKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Custody.WalletKey = ""
	_, err := Build(context.Background(), cfg, logging.NewNop(), WithChain(testutils.NewChain()))
	assert.ErrorIs(t, err, ErrNoWalletKey)
}

func TestNewSessionStore_RedisIsSealed(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Session.Backend = "redis"
	cfg.Redis.Addr = mr.Addr()
	cfg.Redis.Prefix = "test:"

	store, locker, closeStore, err := NewSessionStore(context.Background(), cfg)
	require.NoError(t, err)
	defer closeStore()
	assert.NotNil(t, locker)

	s := domain.NewSession("sid-1", time.Now())
	s.WalletAddress = devAddress
	require.NoError(t, store.Save(context.Background(), "sid-1", s))

	raw, err := mr.Get("test:sid-1")
	require.NoError(t, err)
	assert.Contains(t, raw, "__encrypted__")
	assert.NotContains(t, raw, devAddress)

	loaded, err := store.Load(context.Background(), "sid-1")
	require.NoError(t, err)
	assert.Equal(t, devAddress, loaded.WalletAddress)
}

func TestNewSessionStore_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Session.Backend = "redis"
	cfg.Redis.Addr = mr.Addr()
	mr.Close()

	_, _, _, err := NewSessionStore(context.Background(), cfg)
	assert.Error(t, err)
}

func TestSessionCommands(t *testing.T) {
	cfg := testConfig(t)
	cfg.Session.EncryptionKey = ""
	store, locker, closeStore, err := NewSessionStore(context.Background(), cfg)
	require.NoError(t, err)
	defer closeStore()
	assert.Nil(t, locker)

	ctx := context.Background()
	var out bytes.Buffer
	require.NoError(t, ListSessions(ctx, store, &out))
	assert.Contains(t, out.String(), "No active sessions")

	require.NoError(t, store.Save(ctx, "b", domain.NewSession("b", time.Now())))
	require.NoError(t, store.Save(ctx, "a", domain.NewSession("a", time.Now())))

	out.Reset()
	require.NoError(t, ListSessions(ctx, store, &out))
	assert.Equal(t, "Active Sessions:\n- a\n- b\n", out.String())

	out.Reset()
	require.NoError(t, RemoveSessions(ctx, store, []string{"a", "b"}, &out))
	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	assert.Error(t, InspectSession(ctx, store, "a", &out))
}

func TestImportWallet(t *testing.T) {
	cfg := testConfig(t)
	app := buildTestApp(t, cfg)

	var out bytes.Buffer
	require.NoError(t, ImportWallet(context.Background(), app.Vault, "1001", devKey, &out))
	assert.Contains(t, out.String(), devAddress)

	w, err := app.Ledger.WalletByUserID(context.Background(), "1001")
	require.NoError(t, err)
	assert.Equal(t, devAddress, w.Address)

	assert.Error(t, ImportWallet(context.Background(), app.Vault, "", devKey, &out))
}

func TestNewLogger(t *testing.T) {
	cfg := config.LogConfig{Level: "warn", Format: "json"}
	assert.False(t, NewLogger(cfg, false).Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, NewLogger(cfg, true).Enabled(context.Background(), slog.LevelDebug))
}
