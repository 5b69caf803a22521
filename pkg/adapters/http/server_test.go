package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/swapflow/internal/ratelimit"
	swaphttp "github.com/aretw0/swapflow/pkg/adapters/http"
	"github.com/aretw0/swapflow/pkg/domain"
	"github.com/aretw0/swapflow/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	sessionID string
	identity  domain.Identity
	event     domain.Event
}

type recordingDispatcher struct {
	mu    sync.Mutex
	calls []call
	reply domain.Reply
	err   error
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, sessionID string, identity domain.Identity, event domain.Event) (domain.Reply, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, call{sessionID: sessionID, identity: identity, event: event})
	return d.reply, d.err
}

func (d *recordingDispatcher) last(t *testing.T) call {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	require.NotEmpty(t, d.calls)
	return d.calls[len(d.calls)-1]
}

type response struct {
	Response string            `json:"response"`
	Buttons  [][]domain.Button `json:"buttons"`
}

func post(t *testing.T, h http.Handler, path, body string, cookies ...*http.Cookie) (*httptest.ResponseRecorder, response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out response
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == swaphttp.DefaultCookieName {
			return c
		}
	}
	t.Fatalf("no session cookie in response")
	return nil
}

func TestHealth(t *testing.T) {
	h := swaphttp.NewHandler(&recordingDispatcher{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCommand_IssuesCookieAndForwardsIdentity(t *testing.T) {
	d := &recordingDispatcher{reply: domain.Reply{
		Text:    "hello",
		Buttons: [][]domain.Button{{{Label: "Buy", Callback: "buy_token"}}},
	}}
	h := swaphttp.NewHandler(d)

	rec, out := post(t, h, "/api/chat/command", `{"command":"/start","fid":1001,"username":"trader"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", out.Response)
	require.Len(t, out.Buttons, 1)
	assert.Equal(t, "buy_token", out.Buttons[0][0].Callback)

	cookie := sessionCookie(t, rec)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)

	got := d.last(t)
	assert.Equal(t, cookie.Value, got.sessionID)
	assert.Equal(t, "1001", got.identity.FID)
	assert.Equal(t, "trader", got.identity.Username)
	assert.Equal(t, domain.EventCommand, got.event.Kind)
	assert.Equal(t, "start", got.event.Name)

	// The cookie is reused on the next request.
	rec, _ = post(t, h, "/api/callback", `{"callback":"buy_token","fid":"1001"}`, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
	got = d.last(t)
	assert.Equal(t, cookie.Value, got.sessionID)
	assert.Equal(t, domain.EventCallback, got.event.Kind)
	assert.Equal(t, "buy_token", got.event.Name)
}

func TestInvalidCookieIsReplaced(t *testing.T) {
	d := &recordingDispatcher{}
	h := swaphttp.NewHandler(d)

	rec, _ := post(t, h, "/api/input", `{"args":"0.01"}`, &http.Cookie{Name: swaphttp.DefaultCookieName, Value: "../../etc"})
	require.Equal(t, http.StatusOK, rec.Code)
	cookie := sessionCookie(t, rec)
	assert.NotEqual(t, "../../etc", cookie.Value)
	assert.Equal(t, cookie.Value, d.last(t).sessionID)
}

func TestEndpointsMapToEvents(t *testing.T) {
	tests := []struct {
		name string
		path string
		body string
		want domain.Event
	}{
		{"free text", "/api/input", `{"args":" 0.05 "}`, domain.Text("0.05")},
		{"slash text", "/api/input", `{"args":"/history week"}`, domain.Command("history", "week")},
		{"cancel", "/api/cancel", `{}`, domain.Command("cancel", "")},
		{"buy with address", "/api/buy", `{"args":"0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"}`,
			domain.Command("buy", "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")},
		{"withdraw", "/api/withdraw", `{}`, domain.Command("withdraw", "")},
		{"settings", "/api/settings", `{}`, domain.Command("settings", "")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &recordingDispatcher{}
			h := swaphttp.NewHandler(d)
			rec, _ := post(t, h, tt.path, tt.body)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, d.last(t).event)
		})
	}
}

func TestBadRequests(t *testing.T) {
	d := &recordingDispatcher{}
	h := swaphttp.NewHandler(d)

	rec, _ := post(t, h, "/api/chat/command", `{"command":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = post(t, h, "/api/chat/command", `{"args":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = post(t, h, "/api/callback", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	huge := strings.Repeat("a", swaphttp.DefaultMaxInputSize+1)
	rec, out := post(t, h, "/api/input", `{"args":"`+huge+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid input.", out.Response)

	assert.Empty(t, d.calls)
}

func TestDispatchErrors(t *testing.T) {
	t.Run("busy session", func(t *testing.T) {
		d := &recordingDispatcher{err: errors.Join(domain.ErrSessionBusy, errors.New("lease wait"))}
		rec, out := post(t, swaphttp.NewHandler(d), "/api/input", `{"args":"yes"}`)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "1", rec.Header().Get("Retry-After"))
		assert.Contains(t, out.Response, "still being processed")
	})

	t.Run("store down", func(t *testing.T) {
		d := &recordingDispatcher{err: errors.New("dial tcp: connection refused")}
		rec, out := post(t, swaphttp.NewHandler(d), "/api/input", `{"args":"yes"}`)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.NotContains(t, out.Response, "connection refused")
	})
}

func TestRateLimit(t *testing.T) {
	d := &recordingDispatcher{}
	metrics := observability.NewMetrics()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	h := swaphttp.NewHandler(d,
		swaphttp.WithLimiter(ratelimit.New(1, 2, time.Minute)),
		swaphttp.WithMetrics(metrics),
		swaphttp.WithClock(func() time.Time { return now }),
	)

	rec, _ := post(t, h, "/api/input", `{"args":"a"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	cookie := sessionCookie(t, rec)

	rec, _ = post(t, h, "/api/input", `{"args":"b"}`, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = post(t, h, "/api/input", `{"args":"c"}`, cookie)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Len(t, d.calls, 2)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	mrec := httptest.NewRecorder()
	h.ServeHTTP(mrec, req)
	require.Equal(t, http.StatusOK, mrec.Code)
	body, err := io.ReadAll(mrec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "swapflow_rate_limited_total 1")
}

func TestCORS(t *testing.T) {
	h := swaphttp.NewHandler(&recordingDispatcher{}, swaphttp.WithConfig(swaphttp.Config{CORSOrigin: "https://app.example"}))
	req := httptest.NewRequest(http.MethodOptions, "/api/buy", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestHistoryTimeframe(t *testing.T) {
	d := &recordingDispatcher{}
	h := swaphttp.NewHandler(d)

	rec, _ := post(t, h, "/api/history/week", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.Command("history", "week"), d.last(t).event)

	rec, _ = post(t, h, "/api/history/year", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, d.calls, 1)
}

func TestFIDForms(t *testing.T) {
	d := &recordingDispatcher{}
	h := swaphttp.NewHandler(d)

	rec, _ := post(t, h, "/api/start", `{"fid":"42"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "42", d.last(t).identity.FID)

	rec, _ = post(t, h, "/api/start", `{"fid":9007199254740993}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "9007199254740993", d.last(t).identity.FID)

	rec, _ = post(t, h, "/api/start", `{"fid":1.5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// The envelope is optional.
	req := httptest.NewRequest(http.MethodPost, "/api/balance", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, domain.Command("balance", ""), d.last(t).event)
}

func TestOpenAPIDocument(t *testing.T) {
	swagger, err := swaphttp.GetSwagger()
	require.NoError(t, err)
	require.NoError(t, swagger.Validate(context.Background()))

	h := swaphttp.NewHandler(&recordingDispatcher{})
	for path, item := range swagger.Paths.Map() {
		for method := range item.Operations() {
			target := strings.ReplaceAll(path, "{timeframe}", "day")
			req := httptest.NewRequest(method, target, strings.NewReader(`{"command":"help","callback":"help"}`))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code, "%s %s", method, path)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Swapflow Chat API")
}
