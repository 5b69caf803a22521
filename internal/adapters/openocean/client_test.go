package openocean_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/swapflow/internal/adapters/openocean"
	"github.com/aretw0/swapflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const usdc = "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"

func newClient(url string, retries int) *openocean.Client {
	return openocean.New(
		openocean.Config{BaseURL: url, Chain: "base", Retries: retries, APIKey: "secret"},
		openocean.WithBackoff(func(int) time.Duration { return time.Millisecond }),
	)
}

func TestQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/base/quote", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, domain.NativeToken, q.Get("inTokenAddress"))
		assert.Equal(t, usdc, q.Get("outTokenAddress"))
		assert.Equal(t, "0.01", q.Get("amount"))
		assert.Equal(t, "5", q.Get("gasPrice"))
		assert.Equal(t, "secret", r.Header.Get("apikey"))
		_, _ = w.Write([]byte(`{"code":200,"data":{"outAmount":"25000000","estimatedGas":185000}}`))
	}))
	defer srv.Close()

	res, err := newClient(srv.URL, 0).Quote(context.Background(), domain.QuoteRequest{
		FromToken: domain.NativeToken, ToToken: usdc, Amount: "0.01", GasPrice: "5",
	})
	require.NoError(t, err)
	assert.Equal(t, "25000000", res.OutAmount)
	assert.Equal(t, "185000", res.EstimatedGas)
}

func TestSwap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/base/swap", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "1", q.Get("slippage"))
		assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", q.Get("account"))
		_, _ = w.Write([]byte(`{"code":200,"data":{
			"to":"0x6352a56caadC4F1E25CD6c75970Fa768A3304e64",
			"data":"0x90411a32",
			"value":"10000000000000000",
			"gasPrice":"5000000000",
			"price_impact":"-0.02%",
			"inAmount":"10000000000000000",
			"outAmount":"24950000"}}`))
	}))
	defer srv.Close()

	tx, err := newClient(srv.URL, 0).Swap(context.Background(), domain.SwapRequest{
		FromToken: domain.NativeToken,
		ToToken:   usdc,
		Amount:    "0.01",
		GasPrice:  "5",
		Slippage:  1.0,
		Account:   "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
	})
	require.NoError(t, err)
	assert.Equal(t, "0x6352a56caadC4F1E25CD6c75970Fa768A3304e64", tx.To)
	assert.Equal(t, "0x90411a32", tx.Data)
	assert.Equal(t, "10000000000000000", tx.Value)
	assert.Equal(t, "24950000", tx.OutAmount)
	assert.Equal(t, "-0.02%", tx.PriceImpact)
}

func TestRetries(t *testing.T) {
	t.Run("server errors are retried", func(t *testing.T) {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hits.Add(1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			_, _ = w.Write([]byte(`{"code":200,"data":{"outAmount":"1"}}`))
		}))
		defer srv.Close()

		res, err := newClient(srv.URL, 2).Quote(context.Background(), domain.QuoteRequest{})
		require.NoError(t, err)
		assert.Equal(t, "1", res.OutAmount)
		assert.Equal(t, int32(3), hits.Load())
	})

	t.Run("rate limiting exhausts retries", func(t *testing.T) {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		_, err := newClient(srv.URL, 1).Quote(context.Background(), domain.QuoteRequest{})
		assert.True(t, errors.Is(err, openocean.ErrRateLimited))
		assert.Equal(t, int32(2), hits.Load())
	})

	t.Run("rejections are not retried", func(t *testing.T) {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			_, _ = w.Write([]byte(`{"code":400,"message":"Insufficient liquidity"}`))
		}))
		defer srv.Close()

		_, err := newClient(srv.URL, 3).Quote(context.Background(), domain.QuoteRequest{})
		require.ErrorIs(t, err, openocean.ErrRejected)
		assert.Contains(t, err.Error(), "Insufficient liquidity")
		assert.Equal(t, int32(1), hits.Load())
	})
}

func TestSwap_MissingCalldata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":200,"data":{"to":""}}`))
	}))
	defer srv.Close()

	_, err := newClient(srv.URL, 0).Swap(context.Background(), domain.SwapRequest{})
	assert.ErrorIs(t, err, openocean.ErrRejected)
}
