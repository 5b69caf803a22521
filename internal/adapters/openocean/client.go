// Package openocean prices and builds swaps through the OpenOcean aggregator API.
package openocean

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/swapflow/internal/logging"
	"github.com/aretw0/swapflow/pkg/domain"
	"github.com/aretw0/swapflow/pkg/ports"
)

const (
	DefaultBaseURL = "https://open-api.openocean.finance/v4"
	DefaultChain   = "base"
	userAgent      = "swapflow/1.0"
)

var (
	// ErrRateLimited is returned when the API keeps answering 429.
	ErrRateLimited = errors.New("aggregator rate limited request")
	// ErrUnavailable covers network failures and 5xx answers.
	ErrUnavailable = errors.New("aggregator unavailable")
	// ErrRejected is returned when the API answers with a non-200 code.
	ErrRejected = errors.New("aggregator rejected request")
)

// Config holds the client settings.
type Config struct {
	BaseURL string
	Chain   string
	APIKey  string
	Timeout time.Duration
	Retries int
}

// Client implements ports.SwapAggregator.
type Client struct {
	http    *http.Client
	baseURL string
	chain   string
	apiKey  string
	retries int
	logger  *slog.Logger
	backoff func(attempt int) time.Duration
}

var _ ports.SwapAggregator = (*Client)(nil)

// Option configures the Client.
type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithHTTPClient replaces the transport, mostly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithBackoff overrides the delay before each retry.
func WithBackoff(fn func(attempt int) time.Duration) Option {
	return func(c *Client) { c.backoff = fn }
}

func New(cfg Config, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Chain == "" {
		cfg.Chain = DefaultChain
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	c := &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		chain:   cfg.Chain,
		apiKey:  cfg.APIKey,
		retries: cfg.Retries,
		logger:  logging.NewNop(),
		backoff: backoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// numberish decodes a JSON string or number into its decimal text.
type numberish string

func (n *numberish) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*n = numberish(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return err
	}
	*n = numberish(num.String())
	return nil
}

type envelope[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error"`
	Data    T      `json:"data"`
}

type quoteData struct {
	OutAmount    numberish `json:"outAmount"`
	EstimatedGas numberish `json:"estimatedGas"`
}

type swapData struct {
	To          string    `json:"to"`
	Data        string    `json:"data"`
	Value       numberish `json:"value"`
	GasPrice    numberish `json:"gasPrice"`
	PriceImpact numberish `json:"price_impact"`
	InAmount    numberish `json:"inAmount"`
	OutAmount   numberish `json:"outAmount"`
}

func (c *Client) Quote(ctx context.Context, req domain.QuoteRequest) (domain.QuoteResult, error) {
	q := url.Values{}
	q.Set("inTokenAddress", req.FromToken)
	q.Set("outTokenAddress", req.ToToken)
	q.Set("amount", req.Amount)
	q.Set("gasPrice", req.GasPrice)

	var out envelope[quoteData]
	if err := c.get(ctx, "quote", q, &out); err != nil {
		return domain.QuoteResult{}, err
	}
	if out.Data.OutAmount == "" {
		return domain.QuoteResult{}, fmt.Errorf("%w: quote without outAmount", ErrRejected)
	}
	return domain.QuoteResult{
		OutAmount:    string(out.Data.OutAmount),
		EstimatedGas: string(out.Data.EstimatedGas),
	}, nil
}

func (c *Client) Swap(ctx context.Context, req domain.SwapRequest) (domain.SwapTx, error) {
	q := url.Values{}
	q.Set("inTokenAddress", req.FromToken)
	q.Set("outTokenAddress", req.ToToken)
	q.Set("amount", req.Amount)
	q.Set("gasPrice", req.GasPrice)
	q.Set("slippage", strconv.FormatFloat(req.Slippage, 'f', -1, 64))
	q.Set("account", req.Account)

	var out envelope[swapData]
	if err := c.get(ctx, "swap", q, &out); err != nil {
		return domain.SwapTx{}, err
	}
	if out.Data.To == "" || out.Data.Data == "" {
		return domain.SwapTx{}, fmt.Errorf("%w: swap without calldata", ErrRejected)
	}
	return domain.SwapTx{
		To:          out.Data.To,
		Data:        out.Data.Data,
		Value:       string(out.Data.Value),
		GasPrice:    string(out.Data.GasPrice),
		PriceImpact: string(out.Data.PriceImpact),
		InAmount:    string(out.Data.InAmount),
		OutAmount:   string(out.Data.OutAmount),
	}, nil
}

// codeOf lets get inspect the envelope without knowing its payload type.
type codeOf interface{ status() (int, string) }

func (e *envelope[T]) status() (int, string) {
	msg := e.Message
	if msg == "" {
		msg = e.Error
	}
	return e.Code, msg
}

func (c *Client) get(ctx context.Context, op string, q url.Values, out codeOf) error {
	endpoint := fmt.Sprintf("%s/%s/%s?%s", c.baseURL, c.chain, op, q.Encode())

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
			case <-time.After(c.backoff(attempt)):
			}
		}

		retry, err := c.do(ctx, endpoint, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry {
			break
		}
		c.logger.Warn("Aggregator request failed", "op", op, "attempt", attempt+1, "err", err)
	}
	return lastErr
}

func (c *Client) do(ctx context.Context, endpoint string, out codeOf) (retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return ctx.Err() == nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	buf, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return true, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return true, ErrRateLimited
	case resp.StatusCode >= http.StatusInternalServerError:
		return true, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return false, fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	}

	if len(bytes.TrimSpace(buf)) == 0 {
		return true, fmt.Errorf("%w: empty response", ErrUnavailable)
	}
	if err := json.Unmarshal(buf, out); err != nil {
		return false, fmt.Errorf("%w: decode response: %v", ErrRejected, err)
	}
	if code, msg := out.status(); code != http.StatusOK {
		return false, fmt.Errorf("%w: code %d: %s", ErrRejected, code, msg)
	}
	return false, nil
}

func backoff(attempt int) time.Duration {
	base := 150 * time.Millisecond
	d := base * time.Duration(1<<uint(attempt-1))
	if d > 2*time.Second {
		d = 2 * time.Second
	}
	return d + time.Duration(rand.Intn(75))*time.Millisecond
}
