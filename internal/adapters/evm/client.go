// Package evm reads chain state and executes transactions from custodial
// wallets over JSON-RPC.
package evm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/swapflow/internal/logging"
	"github.com/aretw0/swapflow/pkg/domain"
	"github.com/aretw0/swapflow/pkg/ports"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

const (
	DefaultReceiptTimeout = 2 * time.Minute
	DefaultPollInterval   = 2 * time.Second
	gasMultiplier         = 1.2
)

// Backend is the subset of ethclient.Client the adapter needs.
type Backend interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Client implements ports.Chain.
type Client struct {
	backend Backend
	keys    ports.KeySource
	chainID *big.Int

	receiptTimeout time.Duration
	pollInterval   time.Duration
	logger         *slog.Logger
	closer         func()

	tokens sync.Map // lowercase address -> domain.TokenInfo
}

var _ ports.Chain = (*Client)(nil)

// Option configures the Client.
type Option func(*Client)

// WithReceiptWait bounds how long a submitted transaction is polled for.
func WithReceiptWait(timeout, interval time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.receiptTimeout = timeout
		}
		if interval > 0 {
			c.pollInterval = interval
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New wraps a backend for the given chain.
func New(backend Backend, keys ports.KeySource, chainID int64, opts ...Option) *Client {
	c := &Client{
		backend:        backend,
		keys:           keys,
		chainID:        big.NewInt(chainID),
		receiptTimeout: DefaultReceiptTimeout,
		pollInterval:   DefaultPollInterval,
		logger:         logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dial connects to rpcURL and checks that the node serves chainID.
func Dial(ctx context.Context, rpcURL string, keys ports.KeySource, chainID int64, opts ...Option) (*Client, error) {
	rpc, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}
	got, err := rpc.ChainID(ctx)
	if err != nil {
		rpc.Close()
		return nil, fmt.Errorf("read chain id: %w", err)
	}
	if got.Int64() != chainID {
		rpc.Close()
		return nil, fmt.Errorf("rpc serves chain %d, expected %d", got.Int64(), chainID)
	}
	c := New(rpc, keys, chainID, opts...)
	c.closer = rpc.Close
	return c, nil
}

// Close releases the RPC connection when the client dialed it.
func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
	}
}

func (c *Client) NativeBalance(ctx context.Context, address string) (*big.Int, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid address %q", address)
	}
	return c.backend.BalanceAt(ctx, common.HexToAddress(address), nil)
}

// TokenInfo reads and caches the token metadata. The native token is answered locally.
func (c *Client) TokenInfo(ctx context.Context, token string) (domain.TokenInfo, error) {
	if domain.IsNative(token) {
		return domain.NativeTokenInfo(), nil
	}
	if !common.IsHexAddress(token) {
		return domain.TokenInfo{}, fmt.Errorf("invalid token address %q", token)
	}
	key := strings.ToLower(token)
	if cached, ok := c.tokens.Load(key); ok {
		return cached.(domain.TokenInfo), nil
	}

	addr := common.HexToAddress(token)
	symbol, err := callString(ctx, c.backend, addr, "symbol")
	if err != nil {
		return domain.TokenInfo{}, err
	}
	name, err := callString(ctx, c.backend, addr, "name")
	if err != nil {
		name = symbol
	}
	out, err := call(ctx, c.backend, addr, "decimals")
	if err != nil {
		return domain.TokenInfo{}, err
	}
	decimals, ok := out[0].(uint8)
	if !ok {
		return domain.TokenInfo{}, fmt.Errorf("unexpected decimals type %T", out[0])
	}
	info := domain.TokenInfo{Address: addr.Hex(), Symbol: symbol, Name: name, Decimals: int(decimals)}
	c.tokens.Store(key, info)
	return info, nil
}

func (c *Client) TokenBalance(ctx context.Context, token, owner string) (*big.Int, error) {
	if domain.IsNative(token) {
		return c.NativeBalance(ctx, owner)
	}
	return callUint(ctx, c.backend, common.HexToAddress(token), "balanceOf", common.HexToAddress(owner))
}

func (c *Client) TokenAllowance(ctx context.Context, token, owner, spender string) (*big.Int, error) {
	return callUint(ctx, c.backend, common.HexToAddress(token), "allowance",
		common.HexToAddress(owner), common.HexToAddress(spender))
}

// ExecuteTransaction signs, submits and waits for tx. Failures before the
// broadcast return an empty receipt; a receipt that does not arrive within
// the wait comes back as pending with no error.
func (c *Client) ExecuteTransaction(ctx context.Context, wallet *domain.Wallet, tx domain.TxRequest) (domain.Receipt, error) {
	keyHex, err := c.keys.PrivateKey(ctx, wallet)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("load signing key: %w", err)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(keyHex, "0x"))
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("parse signing key: %w", err)
	}
	from := crypto.PubkeyToAddress(key.PublicKey)
	if !strings.EqualFold(from.Hex(), wallet.Address) {
		return domain.Receipt{}, fmt.Errorf("signing key does not match wallet %s", wallet.Address)
	}
	if !common.IsHexAddress(tx.To) {
		return domain.Receipt{}, fmt.Errorf("invalid destination %q", tx.To)
	}
	to := common.HexToAddress(tx.To)
	value := tx.Value
	if value == nil {
		value = new(big.Int)
	}

	msg := ethereum.CallMsg{From: from, To: &to, Value: value, Data: tx.Data}
	gasLimit, err := c.backend.EstimateGas(ctx, msg)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("estimate gas: %w", err)
	}
	gasLimit = uint64(float64(gasLimit) * gasMultiplier)

	nonce, err := c.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("fetch nonce: %w", err)
	}

	tipCap, feeCap := feeCaps(tx.Gas)
	signed, err := types.SignTx(types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gasLimit,
		To:        &to,
		Value:     value,
		Data:      tx.Data,
	}), types.LatestSignerForChainID(c.chainID), key)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("sign transaction: %w", err)
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return domain.Receipt{}, fmt.Errorf("broadcast transaction: %w", err)
	}

	hash := signed.Hash().Hex()
	c.logger.Info("Transaction broadcast", "tx_hash", hash, "from", from.Hex(), "nonce", nonce)
	if tx.OnBroadcast != nil {
		tx.OnBroadcast(hash)
	}
	return c.wait(ctx, signed.Hash()), nil
}

// ExecuteContractMethod packs the call against the given ABI and executes it.
// String arguments that look like addresses are passed as addresses.
func (c *Client) ExecuteContractMethod(ctx context.Context, wallet *domain.Wallet, call domain.ContractCall) (domain.Receipt, error) {
	parsed, err := abi.JSON(strings.NewReader(call.ABI))
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("parse abi: %w", err)
	}
	args := make([]any, len(call.Args))
	for i, a := range call.Args {
		if s, ok := a.(string); ok && common.IsHexAddress(s) {
			args[i] = common.HexToAddress(s)
			continue
		}
		args[i] = a
	}
	data, err := parsed.Pack(call.Method, args...)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("pack %s: %w", call.Method, err)
	}
	return c.ExecuteTransaction(ctx, wallet, domain.TxRequest{
		To:   call.Contract,
		Data: data,
		Gas:  call.Gas,
	})
}

func (c *Client) Receipt(ctx context.Context, hash string) (domain.Receipt, bool, error) {
	r, err := c.backend.TransactionReceipt(ctx, common.HexToHash(hash))
	if errors.Is(err, ethereum.NotFound) {
		return domain.Receipt{Hash: hash, Status: domain.TxPending}, false, nil
	}
	if err != nil {
		return domain.Receipt{}, false, err
	}
	return toReceipt(r), true, nil
}

func (c *Client) wait(ctx context.Context, hash common.Hash) domain.Receipt {
	waitCtx, cancel := context.WithTimeout(ctx, c.receiptTimeout)
	defer cancel()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		r, err := c.backend.TransactionReceipt(waitCtx, hash)
		if err == nil && r != nil {
			return toReceipt(r)
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			c.logger.Debug("Receipt poll failed", "tx_hash", hash.Hex(), "err", err)
		}
		select {
		case <-waitCtx.Done():
			c.logger.Warn("Receipt not available yet", "tx_hash", hash.Hex())
			return domain.Receipt{Hash: hash.Hex(), Status: domain.TxPending}
		case <-ticker.C:
		}
	}
}

func toReceipt(r *types.Receipt) domain.Receipt {
	status := domain.TxFailed
	if r.Status == types.ReceiptStatusSuccessful {
		status = domain.TxSuccess
	}
	return domain.Receipt{Hash: r.TxHash.Hex(), Status: status, GasUsed: r.GasUsed}
}

func feeCaps(g domain.GasParams) (tip, fee *big.Int) {
	tip = g.MaxPriorityFeePerGas
	if tip == nil {
		tip = big.NewInt(100_000_000)
	}
	fee = g.MaxFeePerGas
	if fee == nil {
		price := g.Price
		if price == nil {
			price = big.NewInt(1_000_000_000)
		}
		fee = new(big.Int).Mul(price, big.NewInt(2))
		fee.Add(fee, tip)
	}
	if fee.Cmp(tip) < 0 {
		fee = new(big.Int).Set(tip)
	}
	return tip, fee
}

func call(ctx context.Context, b Backend, contract common.Address, method string, args ...any) ([]any, error) {
	data, err := erc20.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	raw, err := b.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	out, err := erc20.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("call %s: empty result", method)
	}
	return out, nil
}

func callUint(ctx context.Context, b Backend, contract common.Address, method string, args ...any) (*big.Int, error) {
	out, err := call(ctx, b, contract, method, args...)
	if err != nil {
		return nil, err
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected %s result %T", method, out[0])
	}
	return v, nil
}

func callString(ctx context.Context, b Backend, contract common.Address, method string) (string, error) {
	out, err := call(ctx, b, contract, method)
	if err != nil {
		return "", err
	}
	s, ok := out[0].(string)
	if !ok {
		return "", fmt.Errorf("unexpected %s result %T", method, out[0])
	}
	return s, nil
}
