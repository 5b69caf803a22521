// Package testutils holds in-memory fakes of every port, with call recording
// and failure injection, shared by the service's package tests.
package testutils

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/swapflow/pkg/domain"
	"github.com/aretw0/swapflow/pkg/ports"
)

// Chain is a scripted ports.Chain.
type Chain struct {
	mu sync.Mutex

	native     map[string]*big.Int
	tokens     map[string]domain.TokenInfo
	balances   map[string]*big.Int
	allowances map[string]*big.Int
	receipts   map[string]domain.Receipt
	seq        int

	// ExecuteErr fails ExecuteTransaction. With BroadcastFirst the hash is
	// announced before the failure, as with a receipt timeout after sending.
	ExecuteErr     error
	BroadcastFirst bool
	// ExecuteStatus overrides the returned status (success by default).
	ExecuteStatus domain.TxStatus
	// ExecuteDelay holds every execution, to widen race windows in tests.
	ExecuteDelay time.Duration

	// ApproveGrants makes approve calls raise the allowance.
	ApproveGrants bool
	ApproveErr    error

	BalanceErr error

	Executed []domain.TxRequest
	Calls    []domain.ContractCall
}

var _ ports.Chain = (*Chain)(nil)

func NewChain() *Chain {
	return &Chain{
		native:        make(map[string]*big.Int),
		tokens:        make(map[string]domain.TokenInfo),
		balances:      make(map[string]*big.Int),
		allowances:    make(map[string]*big.Int),
		receipts:      make(map[string]domain.Receipt),
		ApproveGrants: true,
	}
}

func key(parts ...string) string {
	return strings.ToLower(strings.Join(parts, "|"))
}

// SetNative sets the native balance in wei.
func (c *Chain) SetNative(address string, wei string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.native[key(address)] = mustBig(wei)
}

// AddToken registers token metadata.
func (c *Chain) AddToken(info domain.TokenInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[key(info.Address)] = info
}

// SetBalance sets a token balance in base units.
func (c *Chain) SetBalance(token, owner, base string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[key(token, owner)] = mustBig(base)
}

func (c *Chain) SetAllowance(token, owner, spender, base string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.allowances[key(token, owner, spender)] = mustBig(base)
}

// SetReceipt makes a hash known to Receipt.
func (c *Chain) SetReceipt(r domain.Receipt) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.receipts[key(r.Hash)] = r
}

func (c *Chain) ExecutedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Executed)
}

func (c *Chain) NativeBalance(ctx context.Context, address string) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.BalanceErr != nil {
		return nil, c.BalanceErr
	}
	if v, ok := c.native[key(address)]; ok {
		return new(big.Int).Set(v), nil
	}
	return big.NewInt(0), nil
}

func (c *Chain) TokenInfo(ctx context.Context, token string) (domain.TokenInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if info, ok := c.tokens[key(token)]; ok {
		return info, nil
	}
	if info, ok := domain.LookupToken(token); ok {
		return info, nil
	}
	return domain.TokenInfo{}, fmt.Errorf("token %s: %w", token, domain.ErrNotFound)
}

func (c *Chain) TokenBalance(ctx context.Context, token, owner string) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.BalanceErr != nil {
		return nil, c.BalanceErr
	}
	if v, ok := c.balances[key(token, owner)]; ok {
		return new(big.Int).Set(v), nil
	}
	return big.NewInt(0), nil
}

func (c *Chain) TokenAllowance(ctx context.Context, token, owner, spender string) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.allowances[key(token, owner, spender)]; ok {
		return new(big.Int).Set(v), nil
	}
	return big.NewInt(0), nil
}

func (c *Chain) nextHash() string {
	c.seq++
	return fmt.Sprintf("0x%064x", c.seq)
}

func (c *Chain) ExecuteTransaction(ctx context.Context, wallet *domain.Wallet, tx domain.TxRequest) (domain.Receipt, error) {
	if c.ExecuteDelay > 0 {
		time.Sleep(c.ExecuteDelay)
	}
	c.mu.Lock()
	c.Executed = append(c.Executed, tx)
	if c.ExecuteErr != nil && !c.BroadcastFirst {
		err := c.ExecuteErr
		c.mu.Unlock()
		return domain.Receipt{}, err
	}
	hash := c.nextHash()
	status := c.ExecuteStatus
	if status == "" {
		status = domain.TxSuccess
	}
	execErr := c.ExecuteErr
	c.receipts[key(hash)] = domain.Receipt{Hash: hash, Status: status, GasUsed: 21000}
	c.mu.Unlock()

	if tx.OnBroadcast != nil {
		tx.OnBroadcast(hash)
	}
	if execErr != nil {
		return domain.Receipt{Hash: hash}, execErr
	}
	return domain.Receipt{Hash: hash, Status: status, GasUsed: 21000}, nil
}

func (c *Chain) ExecuteContractMethod(ctx context.Context, wallet *domain.Wallet, call domain.ContractCall) (domain.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = append(c.Calls, call)
	if c.ApproveErr != nil {
		return domain.Receipt{}, c.ApproveErr
	}
	if call.Method == "approve" && c.ApproveGrants && len(call.Args) == 2 {
		spender, _ := call.Args[0].(string)
		amount, _ := call.Args[1].(*big.Int)
		if amount != nil {
			c.allowances[key(call.Contract, wallet.Address, spender)] = new(big.Int).Set(amount)
		}
	}
	return domain.Receipt{Hash: c.nextHash(), Status: domain.TxSuccess, GasUsed: 46000}, nil
}

func (c *Chain) Receipt(ctx context.Context, hash string) (domain.Receipt, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.receipts[key(hash)]
	return r, ok, nil
}

func mustBig(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic(fmt.Sprintf("testutils: bad integer %q", s))
	}
	return v
}
