package domain

import (
	"math/big"
	"time"
)

// WalletType records how the key material came to exist.
type WalletType string

const (
	WalletGenerated WalletType = "generated"
	WalletImported  WalletType = "imported"
)

// Wallet is a custodial wallet. EncryptedKey never leaves the custody layer.
type Wallet struct {
	UserID       string     `json:"userId"`
	Address      string     `json:"address"`
	Type         WalletType `json:"type"`
	EncryptedKey string     `json:"-"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// User is the persisted identity record.
type User struct {
	ID          string
	FID         string
	Username    string
	DisplayName string
	CreatedAt   time.Time
}

// TokenInfo describes an ERC-20 token or the native token.
type TokenInfo struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals int    `json:"decimals"`
}

// GasParams is the pricing applied to a transaction, in wei.
type GasParams struct {
	Price                *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// QuoteRequest asks the aggregator for a price. Amount is a decimal string
// in the source token's units; GasPrice is in gwei.
type QuoteRequest struct {
	FromToken string
	ToToken   string
	Amount    string
	GasPrice  string
}

// QuoteResult is the aggregator's estimate. OutAmount is in base units.
type QuoteResult struct {
	OutAmount    string
	EstimatedGas string
}

// SwapRequest asks the aggregator for an executable payload.
type SwapRequest struct {
	FromToken string
	ToToken   string
	Amount    string
	GasPrice  string
	Slippage  float64
	Account   string
}

// SwapTx is the aggregator-built transaction.
type SwapTx struct {
	To          string
	Data        string
	Value       string
	GasPrice    string
	PriceImpact string
	InAmount    string
	OutAmount   string
}

// TxRequest is a transaction to sign and submit from a custodial wallet.
type TxRequest struct {
	To    string
	Data  []byte
	Value *big.Int
	Gas   GasParams
	// OnBroadcast is called with the hash once the transaction is sent.
	OnBroadcast func(hash string)
}

// ContractCall invokes a state-changing contract method.
type ContractCall struct {
	Contract string
	ABI      string
	Method   string
	Args     []any
	Gas      GasParams
}

// TxStatus is the outcome of a submitted transaction.
type TxStatus string

const (
	TxSuccess TxStatus = "success"
	TxFailed  TxStatus = "failed"
	TxPending TxStatus = "pending"
)

// Final reports whether the status will not change anymore.
func (s TxStatus) Final() bool {
	return s == TxSuccess || s == TxFailed
}

// Receipt is what the executor knows about a submitted transaction.
type Receipt struct {
	Hash    string
	Status  TxStatus
	GasUsed uint64
}

// TxKind classifies recorded transactions.
type TxKind string

const (
	TxSwap     TxKind = "swap"
	TxTransfer TxKind = "transfer"
	TxApprove  TxKind = "approve"
)

// Transaction is the append-only record of an executed operation, keyed by hash.
type Transaction struct {
	Hash          string    `json:"txHash"`
	UserID        string    `json:"userId"`
	WalletAddress string    `json:"walletAddress"`
	Kind          TxKind    `json:"kind"`
	FromToken     string    `json:"fromToken"`
	ToToken       string    `json:"toToken"`
	FromAmount    string    `json:"fromAmount"`
	ToAmount      string    `json:"toAmount"`
	Status        TxStatus  `json:"status"`
	GasUsed       uint64    `json:"gasUsed"`
	CreatedAt     time.Time `json:"timestamp"`
}

// IntentState tracks an execution from before submission until it is recorded.
type IntentState string

const (
	IntentOpen      IntentState = "open"
	IntentSubmitted IntentState = "submitted"
	IntentRecorded  IntentState = "recorded"
	IntentAbandoned IntentState = "abandoned"
)

// ExecutionIntent is written before a transaction is submitted so that a
// crash between submission and recording can be reconciled later.
type ExecutionIntent struct {
	ID            string
	SessionID     string
	UserID        string
	WalletAddress string
	Kind          TxKind
	FromToken     string
	ToToken       string
	FromAmount    string
	ToAmount      string
	TxHash        string
	State         IntentState
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Transaction builds the record for this intent.
func (i ExecutionIntent) Transaction(r Receipt, now time.Time) Transaction {
	hash := r.Hash
	if hash == "" {
		hash = i.TxHash
	}
	return Transaction{
		Hash:          hash,
		UserID:        i.UserID,
		WalletAddress: i.WalletAddress,
		Kind:          i.Kind,
		FromToken:     i.FromToken,
		ToToken:       i.ToToken,
		FromAmount:    i.FromAmount,
		ToAmount:      i.ToAmount,
		Status:        r.Status,
		GasUsed:       r.GasUsed,
		CreatedAt:     now,
	}
}
