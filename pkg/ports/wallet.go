package ports

import (
	"context"
	"math/big"

	"github.com/aretw0/swapflow/pkg/domain"
)

// WalletProvider owns custodial key material.
type WalletProvider interface {
	// Wallet returns domain.ErrWalletNotFound when the user has none.
	Wallet(ctx context.Context, userID string) (*domain.Wallet, error)
	GenerateWallet(ctx context.Context, userID string) (*domain.Wallet, error)
	ImportWallet(ctx context.Context, userID, privateKeyHex string) (*domain.Wallet, error)
	PrivateKey(ctx context.Context, wallet *domain.Wallet) (string, error)
}

// KeySource hands signing material to the chain executor.
type KeySource interface {
	PrivateKey(ctx context.Context, wallet *domain.Wallet) (string, error)
}

// Chain reads chain state and executes transactions from custodial wallets.
type Chain interface {
	NativeBalance(ctx context.Context, address string) (*big.Int, error)
	TokenInfo(ctx context.Context, token string) (domain.TokenInfo, error)
	TokenBalance(ctx context.Context, token, owner string) (*big.Int, error)
	TokenAllowance(ctx context.Context, token, owner, spender string) (*big.Int, error)

	// ExecuteTransaction signs, submits and waits for the transaction.
	// A receipt that did not arrive in time is reported with status pending.
	ExecuteTransaction(ctx context.Context, wallet *domain.Wallet, tx domain.TxRequest) (domain.Receipt, error)
	ExecuteContractMethod(ctx context.Context, wallet *domain.Wallet, call domain.ContractCall) (domain.Receipt, error)

	// Receipt looks up a transaction outcome. found is false while unknown to the node.
	Receipt(ctx context.Context, hash string) (receipt domain.Receipt, found bool, err error)
}

// SwapAggregator prices and builds swaps.
type SwapAggregator interface {
	Quote(ctx context.Context, req domain.QuoteRequest) (domain.QuoteResult, error)
	Swap(ctx context.Context, req domain.SwapRequest) (domain.SwapTx, error)
}
