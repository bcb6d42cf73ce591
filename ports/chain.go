package ports

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// ChainClient is the read-only surface of an RPC client needed for access checks.
// *ethclient.Client satisfies it.
type ChainClient interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ChainProvider hands out clients per chain id.
// Client returns core.ErrChainNotConfigured when no RPC endpoint is known.
type ChainProvider interface {
	Client(ctx context.Context, chainID int64) (ChainClient, error)
}
