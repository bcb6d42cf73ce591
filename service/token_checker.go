package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/garant/core"
	"github.com/layer-3/garant/observability"
	"github.com/layer-3/garant/ports"
)

// balanceResolver answers the ownership predicate for one token standard
type balanceResolver interface {
	resolve(ctx context.Context, client ports.ChainClient, req core.AccessRequest) (core.Holding, error)
}

// TokenChecker resolves access requests against a chain client
type TokenChecker struct {
	resolvers map[core.Standard]balanceResolver
	native    balanceResolver
}

// NewTokenChecker creates a checker for erc20, erc721 and erc1155
func NewTokenChecker() *TokenChecker {
	return &TokenChecker{
		resolvers: map[core.Standard]balanceResolver{
			core.StandardERC20:   erc20Resolver{},
			core.StandardERC721:  erc721Resolver{},
			core.StandardERC1155: erc1155Resolver{},
		},
		native: nativeResolver{},
	}
}

// Check evaluates req. Chain failures are returned as *core.ContractCallError.
func (c *TokenChecker) Check(ctx context.Context, client ports.ChainClient, req core.AccessRequest) (core.Holding, error) {
	resolver, ok := c.resolvers[req.Standard]
	if !ok {
		return core.Holding{}, fmt.Errorf("%w: %q", core.ErrUnsupportedStandard, req.Standard)
	}
	if req.Standard == core.StandardERC1155 && req.TokenID == nil {
		return core.Holding{}, core.ErrTokenIDRequired
	}

	if req.Contract == core.NativeAsset {
		resolver = c.native
	}

	holding, err := resolver.resolve(ctx, client, req)
	if err != nil {
		var callErr *core.ContractCallError
		if !errors.As(err, &callErr) {
			callErr = core.NewContractCallError("query", err)
		}
		return core.Holding{OK: false, Balance: new(big.Int)}, callErr
	}

	return holding, nil
}

type nativeResolver struct{}

func (nativeResolver) resolve(ctx context.Context, client ports.ChainClient, req core.AccessRequest) (core.Holding, error) {
	start := time.Now()
	balance, err := client.BalanceAt(ctx, req.Address, nil)
	observability.ChainQueryDuration.WithLabelValues("getBalance").Observe(time.Since(start).Seconds())
	if err != nil {
		return core.Holding{}, core.NewContractCallError("getBalance", err)
	}

	return atLeast(balance, req.Threshold()), nil
}

type erc20Resolver struct{}

func (erc20Resolver) resolve(ctx context.Context, client ports.ChainClient, req core.AccessRequest) (core.Holding, error) {
	balance, err := callUint(ctx, client, erc20ABI, req.Contract, "balanceOf", req.Address)
	if err != nil {
		return core.Holding{}, err
	}

	return atLeast(balance, req.Threshold()), nil
}

type erc721Resolver struct{}

func (erc721Resolver) resolve(ctx context.Context, client ports.ChainClient, req core.AccessRequest) (core.Holding, error) {
	if req.TokenID == nil {
		count, err := callUint(ctx, client, erc721ABI, req.Contract, "balanceOf", req.Address)
		if err != nil {
			return core.Holding{}, err
		}
		return atLeast(count, req.Threshold()), nil
	}

	out, err := call(ctx, client, erc721ABI, req.Contract, "ownerOf", req.TokenID)
	if err != nil {
		return core.Holding{}, err
	}
	owner, ok := out[0].(common.Address)
	if !ok {
		return core.Holding{}, core.NewContractCallError("ownerOf", fmt.Errorf("unexpected return type %T", out[0]))
	}

	// ownership of a single item, not a count
	if owner == req.Address {
		return core.Holding{OK: true, Balance: big.NewInt(1)}, nil
	}
	return core.Holding{OK: false, Balance: new(big.Int)}, nil
}

type erc1155Resolver struct{}

func (erc1155Resolver) resolve(ctx context.Context, client ports.ChainClient, req core.AccessRequest) (core.Holding, error) {
	balance, err := callUint(ctx, client, erc1155ABI, req.Contract, "balanceOf", req.Address, req.TokenID)
	if err != nil {
		return core.Holding{}, err
	}

	return atLeast(balance, req.Threshold()), nil
}

func atLeast(balance, threshold *big.Int) core.Holding {
	return core.Holding{
		OK:      balance.Cmp(threshold) >= 0,
		Balance: balance,
	}
}

// call packs a read-only contract call, executes it at the latest block and unpacks the result
func call(ctx context.Context, client ports.ChainClient, contractABI abi.ABI, contract common.Address, method string, args ...any) ([]any, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, core.NewContractCallError(method, err)
	}

	start := time.Now()
	raw, err := client.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	observability.ChainQueryDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, core.NewContractCallError(method, err)
	}

	out, err := contractABI.Unpack(method, raw)
	if err != nil {
		return nil, core.NewContractCallError(method, err)
	}
	if len(out) == 0 {
		return nil, core.NewContractCallError(method, errors.New("empty result"))
	}

	return out, nil
}

func callUint(ctx context.Context, client ports.ChainClient, contractABI abi.ABI, contract common.Address, method string, args ...any) (*big.Int, error) {
	out, err := call(ctx, client, contractABI, contract, method, args...)
	if err != nil {
		return nil, err
	}

	value, ok := out[0].(*big.Int)
	if !ok {
		return nil, core.NewContractCallError(method, fmt.Errorf("unexpected return type %T", out[0]))
	}
	return value, nil
}
