package service

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dropbox/godropbox/time2"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/garant/adapters/store"
	"github.com/layer-3/garant/core"
	"github.com/layer-3/garant/ports"
	"github.com/stretchr/testify/require"
)

const (
	testDomain = "example.test"
	testURI    = "https://example.test/login"
)

type testEnv struct {
	clock    *time2.MockClock
	store    *store.MemoryStore
	nonces   *NonceRegistry
	verifier *Verifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clock := time2.NewMockClock(time.Now())
	s := store.NewMemoryStore(testContext(t), clock)
	nonces := NewNonceRegistry(s, clock, DefaultNonceTTL)
	verifier := NewVerifier(nonces, clock, VerifierConfig{
		Domain:        testDomain,
		URI:           testURI,
		AllowedChains: []int64{1, 8453},
	})

	return &testEnv{
		clock:    clock,
		store:    s,
		nonces:   nonces,
		verifier: verifier,
	}
}

type wallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func newWallet(t *testing.T) wallet {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return wallet{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

// sign produces a personal_sign style signature with v in {27, 28}
func (w wallet) sign(t *testing.T, message string) string {
	t.Helper()

	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), w.key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig)
}

func (e *testEnv) message(w wallet, nonce string, opts ...func(*core.AuthMessage)) string {
	msg := core.AuthMessage{
		Domain:    testDomain,
		Address:   w.address.Hex(),
		Statement: "Sign in with Ethereum to Garant",
		URI:       testURI,
		Version:   "1",
		ChainID:   1,
		Nonce:     nonce,
		IssuedAt:  e.clock.Now(),
	}
	for _, opt := range opts {
		opt(&msg)
	}
	return FormatAuthMessage(msg)
}

// failingStore fails every write
type failingStore struct {
	ports.Store
}

func (failingStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return errors.New("store unavailable")
}

// fakeChain answers contract calls by decoding calldata with the same ABIs the checker uses
type fakeChain struct {
	mu       sync.Mutex
	native   map[common.Address]*big.Int
	balances map[common.Address]map[common.Address]*big.Int
	owners   map[common.Address]map[string]common.Address
	items    map[common.Address]map[common.Address]map[string]*big.Int
	abis     map[common.Address]abi.ABI
	err      error
	gate     chan struct{}

	calls atomic.Int32
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		native:   make(map[common.Address]*big.Int),
		balances: make(map[common.Address]map[common.Address]*big.Int),
		owners:   make(map[common.Address]map[string]common.Address),
		items:    make(map[common.Address]map[common.Address]map[string]*big.Int),
		abis:     make(map[common.Address]abi.ABI),
	}
}

func (f *fakeChain) setNative(account common.Address, balance *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.native[account] = balance
}

func (f *fakeChain) setBalance(contract common.Address, contractABI abi.ABI, account common.Address, balance *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.abis[contract] = contractABI
	if f.balances[contract] == nil {
		f.balances[contract] = make(map[common.Address]*big.Int)
	}
	f.balances[contract][account] = balance
}

func (f *fakeChain) setOwner(contract common.Address, tokenID int64, owner common.Address) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.abis[contract] = erc721ABI
	if f.owners[contract] == nil {
		f.owners[contract] = make(map[string]common.Address)
	}
	f.owners[contract][big.NewInt(tokenID).String()] = owner
}

func (f *fakeChain) setItem(contract, account common.Address, tokenID int64, balance *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.abis[contract] = erc1155ABI
	if f.items[contract] == nil {
		f.items[contract] = make(map[common.Address]map[string]*big.Int)
	}
	if f.items[contract][account] == nil {
		f.items[contract][account] = make(map[string]*big.Int)
	}
	f.items[contract][account][big.NewInt(tokenID).String()] = balance
}

func (f *fakeChain) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// hold makes every query wait until release is called or the query ctx is done
func (f *fakeChain) hold() (release func()) {
	gate := make(chan struct{})
	f.mu.Lock()
	f.gate = gate
	f.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (f *fakeChain) wait(ctx context.Context) error {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()

	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeChain) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	f.calls.Add(1)
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	if balance, ok := f.native[account]; ok {
		return balance, nil
	}
	return new(big.Int), nil
}

func (f *fakeChain) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.calls.Add(1)
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	contractABI, ok := f.abis[*call.To]
	if !ok {
		// no code at the address
		return nil, nil
	}

	method, err := contractABI.MethodById(call.Data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(call.Data[4:])
	if err != nil {
		return nil, err
	}

	switch {
	case method.Name == "ownerOf":
		owner, ok := f.owners[*call.To][args[0].(*big.Int).String()]
		if !ok {
			return nil, errors.New("execution reverted: ERC721: invalid token ID")
		}
		return method.Outputs.Pack(owner)
	case method.Name == "balanceOf" && len(args) == 2:
		balance := f.items[*call.To][args[0].(common.Address)][args[1].(*big.Int).String()]
		if balance == nil {
			balance = new(big.Int)
		}
		return method.Outputs.Pack(balance)
	case method.Name == "balanceOf":
		balance := f.balances[*call.To][args[0].(common.Address)]
		if balance == nil {
			balance = new(big.Int)
		}
		return method.Outputs.Pack(balance)
	}

	return nil, fmt.Errorf("unexpected method %s", method.Name)
}

type fakeProvider map[int64]ports.ChainClient

func (p fakeProvider) Client(ctx context.Context, chainID int64) (ports.ChainClient, error) {
	client, ok := p[chainID]
	if !ok {
		return nil, core.ErrChainNotConfigured
	}
	return client, nil
}
