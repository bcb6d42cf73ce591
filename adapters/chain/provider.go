package chain

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/layer-3/garant/core"
	"github.com/layer-3/garant/ports"
	"golang.org/x/sync/singleflight"
)

// Dialer opens a client for an RPC endpoint
type Dialer func(ctx context.Context, rpcURL string) (ports.ChainClient, error)

// DialEthClient dials a JSON-RPC endpoint with go-ethereum's ethclient
func DialEthClient(ctx context.Context, rpcURL string) (ports.ChainClient, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Provider lazily dials and memoizes one client per configured chain
type Provider struct {
	endpoints map[int64]string
	dial      Dialer

	mu      sync.Mutex
	clients map[int64]ports.ChainClient
	dialing singleflight.Group
}

// NewProvider creates a provider for the given chain id -> RPC URL map.
// A nil dial uses DialEthClient.
func NewProvider(endpoints map[int64]string, dial Dialer) *Provider {
	if dial == nil {
		dial = DialEthClient
	}
	copied := make(map[int64]string, len(endpoints))
	for id, url := range endpoints {
		if url != "" {
			copied[id] = url
		}
	}
	return &Provider{
		endpoints: copied,
		dial:      dial,
		clients:   make(map[int64]ports.ChainClient),
	}
}

var _ ports.ChainProvider = (*Provider)(nil)

// Client returns the client for chainID, dialing it on first use.
// A slow dial only delays callers of the same chain.
func (p *Provider) Client(ctx context.Context, chainID int64) (ports.ChainClient, error) {
	if client, ok := p.cached(chainID); ok {
		return client, nil
	}

	rpcURL, ok := p.endpoints[chainID]
	if !ok {
		return nil, core.ErrChainNotConfigured
	}

	v, err, _ := p.dialing.Do(strconv.FormatInt(chainID, 10), func() (any, error) {
		// a dial that finished since the cache check already stored its client
		if client, ok := p.cached(chainID); ok {
			return client, nil
		}

		client, err := p.dial(context.WithoutCancel(ctx), rpcURL)
		if err != nil {
			return nil, core.NewContractCallError("dial", fmt.Errorf("chain %d: %w", chainID, err))
		}

		p.mu.Lock()
		p.clients[chainID] = client
		p.mu.Unlock()
		return client, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(ports.ChainClient), nil
}

func (p *Provider) cached(chainID int64) (ports.ChainClient, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	client, ok := p.clients[chainID]
	return client, ok
}

// Chains returns the configured chain ids
func (p *Provider) Chains() []int64 {
	ids := make([]int64, 0, len(p.endpoints))
	for id := range p.endpoints {
		ids = append(ids, id)
	}
	return ids
}

// Close releases every dialed client
func (p *Provider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, client := range p.clients {
		if closer, ok := client.(interface{ Close() }); ok {
			closer.Close()
		}
		delete(p.clients, id)
	}
}
