package chain

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Network identifies one EVM network the gateway can read from and settle on.
type Network struct {
	RPCURL  string
	ChainID int64
}

// Pool holds one lazily-dialed RPC client per configured network. It is
// process-wide: handlers share it instead of dialing per request, and main
// closes it on shutdown.
type Pool struct {
	networks map[string]Network

	mu      sync.Mutex
	clients map[string]*ethclient.Client
}

func NewPool(networks map[string]Network) *Pool {
	return &Pool{
		networks: networks,
		clients:  make(map[string]*ethclient.Client),
	}
}

// ErrUnknownNetwork is returned for networks absent from the configuration.
var ErrUnknownNetwork = fmt.Errorf("unknown network")

// Client returns the shared client for a network, dialing on first use.
func (p *Pool) Client(ctx context.Context, network string) (*ethclient.Client, int64, error) {
	net, ok := p.networks[network]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", ErrUnknownNetwork, network)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[network]; ok {
		return c, net.ChainID, nil
	}
	rpcClient, err := rpc.DialContext(ctx, net.RPCURL)
	if err != nil {
		return nil, 0, fmt.Errorf("dial %s: %w", network, err)
	}
	c := ethclient.NewClient(rpcClient)
	p.clients[network] = c
	return c, net.ChainID, nil
}

// Networks lists the configured network names.
func (p *Pool) Networks() []string {
	names := make([]string, 0, len(p.networks))
	for name := range p.networks {
		names = append(names, name)
	}
	return names
}

// Close closes every dialed client.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for name, c := range p.clients {
		c.Close()
		delete(p.clients, name)
	}
}
