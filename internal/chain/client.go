// Package chain wraps the remote EVM node behind the two narrow surfaces the
// core consumes: a read-only chain view for state hydration and gas price
// queries, and the execution primitive that answers simulated calls against
// an overlay state view.
package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/ethclient/gethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/zjesko/hyperarb/internal/domain"
)

// Client is a read-only handle to the remote node. It holds no mutable chain
// state of its own and is safe to share by reference across tasks.
type Client struct {
	rpc  *rpc.Client
	eth  *ethclient.Client
	geth *gethclient.Client
}

// Dial connects to the node at rawurl.
func Dial(ctx context.Context, rawurl string) (*Client, error) {
	rc, err := rpc.DialContext(ctx, rawurl)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", rawurl, err)
	}
	return &Client{
		rpc:  rc,
		eth:  ethclient.NewClient(rc),
		geth: gethclient.New(rc),
	}, nil
}

// Close tears down the underlying RPC connection.
func (c *Client) Close() {
	c.rpc.Close()
}

// StorageAt reads one storage word at the latest block.
func (c *Client) StorageAt(ctx context.Context, addr common.Address, slot common.Hash) (common.Hash, error) {
	b, err := c.eth.StorageAt(ctx, addr, slot, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("chain: storage %s[%s]: %w: %v", addr, slot, domain.ErrHydration, err)
	}
	return common.BytesToHash(b), nil
}

// BalanceAt reads the native balance of addr at the latest block.
func (c *Client) BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error) {
	b, err := c.eth.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: balance %s: %w: %v", addr, domain.ErrHydration, err)
	}
	return b, nil
}

// NonceAt reads the nonce of addr at the latest block.
func (c *Client) NonceAt(ctx context.Context, addr common.Address) (uint64, error) {
	n, err := c.eth.NonceAt(ctx, addr, nil)
	if err != nil {
		return 0, fmt.Errorf("chain: nonce %s: %w: %v", addr, domain.ErrHydration, err)
	}
	return n, nil
}

// CodeAt reads the bytecode of addr at the latest block.
func (c *Client) CodeAt(ctx context.Context, addr common.Address) ([]byte, error) {
	code, err := c.eth.CodeAt(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: code %s: %w: %v", addr, domain.ErrHydration, err)
	}
	return code, nil
}

// GasPrice returns the node's suggested gas price in wei. Failures wrap
// domain.ErrUpstreamQuery: the arbitrage engine aborts the current evaluation
// and retries on the next channel change.
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	p, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain: gas price: %w: %v", domain.ErrUpstreamQuery, err)
	}
	return p, nil
}
