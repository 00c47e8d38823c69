package chain

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient/gethclient"

	"github.com/zjesko/hyperarb/internal/domain"
	"github.com/zjesko/hyperarb/internal/evmstate"
)

// CallExecutor answers simulated calls via eth_call with the overlay cache
// materialized as a state-override set, so the call observes exactly the
// cache's view: synthetic balances, substituted bytecode, and the pool slots
// pinned by the last refresh. Nothing is broadcast and the authoritative
// chain is never mutated.
type CallExecutor struct {
	geth *gethclient.Client
}

// Executor returns the execution binding backed by this client.
func (c *Client) Executor() *CallExecutor {
	return &CallExecutor{geth: c.geth}
}

// Execute runs calldata against target as caller over the supplied state
// view. It returns the raw return bytes; reverts and transport failures wrap
// domain.ErrExecution.
func (e *CallExecutor) Execute(ctx context.Context, caller, target common.Address, calldata []byte, state *evmstate.Cache) ([]byte, error) {
	overrides := toOverrideSet(state.Overrides())

	msg := ethereum.CallMsg{
		From: caller,
		To:   &target,
		Data: calldata,
	}

	out, err := e.geth.CallContract(ctx, msg, nil, &overrides)
	if err != nil {
		return nil, fmt.Errorf("chain: call %s: %w: %v", target, domain.ErrExecution, err)
	}
	return out, nil
}

// toOverrideSet converts the cache's materialized view into the geth
// state-override wire format. Storage goes in as a state diff: slots the
// cache never touched keep their on-chain values.
func toOverrideSet(ov evmstate.StateOverrides) map[common.Address]gethclient.OverrideAccount {
	set := make(map[common.Address]gethclient.OverrideAccount, len(ov.Accounts)+len(ov.Slots))
	for addr, rec := range ov.Accounts {
		oa := gethclient.OverrideAccount{
			Nonce: rec.Nonce,
			Code:  rec.Code,
		}
		if rec.Balance != nil {
			oa.Balance = rec.Balance.ToBig()
		}
		set[addr] = oa
	}
	for addr, slots := range ov.Slots {
		oa := set[addr]
		oa.StateDiff = make(map[common.Hash]common.Hash, len(slots))
		for slot, v := range slots {
			oa.StateDiff[slot] = v
		}
		set[addr] = oa
	}
	return set
}
