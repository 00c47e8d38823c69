// Package evmstate implements the overlay state cache that quote simulation
// runs against. It layers explicit local overrides (synthetic balances,
// substituted bytecode) over state hydrated on demand from a remote chain
// view, so quoter calls can be answered without broadcasting transactions.
package evmstate

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/zjesko/hyperarb/internal/domain"
)

// RemoteView is the read-only chain surface the cache hydrates from. It is
// stateless with respect to local mutation and may be shared across tasks.
type RemoteView interface {
	StorageAt(ctx context.Context, addr common.Address, slot common.Hash) (common.Hash, error)
	BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error)
	NonceAt(ctx context.Context, addr common.Address) (uint64, error)
	CodeAt(ctx context.Context, addr common.Address) ([]byte, error)
}

// AccountRecord is the per-address metadata the cache tracks.
type AccountRecord struct {
	Balance  *uint256.Int
	Nonce    uint64
	Code     []byte
	CodeHash common.Hash
}

type storageKey struct {
	addr common.Address
	slot common.Hash
}

// Cache is a two-layer key/value store over chain state. The override layer
// holds entries written explicitly by setup code; it is never displaced by
// hydration. The hydrated layer memoizes remote reads for the process
// lifetime, with no eviction: the address and slot universe a quoting cycle
// touches is small and fixed.
//
// A Cache is owned by exactly one task. It has no internal locking, because
// the execution primitive performs non-atomic multi-step reads against it.
type Cache struct {
	remote RemoteView

	overrideAccounts map[common.Address]AccountRecord
	overrideSlots    map[storageKey]common.Hash
	hydratedAccounts map[common.Address]AccountRecord
	hydratedSlots    map[storageKey]common.Hash
}

// New creates an empty cache hydrating from the given remote view.
func New(remote RemoteView) *Cache {
	return &Cache{
		remote:           remote,
		overrideAccounts: make(map[common.Address]AccountRecord),
		overrideSlots:    make(map[storageKey]common.Hash),
		hydratedAccounts: make(map[common.Address]AccountRecord),
		hydratedSlots:    make(map[storageKey]common.Hash),
	}
}

// Account returns the record for addr, consulting the override layer first,
// then the hydrated layer, then fetching from the remote view. A remote
// failure wraps domain.ErrHydration and leaves the key absent.
func (c *Cache) Account(ctx context.Context, addr common.Address) (AccountRecord, error) {
	if rec, ok := c.overrideAccounts[addr]; ok {
		return rec, nil
	}
	if rec, ok := c.hydratedAccounts[addr]; ok {
		return rec, nil
	}

	balance, err := c.remote.BalanceAt(ctx, addr)
	if err != nil {
		return AccountRecord{}, fmt.Errorf("evmstate: account %s balance: %w: %v", addr, domain.ErrHydration, err)
	}
	nonce, err := c.remote.NonceAt(ctx, addr)
	if err != nil {
		return AccountRecord{}, fmt.Errorf("evmstate: account %s nonce: %w: %v", addr, domain.ErrHydration, err)
	}
	code, err := c.remote.CodeAt(ctx, addr)
	if err != nil {
		return AccountRecord{}, fmt.Errorf("evmstate: account %s code: %w: %v", addr, domain.ErrHydration, err)
	}

	rec := AccountRecord{
		Balance:  uint256.MustFromBig(balance),
		Nonce:    nonce,
		Code:     code,
		CodeHash: crypto.Keccak256Hash(code),
	}
	c.hydratedAccounts[addr] = rec
	return rec, nil
}

// Slot returns the storage word at (addr, slot) with the same lookup order as
// Account. Repeated calls before a RefreshSlot may intentionally return stale
// data: the memoized word is reused until something forces a re-read.
func (c *Cache) Slot(ctx context.Context, addr common.Address, slot common.Hash) (common.Hash, error) {
	key := storageKey{addr, slot}
	if v, ok := c.overrideSlots[key]; ok {
		return v, nil
	}
	if v, ok := c.hydratedSlots[key]; ok {
		return v, nil
	}

	v, err := c.remote.StorageAt(ctx, addr, slot)
	if err != nil {
		return common.Hash{}, fmt.Errorf("evmstate: slot %s[%s]: %w: %v", addr, slot, domain.ErrHydration, err)
	}
	c.hydratedSlots[key] = v
	return v, nil
}

// SetAccountOverride installs an account record in the override layer. It
// pre-empts hydration for addr permanently.
func (c *Cache) SetAccountOverride(addr common.Address, rec AccountRecord) {
	c.overrideAccounts[addr] = rec
}

// SetCodeOverride substitutes the bytecode of addr, computing the code hash
// from the supplied code. Balance and nonce of the synthetic account are
// zero.
func (c *Cache) SetCodeOverride(addr common.Address, code []byte) {
	c.overrideAccounts[addr] = AccountRecord{
		Balance:  uint256.NewInt(0),
		Nonce:    0,
		Code:     code,
		CodeHash: crypto.Keccak256Hash(code),
	}
}

// SetSlotOverride installs a storage word in the override layer for
// (addr, slot). Hydration never displaces it.
func (c *Cache) SetSlotOverride(addr common.Address, slot common.Hash, value common.Hash) {
	c.overrideSlots[storageKey{addr, slot}] = value
}

// RefreshSlot forces a remote re-read of (addr, slot) into the hydrated
// layer. An override for the same key is neither consulted nor touched and
// still wins on reads. On failure the hydrated entry keeps its previous
// value, if any, and the error wraps domain.ErrHydration.
func (c *Cache) RefreshSlot(ctx context.Context, addr common.Address, slot common.Hash) error {
	v, err := c.remote.StorageAt(ctx, addr, slot)
	if err != nil {
		return fmt.Errorf("evmstate: refresh %s[%s]: %w: %v", addr, slot, domain.ErrHydration, err)
	}
	c.hydratedSlots[storageKey{addr, slot}] = v
	return nil
}

// StateOverrides is the materialized view handed to an execution binding:
// every account and storage word the cache currently knows, with the
// override layer winning over the hydrated layer.
type StateOverrides struct {
	Accounts map[common.Address]AccountRecord
	Slots    map[common.Address]map[common.Hash]common.Hash
}

// Overrides materializes the combined view. The returned maps are fresh
// copies; mutating them does not affect the cache.
func (c *Cache) Overrides() StateOverrides {
	out := StateOverrides{
		Accounts: make(map[common.Address]AccountRecord, len(c.hydratedAccounts)+len(c.overrideAccounts)),
		Slots:    make(map[common.Address]map[common.Hash]common.Hash),
	}
	for addr, rec := range c.hydratedAccounts {
		out.Accounts[addr] = rec
	}
	for addr, rec := range c.overrideAccounts {
		out.Accounts[addr] = rec
	}
	for key, v := range c.hydratedSlots {
		slots, ok := out.Slots[key.addr]
		if !ok {
			slots = make(map[common.Hash]common.Hash)
			out.Slots[key.addr] = slots
		}
		slots[key.slot] = v
	}
	for key, v := range c.overrideSlots {
		slots, ok := out.Slots[key.addr]
		if !ok {
			slots = make(map[common.Hash]common.Hash)
			out.Slots[key.addr] = slots
		}
		slots[key.slot] = v
	}
	return out
}
