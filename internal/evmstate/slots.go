package evmstate

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// MappingSlot derives the storage key for mapping[key] declared at base slot
// base: keccak256 of the 32-byte big-endian encodings of key and base,
// concatenated in that order. This is Solidity's canonical layout; installing
// a synthetic mapping value under any other key means contract reads observe
// zero instead of the override.
func MappingSlot(base common.Hash, key common.Hash) common.Hash {
	return crypto.Keccak256Hash(key.Bytes(), base.Bytes())
}

// BalanceSlot derives the storage key of holder's entry in an ERC-20 balance
// mapping declared at base slot base. Addresses are left-padded to 32 bytes.
func BalanceSlot(base common.Hash, holder common.Address) common.Hash {
	return MappingSlot(base, common.BytesToHash(holder.Bytes()))
}
