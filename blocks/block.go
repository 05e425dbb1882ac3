// Package blocks implements the block store (spec.md §4.C): the ordered
// sequence of sealed blocks plus the single in-flight pre-confirmed block,
// indexed by hash, by number, and by transaction hash.
package blocks

import (
	"github.com/shard-labs/starknet-devnet/felt"
	"github.com/shard-labs/starknet-devnet/txn"
)

// GasPrices is the per-block gas price vector: WEI and FRI quotes for
// each of the three metered resources (spec.md §3 "Block").
type GasPrices struct {
	L1GasWei     felt.Felt
	L1GasFri     felt.Felt
	L1DataGasWei felt.Felt
	L1DataGasFri felt.Felt
	L2GasWei     felt.Felt
	L2GasFri     felt.Felt
}

// Status is a block's finality lifecycle position, or Aborted if it has
// been removed by devnet_abortBlocks (spec.md §4.C).
type Status int

const (
	StatusPreConfirmed Status = iota
	StatusAcceptedOnL2
	StatusAcceptedOnL1
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusAcceptedOnL2:
		return "ACCEPTED_ON_L2"
	case StatusAcceptedOnL1:
		return "ACCEPTED_ON_L1"
	case StatusAborted:
		return "ABORTED"
	default:
		return "PRE_CONFIRMED"
	}
}

// Block is a sealed (or, for the in-flight instance, pre-confirmed) block.
type Block struct {
	Number           uint64
	Hash             felt.Felt
	ParentHash       felt.Felt
	Timestamp        uint64
	SequencerAddress felt.Felt
	GasPrices        GasPrices
	StateDiffHash    felt.Felt // zero: no Merkle commitment (spec.md §1 Non-goals)
	Status           Status

	Transactions []felt.Felt // tx hashes, in admission order
	Events       []txn.Event

	// SnapshotID is the state.Snapshot ID this block corresponds to, so
	// the block store and state store stay in lockstep.
	SnapshotID uint64
}

// LiteHash derives a trivial, injective, deterministic block hash from the
// block number alone, used when config.LiteMode is set (spec.md §3
// "lite mode", §9 Open Question 3: "any injective deterministic mapping is
// acceptable as long as genesis maps to a fixed distinguished value").
func LiteHash(number uint64) felt.Felt {
	if number == 0 {
		return felt.MustFromHex("0x1") // fixed distinguished genesis value
	}
	return felt.PedersenStub(felt.FromUint64(0x6c697465), felt.FromUint64(number)) // "lite"
}

// FullHash derives a block hash from its full header contents, used when
// lite mode is off. It folds in the timestamp so that replayed dumps
// (spec.md §4.H, testable property 6) only reproduce identical hashes
// when timestamps are fed back via setTime.
func FullHash(b *Block) felt.Felt {
	inputs := []felt.Felt{
		felt.FromUint64(b.Number),
		b.ParentHash,
		felt.FromUint64(b.Timestamp),
		b.SequencerAddress,
	}
	inputs = append(inputs, b.Transactions...)
	return felt.PedersenStub(inputs...)
}
