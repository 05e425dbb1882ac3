package blocks

import (
	"errors"
	"sync"

	"github.com/shard-labs/starknet-devnet/felt"
	"github.com/shard-labs/starknet-devnet/txn"
)

// Errors returned by the block store.
var (
	ErrBlockNotFound       = errors.New("blocks: block not found")
	ErrTransactionNotFound = errors.New("blocks: transaction not found")
)

// txLocation is where a transaction sits in a sealed block.
type txLocation struct {
	blockNumber uint64
	index       int
}

// Store holds sealed blocks plus the one in-flight pre-confirmed block,
// with by_hash / by_number / tx_hash indices (spec.md §4.C).
type Store struct {
	mu sync.RWMutex

	byNumber map[uint64]*Block
	byHash   map[felt.Felt]*Block // retains ABORTED blocks too
	byTxHash map[felt.Felt]txLocation

	preConfirmed *Block
	latestNumber uint64
	hasLatest    bool
}

// NewStore creates an empty block store with genesis as the first sealed
// block, at genesis.Number (0, or the pinned fork block plus one when
// forking).
func NewStore(genesis *Block) *Store {
	genesis.Status = StatusAcceptedOnL2
	s := &Store{
		byNumber: make(map[uint64]*Block),
		byHash:   make(map[felt.Felt]*Block),
		byTxHash: make(map[felt.Felt]txLocation),
	}
	s.byNumber[genesis.Number] = genesis
	s.byHash[genesis.Hash] = genesis
	s.latestNumber = genesis.Number
	s.hasLatest = true
	s.preConfirmed = &Block{Number: genesis.Number + 1, ParentHash: genesis.Hash, Status: StatusPreConfirmed}
	return s
}

// PreConfirmed returns the mutable in-flight block.
func (s *Store) PreConfirmed() *Block {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.preConfirmed
}

// AppendToPreConfirmed appends a transaction hash to the pre-confirmed
// block's transaction list (admission step 6, spec.md §4.E).
func (s *Store) AppendToPreConfirmed(txHash felt.Felt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preConfirmed.Transactions = append(s.preConfirmed.Transactions, txHash)
}

// AppendEventsToPreConfirmed records the events produced by an admitted
// transaction onto the pre-confirmed block's aggregate event list.
func (s *Store) AppendEventsToPreConfirmed(events []txn.Event) {
	if len(events) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preConfirmed.Events = append(s.preConfirmed.Events, events...)
}

// Seal freezes the pre-confirmed block: assigns hash, transitions it to
// ACCEPTED_ON_L2, indexes it, and opens a fresh empty pre-confirmed block
// (spec.md §4.E "Sealing"). newHash and timestamp and the new snapshot id
// are supplied by the caller (sequencer), which owns hashing policy
// (lite vs full) and the clock.
func (s *Store) Seal(newHash felt.Felt, timestamp uint64, sequencerAddr felt.Felt, gasPrices GasPrices, snapshotID uint64) *Block {
	s.mu.Lock()
	defer s.mu.Unlock()

	sealed := s.preConfirmed
	sealed.Hash = newHash
	sealed.Timestamp = timestamp
	sealed.SequencerAddress = sequencerAddr
	sealed.GasPrices = gasPrices
	sealed.Status = StatusAcceptedOnL2
	sealed.SnapshotID = snapshotID

	s.byNumber[sealed.Number] = sealed
	s.byHash[sealed.Hash] = sealed
	for i, h := range sealed.Transactions {
		s.byTxHash[h] = txLocation{blockNumber: sealed.Number, index: i}
	}
	s.latestNumber = sealed.Number
	s.hasLatest = true

	s.preConfirmed = &Block{Number: sealed.Number + 1, ParentHash: sealed.Hash, Status: StatusPreConfirmed}
	return sealed
}

// ByNumber returns a sealed block by number.
func (s *Store) ByNumber(n uint64) (*Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.byNumber[n]
	if !ok {
		return nil, ErrBlockNotFound
	}
	return b, nil
}

// ByHash returns a block (sealed or aborted) by hash. Queries by hash
// succeed even for aborted blocks, surfacing Status == StatusAborted
// (spec.md §4.C).
func (s *Store) ByHash(h felt.Felt) (*Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.byHash[h]
	if !ok {
		return nil, ErrBlockNotFound
	}
	return b, nil
}

// Latest returns the latest sealed block.
func (s *Store) Latest() (*Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.hasLatest {
		return nil, ErrBlockNotFound
	}
	return s.byNumber[s.latestNumber], nil
}

// LatestNumber returns the number of the latest sealed block.
func (s *Store) LatestNumber() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latestNumber
}

// TransactionBlock returns the block and index of a sealed transaction.
func (s *Store) TransactionBlock(txHash felt.Felt) (*Block, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	loc, ok := s.byTxHash[txHash]
	if !ok {
		return nil, 0, ErrTransactionNotFound
	}
	return s.byNumber[loc.blockNumber], loc.index, nil
}

// Abort removes target (by number) and every block above it from the
// by-number and tx indices, retaining the hash index (spec.md §4.C, §4.E
// "Abortion"). Returns the aborted blocks, newest first.
func (s *Store) Abort(targetNumber uint64) []*Block {
	s.mu.Lock()
	defer s.mu.Unlock()

	var aborted []*Block
	for n := s.latestNumber; n >= targetNumber; n-- {
		b, ok := s.byNumber[n]
		if !ok {
			break
		}
		b.Status = StatusAborted
		for _, h := range b.Transactions {
			delete(s.byTxHash, h)
		}
		delete(s.byNumber, n)
		aborted = append(aborted, b)
		if n == 0 {
			break
		}
	}
	if targetNumber > 0 {
		s.latestNumber = targetNumber - 1
	} else {
		s.hasLatest = false
	}
	return aborted
}

// PromoteToL1 transitions every sealed block from startingNumber down to
// (and including) the given floor to ACCEPTED_ON_L1, skipping blocks
// already on L1 (spec.md §4.E "L1 promotion").
func (s *Store) PromoteToL1(startingNumber uint64, floor uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for n := startingNumber; n >= floor; n-- {
		b, ok := s.byNumber[n]
		if !ok {
			break
		}
		if b.Status != StatusAcceptedOnL1 {
			b.Status = StatusAcceptedOnL1
		}
		if n == 0 {
			break
		}
	}
}

// Reset discards all blocks and reinitializes with a fresh genesis,
// used by devnet_restart.
func (s *Store) Reset(genesis *Block) {
	s.mu.Lock()
	defer s.mu.Unlock()
	genesis.Status = StatusAcceptedOnL2
	s.byNumber = map[uint64]*Block{genesis.Number: genesis}
	s.byHash = map[felt.Felt]*Block{genesis.Hash: genesis}
	s.byTxHash = make(map[felt.Felt]txLocation)
	s.latestNumber = genesis.Number
	s.hasLatest = true
	s.preConfirmed = &Block{Number: genesis.Number + 1, ParentHash: genesis.Hash, Status: StatusPreConfirmed}
}
