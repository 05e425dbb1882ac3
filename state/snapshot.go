// Package state implements Devnet's world state: per-address nonces,
// storage, declared classes, the contract->class map, and the
// copy-on-write snapshot chain that backs point-in-time reads
// (spec.md §4.A).
//
// Grounded on the teacher's snapshot diff-layer design
// (core/state/state_snapshot.go): each snapshot is a small overlay map
// with a parent pointer, not a reference-counted cell-by-cell structure
// (spec.md §9 "Copy-on-write snapshots").
package state

import (
	"errors"
	"sync"

	"github.com/shard-labs/starknet-devnet/felt"
)

// Errors returned by the state store.
var (
	ErrContractNotFound = errors.New("state: contract not found")
	ErrSnapshotNotFound = errors.New("state: snapshot not found")
)

// StorageKey addresses a single storage slot.
type StorageKey struct {
	Address felt.Felt
	Key     felt.Felt
}

// Diff is a per-block state diff: the set of writes that, applied to a
// base snapshot, produce a new one (spec.md §3).
type Diff struct {
	Nonces          map[felt.Felt]felt.Felt
	ClassHashes     map[felt.Felt]felt.Felt // address -> class hash (deploys/replacements)
	CompiledClasses map[felt.Felt]felt.Felt // class hash -> compiled class hash
	Storage         map[StorageKey]felt.Felt
	DeclaredClasses []felt.Felt
}

// NewDiff returns an empty, ready-to-populate Diff.
func NewDiff() *Diff {
	return &Diff{
		Nonces:          make(map[felt.Felt]felt.Felt),
		ClassHashes:     make(map[felt.Felt]felt.Felt),
		CompiledClasses: make(map[felt.Felt]felt.Felt),
		Storage:         make(map[StorageKey]felt.Felt),
	}
}

// IsEmpty reports whether the diff carries no writes at all.
func (d *Diff) IsEmpty() bool {
	return len(d.Nonces) == 0 && len(d.ClassHashes) == 0 &&
		len(d.CompiledClasses) == 0 && len(d.Storage) == 0 && len(d.DeclaredClasses) == 0
}

// Snapshot is one layer in the copy-on-write chain: an overlay of writes
// on top of a parent snapshot. Once sealed (see Store.Seal), a Snapshot is
// immutable; only the pre-confirmed overlay returned by Store.PreConfirmed
// is ever mutated in place.
type Snapshot struct {
	id     uint64 // monotonically increasing; 0 is genesis
	parent *Snapshot

	mu              sync.RWMutex
	nonces          map[felt.Felt]felt.Felt
	classHashes     map[felt.Felt]felt.Felt
	compiledClasses map[felt.Felt]felt.Felt
	storage         map[StorageKey]felt.Felt
	known           map[felt.Felt]bool // addresses known to exist at or below this layer
}

// ID returns the snapshot's identifier, a sequence number that grows with
// each seal. It is not the block number: the sequencer's genesis block is
// sealed as snapshot 1 on top of the root layer.
func (s *Snapshot) ID() uint64 { return s.id }

func newSnapshot(id uint64, parent *Snapshot) *Snapshot {
	return &Snapshot{
		id:              id,
		parent:          parent,
		nonces:          make(map[felt.Felt]felt.Felt),
		classHashes:     make(map[felt.Felt]felt.Felt),
		compiledClasses: make(map[felt.Felt]felt.Felt),
		storage:         make(map[StorageKey]felt.Felt),
		known:           make(map[felt.Felt]bool),
	}
}

// GetNonce reads the nonce for addr, walking up the parent chain. Absent
// contracts read as zero, matching a freshly-deployed account's nonce.
func (s *Snapshot) GetNonce(addr felt.Felt) felt.Felt {
	for layer := s; layer != nil; layer = layer.parent {
		layer.mu.RLock()
		v, ok := layer.nonces[addr]
		layer.mu.RUnlock()
		if ok {
			return v
		}
	}
	return felt.Zero
}

// GetStorage reads a storage slot, walking up the parent chain. Absent
// slots read as zero.
func (s *Snapshot) GetStorage(addr, key felt.Felt) felt.Felt {
	sk := StorageKey{Address: addr, Key: key}
	for layer := s; layer != nil; layer = layer.parent {
		layer.mu.RLock()
		v, ok := layer.storage[sk]
		layer.mu.RUnlock()
		if ok {
			return v
		}
	}
	return felt.Zero
}

// GetClassHash returns the class hash deployed at addr, or felt.Zero if
// the contract is not known at or below this snapshot.
func (s *Snapshot) GetClassHash(addr felt.Felt) felt.Felt {
	for layer := s; layer != nil; layer = layer.parent {
		layer.mu.RLock()
		v, ok := layer.classHashes[addr]
		layer.mu.RUnlock()
		if ok {
			return v
		}
	}
	return felt.Zero
}

// GetCompiledClassHash returns the compiled class hash for a declared
// class hash, or felt.Zero if unknown at or below this snapshot.
func (s *Snapshot) GetCompiledClassHash(classHash felt.Felt) felt.Felt {
	for layer := s; layer != nil; layer = layer.parent {
		layer.mu.RLock()
		v, ok := layer.compiledClasses[classHash]
		layer.mu.RUnlock()
		if ok {
			return v
		}
	}
	return felt.Zero
}

// ContractExists reports whether addr has been deployed at or below this
// snapshot.
func (s *Snapshot) ContractExists(addr felt.Felt) bool {
	for layer := s; layer != nil; layer = layer.parent {
		layer.mu.RLock()
		known, ok := layer.known[addr]
		layer.mu.RUnlock()
		if ok {
			return known
		}
	}
	return false
}

// applyInPlace mutates this snapshot's own overlay maps with diff d. It is
// only ever called on the pre-confirmed overlay (Store.preConfirmed),
// never on a sealed Snapshot, preserving the "sealed snapshots are
// immutable" invariant (spec.md §4.A).
func (s *Snapshot) applyInPlace(d *Diff) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for addr, n := range d.Nonces {
		s.nonces[addr] = n
	}
	for addr, ch := range d.ClassHashes {
		s.classHashes[addr] = ch
		s.known[addr] = true
	}
	for ch, cch := range d.CompiledClasses {
		s.compiledClasses[ch] = cch
	}
	for sk, v := range d.Storage {
		s.storage[sk] = v
	}
}
