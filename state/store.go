package state

import (
	"sync"

	"github.com/shard-labs/starknet-devnet/felt"
)

// ArchiveMode controls how many sealed snapshots the Store retains
// (spec.md §3 "State snapshot", §9 "Copy-on-write snapshots").
type ArchiveMode int

const (
	// ArchiveNone keeps only the latest sealed snapshot plus the
	// pre-confirmed overlay.
	ArchiveNone ArchiveMode = iota
	// ArchiveFull keeps one snapshot per sealed block.
	ArchiveFull
)

// Store owns the chain of sealed snapshots and the single mutable
// pre-confirmed overlay on top of them (spec.md §4.A).
type Store struct {
	mode ArchiveMode

	mu       sync.RWMutex
	byNumber map[uint64]*Snapshot // only populated fully in ArchiveFull mode
	latest   *Snapshot            // most recently sealed snapshot
	preConf  *Snapshot            // mutable overlay atop latest
	nextID   uint64
}

// NewStore creates a Store whose genesis snapshot is genesis (nil means an
// empty world). The pre-confirmed overlay starts out empty, parented on
// genesis.
func NewStore(mode ArchiveMode, genesis *Snapshot) *Store {
	if genesis == nil {
		genesis = newSnapshot(0, nil)
	}
	s := &Store{
		mode:     mode,
		byNumber: make(map[uint64]*Snapshot),
		latest:   genesis,
		nextID:   genesis.id + 1,
	}
	if mode == ArchiveFull {
		s.byNumber[genesis.id] = genesis
	}
	s.preConf = newSnapshot(s.nextID, genesis)
	return s
}

// Genesis returns the snapshot at block 0. In ArchiveNone mode this is
// only valid immediately after construction; callers needing the true
// genesis for the life of the process should retain the Snapshot returned
// here themselves.
func (s *Store) Genesis() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	root := s.latest
	for root.parent != nil {
		root = root.parent
	}
	return root
}

// Latest returns the most recently sealed snapshot.
func (s *Store) Latest() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// PreConfirmed returns the mutable pre-confirmed overlay.
func (s *Store) PreConfirmed() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.preConf
}

// BySnapshotID looks up a previously sealed snapshot, if retained. Returns
// nil in ArchiveNone mode for any block other than the latest.
func (s *Store) BySnapshotID(id uint64) *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest.id == id {
		return s.latest
	}
	return s.byNumber[id]
}

// ApplyToPreConfirmed writes d directly into the mutable pre-confirmed
// overlay (admission step 5 in spec.md §4.E). It validates the
// "ContractNotFound unless declare or deploy" invariant from spec.md §4.A:
// a diff that touches storage or nonce of an address not yet known to
// exist, and that does not itself deploy that address, is rejected.
func (s *Store) ApplyToPreConfirmed(d *Diff) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	deployed := make(map[felt.Felt]bool, len(d.ClassHashes))
	for addr := range d.ClassHashes {
		deployed[addr] = true
	}
	for addr := range d.Nonces {
		if !deployed[addr] && !s.preConf.ContractExists(addr) {
			return ErrContractNotFound
		}
	}
	for sk := range d.Storage {
		if !deployed[sk.Address] && !s.preConf.ContractExists(sk.Address) {
			return ErrContractNotFound
		}
	}

	s.preConf.applyInPlace(d)
	return nil
}

// Seal transitions the pre-confirmed overlay into an immutable sealed
// snapshot, assigns it the next snapshot ID, and opens a fresh empty
// pre-confirmed overlay on top of it (spec.md §4.E "Sealing"). It returns
// the newly sealed snapshot.
func (s *Store) Seal() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	sealed := s.preConf
	s.latest = sealed

	if s.mode == ArchiveFull {
		s.byNumber[sealed.id] = sealed
	} else {
		// ArchiveNone: drop everything except the new latest.
		s.byNumber = make(map[uint64]*Snapshot)
	}

	s.nextID = sealed.id + 1
	s.preConf = newSnapshot(s.nextID, sealed)
	return sealed
}

// Rewind discards the current latest sealed snapshot and re-exposes its
// parent as latest, opening a fresh pre-confirmed overlay on top of it.
// Used by block abortion (spec.md §4.E "Abortion"). Requires ArchiveFull,
// enforced by the caller (sequencer), since ArchiveNone does not retain
// the parent needed to rewind past the single latest snapshot.
func (s *Store) Rewind() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	discarded := s.latest
	parent := discarded.parent
	if parent == nil {
		// Refuse to rewind past genesis; caller (sequencer) must prevent
		// this via CannotAbortGenesis before calling Rewind.
		return discarded
	}
	s.latest = parent
	delete(s.byNumber, discarded.id)
	s.nextID = parent.id + 1
	s.preConf = newSnapshot(s.nextID, parent)
	return discarded
}

// ResetToGenesis discards all sealed snapshots and reopens a fresh
// pre-confirmed overlay atop genesis, used by devnet_restart.
func (s *Store) ResetToGenesis(genesis *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = genesis
	s.byNumber = make(map[uint64]*Snapshot)
	if s.mode == ArchiveFull {
		s.byNumber[genesis.id] = genesis
	}
	s.nextID = genesis.id + 1
	s.preConf = newSnapshot(s.nextID, genesis)
}
