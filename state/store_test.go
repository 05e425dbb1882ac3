package state

import (
	"testing"

	"github.com/shard-labs/starknet-devnet/felt"
)

func addr(n uint64) felt.Felt { return felt.FromUint64(n) }

func TestApplyToPreConfirmedRejectsUnknownContract(t *testing.T) {
	s := NewStore(ArchiveFull, nil)
	d := NewDiff()
	d.Nonces[addr(1)] = felt.FromUint64(1)
	if err := s.ApplyToPreConfirmed(d); err != ErrContractNotFound {
		t.Fatalf("expected ErrContractNotFound, got %v", err)
	}
}

func TestDeployThenWriteSucceeds(t *testing.T) {
	s := NewStore(ArchiveFull, nil)
	deploy := NewDiff()
	deploy.ClassHashes[addr(1)] = addr(99)
	if err := s.ApplyToPreConfirmed(deploy); err != nil {
		t.Fatalf("deploy: %v", err)
	}

	write := NewDiff()
	write.Nonces[addr(1)] = felt.FromUint64(1)
	write.Storage[StorageKey{Address: addr(1), Key: addr(5)}] = addr(42)
	if err := s.ApplyToPreConfirmed(write); err != nil {
		t.Fatalf("write: %v", err)
	}

	pc := s.PreConfirmed()
	if got := pc.GetNonce(addr(1)); got.Cmp(felt.FromUint64(1)) != 0 {
		t.Errorf("nonce = %s, want 1", got.Hex())
	}
	if got := pc.GetStorage(addr(1), addr(5)); got.Cmp(addr(42)) != 0 {
		t.Errorf("storage = %s, want 42", got.Hex())
	}
}

func TestSealIsImmutableAndChainsParent(t *testing.T) {
	s := NewStore(ArchiveFull, nil)
	deploy := NewDiff()
	deploy.ClassHashes[addr(1)] = addr(99)
	_ = s.ApplyToPreConfirmed(deploy)

	sealed := s.Seal()
	if sealed.ID() != 1 {
		t.Fatalf("sealed.ID() = %d, want 1", sealed.ID())
	}

	// Mutating the new pre-confirmed overlay must not affect the sealed one.
	write := NewDiff()
	write.Nonces[addr(1)] = felt.FromUint64(7)
	_ = s.ApplyToPreConfirmed(write)

	if got := sealed.GetNonce(addr(1)); !got.IsZero() {
		t.Errorf("sealed snapshot mutated: nonce = %s", got.Hex())
	}
	if got := s.PreConfirmed().GetNonce(addr(1)); got.Cmp(felt.FromUint64(7)) != 0 {
		t.Errorf("pre-confirmed nonce = %s, want 7", got.Hex())
	}
}

func TestArchiveNoneDropsOldSnapshots(t *testing.T) {
	s := NewStore(ArchiveNone, nil)
	deploy := NewDiff()
	deploy.ClassHashes[addr(1)] = addr(99)
	_ = s.ApplyToPreConfirmed(deploy)
	first := s.Seal()

	_ = s.ApplyToPreConfirmed(NewDiff())
	s.Seal()

	if s.BySnapshotID(first.ID()) != nil {
		t.Fatal("ArchiveNone retained a non-latest snapshot")
	}
}

func TestRewindRestoresParent(t *testing.T) {
	s := NewStore(ArchiveFull, nil)
	deploy := NewDiff()
	deploy.ClassHashes[addr(1)] = addr(99)
	_ = s.ApplyToPreConfirmed(deploy)
	parent := s.Seal()

	write := NewDiff()
	write.Nonces[addr(1)] = felt.FromUint64(1)
	_ = s.ApplyToPreConfirmed(write)
	s.Seal()

	discarded := s.Rewind()
	if discarded == parent {
		t.Fatal("Rewind discarded the wrong snapshot")
	}
	if s.Latest() != parent {
		t.Fatal("Rewind did not restore the parent as latest")
	}
}
