package blocks

import (
	"testing"

	"github.com/shard-labs/starknet-devnet/felt"
	"github.com/shard-labs/starknet-devnet/txn"
)

func genesisBlock() *Block {
	return &Block{Number: 0, Hash: LiteHash(0)}
}

func TestNewStoreSeedsGenesisAndOpensPreConfirmed(t *testing.T) {
	s := NewStore(genesisBlock())

	g, err := s.ByNumber(0)
	if err != nil {
		t.Fatal(err)
	}
	if g.Status != StatusAcceptedOnL2 {
		t.Fatalf("genesis status = %s, want ACCEPTED_ON_L2", g.Status)
	}

	pc := s.PreConfirmed()
	if pc.Number != 1 {
		t.Fatalf("pre-confirmed number = %d, want 1", pc.Number)
	}
	if pc.ParentHash.Cmp(g.Hash) != 0 {
		t.Fatal("pre-confirmed parent hash does not chain to genesis")
	}
}

func TestAppendAndSealIndexesTransaction(t *testing.T) {
	s := NewStore(genesisBlock())
	txHash := felt.FromUint64(7)
	s.AppendToPreConfirmed(txHash)
	s.AppendEventsToPreConfirmed([]txn.Event{{FromAddress: felt.FromUint64(1)}})

	sealed := s.Seal(felt.FromUint64(123), 1000, felt.FromUint64(9), GasPrices{}, 1)
	if sealed.Status != StatusAcceptedOnL2 {
		t.Fatalf("sealed status = %s, want ACCEPTED_ON_L2", sealed.Status)
	}
	if len(sealed.Events) != 1 {
		t.Fatalf("sealed events = %d, want 1", len(sealed.Events))
	}

	b, idx, err := s.TransactionBlock(txHash)
	if err != nil {
		t.Fatal(err)
	}
	if b.Number != 1 || idx != 0 {
		t.Fatalf("TransactionBlock = (%d, %d), want (1, 0)", b.Number, idx)
	}

	if s.LatestNumber() != 1 {
		t.Fatalf("LatestNumber = %d, want 1", s.LatestNumber())
	}
	pc := s.PreConfirmed()
	if pc.Number != 2 {
		t.Fatalf("new pre-confirmed number = %d, want 2", pc.Number)
	}
}

func TestAbortRemovesFromNumberAndTxIndicesButKeepsByHash(t *testing.T) {
	s := NewStore(genesisBlock())

	txHash := felt.FromUint64(1)
	s.AppendToPreConfirmed(txHash)
	b1 := s.Seal(felt.FromUint64(101), 1, felt.Zero, GasPrices{}, 1)

	s.AppendToPreConfirmed(felt.FromUint64(2))
	b2 := s.Seal(felt.FromUint64(102), 2, felt.Zero, GasPrices{}, 2)

	aborted := s.Abort(b1.Number)
	if len(aborted) != 2 {
		t.Fatalf("aborted %d blocks, want 2", len(aborted))
	}
	if aborted[0].Number != b2.Number {
		t.Fatalf("Abort did not return newest first: got %d want %d", aborted[0].Number, b2.Number)
	}

	if _, err := s.ByNumber(b1.Number); err != ErrBlockNotFound {
		t.Fatal("aborted block still reachable by number")
	}
	if _, _, err := s.TransactionBlock(txHash); err != ErrTransactionNotFound {
		t.Fatal("aborted transaction still reachable by hash")
	}

	byHash, err := s.ByHash(b1.Hash)
	if err != nil {
		t.Fatal("aborted block not retained in by-hash index")
	}
	if byHash.Status != StatusAborted {
		t.Fatalf("aborted block status = %s, want ABORTED", byHash.Status)
	}

	g, err := s.Latest()
	if err != nil {
		t.Fatal(err)
	}
	if g.Number != 0 {
		t.Fatalf("latest after abort = %d, want genesis (0)", g.Number)
	}
}

func TestPromoteToL1SkipsAlreadyPromoted(t *testing.T) {
	s := NewStore(genesisBlock())
	s.AppendToPreConfirmed(felt.FromUint64(1))
	b1 := s.Seal(felt.FromUint64(101), 1, felt.Zero, GasPrices{}, 1)
	s.AppendToPreConfirmed(felt.FromUint64(2))
	b2 := s.Seal(felt.FromUint64(102), 2, felt.Zero, GasPrices{}, 2)

	s.PromoteToL1(b1.Number, b1.Number)
	if b1.Status != StatusAcceptedOnL1 {
		t.Fatalf("b1 status = %s, want ACCEPTED_ON_L1", b1.Status)
	}
	if b2.Status == StatusAcceptedOnL1 {
		t.Fatal("PromoteToL1 promoted a block above the requested range")
	}

	s.PromoteToL1(b2.Number, 0)
	if b2.Status != StatusAcceptedOnL1 {
		t.Fatalf("b2 status = %s, want ACCEPTED_ON_L1", b2.Status)
	}
}

func TestResetReinitializesGenesis(t *testing.T) {
	s := NewStore(genesisBlock())
	s.AppendToPreConfirmed(felt.FromUint64(1))
	s.Seal(felt.FromUint64(101), 1, felt.Zero, GasPrices{}, 1)

	s.Reset(genesisBlock())
	if s.LatestNumber() != 0 {
		t.Fatalf("LatestNumber after reset = %d, want 0", s.LatestNumber())
	}
	if _, _, err := s.TransactionBlock(felt.FromUint64(1)); err != ErrTransactionNotFound {
		t.Fatal("Reset did not clear tx index")
	}
}
