package sequencer

import (
	"testing"

	"github.com/shard-labs/starknet-devnet/config"
	"github.com/shard-labs/starknet-devnet/executor"
	"github.com/shard-labs/starknet-devnet/felt"
	"github.com/shard-labs/starknet-devnet/txn"
)

func testConfig() config.Config {
	cfg := config.DefaultConfig()
	cfg.Accounts = 2
	cfg.InitialBalance = 1_000_000
	cfg.BlockGenerationOn = config.BlockGenerationMode{OnTransaction: true}
	return cfg
}

func newTestSequencer() *Sequencer {
	return New(testConfig(), executor.NewFake())
}

// validResourceBounds gives a transaction a nonzero L2Gas bound so
// executor.Fake's overflow check (MaxAmount == 0) does not trip.
func validResourceBounds() txn.ResourceBounds {
	return txn.ResourceBounds{
		L2Gas: txn.ResourceBound{MaxAmount: 1000, MaxPricePerUnit: felt.FromUint64(1)},
	}
}

func TestNewSeedsPredeployedAccountsWithBalance(t *testing.T) {
	s := newTestSequencer()
	accs := s.PredeployedAccounts()
	if len(accs) != 2 {
		t.Fatalf("got %d predeployed accounts, want 2", len(accs))
	}
	for _, acc := range accs {
		bal := s.GetAccountBalance(acc.Address, txn.WEI)
		if bal.Cmp(felt.FromUint64(1_000_000)) != 0 {
			t.Fatalf("account %s balance = %s, want 1000000", acc.Address.Hex(), bal.Hex())
		}
	}
}

func TestMintCreditsBalanceAndSealsOneBlock(t *testing.T) {
	s := newTestSequencer()
	acc := s.PredeployedAccounts()[0]

	before, _ := s.blocks.Latest()
	_, err := s.Mint(acc.Address, 500, txn.WEI)
	if err != nil {
		t.Fatal(err)
	}
	after, _ := s.blocks.Latest()
	if after.Number != before.Number+1 {
		t.Fatalf("latest block number = %d, want %d", after.Number, before.Number+1)
	}
	if len(after.Transactions) != 1 {
		t.Fatalf("sealed block has %d transactions, want 1", len(after.Transactions))
	}

	bal := s.GetAccountBalance(acc.Address, txn.WEI)
	if bal.Cmp(felt.FromUint64(1_000_500)) != 0 {
		t.Fatalf("balance after mint = %s, want 1000500", bal.Hex())
	}
}

func TestAdmitTransactionRejectsBadNonce(t *testing.T) {
	s := newTestSequencer()
	acc := s.PredeployedAccounts()[0]
	tx := &txn.Transaction{Kind: txn.Invoke, Sender: acc.Address, Nonce: felt.FromUint64(7), ResourceBounds: validResourceBounds()}
	if _, err := s.AdmitTransaction(tx); err != ErrInvalidTransactionNonce {
		t.Fatalf("got %v, want ErrInvalidTransactionNonce", err)
	}
}

func TestAdmitTransactionSealsOnTransactionRegime(t *testing.T) {
	s := newTestSequencer()
	acc := s.PredeployedAccounts()[0]
	before, _ := s.blocks.Latest()

	tx := &txn.Transaction{Kind: txn.Invoke, Sender: acc.Address, Nonce: felt.Zero, ResourceBounds: validResourceBounds()}
	receipt, err := s.AdmitTransaction(tx)
	if err != nil {
		t.Fatal(err)
	}
	if receipt.ExecutionStatus != txn.Succeeded {
		t.Fatalf("execution status = %v, want SUCCEEDED", receipt.ExecutionStatus)
	}

	after, _ := s.blocks.Latest()
	if after.Number != before.Number+1 {
		t.Fatalf("block not sealed: latest = %d, want %d", after.Number, before.Number+1)
	}

	nonce := s.state.PreConfirmed().GetNonce(acc.Address)
	if nonce.Cmp(felt.FromUint64(1)) != 0 {
		t.Fatalf("nonce after admission = %s, want 1", nonce.Hex())
	}
}

func TestAdmitTransactionRevertOnSentinelStillCharges(t *testing.T) {
	s := newTestSequencer()
	acc := s.PredeployedAccounts()[0]
	tx := &txn.Transaction{Kind: txn.Invoke, Sender: acc.Address, Nonce: felt.Zero, Calldata: []felt.Felt{executor.RevertSentinel}, ResourceBounds: validResourceBounds()}
	// Impersonation skips __validate__, which rejects the sentinel, so the
	// transaction reaches execution and reverts there.
	s.ImpersonateAccount(acc.Address)

	receipt, err := s.AdmitTransaction(tx)
	if err != nil {
		t.Fatal(err)
	}
	if receipt.ExecutionStatus != txn.Reverted {
		t.Fatalf("execution status = %v, want REVERTED", receipt.ExecutionStatus)
	}
	nonce := s.state.PreConfirmed().GetNonce(acc.Address)
	if nonce.Cmp(felt.FromUint64(1)) != 0 {
		t.Fatalf("nonce after reverted admission = %s, want 1 (nonce still bumped)", nonce.Hex())
	}
	bal := s.GetAccountBalance(acc.Address, txn.WEI)
	if bal.Cmp(felt.FromUint64(999_000)) != 0 {
		t.Fatalf("balance after reverted admission = %s, want 999000 (consumed fee charged)", bal.Hex())
	}
}

func TestCreateBlockInDemandRegimeSealsEmptyBlock(t *testing.T) {
	cfg := testConfig()
	cfg.BlockGenerationOn = config.BlockGenerationMode{OnDemand: true}
	s := New(cfg, executor.NewFake())

	acc := s.PredeployedAccounts()[0]
	tx := &txn.Transaction{Kind: txn.Invoke, Sender: acc.Address, Nonce: felt.Zero}
	if _, err := s.AdmitTransaction(tx); err != nil {
		t.Fatal(err)
	}
	before, _ := s.blocks.Latest()
	if before.Number != 0 {
		t.Fatalf("demand regime must not auto-seal; latest = %d", before.Number)
	}

	sealed := s.CreateBlock()
	if sealed.Number != 1 || len(sealed.Transactions) != 1 {
		t.Fatalf("sealed block = %+v, want number 1 with 1 tx", sealed)
	}

	empty := s.CreateBlock()
	if len(empty.Transactions) != 0 {
		t.Fatalf("second seal should be empty, got %d txs", len(empty.Transactions))
	}
}

func TestAbortBlocksRequiresFullArchive(t *testing.T) {
	s := newTestSequencer()
	if _, err := s.AbortBlocks(1); err != ErrStateArchiveCapacityInsuff {
		t.Fatalf("got %v, want ErrStateArchiveCapacityInsuff", err)
	}
}

func TestAbortBlocksRemovesBlocksAndRejectsReabort(t *testing.T) {
	cfg := testConfig()
	cfg.StateArchive = config.ArchiveCapacityFull
	cfg.BlockGenerationOn = config.BlockGenerationMode{OnDemand: true}
	s := New(cfg, executor.NewFake())

	acc := s.PredeployedAccounts()[0]
	_, _ = s.AdmitTransaction(&txn.Transaction{Kind: txn.Invoke, Sender: acc.Address, Nonce: felt.Zero, ResourceBounds: validResourceBounds()})
	block1 := s.CreateBlock()
	_, _ = s.AdmitTransaction(&txn.Transaction{Kind: txn.Invoke, Sender: acc.Address, Nonce: felt.FromUint64(1), ResourceBounds: validResourceBounds()})
	s.CreateBlock()

	aborted, err := s.AbortBlocks(block1.Number)
	if err != nil {
		t.Fatal(err)
	}
	if len(aborted) != 2 {
		t.Fatalf("aborted %d blocks, want 2", len(aborted))
	}

	latest, _ := s.blocks.Latest()
	if latest.Number != block1.Number-1 {
		t.Fatalf("latest after abort = %d, want %d", latest.Number, block1.Number-1)
	}

	// block1.Number now names the freshly-opened pre-confirmed block (abort
	// rewinds and reuses numbering), so re-aborting a genuinely removed
	// number means targeting the newest of the blocks just aborted.
	if _, err := s.AbortBlocks(aborted[0].Number); err != ErrBlockAlreadyAborted {
		t.Fatalf("re-aborting an already-aborted block should fail, got %v", err)
	}
}

func TestAbortBlocksSealsPreConfirmedTargetFirst(t *testing.T) {
	cfg := testConfig()
	cfg.StateArchive = config.ArchiveCapacityFull
	cfg.BlockGenerationOn = config.BlockGenerationMode{OnDemand: true}
	s := New(cfg, executor.NewFake())

	acc := s.PredeployedAccounts()[0]
	_, _ = s.AdmitTransaction(&txn.Transaction{Kind: txn.Invoke, Sender: acc.Address, Nonce: felt.Zero, ResourceBounds: validResourceBounds()})

	latest, _ := s.blocks.Latest()
	preConfirmedNumber := latest.Number + 1

	aborted, err := s.AbortBlocks(preConfirmedNumber)
	if err != nil {
		t.Fatal(err)
	}
	if len(aborted) != 1 || aborted[0].Number != preConfirmedNumber {
		t.Fatalf("aborted = %+v, want exactly the sealed pre-confirmed block", aborted)
	}
}

func TestAbortBlocksRefusesGenesis(t *testing.T) {
	cfg := testConfig()
	cfg.StateArchive = config.ArchiveCapacityFull
	s := New(cfg, executor.NewFake())
	if _, err := s.AbortBlocks(0); err != ErrCannotAbortGenesis {
		t.Fatalf("got %v, want ErrCannotAbortGenesis", err)
	}
}

func TestAcceptOnL1PromotesAndRejectsDouble(t *testing.T) {
	cfg := testConfig()
	cfg.BlockGenerationOn = config.BlockGenerationMode{OnDemand: true}
	s := New(cfg, executor.NewFake())
	sealed := s.CreateBlock()

	if err := s.AcceptOnL1(sealed.Number); err != nil {
		t.Fatal(err)
	}
	if err := s.AcceptOnL1(sealed.Number); err != ErrBlockAlreadyOnL1 {
		t.Fatalf("got %v, want ErrBlockAlreadyOnL1", err)
	}
}

func TestImpersonateAccountSkipsValidation(t *testing.T) {
	s := newTestSequencer()
	acc := s.PredeployedAccounts()[0]
	s.ImpersonateAccount(acc.Address)

	tx := &txn.Transaction{Kind: txn.Invoke, Sender: acc.Address, Nonce: felt.Zero, ResourceBounds: validResourceBounds()}
	if _, err := s.AdmitTransaction(tx); err != nil {
		t.Fatalf("impersonated sender should bypass validate, got %v", err)
	}

	s.StopImpersonateAccount(acc.Address)
	if s.impersonated[acc.Address] {
		t.Fatal("impersonation flag should be cleared")
	}
}

func TestIncreaseTimeIsAdditive(t *testing.T) {
	cfg := testConfig()
	cfg.BlockGenerationOn = config.BlockGenerationMode{OnDemand: true}
	s := New(cfg, executor.NewFake())

	t1 := s.clock.now()
	s.IncreaseTime(100)
	s.IncreaseTime(100)
	doubled := s.clock.now()

	s2 := New(cfg, executor.NewFake())
	s2.IncreaseTime(200)
	combined := s2.clock.now()

	if doubled < t1+195 || combined < t1+195 {
		t.Fatalf("increaseTime(100) twice should be ~ increaseTime(200): got %d vs %d", doubled, combined)
	}
}

func TestRestartReproducesSameAddresses(t *testing.T) {
	s := newTestSequencer()
	before := s.PredeployedAccounts()
	_, _ = s.Mint(before[0].Address, 1, txn.WEI)

	s.Restart()
	after := s.PredeployedAccounts()

	if len(after) != len(before) {
		t.Fatalf("account count changed across restart")
	}
	for i := range before {
		if before[i].Address.Cmp(after[i].Address) != 0 {
			t.Fatalf("account %d address changed across restart", i)
		}
	}
	bal := s.GetAccountBalance(after[0].Address, txn.WEI)
	if bal.Cmp(felt.FromUint64(1_000_000)) != 0 {
		t.Fatalf("balance after restart = %s, want fresh 1000000 (mint should not survive restart)", bal.Hex())
	}
	latest, _ := s.blocks.Latest()
	if latest.Number != 0 {
		t.Fatalf("latest block after restart = %d, want 0 (genesis)", latest.Number)
	}
}
