// Package sequencer implements the single-writer hot path (spec.md §4.E):
// it admits transactions, drives the executor, appends to the
// pre-confirmed block, seals blocks under one of three regimes, and
// handles abortion and L1 promotion. Every mutation goes through one
// exclusive lock, matching spec.md §5 "Writer discipline". Grounded on
// the teacher's txpool.go admission-gate shape (nonce/balance checks
// before acceptance) fused with core/blockchain.go's sealing loop
// (assign number+hash, move pending to canonical, open next).
package sequencer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shard-labs/starknet-devnet/blocks"
	"github.com/shard-labs/starknet-devnet/classes"
	"github.com/shard-labs/starknet-devnet/config"
	"github.com/shard-labs/starknet-devnet/executor"
	"github.com/shard-labs/starknet-devnet/felt"
	"github.com/shard-labs/starknet-devnet/fork"
	"github.com/shard-labs/starknet-devnet/journal"
	"github.com/shard-labs/starknet-devnet/log"
	"github.com/shard-labs/starknet-devnet/messaging"
	"github.com/shard-labs/starknet-devnet/state"
	"github.com/shard-labs/starknet-devnet/subscriptions"
	"github.com/shard-labs/starknet-devnet/txn"
)

// Admission-level errors (spec.md §7 "RPC-spec errors" / "Devnet
// operational errors"), surfaced as RPC errors rather than REVERTED
// receipts.
var (
	ErrInvalidTransactionNonce      = errors.New("sequencer: INVALID_TRANSACTION_NONCE")
	ErrInsufficientAccountBalance   = errors.New("sequencer: INSUFFICIENT_ACCOUNT_BALANCE")
	ErrValidationFailure            = errors.New("sequencer: VALIDATION_FAILURE")
	ErrStateArchiveCapacityInsuff   = errors.New("sequencer: STATE_ARCHIVE_CAPACITY_INSUFFICIENT")
	ErrBlockAlreadyAborted          = errors.New("sequencer: BLOCK_ALREADY_ABORTED")
	ErrCannotAbortOriginBlock       = errors.New("sequencer: CANNOT_ABORT_ORIGIN_BLOCK")
	ErrCannotAbortGenesis           = errors.New("sequencer: CANNOT_ABORT_GENESIS")
	ErrBlockNotOnL2                 = errors.New("sequencer: BLOCK_NOT_ON_L2")
	ErrBlockAlreadyOnL1             = errors.New("sequencer: BLOCK_ALREADY_ON_L1")
)

// FeeTokenETH and FeeTokenSTRK are the addresses of the two fee token
// contracts Devnet predeploys at genesis: Starknet's well-known ETH and
// STRK token addresses, written in as fixed constants.
var (
	FeeTokenETH  = felt.MustFromHex("0x49d36570d4e46f48e99674bd3fcc84644ddd6b96f7c741b1562b82f9e004dc7")
	FeeTokenSTRK = felt.MustFromHex("0x4718f5a0fc34cc1af16a1cdee98ffb20c31f5cd61d6ab07201858f4287c938d")
)

// Sequencer owns the single logical writer and coordinates A-D, G, H, I.
type Sequencer struct {
	mu sync.Mutex

	cfg config.Config

	state    *state.Store
	blocks   *blocks.Store
	classes  *classes.Registry
	executor executor.Executor
	bridge   *messaging.Bridge
	journal  *journal.Log
	subs     *subscriptions.Hub
	clock    *clock
	logger   *log.Logger

	gasPrices       blocks.GasPrices
	impersonated    map[felt.Felt]bool
	autoImpersonate bool

	predeployed []PredeployedAccount

	receipts map[felt.Felt]*txn.Receipt

	origin *fork.Reader

	// intervalStop, when non-nil, cancels the interval-regime sealing
	// timer goroutine on Shutdown.
	intervalStop chan struct{}
}

// New constructs a Sequencer at genesis: predeploys cfg.Accounts seed
// accounts with cfg.InitialBalance on both the ETH and STRK fee tokens, and opens the
// first pre-confirmed block.
func New(cfg config.Config, exec executor.Executor) *Sequencer {
	classReg := classes.New(nil)
	accountClassHash := felt.FromUint64(0xacc0)
	_ = classReg.Declare(accountClassHash, &classes.Artifact{Kind: classes.Sierra, Raw: []byte("predeployed-account")})

	predeployed := deriveSeedAccounts(cfg, accountClassHash)
	stateStore, genesisBlock := newGenesisChain(cfg, predeployed)

	forkCfg := fork.Config{OriginURL: cfg.ForkNetwork, PinnedBlock: cfg.ForkBlock, CacheEnabled: cfg.ForkUpstreamCaching}
	var upstream fork.UpstreamRPC
	if forkCfg.Enabled() {
		upstream = fork.NewHTTPUpstream(cfg.ForkNetwork, time.Duration(cfg.Timeout)*time.Second)
	}

	s := &Sequencer{
		cfg:          cfg,
		state:        stateStore,
		blocks:       blocks.NewStore(genesisBlock),
		classes:      classReg,
		executor:     exec,
		bridge:       messaging.New(),
		journal:      journal.New(),
		subs:         subscriptions.New(),
		clock:        newClock(cfg.StartTime),
		logger:       log.Default().Module("sequencer"),
		impersonated: make(map[felt.Felt]bool),
		predeployed:  predeployed,
		receipts:     make(map[felt.Felt]*txn.Receipt),
		origin:       fork.New(forkCfg, upstream),
		gasPrices: blocks.GasPrices{
			L1GasWei:     felt.FromUint64(cfg.GasPrices.L1GasWei),
			L1GasFri:     felt.FromUint64(cfg.GasPrices.L1GasFri),
			L1DataGasWei: felt.FromUint64(cfg.GasPrices.L1DataGasWei),
			L1DataGasFri: felt.FromUint64(cfg.GasPrices.L1DataGasFri),
			L2GasWei:     felt.FromUint64(cfg.GasPrices.L2GasWei),
			L2GasFri:     felt.FromUint64(cfg.GasPrices.L2GasFri),
		},
	}

	if mode := cfg.BlockGenerationOn; !mode.OnTransaction && !mode.OnDemand && mode.IntervalSecs > 0 {
		s.startIntervalSealer(mode.IntervalSecs)
	}
	return s
}

func toArchiveMode(a config.ArchiveCapacity) state.ArchiveMode {
	if a == config.ArchiveCapacityFull {
		return state.ArchiveFull
	}
	return state.ArchiveNone
}

// newGenesisChain builds a fresh state store (with the fee tokens and
// predeployed account balances already sealed into its first snapshot)
// and the matching genesis block. Shared by New and Restart so a restart
// reproduces byte-for-byte the same genesis a fresh process would have
// built with the same --seed (spec.md §8 S6).
func newGenesisChain(cfg config.Config, predeployed []PredeployedAccount) (*state.Store, *blocks.Block) {
	stateStore := state.NewStore(toArchiveMode(cfg.StateArchive), nil)

	genesisDiff := state.NewDiff()
	genesisDiff.ClassHashes[FeeTokenETH] = felt.FromUint64(0xfee0)
	genesisDiff.ClassHashes[FeeTokenSTRK] = felt.FromUint64(0xfee1)
	for _, acc := range predeployed {
		genesisDiff.ClassHashes[acc.Address] = acc.ClassHash
		genesisDiff.Nonces[acc.Address] = felt.Zero
		genesisDiff.Storage[state.StorageKey{Address: FeeTokenETH, Key: acc.Address}] = felt.FromUint64(acc.Balance)
		genesisDiff.Storage[state.StorageKey{Address: FeeTokenSTRK, Key: acc.Address}] = felt.FromUint64(acc.Balance)
	}
	if err := stateStore.ApplyToPreConfirmed(genesisDiff); err != nil {
		panic(fmt.Sprintf("sequencer: genesis diff rejected: %v", err))
	}
	sealedGenesis := stateStore.Seal()

	// The pinned fork block is the conceptual parent of genesis; local
	// block numbering starts at (pinned + 1) when forking (spec.md §3
	// "Fork config").
	var genesisNumber uint64
	if cfg.ForkNetwork != "" {
		genesisNumber = cfg.ForkBlock + 1
	}

	genesisBlock := &blocks.Block{Number: genesisNumber, Hash: blocks.LiteHash(genesisNumber), Timestamp: cfg.StartTime, SnapshotID: sealedGenesis.ID()}
	return stateStore, genesisBlock
}

// PredeployedAccounts returns the seed-derived accounts (devnet_getPredeployedAccounts).
func (s *Sequencer) PredeployedAccounts() []PredeployedAccount {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PredeployedAccount, len(s.predeployed))
	copy(out, s.predeployed)
	return out
}

func feeTokenFor(unit txn.FeeUnit) felt.Felt {
	if unit == txn.FRI {
		return FeeTokenSTRK
	}
	return FeeTokenETH
}

// GetAccountBalance returns the current balance of address in the given
// fee token.
func (s *Sequencer) GetAccountBalance(address felt.Felt, unit txn.FeeUnit) felt.Felt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.PreConfirmed().GetStorage(feeTokenFor(unit), address)
}

// Mint credits address with amount on the given fee token by directly
// admitting a synthetic Invoke transaction against the fee token contract
// (spec.md §8 S1 "a block ... containing exactly one Invoke on the ETH
// fee token contract"). Mint bypasses the signature/nonce/balance checks
// of AdmitTransaction since it is an operator action, not a user-signed
// transaction.
func (s *Sequencer) Mint(address felt.Felt, amount uint64, unit txn.FeeUnit) (felt.Felt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token := feeTokenFor(unit)
	current := s.state.PreConfirmed().GetStorage(token, address)
	newBalance := current.Add(felt.FromUint64(amount))

	diff := state.NewDiff()
	diff.Storage[state.StorageKey{Address: token, Key: address}] = newBalance
	if err := s.state.ApplyToPreConfirmed(diff); err != nil {
		return felt.Felt{}, err
	}

	tx := &txn.Transaction{
		Kind:      txn.Invoke,
		Sender:    token,
		Recipient: token,
		Calldata:  []felt.Felt{address, felt.FromUint64(amount)},
	}
	hash := tx.Hash()

	s.blocks.AppendToPreConfirmed(hash)
	events := []txn.Event{{FromAddress: token, Keys: []felt.Felt{felt.FromUint64(uint64(txn.Invoke))}, Data: []felt.Felt{address, felt.FromUint64(amount)}}}
	s.blocks.AppendEventsToPreConfirmed(events)
	s.receipts[hash] = &txn.Receipt{
		TransactionHash: hash,
		BlockNumber:     s.blocks.PreConfirmed().Number,
		ExecutionStatus: txn.Succeeded,
		FinalityStatus:  txn.PreConfirmed,
		FeeUnit:         unit,
		Events:          events,
	}

	s.journal.Append(journal.Entry{Kind: journal.KindMint, Timestamp: s.clock.now(), Mint: &journal.MintPayload{Address: address, Amount: amount, Unit: uint8(unit)}})

	s.subs.NotifyPendingTransaction(hash)
	s.notifyStatus(hash, txn.Succeeded, txn.PreConfirmed)

	if s.cfg.BlockGenerationOn.OnTransaction {
		s.sealLocked()
	}
	return hash, nil
}

func (s *Sequencer) notifyStatus(txHash felt.Felt, exec txn.ExecutionStatus, fin txn.FinalityStatus) {
	s.subs.NotifyTransactionStatus(map[string]any{
		"transaction_hash": txHash.Hex(),
		"execution_status":  exec.String(),
		"finality_status":   fin.String(),
	})
}
