package sequencer

import (
	"time"

	"github.com/shard-labs/starknet-devnet/blocks"
	"github.com/shard-labs/starknet-devnet/config"
	"github.com/shard-labs/starknet-devnet/felt"
	"github.com/shard-labs/starknet-devnet/journal"
	"github.com/shard-labs/starknet-devnet/subscriptions"
	"github.com/shard-labs/starknet-devnet/txn"
)

// sealLocked transitions the pre-confirmed block and state overlay into
// sealed, immutable layers, assigns a block hash per the lite/full mode,
// transitions every contained transaction's finality status to
// ACCEPTED_ON_L2, and opens fresh pre-confirmed layers on top. Must be
// called with s.mu held (spec.md §4.E "Sealing").
func (s *Sequencer) sealLocked() *blocks.Block {
	pending := s.blocks.PreConfirmed()

	var hash felt.Felt
	if s.cfg.LiteMode {
		hash = blocks.LiteHash(pending.Number)
	} else {
		parentHash := felt.Zero
		if pending.Number > 0 {
			if parent, err := s.blocks.ByNumber(pending.Number - 1); err == nil {
				parentHash = parent.Hash
			}
		}
		hash = blocks.FullHash(&blocks.Block{
			Number:           pending.Number,
			ParentHash:       parentHash,
			Timestamp:        s.clock.now(),
			SequencerAddress: felt.Zero,
			Transactions:     pending.Transactions,
		})
	}

	sealedSnap := s.state.Seal()
	sealed := s.blocks.Seal(hash, s.clock.now(), felt.Zero, s.gasPrices, sealedSnap.ID())

	for _, txHash := range sealed.Transactions {
		if r, ok := s.receipts[txHash]; ok {
			r.FinalityStatus = txn.AcceptedOnL2
			s.notifyStatus(txHash, r.ExecutionStatus, txn.AcceptedOnL2)
		} else {
			s.notifyStatus(txHash, txn.Succeeded, txn.AcceptedOnL2)
		}
	}
	s.subs.NotifyNewHeads(blockHeaderView(sealed))
	return sealed
}

// CreateBlock explicitly seals the pre-confirmed block (devnet_createBlock,
// spec.md §4.E), valid in the demand and interval regimes; an empty
// pre-confirmed block is sealed as-is rather than rejected.
func (s *Sequencer) CreateBlock() *blocks.Block {
	s.mu.Lock()
	defer s.mu.Unlock()
	sealed := s.sealLocked()
	s.journal.Append(journal.Entry{Kind: journal.KindCreateBlock, Timestamp: s.clock.now(), CreateBlock: &struct{}{}})
	return sealed
}

// startIntervalSealer launches the interval-regime sealing goroutine: it
// seals on a fixed tick, and is unaffected by explicit CreateBlock calls
// in between (spec.md §4.E "interval regime, explicit createBlock calls
// between ticks do not reset the timer").
func (s *Sequencer) startIntervalSealer(intervalSecs uint64) {
	s.intervalStop = make(chan struct{})
	ticker := time.NewTicker(time.Duration(intervalSecs) * time.Second)
	stop := s.intervalStop
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.mu.Lock()
				s.sealLocked()
				s.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

// Shutdown stops the interval sealer goroutine, if one is running.
func (s *Sequencer) Shutdown() {
	s.mu.Lock()
	stop := s.intervalStop
	s.intervalStop = nil
	s.mu.Unlock()
	if stop != nil {
		close(stop)
	}
}

// AbortBlocks removes startingBlockNumber and every block above it
// (spec.md §4.E "Abortion"). Requires full state archive, refuses to
// touch genesis or a block in the forking origin, and fails if the
// target is already aborted or unknown. If the target is the currently
// pre-confirmed block, it is sealed first, then aborted.
func (s *Sequencer) AbortBlocks(startingBlockNumber uint64) ([]*blocks.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.StateArchive != config.ArchiveCapacityFull {
		return nil, ErrStateArchiveCapacityInsuff
	}
	genesisNumber := uint64(0)
	if s.cfg.ForkNetwork != "" {
		genesisNumber = s.cfg.ForkBlock + 1
	}
	if startingBlockNumber == genesisNumber {
		return nil, ErrCannotAbortGenesis
	}
	if s.cfg.ForkNetwork != "" && startingBlockNumber <= s.cfg.ForkBlock {
		return nil, ErrCannotAbortOriginBlock
	}
	latest, err := s.blocks.Latest()
	if err != nil {
		return nil, err
	}
	if startingBlockNumber == latest.Number+1 {
		// The target is the currently pre-confirmed block: seal it first,
		// then abort the now-sealed block (spec.md §4.E "Abortion").
		latest = s.sealLocked()
	} else if startingBlockNumber > latest.Number {
		return nil, ErrBlockAlreadyAborted
	}
	target, err := s.blocks.ByNumber(startingBlockNumber)
	if err != nil || target.Status == blocks.StatusAborted {
		return nil, ErrBlockAlreadyAborted
	}

	for n := latest.Number; n >= startingBlockNumber; n-- {
		s.state.Rewind()
		if n == 0 {
			break
		}
	}
	aborted := s.blocks.Abort(startingBlockNumber)

	var startHash, endHash felt.Felt
	endingNumber := startingBlockNumber
	if len(aborted) > 0 {
		startHash = aborted[len(aborted)-1].Hash
		endHash = aborted[0].Hash
		endingNumber = aborted[0].Number
	}
	s.subs.NotifyReorg(subscriptions.ReorgResult{
		StartingBlockHash:   startHash,
		StartingBlockNumber: startingBlockNumber + 1,
		EndingBlockHash:     endHash,
		EndingBlockNumber:   endingNumber,
	})
	return aborted, nil
}

// AcceptOnL1 promotes startingBlockNumber and every sealed block below it
// to ACCEPTED_ON_L1 (spec.md §4.E "L1 promotion").
func (s *Sequencer) AcceptOnL1(startingBlockNumber uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	latest, err := s.blocks.Latest()
	if err != nil {
		return err
	}
	if startingBlockNumber > latest.Number {
		return ErrBlockNotOnL2
	}
	target, err := s.blocks.ByNumber(startingBlockNumber)
	if err != nil {
		return ErrBlockNotOnL2
	}
	if target.Status == blocks.StatusAcceptedOnL1 {
		return ErrBlockAlreadyOnL1
	}
	s.blocks.PromoteToL1(startingBlockNumber, 0)
	return nil
}

func blockHeaderView(b *blocks.Block) map[string]any {
	return map[string]any{
		"block_number": b.Number,
		"block_hash":   b.Hash.Hex(),
		"timestamp":    b.Timestamp,
	}
}
