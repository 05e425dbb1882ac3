package sequencer

import (
	"github.com/shard-labs/starknet-devnet/blocks"
	"github.com/shard-labs/starknet-devnet/felt"
	"github.com/shard-labs/starknet-devnet/journal"
	"github.com/shard-labs/starknet-devnet/txn"
)

// ImpersonateAccount lets address skip __validate__ on future admissions
// (spec.md §4.E "Impersonation"). Neither this method nor its rpcapi
// handler checks for forked mode; any address can be impersonated.
func (s *Sequencer) ImpersonateAccount(address felt.Felt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.impersonated[address] = true
	s.journal.Append(journal.Entry{Kind: journal.KindImpersonationToggle, Timestamp: s.clock.now(), Impersonation: &journal.ImpersonationPayload{Address: address, Enable: true}})
}

// StopImpersonateAccount reverses ImpersonateAccount. Idempotent.
func (s *Sequencer) StopImpersonateAccount(address felt.Felt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.impersonated, address)
	s.journal.Append(journal.Entry{Kind: journal.KindImpersonationToggle, Timestamp: s.clock.now(), Impersonation: &journal.ImpersonationPayload{Address: address, Enable: false}})
}

// AutoImpersonate turns on impersonation for every sender, known or not.
func (s *Sequencer) AutoImpersonate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoImpersonate = true
	s.journal.Append(journal.Entry{Kind: journal.KindImpersonationToggle, Timestamp: s.clock.now(), Impersonation: &journal.ImpersonationPayload{AutoToggle: true, AutoEnabled: true}})
}

// StopAutoImpersonate turns auto-impersonation back off.
func (s *Sequencer) StopAutoImpersonate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoImpersonate = false
	s.journal.Append(journal.Entry{Kind: journal.KindImpersonationToggle, Timestamp: s.clock.now(), Impersonation: &journal.ImpersonationPayload{AutoToggle: true, AutoEnabled: false}})
}

// SetGasPrice installs a new gas price vector (spec.md §4.E "Gas price
// mutation"). Prices are stamped onto a block when it is sealed, so the new
// vector applies to every block sealed from now on, including the
// pre-confirmed block currently open; already sealed blocks keep theirs.
func (s *Sequencer) SetGasPrice(prices blocks.GasPrices) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gasPrices = prices
	s.journal.Append(journal.Entry{
		Kind:      journal.KindGasPriceChange,
		Timestamp: s.clock.now(),
		GasPrice: &journal.GasPricePayload{
			L1GasWei: feltToUint64(prices.L1GasWei), L1GasFri: feltToUint64(prices.L1GasFri),
			L1DataGasWei: feltToUint64(prices.L1DataGasWei), L1DataGasFri: feltToUint64(prices.L1DataGasFri),
			L2GasWei: feltToUint64(prices.L2GasWei), L2GasFri: feltToUint64(prices.L2GasFri),
		},
	})
}

func feltToUint64(f felt.Felt) uint64 {
	b := f.BigInt()
	if !b.IsUint64() {
		return ^uint64(0)
	}
	return b.Uint64()
}

// SetTime pins the clock to an absolute unix timestamp (devnet_setTime);
// generateBlock optionally seals the current pre-confirmed block with the
// new timestamp in the same call (spec.md §6 devnet_setTime).
func (s *Sequencer) SetTime(t uint64, generateBlock bool) *blocks.Block {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock.setTime(t)
	s.journal.Append(journal.Entry{Kind: journal.KindTimeAdjustment, Timestamp: t, TimeAdjust: &journal.TimeAdjustmentPayload{AbsoluteTime: t, IsAbsolute: true, GenerateBlock: generateBlock}})
	if generateBlock {
		return s.sealLocked()
	}
	return nil
}

// IncreaseTime advances the clock by delta seconds (devnet_increaseTime),
// always sealing the current pre-confirmed block with the new timestamp
// (spec.md §6 devnet_increaseTime).
func (s *Sequencer) IncreaseTime(delta uint64) *blocks.Block {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.increaseTime(delta)
	s.journal.Append(journal.Entry{Kind: journal.KindTimeAdjustment, Timestamp: now, TimeAdjust: &journal.TimeAdjustmentPayload{Delta: delta, GenerateBlock: true}})
	return s.sealLocked()
}

// Restart resets state, blocks, the journal, subscriptions, and the
// messaging bridge back to a fresh genesis, re-deriving the same
// predeployed accounts from the original --seed (spec.md §6
// devnet_restart, §8 S6 "predeployed account still exists at the same
// address").
func (s *Sequencer) Restart() {
	s.mu.Lock()
	defer s.mu.Unlock()

	accountClassHash := felt.FromUint64(0xacc0)
	predeployed := deriveSeedAccounts(s.cfg, accountClassHash)

	freshState, genesisBlock := newGenesisChain(s.cfg, predeployed)
	genesis := freshState.Latest()

	s.state.ResetToGenesis(genesis)
	s.blocks.Reset(genesisBlock)
	s.journal.Reset()
	s.subs.Reset()
	s.bridge.Reset()
	s.clock = newClock(s.cfg.StartTime)
	s.impersonated = make(map[felt.Felt]bool)
	s.autoImpersonate = false
	s.predeployed = predeployed
	s.receipts = make(map[felt.Felt]*txn.Receipt)
}
