package sequencer

import (
	"encoding/json"
	"fmt"

	"github.com/shard-labs/starknet-devnet/blocks"
	"github.com/shard-labs/starknet-devnet/felt"
	"github.com/shard-labs/starknet-devnet/journal"
	"github.com/shard-labs/starknet-devnet/txn"
)

func gasPricesFromPayload(p journal.GasPricePayload) blocks.GasPrices {
	return blocks.GasPrices{
		L1GasWei:     felt.FromUint64(p.L1GasWei),
		L1GasFri:     felt.FromUint64(p.L1GasFri),
		L1DataGasWei: felt.FromUint64(p.L1DataGasWei),
		L1DataGasFri: felt.FromUint64(p.L1DataGasFri),
		L2GasWei:     felt.FromUint64(p.L2GasWei),
		L2GasFri:     felt.FromUint64(p.L2GasFri),
	}
}

// replayLocked re-applies one journaled action against current state
// (devnet_load, spec.md §4.H). Acquires the writer lock itself; callers
// must not hold s.mu.
func (s *Sequencer) replayLocked(e journal.Entry) error {
	switch e.Kind {
	case journal.KindTransaction:
		if e.Transaction == nil {
			return fmt.Errorf("sequencer: replay: missing transaction payload")
		}
		var tx txn.Transaction
		if err := json.Unmarshal(e.Transaction.RawTransactionJSON, &tx); err != nil {
			return fmt.Errorf("sequencer: replay: decode transaction: %w", err)
		}
		s.mu.Lock()
		_, err := s.admitLocked(&tx, false)
		s.mu.Unlock()
		return err

	case journal.KindGasPriceChange:
		if e.GasPrice == nil {
			return nil
		}
		s.SetGasPrice(gasPricesFromPayload(*e.GasPrice))
		return nil

	case journal.KindImpersonationToggle:
		if e.Impersonation == nil {
			return nil
		}
		p := *e.Impersonation
		switch {
		case p.AutoToggle && p.AutoEnabled:
			s.AutoImpersonate()
		case p.AutoToggle && !p.AutoEnabled:
			s.StopAutoImpersonate()
		case p.Enable:
			s.ImpersonateAccount(p.Address)
		default:
			s.StopImpersonateAccount(p.Address)
		}
		return nil

	case journal.KindCreateBlock:
		s.CreateBlock()
		return nil

	case journal.KindTimeAdjustment:
		if e.TimeAdjust == nil {
			return nil
		}
		p := *e.TimeAdjust
		if p.IsAbsolute {
			s.SetTime(p.AbsoluteTime, p.GenerateBlock)
		} else {
			s.IncreaseTime(p.Delta)
		}
		return nil

	case journal.KindMessagingContractLoaded:
		if e.Messaging == nil {
			return nil
		}
		s.LoadMessagingContract(e.Messaging.NetworkURL, e.Messaging.Address)
		return nil

	case journal.KindMint:
		if e.Mint == nil {
			return nil
		}
		_, err := s.Mint(e.Mint.Address, e.Mint.Amount, txn.FeeUnit(e.Mint.Unit))
		return err

	default:
		return nil
	}
}
