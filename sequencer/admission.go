package sequencer

import (
	"encoding/json"

	"github.com/shard-labs/starknet-devnet/executor"
	"github.com/shard-labs/starknet-devnet/felt"
	"github.com/shard-labs/starknet-devnet/journal"
	"github.com/shard-labs/starknet-devnet/state"
	"github.com/shard-labs/starknet-devnet/txn"
)

// AdmitTransaction runs the full admission sequence of spec.md §4.E for a
// user-submitted transaction and returns its receipt. Every step runs
// under the single writer lock.
func (s *Sequencer) AdmitTransaction(tx *txn.Transaction) (*txn.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.admitLocked(tx, true)
}

// admitLocked is the admission sequence with the writer lock already
// held; replay (sequencer/replay.go) calls it directly with
// journaled=false so re-admitted transactions are not journaled again.
func (s *Sequencer) admitLocked(tx *txn.Transaction, journaled bool) (*txn.Receipt, error) {
	sender := tx.EffectiveSender()
	pre := s.state.PreConfirmed()

	// Step 1-2: nonce check (L1Handler nonces are bridge-assigned, not
	// sequencer-checked).
	if !tx.IsL1Handler() {
		expected := pre.GetNonce(sender)
		if tx.Nonce.Cmp(expected) != 0 {
			return nil, ErrInvalidTransactionNonce
		}
	}

	impersonated := s.impersonated[sender] || s.autoImpersonate

	ctx := executor.BlockContext{
		Number:           s.blocks.PreConfirmed().Number,
		Timestamp:        s.clock.now(),
		SequencerAddress: felt.Zero,
		ChainID:          s.cfg.ChainID,
	}

	// Step 3: balance check (skipped for L1Handler, which has no
	// sender-side fee).
	var feeEstimate executor.FeeEstimate
	if !tx.IsL1Handler() {
		var err error
		feeEstimate, err = s.executor.EstimateFee(tx, pre, s.classes, ctx)
		if err != nil {
			return nil, err
		}
		balance := pre.GetStorage(feeTokenFor(tx.FeeUnit), sender)
		if balance.Cmp(feeEstimate.OverallFee) < 0 {
			return nil, ErrInsufficientAccountBalance
		}
	}

	// Step 4: validation, skipped for impersonated accounts and L1Handler.
	if tx.RequiresValidation() && !impersonated {
		v, err := s.executor.Validate(tx, pre, s.classes)
		if err != nil {
			return nil, err
		}
		if !v.Valid {
			return nil, ErrValidationFailure
		}
	}

	// Step 4 (continued): execution.
	outcome, err := s.executor.Execute(tx, pre, s.classes, ctx)
	if err != nil {
		return nil, err
	}

	receipt := &txn.Receipt{
		TransactionHash: tx.Hash(),
		BlockNumber:     ctx.Number,
		FeeUnit:         tx.FeeUnit,
	}

	// Step 5: apply diff on success; charge consumed fee either way.
	if outcome.Reverted {
		receipt.ExecutionStatus = txn.Reverted
		receipt.RevertReason = outcome.RevertReason
		receipt.ActualFee = outcome.ConsumedFee
		if !tx.IsL1Handler() {
			// The execution diff is discarded, but the nonce still advances.
			bump := state.NewDiff()
			bump.Nonces[sender] = pre.GetNonce(sender).Add(felt.FromUint64(1))
			if err := s.state.ApplyToPreConfirmed(bump); err != nil {
				return nil, err
			}
			s.chargeFeeLocked(sender, tx.FeeUnit, outcome.ConsumedFee)
		}
	} else {
		receipt.ExecutionStatus = txn.Succeeded
		receipt.ActualFee = outcome.ActualFee
		receipt.Events = outcome.Events
		receipt.Messages = outcome.MessagesL1
		if err := s.state.ApplyToPreConfirmed(outcome.Diff); err != nil {
			return nil, err
		}
		if !tx.IsL1Handler() {
			s.chargeFeeLocked(sender, tx.FeeUnit, outcome.ActualFee)
		}
		for _, m := range outcome.MessagesL1 {
			s.bridge.EnqueueL2ToL1(m)
		}
	}
	receipt.FinalityStatus = txn.PreConfirmed

	// Step 6: append to the pre-confirmed block.
	s.blocks.AppendToPreConfirmed(receipt.TransactionHash)
	s.blocks.AppendEventsToPreConfirmed(receipt.Events)
	s.receipts[receipt.TransactionHash] = receipt

	// Step 7: journal entry.
	if journaled {
		s.journal.Append(journal.Entry{
			Kind:      journal.KindTransaction,
			Timestamp: ctx.Timestamp,
			Transaction: &journal.TransactionPayload{
				RawTransactionJSON: encodeTxPlaceholder(tx),
			},
		})
	}

	// Step 8: subscription notifications.
	s.subs.NotifyPendingTransaction(receipt.TransactionHash)
	s.notifyStatus(receipt.TransactionHash, receipt.ExecutionStatus, receipt.FinalityStatus)
	for _, e := range receipt.Events {
		s.subs.NotifyEvent(e, e.FromAddress, e.Keys)
	}

	// Step 9: seal immediately in `transaction` regime.
	if s.cfg.BlockGenerationOn.OnTransaction {
		s.sealLocked()
	}

	return receipt, nil
}

// chargeFeeLocked deducts fee from sender's balance, floored at zero
// (a balance insufficient to cover a successful execution's actual fee
// should not happen given the pre-check, but REVERTED consumed_fee can
// legitimately exceed what a generous fee-estimate check let through in
// edge cases, so this is defensive against going negative in Felt's
// unsigned representation).
func (s *Sequencer) chargeFeeLocked(sender felt.Felt, unit txn.FeeUnit, fee felt.Felt) {
	token := feeTokenFor(unit)
	pre := s.state.PreConfirmed()
	balance := pre.GetStorage(token, sender)
	var newBalance felt.Felt
	if balance.Cmp(fee) >= 0 {
		newBalance = balance.Sub(fee)
	} else {
		newBalance = felt.Zero
	}
	diff := state.NewDiff()
	diff.Storage[state.StorageKey{Address: token, Key: sender}] = newBalance
	_ = s.state.ApplyToPreConfirmed(diff)
}

// encodeTxPlaceholder serializes tx for the action journal's
// TransactionPayload, enough to re-admit it on replay (journal.Load).
func encodeTxPlaceholder(tx *txn.Transaction) []byte {
	raw, err := json.Marshal(tx)
	if err != nil {
		return []byte("{}")
	}
	return raw
}
