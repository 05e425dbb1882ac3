package executor

import (
	"github.com/shard-labs/starknet-devnet/classes"
	"github.com/shard-labs/starknet-devnet/felt"
	"github.com/shard-labs/starknet-devnet/state"
	"github.com/shard-labs/starknet-devnet/txn"
)

// RevertSentinel is a calldata value that deterministically forces a
// REVERTED outcome from Fake, used by tests and by operators exercising
// the revert path without a real Cairo VM (spec.md §1 treats the VM as an
// external black box; Fake stands in for it in this module).
var RevertSentinel = felt.FromUint64(0xdead)

// Fake is a deterministic, non-cryptographic stand-in for the real Cairo
// VM executor. It does not interpret Sierra/CASM bytecode; it derives a
// plausible state diff, fee, and trace directly from the transaction's
// own fields so that the sequencer's admission pipeline (spec.md §4.E)
// can be exercised end to end without the real VM.
type Fake struct{}

// NewFake constructs a Fake executor.
func NewFake() *Fake { return &Fake{} }

func (f *Fake) Validate(tx *txn.Transaction, snap *state.Snapshot, classReg *classes.Registry) (ValidationResult, error) {
	for _, c := range tx.Calldata {
		if c.Cmp(RevertSentinel) == 0 {
			return ValidationResult{Valid: false, Reason: "validation failed: sentinel calldata"}, nil
		}
	}
	return ValidationResult{Valid: true}, nil
}

func (f *Fake) Execute(tx *txn.Transaction, snap *state.Snapshot, classReg *classes.Registry, ctx BlockContext) (ExecutionOutcome, error) {
	fee := f.fee(tx, ctx)

	for _, c := range tx.Calldata {
		if c.Cmp(RevertSentinel) == 0 {
			return ExecutionOutcome{
				Reverted:     true,
				RevertReason: "execution reverted: sentinel calldata",
				ConsumedFee:  fee.OverallFee,
			}, nil
		}
	}

	if overflowed(tx) {
		return ExecutionOutcome{
			Reverted:     true,
			RevertReason: "resource bounds exceeded",
			ConsumedFee:  fee.OverallFee,
		}, nil
	}

	diff := state.NewDiff()
	sender := tx.EffectiveSender()
	if !tx.IsL1Handler() {
		diff.Nonces[sender] = felt.FromUint64(currentNonce(snap, sender) + 1)
	}

	switch tx.Kind {
	case txn.Declare:
		diff.DeclaredClasses = append(diff.DeclaredClasses, tx.ClassHash)
	case txn.DeployAccount:
		diff.ClassHashes[tx.Recipient] = tx.ClassHash
		diff.Nonces[tx.Recipient] = felt.Zero
	}

	var events []txn.Event
	if len(tx.Calldata) > 0 {
		events = append(events, txn.Event{
			FromAddress: tx.EffectiveSender(),
			Keys:        []felt.Felt{felt.FromUint64(uint64(tx.Kind))},
			Data:        tx.Calldata,
		})
	}

	return ExecutionOutcome{
		Diff:      diff,
		Events:    events,
		Trace:     Trace{FunctionInvocations: []string{tx.Kind.String()}, ResourceUsage: map[string]uint64{"l2_gas": fee.GasConsumed}},
		ActualFee: fee.OverallFee,
	}, nil
}

func (f *Fake) EstimateFee(tx *txn.Transaction, snap *state.Snapshot, classReg *classes.Registry, ctx BlockContext) (FeeEstimate, error) {
	return f.fee(tx, ctx), nil
}

func (f *Fake) Simulate(tx *txn.Transaction, snap *state.Snapshot, classReg *classes.Registry, ctx BlockContext, flags SimulationFlags) (Trace, ExecutionOutcome, error) {
	if !flags.SkipValidate {
		if v, _ := f.Validate(tx, snap, classReg); !v.Valid {
			return Trace{}, ExecutionOutcome{Reverted: true, RevertReason: v.Reason}, nil
		}
	}
	outcome, err := f.Execute(tx, snap, classReg, ctx)
	if err != nil {
		return Trace{}, ExecutionOutcome{}, err
	}
	return outcome.Trace, outcome, nil
}

// fee derives a fee estimate from the transaction's resource bounds: the
// sum of each resource's declared max amount times its declared max unit
// price. This is a placeholder cost model (spec.md §1 treats real fee
// computation as internal to the VM), but it is stable and monotonic in
// the bounds the caller supplied, which is what the admission pipeline's
// balance check depends on.
func (f *Fake) fee(tx *txn.Transaction, ctx BlockContext) FeeEstimate {
	total := felt.Zero
	gas := uint64(0)
	for _, rb := range []txn.ResourceBound{tx.ResourceBounds.L1Gas, tx.ResourceBounds.L1DataGas, tx.ResourceBounds.L2Gas} {
		contribution := mulFeltByUint64(rb.MaxPricePerUnit, rb.MaxAmount)
		total = total.Add(contribution)
		gas += rb.MaxAmount
	}
	return FeeEstimate{
		GasConsumed: gas,
		GasPrice:    tx.ResourceBounds.L2Gas.MaxPricePerUnit,
		OverallFee:  total,
		Unit:        tx.FeeUnit,
	}
}

func mulFeltByUint64(price felt.Felt, amount uint64) felt.Felt {
	acc := felt.Zero
	unit := price
	// Binary multiplication via repeated doubling keeps this within Felt's
	// modular arithmetic without needing a dedicated Mul on the type.
	for amount > 0 {
		if amount&1 == 1 {
			acc = acc.Add(unit)
		}
		unit = unit.Add(unit)
		amount >>= 1
	}
	return acc
}

func currentNonce(snap *state.Snapshot, addr felt.Felt) uint64 {
	n := snap.GetNonce(addr)
	return n.BigInt().Uint64()
}

func overflowed(tx *txn.Transaction) bool {
	return tx.ResourceBounds.L2Gas.MaxAmount == 0 && tx.Kind != txn.L1Handler
}
