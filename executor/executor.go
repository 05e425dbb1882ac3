// Package executor defines the VM executor adapter (spec.md §4.D, §6): a
// black-box capability set consumed by the sequencer, with a deterministic
// contract over (state, tx, block_ctx). The real Cairo VM is an external
// collaborator (spec.md §1 Non-goals); this package defines the interface
// the sequencer programs against plus a fake implementation usable in
// tests and as a development stand-in, grounded on the teacher's adapter
// shape for core/block_executor.go (small interface, explicit outcome
// values instead of exceptions).
package executor

import (
	"errors"

	"github.com/shard-labs/starknet-devnet/classes"
	"github.com/shard-labs/starknet-devnet/felt"
	"github.com/shard-labs/starknet-devnet/state"
	"github.com/shard-labs/starknet-devnet/txn"
)

// BlockContext carries the per-block parameters a transaction executes
// against (spec.md §6).
type BlockContext struct {
	Number           uint64
	Timestamp        uint64
	SequencerAddress felt.Felt
	ChainID          string
	GasPrices        [3]felt.Felt // L1Gas, L1DataGas, L2Gas, in the fee's unit
}

// SimulationFlags toggles optional simulation behaviors for simulate()
// (spec.md §6).
type SimulationFlags struct {
	SkipValidate bool
	SkipFeeCharge bool
}

// ValidationResult is the outcome of validate().
type ValidationResult struct {
	Valid  bool
	Reason string
}

// ExecutionOutcome is the sum-typed result of execute(): exactly one of
// Success or Reverted is populated, matching spec.md §7's policy that
// executor-level reverts are carried as values, never Go errors.
type ExecutionOutcome struct {
	Reverted bool

	// Populated when Reverted == false.
	Diff       *state.Diff
	Events     []txn.Event
	MessagesL1 []txn.MessageToL1
	Trace      Trace
	ActualFee  felt.Felt

	// Populated when Reverted == true.
	RevertReason string
	ConsumedFee  felt.Felt
}

// FeeEstimate is the result of estimate_fee().
type FeeEstimate struct {
	GasConsumed     uint64
	GasPrice        felt.Felt
	DataGasConsumed uint64
	DataGasPrice    felt.Felt
	OverallFee      felt.Felt
	Unit            txn.FeeUnit
}

// Trace is a minimal execution trace, enough to satisfy
// starknet_simulateTransactions / starknet_traceTransaction shapes without
// committing to the full official trace schema (spec.md §6 is silent on
// trace internals beyond "produces ... a trace").
type Trace struct {
	FunctionInvocations []string
	ResourceUsage       map[string]uint64
}

// ErrResourceOverflow names the case of insufficient resource bounds
// (spec.md §4.D "Resource overflow"). Fake does not return it: it reports
// that case as a Reverted outcome with reason "resource bounds exceeded".
var ErrResourceOverflow = errors.New("executor: resource bounds exceeded")

// Executor is the capability set the sequencer programs against
// (spec.md §6). Implementations must be deterministic given
// (state, tx, block_ctx) and must not retain references to the supplied
// snapshot beyond the call.
type Executor interface {
	Validate(tx *txn.Transaction, snap *state.Snapshot, classReg *classes.Registry) (ValidationResult, error)
	Execute(tx *txn.Transaction, snap *state.Snapshot, classReg *classes.Registry, ctx BlockContext) (ExecutionOutcome, error)
	EstimateFee(tx *txn.Transaction, snap *state.Snapshot, classReg *classes.Registry, ctx BlockContext) (FeeEstimate, error)
	Simulate(tx *txn.Transaction, snap *state.Snapshot, classReg *classes.Registry, ctx BlockContext, flags SimulationFlags) (Trace, ExecutionOutcome, error)
}
