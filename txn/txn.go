// Package txn defines the Starknet transaction sum type and the status
// lifecycle it moves through, matching spec.md §3's data model. Variants
// are modeled as one struct with a Kind tag rather than an interface
// hierarchy, per the "avoid virtual dispatch in the hot executor path"
// design note in spec.md §9: the executor matches on Kind and inlines.
package txn

import (
	"github.com/shard-labs/starknet-devnet/felt"
)

// Kind identifies which of the four transaction variants a Transaction is.
type Kind int

const (
	Invoke Kind = iota
	Declare
	DeployAccount
	L1Handler
)

func (k Kind) String() string {
	switch k {
	case Invoke:
		return "INVOKE"
	case Declare:
		return "DECLARE"
	case DeployAccount:
		return "DEPLOY_ACCOUNT"
	case L1Handler:
		return "L1_HANDLER"
	default:
		return "UNKNOWN"
	}
}

// FeeUnit names the currency a transaction's resource bounds are
// denominated in.
type FeeUnit int

const (
	WEI FeeUnit = iota // ETH fee token
	FRI                // STRK fee token
)

func (u FeeUnit) String() string {
	if u == FRI {
		return "FRI"
	}
	return "WEI"
}

// ResourceBound is a single (max_amount, max_price_per_unit) pair as found
// in a V3 transaction's resource_bounds map.
type ResourceBound struct {
	MaxAmount       uint64
	MaxPricePerUnit felt.Felt
}

// ResourceBounds carries the three resource kinds Starknet meters.
type ResourceBounds struct {
	L1Gas     ResourceBound
	L1DataGas ResourceBound
	L2Gas     ResourceBound
}

// ExecutionStatus is the outcome of running a transaction through the VM.
type ExecutionStatus int

const (
	Succeeded ExecutionStatus = iota
	Reverted
)

func (s ExecutionStatus) String() string {
	if s == Reverted {
		return "REVERTED"
	}
	return "SUCCEEDED"
}

// FinalityStatus is where a transaction sits in the block lifecycle.
// Devnet never assigns RECEIVED, CANDIDATE, or the real-network REJECTED.
type FinalityStatus int

const (
	PreConfirmed FinalityStatus = iota
	AcceptedOnL2
	AcceptedOnL1
)

func (s FinalityStatus) String() string {
	switch s {
	case AcceptedOnL2:
		return "ACCEPTED_ON_L2"
	case AcceptedOnL1:
		return "ACCEPTED_ON_L1"
	default:
		return "PRE_CONFIRMED"
	}
}

// Transaction is the tagged sum type for Invoke / Declare / DeployAccount /
// L1Handler. Only the fields relevant to Kind are meaningful; the rest are
// zero.
type Transaction struct {
	Kind    Kind
	Version uint64

	Sender    felt.Felt // invoke, declare, deploy_account (the newly deployed address)
	Recipient felt.Felt // l1_handler: the contract being called

	Nonce felt.Felt

	ResourceBounds ResourceBounds
	FeeUnit        FeeUnit

	Calldata  []felt.Felt
	Signature []felt.Felt

	PaymasterData []felt.Felt

	// Declare-specific.
	ClassHash         felt.Felt
	CompiledClassHash felt.Felt

	// DeployAccount-specific.
	ContractAddressSalt felt.Felt
	ConstructorCalldata []felt.Felt

	// L1Handler-specific.
	Selector        felt.Felt
	PaidFeeOnL1     felt.Felt
	L1FromAddress   felt.Felt

	// hash is computed lazily and cached.
	hash     felt.Felt
	hashSet  bool
}

// IsL1Handler reports whether this is a synthetic L1->L2 transaction,
// which per spec.md §3 has no sender-side fee and no signature and whose
// nonce is assigned by the L1 bridge rather than the sequencer.
func (t *Transaction) IsL1Handler() bool {
	return t.Kind == L1Handler
}

// RequiresValidation reports whether the executor must run the account's
// __validate__ entrypoint. L1Handler transactions have no account to
// validate; impersonation (checked by the caller) is the other case that
// skips validation.
func (t *Transaction) RequiresValidation() bool {
	return t.Kind != L1Handler
}

// EffectiveSender returns the account this transaction is admitted under:
// Sender for account transactions, Recipient for L1Handler (the contract
// whose l1_handler entrypoint is invoked).
func (t *Transaction) EffectiveSender() felt.Felt {
	if t.Kind == L1Handler {
		return t.Recipient
	}
	return t.Sender
}

// Hash computes (and caches) the transaction hash. This is a deterministic
// stand-in for the real protocol hash (see felt.PedersenStub) since Devnet
// does not perform real signature verification (spec.md §1 Non-goals).
func (t *Transaction) Hash() felt.Felt {
	if t.hashSet {
		return t.hash
	}
	inputs := []felt.Felt{
		felt.FromUint64(uint64(t.Kind)),
		felt.FromUint64(t.Version),
		t.Sender,
		t.Recipient,
		t.Nonce,
		t.ClassHash,
	}
	inputs = append(inputs, t.Calldata...)
	t.hash = felt.PedersenStub(inputs...)
	t.hashSet = true
	return t.hash
}

// Receipt records the outcome of an admitted transaction, including its
// position in a block and its dual-axis status (spec.md §3).
type Receipt struct {
	TransactionHash felt.Felt
	BlockNumber     uint64
	BlockHash       felt.Felt
	TransactionIdx  int

	ExecutionStatus ExecutionStatus
	FinalityStatus  FinalityStatus
	RevertReason    string

	ActualFee felt.Felt
	FeeUnit   FeeUnit

	Events   []Event
	Messages []MessageToL1
}

// Event is a single contract-emitted event.
type Event struct {
	FromAddress felt.Felt
	Keys        []felt.Felt
	Data        []felt.Felt
}

// MessageToL1 is an L2->L1 message produced during execution.
type MessageToL1 struct {
	FromAddress felt.Felt
	ToAddress   felt.Felt
	Payload     []felt.Felt
}

// MessageToL2 is an L1->L2 message, the input to a synthetic L1Handler.
type MessageToL2 struct {
	FromAddress   felt.Felt
	ToAddress     felt.Felt
	Selector      felt.Felt
	Payload       []felt.Felt
	PaidFeeOnL1   felt.Felt
	Nonce         felt.Felt
}
