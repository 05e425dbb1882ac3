// Package journal implements Devnet's action journal: an append-only log
// of reproducible effects, dumped/loaded for deterministic replay
// (spec.md §4.H). Grounded on the teacher's core/state/journal.go shape —
// a slice of tagged entries appended under lock — but adapted from a
// revertible undo-log into an append-only replay log, since Devnet's
// journal exists to be replayed forward, not rolled back.
package journal

import (
	"github.com/shard-labs/starknet-devnet/felt"
)

// EntryKind tags which reproducible effect an Entry records (spec.md §3
// "Action journal entry").
type EntryKind int

const (
	KindTransaction EntryKind = iota
	KindGasPriceChange
	KindImpersonationToggle
	KindCreateBlock
	KindTimeAdjustment
	KindMessagingContractLoaded
	KindMint
)

func (k EntryKind) String() string {
	switch k {
	case KindTransaction:
		return "TRANSACTION"
	case KindGasPriceChange:
		return "GAS_PRICE_CHANGE"
	case KindImpersonationToggle:
		return "IMPERSONATION_TOGGLE"
	case KindCreateBlock:
		return "CREATE_BLOCK"
	case KindTimeAdjustment:
		return "TIME_ADJUSTMENT"
	case KindMessagingContractLoaded:
		return "MESSAGING_CONTRACT_LOADED"
	case KindMint:
		return "MINT"
	default:
		return "UNKNOWN"
	}
}

// TransactionPayload is the minimal input needed to re-admit a
// transaction through the normal admission path on replay.
type TransactionPayload struct {
	RawTransactionJSON []byte
}

// MintPayload records a devnet_mint call. Mint is an operator action
// rather than a user-signed transaction, so it is replayed by calling
// the mint operation directly instead of through the transaction
// admission path.
type MintPayload struct {
	Address felt.Felt
	Amount  uint64
	Unit    uint8
}

// GasPricePayload records a devnet_setGasPrice call.
type GasPricePayload struct {
	L1GasWei, L1GasFri         uint64
	L1DataGasWei, L1DataGasFri uint64
	L2GasWei, L2GasFri         uint64
}

// ImpersonationPayload records an impersonate/stop-impersonate/auto
// toggle.
type ImpersonationPayload struct {
	Address      felt.Felt
	Enable       bool
	AutoToggle   bool
	AutoEnabled  bool
}

// TimeAdjustmentPayload records setTime/increaseTime.
type TimeAdjustmentPayload struct {
	AbsoluteTime   uint64
	Delta          uint64
	IsAbsolute     bool
	GenerateBlock  bool
}

// MessagingContractPayload records a postmanLoad action.
type MessagingContractPayload struct {
	NetworkURL string
	Address    felt.Felt
}

// Entry is one journaled action. Exactly one of the Payload fields is
// populated, matching Kind.
type Entry struct {
	Kind EntryKind

	// Timestamp is the host clock at admission time, recorded so replay
	// can pin it back via setTime (spec.md §4.H, §8 property 6).
	Timestamp uint64

	Transaction   *TransactionPayload       `json:",omitempty"`
	GasPrice      *GasPricePayload          `json:",omitempty"`
	Impersonation *ImpersonationPayload     `json:",omitempty"`
	CreateBlock   *struct{}                 `json:",omitempty"`
	TimeAdjust    *TimeAdjustmentPayload    `json:",omitempty"`
	Messaging     *MessagingContractPayload `json:",omitempty"`
	Mint          *MintPayload              `json:",omitempty"`
}
