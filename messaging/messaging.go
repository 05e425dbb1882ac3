// Package messaging implements Devnet's L1<->L2 message bridge (spec.md
// §4.G): two internal FIFOs plus the postman operations that flush them
// against an external Ethereum-like RPC, or mock them entirely without
// any L1 running. Grounded on the teacher's txpool FIFO/queue shape
// (txpool/txpool.go's pending-queue bookkeeping), adapted from a single
// mempool to two named directional queues.
package messaging

import (
	"errors"
	"sync"

	"github.com/shard-labs/starknet-devnet/felt"
	"github.com/shard-labs/starknet-devnet/txn"
)

// Errors returned by the messaging bridge.
var (
	ErrNoMessagingContractLoaded = errors.New("messaging: no messaging contract loaded")
	ErrEntrypointNotFound        = errors.New("messaging: ENTRYPOINT_NOT_FOUND")
	ErrMessageNotFound           = errors.New("messaging: no matching message in queue")
)

// L1Handler identifies the one contract entrypoint an L1Handler
// transaction may target; flush must only synthesize transactions against
// entrypoints registered here (spec.md §4.G "Invariant: an L1Handler
// produced by flush must call an entrypoint annotated as such").
type L1Handler struct {
	Address  felt.Felt
	Selector felt.Felt
}

// Bridge owns the two message queues and the mock L1 messaging contract
// registration.
type Bridge struct {
	mu sync.Mutex

	l1ToL2 []txn.MessageToL2
	l2ToL1 []txn.MessageToL1

	contractAddress felt.Felt
	contractLoaded  bool
	networkURL      string

	// registeredHandlers is the set of (address, selector) pairs that are
	// valid L1Handler targets, populated only by the operator via
	// RegisterHandler (standing in for reading the deployed contract's
	// ABI, since the real Cairo VM/ABI reader is out of scope per spec.md
	// §1).
	registeredHandlers map[L1Handler]bool
}

// New returns an empty Bridge.
func New() *Bridge {
	return &Bridge{registeredHandlers: make(map[L1Handler]bool)}
}

// Load registers the mock messaging contract at address (deploying is the
// caller's responsibility via the L1 RPC contract; this call only records
// that it exists, per spec.md §4.G "verify code exists at the given
// address").
func (b *Bridge) Load(networkURL string, address felt.Felt) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.networkURL = networkURL
	b.contractAddress = address
	b.contractLoaded = true
}

// RegisterHandler marks (address, selector) as a valid L1Handler target.
func (b *Bridge) RegisterHandler(address, selector felt.Felt) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.registeredHandlers[L1Handler{Address: address, Selector: selector}] = true
}

// ContractAddress returns the loaded messaging contract's address and
// whether one has been loaded.
func (b *Bridge) ContractAddress() (felt.Felt, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.contractAddress, b.contractLoaded
}

// EnqueueL2ToL1 appends a message produced by a successful execution
// (spec.md §4.G queues).
func (b *Bridge) EnqueueL2ToL1(m txn.MessageToL1) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.l2ToL1 = append(b.l2ToL1, m)
}

// PendingL2ToL1 returns a snapshot of the l2_to_l1 queue.
func (b *Bridge) PendingL2ToL1() []txn.MessageToL1 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]txn.MessageToL1, len(b.l2ToL1))
	copy(out, b.l2ToL1)
	return out
}

// PendingL1ToL2 returns a snapshot of the l1_to_l2 queue.
func (b *Bridge) PendingL1ToL2() []txn.MessageToL2 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]txn.MessageToL2, len(b.l1ToL2))
	copy(out, b.l1ToL2)
	return out
}

// MockSendMessageToL2 directly enqueues a synthetic L1->L2 message without
// any real L1 (spec.md §4.G "Mock-send L1→L2"). The caller supplies the
// nonce, which the real L1 bridge would normally assign. It validates the
// entrypoint is registered before admitting, matching the flush-path
// invariant.
func (b *Bridge) MockSendMessageToL2(m txn.MessageToL2) (*txn.Transaction, error) {
	b.mu.Lock()
	if !b.registeredHandlers[L1Handler{Address: m.ToAddress, Selector: m.Selector}] {
		b.mu.Unlock()
		return nil, ErrEntrypointNotFound
	}
	b.l1ToL2 = append(b.l1ToL2, m)
	b.mu.Unlock()

	return &txn.Transaction{
		Kind:          txn.L1Handler,
		Recipient:     m.ToAddress,
		Selector:      m.Selector,
		Calldata:      m.Payload,
		Nonce:         m.Nonce,
		PaidFeeOnL1:   m.PaidFeeOnL1,
		L1FromAddress: m.FromAddress,
	}, nil
}

// MockConsumeMessageFromL2 removes the first l2_to_l1 message matching
// (fromAddress, toAddress, payload) and reports a synthetic consumption
// hash (spec.md §4.G "Mock-consume L2→L1").
func (b *Bridge) MockConsumeMessageFromL2(fromAddress, toAddress felt.Felt, payload []felt.Felt) (felt.Felt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, m := range b.l2ToL1 {
		if m.FromAddress.Cmp(fromAddress) == 0 && m.ToAddress.Cmp(toAddress) == 0 && sameFelts(m.Payload, payload) {
			b.l2ToL1 = append(b.l2ToL1[:i], b.l2ToL1[i+1:]...)
			return felt.PedersenStub(fromAddress, toAddress), nil
		}
	}
	return felt.Felt{}, ErrMessageNotFound
}

// FlushResult summarizes what a (real or dry-run) Flush did.
type FlushResult struct {
	ConsumedL2ToL1   []txn.MessageToL1
	SynthesizedTxs    []*txn.Transaction
	DryRun            bool
}

// FlushL2ToL1 drains the l2_to_l1 queue (spec.md §4.G "Flush"). The
// actual eth_call/eth_sendRawTransaction submission against the L1 RPC
// contract is the caller's responsibility (an external collaborator, per
// spec.md §1); this method only does the internal bookkeeping: draining
// the queue and reporting what was consumed. If dryRun, the queue is left
// untouched.
func (b *Bridge) FlushL2ToL1(dryRun bool) (FlushResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.contractLoaded {
		return FlushResult{}, ErrNoMessagingContractLoaded
	}
	consumed := append([]txn.MessageToL1(nil), b.l2ToL1...)
	if !dryRun {
		b.l2ToL1 = nil
	}
	return FlushResult{ConsumedL2ToL1: consumed, DryRun: dryRun}, nil
}

// FlushL1ToL2 turns each pending l1_to_l2 message into a synthetic
// L1Handler transaction, validating the entrypoint invariant for each
// (spec.md §4.G). The sequencer is responsible for actually admitting the
// returned transactions; FlushL1ToL2 only drains the queue (unless
// dryRun) and builds the transaction values.
func (b *Bridge) FlushL1ToL2(dryRun bool) (FlushResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.contractLoaded {
		return FlushResult{}, ErrNoMessagingContractLoaded
	}

	var txs []*txn.Transaction
	for _, m := range b.l1ToL2 {
		if !b.registeredHandlers[L1Handler{Address: m.ToAddress, Selector: m.Selector}] {
			return FlushResult{}, ErrEntrypointNotFound
		}
		txs = append(txs, &txn.Transaction{
			Kind:          txn.L1Handler,
			Recipient:     m.ToAddress,
			Selector:      m.Selector,
			Calldata:      m.Payload,
			Nonce:         m.Nonce,
			PaidFeeOnL1:   m.PaidFeeOnL1,
			L1FromAddress: m.FromAddress,
		})
	}
	if !dryRun {
		b.l1ToL2 = nil
	}
	return FlushResult{SynthesizedTxs: txs, DryRun: dryRun}, nil
}

// Reset clears both queues and the loaded contract, used by
// devnet_restart (spec.md §9 Open Question 1: restart is taken as
// authoritative for clearing l2_to_l1 too).
func (b *Bridge) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.l1ToL2 = nil
	b.l2ToL1 = nil
	b.contractLoaded = false
	b.registeredHandlers = make(map[L1Handler]bool)
}

func sameFelts(a, b []felt.Felt) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Cmp(b[i]) != 0 {
			return false
		}
	}
	return true
}
