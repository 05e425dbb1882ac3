// Package subscriptions implements the WebSocket subscription hub
// (spec.md §4.I): a registry of per-connection subscriptions indexed by
// both connection_id and subscription_id, with a notifier per kind.
// Grounded on the teacher's rpc/subscription_manager.go registry+notify
// shape (a mutex-guarded map of subscription entries keyed by id, with a
// per-kind broadcast loop), adapted to Starknet's four subscription kinds
// plus implicit reorg delivery.
package subscriptions

import (
	"sync"
	"sync/atomic"

	"github.com/shard-labs/starknet-devnet/felt"
)

// Kind is one of the Starknet WS subscription kinds (spec.md §4.I).
type Kind int

const (
	KindNewHeads Kind = iota
	KindEvents
	KindTransactionStatus
	KindPendingTransactions
)

func (k Kind) method() string {
	switch k {
	case KindNewHeads:
		return "starknet_subscriptionNewHeads"
	case KindEvents:
		return "starknet_subscriptionEvents"
	case KindTransactionStatus:
		return "starknet_subscriptionTransactionStatus"
	case KindPendingTransactions:
		return "starknet_subscriptionPendingTransactions"
	default:
		return "starknet_subscriptionUnknown"
	}
}

// EventFilter narrows an `events` subscription, matching the Starknet WS
// spec's optional from_address/keys filters.
type EventFilter struct {
	FromAddress *felt.Felt
	Keys        [][]felt.Felt
}

// Entry is one active subscription.
type Entry struct {
	ID           uint64
	ConnectionID uint64
	Kind         Kind
	Filter       EventFilter // only meaningful for KindEvents

	// Deliver is called with the JSON-RPC notification envelope's params
	// payload. The transport layer (rpcapi) supplies this as a closure
	// that writes to the right WebSocket connection; delivery failures are
	// the transport's problem to report (spec.md §7 "Subscription
	// delivery failures drop the subscription silently").
	Deliver func(result any)
}

// Notification is the JSON-RPC envelope shape for a subscription push.
type Notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  struct {
		SubscriptionID uint64 `json:"subscription_id"`
		Result         any    `json:"result"`
	} `json:"params"`
}

// ReorgResult is the payload of a starknet_subscriptionReorg notification
// (spec.md §4.E "Abortion").
type ReorgResult struct {
	StartingBlockHash   felt.Felt `json:"starting_block_hash"`
	StartingBlockNumber uint64    `json:"starting_block_number"`
	EndingBlockHash     felt.Felt `json:"ending_block_hash"`
	EndingBlockNumber   uint64    `json:"ending_block_number"`
}

// Hub is the subscription registry.
type Hub struct {
	mu      sync.RWMutex
	byID    map[uint64]*Entry
	byConn  map[uint64]map[uint64]bool // connection_id -> set of subscription_id
	nextID  uint64
}

// New returns an empty subscription hub.
func New() *Hub {
	return &Hub{
		byID:   make(map[uint64]*Entry),
		byConn: make(map[uint64]map[uint64]bool),
	}
}

// Subscribe registers a new subscription and returns its 64-bit id
// (spec.md §4.I "each subscribe returns a 64-bit subscription id").
func (h *Hub) Subscribe(connID uint64, kind Kind, filter EventFilter, deliver func(result any)) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	h.byID[id] = &Entry{ID: id, ConnectionID: connID, Kind: kind, Filter: filter, Deliver: deliver}
	if h.byConn[connID] == nil {
		h.byConn[connID] = make(map[uint64]bool)
	}
	h.byConn[connID][id] = true
	return id
}

// Unsubscribe removes a subscription. It is idempotent: unsubscribing an
// unknown or already-removed id reports false but is not an error
// (spec.md §4.I "Unsubscribe is idempotent").
func (h *Hub) Unsubscribe(id uint64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.byID[id]
	if !ok {
		return false
	}
	delete(h.byID, id)
	delete(h.byConn[e.ConnectionID], id)
	if len(h.byConn[e.ConnectionID]) == 0 {
		delete(h.byConn, e.ConnectionID)
	}
	return true
}

// DropConnection removes every subscription owned by a closed WS
// connection.
func (h *Hub) DropConnection(connID uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id := range h.byConn[connID] {
		delete(h.byID, id)
	}
	delete(h.byConn, connID)
}

// Reset drops every subscription without notification, used by
// devnet_restart (spec.md §4.I).
func (h *Hub) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.byID = make(map[uint64]*Entry)
	h.byConn = make(map[uint64]map[uint64]bool)
}

// Count returns the number of active subscriptions, for introspection.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byID)
}

// deliveryFailures counts subscriptions dropped because Deliver panicked.
// It is only incremented; nothing in the module reads or logs it.
var deliveryFailures atomic.Int64

// notifyOne delivers result to a single entry, dropping the subscription
// silently if Deliver panics (spec.md §7 "drop the subscription silently;
// they do not kill the connection").
func (h *Hub) notifyOne(e *Entry, result any) {
	defer func() {
		if r := recover(); r != nil {
			deliveryFailures.Add(1)
			h.Unsubscribe(e.ID)
		}
	}()
	e.Deliver(result)
}

// publish delivers result to every active subscription of kind k.
func (h *Hub) publish(k Kind, result any, match func(*Entry) bool) {
	h.mu.RLock()
	var targets []*Entry
	for _, e := range h.byID {
		if e.Kind == k && (match == nil || match(e)) {
			targets = append(targets, e)
		}
	}
	h.mu.RUnlock()
	for _, e := range targets {
		h.notifyOne(e, result)
	}
}

// NotifyNewHeads delivers a starknet_subscriptionNewHeads notification to
// every newHeads subscriber (spec.md §4.E "Sealing ... emits
// starknet_subscriptionNewHeads").
func (h *Hub) NotifyNewHeads(header any) {
	h.publish(KindNewHeads, header, nil)
}

// NotifyTransactionStatus delivers a status update to every
// transactionStatus subscriber.
func (h *Hub) NotifyTransactionStatus(status any) {
	h.publish(KindTransactionStatus, status, nil)
}

// NotifyPendingTransaction delivers a pending-tx notification to every
// pendingTransactions subscriber.
func (h *Hub) NotifyPendingTransaction(txHash any) {
	h.publish(KindPendingTransactions, txHash, nil)
}

// NotifyEvent delivers an event to every events subscriber whose filter
// matches fromAddress/keys.
func (h *Hub) NotifyEvent(event any, fromAddress felt.Felt, keys []felt.Felt) {
	h.publish(KindEvents, event, func(e *Entry) bool {
		return matchesEventFilter(e.Filter, fromAddress, keys)
	})
}

// NotifyReorg delivers a starknet_subscriptionReorg notification to
// every subscription regardless of kind (spec.md §9 "Reorg delivery must
// traverse all subscriptions").
func (h *Hub) NotifyReorg(r ReorgResult) {
	h.mu.RLock()
	targets := make([]*Entry, 0, len(h.byID))
	for _, e := range h.byID {
		targets = append(targets, e)
	}
	h.mu.RUnlock()
	for _, e := range targets {
		h.notifyOne(e, r)
	}
}

func matchesEventFilter(f EventFilter, fromAddress felt.Felt, keys []felt.Felt) bool {
	if f.FromAddress != nil && f.FromAddress.Cmp(fromAddress) != 0 {
		return false
	}
	if len(f.Keys) == 0 {
		return true
	}
	for i, wanted := range f.Keys {
		if i >= len(keys) {
			return false
		}
		if len(wanted) == 0 {
			continue
		}
		found := false
		for _, w := range wanted {
			if w.Cmp(keys[i]) == 0 {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
