package sequencer

import (
	"github.com/shard-labs/starknet-devnet/felt"
	"github.com/shard-labs/starknet-devnet/journal"
	"github.com/shard-labs/starknet-devnet/messaging"
	"github.com/shard-labs/starknet-devnet/subscriptions"
	"github.com/shard-labs/starknet-devnet/txn"
)

// LoadMessagingContract registers the mock L1 messaging contract
// (devnet_postmanLoad).
func (s *Sequencer) LoadMessagingContract(networkURL string, address felt.Felt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bridge.Load(networkURL, address)
}

// RegisterMessagingHandler marks (address, selector) as a valid L1Handler
// target, standing in for reading the deployed contract's ABI.
func (s *Sequencer) RegisterMessagingHandler(address, selector felt.Felt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bridge.RegisterHandler(address, selector)
}

// MockSendMessageToL2 enqueues a synthetic L1->L2 message and admits the
// resulting L1Handler transaction against current state (devnet_postmanSendMessageToL2,
// spec.md §4.G "Mock-send L1→L2").
func (s *Sequencer) MockSendMessageToL2(m txn.MessageToL2) (*txn.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.bridge.MockSendMessageToL2(m)
	if err != nil {
		return nil, err
	}
	return s.admitLocked(tx, true)
}

// MockConsumeMessageFromL2 removes a matching l2_to_l1 message and returns
// a synthetic consumption hash (devnet_postmanConsumeMessageFromL2).
func (s *Sequencer) MockConsumeMessageFromL2(from, to felt.Felt, payload []felt.Felt) (felt.Felt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bridge.MockConsumeMessageFromL2(from, to, payload)
}

// FlushL2ToL1 drains the l2_to_l1 queue (devnet_postmanFlush, direction L2->L1).
func (s *Sequencer) FlushL2ToL1(dryRun bool) (messaging.FlushResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bridge.FlushL2ToL1(dryRun)
}

// FlushL1ToL2 drains the l1_to_l2 queue, admitting every synthesized
// L1Handler transaction it produces unless dryRun (devnet_postmanFlush,
// direction L1->L2).
func (s *Sequencer) FlushL1ToL2(dryRun bool) (messaging.FlushResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result, err := s.bridge.FlushL1ToL2(dryRun)
	if err != nil {
		return result, err
	}
	if !dryRun {
		for _, tx := range result.SynthesizedTxs {
			if _, err := s.admitLocked(tx, true); err != nil {
				return result, err
			}
		}
	}
	return result, nil
}

// Subscribe registers a subscription on connID (starknet_subscribe*).
func (s *Sequencer) Subscribe(connID uint64, kind subscriptions.Kind, filter subscriptions.EventFilter, deliver func(result any)) uint64 {
	return s.subs.Subscribe(connID, kind, filter, deliver)
}

// Unsubscribe removes a subscription (starknet_unsubscribe). Idempotent.
func (s *Sequencer) Unsubscribe(id uint64) bool {
	return s.subs.Unsubscribe(id)
}

// DropConnection removes every subscription owned by connID, used when a
// WebSocket connection closes.
func (s *Sequencer) DropConnection(connID uint64) {
	s.subs.DropConnection(connID)
}

// JournalEntries returns every recorded action-journal entry (used by the
// dump endpoints).
func (s *Sequencer) JournalEntries() []journal.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.journal.Entries()
}

// DumpJournal serializes the action journal to path, or returns the
// bytes inline if path is empty (devnet_dump).
func (s *Sequencer) DumpJournal(path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.journal.Dump(path)
}

// LoadJournal replays a previously dumped journal's transactions against
// this Sequencer, reconstructing chain state (devnet_load).
func (s *Sequencer) LoadJournal(path string, inline []byte) error {
	s.mu.Lock()
	entries, err := s.journal.Load(path, inline)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := s.replayLocked(e); err != nil {
			return err
		}
	}
	return nil
}
