package subscriptions

import (
	"testing"

	"github.com/shard-labs/starknet-devnet/felt"
)

func TestSubscribeUnsubscribeIdempotent(t *testing.T) {
	h := New()
	id := h.Subscribe(1, KindNewHeads, EventFilter{}, func(any) {})
	if h.Count() != 1 {
		t.Fatal("expected 1 active subscription")
	}
	if !h.Unsubscribe(id) {
		t.Fatal("first unsubscribe should succeed")
	}
	if h.Unsubscribe(id) {
		t.Fatal("second unsubscribe should report false, not panic")
	}
}

func TestDropConnectionRemovesAllItsSubscriptions(t *testing.T) {
	h := New()
	h.Subscribe(1, KindNewHeads, EventFilter{}, func(any) {})
	h.Subscribe(1, KindEvents, EventFilter{}, func(any) {})
	h.Subscribe(2, KindNewHeads, EventFilter{}, func(any) {})

	h.DropConnection(1)
	if h.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", h.Count())
	}
}

func TestNotifyNewHeadsOnlyReachesThatKind(t *testing.T) {
	h := New()
	var gotHeads, gotEvents int
	h.Subscribe(1, KindNewHeads, EventFilter{}, func(any) { gotHeads++ })
	h.Subscribe(1, KindEvents, EventFilter{}, func(any) { gotEvents++ })

	h.NotifyNewHeads("header")
	if gotHeads != 1 || gotEvents != 0 {
		t.Fatalf("gotHeads=%d gotEvents=%d", gotHeads, gotEvents)
	}
}

func TestNotifyEventFiltersByFromAddress(t *testing.T) {
	h := New()
	addr := felt.FromUint64(42)
	other := felt.FromUint64(99)
	var delivered int
	h.Subscribe(1, KindEvents, EventFilter{FromAddress: &addr}, func(any) { delivered++ })

	h.NotifyEvent("e1", other, nil)
	if delivered != 0 {
		t.Fatal("event from a non-matching address should not be delivered")
	}
	h.NotifyEvent("e2", addr, nil)
	if delivered != 1 {
		t.Fatal("event from the matching address should be delivered")
	}
}

func TestDeliveryPanicDropsSubscriptionSilently(t *testing.T) {
	h := New()
	id := h.Subscribe(1, KindNewHeads, EventFilter{}, func(any) { panic("boom") })

	h.NotifyNewHeads("header")

	if h.Unsubscribe(id) {
		t.Fatal("subscription should already have been dropped after a delivery panic")
	}
}

func TestReorgReachesAllKinds(t *testing.T) {
	h := New()
	var heads, events int
	h.Subscribe(1, KindNewHeads, EventFilter{}, func(any) { heads++ })
	h.Subscribe(1, KindEvents, EventFilter{}, func(any) { events++ })

	h.NotifyReorg(ReorgResult{StartingBlockNumber: 2, EndingBlockNumber: 3})
	if heads != 1 || events != 1 {
		t.Fatalf("heads=%d events=%d, want both notified", heads, events)
	}
}

func TestResetDropsEverything(t *testing.T) {
	h := New()
	h.Subscribe(1, KindNewHeads, EventFilter{}, func(any) {})
	h.Reset()
	if h.Count() != 0 {
		t.Fatal("Reset should clear all subscriptions")
	}
}
