package fork

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/shard-labs/starknet-devnet/felt"
)

type fakeRPC struct {
	calls   int
	nonce   string
}

func (f *fakeRPC) Call(ctx context.Context, method string, params any, result any) error {
	f.calls++
	switch method {
	case "starknet_getNonce":
		return json.Unmarshal([]byte(`"`+f.nonce+`"`), result)
	default:
		return json.Unmarshal([]byte(`"0x0"`), result)
	}
}

func TestGetNonceDisabledWhenNotForking(t *testing.T) {
	r := New(Config{}, nil)
	_, err := r.GetNonce(context.Background(), 5, felt.FromUint64(1))
	if err != ErrBlockNotFound {
		t.Fatalf("expected ErrBlockNotFound, got %v", err)
	}
}

func TestGetNoncePastPinnedBlockNeverContactsUpstream(t *testing.T) {
	rpc := &fakeRPC{nonce: "0x5"}
	r := New(Config{OriginURL: "http://origin", PinnedBlock: 100}, rpc)

	_, err := r.GetNonce(context.Background(), 101, felt.FromUint64(1))
	if err != ErrBlockNotFound {
		t.Fatalf("expected ErrBlockNotFound, got %v", err)
	}
	if rpc.calls != 0 {
		t.Fatalf("upstream was contacted %d times, want 0", rpc.calls)
	}
}

func TestGetNonceAtPinnedBlockHitsUpstream(t *testing.T) {
	rpc := &fakeRPC{nonce: "0x7"}
	r := New(Config{OriginURL: "http://origin", PinnedBlock: 100}, rpc)

	got, err := r.GetNonce(context.Background(), 100, felt.FromUint64(1))
	if err != nil {
		t.Fatal(err)
	}
	if got.Cmp(felt.FromUint64(7)) != 0 {
		t.Fatalf("got %s, want 7", got.Hex())
	}
	if rpc.calls != 1 {
		t.Fatalf("calls = %d, want 1", rpc.calls)
	}
}

func TestCallCachesWhenEnabled(t *testing.T) {
	rpc := &fakeRPC{nonce: "0x7"}
	r := New(Config{OriginURL: "http://origin", PinnedBlock: 100, CacheEnabled: true}, rpc)

	_, _ = r.GetNonce(context.Background(), 50, felt.FromUint64(1))
	_, _ = r.GetNonce(context.Background(), 50, felt.FromUint64(1))
	if rpc.calls != 1 {
		t.Fatalf("calls = %d, want 1 (second call should hit cache)", rpc.calls)
	}
}
