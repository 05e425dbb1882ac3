package rpcapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shard-labs/starknet-devnet/config"
	"github.com/shard-labs/starknet-devnet/executor"
	"github.com/shard-labs/starknet-devnet/sequencer"
	"github.com/shard-labs/starknet-devnet/txn"
)

func newTestServer(restrictive bool) (*sequencer.Sequencer, *Server) {
	cfg := config.DefaultConfig()
	cfg.Accounts = 2
	cfg.RestrictiveMode = restrictive
	if restrictive {
		cfg.RestrictedMethods = config.DefaultRestrictedMethods
	}
	seq := sequencer.New(cfg, executor.NewFake())
	registry := NewDispatchTable(seq)
	return seq, NewServer(registry, restrictive, cfg.RestrictedMethods, false)
}

func TestDispatchChainIDReturnsConfiguredValue(t *testing.T) {
	seq, server := newTestServer(false)
	resp := server.Dispatch(&Request{JSONRPC: "2.0", Method: "starknet_chainId", ID: json.RawMessage("1")})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	if resp.Result != seq.ChainID() {
		t.Fatalf("result = %v, want %v", resp.Result, seq.ChainID())
	}
}

func TestDispatchUnknownMethodReturnsMethodNotFound(t *testing.T) {
	_, server := newTestServer(false)
	resp := server.Dispatch(&Request{JSONRPC: "2.0", Method: "starknet_bogus", ID: json.RawMessage("1")})
	if resp.Error == nil || resp.Error.Code != ErrCodeMethodNotFound {
		t.Fatalf("got %+v, want ErrCodeMethodNotFound", resp.Error)
	}
}

func TestDispatchRestrictiveModeRefusesRestrictedMethod(t *testing.T) {
	_, server := newTestServer(true)
	resp := server.Dispatch(&Request{JSONRPC: "2.0", Method: "devnet_mint", ID: json.RawMessage("1")})
	if resp.Error == nil || resp.Error.Code != ErrCodeRestrictedMethod {
		t.Fatalf("got %+v, want ErrCodeRestrictedMethod", resp.Error)
	}
}

func TestDispatchMintSucceeds(t *testing.T) {
	seq, server := newTestServer(false)
	acc := seq.PredeployedAccounts()[0]
	params, _ := json.Marshal(map[string]any{"address": acc.Address.Hex(), "amount": 42, "unit": "WEI"})
	resp := server.Dispatch(&Request{JSONRPC: "2.0", Method: "devnet_mint", Params: params, ID: json.RawMessage("1")})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
}

func TestDispatchGetNonceRejectsMalformedAddress(t *testing.T) {
	_, server := newTestServer(false)
	params, _ := json.Marshal(map[string]any{"contract_address": "not-hex"})
	resp := server.Dispatch(&Request{JSONRPC: "2.0", Method: "starknet_getNonce", Params: params, ID: json.RawMessage("1")})
	if resp.Error == nil || resp.Error.Code != ErrCodeInvalidParams {
		t.Fatalf("got %+v, want ErrCodeInvalidParams", resp.Error)
	}
}

func TestDispatchGetAccountBalanceReflectsMint(t *testing.T) {
	seq, server := newTestServer(false)
	acc := seq.PredeployedAccounts()[0]
	params, _ := json.Marshal(map[string]any{"address": acc.Address.Hex(), "amount": 77, "unit": "WEI"})
	if resp := server.Dispatch(&Request{JSONRPC: "2.0", Method: "devnet_mint", Params: params, ID: json.RawMessage("1")}); resp.Error != nil {
		t.Fatalf("mint failed: %+v", resp.Error)
	}

	params, _ = json.Marshal(map[string]any{"address": acc.Address.Hex(), "unit": "WEI"})
	resp := server.Dispatch(&Request{JSONRPC: "2.0", Method: "devnet_getAccountBalance", Params: params, ID: json.RawMessage("2")})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	out, ok := resp.Result.(map[string]any)
	if !ok || out["amount"] != seq.GetAccountBalance(acc.Address, txn.WEI).Hex() {
		t.Fatalf("unexpected result: %+v", resp.Result)
	}
}

func TestDispatchGetConfigReflectsChainID(t *testing.T) {
	seq, server := newTestServer(false)
	resp := server.Dispatch(&Request{JSONRPC: "2.0", Method: "devnet_getConfig", ID: json.RawMessage("1")})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	out, ok := resp.Result.(map[string]any)
	if !ok || out["chain_id"] != seq.ChainID() {
		t.Fatalf("unexpected result: %+v", resp.Result)
	}
}

func TestHandleRPCAcceptsBatchRequests(t *testing.T) {
	_, server := newTestServer(false)
	httpServer := httptest.NewServer(server.Handler())
	defer httpServer.Close()

	batch := `[{"jsonrpc":"2.0","method":"starknet_chainId","id":1},{"jsonrpc":"2.0","method":"starknet_bogus","id":2}]`
	resp, err := http.Post(httpServer.URL, "application/json", bytes.NewBufferString(batch))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var decoded []Response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("expected a JSON array response, got decode error: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("got %d responses, want 2", len(decoded))
	}
	if decoded[0].Error != nil {
		t.Fatalf("first batch entry failed: %+v", decoded[0].Error)
	}
	if decoded[1].Error == nil || decoded[1].Error.Code != ErrCodeMethodNotFound {
		t.Fatalf("second batch entry = %+v, want ErrCodeMethodNotFound", decoded[1].Error)
	}
}
