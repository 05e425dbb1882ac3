// Package fork implements the origin reader (spec.md §4.F): a read-through
// client for an upstream Starknet RPC, consulted when data is absent
// locally, with block-id rewriting so numbers past the pinned fork block
// never reach the network. Grounded on the teacher's rpc/backend.go
// read-through shape, adapted from a local-storage-first Ethereum backend
// into a local-then-upstream Starknet read proxy.
package fork

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/shard-labs/starknet-devnet/felt"
)

// ErrBlockNotFound is returned for reads past the pinned fork block
// without contacting upstream (spec.md §4.F "rewriting block identifiers
// so that numbers past the pinned fork block return BlockNotFound without
// contacting upstream").
var ErrBlockNotFound = errors.New("fork: block not found")

// Config is the optional fork configuration (spec.md §3 "Fork config").
type Config struct {
	OriginURL    string
	PinnedBlock  uint64
	CacheEnabled bool
}

// Enabled reports whether forking was configured at all.
func (c Config) Enabled() bool { return c.OriginURL != "" }

// UpstreamRPC is the subset of the Starknet JSON-RPC contract the fork
// proxy consumes (spec.md §6 "Upstream RPC contract"). A real
// implementation posts JSON-RPC 2.0 envelopes over HTTP; httpRPC below is
// the production implementation, and tests substitute a fake.
type UpstreamRPC interface {
	Call(ctx context.Context, method string, params any, result any) error
}

// Reader is the read-through origin proxy.
type Reader struct {
	cfg    Config
	client UpstreamRPC

	mu    sync.Mutex
	cache map[string]json.RawMessage
}

// New constructs a Reader. client is nil when forking is disabled.
func New(cfg Config, client UpstreamRPC) *Reader {
	return &Reader{cfg: cfg, client: client, cache: make(map[string]json.RawMessage)}
}

// localOnly reports whether a request at blockNumber should be served
// locally (false means it belongs to the fork origin).
// Block numbers strictly greater than the pinned block are Devnet's own
// local chain growth and must not be proxied upstream even on a local
// miss (spec.md §4.F).
func (r *Reader) localOnly(blockNumber uint64) bool {
	return blockNumber > r.cfg.PinnedBlock
}

// GetNonce proxies starknet_getNonce for an address absent locally at
// blockNumber. Returns ErrBlockNotFound without any network IO if
// blockNumber is past the pinned fork block.
func (r *Reader) GetNonce(ctx context.Context, blockNumber uint64, address felt.Felt) (felt.Felt, error) {
	if !r.cfg.Enabled() || r.localOnly(blockNumber) {
		return felt.Felt{}, ErrBlockNotFound
	}
	var result string
	if err := r.call(ctx, "starknet_getNonce", []any{blockTag(blockNumber), address.Hex()}, &result); err != nil {
		return felt.Felt{}, err
	}
	return felt.FromHex(result)
}

// GetStorageAt proxies starknet_getStorageAt.
func (r *Reader) GetStorageAt(ctx context.Context, blockNumber uint64, address, key felt.Felt) (felt.Felt, error) {
	if !r.cfg.Enabled() || r.localOnly(blockNumber) {
		return felt.Felt{}, ErrBlockNotFound
	}
	var result string
	if err := r.call(ctx, "starknet_getStorageAt", []any{address.Hex(), key.Hex(), blockTag(blockNumber)}, &result); err != nil {
		return felt.Felt{}, err
	}
	return felt.FromHex(result)
}

// GetClassHashAt proxies starknet_getClassHashAt.
func (r *Reader) GetClassHashAt(ctx context.Context, blockNumber uint64, address felt.Felt) (felt.Felt, error) {
	if !r.cfg.Enabled() || r.localOnly(blockNumber) {
		return felt.Felt{}, ErrBlockNotFound
	}
	var result string
	if err := r.call(ctx, "starknet_getClassHashAt", []any{blockTag(blockNumber), address.Hex()}, &result); err != nil {
		return felt.Felt{}, err
	}
	return felt.FromHex(result)
}

// GetClass proxies starknet_getClass, returning the raw artifact bytes
// verbatim (the class compiler adapter decides how to interpret them).
func (r *Reader) GetClass(ctx context.Context, blockNumber uint64, classHash felt.Felt) (json.RawMessage, error) {
	if !r.cfg.Enabled() || r.localOnly(blockNumber) {
		return nil, ErrBlockNotFound
	}
	var result json.RawMessage
	if err := r.call(ctx, "starknet_getClass", []any{blockTag(blockNumber), classHash.Hex()}, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetBlockWithTxHashes proxies starknet_getBlockWithTxHashes for a block
// that is absent locally and precedes genesis (spec.md §4.F).
func (r *Reader) GetBlockWithTxHashes(ctx context.Context, blockNumber uint64) (json.RawMessage, error) {
	if !r.cfg.Enabled() || r.localOnly(blockNumber) {
		return nil, ErrBlockNotFound
	}
	var result json.RawMessage
	if err := r.call(ctx, "starknet_getBlockWithTxHashes", []any{blockTag(blockNumber)}, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// call dispatches through the optional response cache (spec.md §4.F
// "optionally cached keyed by (method, params)"). The key is the method
// name plus the JSON encoding of params, so two requests for the same data
// whose params encode differently get separate cache entries.
func (r *Reader) call(ctx context.Context, method string, params any, out any) error {
	if !r.cfg.CacheEnabled {
		return r.client.Call(ctx, method, params, out)
	}

	key, err := cacheKey(method, params)
	if err != nil {
		return err
	}

	r.mu.Lock()
	cached, ok := r.cache[key]
	r.mu.Unlock()
	if ok {
		return json.Unmarshal(cached, out)
	}

	if err := r.client.Call(ctx, method, params, out); err != nil {
		return err
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return nil // caching is best-effort; the real result is already in out
	}
	r.mu.Lock()
	r.cache[key] = raw
	r.mu.Unlock()
	return nil
}

func cacheKey(method string, params any) (string, error) {
	b, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("fork: marshal cache key params: %w", err)
	}
	return method + ":" + string(b), nil
}

func blockTag(n uint64) map[string]uint64 {
	return map[string]uint64{"block_number": n}
}

// httpRPC is the production UpstreamRPC: a plain JSON-RPC 2.0 client over
// net/http (spec.md §1 places HTTP framing out of scope as an *inbound*
// concern, but the fork reader is itself an outbound HTTP client, which is
// squarely F's responsibility).
type httpRPC struct {
	url    string
	client *http.Client
	nextID int
	mu     sync.Mutex
}

// NewHTTPUpstream constructs the production UpstreamRPC client.
func NewHTTPUpstream(url string, timeout time.Duration) UpstreamRPC {
	return &httpRPC{url: url, client: &http.Client{Timeout: timeout}}
}

type jsonrpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type jsonrpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (h *httpRPC) Call(ctx context.Context, method string, params any, result any) error {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.mu.Unlock()

	body, err := json.Marshal(jsonrpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("fork: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("fork: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("fork: upstream unavailable: %w", err)
	}
	defer resp.Body.Close()

	var rpcResp jsonrpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("fork: decode upstream response: %w", err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("fork: upstream error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	return json.Unmarshal(rpcResp.Result, result)
}
