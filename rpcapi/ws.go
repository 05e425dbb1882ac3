package rpcapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shard-labs/starknet-devnet/felt"
	"github.com/shard-labs/starknet-devnet/log"
	"github.com/shard-labs/starknet-devnet/sequencer"
	"github.com/shard-labs/starknet-devnet/subscriptions"
)

// WebSocket connection tuning, grounded on the teacher's websocket_handler.go
// constants; the teacher's own handler never actually performs a WebSocket
// handshake (its ServeHTTP comment admits as much), so the framing below is
// new, built on gorilla/websocket instead of the teacher's stub upgrade.
const (
	wsMaxMessageSize         = 1 << 20
	wsPingInterval           = 30 * time.Second
	wsPongTimeout            = 60 * time.Second
	wsWriteTimeout           = 10 * time.Second
	wsRateLimit              = 100
	wsRateWindow             = time.Second
	wsMaxSubscriptionsPerConn = 32
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// rateBucket is a token-bucket limiter, one per connection.
type rateBucket struct {
	mu       sync.Mutex
	tokens   int
	max      int
	lastFill time.Time
	window   time.Duration
}

func newRateBucket(max int, window time.Duration) *rateBucket {
	return &rateBucket{tokens: max, max: max, lastFill: time.Now(), window: window}
}

func (rb *rateBucket) Allow() bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	now := time.Now()
	if now.Sub(rb.lastFill) >= rb.window {
		rb.tokens = rb.max
		rb.lastFill = now
	}
	if rb.tokens <= 0 {
		return false
	}
	rb.tokens--
	return true
}

// wsConn is one live WebSocket connection, tracking the subscription ids it
// owns so WSHandler can tear them down on close (spec.md §4.I "a connection
// closing drops every subscription it owns").
type wsConn struct {
	id          uint64
	conn        *websocket.Conn
	dispatch    *Server
	seq         *sequencer.Sequencer
	rateLimiter *rateBucket

	mu            sync.Mutex
	subscriptions map[uint64]bool

	sendCh  chan []byte
	closeCh chan struct{}
	closed  atomic.Bool
}

// WSHandler accepts and manages WebSocket connections, dispatching
// JSON-RPC requests the same way the HTTP transport does but adding
// connection-scoped starknet_subscribe*/starknet_unsubscribe handling
// (spec.md §4.I, §4.J).
type WSHandler struct {
	mu          sync.RWMutex
	dispatch    *Server
	seq         *sequencer.Sequencer
	connections map[uint64]*wsConn
	nextID      atomic.Uint64
	maxConns    int
	logger      *log.Logger
}

// NewWSHandler builds a WebSocket handler around dispatch and seq.
func NewWSHandler(dispatch *Server, seq *sequencer.Sequencer, maxConns int) *WSHandler {
	if maxConns <= 0 {
		maxConns = 100
	}
	return &WSHandler{
		dispatch:    dispatch,
		seq:         seq,
		connections: make(map[uint64]*wsConn),
		maxConns:    maxConns,
		logger:      log.Default().Module("rpc-ws"),
	}
}

// ConnectionCount returns the number of live connections.
func (h *WSHandler) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// ServeHTTP upgrades the request to a real WebSocket connection and runs
// its read/write pumps until it closes.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if len(h.connections) >= h.maxConns {
		h.mu.Unlock()
		http.Error(w, "maximum WebSocket connections reached", http.StatusServiceUnavailable)
		return
	}
	h.mu.Unlock()

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	wc := &wsConn{
		id:            h.nextID.Add(1),
		conn:          conn,
		dispatch:      h.dispatch,
		seq:           h.seq,
		rateLimiter:   newRateBucket(wsRateLimit, wsRateWindow),
		subscriptions: make(map[uint64]bool),
		sendCh:        make(chan []byte, 256),
		closeCh:       make(chan struct{}),
	}

	h.mu.Lock()
	h.connections[wc.id] = wc
	h.mu.Unlock()

	go wc.writePump()
	wc.readPump(h)
}

func (h *WSHandler) removeConnection(wc *wsConn) {
	h.mu.Lock()
	delete(h.connections, wc.id)
	h.mu.Unlock()

	wc.mu.Lock()
	ids := make([]uint64, 0, len(wc.subscriptions))
	for id := range wc.subscriptions {
		ids = append(ids, id)
	}
	wc.mu.Unlock()
	for _, id := range ids {
		h.seq.Unsubscribe(id)
	}
	h.seq.DropConnection(wc.id)
}

func (wc *wsConn) close() {
	if wc.closed.CompareAndSwap(false, true) {
		close(wc.closeCh)
		_ = wc.conn.Close()
	}
}

func (wc *wsConn) readPump(h *WSHandler) {
	defer func() {
		wc.close()
		h.removeConnection(wc)
	}()

	wc.conn.SetReadLimit(wsMaxMessageSize)
	_ = wc.conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	wc.conn.SetPongHandler(func(string) error {
		return wc.conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	})

	for {
		_, data, err := wc.conn.ReadMessage()
		if err != nil {
			return
		}
		if !wc.rateLimiter.Allow() {
			wc.enqueue(mustMarshal(errorResponse(nil, -32005, "rate limit exceeded")))
			continue
		}
		wc.handleMessage(data)
	}
}

func (wc *wsConn) writePump() {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case msg := <-wc.sendCh:
			_ = wc.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := wc.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				wc.close()
				return
			}
		case <-ticker.C:
			_ = wc.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := wc.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				wc.close()
				return
			}
		case <-wc.closeCh:
			return
		}
	}
}

func (wc *wsConn) enqueue(msg []byte) {
	select {
	case wc.sendCh <- msg:
	default:
		// Connection too slow; drop rather than block the hub (spec.md §7
		// "Subscription delivery failures silently drop the subscription").
	}
}

func (wc *wsConn) handleMessage(data []byte) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		wc.enqueue(mustMarshal(errorResponse(nil, ErrCodeParse, "invalid JSON")))
		return
	}

	switch req.Method {
	case "starknet_subscribeNewHeads":
		wc.subscribe(&req, subscriptions.KindNewHeads)
	case "starknet_subscribeEvents":
		wc.subscribe(&req, subscriptions.KindEvents)
	case "starknet_subscribeTransactionStatus":
		wc.subscribe(&req, subscriptions.KindTransactionStatus)
	case "starknet_subscribePendingTransactions":
		wc.subscribe(&req, subscriptions.KindPendingTransactions)
	case "starknet_unsubscribe":
		wc.unsubscribe(&req)
	default:
		resp := wc.dispatch.Dispatch(&req)
		wc.enqueue(mustMarshal(resp))
	}
}

func (wc *wsConn) subscribe(req *Request, kind subscriptions.Kind) {
	wc.mu.Lock()
	if len(wc.subscriptions) >= wsMaxSubscriptionsPerConn {
		wc.mu.Unlock()
		wc.enqueue(mustMarshal(errorResponse(req.ID, ErrCodeInvalidRequest, "maximum subscriptions per connection reached")))
		return
	}
	wc.mu.Unlock()

	filter, err := parseEventFilter(req.Params)
	if err != nil {
		wc.enqueue(mustMarshal(errorResponse(req.ID, ErrCodeInvalidParams, err.Error())))
		return
	}

	var id uint64
	id = wc.seq.Subscribe(wc.id, kind, filter, func(result any) {
		notif := subscriptions.Notification{JSONRPC: "2.0", Method: subscriptionMethodName(kind)}
		notif.Params.SubscriptionID = id
		notif.Params.Result = result
		wc.enqueue(mustMarshal(notif))
	})

	wc.mu.Lock()
	wc.subscriptions[id] = true
	wc.mu.Unlock()

	wc.enqueue(mustMarshal(resultResponse(req.ID, id)))
}

func (wc *wsConn) unsubscribe(req *Request) {
	var params struct {
		SubscriptionID uint64 `json:"subscription_id"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		wc.enqueue(mustMarshal(errorResponse(req.ID, ErrCodeInvalidParams, err.Error())))
		return
	}
	ok := wc.seq.Unsubscribe(params.SubscriptionID)
	wc.mu.Lock()
	delete(wc.subscriptions, params.SubscriptionID)
	wc.mu.Unlock()
	wc.enqueue(mustMarshal(resultResponse(req.ID, ok)))
}

func parseEventFilter(raw json.RawMessage) (subscriptions.EventFilter, error) {
	if len(raw) == 0 {
		return subscriptions.EventFilter{}, nil
	}
	var params struct {
		FromAddress *string    `json:"from_address"`
		Keys        [][]string `json:"keys"`
	}
	if err := json.Unmarshal(raw, &params); err != nil {
		return subscriptions.EventFilter{}, err
	}
	var filter subscriptions.EventFilter
	if params.FromAddress != nil {
		f, err := felt.FromHex(*params.FromAddress)
		if err != nil {
			return subscriptions.EventFilter{}, err
		}
		filter.FromAddress = &f
	}
	for _, group := range params.Keys {
		row := make([]felt.Felt, len(group))
		for i, k := range group {
			f, err := felt.FromHex(k)
			if err != nil {
				return subscriptions.EventFilter{}, err
			}
			row[i] = f
		}
		filter.Keys = append(filter.Keys, row)
	}
	return filter, nil
}

func subscriptionMethodName(kind subscriptions.Kind) string {
	switch kind {
	case subscriptions.KindNewHeads:
		return "starknet_subscriptionNewHeads"
	case subscriptions.KindEvents:
		return "starknet_subscriptionEvents"
	case subscriptions.KindTransactionStatus:
		return "starknet_subscriptionTransactionStatus"
	case subscriptions.KindPendingTransactions:
		return "starknet_subscriptionPendingTransactions"
	default:
		return "starknet_subscriptionUnknown"
	}
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte(`{"jsonrpc":"2.0","error":{"code":-32603,"message":"internal marshal error"}}`)
	}
	return b
}
