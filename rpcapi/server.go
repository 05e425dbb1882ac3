package rpcapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/shard-labs/starknet-devnet/log"
)

// Server is the JSON-RPC HTTP transport, grounded on the teacher's
// pkg/rpc/server.go (a bare http.ServeMux dispatching into one handler),
// extended with the restrictive-mode gate and an /is_alive liveness probe
// (spec.md §4.J, §6).
type Server struct {
	registry          *Registry
	mux               *http.ServeMux
	restrictiveMode   bool
	restrictedMethods map[string]bool
	logRequests       bool
	logger            *log.Logger
}

// NewServer builds the HTTP transport around registry. restrictedMethods
// is consulted only when restrictiveMode is true.
func NewServer(registry *Registry, restrictiveMode bool, restrictedMethods []string, logRequests bool) *Server {
	set := make(map[string]bool, len(restrictedMethods))
	for _, m := range restrictedMethods {
		set[m] = true
	}
	s := &Server{
		registry:          registry,
		mux:               http.NewServeMux(),
		restrictiveMode:   restrictiveMode,
		restrictedMethods: set,
		logRequests:       logRequests,
		logger:            log.Default().Module("rpc"),
	}
	s.mux.HandleFunc("/", s.handleRPC)
	s.mux.HandleFunc("/rpc", s.handleRPC)
	s.mux.HandleFunc("/is_alive", s.handleIsAlive)
	return s
}

// Handler returns the composed http.Handler, suitable for http.Serve.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handleIsAlive(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Alive!!!"))
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, errorResponse(nil, ErrCodeParse, "failed to read request body"))
		return
	}

	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var reqs []Request
		if err := json.Unmarshal(body, &reqs); err != nil {
			writeJSON(w, errorResponse(nil, ErrCodeParse, "invalid JSON"))
			return
		}
		if len(reqs) == 0 {
			writeJSON(w, errorResponse(nil, ErrCodeInvalidRequest, "empty batch"))
			return
		}
		resps := make([]*Response, len(reqs))
		for i := range reqs {
			resps[i] = s.dispatchLogged(&reqs[i])
		}
		writeJSON(w, resps)
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, errorResponse(nil, ErrCodeParse, "invalid JSON"))
		return
	}
	writeJSON(w, s.dispatchLogged(&req))
}

func (s *Server) dispatchLogged(req *Request) *Response {
	if s.logRequests {
		s.logger.Info("request", "method", req.Method, "params", string(req.Params))
	}
	resp := s.Dispatch(req)
	if s.logRequests {
		s.logger.Info("response", "method", req.Method, "error", resp.Error)
	}
	return resp
}

// Dispatch resolves req.Method against the registry and runs its handler,
// applying the restrictive-mode gate first (spec.md §4.J "Restrictive
// mode": restricted devnet_ methods are refused with ErrCodeRestrictedMethod
// when --restrictive-mode lists them).
func (s *Server) Dispatch(req *Request) *Response {
	info, ok := s.registry.Lookup(req.Method)
	if !ok {
		return errorResponse(req.ID, ErrCodeMethodNotFound, "method not found: "+req.Method)
	}
	if s.restrictiveMode && info.Restricted && s.restrictedMethods[req.Method] {
		return errorResponse(req.ID, ErrCodeRestrictedMethod, "method is restricted: "+req.Method)
	}

	result, err := info.Handler(req.Params)
	if err != nil {
		return errorResponse(req.ID, classifyError(err), err.Error())
	}
	return resultResponse(req.ID, result)
}

// classifyError maps a handler error to a JSON-RPC error code: invalid
// params get ErrCodeInvalidParams, everything else is a generic internal
// error (spec.md §7 error taxonomy is surfaced as the error message text;
// RPC-spec error codes are a transport-layer concern, not a sequencer one).
func classifyError(err error) int {
	if errors.Is(err, errInvalidParams) {
		return ErrCodeInvalidParams
	}
	return ErrCodeInternal
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
