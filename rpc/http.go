package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"totchain/core"
	"totchain/eventsink"
	"totchain/native/auction"
	"totchain/native/holder"
	"totchain/native/pool"
	"totchain/native/settlement"
	"totchain/native/tax"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020
)

// Server exposes the node over JSON-RPC. Read methods are open; mutating
// methods require the bearer token and execute as the configured authority.
type Server struct {
	node      *core.Node
	sink      *eventsink.Store
	logger    *slog.Logger
	authToken string
	authority [20]byte

	mu         sync.Mutex
	limiters   map[string]*rate.Limiter
	rateLimit  rate.Limit
	rateBurst  int
	rateLimitU bool
}

// NewServer wires a JSON-RPC server over the node. ratePerMinute bounds
// requests per client IP; zero disables limiting.
func NewServer(node *core.Node, authority [20]byte, authToken string, ratePerMinute int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		node:      node,
		logger:    logger,
		authToken: strings.TrimSpace(authToken),
		authority: authority,
		limiters:  make(map[string]*rate.Limiter),
	}
	if ratePerMinute > 0 {
		s.rateLimit = rate.Limit(float64(ratePerMinute) / 60.0)
		s.rateBurst = ratePerMinute
		s.rateLimitU = true
	}
	return s
}

// SetEventSink enables the events_recent query.
func (s *Server) SetEventSink(sink *eventsink.Store) { s.sink = sink }

// Router builds the HTTP mux: the RPC endpoint plus health and metrics.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/", s.handle)
	return r
}

// Start serves the router until the listener fails.
func (s *Server) Start(addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	s.logger.Info("json-rpc listening", "addr", addr)
	return server.ListenAndServe()
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      json.RawMessage `json:"id"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if !s.allow(clientIP(r)) {
		writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded", nil)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "unable to read request", nil)
		return
	}
	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON", nil)
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", nil)
		return
	}

	spec, ok := methods[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
		return
	}
	if spec.admin && !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "unauthorized", nil)
		return
	}

	result, rpcErr := spec.handler(s, req.Params)
	if rpcErr != nil {
		writeError(w, http.StatusOK, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	writeResult(w, req.ID, result)
}

func (s *Server) authorized(r *http.Request) bool {
	if s.authToken == "" {
		return false
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	supplied := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return subtle.ConstantTimeCompare([]byte(supplied), []byte(s.authToken)) == 1
}

func (s *Server) allow(ip string) bool {
	if !s.rateLimitU {
		return true
	}
	s.mu.Lock()
	limiter, ok := s.limiters[ip]
	if !ok {
		limiter = rate.NewLimiter(s.rateLimit, s.rateBurst)
		s.limiters[ip] = limiter
	}
	s.mu.Unlock()
	return limiter.Allow()
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeError(w http.ResponseWriter, status int, id json.RawMessage, code int, message string, data interface{}) {
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &rpcError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	_ = json.NewEncoder(w).Encode(rpcResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj})
}

func writeResult(w http.ResponseWriter, id json.RawMessage, result interface{}) {
	_ = json.NewEncoder(w).Encode(rpcResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

// errCode maps engine errors onto RPC error objects. Domain rejections keep
// the server-error code with the sentinel text as the message.
func errCode(err error) *rpcError {
	switch {
	case errors.Is(err, core.ErrUnauthorized):
		return &rpcError{Code: codeUnauthorized, Message: err.Error()}
	case errors.Is(err, core.ErrHolderNotFound),
		errors.Is(err, auction.ErrNotFound),
		errors.Is(err, pool.ErrNotInitialized):
		return &rpcError{Code: codeInvalidParams, Message: err.Error()}
	case errors.Is(err, settlement.ErrInvalidAmount),
		errors.Is(err, tax.ErrInvalidAmount),
		errors.Is(err, pool.ErrInvalidAmount),
		errors.Is(err, auction.ErrInvalidStartPrice),
		errors.Is(err, auction.ErrEmptyAssetID),
		errors.Is(err, auction.ErrMessageTooLong),
		errors.Is(err, holder.ErrInvalidAmount):
		return &rpcError{Code: codeInvalidParams, Message: err.Error()}
	default:
		return &rpcError{Code: codeServerError, Message: err.Error()}
	}
}
