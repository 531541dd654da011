package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/torcnet/powchain/pkg/consensus"
	"github.com/torcnet/powchain/pkg/core"
	"github.com/torcnet/powchain/pkg/metrics"
	"github.com/torcnet/powchain/pkg/network"
)

const (
	// maxRequestBytes caps request bodies.
	maxRequestBytes = 1 << 20

	// MessageBlockForged is reported after a successful mine.
	MessageBlockForged = "New Block Forged"

	// MessageNodesAdded is reported after peers are registered.
	MessageNodesAdded = "New nodes have been added"

	// MessageReplaced and MessageAuthoritative report a resolution outcome.
	MessageReplaced      = "Our chain was replaced"
	MessageAuthoritative = "Our chain is authoritative"
)

// Config holds the components the server exposes.
type Config struct {
	// Listen is the TCP address to serve on.
	Listen string

	// NodeID is this node's reward address.
	NodeID string

	Chain    *core.Blockchain
	Miner    *consensus.Miner
	Resolver *consensus.Resolver
	Registry *network.Registry
	Metrics  *metrics.Metrics
}

// Server is the node's HTTP API.
type Server struct {
	cfg        Config
	router     *mux.Router
	ws         *WebSocketServer
	httpServer *http.Server
	listener   net.Listener
}

// NewServer creates a server and registers its routes.
func NewServer(cfg Config) *Server {
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}

	s := &Server{
		cfg:    cfg,
		router: mux.NewRouter(),
		ws:     NewWebSocketServer(),
	}
	s.registerRoutes()

	return s
}

// Handler returns the routed handler, for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds the listener and serves in the background. It also starts
// forwarding chain events to websocket subscribers.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("unable to listen on %s: %w", s.cfg.Listen, err)
	}
	s.listener = listener

	s.httpServer = &http.Server{
		Handler:     s.router,
		ReadTimeout: 10 * time.Second,
	}

	s.ws.Start(s.cfg.Chain)

	go func() {
		err := s.httpServer.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("RPC server error: %v", err)
		}
	}()

	log.Infof("RPC server listening on %s", listener.Addr())
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes websocket connections and drains in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	s.ws.Stop()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.router.Use(s.logRequests)

	s.router.HandleFunc("/mine", s.mineHandler).Methods("GET")
	s.router.HandleFunc("/transactions/new", s.newTransactionHandler).Methods("POST")
	s.router.HandleFunc("/transactions/pending", s.pendingHandler).Methods("GET")
	s.router.HandleFunc("/chain", s.chainHandler).Methods("GET")

	s.router.HandleFunc("/nodes", s.nodesHandler).Methods("GET")
	s.router.HandleFunc("/nodes/register", s.registerNodesHandler).Methods("POST")
	s.router.HandleFunc("/nodes/resolve", s.resolveHandler).Methods("GET")

	s.router.HandleFunc("/health", s.healthHandler).Methods("GET")
	s.router.Handle("/metrics", s.cfg.Metrics.Handler()).Methods("GET")
	s.router.HandleFunc("/ws", s.ws.HandleWebSocket)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debugf("%s %s from %s took %v", r.Method, r.URL.Path,
			r.RemoteAddr, time.Since(start))
	})
}

// mineHandler mines one block over the current pool. The search is
// cancelled if the client goes away.
func (s *Server) mineHandler(w http.ResponseWriter, r *http.Request) {
	block, err := s.cfg.Miner.MineBlock(r.Context())
	if err != nil {
		log.Warnf("Mining failed: %v", err)
		errorResponse(w, fmt.Sprintf("Mining failed: %v", err),
			http.StatusInternalServerError)
		return
	}

	jsonResponse(w, http.StatusOK, MineResponse{
		Message:      MessageBlockForged,
		Index:        block.Index,
		Transactions: block.Transactions,
		Proof:        block.Proof,
		PreviousHash: block.PreviousHash,
	})
}

func (s *Server) newTransactionHandler(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := decodeBody(w, r, &req); err != nil {
		errorResponse(w, "Invalid transaction format", http.StatusBadRequest)
		return
	}
	if req.Sender == nil || req.Recipient == nil || req.Amount == nil {
		errorResponse(w, "Missing values", http.StatusBadRequest)
		return
	}

	tx, err := core.NewTransaction(*req.Sender, *req.Recipient, *req.Amount)
	if err != nil {
		errorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	index, err := s.cfg.Chain.AddTransaction(tx)
	if err != nil {
		errorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.cfg.Metrics.TransactionsAdded.Inc()

	jsonResponse(w, http.StatusCreated, MessageResponse{
		Message: fmt.Sprintf("Transaction will be added to Block %d", index),
	})
}

func (s *Server) pendingHandler(w http.ResponseWriter, r *http.Request) {
	pending := s.cfg.Chain.Pending()
	jsonResponse(w, http.StatusOK, PendingResponse{
		Transactions: pending,
		Length:       len(pending),
	})
}

func (s *Server) chainHandler(w http.ResponseWriter, r *http.Request) {
	chain := s.cfg.Chain.Chain()
	jsonResponse(w, http.StatusOK, network.ChainResponse{
		Chain:  chain,
		Length: len(chain),
	})
}

func (s *Server) nodesHandler(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, NodesResponse{Nodes: s.cfg.Registry.List()})
}

func (s *Server) registerNodesHandler(w http.ResponseWriter, r *http.Request) {
	var raw struct {
		Nodes json.RawMessage `json:"nodes"`
	}
	if err := decodeBody(w, r, &raw); err != nil {
		errorResponse(w, "Invalid request format", http.StatusBadRequest)
		return
	}

	var nodes []string
	if len(raw.Nodes) == 0 || bytes.Equal(raw.Nodes, []byte("null")) ||
		json.Unmarshal(raw.Nodes, &nodes) != nil {

		errorResponse(w, "Please supply a valid list of nodes",
			http.StatusBadRequest)
		return
	}

	if err := s.cfg.Registry.RegisterAll(nodes); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, network.ErrInvalidAddress) {
			status = http.StatusBadRequest
		}
		errorResponse(w, err.Error(), status)
		return
	}

	jsonResponse(w, http.StatusCreated, RegisterResponse{
		Message:    MessageNodesAdded,
		TotalNodes: s.cfg.Registry.List(),
	})
}

// resolveHandler joins or starts a resolution round. A client that goes away
// stops waiting but leaves the shared round running.
func (s *Server) resolveHandler(w http.ResponseWriter, r *http.Request) {
	res, err := s.cfg.Resolver.Resolve(r.Context())
	if err != nil {
		errorResponse(w, fmt.Sprintf("Resolution failed: %v", err),
			http.StatusInternalServerError)
		return
	}

	msg := MessageAuthoritative
	if res.Replaced {
		msg = MessageReplaced
	}
	jsonResponse(w, http.StatusOK, ResolveResponse{
		Message:  msg,
		Replaced: res.Replaced,
		Length:   res.Length,
		Chain:    s.cfg.Chain.Chain(),
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	tip := s.cfg.Chain.LastBlock()
	jsonResponse(w, http.StatusOK, HealthResponse{
		Status: "ok",
		NodeID: s.cfg.NodeID,
		Length: int(tip.Index),
		Tip:    tip.Hash,
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(v)
}

// jsonResponse sends a JSON response
func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Errorf("Unable to write response: %v", err)
	}
}

// errorResponse sends an error response
func errorResponse(w http.ResponseWriter, message string, statusCode int) {
	jsonResponse(w, statusCode, ErrorResponse{Error: message})
}
