package rpc

import "github.com/torcnet/powchain/pkg/core"

// MineResponse is returned by GET /mine.
type MineResponse struct {
	Message      string             `json:"message"`
	Index        uint64             `json:"index"`
	Transactions []core.Transaction `json:"transactions"`
	Proof        uint64             `json:"proof"`
	PreviousHash string             `json:"previous_hash"`
}

// SubmitRequest is the body of POST /transactions/new. Pointer fields tell a
// missing value apart from a zero one.
type SubmitRequest struct {
	Sender    *string  `json:"sender"`
	Recipient *string  `json:"recipient"`
	Amount    *float64 `json:"amount"`
}

// MessageResponse carries a human-readable outcome.
type MessageResponse struct {
	Message string `json:"message"`
}

// RegisterRequest is the body of POST /nodes/register.
type RegisterRequest struct {
	Nodes []string `json:"nodes"`
}

// RegisterResponse is returned by POST /nodes/register.
type RegisterResponse struct {
	Message    string   `json:"message"`
	TotalNodes []string `json:"total_nodes"`
}

// ResolveResponse is returned by GET /nodes/resolve.
type ResolveResponse struct {
	Message  string       `json:"message"`
	Replaced bool         `json:"replaced"`
	Length   int          `json:"length"`
	Chain    []core.Block `json:"chain"`
}

// NodesResponse is returned by GET /nodes.
type NodesResponse struct {
	Nodes []string `json:"nodes"`
}

// PendingResponse is returned by GET /transactions/pending.
type PendingResponse struct {
	Transactions []core.Transaction `json:"transactions"`
	Length       int                `json:"length"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	NodeID string `json:"node_id"`
	Length int    `json:"length"`
	Tip    string `json:"tip"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
