package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/torcnet/powchain/pkg/network"
)

// APIError is a non-2xx reply from a node.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("node returned %d: %s", e.Status, e.Message)
}

// Client calls a node's HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the node at baseURL. A missing scheme
// defaults to http.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var e ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Error == "" {
			e.Error = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// Chain fetches the node's full chain.
func (c *Client) Chain(ctx context.Context) (*network.ChainResponse, error) {
	var out network.ChainResponse
	if err := c.do(ctx, http.MethodGet, "/chain", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Mine asks the node to mine one block.
func (c *Client) Mine(ctx context.Context) (*MineResponse, error) {
	var out MineResponse
	if err := c.do(ctx, http.MethodGet, "/mine", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitTransaction queues a transaction on the node.
func (c *Client) SubmitTransaction(ctx context.Context, sender, recipient string,
	amount float64) (*MessageResponse, error) {

	req := SubmitRequest{Sender: &sender, Recipient: &recipient, Amount: &amount}

	var out MessageResponse
	if err := c.do(ctx, http.MethodPost, "/transactions/new", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RegisterNodes adds peers to the node's registry.
func (c *Client) RegisterNodes(ctx context.Context, nodes []string) (*RegisterResponse, error) {
	var out RegisterResponse
	err := c.do(ctx, http.MethodPost, "/nodes/register",
		RegisterRequest{Nodes: nodes}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Resolve triggers a consensus round on the node.
func (c *Client) Resolve(ctx context.Context) (*ResolveResponse, error) {
	var out ResolveResponse
	if err := c.do(ctx, http.MethodGet, "/nodes/resolve", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health returns the node's liveness summary.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
