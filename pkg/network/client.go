package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/torcnet/powchain/pkg/core"
)

const (
	// DefaultTimeout bounds a single chain fetch.
	DefaultTimeout = 5 * time.Second

	// DefaultMaxChainBytes caps the size of a peer's chain response.
	DefaultMaxChainBytes = 64 << 20
)

// ErrBadResponse is returned when a peer answers with something other than a
// well-formed chain.
var ErrBadResponse = errors.New("bad chain response")

// ChainResponse is the body served on GET /chain.
type ChainResponse struct {
	Chain  []core.Block `json:"chain"`
	Length int          `json:"length"`
}

// ChainFetcher retrieves a peer's full chain.
type ChainFetcher interface {
	FetchChain(ctx context.Context, addr string) ([]core.Block, error)

	// Timeout is the bound on a single fetch.
	Timeout() time.Duration
}

// Client fetches chains from peers over HTTP.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	maxBytes   int64
}

// NewClient creates a client. Zero values select the defaults.
func NewClient(timeout time.Duration, maxBytes int64) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxChainBytes
	}
	return &Client{
		httpClient: &http.Client{},
		timeout:    timeout,
		maxBytes:   maxBytes,
	}
}

// Timeout returns the bound on a single fetch.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// FetchChain requests http://addr/chain and checks that the reported length
// matches the number of blocks. It does not validate the blocks themselves.
func (c *Client) FetchChain(ctx context.Context, addr string) ([]core.Block, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		"http://"+addr+"/chain", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s answered %s", ErrBadResponse, addr,
			resp.Status)
	}

	// One byte past the cap marks an oversized body.
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > c.maxBytes {
		return nil, fmt.Errorf("%w: %s sent more than %d bytes",
			ErrBadResponse, addr, c.maxBytes)
	}

	var chain ChainResponse
	if err := json.Unmarshal(body, &chain); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBadResponse, addr, err)
	}
	if chain.Length != len(chain.Chain) {
		return nil, fmt.Errorf("%w: %s reported length %d for %d blocks",
			ErrBadResponse, addr, chain.Length, len(chain.Chain))
	}

	log.Tracef("Fetched %d blocks from %s", len(chain.Chain), addr)
	return chain.Chain, nil
}
