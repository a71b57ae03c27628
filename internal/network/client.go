// Package network implements the Network collaborator the validation core
// consumes for per-transaction fetches and broadcast: a JSON-RPC 2.0 client
// talking to a full node, paired with the SLPDB-shaped indexer host used by
// internal/graphsearch for bulk ancestor downloads.
package network

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Klingon-tech/slp-validator/pkg/types"
)

// Network is the collaborator interface consumed by ValidationJob:
// broadcast_transaction, slpdb_host, get_transaction
// per spec.md §7.
type Network interface {
	// GetTransaction fetches the raw bytes of a transaction by id.
	GetTransaction(ctx context.Context, txid types.TxID) ([]byte, error)
	// BroadcastTransaction submits a raw transaction to the network.
	BroadcastTransaction(ctx context.Context, raw []byte) (ok bool, msg string)
	// SlpdbHost returns the base URL of the SLPDB-shaped indexer used for
	// bulk graph-search, or "" if none is configured.
	SlpdbHost() string
}

// Client is a JSON-RPC 2.0 client for a full node's transaction RPCs.
// Concurrent GetTransaction calls for the same txid on one Client collapse
// into a single in-flight RPC call via sf.
type Client struct {
	endpoint  string
	slpdbHost string
	http      *http.Client
	sf        singleflight.Group
}

// New creates a Client targeting the given node RPC endpoint, reporting
// slpdbHost for graph-search bulk downloads.
func New(endpoint, slpdbHost string) *Client {
	return NewWithTimeout(endpoint, slpdbHost, 10*time.Second)
}

// NewWithTimeout creates a Client with a custom HTTP timeout.
func NewWithTimeout(endpoint, slpdbHost string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint:  endpoint,
		slpdbHost: slpdbHost,
		http:      &http.Client{Timeout: timeout},
	}
}

type request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
	ID      int         `json:"id"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      int             `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RPCError is returned when the server responds with a JSON-RPC error.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Call invokes a JSON-RPC method and unmarshals the result into result.
// If result is nil, the response result is discarded.
func (c *Client) Call(ctx context.Context, method string, params, result interface{}) error {
	req := request{JSONRPC: "2.0", Method: method, Params: params, ID: 1}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var rpcResp response
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if rpcResp.Error != nil {
		return &RPCError{Code: rpcResp.Error.Code, Message: rpcResp.Error.Message}
	}
	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}
	return nil
}

// GetTransaction fetches a raw transaction by id via getrawtransaction.
// Concurrent callers asking for the same txid share one RPC round trip.
func (c *Client) GetTransaction(ctx context.Context, txid types.TxID) ([]byte, error) {
	v, err, _ := c.sf.Do(txid.String(), func() (interface{}, error) {
		var hexRaw string
		if err := c.Call(ctx, "getrawtransaction", []interface{}{txid.String(), false}, &hexRaw); err != nil {
			return nil, fmt.Errorf("getrawtransaction %s: %w", txid, err)
		}
		raw, err := hex.DecodeString(hexRaw)
		if err != nil {
			return nil, fmt.Errorf("decode raw tx hex: %w", err)
		}
		return raw, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// BroadcastTransaction submits a raw transaction via sendrawtransaction.
func (c *Client) BroadcastTransaction(ctx context.Context, raw []byte) (bool, string) {
	var txidHex string
	if err := c.Call(ctx, "sendrawtransaction", []interface{}{hex.EncodeToString(raw)}, &txidHex); err != nil {
		return false, err.Error()
	}
	return true, txidHex
}

// SlpdbHost returns the configured SLPDB-shaped indexer base URL.
func (c *Client) SlpdbHost() string {
	return c.slpdbHost
}
