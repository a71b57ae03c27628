package network

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Klingon-tech/slp-validator/pkg/types"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_GetTransaction(t *testing.T) {
	wantRaw := []byte{0xde, 0xad, 0xbe, 0xef}
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Method != "getrawtransaction" {
			t.Fatalf("method = %q, want getrawtransaction", req.Method)
		}
		resp := response{
			JSONRPC: "2.0",
			Result:  json.RawMessage(`"` + hex.EncodeToString(wantRaw) + `"`),
			ID:      req.ID,
		}
		json.NewEncoder(w).Encode(resp)
	})

	client := New(srv.URL, "")
	txid := types.TxID{0x01}
	raw, err := client.GetTransaction(context.Background(), txid)
	if err != nil {
		t.Fatalf("GetTransaction error: %v", err)
	}
	if string(raw) != string(wantRaw) {
		t.Errorf("raw = %x, want %x", raw, wantRaw)
	}
}

func TestClient_GetTransaction_NotFound(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req request
		json.NewDecoder(r.Body).Decode(&req)
		resp := response{
			JSONRPC: "2.0",
			Error:   &rpcError{Code: -5, Message: "No such mempool or blockchain transaction"},
			ID:      req.ID,
		}
		json.NewEncoder(w).Encode(resp)
	})

	client := New(srv.URL, "")
	_, err := client.GetTransaction(context.Background(), types.TxID{0x02})
	if err == nil {
		t.Fatal("expected error for missing transaction")
	}
}

func TestClient_BroadcastTransaction(t *testing.T) {
	wantTxid := "abcd1234"
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Method != "sendrawtransaction" {
			t.Fatalf("method = %q, want sendrawtransaction", req.Method)
		}
		resp := response{JSONRPC: "2.0", Result: json.RawMessage(`"` + wantTxid + `"`), ID: req.ID}
		json.NewEncoder(w).Encode(resp)
	})

	client := New(srv.URL, "")
	ok, msg := client.BroadcastTransaction(context.Background(), []byte{0x01, 0x02})
	if !ok {
		t.Fatalf("expected ok=true, msg=%q", msg)
	}
	if msg != wantTxid {
		t.Errorf("msg = %q, want %q", msg, wantTxid)
	}
}

func TestClient_BroadcastTransaction_Rejected(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req request
		json.NewDecoder(r.Body).Decode(&req)
		resp := response{JSONRPC: "2.0", Error: &rpcError{Code: -26, Message: "txn-mempool-conflict"}, ID: req.ID}
		json.NewEncoder(w).Encode(resp)
	})

	client := New(srv.URL, "")
	ok, msg := client.BroadcastTransaction(context.Background(), []byte{0x01})
	if ok {
		t.Fatal("expected ok=false")
	}
	if msg == "" {
		t.Error("expected non-empty rejection message")
	}
}

func TestClient_GetTransaction_ConcurrentCallsCollapseToOneRequest(t *testing.T) {
	wantRaw := []byte{0xca, 0xfe}
	var requests int32
	release := make(chan struct{})

	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		<-release
		var req request
		json.NewDecoder(r.Body).Decode(&req)
		resp := response{
			JSONRPC: "2.0",
			Result:  json.RawMessage(`"` + hex.EncodeToString(wantRaw) + `"`),
			ID:      req.ID,
		}
		json.NewEncoder(w).Encode(resp)
	})

	client := New(srv.URL, "")
	txid := types.TxID{0x03}

	const callers = 5
	var starting, wg sync.WaitGroup
	starting.Add(callers)
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			starting.Done()
			raw, err := client.GetTransaction(context.Background(), txid)
			if err != nil {
				t.Errorf("GetTransaction error: %v", err)
				return
			}
			if string(raw) != string(wantRaw) {
				t.Errorf("raw = %x, want %x", raw, wantRaw)
			}
		}()
	}

	starting.Wait()
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&requests); got != 1 {
		t.Errorf("handler invoked %d times, want 1", got)
	}
}

func TestClient_SlpdbHost(t *testing.T) {
	client := New("http://node.example", "https://slpdb.example.com")
	if got := client.SlpdbHost(); got != "https://slpdb.example.com" {
		t.Errorf("SlpdbHost() = %q, want %q", got, "https://slpdb.example.com")
	}
}

func TestClient_Call_InvalidEndpoint(t *testing.T) {
	client := New("http://127.0.0.1:1/", "")
	var result string
	err := client.Call(context.Background(), "getrawtransaction", nil, &result)
	if err == nil {
		t.Fatal("expected connection error")
	}
}
