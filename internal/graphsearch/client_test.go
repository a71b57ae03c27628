package graphsearch

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Klingon-tech/slp-validator/pkg/crypto"
	"github.com/Klingon-tech/slp-validator/pkg/types"
)

// decodeQuery reverses encodeQuery for a test server to inspect what a
// Client actually asked for.
func decodeQuery(t *testing.T, path string) map[string]interface{} {
	t.Helper()
	encoded := strings.TrimPrefix(path, "/q/")
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("decode query path: %v", err)
	}
	var q map[string]interface{}
	if err := json.Unmarshal(raw, &q); err != nil {
		t.Fatalf("unmarshal query: %v", err)
	}
	return q
}

func TestClient_SingleHopGraphSearch(t *testing.T) {
	leafRaw := []byte("leaf transaction bytes")
	leafTxid := crypto.TxIDOf(leafRaw)
	rootTxid := types.TxID{7}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := decodeQuery(t, r.URL.Path)
		query := q["q"].(map[string]interface{})
		if _, isGraphQuery := query["db"]; isGraphQuery {
			fmt.Fprintf(w, `{"g":[{"txid":"%s","tokenId":"","dependsOn":["%s"],"depths":[1],"txcount":1}]}`,
				rootTxid.String(), base64.StdEncoding.EncodeToString(leafRaw))
			return
		}
		fmt.Fprintf(w, `{"g":[{"txid":"%s","txcount":1,"totalDepth":1,"queryDepth":1}]}`, rootTxid.String())
	}))
	defer server.Close()

	c := New(server.URL, nil, []types.TxID{rootTxid})
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("graph search never finished")
	}

	res := c.Result()
	if res.ErrorMsg != "" {
		t.Fatalf("search error: %s", res.ErrorMsg)
	}
	got, ok := res.Transactions[leafTxid]
	if !ok {
		t.Fatalf("expected leaf txid %s among results: %v", leafTxid, res.Transactions)
	}
	if string(got) != string(leafRaw) {
		t.Fatalf("got %q, want %q", got, leafRaw)
	}
}

func TestClient_NoHost_FailsImmediately(t *testing.T) {
	c := New("", nil, []types.TxID{{1}})
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("graph search never finished")
	}
	if c.Result().ErrorMsg == "" {
		t.Fatal("expected an error when no host is configured")
	}
}

func TestClient_NoTxids_FailsImmediately(t *testing.T) {
	c := New("http://example.invalid", nil, nil)
	<-c.Done()
	if c.Result().ErrorMsg == "" {
		t.Fatal("expected an error when no txids are provided")
	}
}
