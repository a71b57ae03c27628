package graphsearch

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/Klingon-tech/slp-validator/pkg/types"
)

func TestMetadataQuery_Shape(t *testing.T) {
	txid := types.TxID{1}
	q := metadataQuery([]types.TxID{txid}, 1000)

	encoded, err := encodeQuery(q)
	if err != nil {
		t.Fatalf("encodeQuery: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["v"].(float64) != 3 {
		t.Fatalf("v = %v, want 3", decoded["v"])
	}
	query := decoded["q"].(map[string]interface{})
	if int(query["limit"].(float64)) != 1 {
		t.Fatalf("limit = %v, want 1", query["limit"])
	}
}

func TestGraphQuery_Shape(t *testing.T) {
	txid := types.TxID{1}
	valid := types.TxID{2}
	q := graphQuery([]types.TxID{txid}, 5, []types.TxID{valid})

	encoded, err := encodeQuery(q)
	if err != nil {
		t.Fatalf("encodeQuery: %v", err)
	}
	raw, _ := base64.StdEncoding.DecodeString(encoded)

	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	query := decoded["q"].(map[string]interface{})
	aggregate := query["aggregate"].([]interface{})
	if len(aggregate) == 0 {
		t.Fatal("expected a non-empty aggregation pipeline")
	}
	graphLookup := aggregate[1].(map[string]interface{})["$graphLookup"].(map[string]interface{})
	if int(graphLookup["maxDepth"].(float64)) != 5 {
		t.Fatalf("maxDepth = %v, want 5", graphLookup["maxDepth"])
	}
}

func TestUnmarshalResponse_Metadata(t *testing.T) {
	body := []byte(`{"g":[{"txid":"` + types.TxID{1}.String() + `","txcount":3,"totalDepth":2,"queryDepth":2}]}`)
	var resp metadataResponse
	if err := unmarshalResponse(body, &resp); err != nil {
		t.Fatalf("unmarshalResponse: %v", err)
	}
	if len(resp.G) != 1 || resp.G[0].TxCount != 3 {
		t.Fatalf("got %+v", resp)
	}
}
