package vctx

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/Klingon-tech/slp-validator/internal/graph"
	"github.com/Klingon-tech/slp-validator/pkg/types"
)

const (
	opReturn    = 0x6a
	opPushdata1 = 0x4c
	lokadIDSLP  = "SLP\x00"
)

func push(buf *bytes.Buffer, data []byte) {
	switch {
	case len(data) == 0:
		buf.WriteByte(0x00)
	case len(data) <= 0x4b:
		buf.WriteByte(byte(len(data)))
		buf.Write(data)
	default:
		buf.WriteByte(opPushdata1)
		buf.WriteByte(byte(len(data)))
		buf.Write(data)
	}
}

func amount(v uint64) []byte {
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, v)
	return out
}

func genesisScript(qty uint64) []byte {
	var buf bytes.Buffer
	buf.WriteByte(opReturn)
	push(&buf, []byte(lokadIDSLP))
	push(&buf, []byte{1})
	push(&buf, []byte("GENESIS"))
	push(&buf, []byte("TOK"))
	push(&buf, []byte("Test Token"))
	push(&buf, []byte{})
	push(&buf, []byte{})
	push(&buf, []byte{0})
	push(&buf, []byte{})
	push(&buf, amount(qty))
	return buf.Bytes()
}

func genesisTx(txid types.TxID, qty uint64) *types.Transaction {
	return &types.Transaction{
		TxID:    txid,
		Outputs: []types.Output{{Script: genesisScript(qty)}, {Value: 546}},
	}
}

func identityDecode(raw []byte) (*types.Transaction, error) {
	var tx types.Transaction
	copy(tx.TxID[:], raw)
	return &tx, nil
}

func TestGetGraph_CreatesOnceAndReuses(t *testing.T) {
	c := New(Config{Decode: identityDecode})
	defer c.Kill()

	tokenID := types.TokenID{1}
	g1, err := c.GetGraph(tokenID, 1)
	if err != nil {
		t.Fatalf("GetGraph: %v", err)
	}
	g2, err := c.GetGraph(tokenID, 1)
	if err != nil {
		t.Fatalf("GetGraph: %v", err)
	}
	if g1 != g2 {
		t.Fatal("expected the same graph instance on a second call")
	}
}

func TestGetGraph_UnrecognizedTokenType(t *testing.T) {
	c := New(Config{Decode: identityDecode})
	defer c.Kill()

	if _, err := c.GetGraph(types.TokenID{1}, 99); err == nil {
		t.Fatal("expected an error for an unrecognized token type")
	}
}

func TestSetupJob_GenesisResolvesOwnTxIDAsTokenID(t *testing.T) {
	c := New(Config{Decode: identityDecode})
	defer c.Kill()

	root := types.TxID{1}
	tx := genesisTx(root, 100)

	g, err := c.SetupJob(tx)
	if err != nil {
		t.Fatalf("SetupJob: %v", err)
	}
	if g.TokenID() != types.TokenID(root) {
		t.Fatalf("tokenID = %s, want %s", g.TokenID(), root)
	}
}

func TestMakeJob_GenesisCompletesAndWritesValidityCache(t *testing.T) {
	vc := newFakeValidityCache()
	c := New(Config{Decode: identityDecode, ValidityCache: vc})
	defer c.Kill()

	root := types.TxID{1}
	tx := genesisTx(root, 100)

	h, err := c.MakeJob(tx)
	if err != nil {
		t.Fatalf("MakeJob: %v", err)
	}
	h.Wait()

	deadline := time.After(time.Second)
	for {
		if v, ok := vc.Get(types.TokenID(root), root); ok {
			if v != graph.Valid {
				t.Fatalf("cached validity = %v, want Valid", v)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("validity cache was never written")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestKillGraph_ForgetsGraph(t *testing.T) {
	c := New(Config{Decode: identityDecode})
	defer c.Kill()

	tokenID := types.TokenID{1}
	g1, _ := c.GetGraph(tokenID, 1)
	c.KillGraph(tokenID)
	g2, _ := c.GetGraph(tokenID, 1)
	if g1 == g2 {
		t.Fatal("expected a fresh graph after KillGraph")
	}
}

type fakeValidityCache struct {
	entries map[types.TokenID]map[types.TxID]graph.Validity
}

func newFakeValidityCache() *fakeValidityCache {
	return &fakeValidityCache{entries: make(map[types.TokenID]map[types.TxID]graph.Validity)}
}

func (f *fakeValidityCache) Get(tokenID types.TokenID, txid types.TxID) (graph.Validity, bool) {
	m, ok := f.entries[tokenID]
	if !ok {
		return graph.Unknown, false
	}
	v, ok := m[txid]
	return v, ok
}

func (f *fakeValidityCache) Set(tokenID types.TokenID, txid types.TxID, v graph.Validity) {
	m, ok := f.entries[tokenID]
	if !ok {
		m = make(map[types.TxID]graph.Validity)
		f.entries[tokenID] = m
	}
	m[txid] = v
}
