package nft1

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/Klingon-tech/slp-validator/internal/graph"
	"github.com/Klingon-tech/slp-validator/pkg/types"
)

const (
	opReturn    = 0x6a
	opPushdata1 = 0x4c
	lokadIDSLP  = "SLP\x00"
)

type scriptBuilder struct {
	buf bytes.Buffer
}

func newScript() *scriptBuilder {
	b := &scriptBuilder{}
	b.buf.WriteByte(opReturn)
	return b
}

func (b *scriptBuilder) push(data []byte) *scriptBuilder {
	switch {
	case len(data) == 0:
		b.buf.WriteByte(0x00)
	case len(data) <= 0x4b:
		b.buf.WriteByte(byte(len(data)))
		b.buf.Write(data)
	default:
		b.buf.WriteByte(opPushdata1)
		b.buf.WriteByte(byte(len(data)))
		b.buf.Write(data)
	}
	return b
}

func (b *scriptBuilder) bytes() []byte { return b.buf.Bytes() }

func amount(v uint64) []byte {
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, v)
	return out
}

func genesisScript(batonVout byte, qty uint64) []byte {
	baton := []byte{batonVout}
	if batonVout == 0 {
		baton = []byte{}
	}
	return newScript().
		push([]byte(lokadIDSLP)).
		push([]byte{65}).
		push([]byte("GENESIS")).
		push([]byte("NFT")).
		push([]byte("Test NFT")).
		push([]byte{}).
		push([]byte{}).
		push([]byte{0}).
		push(baton).
		push(amount(qty)).
		bytes()
}

func sendScript(tokenID types.TokenID, amounts ...uint64) []byte {
	b := newScript().push([]byte(lokadIDSLP)).push([]byte{65}).push([]byte("SEND")).push(tokenID[:])
	for _, a := range amounts {
		b.push(amount(a))
	}
	return b.bytes()
}

func txWithScript(txid types.TxID, script []byte, nOut int, inputs []types.Input) *types.Transaction {
	outs := make([]types.Output, nOut)
	outs[0] = types.Output{Script: script}
	return &types.Transaction{TxID: txid, Inputs: inputs, Outputs: outs}
}

type fakeResolver struct {
	validity graph.Validity
	slot     graph.OutputSlot
	ok       bool
}

func (f *fakeResolver) ResolveGroupOutput(types.TxID, int) (graph.Validity, graph.OutputSlot, bool) {
	return f.validity, f.slot, f.ok
}

func TestGetInfo_Genesis_Valid(t *testing.T) {
	genTxID := types.TxID{1}
	groupTxID := types.TxID{9}
	v := New(types.TokenID(genTxID), &fakeResolver{})
	tx := txWithScript(genTxID, genesisScript(0, 1), 2, []types.Input{
		{PrevOut: types.Outpoint{TxID: groupTxID, Index: 1}},
	})

	res := v.GetInfo(tx)
	if res.Pruned {
		t.Fatalf("genesis pruned: %v", res.PruneValidity)
	}
	if res.MyInfo.Kind != graph.MyInfoGenesis || res.MyInfo.Ref == nil {
		t.Fatalf("myinfo = %+v, want GENESIS with a ref", res.MyInfo)
	}
	if res.MyInfo.Ref.TxID != groupTxID || res.MyInfo.Ref.Vout != 1 {
		t.Fatalf("ref = %+v, want (%s, 1)", res.MyInfo.Ref, groupTxID)
	}
}

// A type-1 (SLP1 fungible) GENESIS examined by an NFT1 validator is outside
// its accepted set — it must prune Unknown (don't cache), never TypeMismatch.
func TestGetInfo_SLP1Type_PrunesUnknownNotTypeMismatch(t *testing.T) {
	genTxID := types.TxID{1}
	v := New(types.TokenID(genTxID), &fakeResolver{})
	script := newScript().
		push([]byte(lokadIDSLP)).
		push([]byte{1}).
		push([]byte("GENESIS")).
		push([]byte("TKN")).
		push([]byte("Test Token")).
		push([]byte{}).
		push([]byte{}).
		push([]byte{0}).
		push([]byte{}).
		push(amount(1)).
		bytes()
	tx := txWithScript(genTxID, script, 2, []types.Input{{}})

	res := v.GetInfo(tx)
	if !res.Pruned || res.PruneValidity != graph.Unknown {
		t.Fatalf("got %+v, want Prune(Unknown)", res)
	}
}

func TestGetInfo_Genesis_WithBaton_Malformed(t *testing.T) {
	genTxID := types.TxID{1}
	v := New(types.TokenID(genTxID), &fakeResolver{})
	tx := txWithScript(genTxID, genesisScript(1, 1), 2, []types.Input{{}})

	res := v.GetInfo(tx)
	if !res.Pruned || res.PruneValidity != graph.Malformed {
		t.Fatalf("got %+v, want Prune(Malformed)", res)
	}
}

func TestGetInfo_Genesis_QuantityAboveOne_Malformed(t *testing.T) {
	genTxID := types.TxID{1}
	v := New(types.TokenID(genTxID), &fakeResolver{})
	tx := txWithScript(genTxID, genesisScript(0, 2), 2, []types.Input{{}})

	res := v.GetInfo(tx)
	if !res.Pruned || res.PruneValidity != graph.Malformed {
		t.Fatalf("got %+v, want Prune(Malformed)", res)
	}
}

func TestGetInfo_Genesis_NoInputs_Malformed(t *testing.T) {
	genTxID := types.TxID{1}
	v := New(types.TokenID(genTxID), &fakeResolver{})
	tx := txWithScript(genTxID, genesisScript(0, 1), 2, nil)

	res := v.GetInfo(tx)
	if !res.Pruned || res.PruneValidity != graph.Malformed {
		t.Fatalf("got %+v, want Prune(Malformed)", res)
	}
}

func TestGetInfo_Mint_AlwaysMalformed(t *testing.T) {
	tokenID := types.TokenID{1}
	v := New(tokenID, &fakeResolver{})
	script := newScript().push([]byte(lokadIDSLP)).push([]byte{65}).push([]byte("MINT")).
		push(tokenID[:]).push([]byte{}).push(amount(1)).bytes()
	tx := txWithScript(types.TxID{2}, script, 2, []types.Input{{}})

	res := v.GetInfo(tx)
	if !res.Pruned || res.PruneValidity != graph.Malformed {
		t.Fatalf("got %+v, want Prune(Malformed)", res)
	}
}

func TestGetInfo_Send_SingleUnit(t *testing.T) {
	tokenID := types.TokenID{1}
	v := New(tokenID, &fakeResolver{})
	tx := txWithScript(types.TxID{2}, sendScript(tokenID, 1), 2, []types.Input{{}})

	res := v.GetInfo(tx)
	if res.Pruned {
		t.Fatalf("send pruned: %v", res.PruneValidity)
	}
	if res.MyInfo.Sum != 1 {
		t.Fatalf("sum = %d, want 1", res.MyInfo.Sum)
	}
	if res.Outputs[1].Amount != 1 {
		t.Fatalf("outputs[1] = %v, want Amount(1)", res.Outputs[1])
	}
}

// A unit moved to vout 2 instead of vout 1 is malformed, not a valid send to
// a different position: NFT1 children only ever move to vout 1.
func TestGetInfo_Send_UnitAtWrongVout_Malformed(t *testing.T) {
	tokenID := types.TokenID{1}
	v := New(tokenID, &fakeResolver{})
	tx := txWithScript(types.TxID{2}, sendScript(tokenID, 0, 1), 3, []types.Input{{}})

	res := v.GetInfo(tx)
	if !res.Pruned || res.PruneValidity != graph.Malformed {
		t.Fatalf("got %+v, want Prune(Malformed)", res)
	}
}

func TestGetInfo_Send_SplitUnit_Malformed(t *testing.T) {
	tokenID := types.TokenID{1}
	v := New(tokenID, &fakeResolver{})
	tx := txWithScript(types.TxID{2}, sendScript(tokenID, 1, 1), 3, []types.Input{{}})

	res := v.GetInfo(tx)
	if !res.Pruned || res.PruneValidity != graph.Malformed {
		t.Fatalf("got %+v, want Prune(Malformed)", res)
	}
}

func TestValidate_Genesis_PendingUntilResolverReady(t *testing.T) {
	v := New(types.TokenID{1}, &fakeResolver{ok: false})
	myinfo := graph.GenesisWithRef(graph.ExternalRef{TxID: types.TxID{9}, Vout: 1})

	verdict, decided := v.Validate(myinfo, nil)
	if decided {
		t.Fatalf("got decided=%v verdict=%v, want pending", decided, verdict)
	}
}

func TestValidate_Genesis_ValidParent(t *testing.T) {
	v := New(types.TokenID{1}, &fakeResolver{ok: true, validity: graph.Valid, slot: graph.AmountSlot(1000)})
	myinfo := graph.GenesisWithRef(graph.ExternalRef{TxID: types.TxID{9}, Vout: 1})

	verdict, decided := v.Validate(myinfo, nil)
	if !decided || verdict != graph.Valid {
		t.Fatalf("got (%v,%v), want (Valid,true)", verdict, decided)
	}
}

func TestValidate_Genesis_InvalidParent(t *testing.T) {
	v := New(types.TokenID{1}, &fakeResolver{ok: true, validity: graph.Malformed})
	myinfo := graph.GenesisWithRef(graph.ExternalRef{TxID: types.TxID{9}, Vout: 1})

	verdict, decided := v.Validate(myinfo, nil)
	if !decided || verdict != graph.TypeMismatch {
		t.Fatalf("got (%v,%v), want (TypeMismatch,true)", verdict, decided)
	}
}
