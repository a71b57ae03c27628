package job

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/Klingon-tech/slp-validator/internal/graph"
	"github.com/Klingon-tech/slp-validator/internal/validator/slp1"
	"github.com/Klingon-tech/slp-validator/pkg/types"
)

const (
	opReturn    = 0x6a
	opPushdata1 = 0x4c
	lokadIDSLP  = "SLP\x00"
)

func amount(v uint64) []byte {
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, v)
	return out
}

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

func newTestJobConfig(root types.TxID) Config {
	tokenID := types.TokenID(root)
	v := slp1.New(tokenID, 1)
	g := graph.New(tokenID, v)
	g.SetTransaction(genesisTx(root, 100))
	return Config{
		Graph:  g,
		Roots:  []types.TxID{root},
		Decode: identityDecode,
	}
}

func TestManager_RunsSubmittedJobToCompletion(t *testing.T) {
	m := NewManager(4)
	defer m.Kill()

	root := types.TxID{1}
	h, err := m.Submit(newTestJobConfig(root))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	h.Wait()

	snap := h.Status()
	if snap.Outcome != OutcomeComplete {
		t.Fatalf("outcome = %v, want Complete", snap.Outcome)
	}
	if snap.Validity[root] != graph.Valid {
		t.Fatalf("root validity = %v, want Valid", snap.Validity[root])
	}
}

func TestManager_RunsJobsStrictlySerially(t *testing.T) {
	m := NewManager(8)
	defer m.Kill()

	var handles []*Handle
	for i := 0; i < 5; i++ {
		root := types.TxID{byte(i + 1)}
		h, err := m.Submit(newTestJobConfig(root))
		if err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
		handles = append(handles, h)
	}

	for i, h := range handles {
		h.Wait()
		if h.Status().Outcome != OutcomeComplete {
			t.Fatalf("job %d outcome = %v, want Complete", i, h.Status().Outcome)
		}
	}
}

// blockingNetwork never answers GetTransaction until release is closed, so
// a job built against it stays running until the test lets it go.
type blockingNetwork struct{ release chan struct{} }

func (n *blockingNetwork) GetTransaction(ctx context.Context, txid types.TxID) ([]byte, error) {
	<-n.release
	return nil, errors.New("blockingNetwork: no transactions")
}
func (n *blockingNetwork) BroadcastTransaction(ctx context.Context, raw []byte) (bool, string) {
	return false, "unused"
}
func (n *blockingNetwork) SlpdbHost() string { return "" }

func TestManager_KillCancelsRunningAndDropsQueued(t *testing.T) {
	m := NewManager(8)

	release := make(chan struct{})
	runningRoot := types.TxID{9}
	runningCfg := Config{
		Graph:   graph.New(types.TokenID(runningRoot), slp1.New(types.TokenID(runningRoot), 1)),
		Roots:   []types.TxID{runningRoot},
		Network: &blockingNetwork{release: release},
		Decode:  identityDecode,
	}
	running, err := m.Submit(runningCfg)
	if err != nil {
		t.Fatalf("Submit running: %v", err)
	}

	// Give the worker a chance to pick the running job up and block inside
	// its network fetch before a second job is queued behind it.
	time.Sleep(50 * time.Millisecond)

	queuedRoot := types.TxID{2}
	queued, err := m.Submit(newTestJobConfig(queuedRoot))
	if err != nil {
		t.Fatalf("Submit queued: %v", err)
	}

	killDone := make(chan struct{})
	go func() {
		m.Kill()
		close(killDone)
	}()

	time.Sleep(50 * time.Millisecond)
	close(release)

	select {
	case <-killDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Kill never returned")
	}

	if queued.Status().Outcome != OutcomeCancelled {
		t.Fatalf("queued job outcome = %v, want Cancelled", queued.Status().Outcome)
	}
	_ = running

	if _, err := m.Submit(newTestJobConfig(types.TxID{3})); err == nil {
		t.Fatal("expected Submit on a killed manager to fail")
	}
}
