package graph

import "github.com/Klingon-tech/slp-validator/pkg/types"

// ParentEdge is one consensus-relevant input: the output index of the
// child's input (for slot lookups) and the parent transaction it spends.
type ParentEdge struct {
	Index      int
	ParentTxID types.TxID
}

// Node is one entry in a TokenGraph: a transaction and its inference state.
// Once Validity is decided it is final until an explicit graph Reset.
type Node struct {
	TxID types.TxID
	Tx   *types.Transaction

	// Examined is true once GetInfo has classified this node (Proceed case).
	// Pruned nodes never set Examined — they go straight to final Validity.
	Examined bool
	MyInfo   MyInfo
	Outputs  []OutputSlot
	VinMask  []bool

	// ParentEdges lists every input whose vin_mask entry is true, fixed once
	// Examined. NeededParents narrows that set to edges CheckNeeded accepted.
	ParentEdges   []ParentEdge
	NeededParents map[types.TxID]struct{}

	// WaitingFor is the subset of NeededParents still undecided; it drives
	// propagation registration in the owning graph.
	WaitingFor map[types.TxID]struct{}

	Validity Validity
}

func newNode(txid types.TxID) *Node {
	return &Node{
		TxID:          txid,
		NeededParents: make(map[types.TxID]struct{}),
		WaitingFor:    make(map[types.TxID]struct{}),
	}
}

// Decided reports whether the node's validity is final.
func (n *Node) Decided() bool {
	return n.Validity.Decided()
}

// OutputSlot returns the output slot at vout, or SlotNone if out of range
// or not yet computed.
func (n *Node) OutputSlot(vout int) OutputSlot {
	if vout < 0 || vout >= len(n.Outputs) {
		return NoneSlot()
	}
	return n.Outputs[vout]
}
