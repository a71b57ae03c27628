package graph

import (
	"sync"

	"github.com/Klingon-tech/slp-validator/pkg/types"
)

// TokenGraph is the per-token-id DAG of nodes, driven toward decided
// verdicts by repeated Examine/ResolveEdge/TryValidate calls from a
// ValidationJob. All mutation is serialized by mu; reads of a decided
// node's Validity are safe without holding it (Validity never changes
// back to Unknown except via Reset).
type TokenGraph struct {
	mu        sync.Mutex
	tokenID   types.TokenID
	validator Validator
	nodes     map[types.TxID]*Node

	// waitingChildren maps a parent txid to the set of child txids whose
	// WaitingFor names it — the reverse index driving propagation.
	waitingChildren map[types.TxID]map[types.TxID]struct{}
}

// New creates an empty graph for tokenID, driven by validator.
func New(tokenID types.TokenID, validator Validator) *TokenGraph {
	return &TokenGraph{
		tokenID:         tokenID,
		validator:       validator,
		nodes:           make(map[types.TxID]*Node),
		waitingChildren: make(map[types.TxID]map[types.TxID]struct{}),
	}
}

func (g *TokenGraph) TokenID() types.TokenID { return g.tokenID }
func (g *TokenGraph) Validator() Validator   { return g.validator }

// Add idempotently creates an unknown node for txid, returning the
// existing node if one is already present.
func (g *TokenGraph) Add(txid types.TxID) *Node {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addLocked(txid)
}

func (g *TokenGraph) addLocked(txid types.TxID) *Node {
	if n, ok := g.nodes[txid]; ok {
		return n
	}
	n := newNode(txid)
	g.nodes[txid] = n
	return n
}

// Get returns the node for txid, or (nil, false) if absent.
func (g *TokenGraph) Get(txid types.TxID) (*Node, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[txid]
	return n, ok
}

// Nodes returns a shallow copy of the txid -> node map as it stands right
// now. Nodes themselves are not copied; callers must not mutate them.
func (g *TokenGraph) Nodes() map[types.TxID]*Node {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[types.TxID]*Node, len(g.nodes))
	for k, v := range g.nodes {
		out[k] = v
	}
	return out
}

// Reset clears all nodes and verdicts.
func (g *TokenGraph) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes = make(map[types.TxID]*Node)
	g.waitingChildren = make(map[types.TxID]map[types.TxID]struct{})
}

// SetTransaction attaches a fetched transaction to txid's node, creating
// the node if needed.
func (g *TokenGraph) SetTransaction(tx *types.Transaction) *Node {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := g.addLocked(tx.TxID)
	n.Tx = tx
	return n
}

// Examine classifies a node whose transaction is present: it calls the
// validator's GetInfo once, records the outcome, and finalizes the node
// immediately on a prune verdict. Examine is a no-op if the node is
// already Examined or decided.
func (g *TokenGraph) Examine(node *Node) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if node.Examined || node.Decided() {
		return
	}
	if node.Tx == nil {
		panic("graph: Examine called before a transaction was set")
	}
	result := g.validator.GetInfo(node.Tx)
	if result.Pruned {
		g.finalizeLocked(node, result.PruneValidity)
		return
	}
	node.VinMask = result.VinMask
	node.MyInfo = result.MyInfo
	node.Outputs = result.Outputs
	node.Examined = true

	node.ParentEdges = nil
	for i, needed := range node.VinMask {
		if !needed || i >= len(node.Tx.Inputs) {
			continue
		}
		prevOut := node.Tx.Inputs[i].PrevOut
		node.ParentEdges = append(node.ParentEdges, ParentEdge{
			Index:      int(prevOut.Index),
			ParentTxID: prevOut.TxID,
		})
	}

	// GENESIS never has relevant parent edges; attempt validate right away.
	if len(node.ParentEdges) == 0 {
		g.tryValidateLocked(node)
	}
}

// ResolveEdge decides whether edge's parent is consensus-relevant to node,
// registering it in node.NeededParents / node.WaitingFor as appropriate.
// ready is false if the parent's own transaction hasn't been examined yet
// (the caller must fetch and Examine it before calling ResolveEdge again);
// when ready is true the edge has been fully resolved and will not be
// reconsidered.
func (g *TokenGraph) ResolveEdge(node *Node, edge ParentEdge) (ready bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	parent, ok := g.nodes[edge.ParentTxID]
	if !ok || (!parent.Examined && !parent.Decided()) {
		return false
	}

	slot := parent.OutputSlot(edge.Index)
	if !g.validator.CheckNeeded(node.MyInfo, slot) {
		return true
	}

	node.NeededParents[edge.ParentTxID] = struct{}{}
	if !parent.Decided() {
		node.WaitingFor[edge.ParentTxID] = struct{}{}
		g.registerWaitLocked(edge.ParentTxID, node.TxID)
	}
	return true
}

// PendingEdges returns the ParentEdges whose parent has not yet been
// examined — the job's fetch frontier for this node.
func (g *TokenGraph) PendingEdges(node *Node) []ParentEdge {
	g.mu.Lock()
	defer g.mu.Unlock()
	var pending []ParentEdge
	for _, edge := range node.ParentEdges {
		parent, ok := g.nodes[edge.ParentTxID]
		if !ok || (!parent.Examined && !parent.Decided()) {
			pending = append(pending, edge)
		}
	}
	return pending
}

// TryValidate attempts a verdict for node given its currently known
// NeededParents. If the validator decides, the node is finalized and
// propagation cascades to waiting children.
func (g *TokenGraph) TryValidate(node *Node) (decided bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tryValidateLocked(node)
}

func (g *TokenGraph) tryValidateLocked(node *Node) bool {
	if node.Decided() {
		return true
	}
	inputs := g.inputsInfoLocked(node)
	verdict, decided := g.validator.Validate(node.MyInfo, inputs)
	if !decided {
		return false
	}
	g.finalizeLocked(node, verdict)
	return true
}

func (g *TokenGraph) inputsInfoLocked(node *Node) []InputInfo {
	infos := make([]InputInfo, 0, len(node.NeededParents))
	for parentTxID := range node.NeededParents {
		parent, ok := g.nodes[parentTxID]
		if !ok {
			infos = append(infos, InputInfo{ParentTxID: parentTxID, ParentValidity: Unknown, ParentSlot: NoneSlot()})
			continue
		}
		slot := NoneSlot()
		for _, edge := range node.ParentEdges {
			if edge.ParentTxID == parentTxID {
				slot = parent.OutputSlot(edge.Index)
				break
			}
		}
		infos = append(infos, InputInfo{ParentTxID: parentTxID, ParentValidity: parent.Validity, ParentSlot: slot})
	}
	return infos
}

// Finalize sets node's validity and cascades propagation to any child
// waiting on it. It is exported for prune finalization from outside
// Examine (e.g. depth-limit cutoffs applied by the job).
func (g *TokenGraph) Finalize(node *Node, v Validity) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.finalizeLocked(node, v)
}

func (g *TokenGraph) finalizeLocked(node *Node, v Validity) {
	if node.Decided() {
		return
	}
	node.Validity = v

	waiters := g.waitingChildren[node.TxID]
	delete(g.waitingChildren, node.TxID)
	for childTxID := range waiters {
		if child, ok := g.nodes[childTxID]; ok {
			delete(child.WaitingFor, node.TxID)
			g.tryValidateLocked(child)
		}
	}
}

func (g *TokenGraph) registerWaitLocked(parentTxID, childTxID types.TxID) {
	set, ok := g.waitingChildren[parentTxID]
	if !ok {
		set = make(map[types.TxID]struct{})
		g.waitingChildren[parentTxID] = set
	}
	set[childTxID] = struct{}{}
}

// FinalizeFromProxy writes verdicts supplied by an external oracle onto
// nodes that are still unknown; a decided node is never overwritten.
func (g *TokenGraph) FinalizeFromProxy(results map[types.TxID]Validity) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for txid, v := range results {
		node, ok := g.nodes[txid]
		if !ok {
			continue
		}
		if node.Decided() {
			continue
		}
		g.finalizeLocked(node, v)
	}
}
