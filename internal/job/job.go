// Package job drives a single run of per-type validation across a token
// graph's frontier of undecided nodes (spec.md §4.3).
package job

import (
	"context"
	"fmt"

	"github.com/Klingon-tech/slp-validator/internal/graph"
	"github.com/Klingon-tech/slp-validator/internal/log"
	"github.com/Klingon-tech/slp-validator/internal/network"
	"github.com/Klingon-tech/slp-validator/internal/txcache"
	"github.com/Klingon-tech/slp-validator/pkg/types"
)

// ValidityCache is consulted before fetching an ancestor and updated on
// finalization (spec.md §4.3, §6's wallet.slpv1_validity).
type ValidityCache interface {
	Get(tokenID types.TokenID, txid types.TxID) (graph.Validity, bool)
	Set(tokenID types.TokenID, txid types.TxID, v graph.Validity)
}

// Decoder turns raw transaction bytes into the opaque Transaction model.
// Wire-format deserialization is outside this module's scope; the caller
// supplies it (pkg/types.Transaction's own doc comment).
type Decoder func(raw []byte) (*types.Transaction, error)

// FetchHook is the caller-supplied pre-fetch collaborator: given txids it
// may wish to examine, it returns whichever it already has on hand (wallet
// store, opportunistic graph-search results). A nil or partial result is
// fine; the job falls through to the network for the rest.
type FetchHook func(ctx context.Context, txids []types.TxID) map[types.TxID][]byte

// Config configures a single job run.
type Config struct {
	Graph         *graph.TokenGraph
	Roots         []types.TxID
	DownloadLimit *int
	DepthLimit    *int
	FetchHook     FetchHook
	ValidityCache ValidityCache
	TxCache       *txcache.TxCache
	Network       network.Network
	Decode        Decoder
}

// Job is a single run of the validator for a fixed root txid list on a
// graph, per spec.md §4.3.
type Job struct {
	cfg    Config
	status *Status
	cancel chan struct{}

	depth           map[types.TxID]int
	queued          map[types.TxID]bool
	pendingByParent map[types.TxID][]types.TxID // child txids blocked on this unready parent
	frontier        []types.TxID
}

// New builds a job ready to Run. The job does not start until Run is called.
func New(cfg Config) *Job {
	return &Job{
		cfg:             cfg,
		status:          newStatus(cfg.Roots),
		cancel:          make(chan struct{}),
		depth:           make(map[types.TxID]int),
		queued:          make(map[types.TxID]bool),
		pendingByParent: make(map[types.TxID][]types.TxID),
	}
}

// Status returns the job's live status handle.
func (j *Job) Status() *Status { return j.status }

// Cancel requests cooperative cancellation; takes effect at the next fetch
// or frontier pop.
func (j *Job) Cancel() {
	select {
	case <-j.cancel:
	default:
		close(j.cancel)
	}
}

func (j *Job) cancelled() bool {
	select {
	case <-j.cancel:
		return true
	default:
		return false
	}
}

// Run executes the frontier loop to completion, a limit, or cancellation.
func (j *Job) Run(ctx context.Context) {
	defer func() {
		for _, txid := range j.cfg.Roots {
			if node, ok := j.cfg.Graph.Get(txid); ok {
				j.status.setRootValidity(txid, node.Validity)
			}
		}
	}()

	for _, root := range j.cfg.Roots {
		j.depth[root] = 0
		j.cfg.Graph.Add(root)
		j.enqueue(root)
	}

	for len(j.frontier) > 0 {
		if j.cancelled() {
			j.status.finish(OutcomeCancelled)
			return
		}
		select {
		case <-ctx.Done():
			j.status.finish(OutcomeCancelled)
			return
		default:
		}

		txid := j.frontier[0]
		j.frontier = j.frontier[1:]
		delete(j.queued, txid)

		switch j.process(ctx, txid) {
		case stopCancelled:
			j.status.finish(OutcomeCancelled)
			return
		case stopLimitHit:
			j.status.finish(OutcomeIncomplete)
			return
		}
	}

	if j.allRootsDecided() {
		j.status.finish(OutcomeComplete)
	} else {
		j.status.finish(OutcomeIncomplete)
	}
}

func (j *Job) allRootsDecided() bool {
	for _, root := range j.cfg.Roots {
		node, ok := j.cfg.Graph.Get(root)
		if !ok || !node.Decided() {
			return false
		}
	}
	return true
}

func (j *Job) enqueue(txid types.TxID) {
	if j.queued[txid] {
		return
	}
	j.queued[txid] = true
	j.frontier = append(j.frontier, txid)
}

// processResult tells Run whether to keep draining the frontier or stop.
type processResult int

const (
	processContinue processResult = iota
	stopCancelled
	stopLimitHit
)

// process ensures txid's node has a transaction, examines it, and resolves
// whatever parent edges are currently answerable. It returns a non-continue
// result if a resource limit or cancellation forces the whole job to stop.
func (j *Job) process(ctx context.Context, txid types.TxID) processResult {
	node := j.cfg.Graph.Add(txid)
	if node.Decided() {
		j.wakeWaiters(txid)
		return processContinue
	}

	if j.cfg.ValidityCache != nil {
		if v, hit := j.cfg.ValidityCache.Get(j.cfg.Graph.TokenID(), txid); hit && v.Decided() {
			j.cfg.Graph.Finalize(node, v)
			j.wakeWaiters(txid)
			return processContinue
		}
	}

	if node.Tx == nil {
		tx, result := j.ensureTx(ctx, txid)
		switch result {
		case fetchCancelled:
			return stopCancelled
		case fetchLimitHit:
			return stopLimitHit
		case fetchMiss:
			return processContinue // stays permanently unknown; not a job-ending condition
		}
		node = j.cfg.Graph.SetTransaction(tx)
	}

	j.cfg.Graph.Examine(node)
	if node.Decided() {
		j.wakeWaiters(txid)
		return processContinue
	}
	if !node.Examined {
		// GetInfo pruned the node with Unknown: it has no MyInfo to
		// validate and no parent edges to follow.
		return processContinue
	}

	nodeDepth := j.depth[txid]
	for _, edge := range node.ParentEdges {
		parentDepth := nodeDepth + 1
		if j.cfg.DepthLimit != nil && parentDepth > *j.cfg.DepthLimit {
			j.status.recordDepth(nodeDepth)
			continue // never fetched; the edge stays unresolved forever
		}
		if d, seen := j.depth[edge.ParentTxID]; !seen || parentDepth < d {
			j.depth[edge.ParentTxID] = parentDepth
		}
		j.cfg.Graph.Add(edge.ParentTxID)

		if ready := j.cfg.Graph.ResolveEdge(node, edge); !ready {
			j.pendingByParent[edge.ParentTxID] = append(j.pendingByParent[edge.ParentTxID], txid)
			j.enqueue(edge.ParentTxID)
		}
	}

	// A validator's Validate only sees NeededParents that ResolveEdge has
	// actually populated; calling it while a parent edge is still
	// unresolved would read those parents as contributing nothing, not as
	// pending, and could finalize the wrong verdict. Wait for every edge to
	// clear PendingEdges first.
	if len(j.cfg.Graph.PendingEdges(node)) == 0 {
		j.cfg.Graph.TryValidate(node)
	}
	// node is examined now, decided or not, so children blocked on it can
	// resolve their edge to it and register a wait if it is still pending.
	j.wakeWaiters(txid)
	return processContinue
}

// wakeWaiters re-attempts ResolveEdge for every child that was blocked on
// txid becoming ready, now that it has been examined or decided.
func (j *Job) wakeWaiters(txid types.TxID) {
	waiters := j.pendingByParent[txid]
	delete(j.pendingByParent, txid)
	for _, childTxID := range waiters {
		child, ok := j.cfg.Graph.Get(childTxID)
		if !ok || child.Decided() {
			continue
		}
		// Walk every ParentEdge rather than PendingEdges(child): txid just
		// became examined or decided, so the edge pointing at it is no
		// longer "pending" by that definition even though ResolveEdge has
		// never been run on it.
		for _, edge := range child.ParentEdges {
			if edge.ParentTxID != txid {
				continue
			}
			if ready := j.cfg.Graph.ResolveEdge(child, edge); !ready {
				j.pendingByParent[txid] = append(j.pendingByParent[txid], childTxID)
			}
		}
		if len(j.cfg.Graph.PendingEdges(child)) == 0 {
			j.cfg.Graph.TryValidate(child)
		}
	}
}

// fetchResult tags how ensureTx's attempt to obtain a transaction concluded.
type fetchResult int

const (
	fetchFound fetchResult = iota
	fetchMiss             // every source missed; the node stays permanently unknown
	fetchLimitHit         // download_limit would be exceeded by a network fetch
	fetchCancelled
)

// ensureTx fetches txid's transaction through the fetch-ordering chain: the
// in-process transaction cache, the fetch-hook, then per-tx network
// (spec.md §4.3; the validity-cache step is handled by the caller before
// this is reached).
func (j *Job) ensureTx(ctx context.Context, txid types.TxID) (*types.Transaction, fetchResult) {
	if j.cancelled() {
		return nil, fetchCancelled
	}

	if j.cfg.TxCache != nil {
		if raw, hit := j.cfg.TxCache.Get(txid); hit {
			tx, err := j.decode(raw)
			if err == nil {
				return tx, fetchFound
			}
			log.Job.Warn().Str("txid", txid.String()).Err(err).Msg("tx cache hit failed to decode")
		}
	}

	if j.cfg.FetchHook != nil {
		hits := j.cfg.FetchHook(ctx, []types.TxID{txid})
		if raw, ok := hits[txid]; ok {
			tx, err := j.decode(raw)
			if err != nil {
				log.Job.Warn().Str("txid", txid.String()).Err(err).Msg("fetch-hook tx failed to decode")
				return nil, fetchMiss
			}
			if j.cfg.TxCache != nil {
				j.cfg.TxCache.Put(txid, raw)
			}
			return tx, fetchFound
		}
	}

	if j.cfg.DownloadLimit != nil && j.status.Snapshot().DownloadsMade >= *j.cfg.DownloadLimit {
		return nil, fetchLimitHit
	}
	if j.cfg.Network == nil {
		return nil, fetchMiss
	}

	raw, err := j.cfg.Network.GetTransaction(ctx, txid)
	j.status.recordDownload()
	if err != nil {
		j.status.recordError(fmt.Sprintf("fetch %s: %v", txid, err))
		return nil, fetchMiss
	}
	tx, err := j.decode(raw)
	if err != nil {
		j.status.recordError(fmt.Sprintf("decode %s: %v", txid, err))
		return nil, fetchMiss
	}
	if j.cfg.TxCache != nil {
		j.cfg.TxCache.Put(txid, raw)
	}
	return tx, fetchFound
}

func (j *Job) decode(raw []byte) (*types.Transaction, error) {
	if j.cfg.Decode == nil {
		return nil, fmt.Errorf("job: no transaction decoder configured")
	}
	return j.cfg.Decode(raw)
}
