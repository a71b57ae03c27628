// Package vctx is the process-wide validation registry: one job manager
// plus a token-id -> TokenGraph map, the unified GraphContext of spec.md
// §4.6 (collapsing the reference implementation's separate SLP1 class and
// NFT1 module-globals into a single type, per SPEC_FULL.md §13.3).
package vctx

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Klingon-tech/slp-validator/internal/graph"
	"github.com/Klingon-tech/slp-validator/internal/job"
	"github.com/Klingon-tech/slp-validator/internal/log"
	"github.com/Klingon-tech/slp-validator/internal/network"
	"github.com/Klingon-tech/slp-validator/internal/txcache"
	"github.com/Klingon-tech/slp-validator/internal/validator/nft1"
	"github.com/Klingon-tech/slp-validator/internal/validator/slp1"
	"github.com/Klingon-tech/slp-validator/pkg/slp"
	"github.com/Klingon-tech/slp-validator/pkg/types"
)

// proxyReplyTimeout bounds how long the completion callback waits for each
// outstanding oracle reply, per spec.md §5's "5-second timeout per expected
// reply".
const proxyReplyTimeout = 5 * time.Second

// Oracle is the external validity-oracle collaborator consulted alongside
// local validation when proxying is enabled (spec.md §4.6, §6's
// slp_validator_proxy_enabled). AddJob dispatches txids for checking and
// invokes callback exactly once, asynchronously, with txid -> isValid.
type Oracle interface {
	AddJob(txids []types.TxID, callback func(results map[types.TxID]bool))
}

// Limits carries the three tunables spec.md §6 names: download_limit,
// depth_limit, and whether the wallet's validity-oracle proxy is enabled.
type Limits struct {
	DownloadLimit *int
	DepthLimit    *int
	ProxyEnabled  bool
}

// Config wires a Context to its collaborators. ValidityCache, TxCache,
// Network, and Oracle may be nil in tests that only exercise graph
// bookkeeping; Oracle is also ignored whenever Limits.ProxyEnabled is false.
type Config struct {
	ValidityCache job.ValidityCache
	TxCache       *txcache.TxCache
	Network       network.Network
	Decode        job.Decoder
	FetchHook     job.FetchHook
	Oracle        Oracle
	Limits        Limits
	QueueDepth    int
}

// Context is the thread-safe registry mapping token-id to TokenGraph,
// owning the single JobManager that runs every job across every graph.
type Context struct {
	mu     sync.Mutex
	cfg    Config
	graphs map[types.TokenID]*graph.TokenGraph
	mgr    *job.Manager
}

// New constructs an empty Context with a running job manager.
func New(cfg Config) *Context {
	if cfg.QueueDepth < 1 {
		cfg.QueueDepth = 64
	}
	return &Context{
		cfg:    cfg,
		graphs: make(map[types.TokenID]*graph.TokenGraph),
		mgr:    job.NewManager(cfg.QueueDepth),
	}
}

// GetGraph returns the existing graph for tokenID, or constructs one with
// the validator appropriate to tokenType: SLP1 for 1/129, NFT1 child for
// 65. A fresh NFT1 validator is wired to this same Context as its
// ParentResolver, so it can reach across to whichever other graph the
// group token's own node lives in.
func (c *Context) GetGraph(tokenID types.TokenID, tokenType int) (*graph.TokenGraph, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getGraphLocked(tokenID, tokenType)
}

func (c *Context) getGraphLocked(tokenID types.TokenID, tokenType int) (*graph.TokenGraph, error) {
	if g, ok := c.graphs[tokenID]; ok {
		return g, nil
	}

	var v graph.Validator
	switch tokenType {
	case slp.TokenTypeFungible, slp.TokenTypeNFT1Group:
		v = slp1.New(tokenID, tokenType)
	case slp.TokenTypeNFT1Child:
		v = nft1.New(tokenID, &contextResolver{ctx: c})
	default:
		return nil, fmt.Errorf("vctx: unrecognized token type %d for token %s", tokenType, tokenID)
	}

	g := graph.New(tokenID, v)
	c.graphs[tokenID] = g
	return g, nil
}

// KillGraph removes tokenID's graph, dropping every in-flight verdict for
// it. A later GetGraph for the same token-id starts fresh.
func (c *Context) KillGraph(tokenID types.TokenID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.graphs, tokenID)
}

// SetupJob parses tx's SLP message and resolves (creating if needed) the
// graph it belongs to, per spec.md §4.6.
func (c *Context) SetupJob(tx *types.Transaction) (*graph.TokenGraph, error) {
	if len(tx.Outputs) == 0 {
		return nil, fmt.Errorf("vctx: transaction %s has no outputs", tx.TxID)
	}
	msg, err := slp.ParseOutputScript(tx.Outputs[0].Script)
	if err != nil {
		return nil, fmt.Errorf("vctx: parse %s: %w", tx.TxID, err)
	}

	var tokenID types.TokenID
	switch msg.TransactionType {
	case slp.Genesis:
		tokenID = types.TokenID(tx.TxID)
	case slp.Mint, slp.Send:
		tokenID = msg.TokenID
	default:
		return nil, fmt.Errorf("vctx: %s is not a GENESIS/MINT/SEND transaction", tx.TxID)
	}

	return c.GetGraph(tokenID, msg.TokenType)
}

// MakeJob resolves tx's graph, configures a job from this Context's
// collaborators and limits, submits it to the job manager, and arranges
// for the finished verdict to be written back to the validity cache —
// combining setup_job/make_job/the completion callback of spec.md §4.6
// into one call. When proxying is enabled, the job's fetch-hook also
// dispatches every txid it is asked about to the configured Oracle; the
// completion callback drains those replies (bounded by proxyReplyTimeout
// each) and folds them in via graph.FinalizeFromProxy before the final
// validity-cache write.
func (c *Context) MakeJob(tx *types.Transaction) (*job.Handle, error) {
	g, err := c.SetupJob(tx)
	if err != nil {
		return nil, err
	}
	g.SetTransaction(tx)

	c.mu.Lock()
	mgr := c.mgr
	limits := c.cfg.Limits
	fetchHook := c.cfg.FetchHook
	oracle := c.cfg.Oracle
	c.mu.Unlock()

	var proxy *proxyDispatch
	if limits.ProxyEnabled && oracle != nil {
		proxy = newProxyDispatch(oracle)
		fetchHook = proxy.wrap(fetchHook)
	}

	cfg := job.Config{
		Graph:         g,
		Roots:         []types.TxID{tx.TxID},
		DownloadLimit: limits.DownloadLimit,
		DepthLimit:    limits.DepthLimit,
		FetchHook:     fetchHook,
		ValidityCache: c.cfg.ValidityCache,
		TxCache:       c.cfg.TxCache,
		Network:       c.cfg.Network,
		Decode:        c.cfg.Decode,
	}

	h, err := mgr.Submit(cfg)
	if err != nil {
		return nil, fmt.Errorf("vctx: submit job for %s: %w", tx.TxID, err)
	}

	go c.awaitCompletion(h, g, tx.TxID, proxy)
	return h, nil
}

// awaitCompletion blocks until h finishes, folds in any outstanding oracle
// replies, and persists every decided node's verdict to the validity cache
// — mirroring the reference done_callback, which iterates job.nodes rather
// than only the root (spec.md §4.6).
func (c *Context) awaitCompletion(h *job.Handle, g *graph.TokenGraph, txid types.TxID, proxy *proxyDispatch) {
	h.Wait()

	if proxy != nil {
		if results := proxy.drain(); len(results) > 0 {
			g.FinalizeFromProxy(results)
		}
	}

	snap := h.Status()
	if v, ok := snap.Validity[txid]; !ok || !v.Decided() {
		log.Vctx.Debug().Str("txid", txid.String()).Str("outcome", snap.Outcome.String()).
			Msg("job finished without a decided root verdict")
	}

	if c.cfg.ValidityCache == nil {
		return
	}
	tokenID := g.TokenID()
	for nodeTxID, node := range g.Nodes() {
		if v := node.Validity; v.Decided() {
			c.cfg.ValidityCache.Set(tokenID, nodeTxID, v)
		}
	}
}

// proxyDispatch tracks oracle requests issued by one job's fetch-hook and
// collects their replies for the completion callback to drain. A job runs
// its frontier loop on a single goroutine, so dispatch and requests need no
// locking; drain only runs after the job's goroutine has finished.
type proxyDispatch struct {
	oracle   Oracle
	replies  chan map[types.TxID]bool
	requests int
}

func newProxyDispatch(oracle Oracle) *proxyDispatch {
	return &proxyDispatch{oracle: oracle, replies: make(chan map[types.TxID]bool, 16)}
}

// wrap returns a FetchHook that calls through to hook (if any) and also
// dispatches txids to the oracle, recording one outstanding reply.
func (p *proxyDispatch) wrap(hook job.FetchHook) job.FetchHook {
	return func(ctx context.Context, txids []types.TxID) map[types.TxID][]byte {
		var hits map[types.TxID][]byte
		if hook != nil {
			hits = hook(ctx, txids)
		}
		p.requests++
		p.oracle.AddJob(txids, func(results map[types.TxID]bool) {
			p.replies <- results
		})
		return hits
	}
}

// drain waits for every outstanding oracle reply, up to proxyReplyTimeout
// per reply, and converts the accumulated true/false verdicts into the
// graph.Validity values FinalizeFromProxy expects: the oracle only ever
// reports known-valid or known-invalid, never a code finer than that.
func (p *proxyDispatch) drain() map[types.TxID]graph.Validity {
	out := make(map[types.TxID]graph.Validity)
	for i := 0; i < p.requests; i++ {
		select {
		case r := <-p.replies:
			for txid, ok := range r {
				if ok {
					out[txid] = graph.Valid
				} else {
					out[txid] = graph.InsufficientValidInputs
				}
			}
		case <-time.After(proxyReplyTimeout):
			return out
		}
	}
	return out
}

// Kill resets every graph, kills the job manager, and installs a fresh
// one, per spec.md §4.6's kill(). The Context remains usable afterward.
func (c *Context) Kill() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mgr.Kill()
	c.graphs = make(map[types.TokenID]*graph.TokenGraph)
	c.mgr = job.NewManager(c.cfg.QueueDepth)
}

// contextResolver implements nft1.ParentResolver by scanning every graph
// this Context currently tracks for the referenced output. The group
// token's own graph must already be registered here — typically because
// the caller validated it earlier — for resolution to succeed; this
// mirrors how the reference wallet looks up an already-held
// Validator_SLP1 instance by token id (SPEC_FULL.md §12.3).
type contextResolver struct {
	ctx *Context
}

func (r *contextResolver) ResolveGroupOutput(txid types.TxID, vout int) (graph.Validity, graph.OutputSlot, bool) {
	r.ctx.mu.Lock()
	defer r.ctx.mu.Unlock()

	for _, g := range r.ctx.graphs {
		node, ok := g.Get(txid)
		if !ok {
			continue
		}
		if !node.Decided() {
			return graph.Unknown, graph.OutputSlot{}, false
		}
		return node.Validity, node.OutputSlot(vout), true
	}
	return graph.Unknown, graph.OutputSlot{}, false
}
