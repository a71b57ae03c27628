// Package graphsearch is the bulk-download accelerator: a single-worker
// client that asks an SLPDB-shaped indexer for a txid's whole ancestor set
// in one round trip, instead of the validator fetching ancestors one at a
// time (spec.md §5's "one worker per graph-search client").
package graphsearch

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/Klingon-tech/slp-validator/internal/log"
	"github.com/Klingon-tech/slp-validator/pkg/crypto"
	"github.com/Klingon-tech/slp-validator/pkg/types"
)

// DefaultMaxTxnDownload is the server-side ceiling on how many transactions
// a single metadata query will plan for, mirroring the reference client's
// self.max_txn_dl.
const DefaultMaxTxnDownload = 1000

const (
	metadataTimeout = 10 * time.Second
	graphTimeout    = 60 * time.Second
)

// Progress reports a running search's counters, analogous to the reference
// client's txn_count_total/txn_count_progress pair.
type Progress struct {
	Done  int
	Total int
}

// Result is a completed search: every ancestor transaction discovered,
// keyed by txid, plus how it finished.
type Result struct {
	Transactions map[types.TxID][]byte
	SuccessMsg   string
	ErrorMsg     string
}

var (
	metricSearches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "slp_graphsearch_searches_total",
		Help: "Graph-search jobs completed, labeled by outcome.",
	}, []string{"outcome"})
	metricTxFetched = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "slp_graphsearch_transactions_fetched_total",
		Help: "Ancestor transactions returned by graph-search queries.",
	})
)

func init() {
	prometheus.MustRegister(metricSearches, metricTxFetched)
}

// Client runs one graph-search job at a time on its own goroutine, exactly
// as the reference implementation dedicates one background thread per
// search (spec.md §5).
type Client struct {
	host     string
	http     *http.Client
	limiter  *rate.Limiter
	maxTxnDL int

	mu       sync.Mutex
	progress Progress
	result   *Result
	done     chan struct{}
}

// New starts a graph-search job for txids against the given SLPDB host.
// limiter paces outgoing HTTP queries; a nil limiter disables pacing.
func New(host string, limiter *rate.Limiter, txids []types.TxID) *Client {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	c := &Client{
		host:     host,
		http:     &http.Client{},
		limiter:  limiter,
		maxTxnDL: DefaultMaxTxnDownload,
		done:     make(chan struct{}),
	}
	go c.run(txids)
	return c
}

// Done returns a channel closed once the search finishes.
func (c *Client) Done() <-chan struct{} { return c.done }

// Progress returns a snapshot of the search's current counters.
func (c *Client) Progress() Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress
}

// Result returns the completed search's result, or nil if still running.
func (c *Client) Result() *Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

func (c *Client) run(txids []types.TxID) {
	defer close(c.done)
	defer log.GraphSearch.Info().Msg("graph search thread completed")

	if len(txids) == 0 {
		c.finish(&Result{ErrorMsg: "no txids provided for graph search query"})
		return
	}

	out := make(map[types.TxID][]byte)
	if err := c.searchTree(context.Background(), txids, out); err != nil {
		log.GraphSearch.Error().Err(err).Msg("graph search failed")
		c.finish(&Result{Transactions: out, ErrorMsg: err.Error()})
		return
	}
	log.GraphSearch.Info().Int("count", len(out)).Msg("graph search job success")
	c.finish(&Result{Transactions: out, SuccessMsg: "ok"})
}

func (c *Client) finish(r *Result) {
	c.mu.Lock()
	c.result = r
	c.mu.Unlock()
	metricSearches.WithLabelValues(outcomeLabel(r)).Inc()
}

func outcomeLabel(r *Result) string {
	if r.ErrorMsg != "" {
		return "error"
	}
	return "success"
}

// searchTree walks txids' ancestor graph depth-first, following the
// reference client's metadata-then-search recursion: a metadata query finds
// each txid's walkable depth, a graph query fetches everything within that
// depth, and any ancestor sitting exactly at the cut depth seeds another
// round.
func (c *Client) searchTree(ctx context.Context, txids []types.TxID, out map[types.TxID][]byte) error {
	metas, err := c.metadataQuery(ctx, txids)
	if err != nil {
		return fmt.Errorf("graph search metadata query: %w", err)
	}

	for txid, meta := range metas {
		c.addTotal(meta.TxCount)
		if err := c.searchOne(ctx, txid, meta, out); err != nil {
			return fmt.Errorf("graph search query for %s: %w", txid, err)
		}
	}
	return nil
}

type txMeta struct {
	TxCount    int
	TotalDepth int
	QueryDepth int
}

func (c *Client) metadataQuery(ctx context.Context, txids []types.TxID) (map[types.TxID]txMeta, error) {
	if len(txids) == 0 {
		return nil, fmt.Errorf("no txids provided for graph search query")
	}
	q := metadataQuery(txids, c.maxTxnDL)
	body, err := c.query(ctx, q, metadataTimeout)
	if err != nil {
		return nil, err
	}

	var resp metadataResponse
	if err := unmarshalResponse(body, &resp); err != nil {
		return nil, err
	}

	out := make(map[types.TxID]txMeta, len(resp.G))
	for _, item := range resp.G {
		txid, err := types.HexToTxID(item.TxID)
		if err != nil {
			continue
		}
		out[txid] = txMeta{TxCount: item.TxCount, TotalDepth: item.TotalDepth, QueryDepth: item.QueryDepth}
	}
	return out, nil
}

func (c *Client) searchOne(ctx context.Context, txid types.TxID, meta txMeta, out map[types.TxID][]byte) error {
	q := graphQuery([]types.TxID{txid}, meta.QueryDepth, nil)
	body, err := c.query(ctx, q, graphTimeout)
	if err != nil {
		return err
	}

	var resp graphResponse
	if err := unmarshalResponse(body, &resp); err != nil {
		return err
	}

	var cutTxids []types.TxID
	for _, item := range resp.G {
		for i, raw := range item.DependsOn {
			rawBytes, err := base64.StdEncoding.DecodeString(raw)
			if err != nil {
				log.GraphSearch.Warn().Err(err).Msg("skipping undecodable ancestor tx")
				continue
			}
			depth := 0
			if i < len(item.Depths) {
				depth = item.Depths[i]
			}
			depTxid := txidOf(rawBytes)
			out[depTxid] = rawBytes
			metricTxFetched.Inc()
			c.addProgress(1)
			if meta.QueryDepth < meta.TotalDepth && depth == meta.QueryDepth {
				cutTxids = append(cutTxids, depTxid)
			}
		}
	}

	if len(cutTxids) == 0 {
		return nil
	}
	metas, err := c.metadataQuery(ctx, cutTxids)
	if err != nil {
		return err
	}
	for deeperTxid, deeperMeta := range metas {
		c.addTotal(deeperMeta.TxCount)
		if err := c.searchOne(ctx, deeperTxid, deeperMeta, out); err != nil {
			return err
		}
	}
	return nil
}

// query rate-limits, issues, and reads one SLPDB base64-query HTTP call.
func (c *Client) query(ctx context.Context, q map[string]interface{}, timeout time.Duration) ([]byte, error) {
	if c.host == "" {
		return nil, fmt.Errorf("SLPDB host is not set in network")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	encoded, err := encodeQuery(q)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	url := c.host + "/q/" + encoded
	log.GraphSearch.Debug().Str("url", url).Msg("graph search query")

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

func (c *Client) addTotal(n int) {
	c.mu.Lock()
	c.progress.Total += n
	c.mu.Unlock()
}

func (c *Client) addProgress(n int) {
	c.mu.Lock()
	c.progress.Done += n
	c.mu.Unlock()
}

func txidOf(raw []byte) types.TxID {
	return crypto.TxIDOf(raw)
}

// unmarshalResponse decodes an SLPDB response body into dst.
func unmarshalResponse(body []byte, dst interface{}) error {
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("decode graph search response: %w", err)
	}
	return nil
}
