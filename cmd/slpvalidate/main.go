// slpvalidate - SLP token DAG validation core CLI.
//
// Usage:
//
//	slpvalidate [options] <txid>  Validate a transaction's SLP token status
//	slpvalidate --help            Show help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/Klingon-tech/slp-validator/config"
	"github.com/Klingon-tech/slp-validator/internal/graph"
	"github.com/Klingon-tech/slp-validator/internal/graphsearch"
	vlog "github.com/Klingon-tech/slp-validator/internal/log"
	"github.com/Klingon-tech/slp-validator/internal/network"
	"github.com/Klingon-tech/slp-validator/internal/storage"
	"github.com/Klingon-tech/slp-validator/internal/txcache"
	"github.com/Klingon-tech/slp-validator/internal/vctx"
	"github.com/Klingon-tech/slp-validator/internal/wire"
	"github.com/Klingon-tech/slp-validator/pkg/types"
)

func main() {
	// ── 1. Load config (defaults → file → flags) ────────────────────────
	cfg, flags, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(flags.Args) != 1 {
		fmt.Fprintln(os.Stderr, "Error: expected exactly one <txid> argument")
		os.Exit(1)
	}

	// ── 2. Init logger ────────────────────────────────────────────────
	logFile := cfg.Log.File
	if err := vlog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	logger := vlog.WithComponent("cli")

	txid, err := types.HexToTxID(flags.Args[0])
	if err != nil {
		logger.Fatal().Err(err).Str("txid", flags.Args[0]).Msg("invalid txid")
	}

	// ── 3. Open reference storage, if configured ─────────────────────
	var validityCache *storage.BadgerValidityCache
	var txStore *storage.BadgerTxStore
	if cfg.Storage.Enabled {
		db, err := storage.NewBadger(cfg.StorageDir())
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.StorageDir()).Msg("failed to open storage")
		}
		defer db.Close()
		validityCache = storage.NewValidityCache(db)
		txStore = storage.NewTxStore(db)
		logger.Info().Str("path", cfg.StorageDir()).Msg("reference storage opened")
	}

	// ── 4. Network + tx cache ────────────────────────────────────────
	net := network.New(cfg.Node.RPCEndpoint, cfg.Indexer.Host)
	cache := txcache.New(txcache.DefaultCapacity)

	// ── fetch-hook: wallet-local store, then the graph-search accelerator ──
	// (spec.md §4.3 fetch ordering (c): wallet store first, then opportunistic
	// bulk graph search, before the job ever falls through to per-tx network).
	var searchLimiter *rate.Limiter
	if cfg.Indexer.Host != "" && cfg.Indexer.RatePerSecond > 0 {
		searchLimiter = rate.NewLimiter(rate.Limit(cfg.Indexer.RatePerSecond), 1)
	}
	fetchHook := func(ctx context.Context, txids []types.TxID) map[types.TxID][]byte {
		hits := make(map[types.TxID][]byte, len(txids))
		if txStore != nil {
			for txid, raw := range txStore.FetchMany(txids) {
				hits[txid] = raw
			}
		}
		if cfg.Indexer.Host == "" {
			return hits
		}
		var missing []types.TxID
		for _, txid := range txids {
			if _, ok := hits[txid]; !ok {
				missing = append(missing, txid)
			}
		}
		if len(missing) == 0 {
			return hits
		}

		search := graphsearch.New(cfg.Indexer.Host, searchLimiter, missing)
		select {
		case <-search.Done():
		case <-ctx.Done():
			return hits
		}
		if res := search.Result(); res != nil {
			for txid, raw := range res.Transactions {
				hits[txid] = raw
				if txStore != nil {
					if err := txStore.Put(txid, raw); err != nil {
						logger.Warn().Err(err).Str("txid", txid.String()).Msg("failed to persist graph-search result")
					}
				}
			}
		}
		return hits
	}

	// ── 5. Build the GraphContext ────────────────────────────────────
	vctxCfg := vctx.Config{
		TxCache:    cache,
		Network:    net,
		Decode:     wire.Decode,
		FetchHook:  fetchHook,
		QueueDepth: 64,
		Limits: vctx.Limits{
			DownloadLimit: cfg.Validator.DownloadLimit,
			DepthLimit:    cfg.Validator.DepthLimit,
			ProxyEnabled:  cfg.Validator.ProxyEnabled,
		},
	}
	if validityCache != nil {
		vctxCfg.ValidityCache = validityCache
	}
	gctx := vctx.New(vctxCfg)
	defer gctx.Kill()

	// ── 6. Fetch the root transaction and submit a job ────────────────
	fetchCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	raw, err := net.GetTransaction(fetchCtx, txid)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Str("txid", txid.String()).Msg("failed to fetch root transaction")
	}
	tx, err := wire.Decode(raw)
	if err != nil {
		logger.Fatal().Err(err).Str("txid", txid.String()).Msg("failed to decode root transaction")
	}

	runID := uuid.New()
	logger.Info().Str("run_id", runID.String()).Str("txid", txid.String()).Msg("starting validation job")

	handle, err := gctx.MakeJob(tx)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to submit job")
	}

	// ── 7. Wait for completion or a shutdown signal ────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		handle.Wait()
		close(done)
	}()

	select {
	case <-done:
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutdown signal received, cancelling job")
		handle.Cancel()
		<-done
	}

	snap := handle.Status()
	v, ok := snap.Validity[txid]
	if !ok {
		v = graph.Unknown
	}
	fmt.Printf("%s: %s (%s)\n", txid, v, snap.Outcome)
	if v != graph.Valid {
		os.Exit(1)
	}
}
