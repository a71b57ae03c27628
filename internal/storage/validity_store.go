package storage

import (
	"fmt"

	"github.com/Klingon-tech/slp-validator/internal/graph"
	"github.com/Klingon-tech/slp-validator/internal/log"
	"github.com/Klingon-tech/slp-validator/pkg/types"
)

// BadgerValidityCache persists per-token-id, per-txid verdicts so a job
// never re-examines a transaction whose validity is already settled
// (spec.md §4.3's validity-cache fetch step; §6's wallet.slpv1_validity).
// It satisfies internal/job.ValidityCache.
type BadgerValidityCache struct {
	db DB
}

// NewValidityCache wraps db, namespacing its keys under "v/".
func NewValidityCache(db DB) *BadgerValidityCache {
	return &BadgerValidityCache{db: NewPrefixDB(db, []byte("v/"))}
}

func validityKey(tokenID types.TokenID, txid types.TxID) []byte {
	key := make([]byte, 0, len(tokenID)+1+len(txid))
	key = append(key, tokenID[:]...)
	key = append(key, '/')
	key = append(key, txid[:]...)
	return key
}

// Get returns the stored verdict for (tokenID, txid), or (Unknown, false) if
// nothing has been recorded yet.
func (c *BadgerValidityCache) Get(tokenID types.TokenID, txid types.TxID) (graph.Validity, bool) {
	raw, err := c.db.Get(validityKey(tokenID, txid))
	if err != nil {
		return graph.Unknown, false
	}
	if len(raw) != 1 {
		log.Storage.Warn().Str("txid", txid.String()).Msg("validity cache entry has unexpected width")
		return graph.Unknown, false
	}
	return graph.Validity(raw[0]), true
}

// Set persists v for (tokenID, txid). Only decided verdicts are worth
// persisting; callers should not call Set with Unknown.
func (c *BadgerValidityCache) Set(tokenID types.TokenID, txid types.TxID, v graph.Validity) {
	if err := c.db.Put(validityKey(tokenID, txid), []byte{byte(v)}); err != nil {
		log.Storage.Warn().Err(err).Str("txid", txid.String()).Msg("failed to persist validity verdict")
	}
}

// Forget removes any recorded verdict, used when a graph is Reset and its
// cached verdicts must no longer be trusted.
func (c *BadgerValidityCache) Forget(tokenID types.TokenID, txid types.TxID) error {
	if err := c.db.Delete(validityKey(tokenID, txid)); err != nil {
		return fmt.Errorf("forget validity for %s: %w", txid, err)
	}
	return nil
}
