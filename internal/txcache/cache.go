// Package txcache provides an in-memory, size-bounded cache of raw
// transaction bytes consulted before any network fetch (spec.md §4.7's
// fetch-ordering: validity cache, tx cache, fetch-hook, network).
package txcache

import (
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/Klingon-tech/slp-validator/pkg/types"
)

// DefaultCapacity is the cache size used when no explicit capacity is
// configured.
const DefaultCapacity = 1000

// TxCache caches raw transaction bytes by txid. It never interprets the
// bytes it stores; callers own parsing.
type TxCache struct {
	lru *expirable.LRU[types.TxID, []byte]
}

// New returns a TxCache holding at most capacity entries. A capacity <= 0
// falls back to DefaultCapacity. Entries never expire by age — ttl 0 means
// "no TTL" to the underlying expirable.LRU.
func New(capacity int) *TxCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &TxCache{lru: expirable.NewLRU[types.TxID, []byte](capacity, nil, 0)}
}

// Get returns a defensive copy of the cached raw bytes for txid, or
// (nil, false) on a miss.
func (c *TxCache) Get(txid types.TxID) ([]byte, bool) {
	raw, ok := c.lru.Get(txid)
	if !ok {
		return nil, false
	}
	cp := make([]byte, len(raw))
	copy(cp, raw)
	return cp, true
}

// Put stores a defensive copy of raw under txid, evicting the least
// recently used entry if the cache is at capacity.
func (c *TxCache) Put(txid types.TxID, raw []byte) {
	cp := make([]byte, len(raw))
	copy(cp, raw)
	c.lru.Add(txid, cp)
}

// Len returns the number of entries currently cached.
func (c *TxCache) Len() int {
	return c.lru.Len()
}
