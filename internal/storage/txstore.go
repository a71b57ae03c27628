package storage

import (
	"fmt"

	"github.com/Klingon-tech/slp-validator/internal/log"
	"github.com/Klingon-tech/slp-validator/pkg/types"
)

// BadgerTxStore persists raw transaction bytes by txid, standing in for the
// original plugin's wallet.transactions dict (spec.md §4.3's fetch-ordering
// step (c), reached through a job's FetchHook).
type BadgerTxStore struct {
	db DB
}

// NewTxStore wraps db, namespacing its keys under "t/".
func NewTxStore(db DB) *BadgerTxStore {
	return &BadgerTxStore{db: NewPrefixDB(db, []byte("t/"))}
}

// Put stores raw transaction bytes under txid.
func (s *BadgerTxStore) Put(txid types.TxID, raw []byte) error {
	if err := s.db.Put(txid[:], raw); err != nil {
		return fmt.Errorf("store tx %s: %w", txid, err)
	}
	return nil
}

// Get returns the raw bytes stored for txid, or (nil, false) if absent.
func (s *BadgerTxStore) Get(txid types.TxID) ([]byte, bool) {
	raw, err := s.db.Get(txid[:])
	if err != nil {
		return nil, false
	}
	return raw, true
}

// FetchMany returns whichever of txids are present. cmd/slpvalidate wraps
// this into a job.FetchHook closure; a local KV lookup never blocks, so it
// takes no context.
func (s *BadgerTxStore) FetchMany(txids []types.TxID) map[types.TxID][]byte {
	out := make(map[types.TxID][]byte, len(txids))
	for _, txid := range txids {
		if raw, ok := s.Get(txid); ok {
			out[txid] = raw
		} else {
			log.Storage.Debug().Str("txid", txid.String()).Msg("tx store miss")
		}
	}
	return out
}
