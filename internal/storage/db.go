// Package storage provides the key-value abstractions backing the reference
// ValidityCache and TxStore implementations the validation core's job
// manager consults during fetch ordering (spec.md §4.3).
package storage

// DB is the interface for key-value storage.
type DB interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Has(key []byte) (bool, error)
	// ForEach iterates over all keys with the given prefix.
	// The callback receives a copy of the key; the value may share memory
	// with the database's own stored data.
	// Return a non-nil error from fn to stop iteration early.
	ForEach(prefix []byte, fn func(key, value []byte) error) error
	Close() error
}

// Batch accumulates writes for atomic commit.
type Batch interface {
	Put(key, value []byte) error
	Delete(key []byte) error
	Commit() error
}

// Batcher is implemented by DBs that support atomic batched writes.
type Batcher interface {
	NewBatch() Batch
}
