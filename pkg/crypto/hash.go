// Package crypto provides the hash primitive used to derive transaction
// ids for the validation core and its test fixtures.
package crypto

import (
	"github.com/Klingon-tech/slp-validator/pkg/types"
	"github.com/zeebo/blake3"
)

// Hash computes a BLAKE3-256 hash of the input data.
func Hash(data []byte) types.Hash {
	return blake3.Sum256(data)
}

// TxIDOf computes the TxID of a raw transaction: BLAKE3(BLAKE3(raw)),
// mirroring the double-hash convention used throughout the corpus this
// validator was grounded on.
func TxIDOf(raw []byte) types.TxID {
	first := Hash(raw)
	return types.TxID(Hash(first[:]))
}
