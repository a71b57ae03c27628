// Package types defines core primitive types for the SLP validation core:
// transaction identifiers, outpoints, and the opaque transaction model the
// validators operate on.
package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// HashSize is the length of a hash in bytes.
const HashSize = 32

// Hash represents a 256-bit hash value.
type Hash [HashSize]byte

// TxID identifies a transaction by its double-hashed txid.
type TxID Hash

// TokenID identifies an SLP token. For GENESIS transactions it equals the
// genesis transaction's own TxID; for MINT/SEND it is read from the SLP
// message.
type TokenID Hash

// IsZero returns true if the hash is all zeros.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// String returns the hex-encoded hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Bytes returns a copy of the hash as a byte slice.
func (h Hash) Bytes() []byte {
	b := make([]byte, HashSize)
	copy(b, h[:])
	return b
}

// MarshalJSON encodes the hash as a hex string.
func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// UnmarshalJSON decodes a hex string into a hash.
func (h *Hash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*h = Hash{}
		return nil
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("invalid hash hex: %w", err)
	}
	if len(decoded) != HashSize {
		return fmt.Errorf("hash must be %d bytes, got %d", HashSize, len(decoded))
	}
	copy(h[:], decoded)
	return nil
}

// HexToHash converts a hex string to a Hash.
// Returns an error if the string is not exactly 64 hex characters.
func HexToHash(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("invalid hex: %w", err)
	}
	if len(b) != HashSize {
		return Hash{}, fmt.Errorf("hash must be %d bytes, got %d", HashSize, len(b))
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}

// IsZero returns true if the txid is all zeros.
func (t TxID) IsZero() bool {
	return Hash(t).IsZero()
}

// String returns the hex-encoded txid.
func (t TxID) String() string {
	return Hash(t).String()
}

// Bytes returns a copy of the txid as a byte slice.
func (t TxID) Bytes() []byte {
	return Hash(t).Bytes()
}

// MarshalJSON encodes the txid as a hex string.
func (t TxID) MarshalJSON() ([]byte, error) {
	return Hash(t).MarshalJSON()
}

// UnmarshalJSON decodes a hex string into a txid.
func (t *TxID) UnmarshalJSON(data []byte) error {
	return (*Hash)(t).UnmarshalJSON(data)
}

// HexToTxID converts a hex string to a TxID.
func HexToTxID(s string) (TxID, error) {
	h, err := HexToHash(s)
	return TxID(h), err
}

// IsZero returns true if the token ID is all zeros.
func (t TokenID) IsZero() bool {
	return Hash(t).IsZero()
}

// String returns the hex-encoded token ID.
func (t TokenID) String() string {
	return Hash(t).String()
}

// MarshalJSON encodes the token ID as a hex string.
func (t TokenID) MarshalJSON() ([]byte, error) {
	return Hash(t).MarshalJSON()
}

// UnmarshalJSON decodes a hex string into a token ID.
func (t *TokenID) UnmarshalJSON(data []byte) error {
	return (*Hash)(t).UnmarshalJSON(data)
}

// HexToTokenID converts a hex string to a TokenID.
func HexToTokenID(s string) (TokenID, error) {
	h, err := HexToHash(s)
	return TokenID(h), err
}
