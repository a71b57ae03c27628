// Package slp parses SLP (Simple Ledger Protocol) OP_RETURN token messages
// out of a transaction's first output script. It is the
// parse_slp_output_script collaborator spec.md §1 assumes is available
// externally; this implementation supplements it so the validation core is
// runnable end-to-end.
package slp

import "github.com/Klingon-tech/slp-validator/pkg/types"

// TransactionType identifies the SLP message's transaction_type field.
type TransactionType string

const (
	Genesis TransactionType = "GENESIS"
	Mint    TransactionType = "MINT"
	Send    TransactionType = "SEND"
	Commit  TransactionType = "COMMIT"
)

// Token type identifiers recognized by this parser.
const (
	TokenTypeFungible  = 1   // SLP1
	TokenTypeNFT1Child = 65  // NFT1 child (0x41)
	TokenTypeNFT1Group = 129 // NFT1 group / SLP1-compatible mint baton (0x81)
)

// Message is a parsed SLP OP_RETURN message. Only the fields relevant to
// the named TransactionType are populated; see the Genesis*/Mint*/Send*
// accessors.
type Message struct {
	TokenType       int
	TransactionType TransactionType

	// GENESIS fields.
	Ticker              string
	Name                string
	DocumentURI         string
	DocumentHash        []byte
	Decimals            uint8
	GenesisMintBatonVout int // 0 means no baton
	InitialMintQuantity uint64

	// MINT fields.
	TokenID           types.TokenID
	MintBatonVout     int // 0 means no baton
	AdditionalMintQty uint64

	// SEND fields.
	TokenOutputs []uint64 // token_output, aligned to tx output index 1..N
}

// HasMintBaton reports whether a GENESIS or MINT message designates a mint
// baton output, and its vout index.
func (m *Message) HasMintBaton() (vout int, ok bool) {
	switch m.TransactionType {
	case Genesis:
		if m.GenesisMintBatonVout == 0 {
			return 0, false
		}
		return m.GenesisMintBatonVout, true
	case Mint:
		if m.MintBatonVout == 0 {
			return 0, false
		}
		return m.MintBatonVout, true
	default:
		return 0, false
	}
}
