// Package nft1 implements the NFT1 child consensus rules (token type 65).
// Unlike SLP1, an NFT1 child's GENESIS depends on an output of a different
// token graph entirely — the NFT1 group token it was minted under — so its
// validity cannot be decided from in-graph inputs alone. A ParentResolver
// supplies that cross-graph answer.
package nft1

import (
	"errors"

	"github.com/Klingon-tech/slp-validator/internal/graph"
	"github.com/Klingon-tech/slp-validator/pkg/slp"
	"github.com/Klingon-tech/slp-validator/pkg/types"
)

// ParentResolver answers whether the output at (txid, vout) — an output of
// some NFT1 group token's graph — is a valid, positive-quantity slot. ok is
// false if the parent transaction hasn't been examined yet; the caller must
// retry once the group graph has made progress.
type ParentResolver interface {
	ResolveGroupOutput(txid types.TxID, vout int) (validity graph.Validity, slot graph.OutputSlot, ok bool)
}

// Validator enforces NFT1 child consensus for one token id.
type Validator struct {
	tokenID  types.TokenID
	resolver ParentResolver
}

// New returns an NFT1 child validator scoped to tokenID, resolving its
// GENESIS group-token dependency through resolver.
func New(tokenID types.TokenID, resolver ParentResolver) *Validator {
	return &Validator{tokenID: tokenID, resolver: resolver}
}

var _ graph.Validator = (*Validator)(nil)

const nft1TokenType = 65

// GetInfo applies every NFT1 child rule that depends only on tx itself.
func (v *Validator) GetInfo(tx *types.Transaction) graph.GetInfoResult {
	if len(tx.Outputs) == 0 {
		return graph.Prune(graph.Malformed)
	}

	msg, err := slp.ParseOutputScript(tx.Outputs[0].Script)
	if err != nil {
		var unsupported *slp.ErrUnsupportedTokenType
		if errors.As(err, &unsupported) {
			return graph.Prune(graph.Unknown)
		}
		return graph.Prune(graph.Malformed)
	}

	if msg.TokenType != nft1TokenType {
		return graph.Prune(graph.Unknown)
	}

	switch msg.TransactionType {
	case slp.Commit:
		return graph.Prune(graph.Unknown)
	case slp.Mint:
		// NFT1 children have no mint baton; a MINT message against one is
		// always malformed consensus input.
		return graph.Prune(graph.Malformed)
	case slp.Genesis:
		if types.TokenID(tx.TxID) != v.tokenID {
			return graph.Prune(graph.Unknown)
		}
		return v.genesisInfo(tx, msg)
	case slp.Send:
		if msg.TokenID != v.tokenID {
			return graph.Prune(graph.Unknown)
		}
		return v.sendInfo(tx, msg)
	default:
		return graph.Prune(graph.Malformed)
	}
}

func (v *Validator) genesisInfo(tx *types.Transaction, msg *slp.Message) graph.GetInfoResult {
	if _, hasBaton := msg.HasMintBaton(); hasBaton {
		return graph.Prune(graph.Malformed)
	}
	if msg.InitialMintQuantity > 1 {
		return graph.Prune(graph.Malformed)
	}
	if len(tx.Inputs) == 0 {
		return graph.Prune(graph.Malformed)
	}
	if len(tx.Outputs) < 2 {
		return graph.Prune(graph.Malformed)
	}

	prevOut := tx.Inputs[0].PrevOut
	ref := graph.ExternalRef{TxID: prevOut.TxID, Vout: int(prevOut.Index)}

	outputs := []graph.OutputSlot{graph.NoneSlot(), graph.AmountSlot(msg.InitialMintQuantity)}
	mask := make([]bool, len(tx.Inputs)) // no in-graph edges; the group dependency resolves separately
	return graph.Proceed(mask, graph.GenesisWithRef(ref), alignOutputs(outputs, len(tx.Outputs)))
}

// sendInfo enforces the NFT1 child SEND shape exactly: a single declared
// token output, at vout 1, carrying the lone indivisible unit. Any other
// shape — no declared outputs, more than one, or the unit moved to any
// other vout — is malformed consensus input.
func (v *Validator) sendInfo(tx *types.Transaction, msg *slp.Message) graph.GetInfoResult {
	if len(msg.TokenOutputs) != 1 || msg.TokenOutputs[0] != 1 {
		return graph.Prune(graph.Malformed)
	}

	outputs := []graph.OutputSlot{graph.NoneSlot(), graph.AmountSlot(1)}
	return graph.Proceed(allTrue(len(tx.Inputs)), graph.SendSum(1), alignOutputs(outputs, len(tx.Outputs)))
}

func alignOutputs(outputs []graph.OutputSlot, nOut int) []graph.OutputSlot {
	if len(outputs) > nOut {
		return outputs[:nOut]
	}
	for len(outputs) < nOut {
		outputs = append(outputs, graph.NoneSlot())
	}
	return outputs
}

func allTrue(n int) []bool {
	mask := make([]bool, n)
	for i := range mask {
		mask[i] = true
	}
	return mask
}

// CheckNeeded reports whether parentSlot is consensus-relevant to a SEND's
// needed amount. Never called for GENESIS (vin_mask is all false) or MINT
// (always pruned before myinfo is recorded).
func (v *Validator) CheckNeeded(myinfo graph.MyInfo, parentSlot graph.OutputSlot) bool {
	if myinfo.Kind == graph.MyInfoGenesis {
		panic("nft1: CheckNeeded called for GENESIS")
	}
	return parentSlot.IsPositiveAmount()
}

// Validate decides a verdict from myinfo and the currently known state of
// every needed parent. A GENESIS's verdict is resolved externally through
// the configured ParentResolver rather than from inputs (which is always
// empty for a GENESIS node).
func (v *Validator) Validate(myinfo graph.MyInfo, inputs []graph.InputInfo) (graph.Validity, bool) {
	switch myinfo.Kind {
	case graph.MyInfoGenesis:
		return v.validateGenesis(myinfo)
	case graph.MyInfoSendSum:
		return validateSend(myinfo.Sum, inputs)
	default:
		panic("nft1: Validate called with an unexpected MyInfo kind")
	}
}

func (v *Validator) validateGenesis(myinfo graph.MyInfo) (graph.Validity, bool) {
	if myinfo.Ref == nil {
		panic("nft1: GENESIS myinfo missing its group-token reference")
	}
	parentValidity, parentSlot, ok := v.resolver.ResolveGroupOutput(myinfo.Ref.TxID, myinfo.Ref.Vout)
	if !ok {
		return graph.Unknown, false
	}
	if parentValidity == graph.Valid && parentSlot.IsPositiveAmount() {
		return graph.Valid, true
	}
	return graph.TypeMismatch, true
}

func validateSend(need uint64, inputs []graph.InputInfo) (graph.Validity, bool) {
	var insumAll, insumValid uint64
	for _, in := range inputs {
		switch in.ParentValidity {
		case graph.Valid:
			insumValid += in.ParentSlot.Amount
			insumAll += in.ParentSlot.Amount
		case graph.Unknown:
			insumAll += in.ParentSlot.Amount
		}
	}
	if insumAll < need {
		return graph.InsufficientValidInputs, true
	}
	if insumValid >= need {
		return graph.Valid, true
	}
	return graph.Unknown, false
}
