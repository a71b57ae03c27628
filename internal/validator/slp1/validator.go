// Package slp1 implements the SLP1 fungible-token consensus rules (token
// types 1 and 129) as a graph.Validator.
package slp1

import (
	"errors"

	"github.com/Klingon-tech/slp-validator/internal/graph"
	"github.com/Klingon-tech/slp-validator/pkg/slp"
	"github.com/Klingon-tech/slp-validator/pkg/types"
)

// Validator enforces SLP1 consensus for one token id and its declared token
// type (1 for plain fungible, 129 for an NFT1 group / mint-baton-capable
// token). It holds no mutable state; the same instance may back any number
// of TokenGraphs for that token id.
type Validator struct {
	tokenID   types.TokenID
	tokenType int
}

// New returns an SLP1 validator scoped to tokenID, enforcing tokenType (1 or
// 129). tokenType is fixed at token creation and never changes afterward.
func New(tokenID types.TokenID, tokenType int) *Validator {
	return &Validator{tokenID: tokenID, tokenType: tokenType}
}

var _ graph.Validator = (*Validator)(nil)

// GetInfo applies every SLP1 rule that depends only on tx itself.
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

	if msg.TokenType != slp.TokenTypeFungible && msg.TokenType != slp.TokenTypeNFT1Group {
		return graph.Prune(graph.Unknown)
	}
	if msg.TokenType != v.tokenType {
		return graph.Prune(graph.TypeMismatch)
	}

	switch msg.TransactionType {
	case slp.Commit:
		return graph.Prune(graph.Unknown)
	case slp.Genesis:
		if types.TokenID(tx.TxID) != v.tokenID {
			return graph.Prune(graph.Unknown)
		}
		return v.genesisInfo(msg, len(tx.Outputs))
	case slp.Mint:
		if msg.TokenID != v.tokenID {
			return graph.Prune(graph.Unknown)
		}
		return v.mintInfo(tx, msg)
	case slp.Send:
		if msg.TokenID != v.tokenID {
			return graph.Prune(graph.Unknown)
		}
		return v.sendInfo(tx, msg)
	default:
		return graph.Prune(graph.Malformed)
	}
}

func (v *Validator) genesisInfo(msg *slp.Message, nOut int) graph.GetInfoResult {
	batonVout, hasBaton := msg.HasMintBaton()
	if nOut < 2 {
		return graph.Prune(graph.Malformed)
	}
	outputs := newSlotBase(batonVout, hasBaton)
	outputs[1] = graph.AmountSlot(msg.InitialMintQuantity)
	return graph.Proceed(nil, graph.Genesis(), alignOutputs(outputs, nOut))
}

func (v *Validator) mintInfo(tx *types.Transaction, msg *slp.Message) graph.GetInfoResult {
	if len(tx.Outputs) < 2 {
		return graph.Prune(graph.Malformed)
	}
	batonVout, hasBaton := msg.HasMintBaton()
	outputs := newSlotBase(batonVout, hasBaton)
	outputs[1] = graph.AmountSlot(msg.AdditionalMintQty)
	return graph.Proceed(allTrue(len(tx.Inputs)), graph.Mint(), alignOutputs(outputs, len(tx.Outputs)))
}

func (v *Validator) sendInfo(tx *types.Transaction, msg *slp.Message) graph.GetInfoResult {
	var sum uint64
	outputs := make([]graph.OutputSlot, 1, 1+len(msg.TokenOutputs))
	outputs[0] = graph.NoneSlot()
	for _, amt := range msg.TokenOutputs {
		outputs = append(outputs, graph.AmountSlot(amt))
		sum += amt
	}
	return graph.Proceed(allTrue(len(tx.Inputs)), graph.SendSum(sum), alignOutputs(outputs, len(tx.Outputs)))
}

// newSlotBase builds the pre-alignment output slots for a GENESIS or MINT
// message: all-None, with the mint baton sentinel placed at batonVout when
// present. The caller overwrites index 1 with the quantity afterward, which
// replicates the reference validator's own field order when batonVout == 1.
func newSlotBase(batonVout int, hasBaton bool) []graph.OutputSlot {
	size := 2
	if hasBaton && batonVout+1 > size {
		size = batonVout + 1
	}
	outputs := make([]graph.OutputSlot, size)
	for i := range outputs {
		outputs[i] = graph.NoneSlot()
	}
	if hasBaton {
		outputs[batonVout] = graph.MintSlot()
	}
	return outputs
}

// alignOutputs truncates or right-pads outputs to exactly nOut entries.
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

// CheckNeeded reports whether parentSlot is consensus-relevant to myinfo: a
// MINT needs the mint baton sentinel, a SEND needs a positive token amount.
func (v *Validator) CheckNeeded(myinfo graph.MyInfo, parentSlot graph.OutputSlot) bool {
	switch myinfo.Kind {
	case graph.MyInfoMint:
		return parentSlot.Kind == graph.SlotMint
	case graph.MyInfoSendSum:
		return parentSlot.IsPositiveAmount()
	case graph.MyInfoGenesis:
		panic("slp1: CheckNeeded called for GENESIS")
	default:
		return false
	}
}

// Validate decides a verdict from myinfo and the currently known state of
// every needed parent, or reports pending when a decision still depends on
// an undecided parent.
func (v *Validator) Validate(myinfo graph.MyInfo, inputs []graph.InputInfo) (graph.Validity, bool) {
	switch myinfo.Kind {
	case graph.MyInfoGenesis:
		if len(inputs) != 0 {
			panic("slp1: GENESIS validate called with inputs")
		}
		return graph.Valid, true
	case graph.MyInfoMint:
		return validateMint(inputs)
	case graph.MyInfoSendSum:
		return validateSend(myinfo.Sum, inputs)
	default:
		panic("slp1: Validate called with MyInfoNone")
	}
}

func validateMint(inputs []graph.InputInfo) (graph.Validity, bool) {
	if len(inputs) == 0 {
		return graph.InsufficientValidInputs, true
	}
	pending := false
	for _, in := range inputs {
		switch in.ParentValidity {
		case graph.Valid:
			return graph.Valid, true
		case graph.Unknown:
			pending = true
		}
	}
	if pending {
		return graph.Unknown, false
	}
	return graph.InsufficientValidInputs, true
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
