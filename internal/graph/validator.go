package graph

import "github.com/Klingon-tech/slp-validator/pkg/types"

// GetInfoResult is the outcome of a validator's GetInfo call: either a prune
// verdict that finalizes the node without examining inputs, or the
// classification needed to proceed (vin_mask, myinfo, outputs).
type GetInfoResult struct {
	Pruned        bool
	PruneValidity Validity

	VinMask []bool
	MyInfo  MyInfo
	Outputs []OutputSlot
}

// Prune builds a GetInfoResult that finalizes the node immediately.
func Prune(v Validity) GetInfoResult {
	return GetInfoResult{Pruned: true, PruneValidity: v}
}

// Proceed builds a GetInfoResult that classifies the transaction for
// further input examination.
func Proceed(vinMask []bool, myinfo MyInfo, outputs []OutputSlot) GetInfoResult {
	return GetInfoResult{VinMask: vinMask, MyInfo: myinfo, Outputs: outputs}
}

// InputInfo is one parent's contribution as seen by Validate: its txid,
// current validity, and the output slot the child's input references.
type InputInfo struct {
	ParentTxID     types.TxID
	ParentValidity Validity
	ParentSlot     OutputSlot
}

// Validator is the per-type consensus rule set: three pure functions of a
// transaction and its inputs' states (spec.md §4.1).
type Validator interface {
	// GetInfo classifies tx by applying all self-contained consensus rules.
	GetInfo(tx *types.Transaction) GetInfoResult

	// CheckNeeded filters which parent output slots are consensus-relevant
	// to myinfo. Panics if myinfo is MyInfoGenesis (unreachable by
	// construction: genesis nodes have no examined inputs).
	CheckNeeded(myinfo MyInfo, parentSlot OutputSlot) bool

	// Validate attempts a final verdict from myinfo and the current state
	// of every needed parent. decided reports whether verdict is final;
	// when decided is false the node remains pending.
	Validate(myinfo MyInfo, inputs []InputInfo) (verdict Validity, decided bool)
}
