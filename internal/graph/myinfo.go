package graph

import "github.com/Klingon-tech/slp-validator/pkg/types"

// MyInfoKind tags the case of a Node's self-derived summary. Spec.md §9
// calls for replacing the source's dynamically-typed myinfo (a string
// sentinel or an integer) with this tagged variant.
type MyInfoKind int

const (
	MyInfoNone MyInfoKind = iota
	MyInfoGenesis
	MyInfoMint
	MyInfoSendSum
)

// ExternalRef names an output living in a different TokenGraph than the one
// that owns the node — the NFT1 child GENESIS dependency on its group
// token's output is the motivating case (spec.md §9's per-type validator
// split never assumed a single-graph dependency closure). A validator that
// sets Ref on a MyInfo value is responsible for resolving it itself (e.g.
// via a ParentResolver) since the owning graph cannot look it up.
type ExternalRef struct {
	TxID types.TxID
	Vout int
}

// MyInfo is the self-derived summary produced by a validator's GetInfo.
type MyInfo struct {
	Kind MyInfoKind
	Sum  uint64       // valid only when Kind == MyInfoSendSum
	Ref  *ExternalRef // optional, set by validators with a cross-graph dependency
}

func Genesis() MyInfo           { return MyInfo{Kind: MyInfoGenesis} }
func Mint() MyInfo              { return MyInfo{Kind: MyInfoMint} }
func SendSum(sum uint64) MyInfo { return MyInfo{Kind: MyInfoSendSum, Sum: sum} }

// GenesisWithRef builds a GENESIS MyInfo carrying a cross-graph dependency.
func GenesisWithRef(ref ExternalRef) MyInfo {
	return MyInfo{Kind: MyInfoGenesis, Ref: &ref}
}

func (m MyInfo) String() string {
	switch m.Kind {
	case MyInfoGenesis:
		return "GENESIS"
	case MyInfoMint:
		return "MINT"
	case MyInfoSendSum:
		return "SEND"
	default:
		return "NONE"
	}
}

// SlotKind tags the case of an output slot: no token contribution, the mint
// baton sentinel, or a concrete token amount.
type SlotKind int

const (
	SlotNone SlotKind = iota
	SlotMint
	SlotAmount
)

// OutputSlot is the per-output token quantity or sentinel that get_info
// assigns to each transaction output (spec.md §3, Node.outputs).
type OutputSlot struct {
	Kind   SlotKind
	Amount uint64 // valid only when Kind == SlotAmount
}

func NoneSlot() OutputSlot            { return OutputSlot{Kind: SlotNone} }
func MintSlot() OutputSlot            { return OutputSlot{Kind: SlotMint} }
func AmountSlot(amount uint64) OutputSlot { return OutputSlot{Kind: SlotAmount, Amount: amount} }

// IsPositiveAmount reports whether the slot carries a nonzero token amount.
func (s OutputSlot) IsPositiveAmount() bool {
	return s.Kind == SlotAmount && s.Amount > 0
}
