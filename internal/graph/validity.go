// Package graph implements the per-token-id transaction DAG: nodes that
// track inference state, a validator-driven get_info/check_needed/validate
// state machine, and verdict propagation. Grounded on the TokenGraph
// described in spec.md §4.2, generalizing Klingon-tech-klingnet's arena-style
// in-memory state machines (internal/token, internal/utxo) to a DAG shape.
package graph

// Validity is a node's final verdict, or 0 while still undecided.
type Validity int

const (
	Unknown                 Validity = 0
	Valid                   Validity = 1
	Malformed                Validity = 2
	InsufficientValidInputs Validity = 3
	TypeMismatch            Validity = 4
)

// Decided reports whether the validity represents a final verdict.
func (v Validity) Decided() bool {
	return v != Unknown
}

func (v Validity) String() string {
	switch v {
	case Unknown:
		return "unknown"
	case Valid:
		return "valid"
	case Malformed:
		return "malformed"
	case InsufficientValidInputs:
		return "insufficient-valid-inputs"
	case TypeMismatch:
		return "type-mismatch"
	default:
		return "invalid-validity"
	}
}
