package slp

import "fmt"

// ErrUnsupportedTokenType is returned for well-formed SLP messages carrying
// a token_type this parser does not implement (anything other than 1, 65,
// 129). Per the SLP1 validator's get_info truth table, an unsupported type
// is a "prune unknown" (validity 0), not a malformed message.
type ErrUnsupportedTokenType struct {
	TokenType int
}

func (e *ErrUnsupportedTokenType) Error() string {
	return fmt.Sprintf("slp: unsupported token type %d", e.TokenType)
}

// ErrInvalidOutputMessage is returned for outputs that carry the SLP lokad
// id but are otherwise malformed: wrong push count, bad field lengths,
// unrecognized transaction type, non-canonical pushdata.
type ErrInvalidOutputMessage struct {
	Reason string
}

func (e *ErrInvalidOutputMessage) Error() string {
	return fmt.Sprintf("slp: invalid output message: %s", e.Reason)
}

// ErrNotSlp is returned for output scripts that are not SLP OP_RETURN
// messages at all (wrong lokad id, not an OP_RETURN script, no outputs).
var ErrNotSlp = fmt.Errorf("slp: not an SLP output script")
